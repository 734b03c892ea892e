// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package market

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/blinklabs-io/lotloot/access"
	"github.com/blinklabs-io/lotloot/account"
	"github.com/blinklabs-io/lotloot/ledger"
	"github.com/blinklabs-io/lotloot/token"
)

type AssetMintedEvent struct {
	Recipient common.Address `json:"recipient"`
	Account   common.Address `json:"account"`
	TokenID   uint64         `json:"tokenId"`
}

type AssetStoreConfig struct {
	Assets         *token.NonFungible
	Registry       *account.Registry
	Address        common.Address
	Implementation common.Address
	ChainID        uint64
	FirstID        uint64
}

// AssetStore mints sequentially numbered cars or parks and creates the
// token-bound account of every new asset. Anyone may mint to themselves.
// Minting to another address requires MINTER_ROLE on the store
type AssetStore struct {
	*ledger.Dispatcher
	config AssetStoreConfig
}

func NewAssetStore(cfg AssetStoreConfig) (*AssetStore, error) {
	if cfg.Assets == nil || cfg.Registry == nil {
		return nil, errors.New("asset registry and account registry must be provided")
	}
	if cfg.FirstID == 0 {
		cfg.FirstID = DefaultFirstTokenID
	}
	s := &AssetStore{
		config: cfg,
	}
	s.Dispatcher = ledger.MustNewDispatcher(
		append(access.Methods(), s.methods()...),
		nil,
	)
	return s, nil
}

func (s *AssetStore) Address() common.Address {
	return s.config.Address
}

// Initialize makes admin the administrator of the store with permission to
// mint to any address
func (s *AssetStore) Initialize(f *ledger.Frame, admin common.Address) error {
	cf := f.Enter(s.config.Address)
	if err := access.Grant(cf, access.DefaultAdminRole, admin); err != nil {
		return err
	}
	return access.Grant(cf, access.MinterRole, admin)
}

// AccountKey returns the key of the token-bound account of asset id
func (s *AssetStore) AccountKey(chainID uint64, id uint64) account.Key {
	if s.config.ChainID != 0 {
		chainID = s.config.ChainID
	}
	return account.Key{
		Implementation: s.config.Implementation,
		ChainID:        chainID,
		TokenContract:  s.config.Assets.Address(),
		TokenID:        id,
		Salt:           account.SaltFromUint64(id),
	}
}

// Mint mints the next asset to the caller
func (s *AssetStore) Mint(f *ledger.Frame) (uint64, common.Address, error) {
	cf := f.Enter(s.config.Address)
	return s.mint(cf, cf.Caller())
}

// MintTo mints the next asset to the given address
func (s *AssetStore) MintTo(f *ledger.Frame, to common.Address) (uint64, common.Address, error) {
	return s.mintTo(f.Enter(s.config.Address), to)
}

func (s *AssetStore) mintTo(f *ledger.Frame, to common.Address) (uint64, common.Address, error) {
	if err := access.CheckRole(f, access.MinterRole, f.Caller()); err != nil {
		return 0, common.Address{}, err
	}
	return s.mint(f, to)
}

func (s *AssetStore) mint(f *ledger.Frame, to common.Address) (uint64, common.Address, error) {
	release, err := f.NonReentrant()
	if err != nil {
		return 0, common.Address{}, err
	}
	defer release()
	id, err := nextID(f, s.config.FirstID)
	if err != nil {
		return 0, common.Address{}, err
	}
	if err := s.config.Assets.Mint(f, to, id, nil); err != nil {
		return 0, common.Address{}, err
	}
	acct, err := s.config.Registry.CreateAccount(f, s.AccountKey(f.ChainID(), id), nil)
	if err != nil {
		return 0, common.Address{}, err
	}
	err = f.Emit("AssetMinted", AssetMintedEvent{
		TokenID:   id,
		Recipient: to,
		Account:   acct,
	})
	if err != nil {
		return 0, common.Address{}, err
	}
	return id, acct, nil
}

func (s *AssetStore) methods() []ledger.Method {
	return []ledger.Method{
		{
			Signature: "mint()",
			Returns:   []string{"uint256", "address"},
			Handler: func(f *ledger.Frame, _ []any) ([]any, error) {
				id, acct, err := s.mint(f, f.Caller())
				if err != nil {
					return nil, err
				}
				return []any{id, acct}, nil
			},
		},
		{
			Signature: "mintTo(address)",
			Returns:   []string{"uint256", "address"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				to, err := ledger.AddressArg(args, 0)
				if err != nil {
					return nil, err
				}
				id, acct, err := s.mintTo(f, to)
				if err != nil {
					return nil, err
				}
				return []any{id, acct}, nil
			},
		},
		{
			Signature: "accountOf(uint256)",
			Returns:   []string{"address"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				id, err := ledger.Uint64Arg(args, 0)
				if err != nil {
					return nil, err
				}
				return []any{s.config.Registry.ComputeAddress(s.AccountKey(f.ChainID(), id))}, nil
			},
		},
	}
}
