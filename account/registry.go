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

package account

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/blinklabs-io/lotloot/calldata"
	"github.com/blinklabs-io/lotloot/ledger"
)

type CreatedEvent struct {
	Account        common.Address `json:"account"`
	Implementation common.Address `json:"implementation"`
	TokenContract  common.Address `json:"tokenContract"`
	Salt           common.Hash    `json:"salt"`
	ChainID        uint64         `json:"chainId"`
	TokenID        uint64         `json:"tokenId"`
}

// Registry creates token-bound accounts at addresses derived from the
// registry address and the account key
type Registry struct {
	*ledger.Dispatcher
	address common.Address
}

func NewRegistry(address common.Address) *Registry {
	r := &Registry{
		address: address,
	}
	r.Dispatcher = ledger.MustNewDispatcher(r.methods(), nil)
	return r
}

func (r *Registry) Address() common.Address {
	return r.address
}

// ComputeAddress returns the address of the account for key
func (r *Registry) ComputeAddress(key Key) common.Address {
	return ComputeAddress(r.address, key)
}

// CreateAccount deploys the account for key if it does not exist yet and
// returns its address. A non-empty initData is sent to a newly created
// account as a call from the registry
func (r *Registry) CreateAccount(f *ledger.Frame, key Key, initData []byte) (common.Address, error) {
	return r.createAccount(f.Enter(r.address), key, initData)
}

// Account returns a handle for calling the account at addr
func (r *Registry) Account(addr common.Address) *Account {
	return &Account{address: addr}
}

func (r *Registry) createAccount(f *ledger.Frame, key Key, initData []byte) (common.Address, error) {
	addr := r.ComputeAddress(key)
	exists, err := f.HasCode(addr)
	if err != nil {
		return common.Address{}, err
	}
	if exists {
		return addr, nil
	}
	hasImpl, err := f.HasCode(key.Implementation)
	if err != nil {
		return common.Address{}, err
	}
	if !hasImpl {
		return common.Address{}, ledger.NewNotFoundError("implementation", key.Implementation.Hex())
	}
	if err := f.DeployProxy(addr, key.Implementation, key.binding()); err != nil {
		return common.Address{}, err
	}
	if err := ledger.SetUint64(f.Enter(addr), nonceKey, 0); err != nil {
		return common.Address{}, err
	}
	err = f.Emit("AccountCreated", CreatedEvent{
		Account:        addr,
		Implementation: key.Implementation,
		TokenContract:  key.TokenContract,
		Salt:           key.Salt,
		ChainID:        key.ChainID,
		TokenID:        key.TokenID,
	})
	if err != nil {
		return common.Address{}, err
	}
	if len(initData) > 0 {
		if _, err := f.Call(addr, nil, initData); err != nil {
			return common.Address{}, err
		}
	}
	f.Logger().Debug(
		"created token bound account",
		"component", "account",
		"account", addr.Hex(),
		"token_contract", key.TokenContract.Hex(),
		"token_id", key.TokenID,
	)
	return addr, nil
}

func keyArgs(args []any) (Key, error) {
	var key Key
	var err error
	if key.Implementation, err = ledger.AddressArg(args, 0); err != nil {
		return key, err
	}
	if key.ChainID, err = ledger.Uint64Arg(args, 1); err != nil {
		return key, err
	}
	if key.TokenContract, err = ledger.AddressArg(args, 2); err != nil {
		return key, err
	}
	if key.TokenID, err = ledger.Uint64Arg(args, 3); err != nil {
		return key, err
	}
	salt, err := ledger.Uint256Arg(args, 4)
	if err != nil {
		return key, err
	}
	key.Salt = salt.Bytes32()
	return key, nil
}

func (r *Registry) methods() []ledger.Method {
	return []ledger.Method{
		{
			Signature: "account(address,uint256,address,uint256,uint256)",
			Returns:   []string{"address"},
			Handler: func(_ *ledger.Frame, args []any) ([]any, error) {
				key, err := keyArgs(args)
				if err != nil {
					return nil, err
				}
				return []any{r.ComputeAddress(key)}, nil
			},
		},
		{
			Signature: "createAccount(address,uint256,address,uint256,uint256,bytes)",
			Returns:   []string{"address"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				key, err := keyArgs(args)
				if err != nil {
					return nil, err
				}
				initData, err := ledger.BytesArg(args, 5)
				if err != nil {
					return nil, err
				}
				addr, err := r.createAccount(f, key, initData)
				if err != nil {
					return nil, err
				}
				return []any{addr}, nil
			},
		},
	}
}

// Account is a handle for calling one token-bound account through its
// external interface
type Account struct {
	address common.Address
}

func (a *Account) Address() common.Address {
	return a.address
}

// Token returns the chain ID, token contract and token ID the account is bound to
func (a *Account) Token(f *ledger.Frame) (uint64, common.Address, uint64, error) {
	ret, err := f.Call(a.address, nil, calldata.MustEncode("token()"))
	if err != nil {
		return 0, common.Address{}, 0, err
	}
	vals, err := calldata.Decode([]string{"uint256", "address", "uint256"}, ret)
	if err != nil {
		return 0, common.Address{}, 0, err
	}
	chainID, _ := vals[0].(*big.Int)
	tokenContract, _ := vals[1].(common.Address)
	tokenID, _ := vals[2].(*big.Int)
	if chainID == nil || tokenID == nil {
		return 0, common.Address{}, 0, ledger.ErrMalformedCall
	}
	return chainID.Uint64(), tokenContract, tokenID.Uint64(), nil
}

// Owner returns the owner of the bound token, or the zero address if the
// account is bound to another chain
func (a *Account) Owner(f *ledger.Frame) (common.Address, error) {
	ret, err := f.Call(a.address, nil, calldata.MustEncode("owner()"))
	if err != nil {
		return common.Address{}, err
	}
	return calldata.DecodeAddress(ret)
}

func (a *Account) Nonce(f *ledger.Frame) (uint64, error) {
	ret, err := f.Call(a.address, nil, calldata.MustEncode("nonce()"))
	if err != nil {
		return 0, err
	}
	return calldata.DecodeUint64(ret)
}

// ExecuteCall asks the account to call target with value and payload. The
// frame's address must own the bound token
func (a *Account) ExecuteCall(
	f *ledger.Frame,
	target common.Address,
	value *uint256.Int,
	payload []byte,
) ([]byte, error) {
	if value == nil {
		value = new(uint256.Int)
	}
	ret, err := f.Call(
		a.address,
		nil,
		calldata.MustEncode("executeCall(address,uint256,bytes)", target, value, payload),
	)
	if err != nil {
		return nil, err
	}
	vals, err := calldata.Decode([]string{"bytes"}, ret)
	if err != nil {
		return nil, err
	}
	out, _ := vals[0].([]byte)
	return out, nil
}
