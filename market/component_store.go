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

// Package market implements the stores that mint assets: the component
// marketplace, which sells components for fungible tokens and keeps listing
// indexes, and the asset stores for cars and parks
package market

import (
	"errors"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/blinklabs-io/lotloot/access"
	"github.com/blinklabs-io/lotloot/ledger"
	"github.com/blinklabs-io/lotloot/token"
)

// DefaultFirstTokenID is the first token ID minted by a store
const DefaultFirstTokenID uint64 = 1000

type MintedEvent struct {
	Price     *uint256.Int   `json:"price"`
	Recipient common.Address `json:"recipient"`
	TokenID   uint64         `json:"tokenId"`
}

type MintedAndListedEvent struct {
	Price     *uint256.Int   `json:"price"`
	ListPrice *uint256.Int   `json:"listPrice"`
	Recipient common.Address `json:"recipient"`
	TokenID   uint64         `json:"tokenId"`
}

type WithdrawnEvent struct {
	Amount *uint256.Int   `json:"amount"`
	To     common.Address `json:"to"`
}

// Listing is a marketplace offer for one component
type Listing struct {
	Price  *uint256.Int
	Seller common.Address
	Active bool
}

type listingRecord struct {
	cbor.StructAsArray
	Seller []byte
	Price  []byte
	Active bool
}

type ComponentStoreConfig struct {
	Components *token.NonFungible
	Token      *token.Fungible
	MintPrice  *uint256.Int
	Address    common.Address
	FirstID    uint64
}

// ComponentStore sells newly minted components at a fixed price. The store
// must hold MINTER_ROLE on the component registry. Payments stay with the
// store until an admin withdraws them
type ComponentStore struct {
	*ledger.Dispatcher
	config ComponentStoreConfig
}

func NewComponentStore(cfg ComponentStoreConfig) (*ComponentStore, error) {
	if cfg.Components == nil || cfg.Token == nil {
		return nil, errors.New("component registry and token ledger must be provided")
	}
	if cfg.MintPrice == nil {
		return nil, errors.New("a mint price must be provided")
	}
	if cfg.FirstID == 0 {
		cfg.FirstID = DefaultFirstTokenID
	}
	s := &ComponentStore{
		config: cfg,
	}
	s.Dispatcher = ledger.MustNewDispatcher(
		append(access.Methods(), s.methods()...),
		nil,
	)
	return s, nil
}

func (s *ComponentStore) Address() common.Address {
	return s.config.Address
}

func (s *ComponentStore) MintPrice() *uint256.Int {
	return new(uint256.Int).Set(s.config.MintPrice)
}

var (
	nextIDKey         = ledger.Key("next")
	activeCountKey    = ledger.Key("activeCount")
	activeIndexPrefix = ledger.KeyPrefix("active")
)

func listingKey(id uint64) []byte {
	return ledger.Key("listing", id)
}

func sellerCountKey(seller common.Address) []byte {
	return ledger.Key("sellerCount", seller)
}

func sellerIndexPrefix(seller common.Address) []byte {
	return ledger.KeyPrefix("seller", seller)
}

// Initialize makes admin the administrator of the store
func (s *ComponentStore) Initialize(f *ledger.Frame, admin common.Address) error {
	cf := f.Enter(s.config.Address)
	if err := access.Grant(cf, access.DefaultAdminRole, admin); err != nil {
		return err
	}
	return access.Grant(cf, access.AdminRole, admin)
}

// Mint charges the caller the mint price and mints a component with the
// given attributes to the caller
func (s *ComponentStore) Mint(f *ledger.Frame, attrs [3]uint64) (uint64, error) {
	return s.mint(f.Enter(s.config.Address), attrs)
}

// MintAndList mints a component like Mint and lists it for sale at listPrice.
// A nil listPrice lists the component for free
func (s *ComponentStore) MintAndList(f *ledger.Frame, attrs [3]uint64, listPrice *uint256.Int) (uint64, error) {
	if listPrice == nil {
		listPrice = new(uint256.Int)
	}
	return s.mintAndList(f.Enter(s.config.Address), attrs, listPrice)
}

// GetListingInfo returns the listing for a component. Components never
// listed have a zero listing
func (s *ComponentStore) GetListingInfo(f *ledger.Frame, id uint64) (Listing, error) {
	return getListing(f.Enter(s.config.Address), id)
}

// GetSellerListings returns the components listed by seller, in listing order
func (s *ComponentStore) GetSellerListings(f *ledger.Frame, seller common.Address) ([]uint64, error) {
	return indexEntries(f.Enter(s.config.Address), sellerIndexPrefix(seller))
}

// GetAllActiveListings returns every listed component, in listing order
func (s *ComponentStore) GetAllActiveListings(f *ledger.Frame) ([]uint64, error) {
	return indexEntries(f.Enter(s.config.Address), activeIndexPrefix)
}

// Withdraw sends collected payments to the given address. The caller must
// hold ADMIN_ROLE on the store
func (s *ComponentStore) Withdraw(f *ledger.Frame, to common.Address, amount *uint256.Int) error {
	return s.withdraw(f.Enter(s.config.Address), to, amount)
}

func nextID(f *ledger.Frame, first uint64) (uint64, error) {
	next, err := ledger.GetUint64(f, nextIDKey)
	if err != nil {
		return 0, err
	}
	if next == 0 {
		next = first
	}
	return next, ledger.SetUint64(f, nextIDKey, next+1)
}

func (s *ComponentStore) mint(f *ledger.Frame, attrs [3]uint64) (uint64, error) {
	release, err := f.NonReentrant()
	if err != nil {
		return 0, err
	}
	defer release()
	id, err := s.mintLocked(f, attrs)
	if err != nil {
		return 0, err
	}
	err = f.Emit("Minted", MintedEvent{
		TokenID:   id,
		Price:     s.MintPrice(),
		Recipient: f.Caller(),
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *ComponentStore) mintLocked(f *ledger.Frame, attrs [3]uint64) (uint64, error) {
	buyer := f.Caller()
	id, err := nextID(f, s.config.FirstID)
	if err != nil {
		return 0, err
	}
	if !s.config.MintPrice.IsZero() {
		if err := s.config.Token.TransferFrom(f, buyer, f.Self(), s.config.MintPrice); err != nil {
			return 0, err
		}
	}
	if err := s.config.Components.Mint(f, buyer, id, attrs[:]); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *ComponentStore) mintAndList(f *ledger.Frame, attrs [3]uint64, listPrice *uint256.Int) (uint64, error) {
	release, err := f.NonReentrant()
	if err != nil {
		return 0, err
	}
	defer release()
	seller := f.Caller()
	id, err := s.mintLocked(f, attrs)
	if err != nil {
		return 0, err
	}
	err = ledger.SetRecord(f, listingKey(id), &listingRecord{
		Seller: seller.Bytes(),
		Price:  listPrice.Bytes(),
		Active: true,
	})
	if err != nil {
		return 0, err
	}
	if err := appendIndex(f, sellerCountKey(seller), sellerIndexPrefix(seller), id); err != nil {
		return 0, err
	}
	if err := appendIndex(f, activeCountKey, activeIndexPrefix, id); err != nil {
		return 0, err
	}
	err = f.Emit("MintedAndListed", MintedAndListedEvent{
		TokenID:   id,
		Price:     s.MintPrice(),
		Recipient: seller,
		ListPrice: listPrice,
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *ComponentStore) withdraw(f *ledger.Frame, to common.Address, amount *uint256.Int) error {
	if err := access.CheckRole(f, access.AdminRole, f.Caller()); err != nil {
		return err
	}
	if err := s.config.Token.Transfer(f, to, amount); err != nil {
		return err
	}
	return f.Emit("Withdrawn", WithdrawnEvent{To: to, Amount: amount})
}

func getListing(f *ledger.Frame, id uint64) (Listing, error) {
	var rec listingRecord
	ok, err := ledger.GetRecord(f, listingKey(id), &rec)
	if err != nil || !ok {
		return Listing{Price: new(uint256.Int)}, err
	}
	return Listing{
		Seller: common.BytesToAddress(rec.Seller),
		Price:  new(uint256.Int).SetBytes(rec.Price),
		Active: rec.Active,
	}, nil
}

// appendIndex adds id to the end of an ordered index
func appendIndex(f *ledger.Frame, countKey []byte, prefix []byte, id uint64) error {
	count, err := ledger.GetUint64(f, countKey)
	if err != nil {
		return err
	}
	key := append(append([]byte{}, prefix...), ledger.Key(count)...)
	if err := ledger.SetUint64(f, key, id); err != nil {
		return err
	}
	return ledger.SetUint64(f, countKey, count+1)
}

func indexEntries(f *ledger.Frame, prefix []byte) ([]uint64, error) {
	ret := []uint64{}
	err := f.Iterate(prefix, func(_, val []byte) (bool, error) {
		ret = append(ret, ledger.Uint64FromKey(val))
		return true, nil
	})
	return ret, err
}

func attrArgs(args []any) ([3]uint64, error) {
	var ret [3]uint64
	for i := range ret {
		v, err := ledger.Uint64Arg(args, i)
		if err != nil {
			return ret, err
		}
		ret[i] = v
	}
	return ret, nil
}

func (s *ComponentStore) methods() []ledger.Method {
	return []ledger.Method{
		{
			Signature: "mint(uint256,uint256,uint256)",
			Returns:   []string{"uint256"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				attrs, err := attrArgs(args)
				if err != nil {
					return nil, err
				}
				id, err := s.mint(f, attrs)
				if err != nil {
					return nil, err
				}
				return []any{id}, nil
			},
		},
		{
			Signature: "mintAndList(uint256,uint256,uint256,uint256)",
			Returns:   []string{"uint256"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				attrs, err := attrArgs(args)
				if err != nil {
					return nil, err
				}
				listPrice, err := ledger.Uint256Arg(args, 3)
				if err != nil {
					return nil, err
				}
				id, err := s.mintAndList(f, attrs, listPrice)
				if err != nil {
					return nil, err
				}
				return []any{id}, nil
			},
		},
		{
			Signature: "getListingInfo(uint256)",
			Returns:   []string{"address", "uint256", "bool"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				id, err := ledger.Uint64Arg(args, 0)
				if err != nil {
					return nil, err
				}
				listing, err := getListing(f, id)
				if err != nil {
					return nil, err
				}
				return []any{listing.Seller, listing.Price, listing.Active}, nil
			},
		},
		{
			Signature: "getSellerListings(address)",
			Returns:   []string{"uint256[]"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				seller, err := ledger.AddressArg(args, 0)
				if err != nil {
					return nil, err
				}
				ids, err := indexEntries(f, sellerIndexPrefix(seller))
				if err != nil {
					return nil, err
				}
				return []any{ids}, nil
			},
		},
		{
			Signature: "getAllActiveListings()",
			Returns:   []string{"uint256[]"},
			Handler: func(f *ledger.Frame, _ []any) ([]any, error) {
				ids, err := indexEntries(f, activeIndexPrefix)
				if err != nil {
					return nil, err
				}
				return []any{ids}, nil
			},
		},
		{
			Signature: "mintPrice()",
			Returns:   []string{"uint256"},
			Handler: func(*ledger.Frame, []any) ([]any, error) {
				return []any{s.MintPrice()}, nil
			},
		},
		{
			Signature: "withdraw(address,uint256)",
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				to, err := ledger.AddressArg(args, 0)
				if err != nil {
					return nil, err
				}
				amount, err := ledger.Uint256Arg(args, 1)
				if err != nil {
					return nil, err
				}
				return nil, s.withdraw(f, to, amount)
			},
		},
	}
}
