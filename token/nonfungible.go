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

package token

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/blinklabs-io/lotloot/access"
	"github.com/blinklabs-io/lotloot/ledger"
)

type TransferEvent struct {
	From    common.Address `json:"from"`
	To      common.Address `json:"to"`
	TokenID uint64         `json:"tokenId"`
}

type ApprovalEvent struct {
	Owner    common.Address `json:"owner"`
	Approved common.Address `json:"approved"`
	TokenID  uint64         `json:"tokenId"`
}

type ApprovalForAllEvent struct {
	Owner    common.Address `json:"owner"`
	Operator common.Address `json:"operator"`
	Approved bool           `json:"approved"`
}

// NonFungible is a registry of uniquely numbered tokens, each with an owner
// and a list of numeric attributes. Minting requires MINTER_ROLE. Holders of
// OPERATOR_ROLE may move any token
type NonFungible struct {
	*ledger.Dispatcher
	name    string
	address common.Address
}

func NewNonFungible(address common.Address, name string) *NonFungible {
	n := &NonFungible{
		name:    name,
		address: address,
	}
	n.Dispatcher = ledger.MustNewDispatcher(
		append(access.Methods(), n.methods()...),
		nil,
	)
	return n
}

func (n *NonFungible) Address() common.Address {
	return n.address
}

func (n *NonFungible) Name() string {
	return n.name
}

func ownerKey(id uint64) []byte {
	return ledger.Key("owner", id)
}

func approvedKey(id uint64) []byte {
	return ledger.Key("approved", id)
}

func operatorKey(owner, operator common.Address) []byte {
	return ledger.Key("operator", owner, operator)
}

func holdingsKey(owner common.Address) []byte {
	return ledger.Key("holdings", owner)
}

func attributesKey(id uint64) []byte {
	return ledger.Key("attrs", id)
}

var supplyKey = ledger.Key("supply")

// Initialize grants the default admin role on the registry to admin
func (n *NonFungible) Initialize(f *ledger.Frame, admin common.Address) error {
	return access.Grant(f.Enter(n.address), access.DefaultAdminRole, admin)
}

func (n *NonFungible) GrantRole(f *ledger.Frame, role common.Hash, account common.Address) error {
	return access.GrantRole(f.Enter(n.address), role, account)
}

func (n *NonFungible) HasRole(f *ledger.Frame, role common.Hash, account common.Address) (bool, error) {
	return access.HasRole(f.Enter(n.address), role, account)
}

// Mint creates token id owned by to. The calling contract or account must hold MINTER_ROLE
func (n *NonFungible) Mint(f *ledger.Frame, to common.Address, id uint64, attrs []uint64) error {
	return mintNFT(f.Enter(n.address), to, id, attrs)
}

func (n *NonFungible) OwnerOf(f *ledger.Frame, id uint64) (common.Address, error) {
	return ownerOf(f.Enter(n.address), id)
}

// Exists reports whether token id has been minted
func (n *NonFungible) Exists(f *ledger.Frame, id uint64) (bool, error) {
	owner, err := ledger.GetAddress(f.Enter(n.address), ownerKey(id))
	if err != nil {
		return false, err
	}
	return owner != (common.Address{}), nil
}

func (n *NonFungible) TransferFrom(f *ledger.Frame, from, to common.Address, id uint64) error {
	return transferNFT(f.Enter(n.address), from, to, id)
}

func (n *NonFungible) Approve(f *ledger.Frame, spender common.Address, id uint64) error {
	return approveNFT(f.Enter(n.address), spender, id)
}

func (n *NonFungible) SetApprovalForAll(f *ledger.Frame, operator common.Address, approved bool) error {
	return setApprovalForAll(f.Enter(n.address), operator, approved)
}

func (n *NonFungible) GetApproved(f *ledger.Frame, id uint64) (common.Address, error) {
	return getApproved(f.Enter(n.address), id)
}

func (n *NonFungible) IsApprovedForAll(f *ledger.Frame, owner, operator common.Address) (bool, error) {
	return ledger.GetBool(f.Enter(n.address), operatorKey(owner, operator))
}

func (n *NonFungible) BalanceOf(f *ledger.Frame, owner common.Address) (uint64, error) {
	return ledger.GetUint64(f.Enter(n.address), holdingsKey(owner))
}

func (n *NonFungible) TotalSupply(f *ledger.Frame) (uint64, error) {
	return ledger.GetUint64(f.Enter(n.address), supplyKey)
}

func (n *NonFungible) Attributes(f *ledger.Frame, id uint64) ([]uint64, error) {
	return attributes(f.Enter(n.address), id)
}

func mintNFT(f *ledger.Frame, to common.Address, id uint64, attrs []uint64) error {
	if err := access.CheckRole(f, access.MinterRole, f.Caller()); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ledger.ErrInvalidArgument
	}
	owner, err := ledger.GetAddress(f, ownerKey(id))
	if err != nil {
		return err
	}
	if owner != (common.Address{}) {
		return ledger.NewStateConflictError("token %d already minted", id)
	}
	if err := ledger.SetAddress(f, ownerKey(id), to); err != nil {
		return err
	}
	if len(attrs) > 0 {
		if err := ledger.SetRecord(f, attributesKey(id), attrs); err != nil {
			return err
		}
	}
	if err := adjustCount(f, holdingsKey(to), 1); err != nil {
		return err
	}
	if err := adjustCount(f, supplyKey, 1); err != nil {
		return err
	}
	return f.Emit("Transfer", TransferEvent{To: to, TokenID: id})
}

func adjustCount(f *ledger.Frame, key []byte, delta int) error {
	count, err := ledger.GetUint64(f, key)
	if err != nil {
		return err
	}
	if delta < 0 {
		return ledger.SetUint64(f, key, count-1)
	}
	return ledger.SetUint64(f, key, count+1)
}

func ownerOf(f *ledger.Frame, id uint64) (common.Address, error) {
	owner, err := ledger.GetAddress(f, ownerKey(id))
	if err != nil {
		return common.Address{}, err
	}
	if owner == (common.Address{}) {
		return common.Address{}, ledger.NewNotFoundError("token", id)
	}
	return owner, nil
}

func getApproved(f *ledger.Frame, id uint64) (common.Address, error) {
	if _, err := ownerOf(f, id); err != nil {
		return common.Address{}, err
	}
	return ledger.GetAddress(f, approvedKey(id))
}

func attributes(f *ledger.Frame, id uint64) ([]uint64, error) {
	if _, err := ownerOf(f, id); err != nil {
		return nil, err
	}
	var ret []uint64
	if _, err := ledger.GetRecord(f, attributesKey(id), &ret); err != nil {
		return nil, err
	}
	if ret == nil {
		ret = []uint64{}
	}
	return ret, nil
}

// canMove reports whether spender may move a token held by owner
func canMove(f *ledger.Frame, owner, spender common.Address, id uint64) (bool, error) {
	if spender == owner {
		return true, nil
	}
	approved, err := ledger.GetAddress(f, approvedKey(id))
	if err != nil {
		return false, err
	}
	if approved == spender {
		return true, nil
	}
	isOperator, err := ledger.GetBool(f, operatorKey(owner, spender))
	if err != nil || isOperator {
		return isOperator, err
	}
	return access.HasRole(f, access.OperatorRole, spender)
}

func transferNFT(f *ledger.Frame, from, to common.Address, id uint64) error {
	owner, err := ownerOf(f, id)
	if err != nil {
		return err
	}
	if owner != from {
		return ledger.NewStateConflictError("token %d is not owned by %s", id, from.Hex())
	}
	if to == (common.Address{}) {
		return ledger.ErrInvalidArgument
	}
	ok, err := canMove(f, owner, f.Caller(), id)
	if err != nil {
		return err
	}
	if !ok {
		return ledger.NewAuthorizationError(f.Caller(), "not token owner or approved")
	}
	if err := ledger.SetAddress(f, approvedKey(id), common.Address{}); err != nil {
		return err
	}
	if err := adjustCount(f, holdingsKey(from), -1); err != nil {
		return err
	}
	if err := adjustCount(f, holdingsKey(to), 1); err != nil {
		return err
	}
	if err := ledger.SetAddress(f, ownerKey(id), to); err != nil {
		return err
	}
	return f.Emit("Transfer", TransferEvent{From: from, To: to, TokenID: id})
}

func approveNFT(f *ledger.Frame, spender common.Address, id uint64) error {
	owner, err := ownerOf(f, id)
	if err != nil {
		return err
	}
	if f.Caller() != owner {
		isOperator, err := ledger.GetBool(f, operatorKey(owner, f.Caller()))
		if err != nil {
			return err
		}
		if !isOperator {
			return ledger.NewAuthorizationError(f.Caller(), "not token owner or operator")
		}
	}
	if err := ledger.SetAddress(f, approvedKey(id), spender); err != nil {
		return err
	}
	return f.Emit("Approval", ApprovalEvent{Owner: owner, Approved: spender, TokenID: id})
}

func setApprovalForAll(f *ledger.Frame, operator common.Address, approved bool) error {
	if operator == f.Caller() {
		return ledger.ErrInvalidArgument
	}
	if err := ledger.SetBool(f, operatorKey(f.Caller(), operator), approved); err != nil {
		return err
	}
	return f.Emit("ApprovalForAll", ApprovalForAllEvent{
		Owner:    f.Caller(),
		Operator: operator,
		Approved: approved,
	})
}

func (n *NonFungible) methods() []ledger.Method {
	transfer := func(f *ledger.Frame, args []any) ([]any, error) {
		from, err := ledger.AddressArg(args, 0)
		if err != nil {
			return nil, err
		}
		to, err := ledger.AddressArg(args, 1)
		if err != nil {
			return nil, err
		}
		id, err := ledger.Uint64Arg(args, 2)
		if err != nil {
			return nil, err
		}
		return nil, transferNFT(f, from, to, id)
	}
	return []ledger.Method{
		{
			Signature: "name()",
			Returns:   []string{"string"},
			Handler: func(*ledger.Frame, []any) ([]any, error) {
				return []any{n.name}, nil
			},
		},
		{
			Signature: "mint(address,uint256,uint256[])",
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				to, err := ledger.AddressArg(args, 0)
				if err != nil {
					return nil, err
				}
				id, err := ledger.Uint64Arg(args, 1)
				if err != nil {
					return nil, err
				}
				attrs, err := ledger.Uint64SliceArg(args, 2)
				if err != nil {
					return nil, err
				}
				return nil, mintNFT(f, to, id, attrs)
			},
		},
		{
			Signature: "ownerOf(uint256)",
			Returns:   []string{"address"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				id, err := ledger.Uint64Arg(args, 0)
				if err != nil {
					return nil, err
				}
				owner, err := ownerOf(f, id)
				if err != nil {
					return nil, err
				}
				return []any{owner}, nil
			},
		},
		{
			Signature: "transferFrom(address,address,uint256)",
			Handler:   transfer,
		},
		{
			// No receiver hook is invoked
			Signature: "safeTransferFrom(address,address,uint256)",
			Handler:   transfer,
		},
		{
			Signature: "approve(address,uint256)",
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				spender, err := ledger.AddressArg(args, 0)
				if err != nil {
					return nil, err
				}
				id, err := ledger.Uint64Arg(args, 1)
				if err != nil {
					return nil, err
				}
				return nil, approveNFT(f, spender, id)
			},
		},
		{
			Signature: "setApprovalForAll(address,bool)",
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				operator, err := ledger.AddressArg(args, 0)
				if err != nil {
					return nil, err
				}
				approved, err := ledger.BoolArg(args, 1)
				if err != nil {
					return nil, err
				}
				return nil, setApprovalForAll(f, operator, approved)
			},
		},
		{
			Signature: "getApproved(uint256)",
			Returns:   []string{"address"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				id, err := ledger.Uint64Arg(args, 0)
				if err != nil {
					return nil, err
				}
				approved, err := getApproved(f, id)
				if err != nil {
					return nil, err
				}
				return []any{approved}, nil
			},
		},
		{
			Signature: "isApprovedForAll(address,address)",
			Returns:   []string{"bool"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				owner, err := ledger.AddressArg(args, 0)
				if err != nil {
					return nil, err
				}
				operator, err := ledger.AddressArg(args, 1)
				if err != nil {
					return nil, err
				}
				ok, err := ledger.GetBool(f, operatorKey(owner, operator))
				if err != nil {
					return nil, err
				}
				return []any{ok}, nil
			},
		},
		{
			Signature: "balanceOf(address)",
			Returns:   []string{"uint256"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				owner, err := ledger.AddressArg(args, 0)
				if err != nil {
					return nil, err
				}
				count, err := ledger.GetUint64(f, holdingsKey(owner))
				if err != nil {
					return nil, err
				}
				return []any{count}, nil
			},
		},
		{
			Signature: "totalSupply()",
			Returns:   []string{"uint256"},
			Handler: func(f *ledger.Frame, _ []any) ([]any, error) {
				count, err := ledger.GetUint64(f, supplyKey)
				if err != nil {
					return nil, err
				}
				return []any{count}, nil
			},
		},
		{
			Signature: "getAttributes(uint256)",
			Returns:   []string{"uint256[]"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				id, err := ledger.Uint64Arg(args, 0)
				if err != nil {
					return nil, err
				}
				attrs, err := attributes(f, id)
				if err != nil {
					return nil, err
				}
				return []any{attrs}, nil
			},
		},
	}
}
