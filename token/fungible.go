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
	"github.com/holiman/uint256"

	"github.com/blinklabs-io/lotloot/access"
	"github.com/blinklabs-io/lotloot/ledger"
)

type AmountEvent struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Value *uint256.Int   `json:"value"`
}

type AllowanceEvent struct {
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Value   *uint256.Int   `json:"value"`
}

// Fungible is a ledger of interchangeable units. Minting requires
// MINTER_ROLE and burning requires BURNER_ROLE. An allowance of the maximum
// amount is never decremented
type Fungible struct {
	*ledger.Dispatcher
	name    string
	address common.Address
}

func NewFungible(address common.Address, name string) *Fungible {
	t := &Fungible{
		name:    name,
		address: address,
	}
	t.Dispatcher = ledger.MustNewDispatcher(
		append(access.Methods(), t.methods()...),
		nil,
	)
	return t
}

func (t *Fungible) Address() common.Address {
	return t.address
}

func (t *Fungible) Name() string {
	return t.name
}

func balanceKey(owner common.Address) []byte {
	return ledger.Key("balance", owner)
}

func allowanceKey(owner, spender common.Address) []byte {
	return ledger.Key("allowance", owner, spender)
}

var maxAmount = new(uint256.Int).SetAllOne()

// Initialize grants the default admin role on the ledger to admin
func (t *Fungible) Initialize(f *ledger.Frame, admin common.Address) error {
	return access.Grant(f.Enter(t.address), access.DefaultAdminRole, admin)
}

func (t *Fungible) GrantRole(f *ledger.Frame, role common.Hash, account common.Address) error {
	return access.GrantRole(f.Enter(t.address), role, account)
}

func (t *Fungible) Mint(f *ledger.Frame, to common.Address, amount *uint256.Int) error {
	return mintFT(f.Enter(t.address), to, amount)
}

func (t *Fungible) Burn(f *ledger.Frame, from common.Address, amount *uint256.Int) error {
	return burnFT(f.Enter(t.address), from, amount)
}

func (t *Fungible) Transfer(f *ledger.Frame, to common.Address, amount *uint256.Int) error {
	cf := f.Enter(t.address)
	return moveFT(cf, cf.Caller(), to, amount)
}

func (t *Fungible) TransferFrom(f *ledger.Frame, from, to common.Address, amount *uint256.Int) error {
	return transferFromFT(f.Enter(t.address), from, to, amount)
}

func (t *Fungible) Approve(f *ledger.Frame, spender common.Address, amount *uint256.Int) error {
	return approveFT(f.Enter(t.address), spender, amount)
}

func (t *Fungible) Allowance(f *ledger.Frame, owner, spender common.Address) (*uint256.Int, error) {
	return ledger.GetUint256(f.Enter(t.address), allowanceKey(owner, spender))
}

func (t *Fungible) BalanceOf(f *ledger.Frame, owner common.Address) (*uint256.Int, error) {
	return ledger.GetUint256(f.Enter(t.address), balanceKey(owner))
}

func (t *Fungible) TotalSupply(f *ledger.Frame) (*uint256.Int, error) {
	return ledger.GetUint256(f.Enter(t.address), supplyKey)
}

func addTo(f *ledger.Frame, key []byte, amount *uint256.Int) error {
	cur, err := ledger.GetUint256(f, key)
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(cur, amount)
	if overflow {
		return ledger.NewStateConflictError("amount overflow")
	}
	return ledger.SetUint256(f, key, sum)
}

func subFrom(f *ledger.Frame, key []byte, amount *uint256.Int, reason string) error {
	cur, err := ledger.GetUint256(f, key)
	if err != nil {
		return err
	}
	if cur.Lt(amount) {
		return ledger.NewInsufficientError(reason, cur, amount)
	}
	return ledger.SetUint256(f, key, new(uint256.Int).Sub(cur, amount))
}

func mintFT(f *ledger.Frame, to common.Address, amount *uint256.Int) error {
	if err := access.CheckRole(f, access.MinterRole, f.Caller()); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ledger.ErrInvalidArgument
	}
	if err := addTo(f, supplyKey, amount); err != nil {
		return err
	}
	if err := addTo(f, balanceKey(to), amount); err != nil {
		return err
	}
	return f.Emit("Transfer", AmountEvent{To: to, Value: amount})
}

func burnFT(f *ledger.Frame, from common.Address, amount *uint256.Int) error {
	if err := access.CheckRole(f, access.BurnerRole, f.Caller()); err != nil {
		return err
	}
	if err := subFrom(f, balanceKey(from), amount, "balance"); err != nil {
		return err
	}
	if err := subFrom(f, supplyKey, amount, "supply"); err != nil {
		return err
	}
	return f.Emit("Transfer", AmountEvent{From: from, Value: amount})
}

func moveFT(f *ledger.Frame, from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ledger.ErrInvalidArgument
	}
	if err := subFrom(f, balanceKey(from), amount, "balance"); err != nil {
		return err
	}
	if err := addTo(f, balanceKey(to), amount); err != nil {
		return err
	}
	return f.Emit("Transfer", AmountEvent{From: from, To: to, Value: amount})
}

func transferFromFT(f *ledger.Frame, from, to common.Address, amount *uint256.Int) error {
	spender := f.Caller()
	if spender != from {
		key := allowanceKey(from, spender)
		allowance, err := ledger.GetUint256(f, key)
		if err != nil {
			return err
		}
		if allowance.Lt(amount) {
			return ledger.NewInsufficientError("allowance", allowance, amount)
		}
		if !allowance.Eq(maxAmount) {
			if err := ledger.SetUint256(f, key, new(uint256.Int).Sub(allowance, amount)); err != nil {
				return err
			}
		}
	}
	return moveFT(f, from, to, amount)
}

func approveFT(f *ledger.Frame, spender common.Address, amount *uint256.Int) error {
	if err := ledger.SetUint256(f, allowanceKey(f.Caller(), spender), amount); err != nil {
		return err
	}
	return f.Emit("Approval", AllowanceEvent{
		Owner:   f.Caller(),
		Spender: spender,
		Value:   amount,
	})
}

func addressAmountArgs(args []any) (common.Address, *uint256.Int, error) {
	addr, err := ledger.AddressArg(args, 0)
	if err != nil {
		return common.Address{}, nil, err
	}
	amount, err := ledger.Uint256Arg(args, 1)
	return addr, amount, err
}

func (t *Fungible) methods() []ledger.Method {
	return []ledger.Method{
		{
			Signature: "name()",
			Returns:   []string{"string"},
			Handler: func(*ledger.Frame, []any) ([]any, error) {
				return []any{t.name}, nil
			},
		},
		{
			Signature: "mint(address,uint256)",
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				to, amount, err := addressAmountArgs(args)
				if err != nil {
					return nil, err
				}
				return nil, mintFT(f, to, amount)
			},
		},
		{
			Signature: "burn(address,uint256)",
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				from, amount, err := addressAmountArgs(args)
				if err != nil {
					return nil, err
				}
				return nil, burnFT(f, from, amount)
			},
		},
		{
			Signature: "transfer(address,uint256)",
			Returns:   []string{"bool"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				to, amount, err := addressAmountArgs(args)
				if err != nil {
					return nil, err
				}
				if err := moveFT(f, f.Caller(), to, amount); err != nil {
					return nil, err
				}
				return []any{true}, nil
			},
		},
		{
			Signature: "transferFrom(address,address,uint256)",
			Returns:   []string{"bool"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				from, err := ledger.AddressArg(args, 0)
				if err != nil {
					return nil, err
				}
				to, amount, err := addressAmountArgs(args[1:])
				if err != nil {
					return nil, err
				}
				if err := transferFromFT(f, from, to, amount); err != nil {
					return nil, err
				}
				return []any{true}, nil
			},
		},
		{
			Signature: "approve(address,uint256)",
			Returns:   []string{"bool"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				spender, amount, err := addressAmountArgs(args)
				if err != nil {
					return nil, err
				}
				if err := approveFT(f, spender, amount); err != nil {
					return nil, err
				}
				return []any{true}, nil
			},
		},
		{
			Signature: "allowance(address,address)",
			Returns:   []string{"uint256"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				owner, err := ledger.AddressArg(args, 0)
				if err != nil {
					return nil, err
				}
				spender, err := ledger.AddressArg(args, 1)
				if err != nil {
					return nil, err
				}
				val, err := ledger.GetUint256(f, allowanceKey(owner, spender))
				if err != nil {
					return nil, err
				}
				return []any{val}, nil
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
				val, err := ledger.GetUint256(f, balanceKey(owner))
				if err != nil {
					return nil, err
				}
				return []any{val}, nil
			},
		},
		{
			Signature: "totalSupply()",
			Returns:   []string{"uint256"},
			Handler: func(f *ledger.Frame, _ []any) ([]any, error) {
				val, err := ledger.GetUint256(f, supplyKey)
				if err != nil {
					return nil, err
				}
				return []any{val}, nil
			},
		},
	}
}
