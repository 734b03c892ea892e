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

// Package access implements role based permissions for in-process
// contracts. Roles are stored in the storage of the contract they guard
package access

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/blinklabs-io/lotloot/ledger"
)

var (
	// DefaultAdminRole administers every other role
	DefaultAdminRole = common.Hash{}
	AdminRole        = crypto.Keccak256Hash([]byte("ADMIN_ROLE"))
	MinterRole       = crypto.Keccak256Hash([]byte("MINTER_ROLE"))
	BurnerRole       = crypto.Keccak256Hash([]byte("BURNER_ROLE"))
	OperatorRole     = crypto.Keccak256Hash([]byte("OPERATOR_ROLE"))
)

var roleNames = map[common.Hash]string{
	DefaultAdminRole: "DEFAULT_ADMIN_ROLE",
	AdminRole:        "ADMIN_ROLE",
	MinterRole:       "MINTER_ROLE",
	BurnerRole:       "BURNER_ROLE",
	OperatorRole:     "OPERATOR_ROLE",
}

// RoleName returns the human readable name of a well-known role, or its hex
// encoding
func RoleName(role common.Hash) string {
	if name, ok := roleNames[role]; ok {
		return name
	}
	return role.Hex()
}

type RoleEvent struct {
	Role    common.Hash    `json:"role"`
	Account common.Address `json:"account"`
	Sender  common.Address `json:"sender"`
}

func roleKey(role common.Hash, account common.Address) []byte {
	return ledger.Key("role", role, account)
}

// HasRole reports whether account holds role on the contract running in f
func HasRole(f *ledger.Frame, role common.Hash, account common.Address) (bool, error) {
	return ledger.GetBool(f, roleKey(role, account))
}

// CheckRole fails with an AuthorizationError unless account holds role
func CheckRole(f *ledger.Frame, role common.Hash, account common.Address) error {
	ok, err := HasRole(f, role, account)
	if err != nil {
		return err
	}
	if !ok {
		return ledger.NewAuthorizationError(account, "missing role "+RoleName(role))
	}
	return nil
}

// RoleAdmin returns the role whose holders may grant and revoke role
func RoleAdmin(common.Hash) common.Hash {
	return DefaultAdminRole
}

// Grant gives role to account without checking the caller. It is used while
// initializing a contract
func Grant(f *ledger.Frame, role common.Hash, account common.Address) error {
	ok, err := HasRole(f, role, account)
	if err != nil || ok {
		return err
	}
	if err := ledger.SetBool(f, roleKey(role, account), true); err != nil {
		return err
	}
	return f.Emit("RoleGranted", RoleEvent{
		Role:    role,
		Account: account,
		Sender:  f.Caller(),
	})
}

// Revoke removes role from account without checking the caller
func Revoke(f *ledger.Frame, role common.Hash, account common.Address) error {
	ok, err := HasRole(f, role, account)
	if err != nil || !ok {
		return err
	}
	if err := ledger.SetBool(f, roleKey(role, account), false); err != nil {
		return err
	}
	return f.Emit("RoleRevoked", RoleEvent{
		Role:    role,
		Account: account,
		Sender:  f.Caller(),
	})
}

// GrantRole gives role to account. The caller must hold the role's admin role
func GrantRole(f *ledger.Frame, role common.Hash, account common.Address) error {
	if err := CheckRole(f, RoleAdmin(role), f.Caller()); err != nil {
		return err
	}
	return Grant(f, role, account)
}

// RevokeRole removes role from account. The caller must hold the role's admin role
func RevokeRole(f *ledger.Frame, role common.Hash, account common.Address) error {
	if err := CheckRole(f, RoleAdmin(role), f.Caller()); err != nil {
		return err
	}
	return Revoke(f, role, account)
}

// Methods returns the externally callable role management methods, for
// inclusion in a contract's dispatcher
func Methods() []ledger.Method {
	roleArgs := func(args []any) (common.Hash, common.Address, error) {
		role, err := ledger.Bytes32Arg(args, 0)
		if err != nil {
			return common.Hash{}, common.Address{}, err
		}
		account, err := ledger.AddressArg(args, 1)
		return role, account, err
	}
	return []ledger.Method{
		{
			Signature: "hasRole(bytes32,address)",
			Returns:   []string{"bool"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				role, account, err := roleArgs(args)
				if err != nil {
					return nil, err
				}
				ok, err := HasRole(f, role, account)
				if err != nil {
					return nil, err
				}
				return []any{ok}, nil
			},
		},
		{
			Signature: "grantRole(bytes32,address)",
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				role, account, err := roleArgs(args)
				if err != nil {
					return nil, err
				}
				return nil, GrantRole(f, role, account)
			},
		},
		{
			Signature: "revokeRole(bytes32,address)",
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				role, account, err := roleArgs(args)
				if err != nil {
					return nil, err
				}
				return nil, RevokeRole(f, role, account)
			},
		},
		{
			Signature: "getRoleAdmin(bytes32)",
			Returns:   []string{"bytes32"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				role, err := ledger.Bytes32Arg(args, 0)
				if err != nil {
					return nil, err
				}
				return []any{RoleAdmin(role)}, nil
			},
		},
	}
}
