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
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/blinklabs-io/lotloot/calldata"
	"github.com/blinklabs-io/lotloot/ledger"
)

type ExecutedEvent struct {
	Target common.Address `json:"target"`
	Value  *uint256.Int   `json:"value"`
	Nonce  uint64         `json:"nonce"`
}

var nonceKey = ledger.Key("nonce")

// Implementation is the code shared by every token-bound account. It runs
// with the account proxy as its own address
type Implementation struct {
	*ledger.Dispatcher
}

func NewImplementation() *Implementation {
	impl := &Implementation{}
	impl.Dispatcher = ledger.MustNewDispatcher(
		[]ledger.Method{
			{
				Signature: "token()",
				Returns:   []string{"uint256", "address", "uint256"},
				Handler: func(f *ledger.Frame, _ []any) ([]any, error) {
					chainID, tokenContract, tokenID, err := binding(f)
					if err != nil {
						return nil, err
					}
					return []any{chainID, tokenContract, tokenID}, nil
				},
			},
			{
				Signature: "owner()",
				Returns:   []string{"address"},
				Handler: func(f *ledger.Frame, _ []any) ([]any, error) {
					owner, err := resolveOwner(f)
					if err != nil {
						return nil, err
					}
					return []any{owner}, nil
				},
			},
			{
				Signature: "nonce()",
				Returns:   []string{"uint256"},
				Handler: func(f *ledger.Frame, _ []any) ([]any, error) {
					nonce, err := ledger.GetUint64(f, nonceKey)
					if err != nil {
						return nil, err
					}
					return []any{nonce}, nil
				},
			},
			{
				Signature: "executeCall(address,uint256,bytes)",
				Returns:   []string{"bytes"},
				Handler: func(f *ledger.Frame, args []any) ([]any, error) {
					target, err := ledger.AddressArg(args, 0)
					if err != nil {
						return nil, err
					}
					value, err := ledger.Uint256Arg(args, 1)
					if err != nil {
						return nil, err
					}
					payload, err := ledger.BytesArg(args, 2)
					if err != nil {
						return nil, err
					}
					ret, err := executeCall(f, target, value, payload)
					if err != nil {
						return nil, err
					}
					if ret == nil {
						ret = []byte{}
					}
					return []any{ret}, nil
				},
			},
		},
		// Plain value transfers are accepted
		func(*ledger.Frame) error { return nil },
	)
	return impl
}

func binding(f *ledger.Frame) (uint64, common.Address, uint64, error) {
	code, err := f.Code()
	if err != nil {
		return 0, common.Address{}, 0, err
	}
	if code == nil {
		return 0, common.Address{}, 0, ledger.NewNotFoundError("account", f.Self().Hex())
	}
	return decodeBinding(code.Immutable)
}

// resolveOwner returns the current owner of the bound token. It is the zero
// address when the account is bound to another chain
func resolveOwner(f *ledger.Frame) (common.Address, error) {
	chainID, tokenContract, tokenID, err := binding(f)
	if err != nil {
		return common.Address{}, err
	}
	if chainID != f.ChainID() {
		return common.Address{}, nil
	}
	ret, err := f.Call(tokenContract, nil, calldata.MustEncode("ownerOf(uint256)", tokenID))
	if err != nil {
		return common.Address{}, err
	}
	return calldata.DecodeAddress(ret)
}

func executeCall(
	f *ledger.Frame,
	target common.Address,
	value *uint256.Int,
	payload []byte,
) ([]byte, error) {
	release, err := f.NonReentrant()
	if err != nil {
		return nil, err
	}
	defer release()
	owner, err := resolveOwner(f)
	if err != nil {
		return nil, err
	}
	if owner == (common.Address{}) || f.Caller() != owner {
		return nil, ledger.NewAuthorizationError(f.Caller(), "not token owner")
	}
	nonce, err := ledger.GetUint64(f, nonceKey)
	if err != nil {
		return nil, err
	}
	nonce++
	// The nonce moves before control leaves the account
	if err := ledger.SetUint64(f, nonceKey, nonce); err != nil {
		return nil, err
	}
	ret, err := f.Call(target, value, payload)
	if err != nil {
		return nil, err
	}
	if err := f.Emit("Executed", ExecutedEvent{
		Target: target,
		Value:  value,
		Nonce:  nonce,
	}); err != nil {
		return nil, err
	}
	return ret, nil
}
