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

package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func argAt[T any](args []any, idx int) (T, error) {
	var zero T
	if idx >= len(args) {
		return zero, fmt.Errorf("%w: missing argument %d", ErrInvalidArgument, idx)
	}
	ret, ok := args[idx].(T)
	if !ok {
		return zero, fmt.Errorf(
			"%w: argument %d has type %T, expected %T",
			ErrInvalidArgument,
			idx,
			args[idx],
			zero,
		)
	}
	return ret, nil
}

func AddressArg(args []any, idx int) (common.Address, error) {
	return argAt[common.Address](args, idx)
}

func BytesArg(args []any, idx int) ([]byte, error) {
	return argAt[[]byte](args, idx)
}

func BoolArg(args []any, idx int) (bool, error) {
	return argAt[bool](args, idx)
}

func Bytes32Arg(args []any, idx int) (common.Hash, error) {
	ret, err := argAt[[32]byte](args, idx)
	return common.Hash(ret), err
}

func Uint256Arg(args []any, idx int) (*uint256.Int, error) {
	val, err := argAt[*big.Int](args, idx)
	if err != nil {
		return nil, err
	}
	ret, overflow := uint256.FromBig(val)
	if overflow || val.Sign() < 0 {
		return nil, fmt.Errorf("%w: argument %d out of range", ErrInvalidArgument, idx)
	}
	return ret, nil
}

// Uint64Arg returns a uint256 argument that must fit in 64 bits, such as a token ID
func Uint64Arg(args []any, idx int) (uint64, error) {
	val, err := argAt[*big.Int](args, idx)
	if err != nil {
		return 0, err
	}
	if !val.IsUint64() {
		return 0, fmt.Errorf("%w: argument %d out of range", ErrInvalidArgument, idx)
	}
	return val.Uint64(), nil
}

// Uint64SliceArg returns a uint256[] argument whose elements must fit in 64 bits
func Uint64SliceArg(args []any, idx int) ([]uint64, error) {
	vals, err := argAt[[]*big.Int](args, idx)
	if err != nil {
		return nil, err
	}
	ret := make([]uint64, len(vals))
	for i, val := range vals {
		if !val.IsUint64() {
			return nil, fmt.Errorf(
				"%w: argument %d element %d out of range",
				ErrInvalidArgument,
				idx,
				i,
			)
		}
		ret[i] = val.Uint64()
	}
	return ret, nil
}
