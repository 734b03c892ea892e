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

// Package calldata builds and parses the opaque payloads carried by contract
// calls: a 4-byte function selector followed by ABI-encoded arguments.
package calldata

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

const SelectorLength = 4

var ErrMalformedSignature = errors.New("malformed function signature")

// Selector returns the 4-byte function selector for the given signature
func Selector(signature string) [SelectorLength]byte {
	var ret [SelectorLength]byte
	copy(ret[:], crypto.Keccak256([]byte(canonical(signature)))[:SelectorLength])
	return ret
}

// ParseSignature splits a signature such as "transfer(address,uint256)" into
// its function name and argument list
func ParseSignature(signature string) (string, abi.Arguments, error) {
	sig := canonical(signature)
	open := strings.IndexByte(sig, '(')
	if open <= 0 || !strings.HasSuffix(sig, ")") {
		return "", nil, fmt.Errorf("%w: %q", ErrMalformedSignature, signature)
	}
	name := sig[:open]
	inner := sig[open+1 : len(sig)-1]
	// Tuple arguments are not supported
	if strings.ContainsAny(inner, "()") {
		return "", nil, fmt.Errorf(
			"%w: tuple arguments not supported: %q",
			ErrMalformedSignature,
			signature,
		)
	}
	var types []string
	if inner != "" {
		types = strings.Split(inner, ",")
	}
	args, err := Arguments(types)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrMalformedSignature, err)
	}
	return name, args, nil
}

// Arguments builds an ABI argument list from solidity type names
func Arguments(types []string) (abi.Arguments, error) {
	ret := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		if t == "" {
			return nil, errors.New("empty argument type")
		}
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			return nil, fmt.Errorf("argument type %q: %w", t, err)
		}
		ret = append(ret, abi.Argument{Type: typ})
	}
	return ret, nil
}

// Encode builds the payload for calling the function with the given signature.
// Unsigned integer arguments wider than 64 bits may be passed as uint64, int,
// *uint256.Int or *big.Int
func Encode(signature string, args ...any) ([]byte, error) {
	_, inputs, err := ParseSignature(signature)
	if err != nil {
		return nil, err
	}
	packed, err := Pack(inputs, args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", canonical(signature), err)
	}
	selector := Selector(signature)
	ret := make([]byte, 0, SelectorLength+len(packed))
	ret = append(ret, selector[:]...)
	ret = append(ret, packed...)
	return ret, nil
}

// MustEncode is like Encode but panics on error. It is intended for
// signatures and arguments known to be valid at compile time
func MustEncode(signature string, args ...any) []byte {
	ret, err := Encode(signature, args...)
	if err != nil {
		panic(err)
	}
	return ret
}

// Pack ABI-encodes values for the given arguments after normalizing integer types
func Pack(args abi.Arguments, values ...any) ([]byte, error) {
	if len(values) != len(args) {
		return nil, fmt.Errorf(
			"argument count mismatch: expected %d, got %d",
			len(args),
			len(values),
		)
	}
	normalized := make([]any, len(values))
	for i, v := range values {
		nv, err := normalize(args[i].Type, v)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		normalized[i] = nv
	}
	return args.Pack(normalized...)
}

// Decode unpacks ABI-encoded data (without selector) using solidity type names
func Decode(types []string, data []byte) ([]any, error) {
	args, err := Arguments(types)
	if err != nil {
		return nil, err
	}
	return args.Unpack(data)
}

// DecodeAddress unpacks a single address return value
func DecodeAddress(data []byte) (common.Address, error) {
	vals, err := Decode([]string{"address"}, data)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := vals[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected type %T", vals[0])
	}
	return addr, nil
}

// DecodeUint64 unpacks a single uint256 return value that fits in 64 bits
func DecodeUint64(data []byte) (uint64, error) {
	vals, err := Decode([]string{"uint256"}, data)
	if err != nil {
		return 0, err
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected type %T", vals[0])
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("value %s overflows uint64", v)
	}
	return v.Uint64(), nil
}

func canonical(signature string) string {
	return strings.Join(strings.Fields(signature), "")
}

func normalize(t abi.Type, v any) (any, error) {
	switch t.T {
	case abi.UintTy, abi.IntTy:
		if t.Size <= 64 {
			return v, nil
		}
		return toBig(v)
	case abi.SliceTy, abi.ArrayTy:
		if t.Elem == nil || (t.Elem.T != abi.UintTy && t.Elem.T != abi.IntTy) ||
			t.Elem.Size <= 64 {
			return v, nil
		}
		vals, ok := v.([]uint64)
		if !ok {
			return v, nil
		}
		ret := make([]*big.Int, len(vals))
		for i, val := range vals {
			ret[i] = new(big.Int).SetUint64(val)
		}
		return ret, nil
	case abi.FixedBytesTy:
		if h, ok := v.(common.Hash); ok && t.Size == common.HashLength {
			return [common.HashLength]byte(h), nil
		}
		return v, nil
	default:
		return v, nil
	}
}

func toBig(v any) (*big.Int, error) {
	switch val := v.(type) {
	case *big.Int:
		if val == nil {
			return new(big.Int), nil
		}
		return val, nil
	case *uint256.Int:
		if val == nil {
			return new(big.Int), nil
		}
		return val.ToBig(), nil
	case uint64:
		return new(big.Int).SetUint64(val), nil
	case uint:
		return new(big.Int).SetUint64(uint64(val)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(val)), nil
	case int:
		return big.NewInt(int64(val)), nil
	case int64:
		return big.NewInt(val), nil
	default:
		return nil, fmt.Errorf("cannot use %T as integer", v)
	}
}
