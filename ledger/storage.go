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
	"encoding/binary"
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// GetRecord decodes the CBOR record stored under key into dest. It reports
// whether the record exists
func GetRecord(f *Frame, key []byte, dest any) (bool, error) {
	val, ok, err := f.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if _, err := cbor.Decode(val, dest); err != nil {
		return false, fmt.Errorf("decode record %x: %w", key, err)
	}
	return true, nil
}

// SetRecord stores value under key as CBOR
func SetRecord(f *Frame, key []byte, value any) error {
	data, err := cbor.Encode(value)
	if err != nil {
		return fmt.Errorf("encode record %x: %w", key, err)
	}
	return f.Set(key, data)
}

// GetUint64 returns the counter stored under key, or 0
func GetUint64(f *Frame, key []byte) (uint64, error) {
	val, ok, err := f.Get(key)
	if err != nil || !ok {
		return 0, err
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("corrupt counter %x", key)
	}
	return binary.BigEndian.Uint64(val), nil
}

func SetUint64(f *Frame, key []byte, val uint64) error {
	return f.Set(key, binary.BigEndian.AppendUint64(nil, val))
}

// GetUint256 returns the amount stored under key, or 0
func GetUint256(f *Frame, key []byte) (*uint256.Int, error) {
	val, _, err := f.Get(key)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(val), nil
}

// SetUint256 stores an amount under key. Zero amounts are deleted
func SetUint256(f *Frame, key []byte, val *uint256.Int) error {
	if val.IsZero() {
		return f.Delete(key)
	}
	return f.Set(key, val.Bytes())
}

// GetAddress returns the address stored under key, or the zero address
func GetAddress(f *Frame, key []byte) (common.Address, error) {
	val, _, err := f.Get(key)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(val), nil
}

// SetAddress stores an address under key. The zero address is deleted
func SetAddress(f *Frame, key []byte, addr common.Address) error {
	if addr == (common.Address{}) {
		return f.Delete(key)
	}
	return f.Set(key, addr.Bytes())
}

// GetBool returns the flag stored under key
func GetBool(f *Frame, key []byte) (bool, error) {
	_, ok, err := f.Get(key)
	return ok, err
}

// SetBool stores a flag under key. False flags are deleted
func SetBool(f *Frame, key []byte, val bool) error {
	if !val {
		return f.Delete(key)
	}
	return f.Set(key, []byte{1})
}
