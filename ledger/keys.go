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

	"github.com/ethereum/go-ethereum/common"
)

const (
	keyPrefixStorage = "s"
	keyPrefixBalance = "b"
	keyPrefixCode    = "c"
	keyPrefixMeta    = "m"

	keySeparator = '/'
)

var metaKeyTime = Key(keyPrefixMeta, "time")

// Key joins the given parts into a storage key. Parts may be strings, byte
// slices, addresses, hashes or unsigned integers (encoded big-endian so keys
// sort numerically). Variable-length parts should only be constant names, so
// that prefixes stay unambiguous
func Key(parts ...any) []byte {
	ret := make([]byte, 0, 64)
	for i, part := range parts {
		if i > 0 {
			ret = append(ret, keySeparator)
		}
		switch v := part.(type) {
		case string:
			ret = append(ret, v...)
		case []byte:
			ret = append(ret, v...)
		case common.Address:
			ret = append(ret, v.Bytes()...)
		case common.Hash:
			ret = append(ret, v.Bytes()...)
		case uint64:
			ret = binary.BigEndian.AppendUint64(ret, v)
		case uint32:
			ret = binary.BigEndian.AppendUint32(ret, v)
		default:
			panic(fmt.Sprintf("unsupported key part type %T", part))
		}
	}
	return ret
}

// KeyPrefix is like Key but ends with a separator, for iterating over all
// keys below the given parts
func KeyPrefix(parts ...any) []byte {
	return append(Key(parts...), keySeparator)
}

func storageKey(addr common.Address, key []byte) []byte {
	return append(KeyPrefix(keyPrefixStorage, addr), key...)
}

func balanceKey(addr common.Address) []byte {
	return Key(keyPrefixBalance, addr)
}

func codeKey(addr common.Address) []byte {
	return Key(keyPrefixCode, addr)
}

// Uint64FromKey decodes a uint64 key part, such as a token ID, from the start of key
func Uint64FromKey(key []byte) uint64 {
	if len(key) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[:8])
}
