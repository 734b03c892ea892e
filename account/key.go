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

// Package account implements token-bound accounts: proxy accounts at
// counterfactual addresses whose authority follows the owner of one
// non-fungible token
package account

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/blinklabs-io/lotloot/calldata"
)

var (
	proxyHeader = common.FromHex("0x3d60ad80600a3d3981f3363d3d373d3d3d363d73")
	proxyFooter = common.FromHex("0x5af43d82803e903d91602b57fd5bf3")
)

var bindingTypes = []string{"bytes32", "uint256", "address", "uint256"}

// Key identifies a token-bound account. ChainID and TokenID are limited to
// 64 bits, the range of IDs the token registries issue; call payloads with a
// larger chain or token ID fail with ErrInvalidArgument
type Key struct {
	Implementation common.Address
	TokenContract  common.Address
	Salt           common.Hash
	ChainID        uint64
	TokenID        uint64
}

// SaltFromUint64 returns the salt for a small integer, such as a token ID
func SaltFromUint64(v uint64) common.Hash {
	var ret common.Hash
	binary.BigEndian.PutUint64(ret[common.HashLength-8:], v)
	return ret
}

func (k Key) String() string {
	return fmt.Sprintf(
		"%s/%d/%s/%d/%s",
		k.Implementation.Hex(),
		k.ChainID,
		k.TokenContract.Hex(),
		k.TokenID,
		k.Salt.Hex(),
	)
}

// binding is the immutable data stored with the account proxy
func (k Key) binding() []byte {
	args, _ := calldata.Arguments(bindingTypes)
	ret, err := calldata.Pack(args, k.Salt, k.ChainID, k.TokenContract, k.TokenID)
	if err != nil {
		// All argument types are fixed
		panic(err)
	}
	return ret
}

// initCode returns the proxy creation code for the key
func (k Key) initCode() []byte {
	binding := k.binding()
	ret := make([]byte, 0, len(proxyHeader)+common.AddressLength+len(proxyFooter)+len(binding))
	ret = append(ret, proxyHeader...)
	ret = append(ret, k.Implementation.Bytes()...)
	ret = append(ret, proxyFooter...)
	ret = append(ret, binding...)
	return ret
}

// ComputeAddress returns the address of the account for key as deployed by
// the registry at registry. The result does not depend on whether the
// account exists
func ComputeAddress(registry common.Address, key Key) common.Address {
	return crypto.CreateAddress2(
		registry,
		key.Salt,
		crypto.Keccak256(key.initCode()),
	)
}

// decodeBinding recovers the chain ID, token contract and token ID from
// the immutable data of an account proxy
func decodeBinding(data []byte) (uint64, common.Address, uint64, error) {
	vals, err := calldata.Decode(bindingTypes, data)
	if err != nil {
		return 0, common.Address{}, 0, fmt.Errorf("decode account binding: %w", err)
	}
	chainID, ok1 := vals[1].(*big.Int)
	tokenContract, ok2 := vals[2].(common.Address)
	tokenID, ok3 := vals[3].(*big.Int)
	if !ok1 || !ok2 || !ok3 || !chainID.IsUint64() || !tokenID.IsUint64() {
		return 0, common.Address{}, 0, errors.New("malformed account binding")
	}
	return chainID.Uint64(), tokenContract, tokenID.Uint64(), nil
}
