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

package economy

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type ParkedEvent struct {
	Owner common.Address `json:"owner"`
	Car   uint64         `json:"car"`
	Park  uint64         `json:"park"`
	Start uint64         `json:"start"`
}

type UnparkedEvent struct {
	Reward  *uint256.Int   `json:"reward"`
	Owner   common.Address `json:"owner"`
	Car     uint64         `json:"car"`
	Park    uint64         `json:"park"`
	Elapsed uint64         `json:"elapsed"`
}

type FinedEvent struct {
	From    common.Address `json:"from"`
	To      common.Address `json:"to"`
	Car     uint64         `json:"car"`
	Park    uint64         `json:"park"`
	Elapsed uint64         `json:"elapsed"`
}

// LoadEvent records a component moving into or out of a car's account
type LoadEvent struct {
	Account   common.Address `json:"account"`
	Holder    common.Address `json:"holder"`
	Car       uint64         `json:"car"`
	Component uint64         `json:"component"`
}
