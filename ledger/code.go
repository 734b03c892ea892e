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
	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/ethereum/go-ethereum/common"
)

// Contract is code that can be invoked with an opaque call payload
type Contract interface {
	Invoke(f *Frame, payload []byte) ([]byte, error)
}

// Code is the stored code record of a proxy deployed at runtime. Calls to the
// proxy run the implementation with the proxy as the executing address
type Code struct {
	cbor.StructAsArray
	Implementation common.Address
	Immutable      []byte
}
