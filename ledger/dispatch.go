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
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/blinklabs-io/lotloot/calldata"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

// MethodHandler handles a decoded call and returns the values to encode as
// the call result
type MethodHandler func(f *Frame, args []any) ([]any, error)

// Method describes one externally callable function of a contract
type Method struct {
	Handler   MethodHandler
	Signature string
	Returns   []string
}

type dispatchMethod struct {
	handler   MethodHandler
	signature string
	inputs    abi.Arguments
	outputs   abi.Arguments
}

// Dispatcher routes call payloads to method handlers by function selector
type Dispatcher struct {
	methods map[[calldata.SelectorLength]byte]*dispatchMethod
	receive func(f *Frame) error
}

// NewDispatcher builds a dispatcher for the given methods. The receive
// handler, if any, handles calls with an empty payload
func NewDispatcher(
	methods []Method,
	receive func(f *Frame) error,
) (*Dispatcher, error) {
	d := &Dispatcher{
		methods: make(map[[calldata.SelectorLength]byte]*dispatchMethod, len(methods)),
		receive: receive,
	}
	for _, m := range methods {
		_, inputs, err := calldata.ParseSignature(m.Signature)
		if err != nil {
			return nil, err
		}
		outputs, err := calldata.Arguments(m.Returns)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", m.Signature, err)
		}
		selector := calldata.Selector(m.Signature)
		if existing, ok := d.methods[selector]; ok {
			return nil, fmt.Errorf(
				"selector clash between %s and %s",
				existing.signature,
				m.Signature,
			)
		}
		d.methods[selector] = &dispatchMethod{
			handler:   m.Handler,
			signature: m.Signature,
			inputs:    inputs,
			outputs:   outputs,
		}
	}
	return d, nil
}

// MustNewDispatcher is like NewDispatcher but panics on an invalid method table
func MustNewDispatcher(methods []Method, receive func(f *Frame) error) *Dispatcher {
	d, err := NewDispatcher(methods, receive)
	if err != nil {
		panic(err)
	}
	return d
}

// Invoke decodes the payload, runs the matching handler and encodes its results
func (d *Dispatcher) Invoke(f *Frame, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		if d.receive == nil {
			return nil, NewNotFoundError("method", "receive")
		}
		return nil, d.receive(f)
	}
	if len(payload) < calldata.SelectorLength {
		return nil, fmt.Errorf("%w: short selector", ErrMalformedCall)
	}
	selector := [calldata.SelectorLength]byte(payload[:calldata.SelectorLength])
	m, ok := d.methods[selector]
	if !ok {
		return nil, NewNotFoundError("method", "0x"+hex.EncodeToString(selector[:]))
	}
	args, err := m.inputs.Unpack(payload[calldata.SelectorLength:])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedCall, m.signature, err)
	}
	results, err := m.handler(f, args)
	if err != nil {
		return nil, err
	}
	if len(m.outputs) == 0 {
		return nil, nil
	}
	return calldata.Pack(m.outputs, results...)
}

// Signatures returns the signatures of all methods, sorted
func (d *Dispatcher) Signatures() []string {
	ret := make([]string, 0, len(d.methods))
	for _, m := range d.methods {
		ret = append(ret, m.signature)
	}
	slices.Sort(ret)
	return ret
}
