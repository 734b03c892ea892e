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

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/blinklabs-io/lotloot/database/types"
	"github.com/blinklabs-io/lotloot/ledger"
)

const LedgerServiceName = "lotloot.v1.LedgerService"

// Procedure paths of the ledger service. Requests and responses are
// google.protobuf.Struct messages
const (
	CallProcedure       = "/" + LedgerServiceName + "/Call"
	StaticCallProcedure = "/" + LedgerServiceName + "/StaticCall"
	EventsProcedure     = "/" + LedgerServiceName + "/Events"
	ContractsProcedure  = "/" + LedgerServiceName + "/Contracts"
)

type unaryFunc func(
	context.Context,
	*connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error)

type route struct {
	handler unaryFunc
	path    string
}

type ledgerService struct {
	ls        *ledger.LedgerState
	contracts map[string]common.Address
}

func (s *ledgerService) routes() []route {
	return []route{
		{path: CallProcedure, handler: s.call},
		{path: StaticCallProcedure, handler: s.staticCall},
		{path: EventsProcedure, handler: s.events},
		{path: ContractsProcedure, handler: s.listContracts},
	}
}

// call runs {caller, target, data, value} as one operation and returns {result}
func (s *ledgerService) call(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	fields := req.Msg.GetFields()
	caller, err := addressField(fields, "caller")
	if err != nil {
		return nil, err
	}
	target, err := addressField(fields, "target")
	if err != nil {
		return nil, err
	}
	data, err := bytesField(fields, "data")
	if err != nil {
		return nil, err
	}
	value, err := amountField(fields, "value")
	if err != nil {
		return nil, err
	}
	ret, err := s.ls.Call(ctx, caller, target, value, data)
	if err != nil {
		return nil, ledgerError(err)
	}
	return resultResponse(ret)
}

// staticCall runs {target, data} read-only and returns {result}
func (s *ledgerService) staticCall(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	fields := req.Msg.GetFields()
	target, err := addressField(fields, "target")
	if err != nil {
		return nil, err
	}
	data, err := bytesField(fields, "data")
	if err != nil {
		return nil, err
	}
	ret, err := s.ls.StaticCall(ctx, target, data)
	if err != nil {
		return nil, ledgerError(err)
	}
	return resultResponse(ret)
}

// events returns journaled events matching the optional {operationId,
// contract, name, fromTimestamp, toTimestamp, limit} filter
func (s *ledgerService) events(
	_ context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	fields := req.Msg.GetFields()
	var filter types.EventFilter
	filter.OperationID = fields["operationId"].GetStringValue()
	filter.Name = fields["name"].GetStringValue()
	if _, ok := fields["contract"]; ok {
		contract, err := addressField(fields, "contract")
		if err != nil {
			return nil, err
		}
		filter.Contract = contract.Bytes()
	}
	filter.FromTimestamp = uint64(fields["fromTimestamp"].GetNumberValue())
	filter.ToTimestamp = uint64(fields["toTimestamp"].GetNumberValue())
	filter.Limit = int(fields["limit"].GetNumberValue())
	events, err := s.ls.Events(filter)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	list := make([]any, 0, len(events))
	for _, evt := range events {
		var data any
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			return nil, connect.NewError(
				connect.CodeInternal,
				fmt.Errorf("decode event %d: %w", evt.ID, err),
			)
		}
		list = append(list, map[string]any{
			"operationId": evt.OperationID,
			"contract":    common.BytesToAddress(evt.Contract).Hex(),
			"name":        evt.Name,
			"data":        data,
			"timestamp":   evt.Timestamp,
			"sequence":    evt.Sequence,
		})
	}
	return structResponse(map[string]any{"events": list})
}

// listContracts returns the address of every deployed contract by name
func (s *ledgerService) listContracts(
	context.Context,
	*connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	ret := make(map[string]any, len(s.contracts))
	for name, addr := range s.contracts {
		ret[name] = addr.Hex()
	}
	return structResponse(ret)
}

func resultResponse(ret []byte) (*connect.Response[structpb.Struct], error) {
	return structResponse(map[string]any{"result": hexutil.Encode(ret)})
}

func structResponse(val map[string]any) (*connect.Response[structpb.Struct], error) {
	msg, err := structpb.NewStruct(val)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func invalidField(name string, err error) error {
	return connect.NewError(
		connect.CodeInvalidArgument,
		fmt.Errorf("field %s: %w", name, err),
	)
}

func addressField(fields map[string]*structpb.Value, name string) (common.Address, error) {
	val := fields[name].GetStringValue()
	if !common.IsHexAddress(val) {
		return common.Address{}, invalidField(name, errors.New("not a hex address"))
	}
	return common.HexToAddress(val), nil
}

func bytesField(fields map[string]*structpb.Value, name string) ([]byte, error) {
	val := fields[name].GetStringValue()
	if val == "" {
		return nil, nil
	}
	ret, err := hexutil.Decode(val)
	if err != nil {
		return nil, invalidField(name, err)
	}
	return ret, nil
}

func amountField(fields map[string]*structpb.Value, name string) (*uint256.Int, error) {
	val := fields[name].GetStringValue()
	if val == "" {
		return new(uint256.Int), nil
	}
	ret, err := uint256.FromDecimal(val)
	if err != nil {
		return nil, invalidField(name, err)
	}
	return ret, nil
}

// ledgerError maps a ledger error onto the closest connect code
func ledgerError(err error) error {
	var code connect.Code
	switch ledger.ErrorKind(err) {
	case "authorization", "read_only":
		code = connect.CodePermissionDenied
	case "not_found":
		code = connect.CodeNotFound
	case "state_conflict", "insufficient":
		code = connect.CodeFailedPrecondition
	case "invalid_argument":
		code = connect.CodeInvalidArgument
	case "call_depth":
		code = connect.CodeResourceExhausted
	case "external_call":
		code = connect.CodeAborted
	default:
		code = connect.CodeInternal
	}
	return connect.NewError(code, err)
}
