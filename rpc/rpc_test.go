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

package rpc_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"connectrpc.com/connect"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/blinklabs-io/lotloot/calldata"
	"github.com/blinklabs-io/lotloot/internal/test/testutil"
	"github.com/blinklabs-io/lotloot/ledger"
	"github.com/blinklabs-io/lotloot/rpc"
	"github.com/blinklabs-io/lotloot/token"
)

var (
	lootAddr = common.HexToAddress("0x00000000000000000000000000000000000c0002")
	admin    = common.HexToAddress("0x0000000000000000000000000000000000000ad1")
	player   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

type fixture struct {
	server *rpc.Server
	http   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tl := testutil.NewLedgerState(t)
	loot := token.NewFungible(lootAddr, "Loot")
	require.NoError(t, tl.Deploy(lootAddr, loot))
	require.NoError(t, tl.Execute(context.Background(), admin, func(f *ledger.Frame) error {
		return loot.Initialize(f, admin)
	}))
	server, err := rpc.New(rpc.Config{
		LedgerState: tl.LedgerState,
		Contracts:   map[string]common.Address{"loot": lootAddr},
	})
	require.NoError(t, err)
	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)
	return &fixture{
		server: server,
		http:   httpServer,
	}
}

func (fx *fixture) invoke(procedure string, fields map[string]any) (*structpb.Struct, error) {
	client := connect.NewClient[structpb.Struct, structpb.Struct](
		fx.http.Client(),
		fx.http.URL+procedure,
	)
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	resp, err := client.CallUnary(context.Background(), connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (fx *fixture) balance(t *testing.T, addr common.Address) uint64 {
	t.Helper()
	resp, err := fx.invoke(rpc.StaticCallProcedure, map[string]any{
		"target": lootAddr.Hex(),
		"data":   hexutil.Encode(calldata.MustEncode("balanceOf(address)", addr)),
	})
	require.NoError(t, err)
	ret, err := hexutil.Decode(resp.GetFields()["result"].GetStringValue())
	require.NoError(t, err)
	bal, err := calldata.DecodeUint64(ret)
	require.NoError(t, err)
	return bal
}

func TestCallAndStaticCall(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.invoke(rpc.CallProcedure, map[string]any{
		"caller": admin.Hex(),
		"target": lootAddr.Hex(),
		"data":   hexutil.Encode(calldata.MustEncode("mint(address,uint256)", player, uint64(5))),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), fx.balance(t, player))
}

func TestCallErrorCodes(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.invoke(rpc.CallProcedure, map[string]any{
		"caller": player.Hex(),
		"target": lootAddr.Hex(),
		"data":   hexutil.Encode(calldata.MustEncode("mint(address,uint256)", player, uint64(5))),
	})
	require.Error(t, err)
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	assert.Equal(t, uint64(0), fx.balance(t, player))

	_, err = fx.invoke(rpc.CallProcedure, map[string]any{
		"caller": player.Hex(),
		"target": lootAddr.Hex(),
		"data":   hexutil.Encode(calldata.MustEncode("transfer(address,uint256)", admin, uint64(1))),
	})
	require.Error(t, err)
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	_, err = fx.invoke(rpc.CallProcedure, map[string]any{
		"caller": "somebody",
		"target": lootAddr.Hex(),
	})
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = fx.invoke(rpc.StaticCallProcedure, map[string]any{
		"target": lootAddr.Hex(),
		"data":   "0xdeadbeef",
	})
	require.Error(t, err)
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}

func TestEvents(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.invoke(rpc.CallProcedure, map[string]any{
		"caller": admin.Hex(),
		"target": lootAddr.Hex(),
		"data":   hexutil.Encode(calldata.MustEncode("mint(address,uint256)", player, uint64(7))),
	})
	require.NoError(t, err)

	resp, err := fx.invoke(rpc.EventsProcedure, map[string]any{
		"name":     "Transfer",
		"contract": lootAddr.Hex(),
	})
	require.NoError(t, err)
	events := resp.GetFields()["events"].GetListValue().GetValues()
	require.Len(t, events, 1)
	evt := events[0].GetStructValue().GetFields()
	assert.Equal(t, "Transfer", evt["name"].GetStringValue())
	assert.Equal(t, lootAddr.Hex(), evt["contract"].GetStringValue())
	data := evt["data"].GetStructValue().GetFields()
	assert.Equal(t, "7", data["value"].GetStringValue())
}

func TestContracts(t *testing.T) {
	fx := newFixture(t)
	resp, err := fx.invoke(rpc.ContractsProcedure, nil)
	require.NoError(t, err)
	assert.Equal(t, lootAddr.Hex(), resp.GetFields()["loot"].GetStringValue())
}

func healthStatus(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Post(
		url+"/grpc.health.v1.Health/Check",
		"application/json",
		strings.NewReader(`{"service":"lotloot.v1.LedgerService"}`),
	)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHealthAndListener(t *testing.T) {
	fx := newFixture(t)
	assert.Contains(t, healthStatus(t, fx.http.URL), `"SERVING"`)

	require.Nil(t, fx.server.Addr())
	require.NoError(t, fx.server.Start(context.Background()))
	require.NotNil(t, fx.server.Addr())
	require.Error(t, fx.server.Start(context.Background()))
	assert.Contains(t, healthStatus(t, "http://"+fx.server.Addr().String()), `"SERVING"`)

	require.NoError(t, fx.server.Stop(context.Background()))
	assert.Nil(t, fx.server.Addr())
	assert.Contains(t, healthStatus(t, fx.http.URL), `"NOT_SERVING"`)
}
