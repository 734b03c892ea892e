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
	"github.com/blinklabs-io/lotloot/ledger"
)

func uint64Args(args []any, count int) ([]uint64, error) {
	ret := make([]uint64, count)
	for i := range ret {
		v, err := ledger.Uint64Arg(args, i)
		if err != nil {
			return nil, err
		}
		ret[i] = v
	}
	return ret, nil
}

func (o *Orchestrator) methods() []ledger.Method {
	return []ledger.Method{
		{
			Signature: "parkCar(uint256,uint256)",
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				ids, err := uint64Args(args, 2)
				if err != nil {
					return nil, err
				}
				return nil, o.parkCar(f, ids[0], ids[1])
			},
		},
		{
			Signature: "viewCarOnPark(uint256)",
			Returns:   []string{"uint256"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				ids, err := uint64Args(args, 1)
				if err != nil {
					return nil, err
				}
				rec, _, err := getParking(f, ids[0])
				if err != nil {
					return nil, err
				}
				return []any{rec.Park}, nil
			},
		},
		{
			Signature: "unParkCar(uint256)",
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				ids, err := uint64Args(args, 1)
				if err != nil {
					return nil, err
				}
				_, err = o.unParkCar(f, ids[0])
				return nil, err
			},
		},
		{
			Signature: "fineCar(uint256)",
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				ids, err := uint64Args(args, 1)
				if err != nil {
					return nil, err
				}
				_, err = o.fineCar(f, ids[0])
				return nil, err
			},
		},
		{
			Signature: "load(uint256,uint256)",
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				ids, err := uint64Args(args, 2)
				if err != nil {
					return nil, err
				}
				return nil, o.load(f, ids[0], ids[1])
			},
		},
		{
			Signature: "unload(uint256,uint256)",
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				ids, err := uint64Args(args, 2)
				if err != nil {
					return nil, err
				}
				return nil, o.unload(f, ids[0], ids[1])
			},
		},
		{
			Signature: "parkingOf(uint256)",
			Returns:   []string{"uint256", "uint256"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				ids, err := uint64Args(args, 1)
				if err != nil {
					return nil, err
				}
				rec, _, err := getParking(f, ids[0])
				if err != nil {
					return nil, err
				}
				return []any{rec.Park, rec.Start}, nil
			},
		},
		{
			Signature: "carOnPark(uint256)",
			Returns:   []string{"uint256"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				ids, err := uint64Args(args, 1)
				if err != nil {
					return nil, err
				}
				car, err := ledger.GetUint64(f, occupantKey(ids[0]))
				if err != nil {
					return nil, err
				}
				return []any{car}, nil
			},
		},
		{
			Signature: "pendingReward(uint256)",
			Returns:   []string{"uint256"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				ids, err := uint64Args(args, 1)
				if err != nil {
					return nil, err
				}
				reward, err := o.pendingReward(f, ids[0])
				if err != nil {
					return nil, err
				}
				return []any{reward}, nil
			},
		},
		{
			Signature: "accountOf(uint256)",
			Returns:   []string{"address"},
			Handler: func(f *ledger.Frame, args []any) ([]any, error) {
				ids, err := uint64Args(args, 1)
				if err != nil {
					return nil, err
				}
				return []any{o.config.Registry.ComputeAddress(o.AccountKey(f.ChainID(), ids[0]))}, nil
			},
		},
		{
			Signature: "rewardRate()",
			Returns:   []string{"uint256"},
			Handler: func(*ledger.Frame, []any) ([]any, error) {
				return []any{o.RewardRate()}, nil
			},
		},
		{
			Signature: "finePeriod()",
			Returns:   []string{"uint256"},
			Handler: func(*ledger.Frame, []any) ([]any, error) {
				return []any{o.config.FinePeriod}, nil
			},
		},
	}
}
