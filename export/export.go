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

// Package export writes the event journal to a local file or a Google Cloud
// Storage object as JSON lines, optionally encrypted with SOPS
package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"

	"github.com/blinklabs-io/lotloot/database/models"
	"github.com/blinklabs-io/lotloot/database/types"
)

// Source provides journaled events
type Source interface {
	Events(filter types.EventFilter) ([]models.Event, error)
}

// Record is one exported journal line
type Record struct {
	OperationID string          `json:"operationId"`
	Contract    common.Address  `json:"contract"`
	Name        string          `json:"name"`
	Data        json.RawMessage `json:"data"`
	Timestamp   uint64          `json:"timestamp"`
	Sequence    uint32          `json:"sequence"`
}

// WriteJournal writes the events matching filter to w, one JSON record per
// line, and returns the number of records written
func WriteJournal(w io.Writer, src Source, filter types.EventFilter) (int, error) {
	events, err := src.Events(filter)
	if err != nil {
		return 0, fmt.Errorf("read journal: %w", err)
	}
	enc := json.NewEncoder(w)
	for i, evt := range events {
		rec := Record{
			OperationID: evt.OperationID,
			Contract:    common.BytesToAddress(evt.Contract),
			Name:        evt.Name,
			Data:        json.RawMessage(evt.Data),
			Timestamp:   evt.Timestamp,
			Sequence:    evt.Sequence,
		}
		if len(rec.Data) == 0 {
			rec.Data = json.RawMessage("null")
		}
		if err := enc.Encode(&rec); err != nil {
			return i, fmt.Errorf("write record %d: %w", i, err)
		}
	}
	return len(events), nil
}
