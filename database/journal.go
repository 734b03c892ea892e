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

package database

import (
	"github.com/blinklabs-io/lotloot/database/models"
	"github.com/blinklabs-io/lotloot/database/types"
)

// AddOperation writes the operation record and its events to the journal as
// part of the transaction
func (t *Txn) AddOperation(op models.Operation, events []models.Event) error {
	if t.metadataTxn == nil {
		return types.ErrNoStoreAvailable
	}
	return t.db.Metadata().AddOperation(op, events, t.metadataTxn)
}

// Events returns committed journal entries matching the filter
func (d *Database) Events(filter types.EventFilter) ([]models.Event, error) {
	return d.Metadata().GetEvents(filter, nil)
}

// Operation returns the committed operation record with the given ID, or nil
func (d *Database) Operation(operationId string) (*models.Operation, error) {
	return d.Metadata().GetOperation(operationId, nil)
}
