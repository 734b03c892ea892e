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

package sqlite

import (
	"errors"

	"github.com/blinklabs-io/lotloot/database/models"
	"github.com/blinklabs-io/lotloot/database/types"
	"gorm.io/gorm"
)

// AddOperation records a committed operation along with its events
func (d *MetadataStoreSqlite) AddOperation(
	op models.Operation,
	events []models.Event,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	if result := db.Create(&op); result.Error != nil {
		return result.Error
	}
	if len(events) == 0 {
		return nil
	}
	if result := db.Create(&events); result.Error != nil {
		return result.Error
	}
	return nil
}

// GetOperation returns the operation record with the given ID, or nil if none exists
func (d *MetadataStoreSqlite) GetOperation(
	operationId string,
	txn types.Txn,
) (*models.Operation, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret models.Operation
	result := db.Where("operation_id = ?", operationId).First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &ret, nil
}

// GetEvents returns journal entries matching the filter in emission order
func (d *MetadataStoreSqlite) GetEvents(
	filter types.EventFilter,
	txn types.Txn,
) ([]models.Event, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	query := db.Model(&models.Event{})
	if filter.OperationID != "" {
		query = query.Where("operation_id = ?", filter.OperationID)
	}
	if len(filter.Contract) > 0 {
		query = query.Where("contract = ?", filter.Contract)
	}
	if filter.Name != "" {
		query = query.Where("name = ?", filter.Name)
	}
	if filter.FromTimestamp > 0 {
		query = query.Where("timestamp >= ?", filter.FromTimestamp)
	}
	if filter.ToTimestamp > 0 {
		query = query.Where("timestamp <= ?", filter.ToTimestamp)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var ret []models.Event
	if result := query.Order("id ASC").Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
