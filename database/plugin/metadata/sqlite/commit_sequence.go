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

	"github.com/blinklabs-io/lotloot/database/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const commitSequenceRowId = 1

// CommitSequence is the single-row table holding the journal's commit count
type CommitSequence struct {
	ID       uint `gorm:"primarykey"`
	Sequence uint64
}

func (CommitSequence) TableName() string {
	return "commit_sequence"
}

func (d *MetadataStoreSqlite) GetCommitSequence() (uint64, error) {
	var row CommitSequence
	result := d.DB().First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, result.Error
	}
	return row.Sequence, nil
}

func (d *MetadataStoreSqlite) SetCommitSequence(
	seq uint64,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"sequence"}),
	}).Create(&CommitSequence{
		ID:       commitSequenceRowId,
		Sequence: seq,
	})
	return result.Error
}
