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

package models

// Event is one contract event emitted by a committed operation
type Event struct {
	ID          uint   `gorm:"primarykey"`
	OperationID string `gorm:"size:36;index"`
	Contract    []byte `gorm:"index"`
	Name        string `gorm:"size:64;index"`
	Data        []byte
	Timestamp   uint64 `gorm:"index"`
	Sequence    uint32
}

func (Event) TableName() string {
	return "event"
}

// Operation records a committed top-level operation
type Operation struct {
	ID          uint   `gorm:"primarykey"`
	OperationID string `gorm:"size:36;uniqueIndex"`
	Caller      []byte `gorm:"index"`
	Timestamp   uint64
	EventCount  uint32
}

func (Operation) TableName() string {
	return "operation"
}
