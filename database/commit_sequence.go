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
	"fmt"
)

// CommitSequenceError reports that the state store and the event journal
// recorded a different number of commits, which means a commit was torn
type CommitSequenceError struct {
	Journal uint64
	State   uint64
}

func (e CommitSequenceError) Error() string {
	return fmt.Sprintf(
		"commit sequence mismatch: %d (journal) != %d (state)",
		e.Journal,
		e.State,
	)
}

// CommitSequence returns the number of read-write transactions committed to
// both stores
func (d *Database) CommitSequence() uint64 {
	return d.commitSeq.Load()
}

func (d *Database) loadCommitSequence() error {
	journalSeq, err := d.Metadata().GetCommitSequence()
	if err != nil {
		return fmt.Errorf("failed to get journal commit sequence: %w", err)
	}
	stateSeq, err := d.Blob().GetCommitSequence()
	if err != nil {
		return fmt.Errorf("failed to get state commit sequence: %w", err)
	}
	if journalSeq != stateSeq {
		return CommitSequenceError{
			Journal: journalSeq,
			State:   stateSeq,
		}
	}
	d.commitSeq.Store(stateSeq)
	return nil
}

func (d *Database) writeCommitSequence(txn *Txn, seq uint64) error {
	if err := d.Metadata().SetCommitSequence(seq, txn.Metadata()); err != nil {
		return err
	}
	return d.Blob().SetCommitSequence(seq, txn.Blob())
}
