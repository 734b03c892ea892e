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

package badger

import (
	"errors"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/blinklabs-io/lotloot/database/types"
)

type stateTxn struct {
	store    *StateStore
	tx       *badger.Txn
	finished bool
}

// txn checks that txn is a live transaction of this store
func (s *StateStore) txn(txn types.Txn) (*stateTxn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	t, ok := txn.(*stateTxn)
	if !ok {
		return nil, types.ErrTxnWrongType
	}
	if t.store != s {
		return nil, errors.New("transaction from different store")
	}
	if t.finished {
		return nil, types.ErrTxnFinished
	}
	return t, nil
}

// Commit is a no-op on a finished transaction
func (t *stateTxn) Commit() error {
	if t.finished {
		return nil
	}
	t.finished = true
	return t.tx.Commit()
}

func (t *stateTxn) Rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true
	t.tx.Discard()
	return nil
}

type stateIterator struct {
	iter *badger.Iterator
}

func (it *stateIterator) Rewind()              { it.iter.Rewind() }
func (it *stateIterator) Valid() bool          { return it.iter.Valid() }
func (it *stateIterator) Next()                { it.iter.Next() }
func (it *stateIterator) Item() types.BlobItem { return stateItem{item: it.iter.Item()} }
func (it *stateIterator) Close()               { it.iter.Close() }
func (it *stateIterator) Err() error           { return nil }

type errorIterator struct {
	err error
}

func (it *errorIterator) Rewind()              {}
func (it *errorIterator) Valid() bool          { return false }
func (it *errorIterator) Next()                {}
func (it *errorIterator) Item() types.BlobItem { return nil }
func (it *errorIterator) Close()               {}
func (it *errorIterator) Err() error           { return it.err }

type stateItem struct {
	item *badger.Item
}

func (i stateItem) Key() []byte {
	return i.item.KeyCopy(nil)
}

func (i stateItem) ValueCopy(dst []byte) ([]byte, error) {
	return i.item.ValueCopy(dst)
}
