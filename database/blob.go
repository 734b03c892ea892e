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
	"bytes"

	"github.com/blinklabs-io/lotloot/database/types"
)

// BlobEntry is a key/value pair returned by BlobIterate
type BlobEntry struct {
	Key   []byte
	Value []byte
}

// BlobGet returns the value stored at key. It returns types.ErrBlobKeyNotFound
// if the key is missing
func (t *Txn) BlobGet(key []byte) ([]byte, error) {
	if t.blobTxn == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	return t.db.Blob().Get(t.blobTxn, key)
}

// BlobSet stores a value at key
func (t *Txn) BlobSet(key, val []byte) error {
	if t.blobTxn == nil {
		return types.ErrBlobStoreUnavailable
	}
	return t.db.Blob().Set(t.blobTxn, key, val)
}

// BlobDelete removes the value stored at key
func (t *Txn) BlobDelete(key []byte) error {
	if t.blobTxn == nil {
		return types.ErrBlobStoreUnavailable
	}
	return t.db.Blob().Delete(t.blobTxn, key)
}

// BlobIterate calls fn for every entry whose key starts with prefix, in key
// order. Entries are collected before fn runs, so fn may read and write
// through the same transaction. Returning false from fn stops the iteration
func (t *Txn) BlobIterate(prefix []byte, fn func(BlobEntry) (bool, error)) error {
	if t.blobTxn == nil {
		return types.ErrBlobStoreUnavailable
	}
	var entries []BlobEntry
	iter := t.db.Blob().NewIterator(
		t.blobTxn,
		types.BlobIteratorOptions{Prefix: prefix},
	)
	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()
		key := item.Key()
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			iter.Close()
			return err
		}
		entries = append(entries, BlobEntry{Key: key, Value: val})
	}
	err := iter.Err()
	iter.Close()
	if err != nil {
		return err
	}
	for _, entry := range entries {
		cont, err := fn(entry)
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return nil
}
