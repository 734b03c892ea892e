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
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/lotloot/database/types"
)

// Value log files with at least this share of stale data are rewritten
const gcDiscardRatio = 0.5

// StateStore keeps contract storage, balances and code records in badger
type StateStore struct {
	promRegistry prometheus.Registerer
	db           *badger.DB
	logger       *slog.Logger
	metrics      stateMetrics
	gcStop       chan struct{}
	dataDir      string
	gcWg         sync.WaitGroup
	gcInterval   time.Duration
	syncWrites   bool
}

// New opens the state store. It returns the store along with any error
// raised after badger was opened, so the caller can close it
func New(opts ...StateStoreOptionFunc) (*StateStore, error) {
	s := &StateStore{
		gcInterval: DefaultGcInterval,
		syncWrites: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	badgerOpts, err := s.badgerOptions()
	if err != nil {
		return nil, err
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	s.db = db
	s.metrics.register(s)
	if s.dataDir != "" && s.gcInterval > 0 {
		s.startGc()
	}
	return s, nil
}

func (s *StateStore) badgerOptions() (badger.Options, error) {
	if s.dataDir == "" {
		return badger.DefaultOptions("").
			WithLogger(newBadgerLogger(s.logger)).
			WithLoggingLevel(badger.WARNING).
			WithInMemory(true), nil
	}
	stateDir := filepath.Join(s.dataDir, "state")
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return badger.Options{}, fmt.Errorf("create state dir: %w", err)
	}
	return badger.DefaultOptions(stateDir).
		WithLogger(newBadgerLogger(s.logger)).
		WithLoggingLevel(badger.WARNING).
		WithSyncWrites(s.syncWrites), nil
}

func (s *StateStore) startGc() {
	s.gcStop = make(chan struct{})
	ticker := time.NewTicker(s.gcInterval)
	s.gcWg.Add(1)
	go func() {
		defer s.gcWg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.collectGarbage()
			case <-s.gcStop:
				return
			}
		}
	}()
}

// collectGarbage rewrites value log files until badger finds nothing left to reclaim
func (s *StateStore) collectGarbage() {
	for {
		err := s.db.RunValueLogGC(gcDiscardRatio)
		if err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn(
					"state store value log GC failed",
					"component", "database",
					"error", err,
				)
			}
			return
		}
		s.metrics.gcRewrites.Inc()
	}
}

// Close stops value log compaction and closes badger
func (s *StateStore) Close() error {
	if s.gcStop != nil {
		close(s.gcStop)
		s.gcWg.Wait()
		s.gcStop = nil
	}
	return s.db.Close()
}

// DB returns the badger handle
func (s *StateStore) DB() *badger.DB {
	return s.db
}

// NewTransaction starts a badger transaction. Read-write transactions see
// their own writes
func (s *StateStore) NewTransaction(update bool) types.Txn {
	return &stateTxn{store: s, tx: s.db.NewTransaction(update)}
}

func (s *StateStore) Get(txn types.Txn, key []byte) ([]byte, error) {
	t, err := s.txn(txn)
	if err != nil {
		return nil, err
	}
	item, err := t.tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, types.ErrBlobKeyNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (s *StateStore) Set(txn types.Txn, key, val []byte) error {
	t, err := s.txn(txn)
	if err != nil {
		return err
	}
	return t.tx.Set(key, val)
}

func (s *StateStore) Delete(txn types.Txn, key []byte) error {
	t, err := s.txn(txn)
	if err != nil {
		return err
	}
	return t.tx.Delete(key)
}

// NewIterator iterates over the keys matching opts. Only one iterator may be
// open at a time on a read-write transaction
func (s *StateStore) NewIterator(
	txn types.Txn,
	opts types.BlobIteratorOptions,
) types.BlobIterator {
	t, err := s.txn(txn)
	if err != nil {
		return &errorIterator{err: err}
	}
	iterOpts := badger.DefaultIteratorOptions
	iterOpts.Prefix = opts.Prefix
	iterOpts.Reverse = opts.Reverse
	return &stateIterator{iter: t.tx.NewIterator(iterOpts)}
}
