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
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultGcInterval is how often the value log of an on-disk store is compacted
const DefaultGcInterval = 5 * time.Minute

type StateStoreOptionFunc func(*StateStore)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) StateStoreOptionFunc {
	return func(s *StateStore) {
		s.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) StateStoreOptionFunc {
	return func(s *StateStore) {
		s.promRegistry = registry
	}
}

// WithDataDir specifies the directory holding the state. An empty data dir
// keeps the state in memory
func WithDataDir(dataDir string) StateStoreOptionFunc {
	return func(s *StateStore) {
		s.dataDir = dataDir
	}
}

// WithGcInterval specifies how often the value log is compacted. Zero
// disables compaction
func WithGcInterval(interval time.Duration) StateStoreOptionFunc {
	return func(s *StateStore) {
		s.gcInterval = interval
	}
}

// WithSyncWrites specifies whether a commit waits for its writes to reach
// disk. It is on by default
func WithSyncWrites(sync bool) StateStoreOptionFunc {
	return func(s *StateStore) {
		s.syncWrites = sync
	}
}
