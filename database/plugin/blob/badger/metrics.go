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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const stateMetricNamePrefix = "database_state_"

type stateMetrics struct {
	gcRewrites prometheus.Counter
}

// register creates the store metrics. Without a registry they are kept but
// not exported
func (m *stateMetrics) register(s *StateStore) {
	factory := promauto.With(s.promRegistry)
	m.gcRewrites = factory.NewCounter(prometheus.CounterOpts{
		Name: stateMetricNamePrefix + "gc_rewrites_total",
		Help: "Value log files rewritten by state store compaction",
	})
	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: stateMetricNamePrefix + "lsm_size_bytes",
			Help: "Size of the state store LSM tree in bytes",
		},
		func() float64 {
			lsm, _ := s.db.Size()
			return float64(lsm)
		},
	)
	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: stateMetricNamePrefix + "vlog_size_bytes",
			Help: "Size of the state store value log in bytes",
		},
		func() float64 {
			_, vlog := s.db.Size()
			return float64(vlog)
		},
	)
}
