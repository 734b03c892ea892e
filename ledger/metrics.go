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

package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type stateMetrics struct {
	operations *prometheus.CounterVec
	duration   prometheus.Histogram
	calls      prometheus.Counter
	events     *prometheus.CounterVec
	time       prometheus.Gauge
}

func (ls *LedgerState) initMetrics() {
	// promauto skips registration when the registry is nil
	promautoFactory := promauto.With(ls.config.PromRegistry)
	ls.metrics = &stateMetrics{}
	ls.metrics.operations = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "total top-level operations by result",
		},
		[]string{"result"},
	)
	ls.metrics.duration = promautoFactory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "duration of top-level operations",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)
	ls.metrics.calls = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_nested_calls_total",
			Help: "total forwarded calls between addresses",
		},
	)
	ls.metrics.events = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_events_total",
			Help: "total contract events committed",
		},
		[]string{"name"},
	)
	ls.metrics.time = promautoFactory.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_time_seconds",
			Help: "ledger time of the last committed operation",
		},
	)
}
