// Copyright The NRI Plugins Authors. All Rights Reserved.
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

package hbwmalloc

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/intel/hbwmalloc/pkg/memkind"
)

const (
	metricsNamespace = "hbwmalloc"

	opMalloc        = "malloc"
	opCalloc        = "calloc"
	opPosixMemalign = "posix_memalign"
	opRealloc       = "realloc"
)

// Metrics collects allocation statistics of a Resolver.
type Metrics struct {
	allocations *prometheus.CounterVec
	failures    *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	conflicts   prometheus.Counter
}

var _ prometheus.Collector = &Metrics{}

// NewMetrics creates a new set of allocation metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		allocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "allocations_total",
				Help:      "Number of successful allocations by operation and memory kind.",
			},
			[]string{"op", "kind"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "allocation_failures_total",
				Help:      "Number of failed allocations by operation and memory kind.",
			},
			[]string{"op", "kind"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "fallbacks_total",
				Help:      "Number of times an unavailable preferred kind was replaced by a fallback kind.",
			},
			[]string{"from", "to"},
		),
		conflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "policy_conflicts_total",
				Help:      "Number of attempts to change an already pinned policy.",
			},
		),
	}
}

// Describe implements the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.allocations.Describe(ch)
	m.failures.Describe(ch)
	m.fallbacks.Describe(ch)
	m.conflicts.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.allocations.Collect(ch)
	m.failures.Collect(ch)
	m.fallbacks.Collect(ch)
	m.conflicts.Collect(ch)
}

func (m *Metrics) observe(op string, kind memkind.Kind, ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.allocations.WithLabelValues(op, kind.String()).Inc()
	} else {
		m.failures.WithLabelValues(op, kind.String()).Inc()
	}
}

func (m *Metrics) fallback(from, to memkind.Kind) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(from.String(), to.String()).Inc()
}

func (m *Metrics) conflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}
