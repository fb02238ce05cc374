// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package metrics exposes the daemon's Prometheus collectors, the way
// erigon's go.mod carries prometheus/client_golang for node metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector the daemon registers, instead of
// relying on the global default registerer, so tests can build
// independent instances.
type Registry struct {
	reg *prometheus.Registry

	CommitsTotal      prometheus.Counter
	ConflictsTotal    prometheus.Counter
	CheckpointsTotal  prometheus.Counter
	CommitLatency     prometheus.Histogram
	QueryLatency      prometheus.Histogram
	ReadSnapshotsOpen prometheus.Gauge
}

// New builds a Registry with every collector registered under the
// conceptgraph_ namespace.
func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		CommitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "conceptgraph",
			Name:      "commits_total",
			Help:      "Write transactions successfully committed.",
		}),
		ConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "conceptgraph",
			Name:      "commit_conflicts_total",
			Help:      "Write transactions that aborted on a write-write conflict (§4.1.4).",
		}),
		CheckpointsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "conceptgraph",
			Name:      "checkpoints_total",
			Help:      "WAL checkpoints performed.",
		}),
		CommitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "conceptgraph",
			Name:      "commit_latency_seconds",
			Help:      "Latency of Database.Commit calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		QueryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "conceptgraph",
			Name:      "query_latency_seconds",
			Help:      "Latency of a compiled pipeline's full drain.",
			Buckets:   prometheus.DefBuckets,
		}),
		ReadSnapshotsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "conceptgraph",
			Name:      "read_snapshots_open",
			Help:      "Read snapshots currently open (not yet Closed).",
		}),
	}
	reg.MustRegister(
		m.CommitsTotal, m.ConflictsTotal, m.CheckpointsTotal,
		m.CommitLatency, m.QueryLatency, m.ReadSnapshotsOpen,
	)
	return m
}

// Handler returns the /metrics HTTP handler internal/server mounts.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
