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

// Package server exposes the daemon's HTTP surface (health, readiness,
// metrics) the way erigon mounts its diagnostics API: chi for routing,
// go-chi/cors for browser-facing dashboards, gopsutil for the
// disk-space check a health probe needs.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/shirou/gopsutil/v4/disk"

	"github.com/conceptgraph/conceptgraph/internal/config"
	"github.com/conceptgraph/conceptgraph/internal/metrics"
	"github.com/conceptgraph/conceptgraph/internal/storage"
	"github.com/conceptgraph/conceptgraph/internal/xlog"
)

// minFreeDiskFraction is the free-space ratio under which /healthz
// reports unhealthy, mirroring the disk-pressure check erigon's
// diagnostics surface runs before it lets a node claim readiness.
const minFreeDiskFraction = 0.05

// Server is the daemon's HTTP API: health/readiness probes plus the
// Prometheus scrape endpoint.
type Server struct {
	http *http.Server
	log  *xlog.Logger
	db   *storage.Database
	dir  string
}

// New builds a chi-routed Server listening on cfg.HTTP.Addr. db is
// used for the readiness probe (CurrentSeq must be reachable); dir is
// the data directory statted for the disk-space health check.
func New(cfg config.Config, db *storage.Database, m *metrics.Registry, log *xlog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.HTTP.CORSOrigins,
		AllowedMethods: []string{http.MethodGet},
	}))

	s := &Server{log: log, db: db, dir: cfg.DataDir}
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", m.Handler())

	s.http = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving HTTP until the listener errors or is
// closed by Shutdown.
func (s *Server) ListenAndServe() error { return s.http.ListenAndServe() }

// Shutdown closes the listener and every active connection at once
// (http.Server.Close); in-flight requests are not waited for.
func (s *Server) Shutdown() error { return s.http.Close() }

type healthStatus struct {
	OK            bool    `json:"ok"`
	FreeDiskRatio float64 `json:"free_disk_ratio"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := healthStatus{OK: true, FreeDiskRatio: 1}
	if usage, err := disk.Usage(s.dir); err == nil && usage.Total > 0 {
		status.FreeDiskRatio = 1 - usage.UsedPercent/100
		if status.FreeDiskRatio < minFreeDiskFraction {
			status.OK = false
		}
	} else if err != nil {
		s.log.Warn("healthz: disk usage check failed", "err", err, "dir", s.dir)
	}

	w.Header().Set("Content-Type", "application/json")
	if !status.OK {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// handleReadyz reports ready once the Database has a current sequence
// number, i.e. it finished opening/recovery.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]uint64{"seq": s.db.CurrentSeq()})
}
