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

// Command conceptgraphd is the database daemon: it opens a
// storage.Database and serves internal/server's health/metrics API,
// wired together with urfave/cli/v2 the way erigon's cmd/ binaries
// build their command trees.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/conceptgraph/conceptgraph/internal/config"
	"github.com/conceptgraph/conceptgraph/internal/metrics"
	"github.com/conceptgraph/conceptgraph/internal/server"
	"github.com/conceptgraph/conceptgraph/internal/storage"
	"github.com/conceptgraph/conceptgraph/internal/xlog"
)

var configFlag = &cli.StringFlag{
	Name:  "config",
	Usage: "path to a TOML configuration file",
}

func main() {
	app := &cli.App{
		Name:  "conceptgraphd",
		Usage: "conceptgraph database daemon",
		Commands: []*cli.Command{
			serveCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "open the database and serve the health/metrics API",
		Flags: []cli.Flag{configFlag},
		Action: func(c *cli.Context) error {
			return runServe(c.String("config"))
		},
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := xlog.New("conceptgraphd", cfg.LogLevel)
	defer log.Sync()

	db, err := storage.Open(storage.Options{
		Dir:            cfg.DataDir,
		Backend:        cfg.StorageBackend(),
		BoltNoSync:     cfg.BoltNoSync,
		WALRotateBytes: int64(cfg.WALRotateBytes),
		Log:            log.With("component", "storage"),
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	m := metrics.New()
	srv := server.New(cfg, db, m, log.With("component", "server"))

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
		return srv.Shutdown()
	}
}
