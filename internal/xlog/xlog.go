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

// Package xlog threads a single structured logger through every
// component, the way turbo/snapshotsync threads a *log.Logger down
// into each call. Built on zap rather than a hand-rolled logger.
package xlog

import (
	"go.uber.org/zap"
)

// Logger wraps *zap.SugaredLogger so call sites can pass key/value
// pairs without building zap.Field slices by hand.
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a production logger at the given level name
// ("debug", "info", "warn", "error"). Unknown names fall back to info.
func New(component string, levelName string) *Logger {
	lvl := zap.NewAtomicLevel()
	switch levelName {
	case "debug":
		lvl.SetLevel(zap.DebugLevel)
	case "warn":
		lvl.SetLevel(zap.WarnLevel)
	case "error":
		lvl.SetLevel(zap.ErrorLevel)
	default:
		lvl.SetLevel(zap.InfoLevel)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	l, err := cfg.Build()
	if err != nil {
		// Fall back to a no-op logger; logging must never be able to
		// crash the database.
		l = zap.NewNop()
	}
	return &Logger{s: l.Sugar().Named(component).WithOptions()}
}

// Noop returns a logger that discards everything, used by tests that
// don't want log noise.
func Noop() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

func (l *Logger) With(kv ...any) *Logger {
	return &Logger{s: l.s.With(kv...)}
}

func (l *Logger) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }

// Sync flushes buffered log entries; call on shutdown.
func (l *Logger) Sync() error { return l.s.Sync() }
