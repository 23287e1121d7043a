/*
 * ILA control plane. Copyright (C) 2021-present David Coles
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package log

import (
	"context"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the slog-backed Log, matching the daemon's
// -L/--logfile, --logname and -l/--loglevel flags.
type Options struct {
	// Path is the logfile path. Empty means stderr.
	Path string
	// Name tags every record's "logname" field (syslog ident equivalent).
	Name string
	// Level is the minimum severity recorded; anything less severe (a
	// higher Level value) is dropped before it reaches the writer.
	Level Level
	// MaxSizeMB, MaxBackups and MaxAgeDays configure lumberjack rotation;
	// zero values take lumberjack's own defaults (100MB, unlimited,
	// unlimited).
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Slog is a Log backed by log/slog, writing structured records to a
// rotated logfile via lumberjack when Path is set.
type Slog struct {
	logger *slog.Logger
	level  Level
	closer io.Closer
}

// New builds a Slog from opts. Callers should defer Close to flush and
// release the underlying file.
func New(opts Options) *Slog {
	var w io.Writer = os.Stderr
	var closer io.Closer

	if opts.Path != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		w = lj
		closer = lj
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(handler)

	if opts.Name != "" {
		logger = logger.With("logname", opts.Name)
	}

	return &Slog{logger: logger, level: opts.Level, closer: closer}
}

// Close releases the underlying logfile, if one was opened.
func (s *Slog) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// slogLevel maps our EMERG..DEBUG ordering onto slog's four built-in
// levels: slog has no concept of EMERG/ALERT/CRIT/NOTICE, so the rarer
// ends of the syslog scale collapse onto its nearest neighbour.
func slogLevel(l Level) slog.Level {
	switch {
	case l <= ERR:
		return slog.LevelError
	case l == WARNING:
		return slog.LevelWarn
	case l <= INFO:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

func (s *Slog) log(l Level, facility, msg string, kv KV) {
	if l > s.level {
		return
	}

	args := make([]any, 0, 2+2*len(kv))
	args = append(args, "facility", facility, "severity", l.String())
	for k, v := range kv {
		args = append(args, k, v)
	}

	s.logger.Log(context.Background(), slogLevel(l), msg, args...)
}

func (s *Slog) EMERG(facility, msg string, kv KV)   { s.log(EMERG, facility, msg, kv) }
func (s *Slog) ALERT(facility, msg string, kv KV)   { s.log(ALERT, facility, msg, kv) }
func (s *Slog) CRIT(facility, msg string, kv KV)    { s.log(CRIT, facility, msg, kv) }
func (s *Slog) ERR(facility, msg string, kv KV)     { s.log(ERR, facility, msg, kv) }
func (s *Slog) WARNING(facility, msg string, kv KV) { s.log(WARNING, facility, msg, kv) }
func (s *Slog) NOTICE(facility, msg string, kv KV)  { s.log(NOTICE, facility, msg, kv) }
func (s *Slog) INFO(facility, msg string, kv KV)    { s.log(INFO, facility, msg, kv) }
func (s *Slog) DEBUG(facility, msg string, kv KV)   { s.log(DEBUG, facility, msg, kv) }
