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

// Package store abstracts the external key/value mapping store (in
// practice, Redis) behind read/write/delete/scan/watch operations, so the
// synchronizer never talks to a database driver directly.
package store

import (
	"context"
	"errors"

	"github.com/ilanet/ila/log"
)

// ErrMissing is returned by Read and Delete when the key is absent. It is
// not a failure: callers on the synchronizer path treat it as a distinct,
// expected outcome from a genuine Err.
var ErrMissing = errors.New("store: key missing")

// Visitor is invoked once per key during a Scan, and again for every
// subsequent change observed by Watch. value is nil when the key has been
// deleted. Visitor implementations must be idempotent: the same (key,
// value) pair may be delivered more than once.
type Visitor func(key, value []byte)

// Handle identifies a live watch subscription, returned by WatchAll or
// WatchOne and consumed by StopWatch.
type Handle interface{}

// Store is the op-table every driver implements: Redis in production,
// an in-memory double in tests.
type Store interface {
	// Configure applies driver-specific sub-options (e.g. host=,port=)
	// before Start is called.
	Configure(opts map[string]string) error

	// Start opens the connection to the backing store.
	Start(ctx context.Context) error

	// Stop releases the connection and any live watches.
	Stop() error

	// Read fetches the value for key. Returns ErrMissing if absent.
	Read(ctx context.Context, key []byte) ([]byte, error)

	// Write sets key to value, creating or overwriting it.
	Write(ctx context.Context, key, value []byte) error

	// Delete removes key. Returns ErrMissing if it was already absent;
	// callers decide whether that is itself an error.
	Delete(ctx context.Context, key []byte) error

	// Scan invokes visitor once for every key currently in the store.
	// It returns once the full table has been walked.
	Scan(ctx context.Context, visitor Visitor) error

	// WatchAll invokes visitor for every subsequent change to any key.
	WatchAll(ctx context.Context, visitor Visitor) (Handle, error)

	// WatchOne invokes visitor for every subsequent change to key alone.
	WatchOne(ctx context.Context, key []byte, visitor Visitor) (Handle, error)

	// StopWatch cancels a subscription returned by WatchAll/WatchOne.
	StopWatch(h Handle) error
}

// Options carries the common host/port sub-options every driver accepts
// as defaults, overridable via Configure, plus the logger a driver uses
// to report per-operation transport errors it can recover from on its
// own (a single failed key read during a Scan or a watch notification
// must not abort the whole operation).
type Options struct {
	Host string
	Port int
	Log  log.Log
}
