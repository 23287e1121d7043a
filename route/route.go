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

// Package route abstracts installing and removing the ILA host routes
// that realize a MapKey/MapValue pair in the kernel forwarding table.
package route

import (
	"errors"
	"net/netip"

	"github.com/ilanet/ila"
)

// ErrMissing is returned by DelRoute when no matching route exists.
var ErrMissing = errors.New("route: no such route")

// Config is applied once, before Start.
type Config struct {
	Dev          string     // outgoing interface used when value.IfIndex is zero
	Via          netip.Addr // nexthop for installed routes
	LocalLocator ila.Locator
}

// Installer is the op-table every driver implements: netlink against the
// live kernel in production, an in-memory recording fake in tests.
type Installer interface {
	Configure(cfg Config) error

	// Start purges any routes this daemon previously installed (identified
	// by ila.RTPROTILA) before accepting new Set/Del calls.
	Start() error

	// SetRoute installs value as forwarding state for key. If value.Loc
	// equals the configured LocalLocator this is a no-op install, but any
	// prior route for key is still deleted (ErrMissing tolerated).
	SetRoute(key ila.MapKey, value ila.MapValue) error

	// DelRoute removes the route for key. ErrMissing is not treated as a
	// failure by this layer; callers decide.
	DelRoute(key ila.MapKey) error
}
