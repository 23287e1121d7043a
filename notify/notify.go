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

// Package notify listens for kernel route-miss notifications: records
// telling the router that a locally-routed packet lacked an ILA mapping,
// carrying that packet's source and destination addresses.
package notify

import "net/netip"

// Record is one route-miss notification.
type Record struct {
	Src netip.Addr
	Dst netip.Addr
}

// Listener delivers Records until Close is called or the underlying
// socket fails fatally, at which point Records is closed.
type Listener interface {
	Records() <-chan Record
	Close() error
}
