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

package amfp

import (
	"fmt"
	"sync"
)

// ErrSlotOccupied is returned by Pool.Put when a connection already owns
// the requested locator-id. A second peer claiming the same locator-id
// is rejected rather than displacing the incumbent.
var ErrSlotOccupied = fmt.Errorf("amfp: locator-id slot already occupied")

// Pool indexes up to 2^16 live router-side connections by the 16-bit
// locator-id extracted from each peer's address, generalizing
// bgp.Pool's peer-string-keyed session map to ILA's fixed slot space.
type Pool struct {
	mutex sync.Mutex
	slots [65536]*Connection
}

func NewPool() *Pool {
	return &Pool{}
}

// Put installs conn in slot locatorID. If the slot is already occupied by
// a live connection, the new connection is rejected (see §4.4's Open
// Question resolution).
func (p *Pool) Put(locatorID uint16, conn *Connection) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.slots[locatorID] != nil {
		return ErrSlotOccupied
	}

	p.slots[locatorID] = conn
	return nil
}

// Remove clears the slot if it currently holds conn. A stale removal
// (the slot has since been claimed by a different connection) is a
// silent no-op.
func (p *Pool) Remove(locatorID uint16, conn *Connection) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.slots[locatorID] == conn {
		p.slots[locatorID] = nil
	}
}

// Get returns the live connection for a locator-id, if any.
func (p *Pool) Get(locatorID uint16) (*Connection, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	c := p.slots[locatorID]
	return c, c != nil
}

// LocatorIDFromAddr extracts the 16-bit locator-id from bytes 2-3 of an
// IPv6 address, big-endian, as decided for accept-time slot assignment.
func LocatorIDFromAddr(addr [16]byte) uint16 {
	return uint16(addr[2])<<8 | uint16(addr[3])
}
