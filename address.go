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

package ila

import (
	"encoding/binary"
	"net/netip"
)

// Locator is the high 64 bits of a split IPv6 address: where a host
// currently sits in the network.
type Locator uint64

// Identifier is the low 64 bits: the stable name of an endpoint.
type Identifier uint64

// Address is a full 128-bit IPv6 address, viewable as a (Locator,
// Identifier) pair.
type Address [16]byte

func AddressFrom(loc Locator, ident Identifier) (a Address) {
	binary.BigEndian.PutUint64(a[0:8], uint64(loc))
	binary.BigEndian.PutUint64(a[8:16], uint64(ident))
	return a
}

func AddressFromNetip(a netip.Addr) Address {
	return Address(a.As16())
}

func (a Address) Netip() netip.Addr {
	return netip.AddrFrom16(a)
}

func (a Address) Locator() Locator {
	return Locator(binary.BigEndian.Uint64(a[0:8]))
}

func (a Address) Identifier() Identifier {
	return Identifier(binary.BigEndian.Uint64(a[8:16]))
}

func (a Address) String() string {
	return a.Netip().String()
}

func (l Locator) Bytes() [8]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(l))
	return b
}

// LocatorFromBytes reads a big-endian 8-byte locator, as it appears in
// the high half of an Address or an AMFP wire pair.
func LocatorFromBytes(b []byte) Locator {
	return Locator(binary.BigEndian.Uint64(b))
}

func (l Locator) String() string {
	return AddressFrom(l, 0).Netip().String()
}
