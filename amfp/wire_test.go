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
	"net/netip"
	"testing"
)

func addr16(s string) [16]byte {
	return netip.MustParseAddr(s).As16()
}

func TestMapReplyRoundTripLength(t *testing.T) {
	m := MapInfoMsg{
		SubType: MapReply,
		LocType: IPv6Addr,
		IDType:  IPv6Addr,
		Pairs: []Pair{
			{Ident: addr16("2001:db8::1"), Loc: addr16("fe80::")},
		},
	}

	frame := EncodeMapInfo(m)
	encoded := frame.Encode()

	if len(encoded) != 40 {
		t.Fatalf("expected total length 40, got %d", len(encoded))
	}

	decoded, err := DecodeMapInfo(encoded[commonHeaderLen:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.SubType != MapReply {
		t.Fatalf("sub_type mismatch")
	}
	if decoded.Pairs[0].Ident != m.Pairs[0].Ident || decoded.Pairs[0].Loc != m.Pairs[0].Loc {
		t.Fatalf("pair mismatch: %+v", decoded.Pairs[0])
	}
}

func TestMapRequestByteLength(t *testing.T) {
	m := MapRequestMsg{IDType: IPv6Addr, Identifiers: [][16]byte{addr16("2001:db8::1")}}
	encoded := EncodeMapRequest(m).Encode()

	if len(encoded) != 24 {
		t.Fatalf("expected total length 24, got %d", len(encoded))
	}
}

func TestDecodeMapInfoRejectsUnalignedPairs(t *testing.T) {
	body := make([]byte, 4+17)
	body[2] = IPv6Addr
	body[3] = IPv6Addr

	if _, err := DecodeMapInfo(body); err == nil {
		t.Fatalf("expected error for non-multiple-of-32 payload")
	}
}
