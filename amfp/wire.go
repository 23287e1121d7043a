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

// Package amfp implements the Address Mapping Forwarder Protocol: the
// length-framed binary TCP protocol between ILA forwarders and routers.
package amfp

import (
	"encoding/binary"
	"fmt"
)

// Message types, common header byte 0.
const (
	MapRequest         = 1
	MapInfo            = 2
	ExtMapInfo         = 3
	LocatorUnreachable = 4
)

// MAP_INFO sub-types, header byte 0 of the message-specific fields.
const (
	MapReply = 1
	Redirect = 2
)

// id_type / loc_type values. Only IPv6Addr is implemented; anything else
// is rejected by the decoder.
const (
	IPv6Addr = 1
)

// commonHeaderLen is the 3-byte {type, len_hi, len_lo} prefix shared by
// every frame.
const commonHeaderLen = 3

// pairLen is the wire size of one (identifier, locator) pair: two full
// 16-byte IPv6 addresses.
const pairLen = 32

// fixedHdrLen is the size of the message-specific fixed header shared by
// MAP_INFO and MAP_REQUEST (MAP_INFO: 4 bytes of fields plus 1 byte of
// padding; MAP_REQUEST: the id_type byte plus 4 bytes of padding), so
// that common header + fixed header together total 8 bytes. The trailing
// id/loc pairs are 8-byte-aligned wire values, which forces that
// alignment on the header in front of them.
const fixedHdrLen = 5

// Frame is a decoded AMFP message: the common header fields plus the
// message-specific body, still addressed by Type.
type Frame struct {
	Type byte
	Body []byte // everything after the 3-byte common header
}

// Encode serializes a Frame with its common header.
func (f Frame) Encode() []byte {
	length := commonHeaderLen + len(f.Body)
	out := make([]byte, length)
	out[0] = f.Type
	binary.BigEndian.PutUint16(out[1:3], uint16(length))
	copy(out[3:], f.Body)
	return out
}

// Pair is one (identifier, locator) entry inside a MAP_INFO frame.
type Pair struct {
	Ident [16]byte
	Loc   [16]byte
}

// MapInfoMsg is the decoded body of a MAP_INFO frame.
type MapInfoMsg struct {
	SubType byte
	LocType byte
	IDType  byte
	Pairs   []Pair
}

func EncodeMapInfo(m MapInfoMsg) Frame {
	body := make([]byte, fixedHdrLen+pairLen*len(m.Pairs))
	body[0] = m.SubType
	body[1] = 0 // reserved
	body[2] = m.LocType
	body[3] = m.IDType
	body[4] = 0 // pad, keeps common+fixed header 8-byte aligned

	for i, p := range m.Pairs {
		off := fixedHdrLen + i*pairLen
		copy(body[off:off+16], p.Ident[:])
		copy(body[off+16:off+32], p.Loc[:])
	}

	return Frame{Type: MapInfo, Body: body}
}

func DecodeMapInfo(body []byte) (MapInfoMsg, error) {
	if len(body) < fixedHdrLen {
		return MapInfoMsg{}, fmt.Errorf("amfp: MAP_INFO body too short (%d bytes)", len(body))
	}

	m := MapInfoMsg{SubType: body[0], LocType: body[2], IDType: body[3]}

	if m.LocType != IPv6Addr || m.IDType != IPv6Addr {
		return MapInfoMsg{}, fmt.Errorf("amfp: unsupported loc_type/id_type %d/%d", m.LocType, m.IDType)
	}

	rest := body[fixedHdrLen:]
	if len(rest)%pairLen != 0 {
		return MapInfoMsg{}, fmt.Errorf("amfp: MAP_INFO payload %d not a multiple of %d", len(rest), pairLen)
	}

	for off := 0; off < len(rest); off += pairLen {
		var p Pair
		copy(p.Ident[:], rest[off:off+16])
		copy(p.Loc[:], rest[off+16:off+32])
		m.Pairs = append(m.Pairs, p)
	}

	return m, nil
}

// MapRequestMsg is the decoded body of a MAP_REQUEST frame.
type MapRequestMsg struct {
	IDType      byte
	Identifiers [][16]byte
}

func EncodeMapRequest(m MapRequestMsg) Frame {
	body := make([]byte, fixedHdrLen+16*len(m.Identifiers))
	body[0] = m.IDType

	for i, id := range m.Identifiers {
		off := fixedHdrLen + i*16
		copy(body[off:off+16], id[:])
	}

	return Frame{Type: MapRequest, Body: body}
}

func DecodeMapRequest(body []byte) (MapRequestMsg, error) {
	if len(body) < fixedHdrLen {
		return MapRequestMsg{}, fmt.Errorf("amfp: MAP_REQUEST body too short (%d bytes)", len(body))
	}

	m := MapRequestMsg{IDType: body[0]}
	if m.IDType != IPv6Addr {
		return MapRequestMsg{}, fmt.Errorf("amfp: unsupported id_type %d", m.IDType)
	}

	rest := body[fixedHdrLen:]
	if len(rest)%16 != 0 {
		return MapRequestMsg{}, fmt.Errorf("amfp: MAP_REQUEST payload %d not a multiple of 16", len(rest))
	}

	for off := 0; off < len(rest); off += 16 {
		var id [16]byte
		copy(id[:], rest[off:off+16])
		m.Identifiers = append(m.Identifiers, id)
	}

	return m, nil
}
