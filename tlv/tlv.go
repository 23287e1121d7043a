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

// Package tlv implements the TLV codec for IPv6 Hop-by-Hop and
// Destination Options extension headers: validating an existing option
// chain, locating a TLV by type, and inserting or deleting a TLV while
// maintaining RFC 4942 padding and 8-byte header alignment.
//
// An option header is represented as a plain []byte: byte 0 is Nexthdr,
// byte 1 is Hdrlen (header length in 8-byte units, minus one), and the
// remainder holds the TLV chain.
package tlv

import "errors"

// TLV types reserved for padding; every other type byte is option data.
const (
	Pad1 = 0
	PadN = 1
)

var (
	ErrInvalid    = errors.New("tlv: malformed option header")
	ErrNotFound   = errors.New("tlv: type not present")
	ErrInvalidTLV = errors.New("tlv: malformed tlv")
)

// maxPad bounds the padding an insert or delete may need to add: up to
// 3 bytes of leading pad plus up to 7 bytes of trailing pad.
const maxPad = 3 + 7

// paddingTable gives, for a given (4n+2)-aligned offset modulo 4, the pad
// length needed to reach the next such alignment point.
var paddingTable = [4]byte{2, 1, 0, 3}

func optLen(opt []byte) int {
	return (int(opt[1]) + 1) * 8
}

// Validate walks opt's TLV chain checking every length stays in bounds.
func Validate(opt []byte) error {
	if len(opt) < 2 {
		return ErrInvalid
	}

	length := optLen(opt)
	if length > len(opt) {
		return ErrInvalid
	}

	offset := 2
	for offset < length {
		var tlvLen int

		switch opt[offset] {
		case Pad1:
			tlvLen = 1
		default:
			if offset+1 >= length {
				return ErrInvalid
			}
			tlvLen = int(opt[offset+1]) + 2
			if offset+tlvLen > length {
				return ErrInvalid
			}
		}

		offset += tlvLen
	}

	return nil
}

// findEnd locates the boundary of the last non-padding TLV: start is the
// offset just after it, end is the total option length. Everything
// between start and end is trailing padding and can be discarded by an
// insert or delete, which writes its own trailer padding.
func findEnd(opt []byte) (start, end int) {
	length := optLen(opt)
	offset := 2
	offsetS := 0

	for offset < length {
		switch opt[offset] {
		case Pad1:
			offset++
		case PadN:
			offset += int(opt[offset+1]) + 2
		default:
			offsetS = offset
			offset += int(opt[offset+1]) + 2
		}
	}

	start = offsetS + int(opt[offsetS+1]) + 2
	end = length
	return start, length
}

// find locates a TLV of the given type. If present, pos is its offset,
// found is true, and start/end bound it together with its surrounding
// padding. If absent, pos/found report that, and start/end instead bound
// the preferred insertion point.
func find(opt []byte, target byte) (pos, start, end int, found bool) {
	length := optLen(opt)
	offsetS, offsetE, lastS := 0, 0, 0
	padE := 2
	pos = -1
	greater := false

	offset := 2
loop:
	for offset < length {
		var tlvLen int

		switch opt[offset] {
		case Pad1:
			if offsetE != 0 {
				offsetE = offset
			}
			tlvLen = 1
		case PadN:
			if offsetE != 0 {
				offsetE = offset
			}
			tlvLen = int(opt[offset+1]) + 2
		default:
			if pos >= 0 {
				break loop
			}

			if opt[offset] == target {
				pos = offset
				offsetE = offset
				offsetS = lastS
			} else if target < opt[offset] && !greater {
				greater = true
				padE = offset
				offsetS = lastS
			}

			lastS = offset
			tlvLen = int(opt[offset+1]) + 2
		}

		offset += tlvLen
	}

	if pos < 0 && !greater {
		// no larger type follows: insert after the last non-pad TLV
		offsetS = lastS
		padE = length
	}

	if offsetS != 0 {
		if opt[offsetS] != 0 {
			start = offsetS + int(opt[offsetS+1]) + 2
		} else {
			start = offsetS + 1
		}
	} else {
		start = 2
	}

	if pos >= 0 {
		found = true
		if opt[offsetE] != 0 {
			end = offsetE + int(opt[offsetE+1]) + 2
		} else {
			end = offsetE + 1
		}
	} else {
		end = padE
	}

	return pos, start, end, found
}

// Find reports whether tlvType is present in opt; start/end bound either
// the existing TLV (with its padding) or the preferred insertion point.
func Find(opt []byte, tlvType byte) (start, end int, found bool) {
	_, start, end, found = find(opt, tlvType)
	return
}

func padWrite(buf []byte, offset, count int) {
	switch count {
	case 0:
	case 1:
		buf[offset] = Pad1
	default:
		buf[offset] = PadN
		buf[offset+1] = byte(count - 2)
		for i := 2; i < count; i++ {
			buf[offset+i] = 0
		}
	}
}

// Insert returns a new option header with tlv (type, length, data...)
// added, replacing any existing TLV of the same type. opt may be nil, in
// which case a fresh header is built containing only tlv.
func Insert(opt []byte, tlv []byte) ([]byte, error) {
	if len(tlv) < 2 || int(tlv[1])+2 != len(tlv) {
		return nil, ErrInvalidTLV
	}
	tlvLen := len(tlv)

	var length, start, end int

	if opt != nil {
		length = optLen(opt)
		pos, s, e, found := find(opt, tlv[0])
		start, end = s, e

		if found && opt[pos+1] == tlv[1] {
			// same-length replace: fast path, no repadding needed
			roff := pos + tlvLen
			out := make([]byte, length)
			copy(out, opt[:pos])
			copy(out[pos:], tlv)
			copy(out[roff:], opt[roff:])
			return out, nil
		}
		// either not found, or found with a different length: both fall
		// through to the general insert below using start/end
	} else {
		start = 2
		end = 0
	}

	out := make([]byte, length+start-end+tlvLen+maxPad)
	n := start

	if start > 2 {
		copy(out[:start], opt[:start])
	}

	pad := int(paddingTable[start&3])
	padWrite(out, n, pad)
	n += pad

	copy(out[n:n+tlvLen], tlv)
	n += tlvLen

	if end != length {
		pad = int(paddingTable[n&3])
		padWrite(out, n, pad)
		n += pad

		lastStart, _ := findEnd(opt)
		copy(out[n:n+(lastStart-end)], opt[end:lastStart])
		n += lastStart - end
	}

	pad = (8 - n&7) & 7
	padWrite(out, n, pad)
	n += pad

	out[0] = 0
	out[1] = byte(n/8 - 1)

	return out[:n], nil
}

// Delete returns a new option header with tlvType removed. If tlvType
// was the header's only non-padding TLV, it returns (nil, nil): no
// header is needed at all. Returns ErrNotFound if tlvType is absent.
func Delete(opt []byte, tlvType byte) ([]byte, error) {
	_, start, end, found := find(opt, tlvType)
	if !found {
		return nil, ErrNotFound
	}

	length := optLen(opt)
	if start == 2 && end == length {
		return nil, nil
	}

	out := make([]byte, length-(end-start)+maxPad)
	copy(out[:start], opt[:start])
	n := start

	if end != length {
		pad := int(paddingTable[n&3])
		padWrite(out, n, pad)
		n += pad

		lastStart, _ := findEnd(opt)
		copy(out[n:n+(lastStart-end)], opt[end:lastStart])
		n += lastStart - end
	}

	pad := (8 - n&7) & 7
	padWrite(out, n, pad)
	n += pad

	out[0] = opt[0]
	out[1] = byte(n/8 - 1)

	return out[:n], nil
}
