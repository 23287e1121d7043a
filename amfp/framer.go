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
	"encoding/binary"
	"fmt"
)

// Framer reassembles a byte stream arriving in arbitrary chunks into
// complete Frames. It tracks a single want_bytes counter, exactly as the
// length-prefixed reassembly in bgp.connection.reader does for BGP's
// fixed 19-byte header, generalized to AMFP's 3-byte common header with a
// frame-carried length.
type Framer struct {
	buf       []byte
	wantBytes int
}

// Feed appends newly-received bytes and returns every frame that is now
// complete. An error means the stream is corrupt and the connection that
// owns this Framer must be closed; no further Feed calls are valid.
func (f *Framer) Feed(b []byte) ([]Frame, error) {
	f.buf = append(f.buf, b...)

	var frames []Frame

	for {
		if f.wantBytes == 0 {
			if len(f.buf) < commonHeaderLen {
				return frames, nil
			}

			length := int(binary.BigEndian.Uint16(f.buf[1:3]))
			if length < commonHeaderLen {
				return frames, fmt.Errorf("amfp: frame length %d below minimum %d", length, commonHeaderLen)
			}
			if length > 65535 {
				return frames, fmt.Errorf("amfp: frame length %d exceeds maximum", length)
			}

			f.wantBytes = length
		}

		if len(f.buf) < f.wantBytes {
			return frames, nil
		}

		frame := Frame{Type: f.buf[0], Body: append([]byte(nil), f.buf[commonHeaderLen:f.wantBytes]...)}
		frames = append(frames, frame)

		f.buf = f.buf[f.wantBytes:]
		f.wantBytes = 0
	}
}
