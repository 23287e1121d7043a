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

package tlv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// allPadding builds an n-byte (multiple of 8) header containing nothing
// but a single padN filling the body.
func allPadding(n int) []byte {
	opt := make([]byte, n)
	opt[1] = byte(n/8 - 1)
	padWrite(opt, 2, n-2)
	return opt
}

func TestInsertIntoAllPaddingHeader(t *testing.T) {
	opt := allPadding(8)
	tlv := []byte{0x3e, 2, 0xAB, 0xCD}

	out, err := Insert(opt, tlv)
	require.NoError(t, err)
	require.Equal(t, 8, len(out))
	require.Equal(t, byte(0), out[1]) // hdrlen == 0

	require.Equal(t, byte(0x3e), out[2])
	require.Equal(t, byte(2), out[3])
	require.Equal(t, byte(0xAB), out[4])
	require.Equal(t, byte(0xCD), out[5])

	require.NoError(t, Validate(out))
}

func TestInsertIntoNilHeader(t *testing.T) {
	tlv := []byte{5, 2, 1, 2}

	out, err := Insert(nil, tlv)
	require.NoError(t, err)
	require.Zero(t, len(out)%8)
	require.NoError(t, Validate(out))

	start, end, found := Find(out, 5)
	require.True(t, found)
	require.Equal(t, tlv, out[start:end][0:4])
}

func TestFindRoundTripsAfterInsert(t *testing.T) {
	opt := allPadding(8)

	tlvA := []byte{2, 2, 0x11, 0x22}
	out, err := Insert(opt, tlvA)
	require.NoError(t, err)
	require.NoError(t, Validate(out))

	tlvB := []byte{9, 4, 1, 2, 3, 4}
	out, err = Insert(out, tlvB)
	require.NoError(t, err)
	require.NoError(t, Validate(out))

	start, end, found := Find(out, 2)
	require.True(t, found)
	require.Equal(t, tlvA, out[start:start+len(tlvA)])
	_ = end

	start, end, found = Find(out, 9)
	require.True(t, found)
	require.Equal(t, tlvB, out[start:start+len(tlvB)])
	_ = end
}

func TestInsertReplacesSameType(t *testing.T) {
	opt := allPadding(8)

	first := []byte{7, 2, 0xAA, 0xBB}
	out, err := Insert(opt, first)
	require.NoError(t, err)

	second := []byte{7, 2, 0xCC, 0xDD}
	out, err = Insert(out, second)
	require.NoError(t, err)
	require.NoError(t, Validate(out))

	start, end, found := Find(out, 7)
	require.True(t, found)
	require.Equal(t, second, out[start:start+4])
	_ = end
}

func TestDeleteOnlyTLVReturnsNil(t *testing.T) {
	opt := allPadding(8)
	tlv := []byte{3, 2, 9, 9}

	out, err := Insert(opt, tlv)
	require.NoError(t, err)

	deleted, err := Delete(out, 3)
	require.NoError(t, err)
	require.Nil(t, deleted)
}

func TestDeleteNotFound(t *testing.T) {
	opt := allPadding(8)
	_, err := Delete(opt, 3)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInsertThenDeleteRoundTrip(t *testing.T) {
	opt := allPadding(8)

	a := []byte{2, 2, 1, 1}
	b := []byte{9, 2, 2, 2}

	out, err := Insert(opt, a)
	require.NoError(t, err)
	out, err = Insert(out, b)
	require.NoError(t, err)
	require.NoError(t, Validate(out))

	out, err = Delete(out, 9)
	require.NoError(t, err)
	require.NoError(t, Validate(out))

	_, _, found := Find(out, 9)
	require.False(t, found)

	start, _, found := Find(out, 2)
	require.True(t, found)
	require.Equal(t, a, out[start:start+4])
}

func TestValidateRejectsTruncatedTLV(t *testing.T) {
	opt := []byte{0, 0, 5, 250, 0, 0, 0, 0} // claims 250 bytes of data, header is only 8
	require.Error(t, Validate(opt))
}

func TestValidateAcceptsPlainPadding(t *testing.T) {
	require.NoError(t, Validate(allPadding(8)))
	require.NoError(t, Validate(allPadding(16)))
}
