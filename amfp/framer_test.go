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

import "testing"

func TestFramerWholeFrameAtOnce(t *testing.T) {
	req := EncodeMapRequest(MapRequestMsg{IDType: IPv6Addr, Identifiers: [][16]byte{{1}}})

	var f Framer
	frames, err := f.Feed(req.Encode())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Type != MapRequest {
		t.Fatalf("expected MAP_REQUEST, got %d", frames[0].Type)
	}
}

func TestFramerByteAtATimeProducesFramesInOrder(t *testing.T) {
	req := EncodeMapRequest(MapRequestMsg{IDType: IPv6Addr})
	info := EncodeMapInfo(MapInfoMsg{SubType: MapReply, LocType: IPv6Addr, IDType: IPv6Addr})

	stream := append(req.Encode(), info.Encode()...)

	var f Framer
	var got []Frame

	for _, b := range stream {
		frames, err := f.Feed([]byte{b})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, frames...)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(got))
	}
	if got[0].Type != MapRequest || got[1].Type != MapInfo {
		t.Fatalf("frames out of order: %v, %v", got[0].Type, got[1].Type)
	}
}

func TestFramerArbitraryPartitioningYieldsSameFrameCount(t *testing.T) {
	var frames []Frame
	for i := 0; i < 5; i++ {
		frames = append(frames, EncodeMapRequest(MapRequestMsg{IDType: IPv6Addr, Identifiers: [][16]byte{{byte(i)}}}))
	}

	var stream []byte
	for _, fr := range frames {
		stream = append(stream, fr.Encode()...)
	}

	chunkSizes := []int{1, 2, 3, 7, 13, len(stream)}

	for _, size := range chunkSizes {
		var f Framer
		var decoded int

		for off := 0; off < len(stream); off += size {
			end := off + size
			if end > len(stream) {
				end = len(stream)
			}
			got, err := f.Feed(stream[off:end])
			if err != nil {
				t.Fatalf("chunk size %d: unexpected error: %v", size, err)
			}
			decoded += len(got)
		}

		if decoded != len(frames) {
			t.Fatalf("chunk size %d: expected %d frames, got %d", size, len(frames), decoded)
		}
	}
}

func TestFramerRejectsShortLength(t *testing.T) {
	bad := []byte{MapRequest, 0, 2} // declared length 2 < commonHeaderLen
	var f Framer
	if _, err := f.Feed(bad); err == nil {
		t.Fatalf("expected error for undersized declared length")
	}
}
