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

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryReadMissing(t *testing.T) {
	m := NewMemory()
	_, err := m.Read(context.Background(), []byte("k"))
	require.ErrorIs(t, err, ErrMissing)
}

func TestMemoryWriteRead(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, []byte("k"), []byte("v1")))

	v, err := m.Read(ctx, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), v)
}

func TestMemoryDeleteMissingIsErrMissing(t *testing.T) {
	m := NewMemory()
	err := m.Delete(context.Background(), []byte("nope"))
	require.ErrorIs(t, err, ErrMissing)
}

func TestMemoryScanVisitsEveryKey(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, []byte("a"), []byte("1")))
	require.NoError(t, m.Write(ctx, []byte("b"), []byte("2")))

	seen := map[string]string{}
	require.NoError(t, m.Scan(ctx, func(k, v []byte) {
		seen[string(k)] = string(v)
	}))

	require.Equal(t, map[string]string{"a": "1", "b": "2"}, seen)
}

func TestMemoryWatchAllFiresOnWriteAndDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var events [][2]string
	h, err := m.WatchAll(ctx, func(k, v []byte) {
		if v == nil {
			events = append(events, [2]string{string(k), ""})
			return
		}
		events = append(events, [2]string{string(k), string(v)})
	})
	require.NoError(t, err)

	require.NoError(t, m.Write(ctx, []byte("x"), []byte("1")))
	require.NoError(t, m.Delete(ctx, []byte("x")))

	require.Equal(t, [][2]string{{"x", "1"}, {"x", ""}}, events)

	require.NoError(t, m.StopWatch(h))
	require.NoError(t, m.Write(ctx, []byte("y"), []byte("2")))
	require.Len(t, events, 2, "watch must not fire after StopWatch")
}

func TestMemoryWatchOneIgnoresOtherKeys(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var fired int
	_, err := m.WatchOne(ctx, []byte("target"), func(k, v []byte) {
		fired++
	})
	require.NoError(t, err)

	require.NoError(t, m.Write(ctx, []byte("other"), []byte("1")))
	require.Equal(t, 0, fired)

	require.NoError(t, m.Write(ctx, []byte("target"), []byte("1")))
	require.Equal(t, 1, fired)
}
