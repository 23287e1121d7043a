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
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T, prefix string) *Redis {
	t.Helper()

	srv := miniredis.RunT(t)

	host, port, ok := strings.Cut(srv.Addr(), ":")
	require.True(t, ok)

	r := NewRedis(Options{})
	require.NoError(t, r.Configure(map[string]string{"host": host, "port": port, "prefix": prefix}))
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(func() { r.Stop() })

	return r
}

func TestRedisWriteReadDelete(t *testing.T) {
	ctx := context.Background()
	r := newTestRedis(t, "map:")

	key := []byte("2001:db8::1")
	value := []byte{1, 2, 3, 4}

	require.NoError(t, r.Write(ctx, key, value))

	got, err := r.Read(ctx, key)
	require.NoError(t, err)
	require.Equal(t, value, got)

	require.NoError(t, r.Delete(ctx, key))

	_, err = r.Read(ctx, key)
	require.ErrorIs(t, err, ErrMissing)
}

func TestRedisReadMissingKey(t *testing.T) {
	r := newTestRedis(t, "ident:")

	_, err := r.Read(context.Background(), []byte("nope"))
	require.ErrorIs(t, err, ErrMissing)
}

func TestRedisDeleteMissingKey(t *testing.T) {
	r := newTestRedis(t, "loc:")

	err := r.Delete(context.Background(), []byte("nope"))
	require.ErrorIs(t, err, ErrMissing)
}

func TestRedisScanVisitsOnlyOwnPrefix(t *testing.T) {
	ctx := context.Background()
	r := newTestRedis(t, "ident:")

	require.NoError(t, r.Write(ctx, []byte("a"), []byte("1")))
	require.NoError(t, r.Write(ctx, []byte("b"), []byte("2")))

	// A key under a different prefix sharing the same server must not
	// show up in this store's scan.
	require.NoError(t, r.client.Set(ctx, "loc:c", "3", 0).Err())

	seen := map[string][]byte{}
	require.NoError(t, r.Scan(ctx, func(key, value []byte) {
		seen[string(key)] = value
	}))

	require.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, seen)
}

func TestRedisPrefixIsolatesSeparateStores(t *testing.T) {
	srv := miniredis.RunT(t)
	host, port, ok := strings.Cut(srv.Addr(), ":")
	require.True(t, ok)

	ident := NewRedis(Options{})
	require.NoError(t, ident.Configure(map[string]string{"host": host, "port": port, "prefix": "ident:"}))
	require.NoError(t, ident.Start(context.Background()))
	t.Cleanup(func() { ident.Stop() })

	loc := NewRedis(Options{})
	require.NoError(t, loc.Configure(map[string]string{"host": host, "port": port, "prefix": "loc:"}))
	require.NoError(t, loc.Start(context.Background()))
	t.Cleanup(func() { loc.Stop() })

	ctx := context.Background()
	require.NoError(t, ident.Write(ctx, []byte("42"), []byte("ident-value")))
	require.NoError(t, loc.Write(ctx, []byte("42"), []byte("loc-value")))

	gotIdent, err := ident.Read(ctx, []byte("42"))
	require.NoError(t, err)
	require.Equal(t, []byte("ident-value"), gotIdent)

	gotLoc, err := loc.Read(ctx, []byte("42"))
	require.NoError(t, err)
	require.Equal(t, []byte("loc-value"), gotLoc)
}
