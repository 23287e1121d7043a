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

package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlogWritesRecordsToLogfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ila.log")

	l := New(Options{Path: path, Name: "ilad", Level: INFO})
	l.INFO("amfp", "accepted connection", KV{"locator_id": 7})
	l.DEBUG("amfp", "should be filtered out", KV{})
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	out := string(data)
	require.Contains(t, out, "accepted connection")
	require.Contains(t, out, "ilad")
	require.NotContains(t, out, "should be filtered out")
}

func TestSlogLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ila.log")

	l := New(Options{Path: path, Level: ERR})
	l.WARNING("store", "dropped warning", KV{})
	l.ERR("store", "kept error", KV{})
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	out := string(data)
	require.NotContains(t, out, "dropped warning")
	require.Contains(t, out, "kept error")
}

func TestParseLevelRoundTrip(t *testing.T) {
	for _, name := range []string{"EMERG", "ALERT", "CRIT", "ERR", "WARNING", "NOTICE", "INFO", "DEBUG"} {
		lvl, ok := ParseLevel(name)
		require.True(t, ok)
		require.Equal(t, name, lvl.String())
	}

	_, ok := ParseLevel("BOGUS")
	require.False(t, ok)
}
