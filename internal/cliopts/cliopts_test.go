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

package cliopts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSingleParsesHostPort(t *testing.T) {
	opts := Single("host=10.0.0.1,port=6379")
	require.Equal(t, map[string]string{"host": "10.0.0.1", "port": "6379"}, opts)
}

func TestValuesCollectsRepeatedKeys(t *testing.T) {
	routers := Values("router=10.0.0.1:5555,router=10.0.0.2:5555", "router")
	require.Equal(t, []string{"10.0.0.1:5555", "10.0.0.2:5555"}, routers)
}

func TestParseEmptyString(t *testing.T) {
	require.Empty(t, Parse(""))
	require.Empty(t, Single(""))
}

func TestSingleKeepsLastOccurrence(t *testing.T) {
	opts := Single("port=1,port=2")
	require.Equal(t, "2", opts["port"])
}
