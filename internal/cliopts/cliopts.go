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

// Package cliopts parses the daemons' comma-separated sub-option flags
// (-D host=H,port=P and -A router=ADDR,router=ADDR), the Go equivalent of
// the original's getsubopt-style parsing.
package cliopts

import "strings"

// Parse splits a "key=value,key=value" string into a multi-valued map,
// preserving each key's values in occurrence order so repeated keys (the
// "-A router=A,router=B" shape) aren't collapsed.
func Parse(s string) map[string][]string {
	out := map[string][]string{}
	if s == "" {
		return out
	}

	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		k, v, _ := strings.Cut(pair, "=")
		out[k] = append(out[k], v)
	}

	return out
}

// Single flattens Parse's result to the single-valued shape
// store.Store.Configure and route.Installer.Configure expect, keeping
// the last occurrence of any key given more than once.
func Single(s string) map[string]string {
	multi := Parse(s)
	out := make(map[string]string, len(multi))
	for k, vs := range multi {
		out[k] = vs[len(vs)-1]
	}
	return out
}

// Values returns every value given for key, in occurrence order.
func Values(s, key string) []string {
	return Parse(s)[key]
}
