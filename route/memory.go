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

package route

import (
	"sync"

	"github.com/ilanet/ila"
)

// Memory is a recording Installer double for tests: it keeps the set of
// routes a real kernel would hold, and a log of every call made to it.
type Memory struct {
	mu     sync.Mutex
	cfg    Config
	routes map[ila.MapKey]ila.MapValue
	Calls  []string
}

func NewMemory() *Memory {
	return &Memory{routes: map[ila.MapKey]ila.MapValue{}}
}

func (m *Memory) Configure(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	return nil
}

func (m *Memory) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = map[ila.MapKey]ila.MapValue{}
	m.Calls = append(m.Calls, "start")
	return nil
}

func (m *Memory) SetRoute(key ila.MapKey, value ila.MapValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if value.Loc == m.cfg.LocalLocator {
		delete(m.routes, key)
		m.Calls = append(m.Calls, "set-noop:"+key.String())
		return nil
	}

	m.routes[key] = value
	m.Calls = append(m.Calls, "set:"+key.String())
	return nil
}

func (m *Memory) DelRoute(key ila.MapKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.routes[key]; !ok {
		m.Calls = append(m.Calls, "del-missing:"+key.String())
		return ErrMissing
	}

	delete(m.routes, key)
	m.Calls = append(m.Calls, "del:"+key.String())
	return nil
}

// Has reports whether a route is currently installed for key, for test
// assertions.
func (m *Memory) Has(key ila.MapKey) (ila.MapValue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.routes[key]
	return v, ok
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.routes)
}
