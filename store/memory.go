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
	"sync"
)

// Memory is an in-process Store double for tests: no network, no
// goroutine-based fan-out delay, watch callbacks fire synchronously from
// whichever goroutine called Write/Delete.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
	all  map[*watch]Visitor
	one  map[string]map[*watch]Visitor
}

func NewMemory() *Memory {
	return &Memory{
		data: map[string][]byte{},
		all:  map[*watch]Visitor{},
		one:  map[string]map[*watch]Visitor{},
	}
}

func (m *Memory) Configure(map[string]string) error { return nil }
func (m *Memory) Start(context.Context) error       { return nil }
func (m *Memory) Stop() error                        { return nil }

func (m *Memory) Read(_ context.Context, key []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrMissing
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (m *Memory) Write(_ context.Context, key, value []byte) error {
	m.mu.Lock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[string(key)] = cp
	watchers := m.watchersFor(key)
	m.mu.Unlock()

	for _, v := range watchers {
		v(key, cp)
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, key []byte) error {
	m.mu.Lock()
	_, ok := m.data[string(key)]
	delete(m.data, string(key))
	watchers := m.watchersFor(key)
	m.mu.Unlock()

	if !ok {
		return ErrMissing
	}

	for _, v := range watchers {
		v(key, nil)
	}
	return nil
}

func (m *Memory) watchersFor(key []byte) []Visitor {
	var out []Visitor
	for _, v := range m.all {
		out = append(out, v)
	}
	for w, v := range m.one[string(key)] {
		_ = w
		out = append(out, v)
	}
	return out
}

func (m *Memory) Scan(_ context.Context, visitor Visitor) error {
	m.mu.Lock()
	snapshot := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		snapshot[k] = v
	}
	m.mu.Unlock()

	for k, v := range snapshot {
		visitor([]byte(k), v)
	}
	return nil
}

func (m *Memory) WatchAll(_ context.Context, visitor Visitor) (Handle, error) {
	w := &watch{}
	m.mu.Lock()
	m.all[w] = visitor
	m.mu.Unlock()
	return w, nil
}

func (m *Memory) WatchOne(_ context.Context, key []byte, visitor Visitor) (Handle, error) {
	w := &watch{key: key}
	m.mu.Lock()
	if m.one[string(key)] == nil {
		m.one[string(key)] = map[*watch]Visitor{}
	}
	m.one[string(key)][w] = visitor
	m.mu.Unlock()
	return w, nil
}

func (m *Memory) StopWatch(h Handle) error {
	w, ok := h.(*watch)
	if !ok {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if w.key == nil {
		delete(m.all, w)
		return nil
	}
	if sub, ok := m.one[string(w.key)]; ok {
		delete(sub, w)
	}
	return nil
}
