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

package ila

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/ilanet/ila/log"
	"github.com/ilanet/ila/route"
	"github.com/ilanet/ila/store"
)

// Synchronizer mirrors an external store into the host's forwarding table
// (router role) or derives map rows from ident/loc (control role). It
// scans the store once on startup, then reconciles forever from the
// store's watch stream — scan and watch use the same idempotent visitor,
// so an event that lands during the scan is simply re-applied, not lost.
type Synchronizer struct {
	Log log.Log

	mu        sync.Mutex
	identAddr map[IdentKey]Address // last address seen for each ident, so a
	// later deletion notification (which carries no value) still knows
	// which derived *map* row to remove.
}

func (s *Synchronizer) logger() log.Log {
	if s.Log == nil {
		return log.Nil{}
	}
	return s.Log
}

// RunRouter reconciles the *map* store into kernel routes. It is the
// consumer side of the pipeline, run by the forwarding daemon in router
// mode.
func (s *Synchronizer) RunRouter(ctx context.Context, mapStore store.Store, installer route.Installer) error {
	visit := func(key, value []byte) {
		s.routerVisit(installer, key, value)
	}

	if err := mapStore.Scan(ctx, visit); err != nil {
		return err
	}

	_, err := mapStore.WatchAll(ctx, visit)
	return err
}

func (s *Synchronizer) routerVisit(installer route.Installer, key, value []byte) {
	mk, ok := decodeMapKey(key)
	if !ok {
		s.logger().WARNING("sync", "malformed map key", log.KV{"len": len(key)})
		return
	}

	if value == nil {
		if err := installer.DelRoute(mk); err != nil && err != route.ErrMissing {
			s.logger().WARNING("sync", "del_route failed", log.KV{"key": mk.String(), "error": err.Error()})
		}
		return
	}

	mv, ok := decodeMapValue(value)
	if !ok {
		s.logger().WARNING("sync", "malformed map value", log.KV{"key": mk.String()})
		return
	}

	if err := installer.SetRoute(mk, mv); err != nil {
		s.logger().WARNING("sync", "set_route failed", log.KV{"key": mk.String(), "error": err.Error()})
	}
}

// RunControl reconciles *ident* (joined with *loc*) into derived *map*
// rows. It is the producer side of the pipeline, run only by the control
// daemon.
func (s *Synchronizer) RunControl(ctx context.Context, identStore, locStore, mapStore store.Store) error {
	s.mu.Lock()
	if s.identAddr == nil {
		s.identAddr = map[IdentKey]Address{}
	}
	s.mu.Unlock()

	visit := func(key, value []byte) {
		s.controlVisit(ctx, locStore, mapStore, key, value)
	}

	if err := identStore.Scan(ctx, visit); err != nil {
		return err
	}

	_, err := identStore.WatchAll(ctx, visit)
	return err
}

func (s *Synchronizer) controlVisit(ctx context.Context, locStore, mapStore store.Store, key, value []byte) {
	ik, ok := decodeIdentKey(key)
	if !ok {
		s.logger().WARNING("sync", "malformed ident key", log.KV{"len": len(key)})
		return
	}

	if value == nil {
		s.deleteDerivedMap(ctx, mapStore, ik)
		return
	}

	iv, ok := decodeIdentValue(value)
	if !ok {
		s.logger().WARNING("sync", "malformed ident value", log.KV{"key": ik})
		return
	}

	if iv.LocNum == 0 {
		s.deleteDerivedMap(ctx, mapStore, ik)
		return
	}

	locBytes, err := locStore.Read(ctx, encodeLocKey(LocKey(iv.LocNum)))
	if err != nil {
		if err != store.ErrMissing {
			s.logger().WARNING("sync", "loc read failed", log.KV{"loc_num": iv.LocNum, "error": err.Error()})
		}
		s.deleteDerivedMap(ctx, mapStore, ik)
		return
	}

	loc, ok := decodeLocValue(locBytes)
	if !ok {
		s.logger().WARNING("sync", "malformed loc value", log.KV{"loc_num": iv.LocNum})
		return
	}

	mv := MapValue{
		Loc:       Locator(loc),
		IfIndex:   0,
		CsumMode:  ChecksumNeutralMapAuto,
		IdentType: IdentLUID,
		HookType:  HookRouteOutput,
	}

	mk := MapKey(iv.Address)
	if err := mapStore.Write(ctx, encodeMapKey(mk), encodeMapValue(mv)); err != nil {
		s.logger().WARNING("sync", "map write failed", log.KV{"key": mk.String(), "error": err.Error()})
		return
	}

	s.mu.Lock()
	s.identAddr[ik] = iv.Address
	s.mu.Unlock()
}

// deleteDerivedMap removes the *map* row this ident key last produced, if
// any is known. It is a no-op the first time a given ident is ever seen
// absent or loc-less — there is nothing derived yet to remove.
func (s *Synchronizer) deleteDerivedMap(ctx context.Context, mapStore store.Store, ik IdentKey) {
	s.mu.Lock()
	addr, ok := s.identAddr[ik]
	if ok {
		delete(s.identAddr, ik)
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	mk := MapKey(addr)
	if err := mapStore.Delete(ctx, encodeMapKey(mk)); err != nil && err != store.ErrMissing {
		s.logger().WARNING("sync", "map delete failed", log.KV{"key": mk.String(), "error": err.Error()})
	}
}

func decodeMapKey(b []byte) (MapKey, bool) {
	if len(b) != 16 {
		return MapKey{}, false
	}
	var a Address
	copy(a[:], b)
	return MapKey(a), true
}

func encodeMapKey(k MapKey) []byte {
	b := make([]byte, 16)
	copy(b, Address(k)[:])
	return b
}

func decodeMapValue(b []byte) (MapValue, bool) {
	if len(b) < 15 {
		return MapValue{}, false
	}
	return MapValue{
		Loc:       Locator(binary.BigEndian.Uint64(b[0:8])),
		IfIndex:   int(binary.BigEndian.Uint32(b[8:12])),
		CsumMode:  ChecksumMode(b[12]),
		IdentType: IdentType(b[13]),
		HookType:  HookType(b[14]),
	}, true
}

func encodeMapValue(v MapValue) []byte {
	b := make([]byte, 15)
	binary.BigEndian.PutUint64(b[0:8], uint64(v.Loc))
	binary.BigEndian.PutUint32(b[8:12], uint32(v.IfIndex))
	b[12] = byte(v.CsumMode)
	b[13] = byte(v.IdentType)
	b[14] = byte(v.HookType)
	return b
}

func decodeIdentKey(b []byte) (IdentKey, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return IdentKey(binary.BigEndian.Uint64(b)), true
}

func encodeIdentKey(k IdentKey) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(k))
	return b
}

func decodeIdentValue(b []byte) (IdentValue, bool) {
	if len(b) != 24 {
		return IdentValue{}, false
	}
	var a Address
	copy(a[:], b[:16])
	return IdentValue{Address: a, LocNum: binary.BigEndian.Uint64(b[16:24])}, true
}

func encodeIdentValue(v IdentValue) []byte {
	b := make([]byte, 24)
	copy(b[:16], v.Address[:])
	binary.BigEndian.PutUint64(b[16:24], v.LocNum)
	return b
}

func encodeLocKey(k LocKey) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(k))
	return b
}

func decodeLocValue(b []byte) (LocValue, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return LocValue(binary.BigEndian.Uint64(b)), true
}

func encodeLocValue(v LocValue) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}
