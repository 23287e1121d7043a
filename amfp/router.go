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

import (
	"context"
	"net"

	"github.com/ilanet/ila"
	"github.com/ilanet/ila/log"
	"github.com/ilanet/ila/route"
	"github.com/ilanet/ila/store"
)

// ListenAddr is the router's fixed AMFP listening address.
const ListenAddr = "[::]:5555"

// Router answers MAP_REQUEST from peers against the local *map* store,
// installs routes from inbound MAP_INFO, and pushes REDIRECT MAP_INFO to
// the connection owning a given locator-id when asked to by the
// notification listener.
type Router struct {
	MapStore  store.Store
	Installer route.Installer
	Log       log.Log

	pool *Pool
}

func NewRouter(mapStore store.Store, installer route.Installer, logger log.Log) *Router {
	return &Router{MapStore: mapStore, Installer: installer, Log: logger, pool: NewPool()}
}

func (r *Router) logger() log.Log {
	if r.Log == nil {
		return log.Nil{}
	}
	return r.Log
}

// Serve accepts AMFP connections until ctx is cancelled or the listener
// fails fatally (§5's Listener-fatal class: the caller must restart the
// daemon).
func (r *Router) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}

		go r.handleAccept(conn)
	}
}

func (r *Router) handleAccept(nc net.Conn) {
	tcpAddr, ok := nc.RemoteAddr().(*net.TCPAddr)
	if !ok {
		nc.Close()
		return
	}

	addr16 := tcpAddr.IP.To16()
	if addr16 == nil {
		nc.Close()
		return
	}

	var raw [16]byte
	copy(raw[:], addr16)
	locatorID := LocatorIDFromAddr(raw)

	conn := NewConnection(nc)

	if err := r.pool.Put(locatorID, conn); err != nil {
		r.logger().WARNING("amfp", "rejecting duplicate locator-id connection", log.KV{"locator_id": locatorID, "peer": tcpAddr.String()})
		conn.Close()
		return
	}

	r.logger().INFO("amfp", "accepted connection", log.KV{"locator_id": locatorID, "peer": tcpAddr.String()})

	defer r.pool.Remove(locatorID, conn)

	for frame := range conn.Frames {
		r.dispatch(conn, frame)
	}
}

func (r *Router) dispatch(conn *Connection, frame Frame) {
	ctx := context.Background()

	switch frame.Type {
	case MapRequest:
		r.handleMapRequest(ctx, conn, frame)
	case MapInfo:
		r.handleMapInfo(ctx, frame)
	default:
		r.logger().WARNING("amfp", "unhandled frame type", log.KV{"type": frame.Type})
	}
}

func (r *Router) handleMapRequest(ctx context.Context, conn *Connection, frame Frame) {
	req, err := DecodeMapRequest(frame.Body)
	if err != nil {
		r.logger().WARNING("amfp", "malformed MAP_REQUEST", log.KV{"error": err.Error()})
		conn.Close()
		return
	}

	pairs := make([]Pair, len(req.Identifiers))

	for i, ident := range req.Identifiers {
		pairs[i].Ident = ident

		value, err := r.MapStore.Read(ctx, ident[:])
		switch {
		case err == nil:
			mv, ok := decodeAmfpMapValue(value)
			if ok {
				pairs[i].Loc = ila.AddressFrom(mv.Loc, 0)
			}
		case err == store.ErrMissing:
			// leave Loc zeroed
		default:
			r.logger().WARNING("amfp", "map read failed during MAP_REQUEST", log.KV{"error": err.Error()})
		}
	}

	reply := EncodeMapInfo(MapInfoMsg{SubType: MapReply, LocType: IPv6Addr, IDType: IPv6Addr, Pairs: pairs})
	conn.Send(reply)
}

func (r *Router) handleMapInfo(ctx context.Context, frame Frame) {
	info, err := DecodeMapInfo(frame.Body)
	if err != nil {
		r.logger().WARNING("amfp", "malformed MAP_INFO", log.KV{"error": err.Error()})
		return
	}

	for _, p := range info.Pairs {
		mk := ila.MapKey(p.Ident)
		mv := ila.MapValue{
			Loc:       ila.Address(p.Loc).Locator(),
			CsumMode:  ila.ChecksumNeutralMapAuto,
			IdentType: ila.IdentLUID,
			HookType:  ila.HookRouteOutput,
		}

		if err := r.Installer.SetRoute(mk, mv); err != nil {
			r.logger().WARNING("amfp", "set_route failed from MAP_INFO", log.KV{"key": mk.String(), "error": err.Error()})
		}
	}
}

// PushRedirect sends a REDIRECT MAP_INFO carrying (dest, locator) to
// whichever connection currently owns locatorID. It is a no-op if no
// connection is in that slot.
func (r *Router) PushRedirect(locatorID uint16, dest ila.Address, locator ila.Locator) {
	conn, ok := r.pool.Get(locatorID)
	if !ok {
		return
	}

	pair := Pair{Ident: dest, Loc: ila.AddressFrom(locator, 0)}
	frame := EncodeMapInfo(MapInfoMsg{SubType: Redirect, LocType: IPv6Addr, IDType: IPv6Addr, Pairs: []Pair{pair}})
	conn.Send(frame)
}

// amfpMapValue is the wire-layer decode used solely to answer
// MAP_REQUEST; it intentionally ignores fields irrelevant to the reply
// (IfIndex, HookType) since only the locator is returned to the peer.
type amfpMapValue struct {
	Loc ila.Locator
}

func decodeAmfpMapValue(b []byte) (amfpMapValue, bool) {
	if len(b) < 8 {
		return amfpMapValue{}, false
	}
	return amfpMapValue{Loc: ila.LocatorFromBytes(b[:8])}, true
}
