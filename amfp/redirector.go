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

	"github.com/ilanet/ila"
	"github.com/ilanet/ila/log"
	"github.com/ilanet/ila/notify"
	"github.com/ilanet/ila/store"
)

// LocatorIDFromLocatorBytes extracts the 16-bit locator-id from bytes
// 6-7 of a big-endian locator, as used for route-notify redirect lookups
// (distinct from LocatorIDFromAddr's bytes 2-3, used at accept time).
func LocatorIDFromLocatorBytes(loc [8]byte) uint16 {
	return uint16(loc[6])<<8 | uint16(loc[7])
}

// Redirector drains a kernel route-miss listener and turns each record
// into a REDIRECT pushed to the peer connection that owns the source's
// locator-id, per the redirect-push rule: read *map* by source to find
// which peer should be told, read *map* by destination to find what to
// tell it, and only push if that peer is still connected.
type Redirector struct {
	MapStore store.Store
	Router   *Router
	Log      log.Log
}

func (r *Redirector) logger() log.Log {
	if r.Log == nil {
		return log.Nil{}
	}
	return r.Log
}

// Run drains listener.Records until the channel closes or ctx is done.
func (r *Redirector) Run(ctx context.Context, listener notify.Listener) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-listener.Records():
			if !ok {
				return
			}
			r.handle(ctx, rec)
		}
	}
}

func (r *Redirector) handle(ctx context.Context, rec notify.Record) {
	srcAddr := ila.AddressFromNetip(rec.Src)

	srcMapBytes, err := r.MapStore.Read(ctx, srcAddr[:])
	if err != nil {
		return
	}
	srcMap, ok := decodeMapValueForRedirect(srcMapBytes)
	if !ok {
		r.logger().WARNING("notify", "malformed map value for source", log.KV{"src": srcAddr.String()})
		return
	}

	locatorID := LocatorIDFromLocatorBytes(srcMap.Loc.Bytes())

	dstAddr := ila.AddressFromNetip(rec.Dst)
	dstMapBytes, err := r.MapStore.Read(ctx, dstAddr[:])
	if err != nil {
		return
	}
	dstMap, ok := decodeMapValueForRedirect(dstMapBytes)
	if !ok {
		r.logger().WARNING("notify", "malformed map value for destination", log.KV{"dst": dstAddr.String()})
		return
	}

	r.Router.PushRedirect(locatorID, dstAddr, dstMap.Loc)
}

// decodeMapValueForRedirect reads just the locator field out of a *map*
// row's wire encoding; the full MapValue layout is owned by the root
// package's synchronizer, but its first 8 bytes (the locator) are a
// stable wire contract shared with amfp's own MAP_INFO handling.
func decodeMapValueForRedirect(b []byte) (struct{ Loc ila.Locator }, bool) {
	if len(b) < 8 {
		return struct{ Loc ila.Locator }{}, false
	}
	return struct{ Loc ila.Locator }{Loc: ila.LocatorFromBytes(b[:8])}, true
}
