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
	"net/netip"
	"strconv"
	"testing"
	"time"

	"github.com/ilanet/ila"
	"github.com/ilanet/ila/route"
)

// fakeRouter accepts a single connection, waits for a MAP_REQUEST, and
// replies with the given MAP_INFO frame, standing in for the router side
// of an AMFP session in forwarder tests.
func fakeRouter(t *testing.T, reply Frame) net.Addr {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		conn := NewConnection(nc)
		defer conn.Close()

		select {
		case <-conn.Frames:
		case <-time.After(2 * time.Second):
			return
		}

		conn.Send(reply)
		time.Sleep(200 * time.Millisecond) // give the forwarder time to read before teardown
	}()

	return ln.Addr()
}

func TestForwarderInstallsRouteFromMapInfo(t *testing.T) {
	dest := ila.AddressFromNetip(netip.MustParseAddr("2001:db8::5"))
	loc := ila.AddressFrom(ila.Locator(0xaabb000000000000), 0)
	reply := EncodeMapInfo(MapInfoMsg{SubType: MapReply, LocType: IPv6Addr, IDType: IPv6Addr, Pairs: []Pair{{Ident: dest, Loc: loc}}})

	addr := fakeRouter(t, reply)

	installer := route.NewMemory()
	fwd := NewForwarder(installer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go fwd.Run(ctx, []string{addr.String()}, [][16]byte{dest})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v, ok := installer.Has(ila.MapKey(dest)); ok {
			if v.Loc != ila.Locator(0xaabb000000000000) {
				t.Fatalf("unexpected locator installed: %s", v.Loc)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("route was never installed from MAP_INFO")
}

func TestForwarderSkipsZeroLocatorPairs(t *testing.T) {
	dest := ila.AddressFromNetip(netip.MustParseAddr("2001:db8::99"))
	reply := EncodeMapInfo(MapInfoMsg{SubType: MapReply, LocType: IPv6Addr, IDType: IPv6Addr, Pairs: []Pair{{Ident: dest}}})

	addr := fakeRouter(t, reply)

	installer := route.NewMemory()
	fwd := NewForwarder(installer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go fwd.Run(ctx, []string{addr.String()}, [][16]byte{dest})

	time.Sleep(300 * time.Millisecond)
	if installer.Len() != 0 {
		t.Fatalf("expected no routes installed for zero-locator pair, got %d", installer.Len())
	}
}

func TestForwarderTruncatesExcessRouters(t *testing.T) {
	installer := route.NewMemory()
	fwd := NewForwarder(installer, nil)

	addrs := make([]string, MaxRouters+5)
	for i := range addrs {
		addrs[i] = "127.0.0.1:" + strconv.Itoa(i+1) // unreachable; only the count matters here
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fwd.Run(ctx, addrs, nil) // returns promptly: ctx already cancelled

	fwd.mutex.Lock()
	started := len(fwd.sessions)
	fwd.mutex.Unlock()
	if started != MaxRouters {
		t.Fatalf("expected %d router sessions, got %d", MaxRouters, started)
	}
}
