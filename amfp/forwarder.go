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
	"sync"
	"time"

	"github.com/ilanet/ila"
	"github.com/ilanet/ila/log"
	"github.com/ilanet/ila/route"
)

const (
	retryBase = 1 * time.Second
	retryCap  = 30 * time.Second

	// MaxRouters bounds how many router addresses one forwarder dials, per
	// the AMFP deployment model of a handful of redundant routers per site.
	MaxRouters = 10
)

// Forwarder dials a fixed set of router addresses, requests the map for a
// configured set of identifiers, and installs whatever MAP_INFO or
// REDIRECT each router session returns. Each address gets its own
// independently-reconnecting session.
type Forwarder struct {
	Installer route.Installer
	Log       log.Log

	mutex    sync.Mutex
	sessions map[string]*forwarderSession
}

func NewForwarder(installer route.Installer, logger log.Log) *Forwarder {
	return &Forwarder{Installer: installer, Log: logger, sessions: map[string]*forwarderSession{}}
}

func (f *Forwarder) logger() log.Log {
	if f.Log == nil {
		return log.Nil{}
	}
	return f.Log
}

// Run dials addrs (truncated to MaxRouters) and blocks until ctx is
// cancelled, requesting identifiers on every successful connection.
func (f *Forwarder) Run(ctx context.Context, addrs []string, identifiers [][16]byte) {
	if len(addrs) > MaxRouters {
		f.logger().WARNING("amfp", "forwarder: truncating router list", log.KV{"configured": len(addrs), "max": MaxRouters})
		addrs = addrs[:MaxRouters]
	}

	var wg sync.WaitGroup

	for _, addr := range addrs {
		sess := &forwarderSession{
			addr:        addr,
			installer:   f.Installer,
			log:         f.logger(),
			identifiers: identifiers,
		}

		f.mutex.Lock()
		f.sessions[addr] = sess
		f.mutex.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.run(ctx)
		}()
	}

	wg.Wait()
}

type forwarderSession struct {
	addr        string
	installer   route.Installer
	log         log.Log
	identifiers [][16]byte
}

// run reconnects to addr with a capped exponential backoff (1s base,
// doubling, 30s cap) until ctx is cancelled, resetting the backoff after
// every connection that reaches an established read loop.
func (s *forwarderSession) run(ctx context.Context) {
	backoff := retryBase

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.log.INFO("amfp", "forwarder: connecting", log.KV{"router": s.addr})

		established, err := s.try(ctx)
		if err != nil {
			s.log.WARNING("amfp", "forwarder: session ended", log.KV{"router": s.addr, "error": err.Error()})
		}
		if established {
			backoff = retryBase
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > retryCap {
			backoff = retryCap
		}
	}
}

// try runs one session; established reports whether the dial succeeded
// and the read loop was reached.
func (s *forwarderSession) try(ctx context.Context) (established bool, err error) {
	dialer := net.Dialer{Timeout: 5 * time.Second}

	nc, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return false, err
	}

	conn := NewConnection(nc)
	defer conn.Close()

	req := EncodeMapRequest(MapRequestMsg{IDType: IPv6Addr, Identifiers: s.identifiers})
	conn.Send(req)

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case frame, ok := <-conn.Frames:
			if !ok {
				if conn.Error != "" {
					return true, errString(conn.Error)
				}
				return true, nil
			}
			s.dispatch(frame)
		}
	}
}

func (s *forwarderSession) dispatch(frame Frame) {
	if frame.Type != MapInfo {
		s.log.WARNING("amfp", "forwarder: unhandled frame type", log.KV{"type": frame.Type})
		return
	}

	info, err := DecodeMapInfo(frame.Body)
	if err != nil {
		s.log.WARNING("amfp", "forwarder: malformed MAP_INFO", log.KV{"error": err.Error()})
		return
	}

	for _, p := range info.Pairs {
		loc := ila.Address(p.Loc).Locator()

		if loc == 0 {
			// no mapping known to the router yet; nothing to install
			continue
		}

		mk := ila.MapKey(p.Ident)
		mv := ila.MapValue{
			Loc:       loc,
			CsumMode:  ila.ChecksumNeutralMapAuto,
			IdentType: ila.IdentLUID,
			HookType:  ila.HookRouteOutput,
		}

		if err := s.installer.SetRoute(mk, mv); err != nil {
			s.log.WARNING("amfp", "forwarder: set_route failed", log.KV{"key": mk.String(), "error": err.Error()})
		}
	}
}

type errString string

func (e errString) Error() string { return string(e) }
