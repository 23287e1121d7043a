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

//go:build linux

package notify

import (
	"net/netip"

	"golang.org/x/sys/unix"
)

// RTNLGRPIdlocd is the multicast group the kernel ILA route-miss
// notifier publishes to.
const RTNLGRPIdlocd = 0x20

// RouteNotify is a real raw AF_NETLINK listener bound to the kernel's
// ILA route-miss multicast group. Where the reactor this descends from
// woke on readability and drained the socket to EAGAIN, a dedicated
// goroutine blocking on Recvfrom achieves the same effect without an
// explicit event loop: ENOBUFS is non-fatal (the kernel dropped
// messages faster than we read them; keep reading what's left) and any
// other error, or a zero-length read, ends the listener.
type RouteNotify struct {
	fd      int
	records chan Record
	done    chan struct{}
}

func NewRouteNotify() (*RouteNotify, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_ROUTE)
	if err != nil {
		return nil, err
	}

	sa := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1 << (RTNLGRPIdlocd - 1)}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}

	n := &RouteNotify{
		fd:      fd,
		records: make(chan Record, 64),
		done:    make(chan struct{}),
	}

	go n.loop()

	return n, nil
}

func (n *RouteNotify) Records() <-chan Record {
	return n.records
}

func (n *RouteNotify) Close() error {
	select {
	case <-n.done:
	default:
		close(n.done)
	}
	return unix.Close(n.fd)
}

func (n *RouteNotify) loop() {
	defer close(n.records)

	buf := make([]byte, 8192)

	for {
		select {
		case <-n.done:
			return
		default:
		}

		n_, _, err := unix.Recvfrom(n.fd, buf, 0)
		if err != nil {
			if err == unix.ENOBUFS {
				continue
			}
			return
		}

		if n_ == 0 {
			// EOF: the socket peer (the kernel) is gone.
			return
		}

		rec, ok := decodeRouteMiss(buf[:n_])
		if !ok {
			continue
		}

		select {
		case n.records <- rec:
		case <-n.done:
			return
		}
	}
}

// decodeRouteMiss extracts the (src, dst) pair from a route-miss
// notification payload: two back-to-back 16-byte IPv6 addresses
// following the netlink message header.
func decodeRouteMiss(b []byte) (Record, bool) {
	const nlmsghdrLen = 16

	if len(b) < nlmsghdrLen+32 {
		return Record{}, false
	}

	body := b[nlmsghdrLen:]

	var src, dst [16]byte
	copy(src[:], body[0:16])
	copy(dst[:], body[16:32])

	return Record{Src: netip.AddrFrom16(src), Dst: netip.AddrFrom16(dst)}, true
}
