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
	"sync"
	"time"
)

// Connection wraps a net.Conn-like transport with outbound queueing and a
// decoded-frame channel, mirroring the writer/reader goroutine split of
// bgp.connection: the writer drains an outbound queue whenever it is
// signalled non-empty, the reader feeds raw bytes through a Framer and
// publishes whole Frames, and either side closing its half tears down
// the other.
type Connection struct {
	Frames chan Frame // decoded inbound frames; closed when the reader exits
	Error  string

	conn transport

	closed     chan struct{}
	writerExit chan struct{}
	readerExit chan struct{}
	pending    chan struct{}
	mutex      sync.Mutex
	out        [][]byte
}

// transport is the subset of net.Conn a Connection needs; defined as an
// interface so tests can drive it without a real socket.
type transport interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	SetWriteDeadline(t time.Time) error
	Close() error
}

func NewConnection(conn transport) *Connection {
	c := &Connection{
		Frames:     make(chan Frame, 16),
		conn:       conn,
		closed:     make(chan struct{}),
		writerExit: make(chan struct{}),
		readerExit: make(chan struct{}),
		pending:    make(chan struct{}, 1),
	}

	go c.writer()
	go c.reader()

	return c
}

func (c *Connection) Close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
}

func (c *Connection) Send(f Frame) {
	c.mutex.Lock()
	c.out = append(c.out, f.Encode())
	c.mutex.Unlock()

	select {
	case c.pending <- struct{}{}:
	default:
	}
}

func (c *Connection) shift() ([]byte, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if len(c.out) == 0 {
		return nil, false
	}

	m := c.out[0]
	c.out = c.out[1:]

	if len(c.out) > 0 {
		select {
		case c.pending <- struct{}{}:
		default:
		}
	}

	return m, true
}

func (c *Connection) drain() bool {
	for {
		m, ok := c.shift()
		if !ok {
			return true
		}

		c.conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
		if _, err := c.conn.Write(m); err != nil {
			c.Error = err.Error()
			return false
		}
	}
}

func (c *Connection) writer() {
	defer close(c.writerExit)
	defer c.conn.Close()

	for {
		select {
		case <-c.closed:
			c.drain()
			return
		case <-c.readerExit:
			c.drain()
			return
		case <-c.pending:
			if !c.drain() {
				return
			}
		}
	}
}

func (c *Connection) reader() {
	defer close(c.readerExit)
	defer close(c.Frames)

	var framer Framer
	buf := make([]byte, 4096)

	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			frames, ferr := framer.Feed(buf[:n])
			for _, f := range frames {
				select {
				case c.Frames <- f:
				case <-c.closed:
					c.Error = "closed"
					return
				case <-c.writerExit:
					return
				}
			}
			if ferr != nil {
				c.Error = ferr.Error()
				return
			}
		}
		if err != nil {
			c.Error = err.Error()
			return
		}
	}
}
