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
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ilanet/ila/log"
)

// connectTimeout mirrors the original Redis driver's 1.5s connect bound.
const connectTimeout = 1500 * time.Millisecond

// Redis is a Store backed by a single Redis server. Every key this
// instance touches is namespaced under Prefix, so a control daemon can
// run independent ident/loc/map stores against the same server.
type Redis struct {
	Host   string
	Port   int
	Prefix string // e.g. "ident:", "loc:", "map:"
	Log    log.Log

	client *redis.Client

	mu      sync.Mutex
	watches map[*watch]struct{}
}

func (r *Redis) logger() log.Log {
	if r.Log == nil {
		return log.Nil{}
	}
	return r.Log
}

type watch struct {
	cancel context.CancelFunc
	key    []byte // nil for watch_all
}

func NewRedis(def Options) *Redis {
	return &Redis{Host: def.Host, Port: def.Port, Log: def.Log}
}

// Configure applies Redis sub-options: host=, port=, prefix=.
func (r *Redis) Configure(opts map[string]string) error {
	if v, ok := opts["host"]; ok {
		r.Host = v
	}
	if v, ok := opts["port"]; ok {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("store/redis: invalid port %q: %w", v, err)
		}
		r.Port = p
	}
	if v, ok := opts["prefix"]; ok {
		r.Prefix = v
	}
	return nil
}

func (r *Redis) Start(ctx context.Context) error {
	r.client = redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", r.Host, r.Port),
		DialTimeout: connectTimeout,
	})
	r.watches = map[*watch]struct{}{}

	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	return r.client.Ping(cctx).Err()
}

func (r *Redis) Stop() error {
	r.mu.Lock()
	for w := range r.watches {
		w.cancel()
	}
	r.watches = map[*watch]struct{}{}
	r.mu.Unlock()

	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) fullKey(key []byte) string {
	return r.Prefix + string(key)
}

func (r *Redis) Read(ctx context.Context, key []byte) ([]byte, error) {
	v, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrMissing
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *Redis) Write(ctx context.Context, key, value []byte) error {
	return r.client.Set(ctx, r.fullKey(key), value, 0).Err()
}

func (r *Redis) Delete(ctx context.Context, key []byte) error {
	n, err := r.client.Del(ctx, r.fullKey(key)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMissing
	}
	return nil
}

func (r *Redis) Scan(ctx context.Context, visitor Visitor) error {
	var cursor uint64

	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.Prefix+"*", 256).Result()
		if err != nil {
			return err
		}

		for _, k := range keys {
			v, err := r.client.Get(ctx, k).Bytes()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				r.logger().WARNING("store", "scan: dropping key after read error", log.KV{"key": k, "error": err.Error()})
				continue
			}
			visitor([]byte(k[len(r.Prefix):]), v)
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// WatchAll subscribes to keyspace notifications for every key under this
// store's prefix. It relies on the server having notify-keyspace-events
// configured for generic ("g") and string ("$") commands.
func (r *Redis) WatchAll(ctx context.Context, visitor Visitor) (Handle, error) {
	return r.subscribe(ctx, r.Prefix+"*", visitor)
}

func (r *Redis) WatchOne(ctx context.Context, key []byte, visitor Visitor) (Handle, error) {
	return r.subscribe(ctx, r.fullKey(key), visitor)
}

func (r *Redis) subscribe(ctx context.Context, pattern string, visitor Visitor) (Handle, error) {
	pctx, cancel := context.WithCancel(ctx)

	channel := fmt.Sprintf("__keyspace@0__:%s", pattern)
	pubsub := r.client.PSubscribe(pctx, channel)

	if _, err := pubsub.Receive(pctx); err != nil {
		cancel()
		return nil, err
	}

	w := &watch{cancel: cancel}

	r.mu.Lock()
	r.watches[w] = struct{}{}
	r.mu.Unlock()

	go func() {
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-pctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				// keyspace channel name is __keyspace@0__:<key>
				prefixLen := len("__keyspace@0__:")
				if len(msg.Channel) <= prefixLen {
					continue
				}
				fullKey := msg.Channel[prefixLen:]
				key := []byte(fullKey[len(r.Prefix):])

				v, err := r.client.Get(pctx, fullKey).Bytes()
				if err == redis.Nil {
					visitor(key, nil)
					continue
				}
				if err != nil {
					r.logger().WARNING("store", "watch: dropping notification after read error", log.KV{"key": string(key), "error": err.Error()})
					continue
				}
				visitor(key, v)
			}
		}
	}()

	return w, nil
}

func (r *Redis) StopWatch(h Handle) error {
	w, ok := h.(*watch)
	if !ok {
		return fmt.Errorf("store/redis: invalid watch handle")
	}

	r.mu.Lock()
	delete(r.watches, w)
	r.mu.Unlock()

	w.cancel()
	return nil
}
