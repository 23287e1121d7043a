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

// ilactld is the control daemon: it watches *ident* and *loc* and derives
// *map* rows for the router/forwarder daemons to consume.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ilanet/ila"
	"github.com/ilanet/ila/internal/cliopts"
	"github.com/ilanet/ila/internal/daemon"
	"github.com/ilanet/ila/internal/healthz"
	"github.com/ilanet/ila/log"
	"github.com/ilanet/ila/store"
)

const (
	defaultRedisHost = "::1"
	defaultRedisPort = "6379"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ilactld",
		Short:        "ILA control daemon: derives map rows from ident and loc",
		SilenceUsage: true,
		RunE:         run,
	}

	flags := cmd.Flags()
	flags.BoolP("daemonize", "d", false, "background the process")
	flags.StringP("logfile", "L", "", "write logs to this file instead of stderr")
	flags.String("logname", "ilactld", "log record identifier")
	flags.StringP("loglevel", "l", "INFO", "EMERG|ALERT|CRIT|ERR|WARNING|NOTICE|INFO|DEBUG")
	flags.StringP("dbopts", "D", "", "store options: host=H,port=P")
	flags.String("config", "", "optional config file (YAML/JSON), CLI flags take precedence")
	flags.String("metrics-addr", "", "serve /healthz on this address if set")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	v := viper.New()
	v.BindPFlags(cmd.Flags())

	if cfg, _ := cmd.Flags().GetString("config"); cfg != "" {
		v.SetConfigFile(cfg)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("ilactld: reading config: %w", err)
		}
	}

	level, ok := log.ParseLevel(v.GetString("loglevel"))
	if !ok {
		return fmt.Errorf("ilactld: invalid loglevel %q", v.GetString("loglevel"))
	}

	logger := log.New(log.Options{
		Path:  v.GetString("logfile"),
		Name:  v.GetString("logname"),
		Level: level,
	})
	defer logger.Close()

	dbopts := cliopts.Single(v.GetString("dbopts"))
	host := firstNonEmpty(dbopts["host"], defaultRedisHost)
	port := firstNonEmpty(dbopts["port"], defaultRedisPort)

	identStore, err := newRedisStore(host, port, "ident:", logger)
	if err != nil {
		return fmt.Errorf("ilactld: ident store: %w", err)
	}
	locStore, err := newRedisStore(host, port, "loc:", logger)
	if err != nil {
		return fmt.Errorf("ilactld: loc store: %w", err)
	}
	mapStore, err := newRedisStore(host, port, "map:", logger)
	if err != nil {
		return fmt.Errorf("ilactld: map store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, s := range []store.Store{identStore, locStore, mapStore} {
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("ilactld: connecting to store: %w", err)
		}
		defer s.Stop()
	}

	sync := &ila.Synchronizer{Log: logger}
	if err := sync.RunControl(ctx, identStore, locStore, mapStore); err != nil {
		return fmt.Errorf("ilactld: starting synchronizer: %w", err)
	}

	if addr := v.GetString("metrics-addr"); addr != "" {
		go func() {
			if err := healthz.Serve(ctx, addr); err != nil {
				logger.WARNING("main", "healthz server ended", log.KV{"error": err.Error()})
			}
		}()
	}

	if v.GetBool("daemonize") {
		if err := daemon.Daemonize(); err != nil {
			return fmt.Errorf("ilactld: daemonize: %w", err)
		}
	}

	logger.NOTICE("main", "ilactld started", log.KV{"host": host, "port": port})

	waitForSignal()
	return nil
}

func newRedisStore(host, port, prefix string, logger log.Log) (*store.Redis, error) {
	r := store.NewRedis(store.Options{Host: host, Log: logger})
	if err := r.Configure(map[string]string{"host": host, "port": port, "prefix": prefix}); err != nil {
		return nil, err
	}
	return r, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
