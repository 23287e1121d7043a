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

// ilad is the forwarding daemon. In router mode it holds the
// authoritative *map* store, answers AMFP MAP_REQUEST, and pushes
// REDIRECT on route-miss notifications. In forwarder mode it dials a set
// of routers, learns mappings over AMFP, and installs them directly.
package main

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ilanet/ila"
	"github.com/ilanet/ila/amfp"
	"github.com/ilanet/ila/internal/cliopts"
	"github.com/ilanet/ila/internal/daemon"
	"github.com/ilanet/ila/internal/healthz"
	"github.com/ilanet/ila/log"
	"github.com/ilanet/ila/notify"
	"github.com/ilanet/ila/route"
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
		Use:          "ilad",
		Short:        "ILA forwarding daemon: router or forwarder mode",
		SilenceUsage: true,
		RunE:         run,
	}

	flags := cmd.Flags()
	flags.BoolP("daemonize", "d", false, "background the process")
	flags.StringP("logfile", "L", "", "write logs to this file instead of stderr")
	flags.String("logname", "ilad", "log record identifier")
	flags.StringP("loglevel", "l", "INFO", "EMERG|ALERT|CRIT|ERR|WARNING|NOTICE|INFO|DEBUG")
	flags.StringP("dbopts", "D", "", "store options: host=H,port=P (router mode)")
	flags.StringP("routeopts", "R", "", "dev=IF,via=ADDR,local-locator=LOC")
	flags.StringP("amfpopts", "A", "", "router=ADDR[,router=ADDR...][,identifier=ADDR...] (forwarder mode)")
	flags.BoolP("forwarder", "f", false, "run in forwarder mode")
	flags.BoolP("router", "r", false, "run in router mode")
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
			return fmt.Errorf("ilad: reading config: %w", err)
		}
	}

	level, ok := log.ParseLevel(v.GetString("loglevel"))
	if !ok {
		return fmt.Errorf("ilad: invalid loglevel %q", v.GetString("loglevel"))
	}
	logger := log.New(log.Options{
		Path:  v.GetString("logfile"),
		Name:  v.GetString("logname"),
		Level: level,
	})
	defer logger.Close()

	isForwarder := v.GetBool("forwarder")
	isRouter := v.GetBool("router")
	if isForwarder == isRouter {
		return fmt.Errorf("ilad: exactly one of -f/--forwarder or -r/--router must be given")
	}

	routeCfg, err := parseRouteOpts(v.GetString("routeopts"))
	if err != nil {
		return fmt.Errorf("ilad: routeopts: %w", err)
	}

	installer := route.NewNetlink()
	if err := installer.Configure(routeCfg); err != nil {
		return fmt.Errorf("ilad: configuring route installer: %w", err)
	}
	if err := installer.Start(); err != nil {
		return fmt.Errorf("ilad: purging stale routes: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if addr := v.GetString("metrics-addr"); addr != "" {
		go func() {
			if err := healthz.Serve(ctx, addr); err != nil {
				logger.WARNING("main", "healthz server ended", log.KV{"error": err.Error()})
			}
		}()
	}

	if isRouter {
		if err := runRouter(ctx, v, installer, logger); err != nil {
			return err
		}
	} else {
		if err := runForwarder(ctx, v, installer, logger); err != nil {
			return err
		}
	}

	if v.GetBool("daemonize") {
		if err := daemon.Daemonize(); err != nil {
			return fmt.Errorf("ilad: daemonize: %w", err)
		}
	}

	logger.NOTICE("main", "ilad started", log.KV{"mode": modeName(isRouter)})

	waitForSignal()
	return nil
}

func runRouter(ctx context.Context, v *viper.Viper, installer route.Installer, logger log.Log) error {
	dbopts := cliopts.Single(v.GetString("dbopts"))
	host := firstNonEmpty(dbopts["host"], defaultRedisHost)
	port := firstNonEmpty(dbopts["port"], defaultRedisPort)

	mapStore := store.NewRedis(store.Options{Host: host, Log: logger})
	if err := mapStore.Configure(map[string]string{"host": host, "port": port, "prefix": "map:"}); err != nil {
		return fmt.Errorf("map store: %w", err)
	}
	if err := mapStore.Start(ctx); err != nil {
		return fmt.Errorf("connecting to map store: %w", err)
	}

	sync := &ila.Synchronizer{Log: logger}
	if err := sync.RunRouter(ctx, mapStore, installer); err != nil {
		return fmt.Errorf("starting synchronizer: %w", err)
	}

	router := amfp.NewRouter(mapStore, installer, logger)

	ln, err := net.Listen("tcp", amfp.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", amfp.ListenAddr, err)
	}
	go func() {
		if err := router.Serve(ctx, ln); err != nil {
			logger.ERR("main", "amfp listener ended", log.KV{"error": err.Error()})
		}
	}()

	listener, err := notify.NewRouteNotify()
	if err != nil {
		logger.WARNING("main", "route-miss notification unavailable", log.KV{"error": err.Error()})
		return nil
	}

	redirector := &amfp.Redirector{MapStore: mapStore, Router: router, Log: logger}
	go redirector.Run(ctx, listener)

	return nil
}

func runForwarder(ctx context.Context, v *viper.Viper, installer route.Installer, logger log.Log) error {
	amfpopts := v.GetString("amfpopts")
	routers := cliopts.Values(amfpopts, "router")
	if len(routers) == 0 {
		return fmt.Errorf("forwarder mode requires at least one -A router=ADDR")
	}

	var identifiers [][16]byte
	for _, s := range cliopts.Values(amfpopts, "identifier") {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return fmt.Errorf("amfpopts: invalid identifier %q: %w", s, err)
		}
		identifiers = append(identifiers, ila.AddressFromNetip(addr))
	}

	forwarder := amfp.NewForwarder(installer, logger)
	go forwarder.Run(ctx, routers, identifiers)

	return nil
}

func parseRouteOpts(s string) (route.Config, error) {
	opts := cliopts.Single(s)

	cfg := route.Config{Dev: opts["dev"]}

	if v, ok := opts["via"]; ok {
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid via %q: %w", v, err)
		}
		cfg.Via = addr
	}

	if v, ok := opts["local-locator"]; ok {
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid local-locator %q: %w", v, err)
		}
		cfg.LocalLocator = ila.AddressFromNetip(addr).Locator()
	}

	return cfg, nil
}

func modeName(isRouter bool) string {
	if isRouter {
		return "router"
	}
	return "forwarder"
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
