package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
	"github.com/cuenv-dev/cuenv/pkg/config"
	"github.com/cuenv-dev/cuenv/pkg/coordinator"
	"github.com/cuenv-dev/cuenv/pkg/eventbus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
)

// runCoordinator implements `cuenv coordinator serve`: runs the
// out-of-process event broker in the foreground until signaled
// (specification §4.10).
func runCoordinator(log *slog.Logger, args []string) error {
	if len(args) == 0 || args[0] != "serve" {
		return cuenverr.New(cuenverr.InvalidTaskName, "coordinator", "usage: cuenv coordinator serve [--socket path] [--metrics-addr addr]")
	}

	fs := pflag.NewFlagSet("coordinator serve", pflag.ContinueOnError)
	socket := fs.String("socket", "", "unix socket path (default: platform runtime dir)")
	metricsAddr := fs.String("metrics-addr", "", "if set, serve /metrics on this address")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	paths, err := config.Resolve()
	if err != nil {
		return err
	}
	if err := paths.EnsureDirs(); err != nil {
		return err
	}
	socketPath := *socket
	if socketPath == "" {
		socketPath = paths.CoordinatorSocketPath()
	}

	bus := eventbus.New(nil, eventbus.DefaultCapacity)
	defer bus.Close()

	srv := coordinator.NewServer(socketPath, bus, log)
	if *metricsAddr != "" {
		registry := prometheus.NewRegistry()
		srv.Metrics = coordinator.NewMetrics(registry)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Warn("coordinator: metrics server stopped", "err", err)
			}
		}()
	}

	if err := srv.WritePIDFile(paths.CoordinatorPIDPath()); err != nil {
		log.Warn("coordinator: write pid file", "err", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sig:
		fmt.Fprintln(os.Stderr, "coordinator: shutting down")
		return srv.Close()
	}
}
