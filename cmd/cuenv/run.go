package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
	"github.com/cuenv-dev/cuenv/pkg/cachestore"
	"github.com/cuenv-dev/cuenv/pkg/config"
	"github.com/cuenv-dev/cuenv/pkg/coordinator"
	"github.com/cuenv-dev/cuenv/pkg/eventbus"
	"github.com/cuenv-dev/cuenv/pkg/evalgateway"
	"github.com/cuenv-dev/cuenv/pkg/executor"
	"github.com/cuenv-dev/cuenv/pkg/registry"
	"github.com/cuenv-dev/cuenv/pkg/report"
	"github.com/cuenv-dev/cuenv/pkg/secretredact"
	"github.com/spf13/pflag"
)

// runRun implements `cuenv run <fqdn>...`: builds the cross-project
// registry, runs the requested tasks' dependency closure through the
// scheduler, and renders terminal output plus optional JSON/CI
// reports (specification §4.3, §4.7, §4.11).
func runRun(log *slog.Logger, g *globalFlags, args []string) error {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	noFailFast := fs.Bool("no-fail-fast", false, "run every independent branch to completion instead of stopping at the first failure")
	concurrency := fs.Int("concurrency", 0, "max concurrent task processes (0 = settings/platform default)")
	reportPath := fs.String("report", "", "write a JSON pipeline report to this path")
	emitToCoordinator := fs.Bool("coordinator", false, "also emit lifecycle events to the out-of-process coordinator")
	if err := fs.Parse(args); err != nil {
		return cuenverr.New(cuenverr.InvalidTaskName, "parse run flags", err.Error())
	}
	fqdns := fs.Args()
	if len(fqdns) == 0 {
		return cuenverr.New(cuenverr.InvalidTaskName, "run", "at least one task fqdn is required")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	moduleRoot, err := evalgateway.FindModuleRoot(cwd)
	if err != nil {
		return cuenverr.Wrap(cuenverr.ConfigEvaluation, "find module root", cwd, err)
	}

	paths, err := config.Resolve()
	if err != nil {
		return err
	}
	if err := paths.EnsureDirs(); err != nil {
		return err
	}
	settings, err := config.LoadSettings(moduleRoot)
	if err != nil {
		return err
	}

	reg, err := registry.Build(evalgateway.NewFileEvaluator(), moduleRoot, registry.DefaultContributors())
	if err != nil {
		return err
	}

	redactor := secretredact.New()
	if settings.SecretSalt != "" {
		_ = redactor.Register(settings.SecretSalt)
	}
	bus := eventbus.New(redactor, eventbus.DefaultCapacity)
	defer bus.Close()

	renderer := report.NewTerminalRenderer(os.Stdout, os.Stderr)
	sub := bus.Subscribe()
	go renderer.Run(sub)

	if *emitToCoordinator {
		if err := coordinator.EnsureRunning(context.Background(), paths.CoordinatorSocketPath(), paths.CoordinatorPIDPath(), paths.CoordinatorLockPath(), coordinator.DefaultSpawn(paths.CoordinatorSocketPath())); err != nil {
			log.Warn("coordinator unavailable, continuing local-only", "err", err)
		} else if prod, dialErr := coordinator.DialProducer(paths.CoordinatorSocketPath(), fmt.Sprintf("cuenv run %v", fqdns)); dialErr == nil {
			defer prod.Close()
			mirror := bus.Subscribe()
			go func() {
				for ev := range mirror.Events() {
					_ = prod.Emit(ev)
				}
			}()
		}
	}

	concur := *concurrency
	if concur <= 0 {
		concur = settings.MaxConcurrency
	}
	cache := cachestore.New(paths.CacheDir)
	exec := executor.New(reg, cache, bus, executor.Options{
		MaxConcurrency: concur,
		NoFailFast:     *noFailFast || settings.NoFailFast,
		Salt:           []byte(settings.SecretSalt),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	results, runErr := exec.Run(ctx, fqdns)
	completed := time.Now()

	rpt := report.BuildReport(moduleRoot, "run", report.DetectCIContext(), started, completed, results, nil)
	if *reportPath != "" {
		if err := report.WriteJSON(rpt, *reportPath); err != nil {
			log.Warn("write pipeline report", "err", err)
		}
	}
	if err := report.WriteCIJobSummary(rpt); err != nil {
		log.Warn("write CI job summary", "err", err)
	}

	if runErr != nil {
		return runErr
	}
	for _, r := range results {
		if r.State == executor.Failed {
			return cuenverr.New(cuenverr.ProcessFailed, "run", r.FQDN)
		}
	}
	return nil
}
