package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
	"github.com/cuenv-dev/cuenv/pkg/cachestore"
	"github.com/cuenv-dev/cuenv/pkg/config"
	"github.com/cuenv-dev/cuenv/pkg/evalgateway"
	"github.com/cuenv-dev/cuenv/pkg/eventbus"
	"github.com/cuenv-dev/cuenv/pkg/executor"
	"github.com/cuenv-dev/cuenv/pkg/registry"
	"github.com/cuenv-dev/cuenv/pkg/report"
	"github.com/fsnotify/fsnotify"
)

// debounceWindow is the burst-coalescing window before a watched
// change triggers a re-run (specification SPEC_FULL.md §4 "watch
// subcommand": "default 300ms, teacher used 2s for its slower indexing
// workload").
const debounceWindow = 300 * time.Millisecond

// runWatch implements `cuenv watch <fqdn>`: watches the target task's
// project tree and re-invokes the scheduler on change, grounded on the
// teacher's cmd/cie/watch.go debounce-and-reindex loop.
func runWatch(log *slog.Logger, g *globalFlags, args []string) error {
	if len(args) != 1 {
		return cuenverr.New(cuenverr.InvalidTaskName, "watch", "usage: cuenv watch <fqdn>")
	}
	fqdn := args[0]

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	moduleRoot, err := evalgateway.FindModuleRoot(cwd)
	if err != nil {
		return cuenverr.Wrap(cuenverr.ConfigEvaluation, "find module root", cwd, err)
	}

	reg, err := registry.Build(evalgateway.NewFileEvaluator(), moduleRoot, registry.DefaultContributors())
	if err != nil {
		return err
	}
	def, ok := reg.Tasks[fqdn]
	if !ok || def.Single == nil {
		return cuenverr.New(cuenverr.TaskNotFound, "watch", fqdn)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := addRecursive(watcher, def.Single.ProjectRoot); err != nil {
		return err
	}

	paths, err := config.Resolve()
	if err != nil {
		return err
	}
	cache := cachestore.New(paths.CacheDir)
	bus := eventbus.New(nil, eventbus.DefaultCapacity)
	defer bus.Close()
	renderer := report.NewTerminalRenderer(os.Stdout, os.Stderr)
	go renderer.Run(bus.Subscribe())

	settings, err := config.LoadSettings(moduleRoot)
	if err != nil {
		return err
	}
	exec := executor.New(reg, cache, bus, executor.Options{NoFailFast: true, Salt: []byte(settings.SecretSalt)})

	fmt.Fprintf(os.Stderr, "watching %s for changes to %s\n", fqdn, def.Single.ProjectRoot)
	triggerAndRun(exec, fqdn, log)

	var timer *time.Timer
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				_ = addRecursive(watcher, ev.Name)
			}
			if timer == nil {
				timer = time.AfterFunc(debounceWindow, func() { triggerAndRun(exec, fqdn, log) })
			} else {
				timer.Reset(debounceWindow)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch: fsnotify error", "err", err)
		}
	}
}

func triggerAndRun(exec *executor.Executor, fqdn string, log *slog.Logger) {
	if _, err := exec.Run(context.Background(), []string{fqdn}); err != nil {
		log.Warn("watch: run failed", "fqdn", fqdn, "err", err)
	}
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
