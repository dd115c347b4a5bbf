package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
	"github.com/cuenv-dev/cuenv/pkg/config"
	"github.com/cuenv-dev/cuenv/pkg/hooks"
)

// runHooks implements `cuenv hooks approve|status <dir>` (specification
// §4.8 "Approval gate").
func runHooks(log *slog.Logger, args []string) error {
	if len(args) < 2 {
		return cuenverr.New(cuenverr.InvalidTaskName, "hooks", "usage: cuenv hooks <approve|status> <dir>")
	}
	sub, dirArg := args[0], args[1]
	dir, err := filepath.Abs(dirArg)
	if err != nil {
		return err
	}

	paths, err := config.Resolve()
	if err != nil {
		return err
	}
	if err := paths.EnsureDirs(); err != nil {
		return err
	}
	mgr := hooks.New(paths.ApprovalsPath())

	declared, err := hooks.LoadDeclared(dir)
	if err != nil {
		return err
	}

	switch sub {
	case "approve":
		user := os.Getenv("USER")
		if err := mgr.Approve(dir, declared, user); err != nil {
			return err
		}
		fmt.Printf("approved %d hook(s) for %s\n", len(declared), dir)
		return nil
	case "status":
		fmt.Printf("%s: %s (%d hook(s) declared)\n", dir, mgr.State(dir), len(declared))
		return nil
	case "trigger":
		result, err := mgr.Trigger(context.Background(), dir, declared)
		if err != nil {
			return err
		}
		if result != nil {
			for _, r := range result.Results {
				fmt.Printf("%s %s: %s\n", dir, r.Hook.Command, r.Status)
			}
		}
		return nil
	default:
		return cuenverr.New(cuenverr.InvalidTaskName, "hooks", "unknown subcommand "+sub)
	}
}
