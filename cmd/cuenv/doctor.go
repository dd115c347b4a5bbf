package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/cuenv-dev/cuenv/pkg/config"
	"github.com/cuenv-dev/cuenv/pkg/coordinator"
	"github.com/cuenv-dev/cuenv/pkg/evalgateway"
	"github.com/cuenv-dev/cuenv/pkg/hooks"
)

// runDoctor implements `cuenv doctor`: prints resolved filesystem
// locations, coordinator reachability, and the current directory's
// hook approval state, without starting the full coordinator
// (grounded on the teacher's cmd/cie/status.go and paths.go).
func runDoctor(log *slog.Logger, args []string) error {
	paths, err := config.Resolve()
	if err != nil {
		return err
	}

	fmt.Println("cuenv doctor")
	fmt.Printf("  state dir:       %s\n", paths.StateDir)
	fmt.Printf("  cache dir:       %s\n", paths.CacheDir)
	fmt.Printf("  runtime dir:     %s\n", paths.RuntimeDir)
	fmt.Printf("  approvals file:  %s\n", paths.ApprovalsPath())
	fmt.Printf("  coordinator sock: %s\n", paths.CoordinatorSocketPath())

	if coordinator.Ping(paths.CoordinatorSocketPath()) {
		fmt.Println("  coordinator:     reachable")
	} else {
		fmt.Println("  coordinator:     not running")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	moduleRoot, err := evalgateway.FindModuleRoot(cwd)
	if err != nil {
		log.Warn("doctor: find module root", "err", err)
	} else {
		fmt.Printf("  module root:     %s\n", moduleRoot)
	}

	declared, err := hooks.LoadDeclared(cwd)
	if err != nil {
		log.Warn("doctor: load declared hooks", "err", err)
	} else {
		approval := "not approved"
		if hash, hashErr := hooks.ConfigHash(declared); hashErr == nil {
			if ok, _ := hooks.NewApprovalStore(paths.ApprovalsPath()).IsApproved(hash); ok {
				approval = "approved"
			}
		}
		fmt.Printf("  hooks (%s):     %d declared, %s\n", cwd, len(declared), approval)
	}

	return nil
}
