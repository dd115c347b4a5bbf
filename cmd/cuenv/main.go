// Command cuenv is the typed build-and-environment toolchain's CLI
// entry point: a thin dispatcher that parses global flags once, then
// switches on the subcommand name, mapping every returned error to an
// exit code at this single top-level boundary (specification §7).
package main

import (
	"fmt"
	"os"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
	"github.com/cuenv-dev/cuenv/internal/cuenvlog"
	"github.com/spf13/pflag"
)

// globalFlags holds the flags every subcommand shares.
type globalFlags struct {
	verbose int
	quiet   bool
	noColor bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := pflag.NewFlagSet("cuenv", pflag.ContinueOnError)
	g := &globalFlags{}
	fs.CountVarP(&g.verbose, "verbose", "v", "increase log verbosity (repeatable)")
	fs.BoolVarP(&g.quiet, "quiet", "q", false, "suppress non-error output")
	fs.BoolVar(&g.noColor, "no-color", false, "disable colored terminal output")
	fs.SetInterspersed(false)

	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage()
		return 2
	}

	log := cuenvlog.New(cuenvlog.Options{Verbose: g.verbose, Quiet: g.quiet, NoColor: g.noColor})
	cmd, cmdArgs := rest[0], rest[1:]

	var err error
	switch cmd {
	case "run":
		err = runRun(log, g, cmdArgs)
	case "hooks":
		err = runHooks(log, cmdArgs)
	case "watch":
		err = runWatch(log, g, cmdArgs)
	case "doctor":
		err = runDoctor(log, cmdArgs)
	case "coordinator":
		err = runCoordinator(log, cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "cuenv: unknown command %q\n", cmd)
		printUsage()
		return 2
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "cuenv: %v\n", err)
		return cuenverr.ExitCode(err)
	}
	return 0
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: cuenv [flags] <command> [args]

commands:
  run <fqdn>...         run one or more tasks (and their dependency closure)
  hooks approve <dir>   approve the hook declarations currently in effect for dir
  hooks status <dir>    print a directory's hook lifecycle state
  watch <fqdn>          re-run a task whenever a file under its project directory changes
  doctor                print resolved locations and coordinator/approval diagnostics
  coordinator serve     run the out-of-process event coordinator in the foreground

flags:
  -v, --verbose   increase log verbosity (repeatable)
  -q, --quiet     suppress non-error output
      --no-color  disable colored terminal output`)
}
