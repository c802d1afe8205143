// Package cli is the jog command-line surface: it parses the invocation,
// loads the project's task manifest, resolves every task up front, and
// either lists the tasks or executes the requested one. It is also the
// outermost boundary for domain errors: they are written to the error
// stream as clean messages and folded into the exit code, while anything
// unanticipated propagates to the caller as a defect.
package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/pflag"

	"jog/internal/config"
	"jog/internal/manifest"
	"jog/internal/output"
	"jog/internal/task"
	"jog/internal/version"
)

// Exit codes. Argument-parsing failures use the usual parser convention.
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// Invocation is the parsed form of a jog command line.
type Invocation struct {
	TaskName    string
	Argv        []string // unconsumed remainder, passed to the task
	ShowVersion bool
	ShowHelp    bool
}

// Options carries the process-level inputs to Run, explicit so tests can
// substitute streams, directory, and registry.
type Options struct {
	Prog     string
	Args     []string
	WorkDir  string
	Stdout   io.Writer
	Stderr   io.Writer
	Registry *task.Registry
}

// ParseInvocation parses args. Flag parsing stops at the first positional
// argument, so everything after the task name reaches the task untouched.
// Errors are returned, not printed.
func ParseInvocation(prog string, args []string) (Invocation, error) {
	fs := pflag.NewFlagSet(prog, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false)

	showVersion := fs.Bool("version", false, "Display the version number and exit")
	showHelp := fs.BoolP("help", "h", false, "Show this help message and exit")

	if err := fs.Parse(args); err != nil {
		return Invocation{}, err
	}

	inv := Invocation{
		ShowVersion: *showVersion,
		ShowHelp:    *showHelp,
	}
	if rest := fs.Args(); len(rest) > 0 {
		inv.TaskName = rest[0]
		inv.Argv = rest[1:]
	}
	return inv, nil
}

// Run executes one jog invocation and returns the process exit code. A
// non-nil error is an unanticipated defect for the caller to report; every
// domain error has already been written to the error stream.
func Run(opts Options) (int, error) {
	stdout := output.New(opts.Stdout)
	stderr := output.New(opts.Stderr)

	inv, err := ParseInvocation(opts.Prog, opts.Args)
	if err != nil {
		stderr.Writef("%s: %v", opts.Prog, err)
		stderr.Writef("Run %q for usage.", opts.Prog+" --help")
		return ExitUsage, nil
	}

	if inv.ShowHelp {
		printUsage(stdout, opts.Prog)
		return ExitSuccess, nil
	}
	if inv.ShowVersion {
		stdout.Writef("%s %s", opts.Prog, version.Version)
		return ExitSuccess, nil
	}

	manifestPath, err := config.Locate(config.ManifestFileName, opts.WorkDir, config.ManifestSearchDepth)
	if err != nil {
		return reportDomainError(stderr, err)
	}

	registry := opts.Registry
	if registry == nil {
		registry = task.NewRegistry()
	}

	list, err := manifest.Load(manifestPath, registry)
	if err != nil {
		return reportDomainError(stderr, err)
	}

	resolver := &task.Resolver{
		Prog:       opts.Prog,
		WorkDir:    opts.WorkDir,
		ProjectDir: filepath.Dir(manifestPath),
		List:       list,
		Stdout:     stdout,
		Stderr:     stderr,
	}

	// Resolve every definition before executing anything: a malformed
	// entry anywhere in the manifest fails fast, not mid-run.
	proxies := make([]*task.Proxy, 0, list.Len())
	byName := make(map[string]*task.Proxy, list.Len())
	for _, name := range list.Names() {
		def, _ := list.Get(name)
		proxy, err := resolver.Resolve(name, def, inv.Argv)
		if err != nil {
			return reportDomainError(stderr, err)
		}
		proxies = append(proxies, proxy)
		byName[name] = proxy
	}

	if inv.TaskName == "" {
		showTasks(proxies, stdout)
		return ExitSuccess, nil
	}

	proxy, ok := byName[inv.TaskName]
	if !ok {
		stderr.Writef("Unknown task %q.", inv.TaskName)
		return ExitFailure, nil
	}

	if err := proxy.Execute(); err != nil {
		var exitErr *task.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code, nil
		}
		var usageErr *task.UsageError
		if errors.As(err, &usageErr) {
			return usageErr.Code, nil
		}
		if isDomainError(err) {
			return reportDomainError(stderr, err)
		}
		return ExitFailure, err
	}
	return ExitSuccess, nil
}

// isDomainError reports whether err belongs to the caught taxonomy: a
// task's declared failure, a task definition defect, or a missing config
// file. Everything else is a bug and must propagate undowngraded.
func isDomainError(err error) bool {
	var taskErr *task.Error
	var defErr *task.DefinitionError
	var notFound *config.NotFoundError
	return errors.As(err, &taskErr) || errors.As(err, &defErr) || errors.As(err, &notFound)
}

func reportDomainError(stderr *output.Channel, err error) (int, error) {
	stderr.Write(err.Error())
	return ExitFailure, nil
}

// showTasks lists every task: heading-styled name, help text colored by
// execution mode (green for shell, blue for native), and a usage hint for
// tasks with their own argument surface.
func showTasks(proxies []*task.Proxy, stdout *output.Channel) {
	if len(proxies) == 0 {
		stdout.Write("No tasks defined.")
		return
	}

	stdout.WriteStyled(output.StyleLabel, "Available tasks:\n")

	for _, proxy := range proxies {
		name := stdout.Styler.Heading(proxy.Name)

		color := "blue"
		if proxy.Mode == task.ExecShell {
			color = "green"
		}
		helpText := stdout.Styler.Colored(color, proxy.HelpText)

		stdout.Writef("%s: %s", name, helpText)
		if proxy.HasOwnArgs {
			stdout.Writef("    See \"%s --help\" for usage details", proxy.Prog)
		}
	}
}

func printUsage(stdout *output.Channel, prog string) {
	w := stdout.Writer()
	fmt.Fprintf(w, "Usage: %s [task] [task arguments]\n", prog)
	fmt.Fprintf(w, "\nExecute common, project-specific tasks.\n")
	fmt.Fprintf(w, "\nOptions:\n")
	fmt.Fprintf(w, "  -h, --help    Show this help message and exit\n")
	fmt.Fprintf(w, "      --version Display the version number and exit\n")
	fmt.Fprintf(w, "\nAny additional arguments are passed through to the executed task.\n")
	fmt.Fprintf(w, "Run without arguments from within a target project to list the tasks\n")
	fmt.Fprintf(w, "configured in that project's %s file.\n", config.ManifestFileName)
}
