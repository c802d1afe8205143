package task

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"

	"github.com/spf13/pflag"

	"jog/internal/config"
	"jog/internal/output"
)

// ExecMode distinguishes how a proxy executes its task, for display
// purposes: shell tasks hand the command line to the system shell, native
// tasks run in-process.
type ExecMode string

const (
	ExecShell  ExecMode = "shell"
	ExecNative ExecMode = "native"
)

var taskNameRe = regexp.MustCompile(`^\w+$`)

// Resolver turns named task definitions into executable proxies. It carries
// the invocation-wide state every proxy shares: the program name, the
// directory searches start from, the loaded task list (for sub-task
// resolution), and the process-level output channels.
type Resolver struct {
	// Prog is the invoking program's name, composed into each proxy's
	// display name ("jog lint").
	Prog string

	// WorkDir is where settings lookups begin. Required.
	WorkDir string

	// ProjectDir is the directory containing the manifest.
	ProjectDir string

	// List is the loaded task mapping, read-only after load. May be nil
	// when resolving a standalone definition.
	List *List

	// Stdout and Stderr are the invocation's output channels.
	Stdout *output.Channel
	Stderr *output.Channel
}

// Proxy is the uniform, transient handle over one task definition for one
// invocation: how to display it, whether it takes its own arguments, and
// how to execute it.
type Proxy struct {
	Name       string
	Prog       string
	HelpText   string
	Mode       ExecMode
	HasOwnArgs bool

	def      Definition
	argv     []string
	resolver *Resolver
}

// Resolve validates name, classifies def into exactly one execution
// variant, and returns the proxy bound to the unconsumed argument tail.
// The classification is exhaustive: any definition outside the three known
// variants fails with a *DefinitionError before execution begins.
func (r *Resolver) Resolve(name string, def Definition, argv []string) (*Proxy, error) {
	if !taskNameRe.MatchString(name) {
		return nil, DefinitionErrorf(
			"Task name %q is not valid - must contain alphanumeric characters and the underscore only.",
			name,
		)
	}

	p := &Proxy{
		Name:     name,
		Prog:     r.Prog + " " + name,
		def:      def,
		argv:     argv,
		resolver: r,
	}

	switch d := def.(type) {
	case Shell:
		p.Mode = ExecShell
		p.HelpText = string(d)
	case *Structured:
		p.Mode = ExecNative
		p.HelpText = d.Help
		p.HasOwnArgs = true
	case *Func:
		p.Mode = ExecNative
		p.HelpText = d.Doc
	default:
		return nil, DefinitionErrorf("Unrecognised task format for %q.", name)
	}

	return p, nil
}

// Lookup resolves a task by name from the loaded list.
func (r *Resolver) Lookup(name string, argv []string) (*Proxy, error) {
	if r.List == nil {
		return nil, &DefinitionError{Message: (&config.NotFoundError{Name: config.ManifestFileName}).Error()}
	}
	def, ok := r.List.Get(name)
	if !ok {
		return nil, DefinitionErrorf("Unknown task %q.", name)
	}
	return r.Resolve(name, def, argv)
}

// Execute runs the task behind this proxy.
//
// Shell tasks pass their output straight through to the process streams and
// surface the command's own exit status. Callable and structured tasks run
// in-process with the task's settings view. A returned *Error is the task's
// declared failure; anything else is a defect and propagates.
func (p *Proxy) Execute() error {
	switch d := p.def.(type) {
	case Shell:
		return p.executeShell(d)
	case *Func:
		return p.executeCallable(d)
	case *Structured:
		return p.executeStructured(d)
	default:
		// Resolve() rejects everything else.
		return DefinitionErrorf("Unrecognised task format for %q.", p.Name)
	}
}

func (p *Proxy) executeShell(d Shell) error {
	help := "Executes the following task on the command line:\n" + string(d)
	if err := p.parseSimpleArgs(help); err != nil {
		return err
	}

	cmd := exec.Command("sh", "-c", string(d))
	cmd.Stdin = os.Stdin
	cmd.Stdout = p.resolver.Stdout.Writer()
	cmd.Stderr = p.resolver.Stderr.Writer()

	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode()}
	}
	return fmt.Errorf("running %q: %w", string(d), err)
}

func (p *Proxy) executeCallable(d *Func) error {
	if err := p.parseSimpleArgs(p.HelpText); err != nil {
		return err
	}

	settings, err := p.settings()
	if err != nil {
		return err
	}
	return d.Run(settings, p.resolver.Stdout, p.resolver.Stderr)
}

func (p *Proxy) executeStructured(d *Structured) error {
	settings, err := p.settings()
	if err != nil {
		return err
	}

	handler := d.New()
	ctx, err := newContext(contextConfig{
		prog:       p.Prog,
		progRoot:   p.resolver.Prog,
		help:       d.Help,
		settings:   settings,
		argv:       p.argv,
		workDir:    p.resolver.WorkDir,
		projectDir: p.resolver.ProjectDir,
		list:       p.resolver.List,
		helpOut:    p.resolver.Stdout.Writer(),
		errOut:     p.resolver.Stderr.Writer(),

		defaultStdout: p.resolver.Stdout.Writer(),
		defaultStderr: p.resolver.Stderr.Writer(),
	}, handler)
	if err != nil {
		return err
	}
	return ctx.execute(handler)
}

// settings resolves the task-scoped settings view. A malformed settings
// file is a project-authoring defect.
func (p *Proxy) settings() (config.Settings, error) {
	settings, err := config.TaskSettings(p.resolver.WorkDir, p.Name)
	if err != nil {
		return config.Settings{}, &DefinitionError{Message: err.Error()}
	}
	return settings, nil
}

// parseSimpleArgs parses the bound argument tail against a no-op schema, so
// --help works and anything else is rejected. Used by the shell and
// callable variants, which accept no arguments of their own.
func (p *Proxy) parseSimpleArgs(help string) error {
	fs := pflag.NewFlagSet(p.Prog, pflag.ContinueOnError)
	fs.SetOutput(io.Discard) // parse errors are reported below, not printed
	showHelp := fs.BoolP("help", "h", false, "Show this help message and exit")

	stderr := p.resolver.Stderr
	if err := fs.Parse(p.argv); err != nil {
		stderr.Writef("%s: %v", p.Prog, err)
		stderr.Writef("Run %q for usage.", p.Prog+" --help")
		return &UsageError{Code: 2}
	}

	if *showHelp {
		printHelp(p.resolver.Stdout.Writer(), p.Prog, help, fs)
		return &ExitError{Code: 0}
	}

	if fs.NArg() > 0 {
		stderr.Writef("%s: unrecognised arguments: %v", p.Prog, fs.Args())
		return &UsageError{Code: 2}
	}

	return nil
}

// printHelp writes an argparse-style help block: usage line, description,
// then the flag table.
func printHelp(w io.Writer, prog, description string, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: %s [options]\n", prog)
	if description != "" {
		fmt.Fprintf(w, "\n%s\n", description)
	}
	fmt.Fprintf(w, "\nOptions:\n%s", fs.FlagUsages())
}
