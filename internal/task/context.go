package task

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/spf13/pflag"

	"jog/internal/config"
	"jog/internal/output"
)

// Context is the execution context a structured task runs within. It is
// built from the task's argument vector: construction parses the built-in
// flags (verbosity, output redirection, color) plus whatever the handler
// declares, then derives the task's own output channels from the resolved
// targets.
type Context struct {
	// Prog is the task's display name ("jog lint").
	Prog string

	// Settings is the task-scoped settings view, stored verbatim.
	Settings config.Settings

	// Verbosity is the parsed -v/--verbosity level (0-3).
	Verbosity int

	// Args holds positional arguments left after flag parsing. Handlers
	// validate these themselves.
	Args []string

	// Stdout and Stderr are the task's output channels, wrapping the
	// resolved redirection targets. Stderr writes in the error style by
	// default.
	Stdout *output.Channel
	Stderr *output.Channel

	// WorkDir is the invocation's working directory.
	WorkDir string

	// ProjectDir is the directory containing the task manifest.
	ProjectDir string

	stdoutPath string // empty = process stream
	stderrPath string // empty = process stream
	noColor    bool
	progRoot   string
	list       *List
	closers    []io.Closer
}

type contextConfig struct {
	prog       string
	progRoot   string
	help       string
	settings   config.Settings
	argv       []string
	workDir    string
	projectDir string
	list       *List
	helpOut    io.Writer
	errOut     io.Writer

	// defaultStdout/defaultStderr are the invocation's stream targets,
	// used when the task does not redirect. The process streams reach
	// tasks only through this explicit configuration.
	defaultStdout io.Writer
	defaultStderr io.Writer
}

// newContext parses argv and assembles the context. Parse failures report
// usage and carry exit code 2; an explicit --help prints it and carries
// exit code 0.
func newContext(cfg contextConfig, handler Handler) (*Context, error) {
	fs := pflag.NewFlagSet(cfg.prog, pflag.ContinueOnError)
	fs.SetOutput(io.Discard) // parse errors are reported below, not printed

	verbosity := fs.IntP("verbosity", "v", 1,
		"Verbosity level; 0=minimal output, 1=normal output, 2=verbose output, 3=very verbose output")
	stdoutPath := fs.String("stdout", "", "Redirect standard output to the given file")
	stderrPath := fs.String("stderr", "", "Redirect error output to the given file")
	noColor := fs.Bool("no-color", false, "Don't colourise the command output.")
	showHelp := fs.BoolP("help", "h", false, "Show this help message and exit")

	handler.AddFlags(fs)

	usageErr := func(format string, args ...any) error {
		fmt.Fprintf(cfg.errOut, format+"\n", args...)
		fmt.Fprintf(cfg.errOut, "Run %q for usage.\n", cfg.prog+" --help")
		return &UsageError{Code: 2}
	}

	if err := fs.Parse(cfg.argv); err != nil {
		return nil, usageErr("%s: %v", cfg.prog, err)
	}

	if *showHelp {
		printHelp(cfg.helpOut, cfg.prog, cfg.help, fs)
		return nil, &ExitError{Code: 0}
	}

	if *verbosity < 0 || *verbosity > 3 {
		return nil, usageErr("%s: invalid verbosity level %d (expected 0-3)", cfg.prog, *verbosity)
	}

	c := &Context{
		Prog:       cfg.prog,
		Settings:   cfg.settings,
		Verbosity:  *verbosity,
		Args:       fs.Args(),
		WorkDir:    cfg.workDir,
		ProjectDir: cfg.projectDir,
		stdoutPath: *stdoutPath,
		stderrPath: *stderrPath,
		noColor:    *noColor,
		progRoot:   cfg.progRoot,
		list:       cfg.list,
	}

	stdoutTarget, err := c.openTarget(*stdoutPath, cfg.defaultStdout)
	if err != nil {
		return nil, usageErr("%s: %v", cfg.prog, err)
	}
	stderrTarget, err := c.openTarget(*stderrPath, cfg.defaultStderr)
	if err != nil {
		c.close()
		return nil, usageErr("%s: %v", cfg.prog, err)
	}

	c.Stdout = output.New(stdoutTarget, output.WithNoColor(*noColor))
	c.Stderr = output.New(stderrTarget,
		output.WithNoColor(*noColor),
		output.WithDefaultStyle(output.StyleError),
	)

	return c, nil
}

// openTarget resolves a redirection flag to a writable stream: the
// invocation default when the flag was omitted, otherwise a
// created/truncated file.
func (c *Context) openTarget(path string, fallback io.Writer) (io.Writer, error) {
	if path == "" {
		return fallback, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, f)
	return f, nil
}

func (c *Context) close() {
	for _, closer := range c.closers {
		closer.Close()
	}
	c.closers = nil
}

// execute runs the handler, intercepting only the domain error kind: a
// *Error is written to the task's error channel and the invocation ends
// with exit code 1. Any other error is a defect and propagates unchanged.
func (c *Context) execute(handler Handler) error {
	defer c.close()

	err := handler.Run(c)
	if err == nil {
		return nil
	}

	var taskErr *Error
	if errors.As(err, &taskErr) {
		c.Stderr.Write(taskErr.Message)
		return &ExitError{Code: 1}
	}
	return err
}

// CommandResult carries the outcome of a shell command run through CLI:
// the exit code and both captured byte streams. Callers check ExitCode
// explicitly; the runner itself never fails.
type CommandResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// CLI runs command through the system shell, forwarding captured output to
// the task's channels: stderr always, stdout too.
func (c *Context) CLI(command string) *CommandResult {
	return c.runCLI(command, false)
}

// CLIQuiet runs command like CLI but suppresses the captured standard
// output. Errors are still forwarded.
func (c *Context) CLIQuiet(command string) *CommandResult {
	return c.runCLI(command, true)
}

func (c *Context) runCLI(command string, quiet bool) *CommandResult {
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = c.WorkDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			// The command never ran (shell missing, fork failure).
			exitCode = -1
			fmt.Fprintf(&stderr, "%v\n", err)
		}
	}

	if !quiet && stdout.Len() > 0 {
		c.Stdout.WriteRaw(stdout.String())
	}
	if stderr.Len() > 0 {
		c.Stderr.WriteRaw(stderr.String())
	}

	return &CommandResult{
		ExitCode: exitCode,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}
}

// GetTaskProxy resolves name against the loaded task mapping and returns a
// proxy the caller can execute immediately or hold.
//
// If the target is a structured task, an argument vector is synthesized for
// it: the current task's verbosity, redirection targets (omitted when they
// are the process defaults), and color flag are propagated first, then any
// explicit extra arguments are appended. Shell and callable targets accept
// no arguments; passing extra arguments for one is a task error.
func (c *Context) GetTaskProxy(name string, extra ...string) (*Proxy, error) {
	r := &Resolver{
		Prog:       c.progRoot,
		WorkDir:    c.WorkDir,
		ProjectDir: c.ProjectDir,
		List:       c.list,
		Stdout:     c.Stdout,
		Stderr:     c.Stderr,
	}

	// A definition error from the inner resolution step passes through
	// untouched: the caller decides whether it is fatal to the parent.
	proxy, err := r.Lookup(name, nil)
	if err != nil {
		return nil, err
	}

	if proxy.HasOwnArgs {
		proxy.argv = c.proxyArgs(extra)
	} else if len(extra) > 0 {
		return nil, Errorf("Shell- and function-based tasks do not accept arguments.")
	}

	return proxy, nil
}

// proxyArgs synthesizes the argument vector for a structured sub-task:
// propagated flags first, explicit extras last. A flag already present in
// extras is not propagated.
func (c *Context) proxyArgs(extra []string) []string {
	var args []string

	if !hasFlag(extra, "-v", "--verbosity") {
		args = append(args, "--verbosity", strconv.Itoa(c.Verbosity))
	}
	if c.stdoutPath != "" && !hasFlag(extra, "--stdout") {
		args = append(args, "--stdout", c.stdoutPath)
	}
	if c.stderrPath != "" && !hasFlag(extra, "--stderr") {
		args = append(args, "--stderr", c.stderrPath)
	}
	if c.noColor && !hasFlag(extra, "--no-color") {
		args = append(args, "--no-color")
	}

	return append(args, extra...)
}

func hasFlag(args []string, names ...string) bool {
	for _, arg := range args {
		for _, name := range names {
			if arg == name {
				return true
			}
		}
	}
	return false
}
