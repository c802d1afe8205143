package task

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"jog/internal/output"
)

// runHandler is a flagless handler whose Run result the test controls.
type runHandler struct {
	Base
	run func(c *Context) error
}

func (h *runHandler) Run(c *Context) error { return h.run(c) }

func structuredDef(help string, run func(c *Context) error) *Structured {
	return &Structured{
		Help: help,
		New:  func() Handler { return &runHandler{run: run} },
	}
}

func newBufferChannel() *output.Channel {
	return output.New(&bytes.Buffer{})
}

func executeStructured(t *testing.T, r *Resolver, name string, def *Structured, argv []string) error {
	t.Helper()
	p, err := r.Resolve(name, def, argv)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return p.Execute()
}

func TestStructured_DefaultsAndPositionals(t *testing.T) {
	r, _ := newTestResolver(t, nil)

	var got *Context
	def := structuredDef("", func(c *Context) error {
		got = c
		return nil
	})

	if err := executeStructured(t, r, "check", def, []string{"one", "two"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got == nil {
		t.Fatal("handler never ran")
	}
	if got.Verbosity != 1 {
		t.Fatalf("expected default verbosity 1 got %d", got.Verbosity)
	}
	if !reflect.DeepEqual(got.Args, []string{"one", "two"}) {
		t.Fatalf("expected positionals, got %v", got.Args)
	}
	if got.Prog != "jog check" {
		t.Fatalf("expected composed prog got %q", got.Prog)
	}
	if got.WorkDir != r.WorkDir || got.ProjectDir != r.ProjectDir {
		t.Fatal("context must carry the invocation directories")
	}
}

// flagHandler declares one custom flag on top of the built-in surface.
type flagHandler struct {
	loud  bool
	after func(c *Context)
}

func (h *flagHandler) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&h.loud, "loud", false, "Shout.")
}

func (h *flagHandler) Run(c *Context) error {
	if h.after != nil {
		h.after(c)
	}
	return nil
}

func TestStructured_ParsesBuiltinAndCustomFlags(t *testing.T) {
	r, _ := newTestResolver(t, nil)

	var verbosity int
	var loud bool
	def := &Structured{
		New: func() Handler {
			h := &flagHandler{}
			h.after = func(c *Context) {
				verbosity = c.Verbosity
				loud = h.loud
			}
			return h
		},
	}

	err := executeStructured(t, r, "check", def, []string{"-v", "3", "--loud"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verbosity != 3 {
		t.Fatalf("expected verbosity 3 got %d", verbosity)
	}
	if !loud {
		t.Fatal("expected custom flag to be parsed")
	}
}

func TestStructured_InvalidVerbosityIsUsageError(t *testing.T) {
	r, cap := newTestResolver(t, nil)

	def := structuredDef("", func(c *Context) error { return nil })
	err := executeStructured(t, r, "check", def, []string{"--verbosity", "9"})

	var usageErr *UsageError
	if !errors.As(err, &usageErr) || usageErr.Code != 2 {
		t.Fatalf("expected usage error got %v", err)
	}
	if !strings.Contains(cap.stderr.String(), "invalid verbosity level 9") {
		t.Fatalf("expected verbosity report, got %q", cap.stderr.String())
	}
}

func TestStructured_HelpExitsCleanly(t *testing.T) {
	r, cap := newTestResolver(t, nil)

	def := structuredDef("Check things.", func(c *Context) error { return nil })
	err := executeStructured(t, r, "check", def, []string{"--help"})

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 0 {
		t.Fatalf("expected clean exit got %v", err)
	}

	help := cap.stdout.String()
	for _, want := range []string{"Check things.", "--verbosity", "--stdout", "--stderr", "--no-color"} {
		if !strings.Contains(help, want) {
			t.Fatalf("help missing %q:\n%s", want, help)
		}
	}
}

func TestStructured_StdoutRedirection(t *testing.T) {
	r, cap := newTestResolver(t, nil)
	target := filepath.Join(t.TempDir(), "out.log")

	def := structuredDef("", func(c *Context) error {
		c.Stdout.Write("redirected")
		return nil
	})
	if err := executeStructured(t, r, "check", def, []string{"--stdout", target}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read target: %v", err)
	}
	if string(content) != "redirected\n" {
		t.Fatalf("unexpected file content: %q", content)
	}
	if cap.stdout.Len() != 0 {
		t.Fatalf("expected nothing on the default stream, got %q", cap.stdout.String())
	}
}

func TestStructured_TaskErrorIsReportedAndFolded(t *testing.T) {
	r, cap := newTestResolver(t, nil)

	def := structuredDef("", func(c *Context) error {
		return Errorf("Build failed.")
	})

	err := executeStructured(t, r, "build", def, nil)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("expected exit 1 got %v", err)
	}
	if got := cap.stderr.String(); got != "Build failed.\n" {
		t.Fatalf("expected bare message got %q", got)
	}
}

func TestStructured_UnexpectedErrorPropagates(t *testing.T) {
	r, _ := newTestResolver(t, nil)

	boom := errors.New("boom")
	def := structuredDef("", func(c *Context) error { return boom })

	err := executeStructured(t, r, "build", def, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected defect to propagate unchanged, got %v", err)
	}
}

func TestContext_CLICapturesAndForwards(t *testing.T) {
	r, cap := newTestResolver(t, nil)

	var result *CommandResult
	def := structuredDef("", func(c *Context) error {
		result = c.CLI("echo visible; echo problem >&2")
		return nil
	})

	if err := executeStructured(t, r, "check", def, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ExitCode != 0 {
		t.Fatalf("expected exit 0 got %d", result.ExitCode)
	}
	if string(result.Stdout) != "visible\n" {
		t.Fatalf("unexpected captured stdout: %q", result.Stdout)
	}
	if !strings.Contains(cap.stdout.String(), "visible") {
		t.Fatalf("expected forwarded stdout, got %q", cap.stdout.String())
	}
	if !strings.Contains(cap.stderr.String(), "problem") {
		t.Fatalf("expected forwarded stderr, got %q", cap.stderr.String())
	}
}

func TestContext_CLIQuietSuppressesStdout(t *testing.T) {
	r, cap := newTestResolver(t, nil)

	def := structuredDef("", func(c *Context) error {
		result := c.CLIQuiet("echo hidden; exit 3")
		if result.ExitCode != 3 {
			t.Errorf("expected exit 3 got %d", result.ExitCode)
		}
		if string(result.Stdout) != "hidden\n" {
			t.Errorf("expected capture even when quiet, got %q", result.Stdout)
		}
		return nil
	})

	if err := executeStructured(t, r, "check", def, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(cap.stdout.String(), "hidden") {
		t.Fatalf("quiet run must not forward stdout, got %q", cap.stdout.String())
	}
}

func TestContext_CLIRunsInWorkDir(t *testing.T) {
	r, _ := newTestResolver(t, nil)

	var pwd string
	def := structuredDef("", func(c *Context) error {
		pwd = strings.TrimSpace(string(c.CLIQuiet("pwd").Stdout))
		return nil
	})

	if err := executeStructured(t, r, "check", def, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pwd != r.WorkDir {
		t.Fatalf("expected %s got %s", r.WorkDir, pwd)
	}
}

func TestGetTaskProxy_PropagatesVerbosityToStructuredTarget(t *testing.T) {
	list := NewList()

	childRan := false
	child := &Structured{
		Help: "Child.",
		New: func() Handler {
			return &runHandler{run: func(c *Context) error {
				childRan = true
				if c.Verbosity != 2 {
					t.Errorf("expected propagated verbosity 2 got %d", c.Verbosity)
				}
				return nil
			}}
		},
	}
	if err := list.Add("child", child); err != nil {
		t.Fatalf("add child: %v", err)
	}

	parent := &Structured{
		Help: "Parent.",
		New: func() Handler {
			return &runHandler{run: func(c *Context) error {
				proxy, err := c.GetTaskProxy("child")
				if err != nil {
					return err
				}
				want := []string{"--verbosity", "2"}
				if !reflect.DeepEqual(proxy.argv, want) {
					t.Errorf("expected %v got %v", want, proxy.argv)
				}
				return proxy.Execute()
			}}
		},
	}
	if err := list.Add("parent", parent); err != nil {
		t.Fatalf("add parent: %v", err)
	}

	r, _ := newTestResolver(t, list)
	if err := executeStructured(t, r, "parent", parent, []string{"-v", "2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !childRan {
		t.Fatal("child never ran")
	}
}

func TestGetTaskProxy_ExtrasComeAfterPropagatedFlags(t *testing.T) {
	list := NewList()
	child := structuredDef("", func(c *Context) error { return nil })
	if err := list.Add("child", child); err != nil {
		t.Fatalf("add child: %v", err)
	}

	c := &Context{Verbosity: 0, list: list, progRoot: "jog"}
	c.Stdout = newBufferChannel()
	c.Stderr = newBufferChannel()

	proxy, err := c.GetTaskProxy("child", "--dry-run")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"--verbosity", "0", "--dry-run"}
	if !reflect.DeepEqual(proxy.argv, want) {
		t.Fatalf("expected %v got %v", want, proxy.argv)
	}
}

func TestGetTaskProxy_ExplicitFlagSuppressesPropagation(t *testing.T) {
	list := NewList()
	child := structuredDef("", func(c *Context) error { return nil })
	if err := list.Add("child", child); err != nil {
		t.Fatalf("add child: %v", err)
	}

	c := &Context{
		Verbosity:  3,
		stdoutPath: "parent.log",
		noColor:    true,
		list:       list,
		progRoot:   "jog",
	}
	c.Stdout = newBufferChannel()
	c.Stderr = newBufferChannel()

	proxy, err := c.GetTaskProxy("child", "--verbosity", "1", "--stdout", "child.log")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"--no-color", "--verbosity", "1", "--stdout", "child.log"}
	if !reflect.DeepEqual(proxy.argv, want) {
		t.Fatalf("expected %v got %v", want, proxy.argv)
	}
}

func TestGetTaskProxy_RedirectionPropagatedOnlyWhenSet(t *testing.T) {
	list := NewList()
	child := structuredDef("", func(c *Context) error { return nil })
	if err := list.Add("child", child); err != nil {
		t.Fatalf("add child: %v", err)
	}

	c := &Context{
		Verbosity:  1,
		stderrPath: "errors.log",
		list:       list,
		progRoot:   "jog",
	}
	c.Stdout = newBufferChannel()
	c.Stderr = newBufferChannel()

	proxy, err := c.GetTaskProxy("child")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"--verbosity", "1", "--stderr", "errors.log"}
	if !reflect.DeepEqual(proxy.argv, want) {
		t.Fatalf("expected %v got %v", want, proxy.argv)
	}
}

func TestGetTaskProxy_ExtrasRejectedForShellTarget(t *testing.T) {
	list := NewList()
	if err := list.Add("build", Shell("make all")); err != nil {
		t.Fatalf("add build: %v", err)
	}

	c := &Context{list: list, progRoot: "jog"}
	c.Stdout = newBufferChannel()
	c.Stderr = newBufferChannel()

	_, err := c.GetTaskProxy("build", "--fast")
	var taskErr *Error
	if !errors.As(err, &taskErr) {
		t.Fatalf("expected task error got %v", err)
	}
	if taskErr.Message != "Shell- and function-based tasks do not accept arguments." {
		t.Fatalf("unexpected message: %q", taskErr.Message)
	}
}

func TestGetTaskProxy_UnknownTaskPassesDefinitionErrorThrough(t *testing.T) {
	c := &Context{list: NewList(), progRoot: "jog"}
	c.Stdout = newBufferChannel()
	c.Stderr = newBufferChannel()

	_, err := c.GetTaskProxy("ghost")
	var defErr *DefinitionError
	if !errors.As(err, &defErr) {
		t.Fatalf("expected DefinitionError got %v", err)
	}
}
