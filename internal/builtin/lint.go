// Package builtin provides the structured tasks that ship with jog. They
// are ordinary clients of the task engine: a manifest opts into them with
// `task: lint` (etc.), and projects tune them through their settings
// sections.
package builtin

import (
	"bytes"
	"os"
	"os/exec"
	"strconv"

	"github.com/spf13/pflag"

	"jog/internal/files"
	"jog/internal/task"
)

// Recognised line-ending names for the fable_good_endings setting.
var endingNames = []string{"CRLF", "CR", "LF"}

const (
	defaultGoodEnding  = "LF"
	defaultMaxFilesize = 1024 * 1024 // 1MiB
)

// defaultFableExcludes are always skipped by the line-ending scan; the
// fable_exclude setting extends them.
var defaultFableExcludes = []string{
	".git", ".hg", ".svn", "vendor", "node_modules",
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.ico", "*.pdf", "*.zip", "*.gz",
}

// Lint is the registered definition of the built-in lint task.
var Lint = &task.Structured{
	Help: "Lint the project. Runs gofmt and go vet if available, and fable " +
		"(Find All Bad Line Endings) over the project tree.",
	New: func() task.Handler { return &lintTask{} },
}

type lintStep struct {
	name     string
	flagName string
	short    string
	flagHelp string
}

var lintSteps = []lintStep{
	{"gofmt", "gofmt", "g", "Check formatting with gofmt."},
	{"vet", "vet", "", "Run go vet."},
	{"fable", "fable", "f", "Find all bad line endings."},
}

type lintTask struct {
	explicit map[string]*bool

	outcomes []outcome
}

type outcome struct {
	label string
	ok    bool
}

func (t *lintTask) AddFlags(fs *pflag.FlagSet) {
	t.explicit = make(map[string]*bool, len(lintSteps))
	for _, step := range lintSteps {
		t.explicit[step.name] = fs.BoolP(step.flagName, step.short, false, step.flagHelp)
	}
}

func (t *lintTask) Run(c *task.Context) error {
	// A step is explicit when its flag was given. Otherwise it runs
	// implicitly unless disabled in the project settings.
	var explicitSteps, implicitSteps []string
	for _, step := range lintSteps {
		switch {
		case *t.explicit[step.name]:
			explicitSteps = append(explicitSteps, step.name)
		case c.Settings.Bool(step.name, true):
			implicitSteps = append(implicitSteps, step.name)
		}
	}

	run := implicitSteps
	explicit := false
	if len(explicitSteps) > 0 {
		run = explicitSteps
		explicit = true
	}

	for _, step := range run {
		var err error
		switch step {
		case "gofmt":
			err = t.runGofmt(c, explicit)
		case "vet":
			err = t.runVet(c, explicit)
		case "fable":
			err = t.runFable(c)
		}
		if err != nil {
			return err
		}
	}

	if len(t.outcomes) > 0 {
		c.Stdout.WriteStyled("label", "Summary")
		for _, o := range t.outcomes {
			result := c.Stdout.Styler.Success("OK")
			if !o.ok {
				result = c.Stdout.Styler.Failure("FAIL")
			}
			c.Stdout.Write(o.label + ": " + result)
		}
	}
	return nil
}

func (t *lintTask) logStep(c *task.Context, intro string) {
	c.Stdout.WriteStyled("label", intro)
}

func (t *lintTask) runGofmt(c *task.Context, explicit bool) error {
	if _, err := exec.LookPath("gofmt"); err != nil {
		if explicit {
			c.Stderr.Write("Cannot check formatting: gofmt is not available.")
		}
		return nil
	}

	t.logStep(c, "Running gofmt...")
	result := c.CLI("gofmt -l .")

	// gofmt -l exits 0 even when files need formatting; the listing
	// itself is the failure signal.
	ok := result.ExitCode == 0 && len(bytes.TrimSpace(result.Stdout)) == 0
	t.outcomes = append(t.outcomes, outcome{"gofmt", ok})
	c.Stdout.Write("")
	return nil
}

func (t *lintTask) runVet(c *task.Context, explicit bool) error {
	if _, err := exec.LookPath("go"); err != nil {
		if explicit {
			c.Stderr.Write("Cannot run vet: the go tool is not available.")
		}
		return nil
	}

	t.logStep(c, "Running go vet...")
	result := c.CLI("go vet ./...")
	t.outcomes = append(t.outcomes, outcome{"vet", result.ExitCode == 0})
	c.Stdout.Write("")
	return nil
}

func (t *lintTask) runFable(c *task.Context) error {
	t.logStep(c, "Running fable...")

	excludes := append([]string(nil), defaultFableExcludes...)
	excludes = append(excludes, c.Settings.Lines("fable_exclude")...)

	goodEnding := c.Settings.Get("fable_good_endings", defaultGoodEnding)
	if !validEnding(goodEnding) {
		return task.Errorf("Invalid value for fable_good_endings setting (%s).", goodEnding)
	}

	maxFilesize := defaultMaxFilesize
	if raw := c.Settings.Get("fable_max_filesize", ""); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return task.Errorf("Invalid value for fable_max_filesize setting (%s).", raw)
		}
		maxFilesize = parsed
	}

	paths, err := files.Walk(c.WorkDir, excludes)
	if err != nil {
		return task.Errorf("Cannot scan project tree: %v.", err)
	}

	ok := true
	skipped := 0
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Size() > int64(maxFilesize) {
			skipped++
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		for _, ending := range detectEndings(content) {
			if ending != goodEnding {
				c.Stdout.Writef("Detected %s: %s", ending, path)
				ok = false
				break
			}
		}
	}

	if skipped > 0 {
		c.Stdout.Writef("Skipped %d large files", skipped)
	}

	t.outcomes = append(t.outcomes, outcome{"fable", ok})
	c.Stdout.Write("")
	return nil
}

func validEnding(name string) bool {
	for _, known := range endingNames {
		if known == name {
			return true
		}
	}
	return false
}

// detectEndings reports which line-ending styles occur in content. A bare
// CR or LF that is part of a CRLF pair does not count towards CR/LF.
func detectEndings(content []byte) []string {
	crlf := bytes.Count(content, []byte("\r\n"))
	cr := bytes.Count(content, []byte("\r")) - crlf
	lf := bytes.Count(content, []byte("\n")) - crlf

	var found []string
	if crlf > 0 {
		found = append(found, "CRLF")
	}
	if cr > 0 {
		found = append(found, "CR")
	}
	if lf > 0 {
		found = append(found, "LF")
	}
	return found
}
