package builtin

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/pflag"

	"jog/internal/task"
)

var (
	// versionRe extracts a version string from a bump target.
	versionRe = regexp.MustCompile(`\d+\.\d+\.\d+`)

	// exactVersionRe validates a version given on the command line.
	exactVersionRe = regexp.MustCompile(`^\d+\.\d+\.\d+([-.][0-9A-Za-z.]+)?$`)
)

// Release is the registered definition of the built-in release task:
// verify a clean working tree, rewrite the version string in the
// configured files, commit, and tag.
var Release = &task.Structured{
	Help: "Issue a release: bump the version in the configured files, commit, and tag.",
	New:  func() task.Handler { return &releaseTask{confirm: stdinConfirm} },
}

type releaseTask struct {
	noInput bool
	dryRun  bool

	// confirm asks the user to proceed; swapped out in tests.
	confirm func(prompt string) bool
}

func (t *releaseTask) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&t.noInput, "no-input", false, "Skip the confirmation prompt.")
	fs.BoolVar(&t.dryRun, "dry-run", false, "Bump nothing; report what would change.")
}

func (t *releaseTask) Run(c *task.Context) error {
	if len(c.Args) != 1 {
		return task.Errorf("A version number is required, e.g. %q.", c.Prog+" 1.2.3")
	}
	newVersion := c.Args[0]
	if !exactVersionRe.MatchString(newVersion) {
		return task.Errorf("Invalid version number (%s).", newVersion)
	}

	bumpFiles := c.Settings.Lines("bump_files")
	if len(bumpFiles) == 0 {
		return task.Errorf("No bump_files configured for the release task.")
	}

	if err := t.verifyState(c); err != nil {
		return err
	}

	currentVersion, err := currentVersion(bumpFiles[0])
	if err != nil {
		return err
	}
	if currentVersion == newVersion {
		return task.Errorf("Version %s is already current.", newVersion)
	}

	styler := c.Stdout.Styler
	if !t.noInput && !t.dryRun {
		prompt := fmt.Sprintf("Confirm moving from %s to %s (Y/n)? ",
			styler.Label(currentVersion), styler.Label(newVersion))
		if !t.confirm(prompt) {
			return nil
		}
	}

	for _, path := range bumpFiles {
		changed, err := bumpVersion(path, currentVersion, newVersion, t.dryRun)
		if err != nil {
			return err
		}
		if c.Verbosity > 1 || t.dryRun {
			verb := "Bumped"
			if t.dryRun {
				verb = "Would bump"
			}
			if !changed {
				verb = "No change in"
			}
			c.Stdout.Writef("%s %s", verb, path)
		}
	}

	if t.dryRun {
		return nil
	}

	commit := fmt.Sprintf("git commit -am 'Bumped version to %s'", newVersion)
	if result := c.CLIQuiet(commit); result.ExitCode != 0 {
		return task.Errorf("Failed to commit the version bump.")
	}
	if result := c.CLIQuiet("git tag v" + newVersion); result.ExitCode != 0 {
		return task.Errorf("Failed to tag the release.")
	}

	c.Stdout.WriteStyled("label", "\nDone!")
	return nil
}

// verifyState ensures the release starts from a clean git working tree.
func (t *releaseTask) verifyState(c *task.Context) error {
	c.Stdout.WriteStyled("label", "Verifying state...")

	result := c.CLIQuiet("git status --porcelain")
	if result.ExitCode != 0 {
		return task.Errorf("Not a git working tree, or git is not available.")
	}
	if len(bytes.TrimSpace(result.Stdout)) > 0 {
		return task.Errorf("The working tree has uncommitted changes.")
	}
	return nil
}

// currentVersion extracts the version string from the first bump target.
func currentVersion(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", task.Errorf("Cannot read %s.", path)
	}
	match := versionRe.Find(content)
	if match == nil {
		return "", task.Errorf("No version number found in %s.", path)
	}
	return string(match), nil
}

// bumpVersion rewrites every occurrence of current with next in the file
// at path, preserving its permissions. In dry-run mode nothing is written.
func bumpVersion(path, current, next string, dryRun bool) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, task.Errorf("Cannot read %s.", path)
	}

	updated := bytes.ReplaceAll(content, []byte(current), []byte(next))
	if bytes.Equal(updated, content) {
		return false, nil
	}
	if dryRun {
		return true, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, task.Errorf("Cannot stat %s.", path)
	}
	if err := os.WriteFile(path, updated, info.Mode().Perm()); err != nil {
		return false, task.Errorf("Cannot write %s.", path)
	}
	return true, nil
}

func stdinConfirm(prompt string) bool {
	fmt.Fprint(os.Stdout, prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}
