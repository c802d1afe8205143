package builtin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"jog/internal/task"
)

// Docs is the registered definition of the built-in docs task. It assumes
// a "docs" directory under the project directory (the one containing the
// manifest) with a make-driven build.
var Docs = &task.Structured{
	Help: "Build the project documentation.",
	New:  func() task.Handler { return &docsTask{} },
}

type docsTask struct {
	full     bool
	linkOnly bool
}

func (t *docsTask) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&t.full, "full", "f", false,
		"Remove previously built documentation before rebuilding all pages from scratch.")
	fs.BoolVarP(&t.linkOnly, "link", "l", false,
		"Output the link to previously built documentation and exit.")
}

func (t *docsTask) Run(c *task.Context) error {
	docsDir := filepath.Join(c.ProjectDir, "docs")
	if _, err := os.Stat(docsDir); err != nil {
		return task.Errorf("Documentation directory not found at %s.", docsDir)
	}

	showLink := true
	outputPrefix := ""
	if !t.linkOnly {
		command := []string{fmt.Sprintf("cd %s", docsDir)}
		if t.full {
			command = append(command, "make clean")
		}
		command = append(command, "make html")

		result := c.CLI(strings.Join(command, " && "))
		showLink = result.ExitCode == 0
		outputPrefix = "\n"
	}

	if showLink {
		indexPath := filepath.Join(docsDir, "_build", "html", "index.html")
		if _, err := os.Stat(indexPath); err == nil {
			c.Stdout.WriteStyled("label", fmt.Sprintf(
				"%sGenerated documentation can be viewed at: file://%s", outputPrefix, indexPath))
		} else {
			c.Stdout.WriteStyled("warning", fmt.Sprintf(
				"%sGenerated documentation not found, expected at: %s", outputPrefix, indexPath))
		}
	}
	return nil
}
