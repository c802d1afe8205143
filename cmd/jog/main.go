// Command jog discovers the project's task manifest and runs the named
// task.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"jog/internal/builtin"
	"jog/internal/cli"
	"jog/internal/task"
)

func main() {
	workDir, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	registry := task.NewRegistry()
	builtin.Register(registry)

	code, err := cli.Run(cli.Options{
		Prog:     filepath.Base(os.Args[0]),
		Args:     os.Args[1:],
		WorkDir:  workDir,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Registry: registry,
	})
	if err != nil {
		// An unanticipated defect: report it in full, not as a clean
		// domain message.
		fmt.Fprintf(os.Stderr, "%s: internal error: %+v\n", filepath.Base(os.Args[0]), err)
		if code == 0 {
			code = 1
		}
	}
	os.Exit(code)
}
