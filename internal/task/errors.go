package task

import "fmt"

// Error is a task's own declared failure: the task ran and reported a
// problem that is meaningful to the user (a failed subcommand, a missing
// dependency, bad input). It is intercepted at the nearest execution
// boundary and printed as a bare message, without a stack trace.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Errorf builds a task failure from a format string.
func Errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// DefinitionError reports a defect in the project's task configuration: a
// malformed task name, an unrecognised definition shape, or a manifest
// without a task mapping. It is a project-authoring error, not a runtime
// failure, and is surfaced the same way: message, exit 1, no stack trace.
type DefinitionError struct {
	Message string
}

func (e *DefinitionError) Error() string { return e.Message }

// DefinitionErrorf builds a DefinitionError from a format string.
func DefinitionErrorf(format string, args ...any) *DefinitionError {
	return &DefinitionError{Message: fmt.Sprintf(format, args...)}
}

// UsageError reports an argument-parsing failure. The parser has already
// written the error and usage text; only the exit code remains to convey.
type UsageError struct {
	Code int
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("usage error (exit %d)", e.Code)
}

// ExitError carries a terminal exit status whose cause has already been
// reported on the appropriate stream. The process should exit with Code
// without printing anything further.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}
