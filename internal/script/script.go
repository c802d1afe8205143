// Package script executes inline Lua task bodies declared in the manifest.
//
// A script task is the manifest's way of defining a small callable task
// without registering a compiled-in function: it receives the task's
// settings as a table and writes through the invocation's output channels.
// The manifest is project-owned and fully trusted, so scripts run with the
// default library set.
package script

import (
	"bytes"
	"errors"
	"os/exec"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"jog/internal/config"
	"jog/internal/output"
	"jog/internal/task"
)

// Run executes src as a Lua chunk with the following environment:
//
//   - settings: table of the task's settings view (string values)
//   - print(...): writes a line to the task's standard output channel
//   - eprint(...): writes a line to the task's error channel
//   - style(role, text): returns text rendered in the named output style
//   - sh(command): runs a shell command; output passes through to the
//     channels; returns the command's exit code
//   - fail(message): aborts the script with a task failure
//
// A fail() call or any runtime error in the chunk is the task's own
// declared failure, not a defect.
func Run(src string, settings config.Settings, stdout, stderr *output.Channel) error {
	L := lua.NewState()
	defer L.Close()

	L.SetGlobal("settings", settingsTable(L, settings))

	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		stdout.Write(joinArgs(L))
		return 0
	}))

	L.SetGlobal("eprint", L.NewFunction(func(L *lua.LState) int {
		stderr.Write(joinArgs(L))
		return 0
	}))

	L.SetGlobal("style", L.NewFunction(func(L *lua.LState) int {
		role := L.CheckString(1)
		text := L.CheckString(2)
		L.Push(lua.LString(stdout.Styler.Apply(role, text)))
		return 1
	}))

	L.SetGlobal("sh", L.NewFunction(func(L *lua.LState) int {
		command := L.CheckString(1)
		L.Push(lua.LNumber(runShell(command, stdout, stderr)))
		return 1
	}))

	L.SetGlobal("fail", L.NewFunction(func(L *lua.LState) int {
		ud := L.NewUserData()
		ud.Value = &task.Error{Message: L.CheckString(1)}
		L.Error(ud, 1)
		return 0
	}))

	if err := L.DoString(src); err != nil {
		// A fail() that actually terminated the chunk arrives as the
		// raised value; a fail() swallowed by pcall does not.
		if failErr := failure(err); failErr != nil {
			return failErr
		}
		return &task.Error{Message: "script error: " + normalizeLuaError(err)}
	}
	return nil
}

// failure extracts the task error carried by a fail() call, if err is one.
func failure(err error) *task.Error {
	apiErr, ok := err.(*lua.ApiError)
	if !ok {
		return nil
	}
	ud, ok := apiErr.Object.(*lua.LUserData)
	if !ok {
		return nil
	}
	taskErr, _ := ud.Value.(*task.Error)
	return taskErr
}

// settingsTable converts a settings view into a plain Lua table of string
// values.
func settingsTable(L *lua.LState, settings config.Settings) *lua.LTable {
	tbl := L.NewTable()
	for _, key := range settings.Keys() {
		L.SetField(tbl, key, lua.LString(settings.Get(key, "")))
	}
	return tbl
}

// joinArgs renders a Lua vararg list the way print does: tab-separated,
// tostring semantics.
func joinArgs(L *lua.LState) string {
	top := L.GetTop()
	parts := make([]string, 0, top)
	for i := 1; i <= top; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	return strings.Join(parts, "\t")
}

// runShell executes a command through the system shell, forwarding both
// captured streams to the channels, and returns the exit code. It never
// raises into Lua; scripts check the returned code.
func runShell(command string, stdout, stderr *output.Channel) int {
	cmd := exec.Command("sh", "-c", command)

	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			errOut.WriteString(err.Error() + "\n")
		}
	}

	if out.Len() > 0 {
		stdout.WriteRaw(out.String())
	}
	if errOut.Len() > 0 {
		stderr.WriteRaw(errOut.String())
	}
	return exitCode
}

// normalizeLuaError strips gopher-lua's chunk-name prefix noise down to the
// message a manifest author can act on.
func normalizeLuaError(err error) string {
	msg := err.Error()
	if apiErr, ok := err.(*lua.ApiError); ok {
		msg = apiErr.Object.String()
	}
	return strings.TrimSpace(msg)
}
