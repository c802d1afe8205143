// Package task implements the task resolution and execution engine: the
// closed set of task definition variants, the registry of compiled-in
// tasks, the resolver that turns a named definition into an executable
// proxy, and the execution context structured tasks run within.
package task

import (
	"sort"

	"github.com/spf13/pflag"

	"jog/internal/config"
	"jog/internal/output"
)

// Definition is the closed set of task shapes a manifest entry can resolve
// to. Exactly three variants exist: Shell, *Func, and *Structured.
// Classification over them is total and mutually exclusive; anything else
// is a definition error.
type Definition interface {
	definition()
}

// Shell is a literal command line, executed as-is through the system shell
// with no output interception.
type Shell string

func (Shell) definition() {}

// Func is a callable task: a function invoked with the task's settings view
// and the invocation's output channels. It accepts no arguments of its own.
type Func struct {
	// Doc is the task's help text, shown in the task listing.
	Doc string

	// Run performs the task.
	Run func(settings config.Settings, stdout, stderr *output.Channel) error
}

func (*Func) definition() {}

// Handler is the behaviour a structured task supplies on top of the base
// execution context: its own flag schema and its logic.
type Handler interface {
	// AddFlags declares the task's own flags on the invocation parser.
	AddFlags(fs *pflag.FlagSet)

	// Run performs the task within an execution context built from the
	// parsed arguments.
	Run(c *Context) error
}

// Base is an embeddable no-op Handler core for tasks without custom flags.
type Base struct{}

// AddFlags declares nothing.
func (Base) AddFlags(fs *pflag.FlagSet) {}

// Structured is a task with its own argument surface. A fresh Handler is
// constructed per invocation; parsing happens during context construction.
type Structured struct {
	// Help is the task's help text, shown in the task listing and as the
	// parser description.
	Help string

	// New constructs the handler for one invocation.
	New func() Handler
}

func (*Structured) definition() {}

// List is the ordered name-to-definition mapping loaded from a manifest.
// Insertion order is preserved for listing. It is read-only after load.
type List struct {
	names []string
	defs  map[string]Definition
}

// NewList returns an empty task list.
func NewList() *List {
	return &List{defs: make(map[string]Definition)}
}

// Add appends a definition under name. A duplicate name is a definition
// error.
func (l *List) Add(name string, def Definition) error {
	if _, exists := l.defs[name]; exists {
		return DefinitionErrorf("Duplicate task %q.", name)
	}
	l.names = append(l.names, name)
	l.defs[name] = def
	return nil
}

// Get returns the definition for name.
func (l *List) Get(name string) (Definition, bool) {
	def, ok := l.defs[name]
	return def, ok
}

// Names returns the task names in insertion order.
func (l *List) Names() []string {
	return append([]string(nil), l.names...)
}

// Len returns the number of tasks.
func (l *List) Len() int { return len(l.names) }

// Registry holds the structured tasks and callables available for the
// manifest to reference by name. Built-ins are registered by the CLI;
// embedding programs may register their own before loading a manifest.
type Registry struct {
	structured map[string]*Structured
	funcs      map[string]*Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		structured: make(map[string]*Structured),
		funcs:      make(map[string]*Func),
	}
}

// Structured registers a structured task type under name, replacing any
// previous registration.
func (r *Registry) Structured(name string, def *Structured) {
	r.structured[name] = def
}

// Func registers a callable under name, replacing any previous
// registration.
func (r *Registry) Func(name string, def *Func) {
	r.funcs[name] = def
}

// LookupStructured returns the structured task type registered under name.
func (r *Registry) LookupStructured(name string) (*Structured, bool) {
	def, ok := r.structured[name]
	return def, ok
}

// LookupFunc returns the callable registered under name.
func (r *Registry) LookupFunc(name string) (*Func, bool) {
	def, ok := r.funcs[name]
	return def, ok
}

// StructuredNames lists the registered structured task names, sorted.
func (r *Registry) StructuredNames() []string {
	names := make([]string, 0, len(r.structured))
	for name := range r.structured {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
