package builtin

import "jog/internal/task"

// Register adds the built-in tasks to registry under their conventional
// names, for manifests to reference via `task: <name>`.
func Register(registry *task.Registry) {
	registry.Structured("lint", Lint)
	registry.Structured("docs", Docs)
	registry.Structured("release", Release)
}
