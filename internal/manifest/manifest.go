// Package manifest loads the project's task manifest (jog.yaml) into the
// ordered task mapping the engine executes from.
//
// A manifest entry takes one of three shapes, mirroring the engine's three
// task variants:
//
//	build: make all                 # shell: a literal command line
//	hello:                          # callable: an inline Lua body
//	  help: Say hello.
//	  script: |
//	    print("hello " .. (settings.name or "world"))
//	lint:                           # structured: a registered task type
//	  task: lint
//
// A `call` key references a callable registered through the typed registry
// instead of an inline script. Anything else is a definition error,
// rejected at load time, before any task runs.
package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"jog/internal/config"
	"jog/internal/output"
	"jog/internal/script"
	"jog/internal/task"
)

// Load reads and parses the manifest at path, resolving registry references
// against registry. The returned list preserves the manifest's entry order.
func Load(path string, registry *task.Registry) (*task.List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", config.ManifestFileName, err)
	}
	return Parse(data, registry)
}

// Parse builds the task list from raw manifest bytes.
func Parse(data []byte, registry *task.Registry) (*task.List, error) {
	var doc struct {
		Tasks yaml.Node `yaml:"tasks"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, task.DefinitionErrorf("Malformed %s: %v", config.ManifestFileName, err)
	}

	if doc.Tasks.IsZero() {
		return nil, task.DefinitionErrorf("No tasks defined in %s.", config.ManifestFileName)
	}
	if doc.Tasks.Kind != yaml.MappingNode {
		return nil, task.DefinitionErrorf(
			"The tasks entry in %s must map task names to definitions.", config.ManifestFileName)
	}

	list := task.NewList()
	for i := 0; i+1 < len(doc.Tasks.Content); i += 2 {
		name := doc.Tasks.Content[i].Value

		def, err := definitionFor(name, doc.Tasks.Content[i+1], registry)
		if err != nil {
			return nil, err
		}
		if err := list.Add(name, def); err != nil {
			return nil, err
		}
	}

	return list, nil
}

// entry is the mapping form of a manifest definition. Exactly one of Task,
// Call, or Script must be set.
type entry struct {
	Task   string `yaml:"task"`
	Call   string `yaml:"call"`
	Script string `yaml:"script"`
	Help   string `yaml:"help"`
}

func definitionFor(name string, node *yaml.Node, registry *task.Registry) (task.Definition, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!str" {
			return task.Shell(node.Value), nil
		}
		// Numbers, booleans, nulls: not a task shape.
		return nil, unrecognised(name)

	case yaml.MappingNode:
		var e entry
		if err := node.Decode(&e); err != nil {
			return nil, unrecognised(name)
		}

		set := 0
		for _, v := range []string{e.Task, e.Call, e.Script} {
			if v != "" {
				set++
			}
		}
		if set != 1 {
			return nil, unrecognised(name)
		}

		switch {
		case e.Task != "":
			def, ok := registry.LookupStructured(e.Task)
			if !ok {
				return nil, task.DefinitionErrorf(
					"No registered task type %q (referenced by %q).", e.Task, name)
			}
			if e.Help != "" {
				override := *def
				override.Help = e.Help
				return &override, nil
			}
			return def, nil

		case e.Call != "":
			def, ok := registry.LookupFunc(e.Call)
			if !ok {
				return nil, task.DefinitionErrorf(
					"No registered function %q (referenced by %q).", e.Call, name)
			}
			if e.Help != "" {
				override := *def
				override.Doc = e.Help
				return &override, nil
			}
			return def, nil

		default:
			src := e.Script
			return &task.Func{
				Doc: e.Help,
				Run: func(settings config.Settings, stdout, stderr *output.Channel) error {
					return script.Run(src, settings, stdout, stderr)
				},
			}, nil
		}

	default:
		return nil, unrecognised(name)
	}
}

func unrecognised(name string) error {
	return task.DefinitionErrorf("Unrecognised task format for %q.", name)
}
