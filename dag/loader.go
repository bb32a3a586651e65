package dag

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/task"
	"github.com/kbukum/runemaster/validation"
)

// Definition is a declarative pipeline.
//
//	name: p1
//	variables:
//	  owner: data-team
//	steps:
//	  - - name: download
//	      type: DownloadTask
//	      attributes: {source: Local File System, path: /tmp/in.csv}
//	  - - name: distinct
//	      type: CSVQueryTask
//	      attributes: {query: select distinct a}
type Definition struct {
	Name      string            `yaml:"name" json:"name"`
	Variables map[string]string `yaml:"variables,omitempty" json:"variables,omitempty"`
	Steps     [][]TaskDef       `yaml:"steps" json:"steps"`
}

// TaskDef declares one task of a definition.
type TaskDef struct {
	Name       string            `yaml:"name" json:"name"`
	Type       string            `yaml:"type" json:"type"`
	Attributes map[string]string `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

// ParseDefinition decodes a YAML (or JSON) definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, errors.InvalidInput("definition", err.Error())
	}
	if err := validation.New().Required("name", d.Name).Identifier("name", d.Name).Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadDefinition reads and parses a definition file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dag: reading %s: %w", path, err)
	}
	d, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("dag: parsing %s: %w", path, err)
	}
	return d, nil
}

// Validate checks names, type tags and step shapes before anything is built.
func (d *Definition) Validate() error {
	v := validation.New().Required("name", d.Name).Identifier("name", d.Name)
	for i, step := range d.Steps {
		v.Custom(len(step) > 0, fmt.Sprintf("steps[%d]", i), "step is empty")
		for j, def := range step {
			field := fmt.Sprintf("steps[%d][%d]", i, j)
			v.Required(field+".name", def.Name).
				Identifier(field+".name", def.Name).
				Required(field+".type", def.Type)
		}
	}
	return v.Validate()
}

// Build resolves every type tag against reg, binds attributes and composes
// the steps. Unknown tags fail instead of degrading to the generic type.
func (d *Definition) Build(reg *task.Registry) (*Pipeline, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	p := NewPipeline(d.Name)
	p.SetVariables(d.Variables)

	for _, step := range d.Steps {
		tasks := make([]*task.Task, 0, len(step))
		for _, def := range step {
			typ, ok := reg.Lookup(def.Type)
			if !ok {
				return nil, errors.UnsupportedTaskType(def.Type).WithDetail("task", def.Name)
			}
			t := p.NewTask(def.Name, typ)
			if err := t.Bind(def.Attributes); err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}

		var (
			g   *Graph
			err error
		)
		switch len(tasks) {
		case 1:
			g, err = p.Graph.Then(tasks[0])
		default:
			g, err = p.Graph.Fork(tasks...)
		}
		if err != nil {
			return nil, err
		}
		p.Graph = g
	}
	return p, nil
}

// DefinitionLoader finds definitions by pipeline name.
type DefinitionLoader interface {
	Load(name string) (*Definition, error)
}

// FileDefinitionLoader loads definitions from YAML files on disk.
type FileDefinitionLoader struct {
	dirs []string
}

// NewFileDefinitionLoader creates a loader that searches the given directories.
func NewFileDefinitionLoader(dirs ...string) *FileDefinitionLoader {
	return &FileDefinitionLoader{dirs: dirs}
}

// Load searches for {name}.yaml or {name}.yml in each directory and its
// immediate subdirectories.
func (l *FileDefinitionLoader) Load(name string) (*Definition, error) {
	for _, dir := range l.dirs {
		for _, ext := range []string{".yaml", ".yml"} {
			if d, err := LoadDefinition(filepath.Join(dir, name+ext)); err == nil {
				return d, nil
			}
			matches, _ := filepath.Glob(filepath.Join(dir, "*", name+ext))
			for _, match := range matches {
				if d, err := LoadDefinition(match); err == nil {
					return d, nil
				}
			}
		}
	}
	return nil, errors.UnknownPipeline(name)
}
