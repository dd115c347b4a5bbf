package evalgateway

import (
	"fmt"

	"github.com/cuenv-dev/cuenv/pkg/taskgraph"
	"gopkg.in/yaml.v3"
)

// manifestFile is the on-disk YAML shape of a project's cuenv.yaml
// (specification §3; SPEC_FULL.md [ADDED] reference evaluator).
type manifestFile struct {
	Name   string                  `yaml:"name"`
	Module bool                    `yaml:"module"`
	Tasks  map[string]yamlTaskDef  `yaml:"tasks"`
}

// yamlTaskDef decodes the tagged union TaskDefinition from YAML: a
// node with "sequential" or "parallel" is a group, otherwise it is
// decoded as a leaf Task.
type yamlTaskDef struct {
	Sequential []yamlTaskDef           `yaml:"sequential"`
	Parallel   map[string]yamlTaskDef  `yaml:"parallel"`
	// ParallelOrder preserves declaration order, since yaml.v3 decodes
	// maps without order; populated separately via node inspection.
	parallelOrder []string

	Command     string            `yaml:"command"`
	Args        []string          `yaml:"args"`
	Shell       *yamlShell        `yaml:"shell"`
	Env         map[string]string `yaml:"env"`
	DependsOn   []string          `yaml:"depends_on"`
	Inputs      []yamlInput       `yaml:"inputs"`
	Outputs     []string          `yaml:"outputs"`
	CachePolicy string            `yaml:"cache_policy"`
	TaskRef     string            `yaml:"task_ref"`
}

type yamlShell struct {
	Command string `yaml:"command"`
	Flag    string `yaml:"flag"`
}

// yamlInput decodes one Task.inputs entry: a bare scalar string is a
// pattern; a mapping node carries either a same-project task_ref or a
// cross-project reference.
type yamlInput struct {
	Pattern string
	TaskRef string
	Cross   *yamlCross
}

type yamlCross struct {
	Project string            `yaml:"project"`
	Task    string            `yaml:"task"`
	Map     []yamlCrossMapping `yaml:"map"`
}

type yamlCrossMapping struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

func (t *yamlTaskDef) UnmarshalYAML(node *yaml.Node) error {
	type plain yamlTaskDef
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*t = yamlTaskDef(p)

	if len(t.Parallel) > 0 {
		// Find the "parallel" mapping node to recover declaration order,
		// since yaml.v3 decodes maps without preserving key order.
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "parallel" {
				m := node.Content[i+1]
				for j := 0; j+1 < len(m.Content); j += 2 {
					t.parallelOrder = append(t.parallelOrder, m.Content[j].Value)
				}
			}
		}
	}
	return nil
}

func (in *yamlInput) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		in.Pattern = node.Value
		return nil
	}
	var m struct {
		TaskRef string     `yaml:"task_ref"`
		Project string     `yaml:"project"`
		Task    string     `yaml:"task"`
		Map     []yamlCrossMapping `yaml:"map"`
	}
	if err := node.Decode(&m); err != nil {
		return err
	}
	if m.TaskRef != "" {
		in.TaskRef = m.TaskRef
		return nil
	}
	in.Cross = &yamlCross{Project: m.Project, Task: m.Task, Map: m.Map}
	return nil
}

func convertTaskDef(projectRoot string, y yamlTaskDef) (taskgraph.TaskDefinition, error) {
	switch {
	case len(y.Sequential) > 0:
		children := make([]taskgraph.TaskDefinition, 0, len(y.Sequential))
		for _, c := range y.Sequential {
			cd, err := convertTaskDef(projectRoot, c)
			if err != nil {
				return taskgraph.TaskDefinition{}, err
			}
			children = append(children, cd)
		}
		return taskgraph.TaskDefinition{Sequential: &taskgraph.Sequential{Children: children}}, nil

	case len(y.Parallel) > 0:
		order := y.parallelOrder
		if len(order) == 0 {
			for name := range y.Parallel {
				order = append(order, name)
			}
		}
		children := make(map[string]taskgraph.TaskDefinition, len(y.Parallel))
		for _, name := range order {
			cd, err := convertTaskDef(projectRoot, y.Parallel[name])
			if err != nil {
				return taskgraph.TaskDefinition{}, err
			}
			children[name] = cd
		}
		return taskgraph.TaskDefinition{Parallel: &taskgraph.Parallel{Children: children, Order: order}}, nil

	default:
		task := taskgraph.Task{
			Command:     y.Command,
			Args:        y.Args,
			Env:         y.Env,
			DependsOn:   y.DependsOn,
			Outputs:     y.Outputs,
			ProjectRoot: projectRoot,
			TaskRef:     y.TaskRef,
			CachePolicy: parseCachePolicy(y.CachePolicy),
		}
		if y.Shell != nil {
			task.Shell = &taskgraph.ShellSpec{Command: y.Shell.Command, Flag: y.Shell.Flag}
		}
		for _, in := range y.Inputs {
			switch {
			case in.Cross != nil:
				mappings := make([]taskgraph.CrossProjectInputMapping, 0, len(in.Cross.Map))
				for _, m := range in.Cross.Map {
					mappings = append(mappings, taskgraph.CrossProjectInputMapping{From: m.From, To: m.To})
				}
				task.Inputs = append(task.Inputs, taskgraph.Input{Cross: &taskgraph.CrossProjectInput{
					Project: in.Cross.Project, Task: in.Cross.Task, Map: mappings,
				}})
			case in.TaskRef != "":
				task.Inputs = append(task.Inputs, taskgraph.Input{TaskRef: in.TaskRef})
			default:
				task.Inputs = append(task.Inputs, taskgraph.Input{Pattern: in.Pattern})
			}
		}
		return taskgraph.TaskDefinition{Single: &task}, nil
	}
}

func parseCachePolicy(s string) taskgraph.CachePolicy {
	switch s {
	case "read_only":
		return taskgraph.CacheReadOnly
	case "write_only":
		return taskgraph.CacheWriteOnly
	case "disabled":
		return taskgraph.CacheDisabled
	default:
		return taskgraph.CacheNormal
	}
}

func convertManifest(projectRoot string, m manifestFile) (ProjectInstance, error) {
	tasks := make(map[string]taskgraph.TaskDefinition, len(m.Tasks))
	for name, y := range m.Tasks {
		def, err := convertTaskDef(projectRoot, y)
		if err != nil {
			return ProjectInstance{}, fmt.Errorf("convert task %q: %w", name, err)
		}
		tasks[name] = def
	}
	return ProjectInstance{Name: m.Name, Tasks: tasks}, nil
}
