package hooks

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// yamlHook is the on-disk shape of one hook declaration (specification
// §4.8: "hook declarations ... may be expressed in YAML").
type yamlHook struct {
	Command    string   `yaml:"command"`
	Args       []string `yaml:"args"`
	Source     bool     `yaml:"source"`
	Preload    bool     `yaml:"preload"`
	Inputs     []string `yaml:"inputs"`
	TimeoutSec int      `yaml:"timeout_seconds"`
}

type hooksFile struct {
	Hooks []yamlHook `yaml:"hooks"`
}

// LoadDeclared reads dir's cuenv.yaml "hooks" list, if present. A
// missing file or missing key yields an empty, non-error declaration
// set.
func LoadDeclared(dir string) ([]Hook, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "cuenv.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var hf hooksFile
	if err := yaml.Unmarshal(raw, &hf); err != nil {
		return nil, err
	}
	hooks := make([]Hook, 0, len(hf.Hooks))
	for _, y := range hf.Hooks {
		timeout := DefaultTimeout
		if y.TimeoutSec > 0 {
			timeout = time.Duration(y.TimeoutSec) * time.Second
		}
		hooks = append(hooks, Hook{
			Command: y.Command,
			Args:    y.Args,
			Dir:     dir,
			Source:  y.Source,
			Preload: y.Preload,
			Inputs:  y.Inputs,
			Timeout: timeout,
		})
	}
	return hooks, nil
}
