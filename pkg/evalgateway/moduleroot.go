package evalgateway

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FindModuleRoot walks upward from start looking for a cuenv.yaml
// whose "module" field is true. If none is found, start itself is
// returned as a single-project module root (specification §3 "Module
// root", §9 glossary).
func FindModuleRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		manifestPath := filepath.Join(dir, "cuenv.yaml")
		if raw, err := os.ReadFile(manifestPath); err == nil {
			var mf manifestFile
			if yamlErr := yaml.Unmarshal(raw, &mf); yamlErr == nil && mf.Module {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	return abs, nil
}
