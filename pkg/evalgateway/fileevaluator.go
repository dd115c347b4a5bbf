package evalgateway

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
	"gopkg.in/yaml.v3"
)

// ManifestFileNames are the module-marker filenames recognized at a
// project root, checked in order (specification §1 [ADDED] "Module
// marker"). "env.cue" is recognized as a marker but, since the real
// CUE engine is out of scope here, a project directory containing
// only env.cue and no cuenv.yaml evaluates to a project with no
// tasks.
var ManifestFileNames = []string{"cuenv.yaml", "env.cue"}

var skipDirs = map[string]bool{".git": true, "node_modules": true, "vendor": true, ".cuenv": true}

// FileEvaluator is the reference Evaluator: it walks a directory tree
// for module markers and decodes cuenv.yaml task manifests, standing
// in for the external CUE-based config engine (specification §1).
type FileEvaluator struct{}

// NewFileEvaluator constructs a FileEvaluator.
func NewFileEvaluator() *FileEvaluator { return &FileEvaluator{} }

// Evaluate implements Evaluator.
func (e *FileEvaluator) Evaluate(moduleRoot string) (Module, error) {
	var projects []ProjectInstance

	err := filepath.WalkDir(moduleRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return fs.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() != filepath.Base(moduleRoot) && skipDirs[d.Name()] {
			return fs.SkipDir
		}
		if findManifest(path) == "" {
			return nil
		}
		proj, evalErr := e.EvaluateProject(path)
		if evalErr != nil {
			return evalErr
		}
		rel, relErr := filepath.Rel(moduleRoot, path)
		if relErr != nil {
			return relErr
		}
		proj.Path = rel
		projects = append(projects, proj)
		return nil
	})
	if err != nil {
		return Module{}, cuenverr.Wrap(cuenverr.ConfigEvaluation, "evaluate module", moduleRoot, err)
	}
	return Module{Root: moduleRoot, Projects: projects}, nil
}

// EvaluateProject implements Evaluator.
func (e *FileEvaluator) EvaluateProject(path string) (ProjectInstance, error) {
	manifestPath := findManifest(path)
	if manifestPath == "" {
		return ProjectInstance{}, cuenverr.New(cuenverr.ConfigEvaluation, "evaluate project", path)
	}
	if filepath.Base(manifestPath) != "cuenv.yaml" {
		return ProjectInstance{Name: filepath.Base(path), Manifest: manifestPath}, nil
	}

	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return ProjectInstance{}, cuenverr.Wrap(cuenverr.ConfigEvaluation, "read manifest", manifestPath, err)
	}
	var mf manifestFile
	if err := yaml.Unmarshal(raw, &mf); err != nil {
		return ProjectInstance{}, cuenverr.Wrap(cuenverr.ConfigEvaluation, "parse manifest", manifestPath, err)
	}
	proj, err := convertManifest(path, mf)
	if err != nil {
		return ProjectInstance{}, cuenverr.Wrap(cuenverr.ConfigEvaluation, "convert manifest", manifestPath, err)
	}
	proj.Manifest = manifestPath
	if proj.Name == "" {
		proj.Name = filepath.Base(path)
	}
	return proj, nil
}

func findManifest(dir string) string {
	for _, name := range ManifestFileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}
