package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const settingsFileName = "cuenv.yaml"

// Settings is the optional local-overrides file a module root may
// carry, analogous to a per-project config file but scoped to
// operator preferences rather than task declarations (those live in
// CUE/evaluator-owned manifests, see pkg/evalgateway).
type Settings struct {
	MaxConcurrency int      `yaml:"max_concurrency,omitempty"`
	NoFailFast     bool     `yaml:"no_fail_fast,omitempty"`
	HookTimeoutSec int      `yaml:"hook_timeout_seconds,omitempty"`
	ForegroundHooks bool    `yaml:"foreground_hooks,omitempty"`
	CachePolicy    string   `yaml:"cache_policy,omitempty"`
	SecretSalt     string   `yaml:"-"` // never persisted; sourced from CUENV_SECRET_SALT only
	Exclude        []string `yaml:"exclude,omitempty"`
}

// DefaultSettings returns the zero-config defaults (specification
// §4.8 "default 300 s" timeout, §5 default concurrency is core count
// so 0 here means "let the caller pick runtime.NumCPU").
func DefaultSettings() Settings {
	return Settings{
		HookTimeoutSec: 300,
	}
}

// LoadSettings reads <moduleRoot>/cuenv.yaml if present, applying
// environment overrides afterward. A missing file is not an error;
// DefaultSettings is returned instead.
func LoadSettings(moduleRoot string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(filepath.Join(moduleRoot, settingsFileName))
	if err != nil {
		if os.IsNotExist(err) {
			settings.applyEnvOverrides()
			return settings, nil
		}
		return Settings{}, err
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, err
	}

	settings.applyEnvOverrides()
	return settings, nil
}

func (s *Settings) applyEnvOverrides() {
	if salt := os.Getenv("CUENV_SECRET_SALT"); salt != "" {
		s.SecretSalt = salt
	}
	if v := os.Getenv("CUENV_FOREGROUND_HOOKS"); v != "" {
		s.ForegroundHooks = v == "1" || v == "true"
	}
}
