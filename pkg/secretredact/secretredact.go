// Package secretredact implements the global secret registry and
// greedy redaction pass applied to every event's textual payload
// (specification §4.9 "Secret redaction").
package secretredact

import (
	"sort"
	"strings"
	"sync"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
)

const minSecretLen = 4

// Mask is substituted for every redacted secret occurrence.
const Mask = "*_*"

// Registry is a process-global table of registered secret values.
// Registration happens once per secret; redaction consults the
// current snapshot for every textual payload crossing the event bus.
type Registry struct {
	mu      sync.RWMutex
	secrets map[string]struct{}
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{secrets: map[string]struct{}{}}
}

// Register adds value to the registry. Values shorter than
// minSecretLen are rejected with SecretTooShort rather than silently
// ignored, so callers can warn rather than fail the whole command
// (specification §6 error taxonomy: "SecretTooShort ... warn only").
func (r *Registry) Register(value string) error {
	if len(value) < minSecretLen {
		return cuenverr.New(cuenverr.SecretTooShort, "register secret", "")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.secrets[value] = struct{}{}
	return nil
}

// Redact replaces every registered secret occurring in text with
// Mask. Matching is greedy: longer registered secrets are tried
// before shorter ones so a short secret that happens to be a substring
// of a longer one never causes a partial, misleading redaction.
func (r *Registry) Redact(text string) string {
	r.mu.RLock()
	values := make([]string, 0, len(r.secrets))
	for v := range r.secrets {
		values = append(values, v)
	}
	r.mu.RUnlock()

	if len(values) == 0 {
		return text
	}
	sort.Slice(values, func(i, j int) bool { return len(values[i]) > len(values[j]) })

	out := text
	for _, v := range values {
		out = strings.ReplaceAll(out, v, Mask)
	}
	return out
}
