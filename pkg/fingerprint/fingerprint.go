package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/cuenv-dev/cuenv/pkg/taskgraph"
)

// CacheKeyEnvelope is the canonical, serializable record fingerprinted
// into a CacheKey (specification §3 "CacheKeyEnvelope"). encoding/json
// sorts map keys alphabetically on Marshal, which gives the "inputs"
// and "env" maps their required sorted-key ordering for free; Args
// preserves declared order as a slice; omitempty drops absent
// nullable fields instead of emitting them as null.
type CacheKeyEnvelope struct {
	Inputs      map[string]string `json:"inputs"`
	Command     string            `json:"command"`
	Args        []string          `json:"args,omitempty"`
	Shell       *taskgraph.ShellSpec `json:"shell,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Secrets     map[string]string `json:"secrets,omitempty"`
	ToolVersion string            `json:"tool_version,omitempty"`
	Platform    string            `json:"platform,omitempty"`
}

// EnvelopeExtras carries the non-input fields of the cache key
// envelope: everything about a task's identity besides its resolved
// file set.
type EnvelopeExtras struct {
	Command     string
	Args        []string
	Shell       *taskgraph.ShellSpec
	Env         map[string]string
	Secrets     []SecretParticipant
	ToolVersion string
	Platform    string
}

// CacheKey is the SHA-256 of a task's canonical cache key envelope.
type CacheKey struct {
	Hash string
}

func (k CacheKey) String() string { return k.Hash }

// Fingerprint builds the CacheKeyEnvelope for resolved and extras and
// hashes its canonical JSON serialization (specification §4.4
// "Fingerprinting").
func Fingerprint(resolved *ResolvedInputs, extras EnvelopeExtras, salt []byte) (CacheKey, error) {
	secretDigest, err := hmacFingerprints(extras.Secrets, salt)
	if err != nil {
		return CacheKey{}, err
	}

	inputs := make(map[string]string, len(resolved.Files))
	for _, f := range resolved.Files {
		inputs[f.RelPath] = f.Content.Hash
	}

	envelope := CacheKeyEnvelope{
		Inputs:      inputs,
		Command:     extras.Command,
		Args:        extras.Args,
		Shell:       extras.Shell,
		Env:         extras.Env,
		Secrets:     secretDigest,
		ToolVersion: extras.ToolVersion,
		Platform:    extras.Platform,
	}

	canonical, err := json.Marshal(envelope)
	if err != nil {
		return CacheKey{}, err
	}
	sum := sha256.Sum256(canonical)
	return CacheKey{Hash: hex.EncodeToString(sum[:])}, nil
}
