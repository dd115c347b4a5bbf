package hooks

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/cuenv-dev/cuenv/pkg/fingerprint"
)

// inputsFingerprint resolves h.Inputs against dir and returns a stable
// digest of the matched files, used to decide whether re-execution can
// be skipped (specification §4.8: "if the fingerprint matches the last
// successful execution's fingerprint, the hook is skipped").
func inputsFingerprint(h Hook) (string, error) {
	if len(h.Inputs) == 0 {
		return "", nil
	}
	resolved, err := fingerprint.ResolveInputs(h.Inputs, h.Dir, nil)
	if err != nil {
		return "", err
	}
	hasher := sha256.New()
	for _, f := range resolved.Files {
		hasher.Write([]byte(f.RelPath))
		hasher.Write([]byte{0})
		hasher.Write([]byte(f.Content.Hash))
		hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
