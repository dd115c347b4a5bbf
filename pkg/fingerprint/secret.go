package fingerprint

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
)

const minSecretLen = 4

// SecretParticipant is a secret value that opts into cache-key
// participation. Its raw value never reaches the cache key; only a
// salted HMAC fragment does (specification §4.4 "Edge policies").
type SecretParticipant struct {
	Name  string
	Value string
}

// hmacFingerprints maps each participant's name to the first 16 hex
// characters of HMAC-SHA256(salt, value), rejecting values shorter than
// minSecretLen and a missing salt when at least one participant is
// present.
func hmacFingerprints(participants []SecretParticipant, salt []byte) (map[string]string, error) {
	if len(participants) == 0 {
		return nil, nil
	}
	if len(salt) == 0 {
		return nil, cuenverr.New(cuenverr.MissingSalt, "fingerprint secret participants", "")
	}

	out := make(map[string]string, len(participants))
	for _, p := range participants {
		if len(p.Value) < minSecretLen {
			return nil, cuenverr.New(cuenverr.SecretTooShort, "fingerprint secret participant", p.Name)
		}
		mac := hmac.New(sha256.New, salt)
		mac.Write([]byte(p.Value))
		sum := hex.EncodeToString(mac.Sum(nil))
		out[p.Name] = sum[:16]
	}
	return out, nil
}
