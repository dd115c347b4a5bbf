package fingerprint

import (
	"testing"

	"github.com/cuenv-dev/cuenv/pkg/digest"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_OrderInvariantAcrossEnvAndInputInsertOrder(t *testing.T) {
	resolvedA := &ResolvedInputs{Files: []ResolvedInput{
		{RelPath: "a.go", Content: digest.Bytes([]byte("a"))},
		{RelPath: "b.go", Content: digest.Bytes([]byte("b"))},
	}}
	resolvedB := &ResolvedInputs{Files: []ResolvedInput{
		{RelPath: "b.go", Content: digest.Bytes([]byte("b"))},
		{RelPath: "a.go", Content: digest.Bytes([]byte("a"))},
	}}

	extrasA := EnvelopeExtras{Command: "go", Args: []string{"build"}, Env: map[string]string{"A": "1", "B": "2"}}
	extrasB := EnvelopeExtras{Command: "go", Args: []string{"build"}, Env: map[string]string{"B": "2", "A": "1"}}

	keyA, err := Fingerprint(resolvedA, extrasA, nil)
	require.NoError(t, err)
	keyB, err := Fingerprint(resolvedB, extrasB, nil)
	require.NoError(t, err)
	require.Equal(t, keyA.Hash, keyB.Hash)
}

func TestFingerprint_ArgOrderAffectsKey(t *testing.T) {
	resolved := &ResolvedInputs{}
	k1, err := Fingerprint(resolved, EnvelopeExtras{Command: "go", Args: []string{"a", "b"}}, nil)
	require.NoError(t, err)
	k2, err := Fingerprint(resolved, EnvelopeExtras{Command: "go", Args: []string{"b", "a"}}, nil)
	require.NoError(t, err)
	require.NotEqual(t, k1.Hash, k2.Hash)
}

func TestFingerprint_SecretParticipantMissingSaltFails(t *testing.T) {
	resolved := &ResolvedInputs{}
	_, err := Fingerprint(resolved, EnvelopeExtras{
		Command: "go",
		Secrets: []SecretParticipant{{Name: "TOKEN", Value: "supersecret"}},
	}, nil)
	require.Error(t, err)
}

func TestFingerprint_SecretTooShortRejected(t *testing.T) {
	resolved := &ResolvedInputs{}
	_, err := Fingerprint(resolved, EnvelopeExtras{
		Command: "go",
		Secrets: []SecretParticipant{{Name: "TOKEN", Value: "abc"}},
	}, []byte("salt"))
	require.Error(t, err)
}

func TestFingerprint_SecretContributesHMACNotRawValue(t *testing.T) {
	resolved := &ResolvedInputs{}
	key, err := Fingerprint(resolved, EnvelopeExtras{
		Command: "go",
		Secrets: []SecretParticipant{{Name: "TOKEN", Value: "supersecret123"}},
	}, []byte("salt"))
	require.NoError(t, err)
	require.NotEmpty(t, key.Hash)

	keyDifferentSalt, err := Fingerprint(resolved, EnvelopeExtras{
		Command: "go",
		Secrets: []SecretParticipant{{Name: "TOKEN", Value: "supersecret123"}},
	}, []byte("other-salt"))
	require.NoError(t, err)
	require.NotEqual(t, key.Hash, keyDifferentSalt.Hash)
}
