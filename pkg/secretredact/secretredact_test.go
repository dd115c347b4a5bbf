package secretredact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedact_ReplacesRegisteredSecret(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("supersecret123"))
	require.Equal(t, "token=*_*", r.Redact("token=supersecret123"))
}

func TestRegister_RejectsShortSecrets(t *testing.T) {
	r := New()
	require.Error(t, r.Register("abc"))
}

func TestRedact_GreedyLongestMatchFirst(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("abcd"))
	require.NoError(t, r.Register("abcdefgh"))
	require.Equal(t, "x=*_* y=*_*", r.Redact("x=abcdefgh y=abcd"))
}

func TestRedact_NoRegisteredSecretsIsNoOp(t *testing.T) {
	r := New()
	require.Equal(t, "plain text", r.Redact("plain text"))
}
