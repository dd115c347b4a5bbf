package hooks

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigHash_StableForIdenticalDeclarations(t *testing.T) {
	hooks := []Hook{{Command: "echo", Args: []string{"hi"}, Dir: "/tmp", Inputs: []string{"a.txt"}}}
	h1, err := ConfigHash(hooks)
	require.NoError(t, err)
	h2, err := ConfigHash(hooks)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestConfigHash_DiffersOnCommandChange(t *testing.T) {
	h1, err := ConfigHash([]Hook{{Command: "echo"}})
	require.NoError(t, err)
	h2, err := ConfigHash([]Hook{{Command: "true"}})
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestApprovalStore_ApproveThenIsApproved(t *testing.T) {
	store := NewApprovalStore(filepath.Join(t.TempDir(), "approved.json"))
	ok, err := store.IsApproved("abc")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Approve("abc", "tester"))

	ok, err = store.IsApproved("abc")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestApprovalStore_RevokeRemovesApproval(t *testing.T) {
	store := NewApprovalStore(filepath.Join(t.TempDir(), "approved.json"))
	require.NoError(t, store.Approve("abc", "tester"))
	require.NoError(t, store.Revoke("abc"))

	ok, err := store.IsApproved("abc")
	require.NoError(t, err)
	require.False(t, ok)
}
