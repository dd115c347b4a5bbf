package digest

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildTree_EmptyIsKnownEmptyRoot(t *testing.T) {
	tree := BuildTree(nil)
	require.Equal(t, EmptyHash, tree.Root.Hash)
	require.Equal(t, int64(0), tree.Root.SizeBytes)
}

func TestBuildTree_OrderInvariant(t *testing.T) {
	files := []FileEntry{
		{RelPath: "src/a.txt", Content: Bytes([]byte("a"))},
		{RelPath: "src/b.txt", Content: Bytes([]byte("b"))},
		{RelPath: "src/nested/c.txt", Content: Bytes([]byte("c"))},
		{RelPath: "readme.md", Content: Bytes([]byte("r"))},
	}

	shuffled := append([]FileEntry(nil), files...)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	t1 := BuildTree(files)
	t2 := BuildTree(shuffled)

	require.True(t, t1.Root.Equal(t2.Root), "digest must not depend on discovery order")
}

func TestBuildTree_ContentChangeChangesRoot(t *testing.T) {
	base := []FileEntry{{RelPath: "a.txt", Content: Bytes([]byte("a"))}}
	changed := []FileEntry{{RelPath: "a.txt", Content: Bytes([]byte("b"))}}

	require.False(t, BuildTree(base).Root.Equal(BuildTree(changed).Root))
}

func TestBuildTree_ExecutableBitAffectsDigest(t *testing.T) {
	a := []FileEntry{{RelPath: "run.sh", Content: Bytes([]byte("x")), Executable: false}}
	b := []FileEntry{{RelPath: "run.sh", Content: Bytes([]byte("x")), Executable: true}}

	require.False(t, BuildTree(a).Root.Equal(BuildTree(b).Root))
}

func TestDigest_Determinism(t *testing.T) {
	d1 := Bytes([]byte("hello world"))
	d2 := Bytes([]byte("hello world"))
	require.True(t, d1.Equal(d2))
	require.Equal(t, "sha256:"+d1.Hash, d1.String())
}
