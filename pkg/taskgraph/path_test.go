package taskgraph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePath_Equivalences(t *testing.T) {
	a, err := ParsePath("a.b")
	require.NoError(t, err)
	b, err := ParsePath("a:b")
	require.NoError(t, err)
	c, err := ParsePath(" a . b ")
	require.NoError(t, err)

	require.Equal(t, a.Canonical(), b.Canonical())
	require.Equal(t, a.Canonical(), c.Canonical())
	require.Equal(t, "a.b", a.Canonical())
}

func TestParsePath_InvalidSegments(t *testing.T) {
	_, err := ParsePath("")
	require.Error(t, err)

	_, err = ParsePath("   ")
	require.Error(t, err)
}

func TestParsePath_RoundTrip(t *testing.T) {
	for _, raw := range []string{"a", "a.b.c", "a:b:c", " a.b "} {
		p, err := ParsePath(raw)
		require.NoError(t, err)
		p2, err := ParsePath(p.Canonical())
		require.NoError(t, err)
		require.Equal(t, p.Canonical(), p2.Canonical())
	}
}
