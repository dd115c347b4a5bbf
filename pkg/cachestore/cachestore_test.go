package cachestore

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/cuenv-dev/cuenv/pkg/taskgraph"
	"github.com/stretchr/testify/require"
)

func TestLookup_AbsentReturnsFalse(t *testing.T) {
	s := New(t.TempDir())
	_, ok, err := s.Lookup("abcd1234", taskgraph.CacheNormal)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLookup_WriteOnlyAndDisabledNeverConsultStore(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	key := "aabbccdd00112233"
	require.NoError(t, s.Store(key, StoreResult{Meta: Metadata{Key: key, Outputs: map[string]string{}}}, taskgraph.CacheNormal))

	for _, p := range []taskgraph.CachePolicy{taskgraph.CacheWriteOnly, taskgraph.CacheDisabled} {
		_, ok, err := s.Lookup(key, p)
		require.NoError(t, err)
		require.False(t, ok)
	}

	_, ok, err := s.Lookup(key, taskgraph.CacheNormal)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestStore_ReadOnlyAndDisabledAreNoOps(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	key := "ffeeddcc00112233"
	for _, p := range []taskgraph.CachePolicy{taskgraph.CacheReadOnly, taskgraph.CacheDisabled} {
		require.NoError(t, s.Store(key, StoreResult{Meta: Metadata{Key: key}}, p))
		_, ok, err := s.Lookup(key, taskgraph.CacheNormal)
		require.NoError(t, err)
		require.False(t, ok)
	}
}

func TestStoreAndMaterializeOutputs_RoundTrips(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	outputsSrc := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outputsSrc, "out.txt"), []byte("hi"), 0o644))

	key := "0011223344556677"
	require.NoError(t, s.Store(key, StoreResult{
		Meta:        Metadata{Key: key, Outputs: map[string]string{"out.txt": "x"}},
		OutputsRoot: outputsSrc,
	}, taskgraph.CacheNormal))

	entry, ok, err := s.Lookup(key, taskgraph.CacheNormal)
	require.NoError(t, err)
	require.True(t, ok)

	dest := t.TempDir()
	count, err := s.MaterializeOutputs(entry, dest)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	content, err := os.ReadFile(filepath.Join(dest, "out.txt"))
	require.NoError(t, err)
	require.Equal(t, "hi", string(content))
}

func TestBuild_DedupesConcurrentCallersForSameKey(t *testing.T) {
	s := New(t.TempDir())
	var calls int32
	firstEntered := make(chan struct{})
	releaseFirst := make(chan struct{})

	done := make(chan error, 2)
	go func() {
		done <- s.Build("samekey", func() error {
			atomic.AddInt32(&calls, 1)
			close(firstEntered)
			<-releaseFirst
			return nil
		})
	}()

	<-firstEntered // first call has registered itself as in-flight
	go func() {
		done <- s.Build("samekey", func() error {
			atomic.AddInt32(&calls, 1)
			return nil
		})
	}()

	close(releaseFirst)
	require.NoError(t, <-done)
	require.NoError(t, <-done)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
