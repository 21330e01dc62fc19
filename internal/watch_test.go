package internal

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchLibraryDebouncesBursts(t *testing.T) {
	dir := t.TempDir()

	var fired atomic.Int32
	watcher, err := WatchLibrary(dir, 200*time.Millisecond, func() {
		fired.Add(1)
	})
	require.NoError(t, err)
	defer watcher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = watcher.Run(ctx)
	}()

	// A burst of writes, like a collection build, collapses into one
	// callback.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.bin"), []byte{byte(i)}, 0644))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return fired.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// Quiet period: no further callbacks.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop on context cancel")
	}
}

func TestWatchLibraryMissingRoot(t *testing.T) {
	_, err := WatchLibrary(filepath.Join(t.TempDir(), "missing"), 0, func() {})
	require.Error(t, err)
}
