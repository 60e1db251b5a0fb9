package watcher_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spookyvision/semver-server/internal/watcher"
)

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "registry.json")
	err := os.WriteFile(storePath, []byte("{}"), 0644)
	require.NoError(t, err, "failed to create store file")

	w, err := watcher.New(watcher.Config{
		StorePath:   storePath,
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create watcher")
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err, "failed to start watcher")

	// Rapid writes should coalesce into single notification
	for i := 0; i < 10; i++ {
		err := os.WriteFile(storePath, []byte(fmt.Sprintf("{\"n\":%d}", i)), 0644)
		require.NoError(t, err, "failed to write file")
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-onChange:
		// Expected
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected notification but got timeout")
	}

	// No second notification should come quickly
	select {
	case <-onChange:
		t.Fatal("unexpected second notification")
	case <-time.After(100 * time.Millisecond):
		// Expected - no second notification
	}
}

func TestWatcher_IgnoresIrrelevantFiles(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "registry.json")
	otherPath := filepath.Join(dir, "other.txt")
	err := os.WriteFile(storePath, []byte("{}"), 0644)
	require.NoError(t, err, "failed to create store file")
	// Pre-create the other file so writes to it are just Write events
	err = os.WriteFile(otherPath, []byte("initial"), 0644)
	require.NoError(t, err, "failed to create other file")

	w, err := watcher.New(watcher.Config{
		StorePath:   storePath,
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create watcher")
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err, "failed to start watcher")

	err = os.WriteFile(otherPath, []byte("other content"), 0644)
	require.NoError(t, err, "failed to write other file")

	select {
	case <-onChange:
		t.Fatal("should not notify for unrelated files")
	case <-time.After(100 * time.Millisecond):
		// Expected - no notification for unrelated file
	}
}

func TestWatcher_NotifiesOnFreshStoreCreation(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "registry.json")

	// Store does not exist yet; the directory is watched instead.
	w, err := watcher.New(watcher.Config{
		StorePath:   storePath,
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create watcher")
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err, "failed to start watcher")

	err = os.WriteFile(storePath, []byte("{}"), 0644)
	require.NoError(t, err, "failed to create store file")

	select {
	case <-onChange:
		// Expected - first save of the snapshot triggers a notification
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected notification for store creation")
	}
}

func TestWatcher_Stop(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "registry.json")
	err := os.WriteFile(storePath, []byte("{}"), 0644)
	require.NoError(t, err, "failed to create store file")

	w, err := watcher.New(watcher.Config{
		StorePath:   storePath,
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create watcher")

	_, err = w.Start()
	require.NoError(t, err, "failed to start watcher")

	// Stop should not hang or panic
	done := make(chan struct{})
	go func() {
		err := w.Stop()
		assert.NoError(t, err, "Stop returned error")
		close(done)
	}()

	select {
	case <-done:
		// Expected - stop completed successfully
	case <-time.After(1 * time.Second):
		t.Fatal("Stop() timed out - possible deadlock")
	}
}

func TestDefaultConfig(t *testing.T) {
	storePath := "/var/lib/semver-server/registry.json"
	cfg := watcher.DefaultConfig(storePath)

	assert.Equal(t, storePath, cfg.StorePath)
	assert.Equal(t, 1*time.Second, cfg.DebounceDur)
}
