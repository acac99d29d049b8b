package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftpad/payload-mcp/internal/config"
)

func writeConfig(t *testing.T, path, baseURL string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("base-url: \""+baseURL+"\"\n"), 0o600))
}

func TestWatcherReloadsOnContentChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "http://one:3000/api")

	reloaded := make(chan *config.Config, 1)
	w, err := NewWatcher(path, func(cfg *config.Config) {
		reloaded <- cfg
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()

	// let the watch get established
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, path, "http://two:3000/api")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "http://two:3000/api", cfg.BaseURL)
	case <-time.After(3 * time.Second):
		t.Fatal("reload callback was not invoked")
	}
}

func TestWatcherIgnoresUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "http://one:3000/api")

	var calls atomic.Int32
	w, err := NewWatcher(path, func(*config.Config) {
		calls.Add(1)
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)
	// identical content, only the mtime changes
	writeConfig(t, path, "http://one:3000/api")

	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "http://one:3000/api")

	var calls atomic.Int32
	w, err := NewWatcher(path, func(*config.Config) {
		calls.Add(1)
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o600))

	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}
