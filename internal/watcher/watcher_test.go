package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sha1n/mcp-prompt-server-go/internal/prompts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 50 * time.Millisecond

type countingReloader struct {
	calls atomic.Int32
	roots chan string
	err   error
}

func newCountingReloader() *countingReloader {
	return &countingReloader{roots: make(chan string, 100)}
}

func (r *countingReloader) LoadAndRegister(rootDir string) (*prompts.Catalog, error) {
	r.calls.Add(1)
	r.roots <- rootDir
	if r.err != nil {
		return nil, r.err
	}
	return prompts.NewRegistry(prompts.WithLoader(func(string) ([]*prompts.Definition, error) {
		return nil, nil
	})).LoadAndRegister(rootDir)
}

func startWatcher(t *testing.T, root string, reloader Reloader) *Watcher {
	t.Helper()
	w, err := New(root, reloader, testDebounce)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestWatcher_ReloadsOnPromptFileCreate(t *testing.T) {
	root := t.TempDir()
	reloader := newCountingReloader()
	startWatcher(t, root, reloader)

	writeFile(t, filepath.Join(root, "greet.yaml"), "name: greet")

	select {
	case got := <-reloader.roots:
		assert.Equal(t, root, got)
	case <-time.After(5 * time.Second):
		t.Fatal("expected a reload after creating a prompt file")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	reloader := newCountingReloader()
	startWatcher(t, root, reloader)

	writeFile(t, filepath.Join(root, "notes.txt"), "not a prompt")

	assert.Never(t, func() bool { return reloader.calls.Load() > 0 }, 300*time.Millisecond, 20*time.Millisecond)
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	root := t.TempDir()
	reloader := newCountingReloader()
	startWatcher(t, root, reloader)

	for i := 0; i < 10; i++ {
		writeFile(t, filepath.Join(root, "burst.yaml"), "name: burst")
	}

	require.Eventually(t, func() bool { return reloader.calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(4 * testDebounce)
	assert.Less(t, reloader.calls.Load(), int32(10))
}

func TestWatcher_WatchesSubdirectories(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "existing")
	require.NoError(t, os.MkdirAll(existing, 0755))

	reloader := newCountingReloader()
	startWatcher(t, root, reloader)

	writeFile(t, filepath.Join(existing, "a.json"), `{"name":"a"}`)
	require.Eventually(t, func() bool { return reloader.calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_WatchesNewSubdirectories(t *testing.T) {
	root := t.TempDir()
	reloader := newCountingReloader()
	startWatcher(t, root, reloader)

	created := filepath.Join(root, "created")
	require.NoError(t, os.MkdirAll(created, 0755))
	require.Eventually(t, func() bool { return reloader.calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)

	before := reloader.calls.Load()
	writeFile(t, filepath.Join(created, "b.yml"), "name: b")
	require.Eventually(t, func() bool { return reloader.calls.Load() > before }, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_ReloadErrorKeepsWatching(t *testing.T) {
	root := t.TempDir()
	reloader := newCountingReloader()
	reloader.err = errors.New("broken")
	startWatcher(t, root, reloader)

	writeFile(t, filepath.Join(root, "one.yaml"), "name: one")
	require.Eventually(t, func() bool { return reloader.calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)

	before := reloader.calls.Load()
	writeFile(t, filepath.Join(root, "two.yaml"), "name: two")
	require.Eventually(t, func() bool { return reloader.calls.Load() > before }, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_StopCancelsPendingReload(t *testing.T) {
	root := t.TempDir()
	reloader := newCountingReloader()

	w, err := New(root, reloader, time.Second)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	writeFile(t, filepath.Join(root, "late.yaml"), "name: late")
	time.Sleep(100 * time.Millisecond)
	w.Stop()
	w.Stop()

	assert.Never(t, func() bool { return reloader.calls.Load() > 0 }, 1500*time.Millisecond, 50*time.Millisecond)
}

func TestWatcher_MissingRoot(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing"), newCountingReloader(), 0)
	require.NoError(t, err)
	defer w.Stop()

	assert.Equal(t, DefaultDebounce, w.debounce)
	assert.Error(t, w.Start(context.Background()))
}
