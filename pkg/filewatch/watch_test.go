package filewatch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sockrelay/sockrelay/pkg/filewatch"
)

func loadTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	s := strings.TrimSpace(string(data))
	if s == "bad" {
		return "", errors.New("invalid content")
	}
	return s, nil
}

func TestWatch_CallsOnChangeAfterWrite(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("v1"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 8)
	errCh := make(chan error, 1)
	go func() {
		errCh <- filewatch.Watch(ctx, p, loadTrimmed, func(v string) { got <- v })
	}()

	// The watch is registered asynchronously; keep writing until an event lands.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(p, []byte("v2"), 0o600)
		select {
		case v := <-got:
			return v == "v2"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

// saveByRename replaces path the way atomic-save editors do: write a sibling
// temp file, then rename it over the original.
func saveByRename(path, content string) {
	tmp := path + ".swp"
	if err := os.WriteFile(tmp, []byte(content), 0o600); err != nil {
		return
	}
	_ = os.Rename(tmp, path)
}

// awaitValue repeats save until onChange reports want.
func awaitValue(t *testing.T, got <-chan string, want string, save func()) {
	t.Helper()
	require.Eventually(t, func() bool {
		save()
		for {
			select {
			case v := <-got:
				if v == want {
					return true
				}
			case <-time.After(50 * time.Millisecond):
				return false
			}
		}
	}, 3*time.Second, 10*time.Millisecond, "never reloaded %q", want)
}

func TestWatch_SurvivesRenameSaves(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("v1"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 16)
	go filewatch.Watch(ctx, p, loadTrimmed, func(v string) { got <- v }) //nolint:errcheck

	awaitValue(t, got, "v2", func() { saveByRename(p, "v2") })
	awaitValue(t, got, "v3", func() { saveByRename(p, "v3") })

	// A plain write after rename saves is still seen.
	awaitValue(t, got, "v4", func() { _ = os.WriteFile(p, []byte("v4"), 0o600) })
}

func TestWatch_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("v1"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 8)
	go filewatch.Watch(ctx, p, loadTrimmed, func(v string) { got <- v }) //nolint:errcheck

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600))

	select {
	case v := <-got:
		t.Fatalf("onChange called with %q for a sibling file", v)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatch_SkipsInvalidContent(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("v1"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 8)
	go filewatch.Watch(ctx, p, loadTrimmed, func(v string) { got <- v }) //nolint:errcheck

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(p, []byte("bad"), 0o600))

	select {
	case v := <-got:
		t.Fatalf("onChange called with %q for invalid content", v)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatch_MissingFile(t *testing.T) {
	err := filewatch.Watch(context.Background(), "/nonexistent/config.yaml", loadTrimmed, func(string) {})
	assert.Error(t, err)
}
