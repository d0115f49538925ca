package python

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/pykernel-sdk-go/internal/errors"
)

func TestDiscoverer_ExplicitPath(t *testing.T) {
	t.Run("existing path is returned as-is", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "python3")
		require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))

		d := NewDiscoverer(&Config{PythonPath: path})

		found, err := d.Discover(context.Background())
		require.NoError(t, err)
		assert.Equal(t, path, found)
	})

	t.Run("missing explicit path fails without fallback", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "nonexistent")

		d := NewDiscoverer(&Config{PythonPath: missing})

		_, err := d.Discover(context.Background())
		require.Error(t, err)

		notFound, ok := stderrors.AsType[*errors.PythonNotFoundError](err)
		require.True(t, ok)
		assert.Equal(t, []string{missing}, notFound.SearchedPaths)
	})
}

func TestDiscoverer_PathSearch(t *testing.T) {
	t.Run("finds python3 on PATH", func(t *testing.T) {
		dir := t.TempDir()
		binary := filepath.Join(dir, "python3")
		require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0o755))
		t.Setenv("PATH", dir)

		d := NewDiscoverer(nil)

		found, err := d.Discover(context.Background())
		require.NoError(t, err)
		assert.Equal(t, binary, found)
	})

	t.Run("falls back to python when python3 is absent", func(t *testing.T) {
		dir := t.TempDir()
		binary := filepath.Join(dir, "python")
		require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0o755))
		t.Setenv("PATH", dir)

		d := NewDiscoverer(nil)

		found, err := d.Discover(context.Background())
		require.NoError(t, err)
		assert.Equal(t, binary, found)
	})
}
