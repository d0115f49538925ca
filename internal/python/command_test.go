package python

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/pykernel-sdk-go/internal/config"
)

func TestBuildArgs(t *testing.T) {
	args := BuildArgs()

	require.Len(t, args, 3)
	assert.Equal(t, "-u", args[0])
	assert.Equal(t, "-c", args[1])
	assert.Equal(t, WorkerProgram, args[2])
}

func TestBuildEnvironment(t *testing.T) {
	t.Run("disables output buffering", func(t *testing.T) {
		env := BuildEnvironment(nil)

		assert.Contains(t, env, "PYTHONUNBUFFERED=1")
	})

	t.Run("appends user variables last so they win", func(t *testing.T) {
		env := BuildEnvironment(&config.Options{
			Env: map[string]string{"MPLBACKEND": "Agg"},
		})

		assert.Equal(t, "MPLBACKEND=Agg", env[len(env)-1])
	})
}

func TestWorkerProgram(t *testing.T) {
	// The program travels inline via -c; a few structural checks guard
	// against accidental edits breaking the wire contract.
	for _, fragment := range []string{
		`"type": "ready"`,
		`"execute"`,
		`"result"`,
		`"error"`,
		"redirect_stdout",
		"_repr_png_",
	} {
		assert.True(t, strings.Contains(WorkerProgram, fragment),
			"worker program must contain %q", fragment)
	}
}
