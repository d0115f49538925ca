package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPythonNotFoundError(t *testing.T) {
	err := &PythonNotFoundError{
		SearchedPaths: []string{"/usr/bin/python3", "/opt/bin/python3"},
	}

	require.Equal(
		t,
		"python interpreter not found in: [/usr/bin/python3 /opt/bin/python3]",
		err.Error(),
	)
	require.True(t, err.IsKernelSDKError())
}

func TestConnectionError(t *testing.T) {
	root := errors.New("pipe failed")
	err := &ConnectionError{Err: root}

	require.Equal(t, "failed to connect to worker: pipe failed", err.Error())
	require.ErrorIs(t, err, root)
	require.True(t, err.IsKernelSDKError())
}

func TestProcessError_WithUnderlyingError(t *testing.T) {
	root := errors.New("process terminated")
	err := &ProcessError{
		ExitCode: 9,
		Stderr:   "ignored when Err is set",
		Err:      root,
	}

	require.Equal(t, "worker process failed (exit 9): process terminated", err.Error())
	require.ErrorIs(t, err, root)
	require.True(t, err.IsKernelSDKError())
}

func TestProcessError_StderrOnly(t *testing.T) {
	err := &ProcessError{
		ExitCode: 1,
		Stderr:   "Traceback (most recent call last)",
	}

	require.Equal(
		t,
		"worker process failed (exit 1): Traceback (most recent call last)",
		err.Error(),
	)
}

func TestWireDecodeError(t *testing.T) {
	root := errors.New("unexpected end of JSON input")
	err := &WireDecodeError{
		RawData: `{"type":"result","output":`,
		Err:     root,
	}

	require.Equal(t, "failed to decode reply from worker: unexpected end of JSON input", err.Error())
	require.ErrorIs(t, err, root)
	require.Equal(t, `{"type":"result","output":`, err.RawData)
}
