package errors

import (
	"errors"
	"fmt"
)

// KernelSDKError is the base interface for all SDK errors.
type KernelSDKError interface {
	error
	IsKernelSDKError() bool
}

// Compile-time verification that all error types implement KernelSDKError.
var (
	_ KernelSDKError = (*PythonNotFoundError)(nil)
	_ KernelSDKError = (*ConnectionError)(nil)
	_ KernelSDKError = (*ProcessError)(nil)
	_ KernelSDKError = (*WireDecodeError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrSessionClosed indicates the session has been closed and cannot be reused.
	ErrSessionClosed = errors.New("session closed: sessions are single-use, create a new one with NewSession()")

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrStdinClosed indicates stdin was closed due to context cancellation.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrStartupTimeout indicates the worker did not become ready within the startup budget.
	ErrStartupTimeout = errors.New("worker startup timeout")

	// ErrSupervisorStopped indicates the supervisor has been stopped.
	ErrSupervisorStopped = errors.New("supervisor stopped")
)

// PythonNotFoundError indicates no usable Python interpreter was found.
type PythonNotFoundError struct {
	SearchedPaths []string
}

func (e *PythonNotFoundError) Error() string {
	return fmt.Sprintf("python interpreter not found in: %v", e.SearchedPaths)
}

// IsKernelSDKError implements KernelSDKError.
func (e *PythonNotFoundError) IsKernelSDKError() bool { return true }

// ConnectionError indicates failure to launch or connect to the worker.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to worker: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsKernelSDKError implements KernelSDKError.
func (e *ConnectionError) IsKernelSDKError() bool { return true }

// ProcessError indicates the worker process exited unexpectedly.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("worker process failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("worker process failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsKernelSDKError implements KernelSDKError.
func (e *ProcessError) IsKernelSDKError() bool { return true }

// WireDecodeError indicates a worker reply line could not be parsed.
// This error preserves the raw line that failed to parse.
type WireDecodeError struct {
	RawData string
	Err     error
}

func (e *WireDecodeError) Error() string {
	return fmt.Sprintf("failed to decode reply from worker: %v", e.Err)
}

func (e *WireDecodeError) Unwrap() error {
	return e.Err
}

// IsKernelSDKError implements KernelSDKError.
func (e *WireDecodeError) IsKernelSDKError() bool { return true }
