package pykernel

import "github.com/wagiedev/pykernel-sdk-go/internal/errors"

// Re-export error types from internal package

// PythonNotFoundError indicates no usable Python interpreter was found.
type PythonNotFoundError = errors.PythonNotFoundError

// ConnectionError indicates failure to launch or connect to the worker.
type ConnectionError = errors.ConnectionError

// ProcessError indicates the worker process exited unexpectedly.
type ProcessError = errors.ProcessError

// WireDecodeError indicates a worker reply line could not be parsed.
type WireDecodeError = errors.WireDecodeError

// KernelSDKError is the base interface for all SDK errors.
type KernelSDKError = errors.KernelSDKError

// Re-export sentinel errors from internal package.
var (
	// ErrSessionClosed indicates the session has been closed and cannot be reused.
	ErrSessionClosed = errors.ErrSessionClosed

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrStartupTimeout indicates the worker did not become ready within the startup budget.
	ErrStartupTimeout = errors.ErrStartupTimeout
)
