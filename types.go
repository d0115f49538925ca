package pykernel

import (
	"github.com/wagiedev/pykernel-sdk-go/internal/config"
	"github.com/wagiedev/pykernel-sdk-go/internal/protocol"
)

// Re-export core types from internal packages.

// ExecutionRequest is an immutable request to run one code fragment.
type ExecutionRequest = protocol.ExecutionRequest

// ExecutionResult is the normalized envelope returned for every request.
// A nil Err means success.
type ExecutionResult = protocol.ExecutionResult

// FailureKind classifies an execution failure.
type FailureKind = protocol.FailureKind

// FailureError carries the kind and message of a failed execution.
type FailureError = protocol.FailureError

// Artifact is a rich (non-text) output descriptor, e.g. an inline PNG.
type Artifact = protocol.Artifact

// Failure kinds surfaced in ExecutionResult.Err.
const (
	// FailureBackendUnavailable means the worker could not be started.
	FailureBackendUnavailable = protocol.FailureBackendUnavailable

	// FailureTimeout means no reply arrived within the request deadline.
	FailureTimeout = protocol.FailureTimeout

	// FailureProtocolError means the worker sent an uninterpretable reply.
	FailureProtocolError = protocol.FailureProtocolError

	// FailureExecutionError means the executed code itself raised.
	FailureExecutionError = protocol.FailureExecutionError

	// FailureBackendRestarted means the worker crashed during this request
	// and prior interpreter state was lost.
	FailureBackendRestarted = protocol.FailureBackendRestarted
)

// Transport defines the interface for worker communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods (e.g., remote workers).
//
// The default implementation spawns the embedded Python worker as a
// subprocess. Custom transports can be injected via WithTransport.
type Transport = config.Transport
