package protocol

import (
	"fmt"
	"time"
)

// ExecutionRequest is an immutable request to run one code fragment.
type ExecutionRequest struct {
	// Code is the Python source to execute.
	Code string

	// Cwd optionally changes the worker's working directory before execution.
	Cwd string

	// Timeout bounds this execution. Zero uses the session default.
	Timeout time.Duration
}

// FailureKind classifies an execution failure.
type FailureKind string

const (
	// FailureBackendUnavailable means the worker could not be started.
	// The start is retried lazily on the next request.
	FailureBackendUnavailable FailureKind = "backend_unavailable"

	// FailureTimeout means no reply arrived within the request deadline.
	// The worker is presumed compromised and is restarted on the next request.
	FailureTimeout FailureKind = "timeout"

	// FailureProtocolError means the worker sent a reply the codec could not
	// interpret. The worker is restarted on the next request.
	FailureProtocolError FailureKind = "protocol_error"

	// FailureExecutionError means the executed code itself raised. The round
	// trip succeeded and interpreter state is preserved.
	FailureExecutionError FailureKind = "execution_error"

	// FailureBackendRestarted means the worker crashed during this request.
	// Interpreter state from earlier calls is lost; a fresh worker serves
	// the next request.
	FailureBackendRestarted FailureKind = "backend_restarted"
)

// Artifact is a rich (non-text) output descriptor, e.g. an inline PNG.
// Data is base64 for binary MIME types and raw text otherwise.
type Artifact struct {
	MIME string `json:"mime"`
	Data string `json:"data"`
}

// FailureError carries the kind and human-readable message of a failed
// execution. It implements error so callers can propagate it directly.
type FailureError struct {
	Kind    FailureKind
	Message string
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ExecutionResult is the normalized envelope returned for every request.
// Exactly one of the success fields (Output, Artifacts) or Err is meaningful:
// a nil Err means success.
type ExecutionResult struct {
	// Output is the text payload: captured stdout joined with the final
	// expression value, or "(no output)".
	Output string

	// Artifacts holds rich outputs produced by the execution, if any.
	Artifacts []Artifact

	// Err is non-nil when the request failed.
	Err *FailureError
}

// Success reports whether the execution completed without a failure.
func (r *ExecutionResult) Success() bool {
	return r.Err == nil
}

// NewSuccess builds a successful result.
func NewSuccess(output string, artifacts []Artifact) *ExecutionResult {
	return &ExecutionResult{Output: output, Artifacts: artifacts}
}

// NewFailure builds a failed result of the given kind.
func NewFailure(kind FailureKind, format string, args ...any) *ExecutionResult {
	return &ExecutionResult{
		Err: &FailureError{
			Kind:    kind,
			Message: fmt.Sprintf(format, args...),
		},
	}
}
