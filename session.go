package pykernel

import (
	"context"
)

// Session is a persistent, stateful Python execution context.
//
// A Session owns one worker process for its lifetime. The worker starts
// lazily on the first Execute call, so creating a Session is free when the
// capability is never used. Interpreter state (variables, imports,
// definitions) persists across calls until the session is closed or the
// worker crashes.
//
// Sessions are safe for concurrent use; requests are served one at a time
// in arrival order.
//
// Lifecycle: Sessions are single-use. After Close(), create a new session
// with NewSession().
//
// Example usage:
//
//	session := pykernel.NewSession(pykernel.WithLogger(slog.Default()))
//	defer session.Close()
//
//	result, err := session.ExecuteCode(ctx, "x = 1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err = session.ExecuteCode(ctx, "print(x)")
//	// result.Output == "1"
type Session interface {
	// Execute runs one code fragment against the persistent worker and
	// returns the normalized result. Backend and user-code faults travel
	// inside the ExecutionResult; the error return is reserved for a closed
	// session or a cancelled context.
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)

	// ExecuteCode is shorthand for Execute with only a code string, using
	// the session's default timeout and working directory.
	ExecuteCode(ctx context.Context, code string) (*ExecutionResult, error)

	// Close terminates the worker process and releases resources.
	// After Close(), the session cannot be reused. Safe to call multiple times.
	Close() error
}

// NewSession creates a new execution session.
//
// The worker process is not launched until the first Execute call.
func NewSession(opts ...Option) Session {
	return newSessionImpl(opts)
}
