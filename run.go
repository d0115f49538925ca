package pykernel

import (
	"context"
	"fmt"
)

// Run executes a single code fragment in a throwaway session.
//
// A worker is started, the code runs, and the worker is torn down before
// returning. Use a Session when state needs to persist across calls; Run
// pays the worker startup cost on every invocation.
func Run(ctx context.Context, code string, opts ...Option) (*ExecutionResult, error) {
	var result *ExecutionResult

	err := WithSession(ctx, func(s Session) error {
		var execErr error

		result, execErr = s.ExecuteCode(ctx, code)

		return execErr
	}, opts...)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// WithSession manages session lifecycle with automatic cleanup.
//
// This helper creates a session with the provided options, executes the
// callback, and ensures cleanup via Close() when done.
//
// If the callback returns an error, it is returned to the caller.
// If Close() fails, a warning is logged but does not override the callback's error.
//
// Example usage:
//
//	err := pykernel.WithSession(ctx, func(s pykernel.Session) error {
//	    if _, err := s.ExecuteCode(ctx, "x = 41"); err != nil {
//	        return err
//	    }
//	    result, err := s.ExecuteCode(ctx, "x + 1")
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(result.Output)
//	    return nil
//	}, pykernel.WithLogger(log))
func WithSession(ctx context.Context, fn func(Session) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	session := NewSession(opts...)

	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			log.Warn("failed to close session", "error", closeErr)
		}
	}()

	if err := fn(session); err != nil {
		return fmt.Errorf("session callback: %w", err)
	}

	return nil
}
