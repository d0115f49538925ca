package pykernel

import (
	"context"

	"github.com/wagiedev/pykernel-sdk-go/internal/session"
)

// sessionWrapper wraps the internal manager to adapt it to the public interface.
type sessionWrapper struct {
	impl *session.Manager
}

// Compile-time check that *sessionWrapper implements the Session interface.
var _ Session = (*sessionWrapper)(nil)

// newSessionImpl creates the internal session implementation.
func newSessionImpl(opts []Option) Session {
	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	return &sessionWrapper{impl: session.New(log, options)}
}

// Execute runs one code fragment against the persistent worker.
func (s *sessionWrapper) Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	return s.impl.Execute(ctx, req)
}

// ExecuteCode is shorthand for Execute with only a code string.
func (s *sessionWrapper) ExecuteCode(ctx context.Context, code string) (*ExecutionResult, error) {
	return s.impl.Execute(ctx, ExecutionRequest{Code: code})
}

// Close terminates the worker process and releases resources.
func (s *sessionWrapper) Close() error {
	return s.impl.Close()
}
