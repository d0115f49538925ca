package pykernel

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoTransport is a minimal in-process worker: it answers every execute
// request with a result echoing the submitted code as output.
type echoTransport struct {
	mu       sync.Mutex
	starts   int
	closed   bool
	messages chan map[string]any
	errs     chan error
}

func newEchoTransport() *echoTransport {
	return &echoTransport{}
}

func (e *echoTransport) Start(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.starts++
	e.closed = false
	e.messages = make(chan map[string]any, 8)
	e.errs = make(chan error, 1)

	return nil
}

func (e *echoTransport) ReadMessages(_ context.Context) (<-chan map[string]any, <-chan error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.messages <- map[string]any{"type": "ready"}

	return e.messages, e.errs
}

func (e *echoTransport) SendMessage(_ context.Context, data []byte) error {
	var req struct {
		RequestID string `json:"request_id"`
		Code      string `json:"code"`
	}

	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.messages <- map[string]any{
		"type":       "result",
		"request_id": req.RequestID,
		"output":     "echo: " + req.Code,
	}

	return nil
}

func (e *echoTransport) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true

	return nil
}

func (e *echoTransport) IsReady() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.starts > 0 && !e.closed
}

func (e *echoTransport) startCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.starts
}

func (e *echoTransport) wasClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.closed
}

func TestNewSession(t *testing.T) {
	t.Run("worker starts lazily on first call", func(t *testing.T) {
		transport := newEchoTransport()
		session := NewSession(WithTransport(transport))

		defer session.Close()

		assert.Equal(t, 0, transport.startCount())

		result, err := session.ExecuteCode(context.Background(), "x = 1")
		require.NoError(t, err)
		assert.True(t, result.Success())
		assert.Equal(t, "echo: x = 1", result.Output)
		assert.Equal(t, 1, transport.startCount())
	})

	t.Run("calls share one worker", func(t *testing.T) {
		transport := newEchoTransport()
		session := NewSession(WithTransport(transport))

		defer session.Close()

		for _, code := range []string{"a = 1", "b = 2", "a + b"} {
			result, err := session.ExecuteCode(context.Background(), code)
			require.NoError(t, err)
			require.True(t, result.Success())
		}

		assert.Equal(t, 1, transport.startCount())
	})

	t.Run("execute honors the request struct", func(t *testing.T) {
		transport := newEchoTransport()
		session := NewSession(WithTransport(transport))

		defer session.Close()

		result, err := session.Execute(context.Background(), ExecutionRequest{
			Code:    "print('hi')",
			Timeout: time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, "echo: print('hi')", result.Output)
	})

	t.Run("close releases the worker and rejects further calls", func(t *testing.T) {
		transport := newEchoTransport()
		session := NewSession(WithTransport(transport))

		_, err := session.ExecuteCode(context.Background(), "x = 1")
		require.NoError(t, err)

		require.NoError(t, session.Close())
		assert.True(t, transport.wasClosed())

		_, err = session.ExecuteCode(context.Background(), "x")
		assert.ErrorIs(t, err, ErrSessionClosed)
	})
}

func TestRun(t *testing.T) {
	t.Run("executes and tears down", func(t *testing.T) {
		transport := newEchoTransport()

		result, err := Run(context.Background(), "1 + 1", WithTransport(transport))
		require.NoError(t, err)
		assert.Equal(t, "echo: 1 + 1", result.Output)
		assert.True(t, transport.wasClosed())
	})
}

func TestWithSession(t *testing.T) {
	t.Run("closes the session after the callback", func(t *testing.T) {
		transport := newEchoTransport()

		err := WithSession(context.Background(), func(s Session) error {
			result, err := s.ExecuteCode(context.Background(), "x = 1")
			if err != nil {
				return err
			}

			assert.True(t, result.Success())

			return nil
		}, WithTransport(transport))

		require.NoError(t, err)
		assert.True(t, transport.wasClosed())
	})

	t.Run("callback errors are wrapped and returned", func(t *testing.T) {
		sentinel := errors.New("boom")

		err := WithSession(context.Background(), func(Session) error {
			return sentinel
		}, WithTransport(newEchoTransport()))

		require.Error(t, err)
		assert.ErrorIs(t, err, sentinel)
		assert.True(t, strings.Contains(err.Error(), "session callback"))
	})

	t.Run("cancelled context short-circuits", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := WithSession(ctx, func(Session) error {
			called = true

			return nil
		}, WithTransport(newEchoTransport()))

		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}
