package session

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wagiedev/pykernel-sdk-go/internal/config"
	"github.com/wagiedev/pykernel-sdk-go/internal/errors"
	"github.com/wagiedev/pykernel-sdk-go/internal/protocol"
	"github.com/wagiedev/pykernel-sdk-go/internal/subprocess"
	"github.com/wagiedev/pykernel-sdk-go/internal/supervisor"
)

// Manager is the execution session manager. It composes the supervisor and
// the codec: it guarantees a Ready worker, serializes exchanges, enforces
// timeouts, and normalizes every outcome into an ExecutionResult.
type Manager struct {
	log     *slog.Logger
	options *config.Options
	sup     *supervisor.Supervisor

	// slot is the in-flight exchange slot. Capacity 1: a second Execute
	// arriving while one is outstanding waits its turn here rather than
	// interleaving with the worker.
	slot chan struct{}

	// seq numbers requests for ID generation and log correlation.
	seq atomic.Uint64

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a session manager. The worker is not launched until the first
// Execute call.
func New(log *slog.Logger, options *config.Options) *Manager {
	if options == nil {
		options = &config.Options{}
	}

	factory := func() config.Transport {
		if options.Transport != nil {
			return options.Transport
		}

		return subprocess.NewWorkerTransport(log, options)
	}

	return &Manager{
		log:     log.With("component", "session"),
		options: options,
		sup:     supervisor.New(log, factory, options.EffectiveStartupTimeout()),
		slot:    make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
}

// Execute runs one code fragment against the persistent worker.
//
// All backend and user-code faults travel inside the returned
// ExecutionResult; the error return is reserved for caller-side conditions
// (closed session, cancelled context).
func (m *Manager) Execute(ctx context.Context, req protocol.ExecutionRequest) (*protocol.ExecutionResult, error) {
	// Acquire the in-flight slot; waiters are released on cancellation and
	// session close rather than busy-polling.
	select {
	case m.slot <- struct{}{}:
	case <-m.closed:
		return nil, errors.ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	defer func() { <-m.slot }()

	// Close may have won the race while we waited for the slot.
	select {
	case <-m.closed:
		return nil, errors.ErrSessionClosed
	default:
	}

	handle, err := m.sup.Acquire(ctx)
	if err != nil {
		if stderrors.Is(err, errors.ErrSupervisorStopped) {
			return nil, errors.ErrSessionClosed
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		m.log.Error("Worker unavailable", "error", err)

		return protocol.NewFailure(protocol.FailureBackendUnavailable,
			"worker could not be started: %v", err), nil
	}

	requestID := protocol.NewRequestID(m.seq.Add(1))

	data, err := protocol.EncodeExecute(requestID, req.Code, req.Cwd)
	if err != nil {
		return protocol.NewFailure(protocol.FailureProtocolError,
			"encode request: %v", err), nil
	}

	m.log.Debug("Sending execute request", "request_id", requestID, "code_len", len(req.Code))

	if err := handle.Transport.SendMessage(ctx, data); err != nil {
		if ctx.Err() != nil {
			m.sup.MarkDegraded(handle.Generation)

			return nil, ctx.Err()
		}

		// A failed write means the worker died under us.
		return m.crashed(handle, requestID, err), nil
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = m.options.EffectiveDefaultTimeout()
	}

	return m.awaitReply(ctx, handle, requestID, timeout)
}

// awaitReply consumes worker output until this request's reply arrives, the
// timeout fires, or the exchange is abandoned.
func (m *Manager) awaitReply(
	ctx context.Context,
	handle *supervisor.Handle,
	requestID string,
	timeout time.Duration,
) (*protocol.ExecutionResult, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	messages := handle.Messages
	errs := handle.Errs

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return m.crashed(handle, requestID,
					stderrors.New("worker output closed mid-exchange")), nil
			}

			result, done := m.handleReply(handle, requestID, msg)
			if done {
				return result, nil
			}

		case err, ok := <-errs:
			if !ok {
				// The message channel carries the definitive outcome.
				errs = nil

				continue
			}

			if decodeErr, isDecode := stderrors.AsType[*errors.WireDecodeError](err); isDecode {
				m.sup.MarkDegraded(handle.Generation)
				m.log.Warn("Undecodable worker reply", "request_id", requestID, "raw", decodeErr.RawData)

				return protocol.NewFailure(protocol.FailureProtocolError,
					"malformed reply from worker: %v", err), nil
			}

			// Broken pipe, unexpected exit: the worker is gone.
			return m.crashed(handle, requestID, err), nil

		case <-timer.C:
			// The worker may still be mid-execution; the connection is
			// presumed compromised, so the next request forces a restart.
			m.sup.MarkDegraded(handle.Generation)
			m.log.Warn("Request timed out", "request_id", requestID, "timeout", timeout)

			return protocol.NewFailure(protocol.FailureTimeout,
				"no reply within %s; worker will be restarted on the next request", timeout), nil

		case <-ctx.Done():
			// Abandoning mid-exchange leaves the worker in an unknown spot.
			m.sup.MarkDegraded(handle.Generation)

			return nil, ctx.Err()

		case <-m.closed:
			return nil, errors.ErrSessionClosed
		}
	}
}

// handleReply decodes one worker message. done is false when the message is
// harmless noise (a stray handshake) and the exchange should keep waiting.
func (m *Manager) handleReply(
	handle *supervisor.Handle,
	requestID string,
	msg map[string]any,
) (*protocol.ExecutionResult, bool) {
	reply := protocol.DecodeReply(msg)

	switch reply.Kind {
	case protocol.ReplyReady:
		// Duplicate handshake; not an answer to anything.
		return nil, false

	case protocol.ReplyResult:
		if reply.RequestID != requestID {
			return m.mismatched(handle, requestID, reply.RequestID), true
		}

		m.log.Debug("Execution succeeded", "request_id", requestID)

		return protocol.NewSuccess(reply.RenderOutput(), reply.Artifacts), true

	case protocol.ReplyError:
		if reply.RequestID != requestID && reply.RequestID != "" {
			return m.mismatched(handle, requestID, reply.RequestID), true
		}

		if reply.IsException() {
			// The code failed but the round trip succeeded; interpreter
			// state is intact and no restart is needed.
			m.log.Debug("Execution raised", "request_id", requestID, "message", reply.Message)

			return protocol.NewFailure(protocol.FailureExecutionError, "%s", reply.ErrorText()), true
		}

		m.sup.MarkDegraded(handle.Generation)

		return protocol.NewFailure(protocol.FailureProtocolError,
			"worker reported a protocol fault: %s", reply.Message), true

	default:
		m.sup.MarkDegraded(handle.Generation)
		m.log.Warn("Malformed worker reply", "request_id", requestID, "reason", reply.Message)

		return protocol.NewFailure(protocol.FailureProtocolError, "%s", reply.Message), true
	}
}

// mismatched handles a reply correlated to some other request. The stream is
// out of sync, so the handle cannot be trusted.
func (m *Manager) mismatched(handle *supervisor.Handle, want, got string) *protocol.ExecutionResult {
	m.sup.MarkDegraded(handle.Generation)
	m.log.Warn("Reply for unexpected request", "want", want, "got", got)

	return protocol.NewFailure(protocol.FailureProtocolError,
		"reply correlated to request %q while %q was in flight", got, want)
}

// crashed records a worker death detected during this request. The caller
// is told that prior interpreter state was lost so it can redefine it; the
// next request acquires a fresh worker.
func (m *Manager) crashed(handle *supervisor.Handle, requestID string, cause error) *protocol.ExecutionResult {
	m.sup.MarkDegraded(handle.Generation)
	m.log.Error("Worker crashed mid-request", "request_id", requestID, "error", cause)

	return protocol.NewFailure(protocol.FailureBackendRestarted,
		"worker process died (%v); variables, imports, and definitions from "+
			"earlier calls were lost and a fresh worker will serve the next request", cause)
}

// SupervisorState exposes the backend lifecycle state, mainly for tests and
// diagnostics.
func (m *Manager) SupervisorState() supervisor.State {
	return m.sup.State()
}

// Close shuts the session down and releases the worker process. It is
// idempotent; blocked Execute calls are woken with ErrSessionClosed.
func (m *Manager) Close() error {
	var err error

	m.closeOnce.Do(func() {
		m.log.Info("Closing session")
		close(m.closed)

		err = m.sup.Stop()
	})

	return err
}
