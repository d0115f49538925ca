package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wagiedev/pykernel-sdk-go/internal/config"
	"github.com/wagiedev/pykernel-sdk-go/internal/errors"
	"github.com/wagiedev/pykernel-sdk-go/internal/protocol"
)

// State is the lifecycle state of the worker backend.
type State int

const (
	// StateNotStarted means no worker has been launched yet.
	StateNotStarted State = iota

	// StateStarting means a worker launch is in progress.
	StateStarting

	// StateReady means a worker is up and has completed the handshake.
	StateReady

	// StateDegraded means the current handle is believed compromised and
	// will be replaced on the next Acquire.
	StateDegraded

	// StateStopped is terminal: the supervisor has been shut down.
	StateStopped
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Handle is a live, ready worker connection.
//
// The Messages and Errs channels are the single read side of the worker's
// stdout pump; callers must not read them concurrently. Generation
// identifies this worker instance so a stale caller cannot degrade a
// replacement handle.
type Handle struct {
	Transport  config.Transport
	Generation uint64
	Messages   <-chan map[string]any
	Errs       <-chan error
}

// Supervisor guarantees a usable worker handle is available when needed,
// hiding cold-start latency and crash recovery from callers.
type Supervisor struct {
	log            *slog.Logger
	factory        config.TransportFactory
	startupTimeout time.Duration

	// baseCtx outlives individual Acquire calls; the worker process and its
	// read pumps are bound to it, not to a caller's context.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu         sync.Mutex
	state      State
	handle     *Handle
	generation uint64

	// start dedupes concurrent launches: a second Acquire arriving while a
	// start is pending waits for the same worker instead of launching a
	// duplicate.
	start singleflight.Group
}

// New creates a supervisor. The factory is invoked once per worker launch
// and must return a fresh (or restartable) transport each time.
func New(log *slog.Logger, factory config.TransportFactory, startupTimeout time.Duration) *Supervisor {
	baseCtx, baseCancel := context.WithCancel(context.Background())

	return &Supervisor{
		log:            log.With("component", "supervisor"),
		factory:        factory,
		startupTimeout: startupTimeout,
		baseCtx:        baseCtx,
		baseCancel:     baseCancel,
		state:          StateNotStarted,
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Acquire blocks until a Ready handle exists or startup definitively fails.
// It never returns a handle known to be Degraded or Stopped.
//
// The first call launches the worker lazily; a call finding a degraded
// handle replaces it exactly once before returning. Startup failures are
// returned to the triggering caller and retried lazily on the next Acquire.
func (s *Supervisor) Acquire(ctx context.Context) (*Handle, error) {
	s.mu.Lock()

	switch s.state {
	case StateStopped:
		s.mu.Unlock()

		return nil, errors.ErrSupervisorStopped

	case StateReady:
		if s.handle != nil && s.handle.Transport.IsReady() {
			h := s.handle
			s.mu.Unlock()

			return h, nil
		}

		// Handle silently died; fall through to a fresh start.
		s.log.Warn("Ready handle is no longer usable, restarting worker")
		s.state = StateDegraded
	}

	s.mu.Unlock()

	// Deduplicate concurrent launches. Callers arriving while a start is in
	// flight queue here and share its outcome (FIFO queue-while-Starting).
	v, err, _ := s.start.Do("start", func() (any, error) {
		return s.launch(ctx)
	})
	if err != nil {
		return nil, err
	}

	return v.(*Handle), nil
}

// MarkDegraded flags the handle of the given generation as compromised.
// The worker process is killed immediately; the replacement is launched
// lazily by the next Acquire. Calls naming an older generation are ignored.
func (s *Supervisor) MarkDegraded(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady || s.handle == nil || s.handle.Generation != generation {
		return
	}

	s.log.Warn("Marking worker handle degraded", "generation", generation)
	s.state = StateDegraded

	if err := s.handle.Transport.Close(); err != nil {
		s.log.Debug("Error closing degraded transport", "error", err)
	}
}

// Stop terminates the worker and transitions to the terminal Stopped state.
// It is idempotent.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		return nil
	}

	s.log.Info("Stopping supervisor", "state", s.state.String())
	s.state = StateStopped

	s.baseCancel()

	if s.handle != nil {
		if err := s.handle.Transport.Close(); err != nil {
			return fmt.Errorf("close transport: %w", err)
		}

		s.handle = nil
	}

	return nil
}

// launch starts a fresh worker and waits for its ready handshake.
//
// Runs inside the singleflight group, so at most one launch is in progress.
// The caller's ctx bounds the wait for readiness; the worker itself is bound
// to the supervisor's base context so it survives the caller returning.
func (s *Supervisor) launch(ctx context.Context) (*Handle, error) {
	s.mu.Lock()

	if s.state == StateStopped {
		s.mu.Unlock()

		return nil, errors.ErrSupervisorStopped
	}

	// A racing caller may have completed a launch between our state check
	// and entering the singleflight group; reuse its handle.
	if s.state == StateReady && s.handle != nil && s.handle.Transport.IsReady() {
		h := s.handle
		s.mu.Unlock()

		return h, nil
	}

	old := s.handle
	s.handle = nil
	wasDegraded := s.state == StateDegraded
	s.state = StateStarting
	s.mu.Unlock()

	if old != nil {
		// Discard the stale handle before replacing it.
		_ = old.Transport.Close()
	}

	if wasDegraded {
		s.log.Info("Restarting worker after degraded handle")
	} else {
		s.log.Info("Launching worker")
	}

	transport := s.factory()

	if err := transport.Start(s.baseCtx); err != nil {
		s.failLaunch(transport)

		return nil, err
	}

	messages, errs := transport.ReadMessages(s.baseCtx)

	if err := s.awaitReady(ctx, messages, errs); err != nil {
		s.failLaunch(transport)

		return nil, err
	}

	s.mu.Lock()

	if s.state == StateStopped {
		s.mu.Unlock()

		_ = transport.Close()

		return nil, errors.ErrSupervisorStopped
	}

	s.generation++
	handle := &Handle{
		Transport:  transport,
		Generation: s.generation,
		Messages:   messages,
		Errs:       errs,
	}
	s.handle = handle
	s.state = StateReady
	s.mu.Unlock()

	s.log.Info("Worker ready", "generation", handle.Generation)

	return handle, nil
}

// awaitReady consumes the worker's output until the ready handshake arrives,
// bounded by the startup timeout.
func (s *Supervisor) awaitReady(
	ctx context.Context,
	messages <-chan map[string]any,
	errs <-chan error,
) error {
	timer := time.NewTimer(s.startupTimeout)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return &errors.ConnectionError{Err: fmt.Errorf("worker output closed before handshake")}
			}

			if protocol.DecodeReply(msg).Kind == protocol.ReplyReady {
				return nil
			}

			s.log.Debug("Ignoring pre-handshake message", "message", msg)

		case err, ok := <-errs:
			if !ok {
				// Error channel closed; wait for the message channel to
				// close too (it carries the definitive outcome).
				errs = nil

				continue
			}

			return &errors.ConnectionError{Err: err}

		case <-timer.C:
			s.log.Error("Worker startup timed out", "timeout", s.startupTimeout)

			return fmt.Errorf("%w after %s", errors.ErrStartupTimeout, s.startupTimeout)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// failLaunch rolls the state machine back so a later Acquire may retry.
func (s *Supervisor) failLaunch(transport config.Transport) {
	_ = transport.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStarting {
		s.state = StateNotStarted
	}
}
