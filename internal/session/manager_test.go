package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/pykernel-sdk-go/internal/config"
	"github.com/wagiedev/pykernel-sdk-go/internal/errors"
	"github.com/wagiedev/pykernel-sdk-go/internal/protocol"
	"github.com/wagiedev/pykernel-sdk-go/internal/supervisor"
)

// scriptedWorker is a fake transport that behaves like a tiny stateful
// interpreter: assignments are remembered until the next Start, and a few
// magic code strings trigger failure modes.
type scriptedWorker struct {
	mu         sync.Mutex
	starts     int
	ready      bool
	failStart  error
	vars       map[string]bool
	inFlight   int
	overlapped bool
	replyDelay time.Duration

	messages chan map[string]any
	errs     chan error
}

var _ config.Transport = (*scriptedWorker)(nil)

func (w *scriptedWorker) Start(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.starts++

	if w.failStart != nil {
		return w.failStart
	}

	// Fresh interpreter: all prior state is gone.
	w.vars = make(map[string]bool)
	w.messages = make(chan map[string]any, 16)
	w.errs = make(chan error, 4)
	w.ready = true

	return nil
}

func (w *scriptedWorker) ReadMessages(_ context.Context) (<-chan map[string]any, <-chan error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.messages <- map[string]any{"type": "ready"}

	return w.messages, w.errs
}

func (w *scriptedWorker) SendMessage(_ context.Context, data []byte) error {
	var req protocol.ExecuteMessage
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}

	w.mu.Lock()

	if w.inFlight > 0 {
		w.overlapped = true
	}

	w.inFlight++
	messages := w.messages
	errs := w.errs
	delay := w.replyDelay
	w.mu.Unlock()

	deliver := func(reply map[string]any, procErr error) {
		if delay > 0 {
			time.Sleep(delay)
		}

		w.mu.Lock()
		w.inFlight--
		w.mu.Unlock()

		if procErr != nil {
			errs <- procErr

			return
		}

		if reply != nil {
			messages <- reply
		}
	}

	reply, procErr := w.respond(req)

	if delay > 0 {
		go deliver(reply, procErr)
	} else {
		deliver(reply, procErr)
	}

	return nil
}

// respond maps magic code strings to worker behavior. A nil reply with a nil
// error means the worker never answers (timeout path).
func (w *scriptedWorker) respond(req protocol.ExecuteMessage) (map[string]any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	result := func(output, value string) map[string]any {
		return map[string]any{
			"type":       "result",
			"request_id": req.RequestID,
			"output":     output,
			"value":      value,
		}
	}
	exception := func(message string) map[string]any {
		return map[string]any{
			"type":       "error",
			"request_id": req.RequestID,
			"error_kind": "exception",
			"message":    message,
			"traceback":  []any{"Traceback (most recent call last):", message},
		}
	}

	switch req.Code {
	case "x = 1", "y = 2":
		w.vars[req.Code[:1]] = true

		return result("", ""), nil

	case "print(x)":
		if !w.vars["x"] {
			return exception("NameError: name 'x' is not defined"), nil
		}

		return result("1\n", ""), nil

	case "1/0":
		return exception("ZeroDivisionError: division by zero"), nil

	case "sleep":
		return nil, nil

	case "die":
		w.ready = false

		return nil, &errors.ProcessError{ExitCode: 137, Stderr: "killed"}

	case "wrongid":
		return map[string]any{
			"type":       "result",
			"request_id": "req_999_bogus",
			"output":     "",
		}, nil

	case "garbage":
		return map[string]any{"type": "surprise"}, nil

	case "protofault":
		return map[string]any{
			"type":       "error",
			"request_id": req.RequestID,
			"error_kind": "protocol",
			"message":    "bad request",
		}, nil

	default:
		return result("", fmt.Sprintf("%q", req.Code)), nil
	}
}

func (w *scriptedWorker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.ready = false

	return nil
}

func (w *scriptedWorker) IsReady() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.ready
}

func (w *scriptedWorker) startCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.starts
}

func newTestManager(w *scriptedWorker) *Manager {
	return New(slog.Default(), &config.Options{
		Transport:      w,
		StartupTimeout: 500 * time.Millisecond,
		DefaultTimeout: time.Second,
	})
}

func exec(t *testing.T, m *Manager, code string) *protocol.ExecutionResult {
	t.Helper()

	result, err := m.Execute(context.Background(), protocol.ExecutionRequest{Code: code})
	require.NoError(t, err)
	require.NotNil(t, result)

	return result
}

func TestManager_StatePersistsAcrossCalls(t *testing.T) {
	worker := &scriptedWorker{}
	manager := newTestManager(worker)

	defer manager.Close()

	first := exec(t, manager, "x = 1")
	require.True(t, first.Success())
	require.Equal(t, "(no output)", first.Output)

	second := exec(t, manager, "print(x)")
	require.True(t, second.Success())
	require.Equal(t, "1", second.Output)

	require.Equal(t, 1, worker.startCount(), "both calls share one worker")
}

func TestManager_ColdStartCompletesWithinBudget(t *testing.T) {
	worker := &scriptedWorker{}
	manager := newTestManager(worker)

	defer manager.Close()

	require.Equal(t, supervisor.StateNotStarted, manager.SupervisorState(),
		"worker must not start before the first call")

	start := time.Now()
	result := exec(t, manager, "x = 1")

	require.True(t, result.Success())
	require.Less(t, time.Since(start), 500*time.Millisecond)
	require.Equal(t, supervisor.StateReady, manager.SupervisorState())
}

func TestManager_ExecutionErrorPreservesState(t *testing.T) {
	worker := &scriptedWorker{}
	manager := newTestManager(worker)

	defer manager.Close()

	exec(t, manager, "x = 1")

	failed := exec(t, manager, "1/0")
	require.False(t, failed.Success())
	require.Equal(t, protocol.FailureExecutionError, failed.Err.Kind)
	require.Contains(t, failed.Err.Message, "division by zero")

	// The worker was not torn down and state is intact.
	require.Equal(t, supervisor.StateReady, manager.SupervisorState())

	after := exec(t, manager, "print(x)")
	require.True(t, after.Success())
	require.Equal(t, "1", after.Output)
	require.Equal(t, 1, worker.startCount())
}

func TestManager_TimeoutDegradesAndRestartsOnce(t *testing.T) {
	worker := &scriptedWorker{}
	manager := newTestManager(worker)

	defer manager.Close()

	result, err := manager.Execute(context.Background(), protocol.ExecutionRequest{
		Code:    "sleep",
		Timeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	require.False(t, result.Success())
	require.Equal(t, protocol.FailureTimeout, result.Err.Kind)
	require.Equal(t, supervisor.StateDegraded, manager.SupervisorState())

	// The following request restarts the backend exactly once and succeeds.
	after := exec(t, manager, "x = 1")
	require.True(t, after.Success())
	require.Equal(t, 2, worker.startCount())
	require.Equal(t, supervisor.StateReady, manager.SupervisorState())
}

func TestManager_CrashSurfacesRestartAndLosesState(t *testing.T) {
	worker := &scriptedWorker{}
	manager := newTestManager(worker)

	defer manager.Close()

	exec(t, manager, "x = 1")

	// Worker killed externally mid-session.
	crashed := exec(t, manager, "die")
	require.False(t, crashed.Success())
	require.Equal(t, protocol.FailureBackendRestarted, crashed.Err.Kind)
	require.Contains(t, crashed.Err.Message, "lost",
		"caller must be told prior state is gone")

	// The call after runs against a fresh worker with no prior variables.
	after := exec(t, manager, "print(x)")
	require.False(t, after.Success())
	require.Equal(t, protocol.FailureExecutionError, after.Err.Kind)
	require.Contains(t, after.Err.Message, "NameError")
	require.Equal(t, 2, worker.startCount())

	redefined := exec(t, manager, "x = 1")
	require.True(t, redefined.Success())
}

func TestManager_BackendUnavailable(t *testing.T) {
	worker := &scriptedWorker{failStart: stderrors.New("no interpreter")}
	manager := newTestManager(worker)

	defer manager.Close()

	result := exec(t, manager, "x = 1")
	require.False(t, result.Success())
	require.Equal(t, protocol.FailureBackendUnavailable, result.Err.Kind)
	require.Contains(t, result.Err.Message, "no interpreter")
}

func TestManager_MismatchedReplyIsProtocolError(t *testing.T) {
	worker := &scriptedWorker{}
	manager := newTestManager(worker)

	defer manager.Close()

	result := exec(t, manager, "wrongid")
	require.False(t, result.Success())
	require.Equal(t, protocol.FailureProtocolError, result.Err.Kind)
	require.Equal(t, supervisor.StateDegraded, manager.SupervisorState())
}

func TestManager_MalformedReplyIsProtocolError(t *testing.T) {
	worker := &scriptedWorker{}
	manager := newTestManager(worker)

	defer manager.Close()

	result := exec(t, manager, "garbage")
	require.False(t, result.Success())
	require.Equal(t, protocol.FailureProtocolError, result.Err.Kind)
}

func TestManager_WorkerProtocolFaultIsProtocolError(t *testing.T) {
	worker := &scriptedWorker{}
	manager := newTestManager(worker)

	defer manager.Close()

	result := exec(t, manager, "protofault")
	require.False(t, result.Success())
	require.Equal(t, protocol.FailureProtocolError, result.Err.Kind)
	require.Equal(t, supervisor.StateDegraded, manager.SupervisorState())
}

func TestManager_ConcurrentCallsAreSerialized(t *testing.T) {
	worker := &scriptedWorker{replyDelay: 5 * time.Millisecond}
	manager := newTestManager(worker)

	defer manager.Close()

	const callers = 8

	results := make([]*protocol.ExecutionResult, callers)
	execErrs := make([]error, callers)

	var wg sync.WaitGroup

	for i := range callers {
		wg.Go(func() {
			results[i], execErrs[i] = manager.Execute(
				context.Background(),
				protocol.ExecutionRequest{Code: fmt.Sprintf("call %d", i)},
			)
		})
	}

	wg.Wait()

	for i := range callers {
		require.NoError(t, execErrs[i])
		require.True(t, results[i].Success())
	}

	worker.mu.Lock()
	overlapped := worker.overlapped
	worker.mu.Unlock()

	require.False(t, overlapped, "no two calls may overlap on the wire")
	require.Equal(t, 1, worker.startCount())
}

func TestManager_ContextCancellationUnblocksCaller(t *testing.T) {
	worker := &scriptedWorker{}
	manager := newTestManager(worker)

	defer manager.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := manager.Execute(ctx, protocol.ExecutionRequest{Code: "sleep"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Abandoning mid-exchange marks the handle suspect.
	require.Equal(t, supervisor.StateDegraded, manager.SupervisorState())
}

func TestManager_CloseIsIdempotentAndRejectsFurtherCalls(t *testing.T) {
	worker := &scriptedWorker{}
	manager := newTestManager(worker)

	exec(t, manager, "x = 1")

	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())

	_, err := manager.Execute(context.Background(), protocol.ExecutionRequest{Code: "x = 1"})
	require.ErrorIs(t, err, errors.ErrSessionClosed)
	require.Equal(t, supervisor.StateStopped, manager.SupervisorState())
}
