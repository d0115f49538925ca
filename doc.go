// Package pykernel provides a Go SDK for executing Python code against a
// persistent, stateful interpreter session.
//
// Variables, imports, and definitions made in one Execute call remain
// visible in later calls: the SDK owns a long-lived Python worker
// subprocess, starts it lazily on first use, restarts it after crashes, and
// converts every outcome into a normalized ExecutionResult.
//
// # Basic Usage
//
// For a one-shot execution, use the Run function:
//
//	ctx := context.Background()
//	result, err := pykernel.Run(ctx, "print(21 * 2)")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Output) // "42"
//
// For stateful, multi-call sessions, create a Session:
//
//	session := pykernel.NewSession()
//	defer session.Close()
//
//	session.ExecuteCode(ctx, "x = 10")
//	result, _ := session.ExecuteCode(ctx, "x * 2")
//	fmt.Println(result.Output) // "20"
//
// # Results
//
// Execute never returns a Go error for backend or user-code faults; those
// travel inside the ExecutionResult envelope:
//
//	result, err := session.ExecuteCode(ctx, "1/0")
//	if err != nil {
//	    // caller-side problem: closed session or cancelled context
//	}
//	if !result.Success() {
//	    switch result.Err.Kind {
//	    case pykernel.FailureExecutionError:
//	        // the code raised; interpreter state is preserved
//	    case pykernel.FailureTimeout:
//	        // no reply in time; the worker restarts on the next call
//	    case pykernel.FailureBackendRestarted:
//	        // the worker crashed; prior variables were lost
//	    }
//	}
//
// # Crash recovery
//
// If the worker process dies, the request that detects the crash returns
// FailureBackendRestarted with a message explaining that prior state was
// lost. The next request transparently runs against a fresh worker.
//
// # Concurrency
//
// Sessions are safe for concurrent use. Calls are serialized: at most one
// request is in flight against the worker at a time, and concurrent callers
// wait their turn in arrival order.
//
// # Configuration
//
// Options use the functional options pattern:
//
//	session := pykernel.NewSession(
//	    pykernel.WithLogger(slog.Default()),
//	    pykernel.WithCwd("/tmp/scratch"),
//	    pykernel.WithDefaultTimeout(10*time.Second),
//	)
package pykernel
