// Package supervisor owns the worker process lifecycle.
//
// It models the backend as an explicit state machine (NotStarted, Starting,
// Ready, Degraded, Stopped) so the restart policy is testable in isolation
// from subprocess I/O. The worker starts lazily on the first Acquire, a
// degraded handle is replaced exactly once on the next Acquire, and Stop is
// idempotent and terminal.
package supervisor
