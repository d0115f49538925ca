// Package session implements the execution session manager.
//
// A Manager serializes execution requests onto a single worker exchange at a
// time, enforces per-request timeouts, and converts every backend outcome
// (stdout, return value, artifacts, exception, crash, timeout) into the
// normalized ExecutionResult envelope. No raw transport fault crosses this
// boundary.
package session
