// Package config provides configuration types for the pykernel SDK.
package config

import (
	"log/slog"
	"time"
)

const (
	// DefaultStartupTimeout bounds the first start of the worker process.
	// The worker is typically ready well under a second; 3s is a generous
	// upper bound covering cold interpreter startup.
	DefaultStartupTimeout = 3 * time.Second

	// DefaultExecuteTimeout bounds a single code execution when the request
	// does not carry its own timeout.
	DefaultExecuteTimeout = 30 * time.Second
)

// Options holds configuration for a session.
//
// Construct via the functional options in the root package; a zero Options
// is valid and uses the defaults above.
type Options struct {
	// Logger receives debug, info, warn, and error messages.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// PythonPath is an explicit interpreter path that skips PATH search.
	PythonPath string

	// Cwd is the initial working directory for the worker process.
	Cwd string

	// Env provides additional environment variables for the worker process.
	Env map[string]string

	// StartupTimeout bounds worker startup including the ready handshake.
	StartupTimeout time.Duration

	// DefaultTimeout applies to requests with a zero Timeout field.
	DefaultTimeout time.Duration

	// Stderr, if set, receives each line of the worker's stderr output.
	Stderr func(string)

	// Transport overrides the default subprocess transport. Used by tests
	// to inject fakes.
	Transport Transport
}

// EffectiveStartupTimeout returns the configured startup timeout or the default.
func (o *Options) EffectiveStartupTimeout() time.Duration {
	if o != nil && o.StartupTimeout > 0 {
		return o.StartupTimeout
	}

	return DefaultStartupTimeout
}

// EffectiveDefaultTimeout returns the configured execute timeout or the default.
func (o *Options) EffectiveDefaultTimeout() time.Duration {
	if o != nil && o.DefaultTimeout > 0 {
		return o.DefaultTimeout
	}

	return DefaultExecuteTimeout
}
