package pykernel

import (
	"log/slog"
	"time"

	"github.com/wagiedev/pykernel-sdk-go/internal/config"
)

// Option configures a session using the functional options pattern.
type Option func(*config.Options)

// applyOptions applies functional options to a fresh config.Options.
func applyOptions(opts []Option) *config.Options {
	options := &config.Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *config.Options) {
		o.Logger = logger
	}
}

// WithPythonPath sets the explicit path to the Python interpreter.
// If not set, python3 is searched in PATH and common locations.
func WithPythonPath(path string) Option {
	return func(o *config.Options) {
		o.PythonPath = path
	}
}

// WithCwd sets the initial working directory for the worker process.
func WithCwd(cwd string) Option {
	return func(o *config.Options) {
		o.Cwd = cwd
	}
}

// WithEnv provides additional environment variables for the worker process.
func WithEnv(env map[string]string) Option {
	return func(o *config.Options) {
		o.Env = env
	}
}

// WithStartupTimeout bounds worker startup including the ready handshake.
// Default is 3 seconds.
func WithStartupTimeout(d time.Duration) Option {
	return func(o *config.Options) {
		o.StartupTimeout = d
	}
}

// WithDefaultTimeout sets the execution timeout applied to requests that do
// not carry their own. Default is 30 seconds.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *config.Options) {
		o.DefaultTimeout = d
	}
}

// WithStderr sets a callback receiving each line of the worker's stderr.
func WithStderr(callback func(string)) Option {
	return func(o *config.Options) {
		o.Stderr = callback
	}
}

// WithTransport injects a custom transport, replacing the default subprocess
// worker. Intended for tests and alternative backends.
func WithTransport(t Transport) Option {
	return func(o *config.Options) {
		o.Transport = t
	}
}
