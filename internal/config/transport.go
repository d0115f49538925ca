package config

import "context"

// Transport defines the interface for worker process communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods (e.g., remote workers).
//
// The default implementation is WorkerTransport which spawns a subprocess.
// Custom transports can be injected via Options.Transport.
type Transport interface {
	// Start launches the worker and prepares it for communication.
	// This is called before any messages are sent or received.
	Start(ctx context.Context) error

	// ReadMessages returns channels for receiving messages and errors.
	// The message channel yields parsed JSON objects from the worker.
	// The error channel yields any errors that occur during reading.
	// Both channels are closed when reading completes or an error occurs.
	ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error)

	// SendMessage sends a JSON message to the worker.
	// The data should be a complete JSON message (newline is appended if missing).
	// This method must be safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error

	// Close terminates the transport and releases resources.
	// It's safe to call Close multiple times.
	Close() error

	// IsReady returns true if the transport is ready for communication.
	IsReady() bool
}

// TransportFactory produces the Transport for a worker start. It is called
// once per (re)start; it may return a fresh instance each time or a single
// restartable one, as long as Start resets any prior state.
type TransportFactory func() Transport
