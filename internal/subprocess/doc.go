// Package subprocess implements the default worker transport.
//
// WorkerTransport spawns the embedded Python worker as a child process and
// exchanges line-delimited JSON messages with it over stdin/stdout. Stderr
// is captured for crash diagnostics and optionally streamed to a callback.
package subprocess
