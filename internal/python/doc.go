// Package python locates the Python interpreter and builds the worker
// process invocation.
//
// The worker is a small Python program embedded in this package. It reads
// line-delimited JSON execution requests on stdin, evaluates them in a
// single persistent namespace, and writes line-delimited JSON replies on
// stdout. Discovery searches an explicit configured path, then PATH, then
// common installation directories.
package python
