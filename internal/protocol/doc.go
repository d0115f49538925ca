// Package protocol implements the wire codec for the worker process.
//
// Requests and replies are single JSON objects, one per line. The codec is
// the only place that inspects raw worker payloads: every reply is decoded
// into a closed, tagged Reply value, and malformed input decodes to a
// malformed Reply rather than surfacing a parse fault.
package protocol
