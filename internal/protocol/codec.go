package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Message type tags used on the wire.
const (
	msgExecute = "execute"
	msgResult  = "result"
	msgError   = "error"
	msgReady   = "ready"
)

// errorKindException marks an error reply raised by the executed code itself,
// as opposed to a protocol-level fault inside the worker.
const errorKindException = "exception"

// ExecuteMessage is the wire form of an execution request.
//
// Wire format:
//
//	{
//	  "type": "execute",
//	  "request_id": "req_1_01JD...",
//	  "code": "x = 1\nprint(x)",
//	  "cwd": "/tmp"
//	}
type ExecuteMessage struct {
	// Type is always "execute"
	Type string `json:"type"`

	// RequestID uniquely identifies this request for reply correlation
	RequestID string `json:"request_id"` //nolint:tagliatelle // worker protocol uses snake_case

	// Code is the Python source to execute
	Code string `json:"code"`

	// Cwd optionally changes the worker's working directory before execution
	Cwd string `json:"cwd,omitempty"`
}

// NewRequestID creates a unique request ID combining a per-session sequence
// number with a ULID.
func NewRequestID(seq uint64) string {
	return fmt.Sprintf("req_%d_%s", seq, ulid.Make().String())
}

// EncodeExecute marshals an execution request into a single wire frame.
//
// JSON marshalling guarantees embedded newlines and quotes in the code reach
// the worker as one logical unit rather than splitting the frame.
func EncodeExecute(requestID, code, cwd string) ([]byte, error) {
	msg := &ExecuteMessage{
		Type:      msgExecute,
		RequestID: requestID,
		Code:      code,
		Cwd:       cwd,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal execute request: %w", err)
	}

	return data, nil
}

// ReplyKind tags the shape of a decoded worker reply.
type ReplyKind int

const (
	// ReplyMalformed marks a reply that could not be decoded. The Message
	// field describes the problem.
	ReplyMalformed ReplyKind = iota

	// ReplyReady is the startup handshake emitted once by a fresh worker.
	ReplyReady

	// ReplyResult is a successful execution outcome.
	ReplyResult

	// ReplyError is a failed execution outcome (user exception or a
	// protocol fault reported by the worker).
	ReplyError
)

// Reply is the decoded, tagged form of a single worker message.
type Reply struct {
	Kind      ReplyKind
	RequestID string

	// Result fields (Kind == ReplyResult)
	Output    string
	Value     string
	Artifacts []Artifact

	// Error fields (Kind == ReplyError or ReplyMalformed)
	ErrorKind string
	Message   string
	Traceback []string
}

// IsException reports whether an error reply originated from the executed
// code rather than from the protocol layer.
func (r *Reply) IsException() bool {
	return r.Kind == ReplyError && r.ErrorKind == errorKindException
}

// ErrorText returns the human-readable error payload: the full traceback
// when present, otherwise the bare message.
func (r *Reply) ErrorText() string {
	if len(r.Traceback) > 0 {
		return strings.Join(r.Traceback, "\n")
	}

	return r.Message
}

// RenderOutput joins captured stdout and the final expression value into the
// single text payload returned across the tool boundary. Both empty renders
// as "(no output)".
func (r *Reply) RenderOutput() string {
	parts := make([]string, 0, 2)

	if out := strings.TrimRight(r.Output, "\n"); out != "" {
		parts = append(parts, out)
	}

	if r.Value != "" {
		parts = append(parts, r.Value)
	}

	if len(parts) == 0 {
		return "(no output)"
	}

	return strings.Join(parts, "\n")
}

// DecodeReply converts a raw worker message into a tagged Reply.
//
// Decoding is total: any unrecognized or incomplete shape yields a
// ReplyMalformed value instead of an error, so raw parse faults never cross
// the codec boundary.
func DecodeReply(msg map[string]any) *Reply {
	msgType, ok := msg["type"].(string)
	if !ok {
		return malformed(msg, "missing type field")
	}

	switch msgType {
	case msgReady:
		return &Reply{Kind: ReplyReady}

	case msgResult:
		requestID, ok := msg["request_id"].(string)
		if !ok {
			return malformed(msg, "result missing request_id")
		}

		output, _ := msg["output"].(string)
		value, _ := msg["value"].(string)

		return &Reply{
			Kind:      ReplyResult,
			RequestID: requestID,
			Output:    output,
			Value:     value,
			Artifacts: decodeArtifacts(msg["artifacts"]),
		}

	case msgError:
		requestID, ok := msg["request_id"].(string)
		if !ok {
			return malformed(msg, "error missing request_id")
		}

		errorKind, _ := msg["error_kind"].(string)
		message, _ := msg["message"].(string)

		var traceback []string

		if raw, ok := msg["traceback"].([]any); ok {
			traceback = make([]string, 0, len(raw))

			for _, line := range raw {
				if s, ok := line.(string); ok {
					traceback = append(traceback, s)
				}
			}
		}

		return &Reply{
			Kind:      ReplyError,
			RequestID: requestID,
			ErrorKind: errorKind,
			Message:   message,
			Traceback: traceback,
		}

	default:
		return malformed(msg, fmt.Sprintf("unknown reply type %q", msgType))
	}
}

// decodeArtifacts extracts rich output descriptors, skipping entries that
// do not match the expected shape.
func decodeArtifacts(raw any) []Artifact {
	items, ok := raw.([]any)
	if !ok || len(items) == 0 {
		return nil
	}

	artifacts := make([]Artifact, 0, len(items))

	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}

		mime, _ := entry["mime"].(string)
		data, _ := entry["data"].(string)

		if mime == "" || data == "" {
			continue
		}

		artifacts = append(artifacts, Artifact{MIME: mime, Data: data})
	}

	if len(artifacts) == 0 {
		return nil
	}

	return artifacts
}

func malformed(msg map[string]any, reason string) *Reply {
	raw, err := json.Marshal(msg)
	if err != nil {
		raw = []byte("<unencodable>")
	}

	return &Reply{
		Kind:    ReplyMalformed,
		Message: fmt.Sprintf("%s in reply %s", reason, raw),
	}
}
