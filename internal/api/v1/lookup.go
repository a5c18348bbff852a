package v1

import (
	"encoding/json"
	"errors"
	"fmt"
)

// LookupRequest is the flat request shape: a state code plus a bucket
// identifier such as "stateBucket1" or "otherNamesBucket2".
//
// It is the normalized form every other request shape reduces to before the
// lookup service sees it.
type LookupRequest struct {
	// State is the two-letter state code the buckets were published under.
	// Matching is exact; unknown states resolve to an empty name list.
	State string `json:"state"`

	// Bucket is the bucket identifier. The family prefix is validated
	// before the ordinal, and ordinals are 1-based.
	Bucket string `json:"bucket"`
}

// Validate ensures both lookup parameters are present.
func (r *LookupRequest) Validate() error {
	if r.State == "" || r.Bucket == "" {
		return errors.New("Missing required parameters: state and bucket")
	}
	return nil
}

// LookupResponse is the success body for a bucket lookup.
// Names is never null; an unknown state or an absent bucket yields [].
type LookupResponse struct {
	Names []string `json:"names"`
	Count int      `json:"count"`
}

// ToolCallRequest is the assistant tool-call envelope. Voice-agent platforms
// deliver lookup parameters in one of two places:
//
//   - inline, under "args"
//   - JSON-encoded, inside the "arguments" field of a transcript tool call
//
// Inline args win when both are present.
type ToolCallRequest struct {
	Name string         `json:"name,omitempty"`
	Args *LookupRequest `json:"args,omitempty"`
	Call *ToolCall      `json:"call,omitempty"`
}

// ToolCall carries the transcript portion of a tool-call envelope.
type ToolCall struct {
	Transcript []TranscriptEntry `json:"transcript_with_tool_calls"`
}

// TranscriptEntry is one tool invocation in the call transcript. Arguments
// holds a JSON-encoded LookupRequest.
type TranscriptEntry struct {
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Arguments  string `json:"arguments,omitempty"`
}

// ErrUnrecognizedShape is returned when a request body matches neither the
// inline-args shape nor the call-transcript shape.
var ErrUnrecognizedShape = errors.New("unrecognized request shape")

// Lookup normalizes the envelope to the flat request shape.
//
// A transcript without any arguments yields an empty LookupRequest; the
// missing parameters are then reported by Validate, matching the flat shape's
// behavior.
func (r *ToolCallRequest) Lookup() (*LookupRequest, error) {
	if r.Args != nil {
		req := *r.Args
		return &req, nil
	}

	if r.Call != nil {
		for _, entry := range r.Call.Transcript {
			if entry.Arguments == "" {
				continue
			}

			var req LookupRequest
			if err := json.Unmarshal([]byte(entry.Arguments), &req); err != nil {
				return nil, fmt.Errorf("%w: tool call arguments are not valid JSON: %v", ErrUnrecognizedShape, err)
			}
			return &req, nil
		}
		return &LookupRequest{}, nil
	}

	return nil, ErrUnrecognizedShape
}

// DecodeToolCallBody parses a tool-call request body. Some gateways deliver
// the body JSON-encoded a second time (a JSON string containing JSON), so a
// top-level string is unwrapped before decoding the envelope.
func DecodeToolCallBody(data []byte) (*ToolCallRequest, error) {
	var nested string
	if err := json.Unmarshal(data, &nested); err == nil {
		data = []byte(nested)
	}

	var req ToolCallRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode tool call body: %w", err)
	}
	return &req, nil
}
