package stream

import (
	"strings"

	"github.com/bytedance/sonic"
)

// Kind is the discriminator carried by every stream record.
type Kind string

// Record kinds the assistant emits. All three carry appendable text.
const (
	KindThought  Kind = "thought_token"  // Intermediate reasoning.
	KindResponse Kind = "response_token" // Final answer text.
	KindAction   Kind = "action_token"   // Text describing an action taken.
)

// Record is one accepted event from the stream.
type Record struct {
	Kind    Kind
	Content string
}

// wireRecord is a single NDJSON line. The server names the discriminator
// "type"; "kind" is accepted too.
type wireRecord struct {
	Kind    string `json:"kind"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// chatRequest is the request body sent to the chat endpoint.
type chatRequest struct {
	Message string `json:"message"`
}

// ParseKind maps a wire discriminator to a known Kind. The short forms
// "thought", "response" and "action" are accepted as aliases.
func ParseKind(s string) (Kind, bool) {
	switch strings.TrimSuffix(strings.TrimSpace(s), "_token") {
	case "thought":
		return KindThought, true
	case "response":
		return KindResponse, true
	case "action":
		return KindAction, true
	}
	return "", false
}

// parseLine decodes one trimmed, non-empty line. ok is false for records
// whose kind is not recognized.
func parseLine(line string) (rec Record, ok bool, err error) {
	var w wireRecord
	if err := sonic.UnmarshalString(line, &w); err != nil {
		return Record{}, false, &DecodeError{Line: line, Err: err}
	}

	disc := w.Kind
	if disc == "" {
		disc = w.Type
	}
	kind, ok := ParseKind(disc)
	if !ok {
		return Record{}, false, nil
	}
	return Record{Kind: kind, Content: w.Content}, true, nil
}
