package venice

import (
	"encoding/json"
	"strings"
)

// Provenance tells how confidently tool arguments were recovered.
type Provenance int

const (
	// ProvenanceExact means the joined text was valid JSON.
	ProvenanceExact Provenance = iota
	// ProvenanceRecovered means only the suffix starting at the last '{' parsed.
	ProvenanceRecovered
	// ProvenanceUnparsed means the raw text is kept as a string.
	ProvenanceUnparsed
)

func (p Provenance) String() string {
	switch p {
	case ProvenanceExact:
		return "exact"
	case ProvenanceRecovered:
		return "recovered-substring"
	case ProvenanceUnparsed:
		return "unparsed"
	default:
		return "unknown"
	}
}

// ResolvedToolCall is a finalized tool call with parsed arguments.
type ResolvedToolCall struct {
	ID           string
	Name         string
	Arguments    any
	RawArguments string
	Provenance   Provenance
}

// RecoverArguments parses streamed tool arguments, falling back to the object
// that starts at the last '{' and finally to the raw string. It never fails.
//
// The last-brace fallback is a heuristic: with nested objects or several calls
// sharing one buffer it can return the wrong object.
func RecoverArguments(joined string) (any, Provenance) {
	var full any
	if err := json.Unmarshal([]byte(joined), &full); err == nil {
		return full, ProvenanceExact
	}

	if i := strings.LastIndex(joined, "{"); i >= 0 {
		var suffix any
		if err := json.Unmarshal([]byte(joined[i:]), &suffix); err == nil {
			return suffix, ProvenanceRecovered
		}
	}

	return joined, ProvenanceUnparsed
}

// Resolve joins the call's fragments and recovers its arguments. A call that
// received no argument text resolves to an empty object.
func Resolve(call PendingToolCall) ResolvedToolCall {
	raw := call.Arguments()
	resolved := ResolvedToolCall{
		ID:           call.ID,
		Name:         call.Name,
		RawArguments: raw,
	}

	if raw == "" {
		resolved.Arguments = map[string]any{}
		resolved.Provenance = ProvenanceExact
		return resolved
	}

	resolved.Arguments, resolved.Provenance = RecoverArguments(raw)
	return resolved
}

// EncodedArguments returns the arguments to echo back in the assistant message.
// Exact and recovered arguments are re-encoded, so the provider only ever sees
// valid JSON. Unparsed or null arguments become an empty object.
func (c ResolvedToolCall) EncodedArguments() json.RawMessage {
	if c.Provenance == ProvenanceUnparsed || c.Arguments == nil {
		return json.RawMessage("{}")
	}
	data, err := json.Marshal(c.Arguments)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}
