package venice

import "encoding/json"

// Part is one piece of a Message. The set of parts is closed: TextPart,
// ToolCallPart and ToolResultPart.
type Part interface {
	isPart()
}

// TextPart is visible text.
type TextPart struct {
	Text string `json:"text"`
}

// ToolCallPart is a tool invocation requested by the assistant. Input is always
// valid JSON; Raw is the argument text as it was streamed.
type ToolCallPart struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"arguments"`
	Raw   string          `json:"raw,omitempty"`
}

// ToolResultPart answers the ToolCallPart with the same ID. Result is sent to
// the provider whether or not the call failed; Error is kept for the caller.
type ToolResultPart struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Result     string `json:"result"`
	Error      error  `json:"-"`
}

func (TextPart) isPart()       {}
func (ToolCallPart) isPart()   {}
func (ToolResultPart) isPart() {}
