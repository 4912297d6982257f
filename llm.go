package venice

import "context"

// StreamFunc receives each piece of visible assistant text as it arrives.
type StreamFunc func(text string)

// Provider opens streaming chat completions against an OpenAI-compatible API.
type Provider interface {
	Stream(ctx context.Context, req Request) (EventStream, error)
}

// EventStream is a finite, pull-based sequence of stream events. It is consumed
// by a single reader and cannot be restarted.
type EventStream interface {
	// Next advances to the next event and reports whether there is one.
	Next() bool
	// Current returns the event Next advanced to.
	Current() Chunk
	// Err returns the error that stopped iteration, if any.
	Err() error
	Close() error
}

// Sampling selects the model and sampling parameters of one request.
type Sampling struct {
	Model       string
	Temperature *float64
	TopP        *float64
	MaxTokens   int64
}

type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "auto"
	ToolChoiceNone ToolChoice = "none"
)

// Request is one streaming completion request. Streaming is implied.
type Request struct {
	Sampling

	Messages   []Message
	Tools      []Tool
	ToolChoice ToolChoice
}

// Chunk is one incremental event of a streamed completion.
type Chunk struct {
	ID      string        `json:"id"`
	Choices []ChunkChoice `json:"choices"`
}

type ChunkChoice struct {
	Index int    `json:"index"`
	Delta *Delta `json:"delta"`

	// FinishReason is empty until the provider stops generating; "tool_calls"
	// signals that the accumulated tool calls are complete.
	FinishReason string `json:"finish_reason"`
}

const FinishReasonToolCalls = "tool_calls"

type Delta struct {
	Content   string          `json:"content,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ToolCallDelta is one fragment of a tool call. ID and Type arrive at most once
// per index; Name and Arguments are suffixes to append.
type ToolCallDelta struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Type      string `json:"type,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// Float returns a pointer to v, for the optional Sampling fields.
func Float(v float64) *float64 {
	return &v
}
