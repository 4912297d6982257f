package venice

import "strings"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the transcript sent to the provider. Its Parts are
// interpreted according to Role: system and user messages carry TextParts,
// assistant messages carry an optional TextPart followed by ToolCallParts, and
// tool messages carry exactly one ToolResultPart.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

func NewTextMessage(role Role, text string) Message {
	return Message{
		Role:  role,
		Parts: []Part{TextPart{Text: text}},
	}
}

// NewToolCallMessage builds the assistant message that requests tool calls.
// The tool call parts are present even when content is empty.
func NewToolCallMessage(content string, calls []ResolvedToolCall) Message {
	parts := make([]Part, 0, len(calls)+1)
	if content != "" {
		parts = append(parts, TextPart{Text: content})
	}
	for _, call := range calls {
		parts = append(parts, ToolCallPart{
			ID:    call.ID,
			Name:  call.Name,
			Input: call.EncodedArguments(),
			Raw:   call.RawArguments,
		})
	}

	return Message{Role: RoleAssistant, Parts: parts}
}

// NewToolResultMessage wraps a dispatch outcome as a tool message.
func NewToolResultMessage(result ToolResult) Message {
	return Message{
		Role: RoleTool,
		Parts: []Part{ToolResultPart{
			ToolCallID: result.ToolCallID,
			Name:       result.Name,
			Result:     result.Content,
			Error:      result.Err,
		}},
	}
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var sb strings.Builder
	for _, part := range m.Parts {
		if p, ok := part.(TextPart); ok {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// ToolCalls returns the tool call parts of an assistant message.
func (m Message) ToolCalls() []ToolCallPart {
	var calls []ToolCallPart
	for _, part := range m.Parts {
		if p, ok := part.(ToolCallPart); ok {
			calls = append(calls, p)
		}
	}
	return calls
}
