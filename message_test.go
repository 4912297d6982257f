package venice

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToolCallMessage(t *testing.T) {
	calls := []ResolvedToolCall{
		Resolve(PendingToolCall{ID: "call_1", Name: "get_user_info", fragments: []string{`{"name":"Jean Dupont"}`, `{"name":"Jean Dupont"}`}}),
		Resolve(PendingToolCall{ID: "call_2", Name: "get_user_info", fragments: []string{`Jean`}}),
	}
	require.Equal(t, ProvenanceRecovered, calls[0].Provenance)
	require.Equal(t, ProvenanceUnparsed, calls[1].Provenance)

	msg := NewToolCallMessage("", calls)
	assert.Equal(t, RoleAssistant, msg.Role)
	assert.Empty(t, msg.Text())

	parts := msg.ToolCalls()
	require.Len(t, parts, 2)
	assert.JSONEq(t, `{"name":"Jean Dupont"}`, string(parts[0].Input))
	assert.Equal(t, `{"name":"Jean Dupont"}{"name":"Jean Dupont"}`, parts[0].Raw)
	assert.JSONEq(t, `{}`, string(parts[1].Input))
	assert.Equal(t, "Jean", parts[1].Raw)

	_, err := json.Marshal(msg)
	assert.NoError(t, err)
}

func TestNewToolCallMessage_Content(t *testing.T) {
	msg := NewToolCallMessage("Let me check.", []ResolvedToolCall{{ID: "c", Name: "n", Arguments: map[string]any{}}})

	require.Len(t, msg.Parts, 2)
	assert.Equal(t, "Let me check.", msg.Text())
	assert.Len(t, msg.ToolCalls(), 1)
}
