package venice_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpoz/venice"
	"github.com/jpoz/venice/directory"
	"github.com/jpoz/venice/testutil"
)

func newDispatcher(t *testing.T) *venice.Dispatcher {
	t.Helper()

	c, err := directory.Default().Capability()
	require.NoError(t, err)
	d, err := venice.NewDispatcher(c)
	require.NoError(t, err)
	return d
}

func baseMessages() []venice.Message {
	return []venice.Message{
		venice.NewTextMessage(venice.RoleSystem, "You have access to get_user_info."),
		venice.NewTextMessage(venice.RoleUser, "Who is Jean Dupont?"),
	}
}

func roles(messages []venice.Message) []venice.Role {
	out := make([]venice.Role, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Role)
	}
	return out
}

func TestDriver_DirectAnswer(t *testing.T) {
	provider := testutil.NewScriptedProvider(testutil.Script{
		Chunks: testutil.TextStream("Paris is ", "the capital ", "of France."),
	})
	driver := venice.NewDriver(provider,
		venice.WithDispatcher(newDispatcher(t)),
		venice.WithToolPhase(venice.Sampling{Model: "llama-3.3-70b"}),
	)

	var streamed strings.Builder
	messages := baseMessages()
	ex, err := driver.Run(context.Background(), messages, func(text string) {
		streamed.WriteString(text)
	})
	require.NoError(t, err)

	assert.Equal(t, venice.StateDone, ex.State)
	assert.Equal(t, "Paris is the capital of France.", ex.Answer)
	assert.Equal(t, ex.Answer, streamed.String())
	assert.Empty(t, ex.Calls)

	require.Len(t, ex.Messages, len(messages)+1)
	last := ex.Messages[len(ex.Messages)-1]
	assert.Equal(t, venice.RoleAssistant, last.Role)
	assert.Equal(t, ex.Answer, last.Text())
	assert.Len(t, messages, 2, "caller's transcript is not modified")

	requests := provider.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, venice.ToolChoiceAuto, requests[0].ToolChoice)
	require.Len(t, requests[0].Tools, 1)
	assert.Equal(t, "get_user_info", requests[0].Tools[0].Name())
	assert.Equal(t, 1, provider.Closed())
}

func TestDriver_ToolRoundTrip(t *testing.T) {
	first := testutil.SplitArguments(0, "call_abc", "get_user_info", `{"name": "Jean Dupont"}`, 3)
	first = append(first, testutil.Finish(venice.FinishReasonToolCalls))

	provider := testutil.NewScriptedProvider(
		testutil.Script{Chunks: first},
		testutil.Script{Chunks: testutil.TextStream("Jean Dupont is 45 ", "and works at TechCorp.")},
	)
	driver := venice.NewDriver(provider,
		venice.WithDispatcher(newDispatcher(t)),
		venice.WithToolPhase(venice.Sampling{Model: "llama-3.3-70b", Temperature: venice.Float(0.3), MaxTokens: 500}),
		venice.WithFinalPhase(venice.Sampling{Model: "llama-3.2-3b", Temperature: venice.Float(0.5), MaxTokens: 500}),
	)

	var streamed strings.Builder
	ex, err := driver.Run(context.Background(), baseMessages(), func(text string) {
		streamed.WriteString(text)
	})
	require.NoError(t, err)

	assert.Equal(t, venice.StateDone, ex.State)
	assert.Equal(t, "Jean Dupont is 45 and works at TechCorp.", ex.Answer)
	assert.Equal(t, ex.Answer, streamed.String())

	assert.Equal(t, []venice.Role{
		venice.RoleSystem,
		venice.RoleUser,
		venice.RoleAssistant,
		venice.RoleTool,
		venice.RoleAssistant,
	}, roles(ex.Messages))

	calls := ex.Messages[2].ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_abc", calls[0].ID)
	assert.Equal(t, "get_user_info", calls[0].Name)
	assert.JSONEq(t, `{"name": "Jean Dupont"}`, string(calls[0].Input))

	require.Len(t, ex.Messages[3].Parts, 1)
	result, ok := ex.Messages[3].Parts[0].(venice.ToolResultPart)
	require.True(t, ok)
	assert.Equal(t, "call_abc", result.ToolCallID)
	assert.Equal(t, `{"age":45,"position":"Director Marketing","company":"TechCorp","city":"Paris"}`, result.Result)
	assert.NoError(t, result.Error)

	require.Len(t, ex.Calls, 1)
	assert.Equal(t, venice.ProvenanceExact, ex.Calls[0].Provenance)

	requests := provider.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, "llama-3.3-70b", requests[0].Model)
	assert.Equal(t, "llama-3.2-3b", requests[1].Model)
	assert.Empty(t, requests[1].Tools)
	assert.Empty(t, requests[1].ToolChoice)
	assert.Len(t, requests[1].Messages, 4)
	assert.Equal(t, 2, provider.Closed())
}

func TestDriver_ToolFailuresContinue(t *testing.T) {
	tests := []struct {
		name     string
		chunks   []venice.Chunk
		contains string
	}{
		{
			name: "unknown tool",
			chunks: []venice.Chunk{
				testutil.ToolCall(0, "call_1", "unknown_tool", `{}`),
				testutil.Finish(venice.FinishReasonToolCalls),
			},
			contains: "unknown tool",
		},
		{
			name: "unparsed arguments",
			chunks: []venice.Chunk{
				testutil.ToolCall(0, "call_1", "get_user_info", `not json`),
				testutil.Finish(venice.FinishReasonToolCalls),
			},
			contains: "invalid arguments",
		},
		{
			name: "missing name",
			chunks: []venice.Chunk{
				testutil.ToolCall(0, "call_1", "get_user_info", ""),
				testutil.Finish(venice.FinishReasonToolCalls),
			},
			contains: "invalid arguments",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := testutil.NewScriptedProvider(
				testutil.Script{Chunks: tt.chunks},
				testutil.Script{Chunks: testutil.TextStream("I could not find that.")},
			)
			driver := venice.NewDriver(provider,
				venice.WithDispatcher(newDispatcher(t)),
				venice.WithToolPhase(venice.Sampling{Model: "m"}),
			)

			ex, err := driver.Run(context.Background(), baseMessages(), nil)
			require.NoError(t, err)

			require.Len(t, ex.Results, 1)
			assert.Error(t, ex.Results[0].Err)
			assert.Contains(t, ex.Results[0].Content, tt.contains)
			assert.Equal(t, "I could not find that.", ex.Answer)
			assert.Len(t, ex.Messages, 5)
		})
	}
}

func TestDriver_MultipleToolCalls(t *testing.T) {
	provider := testutil.NewScriptedProvider(
		testutil.Script{Chunks: []venice.Chunk{
			testutil.ToolCall(0, "call_a", "get_user_info", `{"name":`),
			testutil.ToolCall(1, "call_b", "get_user_info", `{"name":`),
			testutil.ToolCall(1, "", "", ` "Marie Curie"}`),
			testutil.ToolCall(0, "", "", ` "Jean Dupont"}`),
			testutil.Finish(venice.FinishReasonToolCalls),
		}},
		testutil.Script{Chunks: testutil.TextStream("done")},
	)
	driver := venice.NewDriver(provider, venice.WithDispatcher(newDispatcher(t)), venice.WithToolPhase(venice.Sampling{Model: "m"}))

	ex, err := driver.Run(context.Background(), baseMessages(), nil)
	require.NoError(t, err)

	require.Len(t, ex.Results, 2)
	assert.Equal(t, "call_a", ex.Results[0].ToolCallID)
	assert.Contains(t, ex.Results[0].Content, "TechCorp")
	assert.Equal(t, "call_b", ex.Results[1].ToolCallID)
	assert.Equal(t, "Not found", ex.Results[1].Content)

	assert.Equal(t, []venice.Role{
		venice.RoleSystem,
		venice.RoleUser,
		venice.RoleAssistant,
		venice.RoleTool,
		venice.RoleTool,
		venice.RoleAssistant,
	}, roles(ex.Messages))
	assert.Len(t, ex.Messages[2].ToolCalls(), 2)
}

func TestDriver_TransportErrors(t *testing.T) {
	boom := errors.New("connection reset")

	tests := []struct {
		name    string
		scripts []testutil.Script
		phase   venice.State
		results int
	}{
		{
			name:    "first request fails",
			scripts: []testutil.Script{{OpenErr: boom}},
			phase:   venice.StateStreamingWithTools,
		},
		{
			name: "first stream fails midway",
			scripts: []testutil.Script{{
				Chunks: []venice.Chunk{testutil.Text("Par")},
				Err:    boom,
			}},
			phase: venice.StateStreamingWithTools,
		},
		{
			name: "final stream fails",
			scripts: []testutil.Script{
				{Chunks: []venice.Chunk{
					testutil.ToolCall(0, "call_1", "get_user_info", `{"name":"Jean Dupont"}`),
					testutil.Finish(venice.FinishReasonToolCalls),
				}},
				{Chunks: []venice.Chunk{testutil.Text("Jean")}, Err: boom},
			},
			phase:   venice.StateAwaitingFinalStream,
			results: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := testutil.NewScriptedProvider(tt.scripts...)
			driver := venice.NewDriver(provider, venice.WithDispatcher(newDispatcher(t)), venice.WithToolPhase(venice.Sampling{Model: "m"}))

			ex, err := driver.Run(context.Background(), baseMessages(), nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, boom)
			assert.True(t, venice.IsTransportError(err))

			var te *venice.TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.phase, te.Phase)

			require.NotNil(t, ex)
			assert.NotEqual(t, venice.StateDone, ex.State)
			assert.Empty(t, ex.Answer)
			assert.Len(t, ex.Results, tt.results)
			last := ex.Messages[len(ex.Messages)-1]
			assert.NotEqual(t, venice.RoleAssistant, last.Role, "no final assistant message")
			assert.Equal(t, len(tt.scripts), provider.Closed()+countOpenErrors(tt.scripts))
		})
	}
}

func countOpenErrors(scripts []testutil.Script) int {
	n := 0
	for _, s := range scripts {
		if s.OpenErr != nil {
			n++
		}
	}
	return n
}

func TestDriver_Cancelled(t *testing.T) {
	provider := testutil.NewScriptedProvider(testutil.Script{Chunks: testutil.TextStream("never")})
	driver := venice.NewDriver(provider, venice.WithToolPhase(venice.Sampling{Model: "m"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := driver.Run(ctx, baseMessages(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, venice.IsTransportError(err))
}

func TestDriver_NoTools(t *testing.T) {
	provider := testutil.NewScriptedProvider(testutil.Script{Chunks: testutil.TextStream("Hi")})
	driver := venice.NewDriver(provider, venice.WithToolPhase(venice.Sampling{Model: "m"}))

	ex, err := driver.Run(context.Background(), baseMessages(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi", ex.Answer)

	requests := provider.Requests()
	require.Len(t, requests, 1)
	assert.Empty(t, requests[0].Tools)
	assert.Empty(t, requests[0].ToolChoice)
}

func TestChat_Send(t *testing.T) {
	provider := testutil.NewScriptedProvider(
		testutil.Script{Chunks: testutil.TextStream("Bonjour!")},
		testutil.Script{OpenErr: errors.New("offline")},
		testutil.Script{Chunks: testutil.TextStream("Paris.")},
	)
	driver := venice.NewDriver(provider, venice.WithToolPhase(venice.Sampling{Model: "llama-3.2-3b"}))
	chat := venice.NewChat(driver, "Answer in English concisely")

	ex, err := chat.Send(context.Background(), "Hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bonjour!", ex.Answer)
	assert.Len(t, chat.History(), 3)

	_, err = chat.Send(context.Background(), "Are you there?", nil)
	require.Error(t, err)
	assert.Len(t, chat.History(), 3, "failed exchanges are not recorded")

	ex, err = chat.Send(context.Background(), "Capital of France?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Paris.", ex.Answer)

	history := chat.History()
	assert.Equal(t, []venice.Role{
		venice.RoleSystem,
		venice.RoleUser,
		venice.RoleAssistant,
		venice.RoleUser,
		venice.RoleAssistant,
	}, roles(history))
	assert.Equal(t, "Capital of France?", history[3].Text())

	requests := provider.Requests()
	require.Len(t, requests, 3)
	assert.Len(t, requests[2].Messages, 4)

	history[0] = venice.NewTextMessage(venice.RoleUser, "tampered")
	assert.Equal(t, venice.RoleSystem, chat.History()[0].Role)
}
