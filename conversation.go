package venice

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
)

// State is the position of an exchange in the two-phase protocol.
type State int

const (
	StateAwaitingFirstStream State = iota
	StateStreamingWithTools
	StateToolsRequested
	StateDirectAnswer
	StateAwaitingFinalStream
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingFirstStream:
		return "awaiting-first-stream"
	case StateStreamingWithTools:
		return "streaming-with-tools"
	case StateToolsRequested:
		return "tools-requested"
	case StateDirectAnswer:
		return "direct-answer"
	case StateAwaitingFinalStream:
		return "awaiting-final-stream"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Exchange is the record of one run: the transcript it produced, the calls it
// resolved and the answer it ended with.
type Exchange struct {
	State    State
	Answer   string
	Messages []Message
	Calls    []ResolvedToolCall
	Results  []ToolResult
}

// Driver runs detect → execute → finalize exchanges against a Provider. A
// Driver holds no per-exchange state and may be shared.
type Driver struct {
	provider   Provider
	dispatcher *Dispatcher
	toolPhase  Sampling
	finalPhase Sampling
	logger     *slog.Logger
}

type Modifier func(*Driver)

// WithDispatcher enables tool calling in the first phase.
func WithDispatcher(dispatcher *Dispatcher) Modifier {
	return func(d *Driver) {
		d.dispatcher = dispatcher
	}
}

// WithToolPhase sets the model and sampling of the first request.
func WithToolPhase(s Sampling) Modifier {
	return func(d *Driver) {
		d.toolPhase = s
	}
}

// WithFinalPhase sets the model and sampling of the request that follows tool
// execution. It defaults to the tool phase settings.
func WithFinalPhase(s Sampling) Modifier {
	return func(d *Driver) {
		d.finalPhase = s
	}
}

func WithLogger(logger *slog.Logger) Modifier {
	return func(d *Driver) {
		d.logger = logger
	}
}

func NewDriver(provider Provider, mods ...Modifier) *Driver {
	d := &Driver{provider: provider}
	for _, mod := range mods {
		mod(d)
	}

	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.finalPhase.Model == "" {
		d.finalPhase = d.toolPhase
	}

	return d
}

// Run performs one exchange over a copy of messages. fn, if not nil, receives
// visible text from both phases as it streams.
//
// Tool failures never abort the exchange; they become tool messages. A
// provider failure returns a *TransportError together with the partial
// exchange, which then has no final assistant message.
func (d *Driver) Run(ctx context.Context, messages []Message, fn StreamFunc) (*Exchange, error) {
	ex := &Exchange{
		State:    StateAwaitingFirstStream,
		Messages: slices.Clone(messages),
	}

	req := Request{
		Sampling: d.toolPhase,
		Messages: slices.Clone(ex.Messages),
	}
	if tools := d.dispatcher.Tools(); len(tools) > 0 {
		req.Tools = tools
		req.ToolChoice = ToolChoiceAuto
	}

	ex.State = StateStreamingWithTools
	first := NewChunkAccumulator(d.logger)
	if err := d.consume(ctx, req, first, fn); err != nil {
		return ex, &TransportError{Phase: ex.State, Err: err}
	}

	if !first.Complete() {
		ex.State = StateDirectAnswer
		ex.Answer = first.Content()
		ex.Messages = append(ex.Messages, NewTextMessage(RoleAssistant, ex.Answer))
		ex.State = StateDone
		return ex, nil
	}

	ex.State = StateToolsRequested
	pending, err := first.Finalize()
	if err != nil {
		return ex, err
	}

	for _, p := range pending {
		call := Resolve(p)
		if call.Provenance != ProvenanceExact {
			d.logger.LogAttrs(ctx, slog.LevelWarn, "tool arguments recovered with degraded provenance",
				slog.String("tool", call.Name),
				slog.String("tool_call_id", call.ID),
				slog.String("provenance", call.Provenance.String()),
				slog.String("raw", call.RawArguments))
		}
		ex.Calls = append(ex.Calls, call)
	}
	ex.Messages = append(ex.Messages, NewToolCallMessage(first.Content(), ex.Calls))

	for _, call := range ex.Calls {
		result := d.dispatcher.Dispatch(ctx, call)
		level := slog.LevelInfo
		if result.Err != nil {
			level = slog.LevelWarn
		}
		d.logger.LogAttrs(ctx, level, "tool dispatched",
			slog.String("tool", call.Name),
			slog.String("tool_call_id", call.ID),
			slog.String("content", result.Content))

		ex.Results = append(ex.Results, result)
		ex.Messages = append(ex.Messages, NewToolResultMessage(result))
	}

	ex.State = StateAwaitingFinalStream
	req = Request{
		Sampling: d.finalPhase,
		Messages: slices.Clone(ex.Messages),
	}
	final := NewChunkAccumulator(d.logger)
	if err := d.consume(ctx, req, final, fn); err != nil {
		return ex, &TransportError{Phase: ex.State, Err: err}
	}

	ex.Answer = final.Content()
	ex.Messages = append(ex.Messages, NewTextMessage(RoleAssistant, ex.Answer))
	ex.State = StateDone

	return ex, nil
}

// consume drains one stream into acc.
func (d *Driver) consume(ctx context.Context, req Request, acc *ChunkAccumulator, fn StreamFunc) error {
	stream, err := d.provider.Stream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Next() {
		text := acc.Observe(stream.Current())
		if text != "" && fn != nil {
			fn(text)
		}
	}

	return stream.Err()
}
