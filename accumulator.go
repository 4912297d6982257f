package venice

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// MaxToolCallIndex bounds the tool call indices accepted from a stream.
// Fragments outside [0, MaxToolCallIndex] are treated as malformed.
const MaxToolCallIndex = 64

// PendingToolCall is a tool call under reconstruction. Argument fragments are
// kept in arrival order and only joined once the call is finalized.
type PendingToolCall struct {
	Index int
	ID    string
	Type  string
	Name  string

	fragments []string
}

// Fragments returns a copy of the raw argument fragments.
func (p PendingToolCall) Fragments() []string {
	return slices.Clone(p.fragments)
}

// Arguments joins the argument fragments in arrival order.
func (p PendingToolCall) Arguments() string {
	return strings.Join(p.fragments, "")
}

// ChunkAccumulator merges streamed deltas into visible content and a set of
// pending tool calls keyed by index. Once the tool_calls signal has been seen
// it is frozen: later fragments are dropped.
type ChunkAccumulator struct {
	calls   []*PendingToolCall
	content strings.Builder

	complete  bool
	finalized bool

	logger *slog.Logger
}

func NewChunkAccumulator(logger *slog.Logger) *ChunkAccumulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChunkAccumulator{logger: logger}
}

// Observe consumes one stream event and returns the visible text it added.
func (a *ChunkAccumulator) Observe(chunk Chunk) string {
	if len(chunk.Choices) == 0 {
		a.logger.Debug("skipping stream event without choices", slog.String("chunk_id", chunk.ID))
		return ""
	}
	if a.complete {
		a.logger.Debug("dropping stream event after tool_calls signal", slog.String("chunk_id", chunk.ID))
		return ""
	}

	choice := chunk.Choices[0]
	var text string
	if choice.Delta != nil {
		text = choice.Delta.Content
		a.content.WriteString(text)
		for _, frag := range choice.Delta.ToolCalls {
			a.merge(frag)
		}
	}

	if choice.FinishReason == FinishReasonToolCalls {
		a.complete = true
	}

	return text
}

func (a *ChunkAccumulator) merge(frag ToolCallDelta) {
	if frag.Index < 0 || frag.Index > MaxToolCallIndex {
		a.logger.Debug("skipping tool call fragment",
			slog.Int("index", frag.Index),
			slog.Any("error", ErrMalformedEvent))
		return
	}

	for len(a.calls) <= frag.Index {
		a.calls = append(a.calls, nil)
	}
	call := a.calls[frag.Index]
	if call == nil {
		call = &PendingToolCall{Index: frag.Index}
		a.calls[frag.Index] = call
	}

	// The ID is assigned once; it may arrive after the first fragment.
	if call.ID == "" {
		call.ID = frag.ID
	} else if frag.ID != "" && frag.ID != call.ID {
		a.logger.Debug("ignoring reassigned tool call id",
			slog.Int("index", frag.Index),
			slog.String("id", call.ID),
			slog.String("ignored", frag.ID))
	}
	if call.Type == "" {
		call.Type = frag.Type
	}

	call.Name += frag.Name
	if frag.Arguments != "" {
		call.fragments = append(call.fragments, frag.Arguments)
	}
}

// Complete reports whether the tool_calls signal has been observed.
func (a *ChunkAccumulator) Complete() bool {
	return a.complete
}

// Content returns the visible text accumulated so far.
func (a *ChunkAccumulator) Content() string {
	return a.content.String()
}

// Finalize hands out the pending tool calls in index order. It may be called
// once, after Complete reports true. Calls that never received an ID get a
// generated one so that tool results can still reference them.
func (a *ChunkAccumulator) Finalize() ([]PendingToolCall, error) {
	if !a.complete {
		return nil, ErrNotComplete
	}
	if a.finalized {
		return nil, ErrFinalized
	}
	a.finalized = true

	out := make([]PendingToolCall, 0, len(a.calls))
	for _, call := range a.calls {
		if call == nil {
			continue
		}
		c := *call
		c.fragments = slices.Clone(call.fragments)
		if c.ID == "" {
			c.ID = "call_" + uuid.NewString()
		}
		out = append(out, c)
	}

	return out, nil
}
