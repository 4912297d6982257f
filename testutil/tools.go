// Package testutil provides a scripted venice.Provider and chunk builders for
// tests that must not reach the network.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jpoz/venice"
)

// Script is the response to one Stream call: the chunks to emit, then Err (if
// any) as a mid-stream failure. OpenErr fails the call itself.
type Script struct {
	Chunks  []venice.Chunk
	Err     error
	OpenErr error
}

// ScriptedProvider replays one Script per Stream call and records requests.
type ScriptedProvider struct {
	mu       sync.Mutex
	scripts  []Script
	requests []venice.Request
	closed   int
}

func NewScriptedProvider(scripts ...Script) *ScriptedProvider {
	return &ScriptedProvider{scripts: scripts}
}

// ErrNoScript is returned when Stream is called more often than scripted.
var ErrNoScript = errors.New("testutil: no script left")

func (p *ScriptedProvider) Stream(ctx context.Context, req venice.Request) (venice.EventStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)
	if len(p.scripts) == 0 {
		return nil, ErrNoScript
	}
	script := p.scripts[0]
	p.scripts = p.scripts[1:]

	if script.OpenErr != nil {
		return nil, script.OpenErr
	}
	return &scriptedStream{ctx: ctx, script: script, provider: p, pos: -1}, nil
}

// Requests returns the requests received so far.
func (p *ScriptedProvider) Requests() []venice.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]venice.Request(nil), p.requests...)
}

// Closed reports how many streams were closed.
func (p *ScriptedProvider) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type scriptedStream struct {
	ctx      context.Context
	script   Script
	provider *ScriptedProvider
	pos      int
	err      error
	closed   bool
}

func (s *scriptedStream) Next() bool {
	if s.err != nil || s.closed {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	s.pos++
	if s.pos < len(s.script.Chunks) {
		return true
	}
	s.err = s.script.Err
	return false
}

func (s *scriptedStream) Current() venice.Chunk {
	if s.pos < 0 || s.pos >= len(s.script.Chunks) {
		return venice.Chunk{}
	}
	return s.script.Chunks[s.pos]
}

func (s *scriptedStream) Err() error { return s.err }

func (s *scriptedStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.provider.mu.Lock()
	s.provider.closed++
	s.provider.mu.Unlock()
	return nil
}

// Text returns a chunk carrying visible content.
func Text(content string) venice.Chunk {
	return venice.Chunk{Choices: []venice.ChunkChoice{{Delta: &venice.Delta{Content: content}}}}
}

// TextStream splits each string into its own content chunk and ends with a
// "stop" finish reason.
func TextStream(parts ...string) []venice.Chunk {
	chunks := make([]venice.Chunk, 0, len(parts)+1)
	for _, p := range parts {
		chunks = append(chunks, Text(p))
	}
	return append(chunks, Finish("stop"))
}

// ToolCall returns a chunk carrying one tool call fragment.
func ToolCall(index int, id, name, arguments string) venice.Chunk {
	frag := venice.ToolCallDelta{Index: index, ID: id, Name: name, Arguments: arguments}
	if id != "" {
		frag.Type = "function"
	}
	return venice.Chunk{Choices: []venice.ChunkChoice{{
		Delta: &venice.Delta{ToolCalls: []venice.ToolCallDelta{frag}},
	}}}
}

// Finish returns a delta-less chunk with the given finish reason.
func Finish(reason string) venice.Chunk {
	return venice.Chunk{Choices: []venice.ChunkChoice{{FinishReason: reason}}}
}

// SplitArguments cuts arguments into n fragments of near-equal length as
// successive ToolCall chunks for index. The first fragment carries id and name.
func SplitArguments(index int, id, name, arguments string, n int) []venice.Chunk {
	if n < 1 {
		panic(fmt.Sprintf("testutil: SplitArguments n = %d", n))
	}
	chunks := make([]venice.Chunk, 0, n)
	size := (len(arguments) + n - 1) / n
	for i := 0; i < n; i++ {
		start := min(i*size, len(arguments))
		end := min(start+size, len(arguments))
		if i == 0 {
			chunks = append(chunks, ToolCall(index, id, name, arguments[start:end]))
			continue
		}
		chunks = append(chunks, ToolCall(index, "", "", arguments[start:end]))
	}
	return chunks
}
