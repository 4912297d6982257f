package openai

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/jpoz/venice"
)

const ProviderOpenAI = "openai"

// DefaultBaseURL is the Venice AI OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.venice.ai/api/v1"

// FallbackModels is returned by ModelsOrFallback when the model list cannot be
// fetched.
var FallbackModels = []string{"venice-uncensored"}

type Client struct {
	BaseURL string
	APIKey  string

	// VeniceParameters is sent as the "venice_parameters" request field. Set it
	// to nil when talking to a provider that rejects unknown fields.
	VeniceParameters map[string]any

	client  *openai.Client
	options []option.RequestOption
	logger  *slog.Logger
}

type Modifier func(*Client)

// WithOpenAIClientOptions allows you to set options on the underlying client.
// This is useful for settings that are not exposed by Client, such as a
// custom timeout or retry policy.
func WithOpenAIClientOptions(options ...option.RequestOption) Modifier {
	return func(c *Client) {
		c.options = append(c.options, options...)
	}
}

// WithHttpLogging will log all HTTP requests and responses to the client's
// structured logger.
func WithHttpLogging() Modifier {
	return func(c *Client) {
		c.options = append(c.options, option.WithHTTPClient(
			venice.NewHTTPClientWithLogging(c.log(), venice.DefaultLoggingConfig()),
		))
	}
}

// WithBaseURL allows you to point the client at any OpenAI-compatible API.
func WithBaseURL(baseURL string) Modifier {
	return func(c *Client) {
		c.BaseURL = baseURL
	}
}

// WithAPIKey allows you to set the API key. Without it the OPENAI_API_KEY
// environment variable is used.
func WithAPIKey(apiKey string) Modifier {
	return func(c *Client) {
		c.APIKey = apiKey
	}
}

// WithVeniceSystemPrompt controls whether Venice prepends its own system prompt.
func WithVeniceSystemPrompt(include bool) Modifier {
	return func(c *Client) {
		if c.VeniceParameters == nil {
			c.VeniceParameters = map[string]any{}
		}
		c.VeniceParameters["include_venice_system_prompt"] = include
	}
}

// WithoutVeniceParameters stops sending the "venice_parameters" field.
func WithoutVeniceParameters() Modifier {
	return func(c *Client) {
		c.VeniceParameters = nil
	}
}

// WithLogger sets the logger used for HTTP logging and model list fallbacks.
// Apply it before WithHttpLogging.
func WithLogger(logger *slog.Logger) Modifier {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the Venice API. Venice's own system prompt is
// disabled by default.
func New(mods ...Modifier) *Client {
	c := &Client{
		BaseURL: DefaultBaseURL,
		VeniceParameters: map[string]any{
			"include_venice_system_prompt": false,
		},
	}

	for _, mod := range mods {
		mod(c)
	}

	opts := []option.RequestOption{
		option.WithBaseURL(strings.TrimRight(c.BaseURL, "/") + "/"),
	}
	if c.APIKey != "" {
		opts = append(opts, option.WithAPIKey(c.APIKey))
	}
	opts = append(opts, c.options...)

	client := openai.NewClient(opts...)
	c.client = &client

	return c
}

// GetClient returns the underlying OpenAI client.
func (c *Client) GetClient() *openai.Client {
	return c.client
}

func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// Stream opens a streaming chat completion. Request errors surface through the
// returned stream's Err.
func (c *Client) Stream(ctx context.Context, req venice.Request) (venice.EventStream, error) {
	params, err := BuildParams(req)
	if err != nil {
		return nil, err
	}

	var opts []option.RequestOption
	if c.VeniceParameters != nil {
		opts = append(opts, option.WithJSONSet("venice_parameters", c.VeniceParameters))
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params, opts...)

	return &chunkStream{stream: stream}, nil
}

// ListModels returns the provider's model IDs, sorted.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("openai: failed to list models: %w", err)
	}

	ids := make([]string, 0, len(page.Data))
	for _, model := range page.Data {
		ids = append(ids, model.ID)
	}
	slices.Sort(ids)

	return ids, nil
}

// ModelsOrFallback returns ListModels, or FallbackModels when the list is
// empty or cannot be fetched.
func (c *Client) ModelsOrFallback(ctx context.Context) []string {
	ids, err := c.ListModels(ctx)
	if err != nil || len(ids) == 0 {
		c.log().LogAttrs(ctx, slog.LevelWarn, "using fallback model list", slog.Any("error", err))
		return slices.Clone(FallbackModels)
	}
	return ids
}

// BuildParams converts a venice.Request into chat completion parameters.
func BuildParams(req venice.Request) (openai.ChatCompletionNewParams, error) {
	if req.Model == "" {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("openai: model is required")
	}

	messages, err := convertMessages(req.Messages)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}

	tools, err := convertTools(req.Tools)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
		Tools:    tools,
	}

	if len(tools) > 0 && req.ToolChoice != "" {
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String(string(req.ToolChoice)),
		}
	}

	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}

	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	if req.TopP != nil {
		params.TopP = openai.Float(*req.TopP)
	}

	return params, nil
}

// chunkStream adapts the SDK's SSE stream to venice.EventStream.
type chunkStream struct {
	stream  *ssestream.Stream[openai.ChatCompletionChunk]
	current venice.Chunk
}

func (s *chunkStream) Next() bool {
	if !s.stream.Next() {
		return false
	}
	s.current = convertChunk(s.stream.Current())
	return true
}

func (s *chunkStream) Current() venice.Chunk {
	return s.current
}

func (s *chunkStream) Err() error {
	if err := s.stream.Err(); err != nil {
		return fmt.Errorf("openai: streaming error: %w", err)
	}
	return nil
}

func (s *chunkStream) Close() error {
	return s.stream.Close()
}

func convertChunk(chunk openai.ChatCompletionChunk) venice.Chunk {
	out := venice.Chunk{
		ID:      chunk.ID,
		Choices: make([]venice.ChunkChoice, 0, len(chunk.Choices)),
	}

	for _, choice := range chunk.Choices {
		c := venice.ChunkChoice{
			Index:        int(choice.Index),
			FinishReason: string(choice.FinishReason),
		}

		// A null delta stays nil so the accumulator can tell it apart from an
		// empty one.
		if choice.JSON.Delta.Valid() {
			delta := &venice.Delta{Content: choice.Delta.Content}
			for _, tc := range choice.Delta.ToolCalls {
				delta.ToolCalls = append(delta.ToolCalls, venice.ToolCallDelta{
					Index:     int(tc.Index),
					ID:        tc.ID,
					Type:      string(tc.Type),
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				})
			}
			c.Delta = delta
		}

		out.Choices = append(out.Choices, c)
	}

	return out
}

func convertMessages(messages []venice.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for i, message := range messages {
		switch message.Role {
		case venice.RoleSystem, venice.RoleUser:
			content := ""
			for _, part := range message.Parts {
				switch p := part.(type) {
				case venice.TextPart:
					content += p.Text
				default:
					return nil, fmt.Errorf("[message %d] openai: unsupported %s message part type: %T", i, message.Role, p)
				}
			}

			if message.Role == venice.RoleSystem {
				out = append(out, openai.SystemMessage(content))
			} else {
				out = append(out, openai.UserMessage(content))
			}

		case venice.RoleAssistant:
			content := ""
			var calls []openai.ChatCompletionMessageToolCallParam

			for _, part := range message.Parts {
				switch p := part.(type) {
				case venice.TextPart:
					content += p.Text
				case venice.ToolCallPart:
					args := string(p.Input)
					if args == "" {
						args = "{}"
					}
					calls = append(calls, openai.ChatCompletionMessageToolCallParam{
						ID: p.ID,
						Function: openai.ChatCompletionMessageToolCallFunctionParam{
							Name:      p.Name,
							Arguments: args,
						},
					})
				default:
					return nil, fmt.Errorf("[message %d] openai: unsupported assistant message part type: %T", i, p)
				}
			}

			if len(calls) == 0 {
				out = append(out, openai.AssistantMessage(content))
				continue
			}

			assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
			if content != "" {
				assistant.Content.OfString = openai.String(content)
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})

		case venice.RoleTool:
			for _, part := range message.Parts {
				p, ok := part.(venice.ToolResultPart)
				if !ok {
					return nil, fmt.Errorf("[message %d] openai: unsupported tool message part type: %T", i, part)
				}
				out = append(out, openai.ToolMessage(p.Result, p.ToolCallID))
			}

		default:
			return nil, fmt.Errorf("[message %d] openai: unsupported message role: %s", i, message.Role)
		}
	}

	return out, nil
}

func convertTools(tools []venice.Tool) ([]openai.ChatCompletionToolParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}

	out := make([]openai.ChatCompletionToolParam, 0, len(tools))

	for _, tool := range tools {
		schema, err := venice.SchemaMap(tool.Schema())
		if err != nil {
			return nil, fmt.Errorf("openai: tool %s: %w", tool.Name(), err)
		}
		if schema == nil {
			return nil, fmt.Errorf("openai: tool %s has no schema", tool.Name())
		}

		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name(),
				Description: openai.String(tool.Description()),
				Parameters:  openai.FunctionParameters(schema),
			},
		})
	}

	return out, nil
}
