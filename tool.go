package venice

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	gschema "github.com/google/jsonschema-go/jsonschema"
	"github.com/invopop/jsonschema"
)

// Tool defines what the provider needs to advertise a capability.
type Tool interface {
	// Name of the tool.
	//
	// This is how the tool will be called by the model in `tool_calls` entries.
	Name() string

	// Description of what this tool does. The more the model knows about the
	// tool, the better it decides when to call it.
	Description() string

	// Schema of the JSON object the tool accepts as arguments.
	Schema() *jsonschema.Schema
}

// ToolName identifies a registered capability.
type ToolName string

// ToolGetUserInfo looks up an employee record by name.
const ToolGetUserInfo ToolName = "get_user_info"

// Capability is a registered tool with a strongly typed handler.
type Capability struct {
	name        ToolName
	description string
	schema      *jsonschema.Schema
	validator   *gschema.Resolved
	invoke      func(ctx context.Context, args map[string]any) (any, error)
}

// NewCapability registers handler under name. The argument schema is reflected
// from T and every dispatch validates against it before decoding into T.
func NewCapability[T any](name ToolName, description string, handler func(context.Context, T) (any, error)) (Capability, error) {
	schema := GenerateSchema[T]()
	if schema.Type != "object" {
		return Capability{}, fmt.Errorf("venice: tool %s: arguments must be an object, %v reflects to %q", name, reflect.TypeFor[T](), schema.Type)
	}
	validator, err := compileSchema(schema)
	if err != nil {
		return Capability{}, fmt.Errorf("venice: compile schema for %s: %w", name, err)
	}

	invoke := func(ctx context.Context, args map[string]any) (any, error) {
		data, err := json.Marshal(args)
		if err != nil {
			return nil, &ArgumentError{Tool: string(name), Reason: "arguments are not encodable", Err: err}
		}
		var params T
		if err := json.Unmarshal(data, &params); err != nil {
			return nil, &ArgumentError{Tool: string(name), Reason: err.Error(), Err: err}
		}
		return handler(ctx, params)
	}

	return Capability{
		name:        name,
		description: description,
		schema:      schema,
		validator:   validator,
		invoke:      invoke,
	}, nil
}

func (c Capability) Name() string               { return string(c.name) }
func (c Capability) Description() string        { return c.description }
func (c Capability) Schema() *jsonschema.Schema { return c.schema }

// ToolResult is the outcome of one dispatched call. Content holds either the
// stringified value or the error text.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	Err        error  `json:"-"`
}

// Dispatcher maps resolved tool calls to registered capabilities.
type Dispatcher struct {
	caps  map[ToolName]Capability
	order []ToolName
}

// NewDispatcher builds a closed registry. Registering a name twice is an error.
func NewDispatcher(caps ...Capability) (*Dispatcher, error) {
	d := &Dispatcher{caps: make(map[ToolName]Capability, len(caps))}
	for _, c := range caps {
		if _, exists := d.caps[c.name]; exists {
			return nil, fmt.Errorf("venice: tool %q registered twice", c.name)
		}
		d.caps[c.name] = c
		d.order = append(d.order, c.name)
	}
	return d, nil
}

// Tools lists the registered capabilities in registration order.
func (d *Dispatcher) Tools() []Tool {
	if d == nil {
		return nil
	}
	out := make([]Tool, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.caps[name])
	}
	return out
}

// Dispatch executes call and packages the outcome. Failures become the result's
// content and are never returned as errors, since the provider needs a tool
// message for every requested call.
func (d *Dispatcher) Dispatch(ctx context.Context, call ResolvedToolCall) ToolResult {
	result := ToolResult{ToolCallID: call.ID, Name: call.Name}

	value, err := d.invoke(ctx, call)
	if err != nil {
		result.Content = err.Error()
		result.Err = err
		return result
	}

	result.Content = Stringify(value)
	return result
}

func (d *Dispatcher) invoke(ctx context.Context, call ResolvedToolCall) (value any, err error) {
	var c Capability
	var ok bool
	if d != nil {
		c, ok = d.caps[ToolName(call.Name)]
	}
	if !ok {
		return nil, &UnknownToolError{Name: call.Name}
	}

	args, ok := call.Arguments.(map[string]any)
	if !ok {
		return nil, &ArgumentError{
			Tool:   call.Name,
			Reason: fmt.Sprintf("expected a JSON object, got %s (%s)", describeJSON(call.Arguments), call.Provenance),
		}
	}
	if err := c.validator.Validate(args); err != nil {
		return nil, &ArgumentError{Tool: call.Name, Reason: err.Error(), Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("tool %s panicked: %v", call.Name, r)
		}
	}()

	return c.invoke(ctx, args)
}

// Stringify renders a tool's return value as message content.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case json.Marshaler:
		// encoded below
	case fmt.Stringer:
		return v.String()
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(data)
}

func describeJSON(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
