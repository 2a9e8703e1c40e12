package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sourcegraph/conc/panics"
	"github.com/xeipuuv/gojsonschema"

	"github.com/martinemde/manus/unifiedllm"
)

// ToolDefinition describes a tool for the model and for the loop.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`

	// Terminal marks the tool whose successful call ends the run.
	Terminal bool `json:"-"`
	// Special exempts the tool's results from the observation ceiling.
	Special bool `json:"-"`
}

// Tool is a capability the model can invoke by name.
type Tool interface {
	Definition() ToolDefinition
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Cleaner is implemented by tools that hold resources across calls.
type Cleaner interface {
	Cleanup(ctx context.Context) error
}

// ToolFunc is the function signature for tool execution.
type ToolFunc func(ctx context.Context, args json.RawMessage) (string, error)

// FuncTool pairs a definition with a function.
type FuncTool struct {
	Def ToolDefinition
	Fn  ToolFunc
}

// NewFuncTool creates a Tool from a definition and function.
func NewFuncTool(def ToolDefinition, fn ToolFunc) *FuncTool {
	return &FuncTool{Def: def, Fn: fn}
}

func (t *FuncTool) Definition() ToolDefinition { return t.Def }

func (t *FuncTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	return t.Fn(ctx, args)
}

type registeredTool struct {
	tool   Tool
	def    ToolDefinition
	schema *gojsonschema.Schema
}

// ToolRegistry is an immutable, ordered set of tools keyed by name. Exactly
// one tool is terminal.
type ToolRegistry struct {
	order    []string
	tools    map[string]*registeredTool
	terminal string
}

// NewToolRegistry builds a registry from tools in the given order. Each
// tool's parameter schema is compiled up front so bad schemas fail here.
func NewToolRegistry(tools ...Tool) (*ToolRegistry, error) {
	r := &ToolRegistry{
		order: make([]string, 0, len(tools)),
		tools: make(map[string]*registeredTool, len(tools)),
	}
	for i, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("tool %d: %w", i, ErrNilTool)
		}
		def := t.Definition()
		if strings.TrimSpace(def.Name) == "" {
			return nil, fmt.Errorf("tool %d: %w", i, ErrEmptyToolName)
		}
		if _, exists := r.tools[def.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTool, def.Name)
		}
		if def.Terminal {
			if r.terminal != "" {
				return nil, fmt.Errorf("%w: %q and %q", ErrMultipleTerminalTools, r.terminal, def.Name)
			}
			r.terminal = def.Name
		}

		rt := &registeredTool{tool: t, def: def}
		if len(def.Parameters) > 0 {
			schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.Parameters))
			if err != nil {
				return nil, fmt.Errorf("tool %q: compile parameter schema: %w", def.Name, err)
			}
			rt.schema = schema
		}
		r.tools[def.Name] = rt
		r.order = append(r.order, def.Name)
	}
	if r.terminal == "" {
		return nil, ErrNoTerminalTool
	}
	return r, nil
}

// Get returns the tool registered under name.
func (r *ToolRegistry) Get(name string) (Tool, error) {
	rt, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return rt.tool, nil
}

// Definition returns the definition of the named tool.
func (r *ToolRegistry) Definition(name string) (ToolDefinition, bool) {
	rt, ok := r.tools[name]
	if !ok {
		return ToolDefinition{}, false
	}
	return rt.def, true
}

// Definitions returns all tool definitions in registration order.
func (r *ToolRegistry) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].def)
	}
	return defs
}

// ModelDefinitions converts the definitions to the schema sent to the model.
func (r *ToolRegistry) ModelDefinitions() []unifiedllm.ToolDefinition {
	defs := make([]unifiedllm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		d := r.tools[name].def
		defs = append(defs, unifiedllm.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		})
	}
	return defs
}

// Names returns tool names in registration order.
func (r *ToolRegistry) Names() []string {
	return append([]string(nil), r.order...)
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	return len(r.order)
}

// Terminal returns the name of the terminal tool.
func (r *ToolRegistry) Terminal() string {
	return r.terminal
}

// IsTerminal reports whether name is the terminal tool.
func (r *ToolRegistry) IsTerminal(name string) bool {
	return name == r.terminal
}

// IsSpecial reports whether the named tool is exempt from truncation.
func (r *ToolRegistry) IsSpecial(name string) bool {
	rt, ok := r.tools[name]
	return ok && rt.def.Special
}

// Execute resolves and runs a tool call. Unknown names and arguments that
// fail the tool's schema are returned as errors without running anything.
// A panicking tool is reported as an error.
func (r *ToolRegistry) Execute(ctx context.Context, call unifiedllm.ToolCall) (output string, err error) {
	rt, ok := r.tools[call.Name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, call.Name)
	}

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if err := rt.validate(args); err != nil {
		return "", err
	}

	var pc panics.Catcher
	pc.Try(func() {
		output, err = rt.tool.Execute(ctx, args)
	})
	if rec := pc.Recovered(); rec != nil {
		return "", fmt.Errorf("tool %q panicked: %v", call.Name, rec.Value)
	}
	return output, err
}

func (rt *registeredTool) validate(args json.RawMessage) error {
	if !json.Valid(args) {
		return fmt.Errorf("%w: arguments are not valid JSON", ErrInvalidArguments)
	}
	if rt.schema == nil {
		return nil
	}
	result, err := rt.schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidArguments, strings.Join(msgs, "; "))
	}
	return nil
}

// Cleanup releases resources held by every tool implementing Cleaner, in
// registration order. All tools are visited; errors are joined.
func (r *ToolRegistry) Cleanup(ctx context.Context) error {
	var errs []error
	for _, name := range r.order {
		c, ok := r.tools[name].tool.(Cleaner)
		if !ok {
			continue
		}
		if err := c.Cleanup(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cleanup %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// ParseToolArguments unmarshals tool call arguments into a map.
func ParseToolArguments(raw json.RawMessage) (map[string]any, error) {
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return args, nil
}

// GetStringArg extracts a string argument from parsed tool arguments.
func GetStringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetIntArg extracts an integer argument from parsed tool arguments.
func GetIntArg(args map[string]any, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
