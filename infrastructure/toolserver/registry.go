package toolserver

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Request is one framed tool call.
type Request struct {
	ID     string         `json:"id,omitempty"`
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

// Response is the framed result of a tool call.
type Response struct {
	ID        string  `json:"id,omitempty"`
	OK        bool    `json:"ok"`
	Result    any     `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
	ErrorType string  `json:"error_type,omitempty"`
	TimingMS  float64 `json:"timing_ms"`
}

// Property describes one parameter in a tool's input schema.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Schema is the JSON-schema-like input specification of a tool.
type Schema struct {
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Handler executes a tool call with validated parameters.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Tool is one registered operation.
type Tool struct {
	Name        string
	Description string
	Schema      Schema
	Handler     Handler
}

// Registry maps tool names to handlers. Dispatch is strict: only names in
// the map are callable, so nothing outside the registered set is ever
// reachable by name.
type Registry struct {
	tools    map[string]Tool
	deadline time.Duration
	now      func() time.Time
}

// RegistryOption is a functional option for NewRegistry.
type RegistryOption func(*Registry)

// WithDeadline sets the hard per-call deadline. Handlers that exceed it
// are abandoned and the call returns a timeout error.
func WithDeadline(d time.Duration) RegistryOption {
	return func(r *Registry) { r.deadline = d }
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:    make(map[string]Tool),
		deadline: 30 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. Registering the same name twice panics: the tool
// set is assembled once at startup and a duplicate is a programming error.
func (r *Registry) Register(t Tool) {
	if t.Name == "" || t.Handler == nil {
		panic("toolserver: tool must have a name and a handler")
	}
	if _, exists := r.tools[t.Name]; exists {
		panic(fmt.Sprintf("toolserver: duplicate tool %q", t.Name))
	}
	r.tools[t.Name] = t
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Dispatch resolves, validates, and runs one request, always producing a
// framed response.
func (r *Registry) Dispatch(ctx context.Context, req Request) Response {
	start := r.now()
	finish := func(resp Response) Response {
		resp.ID = req.ID
		resp.TimingMS = float64(r.now().Sub(start).Microseconds()) / 1000.0
		return resp
	}

	tool, ok := r.tools[req.Tool]
	if !ok {
		return finish(Response{
			OK:        false,
			Error:     fmt.Sprintf("unknown tool: %s", req.Tool),
			ErrorType: string(KindUnknownTool),
		})
	}

	if err := tool.Schema.validate(req.Params); err != nil {
		return finish(Response{
			OK:        false,
			Error:     err.Error(),
			ErrorType: string(KindValidation),
		})
	}

	result, err := r.invoke(ctx, tool, req.Params)
	if err != nil {
		return finish(Response{
			OK:        false,
			Error:     err.Error(),
			ErrorType: string(KindOf(err)),
		})
	}
	return finish(Response{OK: true, Result: result})
}

// invoke runs the handler under the hard deadline, converting panics into
// execution errors so one misbehaving tool cannot take the server down.
func (r *Registry) invoke(ctx context.Context, tool Tool, params map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: Errorf(KindExecution, "tool %s panicked: %v", tool.Name, rec)}
			}
		}()
		result, err := tool.Handler(ctx, params)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, Errorf(KindTimeout, "tool %s exceeded the %s deadline", tool.Name, r.deadline)
		}
		return nil, WrapError(KindExecution, ctx.Err())
	}
}

// validate checks params against the schema: required fields must be
// present, typed fields must hold the declared JSON type, and enum fields
// must hold one of the allowed values. A schema with no properties is
// open; anything passes through (used by forwarding registries whose far
// side validates).
func (s Schema) validate(params map[string]any) error {
	for _, name := range s.Required {
		if _, ok := params[name]; !ok {
			return fmt.Errorf("missing required parameter: %s", name)
		}
	}
	if s.Properties == nil {
		return nil
	}
	for name, value := range params {
		prop, known := s.Properties[name]
		if !known {
			return fmt.Errorf("unknown parameter: %s", name)
		}
		if !prop.accepts(value) {
			return fmt.Errorf("parameter %s must be of type %s", name, prop.Type)
		}
		if len(prop.Enum) > 0 {
			str, _ := value.(string)
			allowed := false
			for _, candidate := range prop.Enum {
				if str == candidate {
					allowed = true
					break
				}
			}
			if !allowed {
				return fmt.Errorf("parameter %s must be one of %v", name, prop.Enum)
			}
		}
	}
	return nil
}

// accepts reports whether a decoded JSON value matches the declared type.
// Numbers arrive as float64 from encoding/json; integer accepts whole
// floats.
func (p Property) accepts(value any) bool {
	if value == nil {
		return true
	}
	switch p.Type {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := value.(float64)
		if !ok {
			_, ok = value.(int)
		}
		return ok
	case "integer":
		switch v := value.(type) {
		case int:
			return true
		case float64:
			return v == float64(int64(v))
		default:
			return false
		}
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}
