package toolserver

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/codescope/codescope/infrastructure/breaker"
)

func echoTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "echo",
		Schema: Schema{
			Properties: map[string]Property{
				"text":  {Type: "string"},
				"count": {Type: "integer"},
			},
			Required: []string{"text"},
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			return params["text"], nil
		},
	}
}

func TestRegistry_Dispatch(t *testing.T) {
	registry := NewRegistry()
	registry.Register(echoTool("echo"))

	resp := registry.Dispatch(context.Background(), Request{
		ID: "r1", Tool: "echo", Params: map[string]any{"text": "hi"},
	})
	if !resp.OK || resp.Result != "hi" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.ID != "r1" {
		t.Errorf("expected the request id echoed, got %q", resp.ID)
	}
	if resp.TimingMS < 0 {
		t.Errorf("expected a timing, got %f", resp.TimingMS)
	}
}

func TestRegistry_UnknownTool(t *testing.T) {
	resp := NewRegistry().Dispatch(context.Background(), Request{Tool: "nope"})
	if resp.OK || resp.ErrorType != string(KindUnknownTool) {
		t.Errorf("expected unknown_tool, got %+v", resp)
	}
}

func TestRegistry_SchemaValidation(t *testing.T) {
	registry := NewRegistry()
	registry.Register(echoTool("echo"))

	tests := []struct {
		name   string
		params map[string]any
		errSub string
	}{
		{"missing required", map[string]any{}, "missing required parameter: text"},
		{"unknown param", map[string]any{"text": "x", "bogus": 1}, "unknown parameter: bogus"},
		{"wrong type", map[string]any{"text": 5}, "must be of type string"},
		{"fractional integer", map[string]any{"text": "x", "count": 1.5}, "must be of type integer"},
	}
	for _, tt := range tests {
		resp := registry.Dispatch(context.Background(), Request{Tool: "echo", Params: tt.params})
		if resp.OK || resp.ErrorType != string(KindValidation) {
			t.Errorf("%s: expected a validation error, got %+v", tt.name, resp)
			continue
		}
		if !strings.Contains(resp.Error, tt.errSub) {
			t.Errorf("%s: expected %q in %q", tt.name, tt.errSub, resp.Error)
		}
	}

	// Whole floats are how JSON delivers integers.
	resp := registry.Dispatch(context.Background(), Request{
		Tool: "echo", Params: map[string]any{"text": "x", "count": float64(3)},
	})
	if !resp.OK {
		t.Errorf("expected a whole float accepted as integer, got %+v", resp)
	}
}

func TestRegistry_OpenSchemaPassesAnythingThrough(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Tool{
		Name:   "forward",
		Schema: Schema{Required: []string{"model"}},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			return params, nil
		},
	})

	resp := registry.Dispatch(context.Background(), Request{
		Tool: "forward", Params: map[string]any{"model": "User", "anything": true},
	})
	if !resp.OK {
		t.Errorf("expected an open schema to pass unknown params, got %+v", resp)
	}

	resp = registry.Dispatch(context.Background(), Request{Tool: "forward", Params: map[string]any{}})
	if resp.OK || resp.ErrorType != string(KindValidation) {
		t.Errorf("expected required still enforced, got %+v", resp)
	}
}

func TestRegistry_EnumValidation(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Tool{
		Name: "order",
		Schema: Schema{
			Properties: map[string]Property{
				"direction": {Type: "string", Enum: []string{"asc", "desc"}},
			},
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) { return nil, nil },
	})

	resp := registry.Dispatch(context.Background(), Request{
		Tool: "order", Params: map[string]any{"direction": "sideways"},
	})
	if resp.OK || resp.ErrorType != string(KindValidation) {
		t.Errorf("expected the enum enforced, got %+v", resp)
	}
}

func TestRegistry_HandlerPanicBecomesExecutionError(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Tool{
		Name:   "boom",
		Schema: Schema{},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			panic("kaboom")
		},
	})

	resp := registry.Dispatch(context.Background(), Request{Tool: "boom"})
	if resp.OK || resp.ErrorType != string(KindExecution) {
		t.Errorf("expected an execution error, got %+v", resp)
	}
	if !strings.Contains(resp.Error, "kaboom") {
		t.Errorf("expected the panic value surfaced, got %q", resp.Error)
	}
}

func TestRegistry_DeadlineProducesTimeout(t *testing.T) {
	registry := NewRegistry(WithDeadline(20 * time.Millisecond))
	registry.Register(Tool{
		Name:   "slow",
		Schema: Schema{},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			select {
			case <-time.After(5 * time.Second):
				return nil, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})

	resp := registry.Dispatch(context.Background(), Request{Tool: "slow"})
	if resp.OK || resp.ErrorType != string(KindTimeout) {
		t.Errorf("expected a timeout, got %+v", resp)
	}
}

func TestRegistry_DuplicateRegisterPanics(t *testing.T) {
	registry := NewRegistry()
	registry.Register(echoTool("echo"))

	defer func() {
		if recover() == nil {
			t.Error("expected a panic on duplicate registration")
		}
	}()
	registry.Register(echoTool("echo"))
}

func TestRegistry_NamesSorted(t *testing.T) {
	registry := NewRegistry()
	registry.Register(echoTool("zeta"))
	registry.Register(echoTool("alpha"))

	names := registry.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("expected sorted names, got %v", names)
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(NewError(KindSQLRejected, "nope")); got != KindSQLRejected {
		t.Errorf("expected the tagged kind kept, got %s", got)
	}
	if got := KindOf(breaker.ErrOpen); got != KindCircuitOpen {
		t.Errorf("expected circuit_open, got %s", got)
	}
	if got := KindOf(context.DeadlineExceeded); got != KindTimeout {
		t.Errorf("expected timeout, got %s", got)
	}
	if got := KindOf(errors.New("anything")); got != KindExecution {
		t.Errorf("expected execution fallback, got %s", got)
	}
}
