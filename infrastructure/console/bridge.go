package console

import (
	"context"

	"github.com/codescope/codescope/infrastructure/toolserver"
)

// consoleTools is the full tool surface, fixed across both construction
// modes.
var consoleTools = func() []string {
	names := []string{
		"count", "sample", "find", "pluck", "aggregate",
		"association_count", "schema", "recent", "status",
	}
	names = append(names, tier2Tools...)
	names = append(names, tier3BridgeTools...)
	names = append(names, "redis_info", "cache_stats", "eval", "sql", "query")
	return names
}()

// NewBridgeRegistry builds a registry whose every tool forwards through
// the adapter to an out-of-process runtime. Validation, confirmation, and
// audit run on the far side.
func NewBridgeRegistry(adapter Adapter, opts ...toolserver.RegistryOption) *toolserver.Registry {
	registry := toolserver.NewRegistry(opts...)
	for _, name := range consoleTools {
		registry.Register(toolserver.Tool{
			Name:        name,
			Description: "Forwarded to the " + adapter.Name() + " adapter",
			// The far side validates; the bridge passes parameters through.
			Schema:  toolserver.Schema{},
			Handler: forward(adapter, name),
		})
	}
	return registry
}

func forward(adapter Adapter, name string) toolserver.Handler {
	return func(ctx context.Context, params map[string]any) (any, error) {
		resp := adapter.Send(ctx, toolserver.Request{Tool: name, Params: params})
		if !resp.OK {
			kind := toolserver.Kind(resp.ErrorType)
			if kind == "" {
				kind = toolserver.KindExecution
			}
			return nil, toolserver.NewError(kind, resp.Error)
		}
		return resp.Result, nil
	}
}
