package console

import (
	"context"
	"strings"

	"github.com/codescope/codescope/infrastructure/toolserver"
)

// tier3BridgeTools are operational tools that need the application's
// instrumentation; the embedded adapter answers unsupported for them.
var tier3BridgeTools = []string{
	"slow_endpoints", "error_rates", "throughput", "job_queues",
	"job_failures", "job_find", "job_schedule", "channel_status",
}

func (s *Server) registerTier3(registry *toolserver.Registry) {
	for _, name := range tier3BridgeTools {
		registry.Register(toolserver.Tool{
			Name:        name,
			Description: "Operational metric (bridge adapter only)",
			Schema: toolserver.Schema{
				Properties: map[string]toolserver.Property{
					"limit": {Type: "integer"},
					"queue": {Type: "string"},
					"id":    {Type: "string"},
					"retry": {Type: "boolean"},
				},
			},
			Handler: s.audited(name, false, func(ctx context.Context, params map[string]any) (any, error) {
				return nil, toolserver.Errorf(toolserver.KindUnsupported,
					"%s requires the bridge adapter", name)
			}),
		})
	}

	registry.Register(toolserver.Tool{
		Name:        "redis_info",
		Description: "Redis server info",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{
				"section": {Type: "string", Description: "INFO section, e.g. memory"},
			},
		},
		Handler: s.audited("redis_info", false, s.handleRedisInfo),
	})

	registry.Register(toolserver.Tool{
		Name:        "cache_stats",
		Description: "Cache keyspace and hit-rate stats",
		Schema:      toolserver.Schema{},
		Handler:     s.audited("cache_stats", false, s.handleCacheStats),
	})
}

func (s *Server) handleRedisInfo(ctx context.Context, params map[string]any) (any, error) {
	if s.redis == nil {
		return nil, toolserver.NewError(toolserver.KindUnsupported, "no redis client configured")
	}
	section, _ := params["section"].(string)

	var raw string
	var err error
	if section != "" {
		raw, err = s.redis.Info(ctx, section).Result()
	} else {
		raw, err = s.redis.Info(ctx).Result()
	}
	if err != nil {
		return nil, toolserver.WrapError(toolserver.KindExecution, err)
	}
	return map[string]any{"info": parseRedisInfo(raw)}, nil
}

func (s *Server) handleCacheStats(ctx context.Context, _ map[string]any) (any, error) {
	if s.redis == nil {
		return nil, toolserver.NewError(toolserver.KindUnsupported, "no redis client configured")
	}

	size, err := s.redis.DBSize(ctx).Result()
	if err != nil {
		return nil, toolserver.WrapError(toolserver.KindExecution, err)
	}
	raw, err := s.redis.Info(ctx, "stats").Result()
	if err != nil {
		return nil, toolserver.WrapError(toolserver.KindExecution, err)
	}

	stats := parseRedisInfo(raw)
	return map[string]any{
		"keys":            size,
		"keyspace_hits":   stats["keyspace_hits"],
		"keyspace_misses": stats["keyspace_misses"],
	}, nil
}

// parseRedisInfo turns INFO's "key:value" lines into a map, dropping
// section headers and blanks.
func parseRedisInfo(raw string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if found {
			out[key] = value
		}
	}
	return out
}
