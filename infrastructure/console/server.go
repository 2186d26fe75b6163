package console

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/codescope/codescope/infrastructure/toolserver"
	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/log"
	"github.com/redis/go-redis/v9"
)

// Row caps per tier. Free-SQL and builder queries share the large cap;
// browsing tools stay small.
const (
	maxSampleRows = 25
	maxPluckRows  = 1000
	maxRecentRows = 50
	maxSQLRows    = 10000
)

// aggregateFunctions is the closed set the aggregate tool accepts.
var aggregateFunctions = map[string]string{
	"sum":     "SUM",
	"average": "AVG",
	"minimum": "MIN",
	"maximum": "MAX",
}

// Server is the embedded console: every tool runs against the live
// application database through the safety pipeline. The bridge variant
// forwards the same tool names to an out-of-process runtime instead.
type Server struct {
	validator *ModelValidator
	safe      *SafeContext
	sql       *SqlValidator
	confirm   *Confirmation
	audit     *AuditLogger
	redacted  map[string]bool
	redis     *redis.Client
	logger    *log.Logger
}

// ServerOption is a functional option for NewServer.
type ServerOption func(*Server)

// WithRedis attaches a redis client for the operational tools.
func WithRedis(client *redis.Client) ServerOption {
	return func(s *Server) { s.redis = client }
}

// WithConfirmation sets the confirmation gate for guarded tools.
func WithConfirmation(c *Confirmation) ServerOption {
	return func(s *Server) { s.confirm = c }
}

// WithAuditLogger sets the audit log.
func WithAuditLogger(a *AuditLogger) ServerOption {
	return func(s *Server) { s.audit = a }
}

// WithRedactedColumns sets the column names blanked in returned records.
func WithRedactedColumns(columns []string) ServerOption {
	return func(s *Server) {
		s.redacted = make(map[string]bool, len(columns))
		for _, c := range columns {
			s.redacted[c] = true
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates the embedded console server.
func NewServer(validator *ModelValidator, safe *SafeContext, opts ...ServerOption) *Server {
	s := &Server{
		validator: validator,
		safe:      safe,
		sql:       NewSqlValidator(),
		confirm:   NewConfirmation(ModeAutoDeny),
		audit:     NewAuditLogger(""),
		redacted:  map[string]bool{},
		logger:    log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServerFromConsoleConfig applies a loaded console config file.
func NewServerFromConsoleConfig(validator *ModelValidator, safe *SafeContext, cfg config.ConsoleConfig, opts ...ServerOption) *Server {
	base := []ServerOption{
		WithConfirmation(NewConfirmation(ConfirmationMode(cfg.ConfirmationMode))),
		WithRedactedColumns(cfg.RedactedColumns),
	}
	return NewServer(validator, safe, append(base, opts...)...)
}

// Registry builds the tool registry with all four tiers registered.
func (s *Server) Registry(opts ...toolserver.RegistryOption) *toolserver.Registry {
	registry := toolserver.NewRegistry(opts...)
	s.registerTier1(registry)
	s.registerTier2(registry)
	s.registerTier3(registry)
	s.registerTier4(registry)
	return registry
}

// audited wraps a handler so every call lands in the audit log with its
// outcome, confirmed or not.
func (s *Server) audited(tool string, confirmed bool, handler toolserver.Handler) toolserver.Handler {
	return func(ctx context.Context, params map[string]any) (any, error) {
		result, err := handler(ctx, params)
		summary := "ok"
		if err != nil {
			summary = "error: " + err.Error()
		}
		if auditErr := s.audit.Record(tool, params, confirmed, summary); auditErr != nil {
			s.logger.Warn("audit append failed", "tool", tool, "error", auditErr)
		}
		return result, err
	}
}

func (s *Server) registerTier1(registry *toolserver.Registry) {
	modelProp := toolserver.Property{Type: "string", Description: "Model name"}

	registry.Register(toolserver.Tool{
		Name:        "count",
		Description: "Count records of a model",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{"model": modelProp},
			Required:   []string{"model"},
		},
		Handler: s.audited("count", false, s.handleCount),
	})

	registry.Register(toolserver.Tool{
		Name:        "sample",
		Description: "Fetch a few random records of a model",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{
				"model": modelProp,
				"limit": {Type: "integer", Description: "Max rows, capped at 25"},
			},
			Required: []string{"model"},
		},
		Handler: s.audited("sample", false, s.handleSample),
	})

	registry.Register(toolserver.Tool{
		Name:        "find",
		Description: "Find one record by primary key or a unique column",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{
				"model":  modelProp,
				"id":     {Type: "integer", Description: "Primary key"},
				"column": {Type: "string", Description: "Unique column to match instead of the pk"},
				"value":  {Type: "string", Description: "Value for column"},
			},
			Required: []string{"model"},
		},
		Handler: s.audited("find", false, s.handleFind),
	})

	registry.Register(toolserver.Tool{
		Name:        "pluck",
		Description: "Project selected columns from a model",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{
				"model":    modelProp,
				"columns":  {Type: "array", Description: "Columns to project"},
				"limit":    {Type: "integer", Description: "Max rows, capped at 1000"},
				"distinct": {Type: "boolean"},
			},
			Required: []string{"model", "columns"},
		},
		Handler: s.audited("pluck", false, s.handlePluck),
	})

	registry.Register(toolserver.Tool{
		Name:        "aggregate",
		Description: "Aggregate a numeric column",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{
				"model":    modelProp,
				"function": {Type: "string", Enum: []string{"sum", "average", "minimum", "maximum"}},
				"column":   {Type: "string"},
			},
			Required: []string{"model", "function", "column"},
		},
		Handler: s.audited("aggregate", false, s.handleAggregate),
	})

	registry.Register(toolserver.Tool{
		Name:        "association_count",
		Description: "Count associated records of one record",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{
				"model":       modelProp,
				"id":          {Type: "integer", Description: "Primary key of the owning record"},
				"association": {Type: "string"},
			},
			Required: []string{"model", "id", "association"},
		},
		Handler: s.audited("association_count", false, s.handleAssociationCount),
	})

	registry.Register(toolserver.Tool{
		Name:        "schema",
		Description: "Describe a model's columns",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{
				"model":   modelProp,
				"indexes": {Type: "boolean", Description: "Include index list"},
			},
			Required: []string{"model"},
		},
		Handler: s.audited("schema", false, s.handleSchema),
	})

	registry.Register(toolserver.Tool{
		Name:        "recent",
		Description: "Fetch the most recent records of a model",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{
				"model":     modelProp,
				"order_by":  {Type: "string", Description: "Column to order by (default created_at)"},
				"direction": {Type: "string", Enum: []string{"asc", "desc"}},
				"limit":     {Type: "integer", Description: "Max rows, capped at 50"},
			},
			Required: []string{"model"},
		},
		Handler: s.audited("recent", false, s.handleRecent),
	})

	registry.Register(toolserver.Tool{
		Name:        "status",
		Description: "Adapter name and known models",
		Schema:      toolserver.Schema{},
		Handler: s.audited("status", false, func(ctx context.Context, params map[string]any) (any, error) {
			return map[string]any{
				"adapter": "embedded",
				"models":  s.validator.Models(),
			}, nil
		}),
	})
}

func (s *Server) handleCount(ctx context.Context, params map[string]any) (any, error) {
	model, _ := params["model"].(string)
	table, err := s.tableFor(model)
	if err != nil {
		return nil, err
	}
	var count int64
	err = s.safe.Execute(ctx, func(tx *gorm.DB) error {
		return tx.Table(table).Count(&count).Error
	})
	if err != nil {
		return nil, toolserver.WrapError(toolserver.KindExecution, err)
	}
	return map[string]any{"model": model, "count": count}, nil
}

func (s *Server) handleSample(ctx context.Context, params map[string]any) (any, error) {
	model, _ := params["model"].(string)
	table, err := s.tableFor(model)
	if err != nil {
		return nil, err
	}
	limit := capLimit(params, maxSampleRows)

	var rows []map[string]any
	err = s.safe.Execute(ctx, func(tx *gorm.DB) error {
		return scanRows(tx.Table(table).Order(randomOrder(tx)).Limit(limit), &rows)
	})
	if err != nil {
		return nil, toolserver.WrapError(toolserver.KindExecution, err)
	}
	return map[string]any{"model": model, "records": s.redact(rows)}, nil
}

func (s *Server) handleFind(ctx context.Context, params map[string]any) (any, error) {
	model, _ := params["model"].(string)
	table, err := s.tableFor(model)
	if err != nil {
		return nil, err
	}

	query := func(tx *gorm.DB) *gorm.DB {
		return tx.Table(table).Where("id = ?", intParam(params, "id", 0))
	}
	if column, ok := params["column"].(string); ok && column != "" {
		if err := s.validator.ValidateColumn(model, column); err != nil {
			return nil, err
		}
		value := params["value"]
		query = func(tx *gorm.DB) *gorm.DB {
			return tx.Table(table).Where(fmt.Sprintf("%s = ?", column), value)
		}
	} else if _, ok := params["id"]; !ok {
		return nil, toolserver.NewError(toolserver.KindValidation, "find requires id or column+value")
	}

	var rows []map[string]any
	err = s.safe.Execute(ctx, func(tx *gorm.DB) error {
		return scanRows(query(tx).Limit(1), &rows)
	})
	if err != nil {
		return nil, toolserver.WrapError(toolserver.KindExecution, err)
	}
	if len(rows) == 0 {
		return nil, toolserver.Errorf(toolserver.KindValidation, "no %s matched", model)
	}
	return map[string]any{"model": model, "record": s.redact(rows)[0]}, nil
}

func (s *Server) handlePluck(ctx context.Context, params map[string]any) (any, error) {
	model, _ := params["model"].(string)
	table, err := s.tableFor(model)
	if err != nil {
		return nil, err
	}
	columns := stringList(params["columns"])
	if len(columns) == 0 {
		return nil, toolserver.NewError(toolserver.KindValidation, "pluck requires at least one column")
	}
	if err := s.validator.ValidateColumns(model, columns); err != nil {
		return nil, err
	}
	limit := capLimit(params, maxPluckRows)
	distinct, _ := params["distinct"].(bool)

	var rows []map[string]any
	err = s.safe.Execute(ctx, func(tx *gorm.DB) error {
		q := tx.Table(table).Select(columns).Limit(limit)
		if distinct {
			q = q.Distinct()
		}
		return scanRows(q, &rows)
	})
	if err != nil {
		return nil, toolserver.WrapError(toolserver.KindExecution, err)
	}
	return map[string]any{"model": model, "columns": columns, "rows": s.redact(rows)}, nil
}

func (s *Server) handleAggregate(ctx context.Context, params map[string]any) (any, error) {
	model, _ := params["model"].(string)
	table, err := s.tableFor(model)
	if err != nil {
		return nil, err
	}
	column, _ := params["column"].(string)
	if err := s.validator.ValidateColumn(model, column); err != nil {
		return nil, err
	}
	function, _ := params["function"].(string)
	sqlFn, ok := aggregateFunctions[function]
	if !ok {
		return nil, toolserver.Errorf(toolserver.KindValidation, "unknown aggregate function: %s", function)
	}

	var value *float64
	err = s.safe.Execute(ctx, func(tx *gorm.DB) error {
		return tx.Table(table).
			Select(fmt.Sprintf("%s(%s)", sqlFn, column)).
			Scan(&value).Error
	})
	if err != nil {
		return nil, toolserver.WrapError(toolserver.KindExecution, err)
	}
	return map[string]any{"model": model, "function": function, "column": column, "value": value}, nil
}

func (s *Server) handleAssociationCount(ctx context.Context, params map[string]any) (any, error) {
	model, _ := params["model"].(string)
	association, _ := params["association"].(string)
	if err := s.validator.ValidateAssociation(model, association); err != nil {
		return nil, err
	}
	info, ok := s.validator.AssociationInfo(model, association)
	if !ok || info.Table == "" || info.ForeignKey == "" {
		return nil, toolserver.Errorf(toolserver.KindUnsupported,
			"association %s.%s has no table/foreign_key metadata", model, association)
	}

	id := intParam(params, "id", 0)
	var count int64
	err := s.safe.Execute(ctx, func(tx *gorm.DB) error {
		return tx.Table(info.Table).
			Where(fmt.Sprintf("%s = ?", info.ForeignKey), id).
			Count(&count).Error
	})
	if err != nil {
		return nil, toolserver.WrapError(toolserver.KindExecution, err)
	}
	return map[string]any{"model": model, "association": association, "id": id, "count": count}, nil
}

func (s *Server) handleSchema(ctx context.Context, params map[string]any) (any, error) {
	model, _ := params["model"].(string)
	if err := s.validator.ValidateModel(model); err != nil {
		return nil, err
	}
	result := map[string]any{
		"model":   model,
		"columns": s.validator.Columns(model),
	}
	if include, _ := params["indexes"].(bool); include {
		// Index introspection needs dialect catalogs the embedded adapter
		// does not query; the bridge adapter reports them.
		result["indexes"] = []string{}
	}
	return result, nil
}

func (s *Server) handleRecent(ctx context.Context, params map[string]any) (any, error) {
	model, _ := params["model"].(string)
	table, err := s.tableFor(model)
	if err != nil {
		return nil, err
	}
	orderBy := "created_at"
	if col, ok := params["order_by"].(string); ok && col != "" {
		orderBy = col
	}
	if err := s.validator.ValidateColumn(model, orderBy); err != nil {
		return nil, err
	}
	direction := "desc"
	if d, ok := params["direction"].(string); ok && d != "" {
		direction = d
	}
	limit := capLimit(params, maxRecentRows)

	var rows []map[string]any
	err = s.safe.Execute(ctx, func(tx *gorm.DB) error {
		return scanRows(tx.Table(table).
			Order(fmt.Sprintf("%s %s", orderBy, direction)).
			Limit(limit), &rows)
	})
	if err != nil {
		return nil, toolserver.WrapError(toolserver.KindExecution, err)
	}
	return map[string]any{"model": model, "records": s.redact(rows)}, nil
}

func (s *Server) tableFor(model string) (string, error) {
	if err := s.validator.ValidateModel(model); err != nil {
		return "", err
	}
	table, ok := s.validator.TableFor(model)
	if !ok {
		return "", toolserver.Errorf(toolserver.KindUnsupported, "no table metadata for model %s", model)
	}
	return table, nil
}

// redact replaces configured column values with the redaction literal.
func (s *Server) redact(rows []map[string]any) []map[string]any {
	if len(s.redacted) == 0 {
		return rows
	}
	for _, row := range rows {
		for column := range row {
			if s.redacted[column] {
				row[column] = "[REDACTED]"
			}
		}
	}
	return rows
}

// randomOrder returns the dialect's random sort expression.
func randomOrder(tx *gorm.DB) string {
	if tx.Dialector.Name() == "mysql" {
		return "RAND()"
	}
	return "RANDOM()"
}

// scanRows runs the query and decodes each row into a generic map.
func scanRows(q *gorm.DB, out *[]map[string]any) error {
	var rows []map[string]any
	if err := q.Find(&rows).Error; err != nil {
		return err
	}
	*out = rows
	return nil
}

func capLimit(params map[string]any, max int) int {
	limit := intParam(params, "limit", max)
	if limit <= 0 || limit > max {
		limit = max
	}
	return limit
}

func intParam(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func stringList(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
