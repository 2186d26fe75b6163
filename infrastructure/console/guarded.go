package console

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/codescope/codescope/infrastructure/toolserver"
)

// tier2Tools are the domain-aware composites. The embedded adapter cannot
// run application code, so they answer unsupported until the bridge is in
// use; registering them anyway keeps the tool surface identical in both
// modes.
var tier2Tools = []string{
	"diagnose_model", "data_snapshot", "validate_record", "check_setting",
	"update_setting", "check_policy", "validate_with", "check_eligibility",
	"decorate",
}

func (s *Server) registerTier2(registry *toolserver.Registry) {
	for _, name := range tier2Tools {
		registry.Register(toolserver.Tool{
			Name:        name,
			Description: "Domain composite (bridge adapter only)",
			Schema: toolserver.Schema{
				Properties: map[string]toolserver.Property{
					"model":  {Type: "string"},
					"id":     {Type: "integer"},
					"name":   {Type: "string"},
					"params": {Type: "object"},
				},
			},
			Handler: s.audited(name, false, func(ctx context.Context, params map[string]any) (any, error) {
				return nil, toolserver.Errorf(toolserver.KindUnsupported,
					"%s requires the bridge adapter", name)
			}),
		})
	}
}

func (s *Server) registerTier4(registry *toolserver.Registry) {
	registry.Register(toolserver.Tool{
		Name:        "eval",
		Description: "Evaluate an expression in the application runtime (requires confirmation)",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{
				"code": {Type: "string"},
			},
			Required: []string{"code"},
		},
		Handler: s.handleEval,
	})

	registry.Register(toolserver.Tool{
		Name:        "sql",
		Description: "Run a read-only SQL statement",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{
				"sql":   {Type: "string"},
				"limit": {Type: "integer", Description: "Max rows, capped at 10000"},
			},
			Required: []string{"sql"},
		},
		Handler: s.handleSQL,
	})

	registry.Register(toolserver.Tool{
		Name:        "query",
		Description: "Run a structured read-only query",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{
				"model":    {Type: "string"},
				"select":   {Type: "array"},
				"joins":    {Type: "array", Description: "Association names to join"},
				"where":    {Type: "object"},
				"group_by": {Type: "array"},
				"having":   {Type: "string"},
				"order":    {Type: "string"},
				"scope":    {Type: "string", Description: "Named scope (bridge adapter only)"},
				"limit":    {Type: "integer", Description: "Max rows, capped at 10000"},
			},
			Required: []string{"model"},
		},
		Handler: s.handleQuery,
	})
}

// handleEval confirms and audits, then reports unsupported: the embedded
// adapter has no application runtime to evaluate in. The bridge adapter
// forwards confirmed eval calls to the live process.
func (s *Server) handleEval(ctx context.Context, params map[string]any) (any, error) {
	code, _ := params["code"].(string)
	if err := s.confirm.Confirm("eval", params, "evaluate: "+code); err != nil {
		_ = s.audit.Record("eval", params, false, "denied")
		return nil, err
	}
	_ = s.audit.Record("eval", params, true, "unsupported in embedded mode")
	return nil, toolserver.NewError(toolserver.KindUnsupported, "eval requires the bridge adapter")
}

// handleSQL validates the statement, then runs it read-only with the row
// cap applied during the scan.
func (s *Server) handleSQL(ctx context.Context, params map[string]any) (any, error) {
	raw, _ := params["sql"].(string)
	if err := s.sql.Validate(raw); err != nil {
		_ = s.audit.Record("sql", params, false, "rejected: "+err.Error())
		return nil, err
	}
	limit := capLimit(params, maxSQLRows)

	var rows []map[string]any
	err := s.safe.Execute(ctx, func(tx *gorm.DB) error {
		result, err := tx.Raw(raw).Rows()
		if err != nil {
			return err
		}
		defer result.Close()

		columns, err := result.Columns()
		if err != nil {
			return err
		}
		for result.Next() && len(rows) < limit {
			values := make([]any, len(columns))
			pointers := make([]any, len(columns))
			for i := range values {
				pointers[i] = &values[i]
			}
			if err := result.Scan(pointers...); err != nil {
				return err
			}
			row := make(map[string]any, len(columns))
			for i, col := range columns {
				if b, ok := values[i].([]byte); ok {
					row[col] = string(b)
				} else {
					row[col] = values[i]
				}
			}
			rows = append(rows, row)
		}
		return result.Err()
	})
	if err != nil {
		_ = s.audit.Record("sql", params, false, "error: "+err.Error())
		return nil, toolserver.WrapError(toolserver.KindExecution, err)
	}

	_ = s.audit.Record("sql", params, false, fmt.Sprintf("%d rows", len(rows)))
	return map[string]any{"rows": s.redact(rows), "row_count": len(rows)}, nil
}

// handleQuery builds a validated query from structured parts. Every
// referenced column must be in the model's registry; order and having are
// restricted to registry columns plus a direction keyword.
func (s *Server) handleQuery(ctx context.Context, params map[string]any) (any, error) {
	model, _ := params["model"].(string)
	table, err := s.tableFor(model)
	if err != nil {
		return nil, err
	}

	selected := stringList(params["select"])
	if err := s.validator.ValidateColumns(model, selected); err != nil {
		return nil, err
	}
	groupBy := stringList(params["group_by"])
	if err := s.validator.ValidateColumns(model, groupBy); err != nil {
		return nil, err
	}

	// Joins are restricted to declared associations whose extraction
	// metadata carried the joined table and foreign key.
	var joinClauses []string
	for _, association := range stringList(params["joins"]) {
		if err := s.validator.ValidateAssociation(model, association); err != nil {
			return nil, err
		}
		info, ok := s.validator.AssociationInfo(model, association)
		if !ok || info.Table == "" || info.ForeignKey == "" {
			return nil, toolserver.Errorf(toolserver.KindUnsupported,
				"association %s.%s has no table/foreign_key metadata", model, association)
		}
		joinClauses = append(joinClauses,
			fmt.Sprintf("JOIN %s ON %s.%s = %s.id", info.Table, info.Table, info.ForeignKey, table))
	}

	// Named scopes are application code. The embedded adapter validates the
	// name so typos surface as validation errors, then reports unsupported;
	// the bridge adapter runs the scope in the live process.
	if scope, ok := params["scope"].(string); ok && scope != "" {
		if err := s.validator.ValidateScope(model, scope); err != nil {
			return nil, err
		}
		_ = s.audit.Record("query", params, false, "unsupported in embedded mode")
		return nil, toolserver.Errorf(toolserver.KindUnsupported,
			"scope %s.%s requires the bridge adapter", model, scope)
	}

	where, _ := params["where"].(map[string]any)
	for column := range where {
		if err := s.validator.ValidateColumn(model, column); err != nil {
			return nil, err
		}
	}

	var orderColumn, orderDirection string
	if order, ok := params["order"].(string); ok && order != "" {
		orderColumn, orderDirection, err = s.parseOrder(model, order)
		if err != nil {
			return nil, err
		}
	}

	having, _ := params["having"].(string)
	if having != "" {
		// Having clauses reuse the free-SQL rules; a fragment is as
		// dangerous as a full statement.
		if err := s.sql.checkBody(having); err != nil {
			return nil, err
		}
	}

	limit := capLimit(params, maxSQLRows)

	var rows []map[string]any
	err = s.safe.Execute(ctx, func(tx *gorm.DB) error {
		q := tx.Table(table).Limit(limit)
		if len(selected) > 0 {
			q = q.Select(selected)
		}
		for _, clause := range joinClauses {
			q = q.Joins(clause)
		}
		for column, value := range where {
			q = q.Where(fmt.Sprintf("%s = ?", column), value)
		}
		if len(groupBy) > 0 {
			q = q.Group(strings.Join(groupBy, ", "))
		}
		if having != "" {
			q = q.Having(having)
		}
		if orderColumn != "" {
			q = q.Order(fmt.Sprintf("%s %s", orderColumn, orderDirection))
		}
		return scanRows(q, &rows)
	})
	if err != nil {
		_ = s.audit.Record("query", params, false, "error: "+err.Error())
		return nil, toolserver.WrapError(toolserver.KindExecution, err)
	}

	_ = s.audit.Record("query", params, false, fmt.Sprintf("%d rows", len(rows)))
	return map[string]any{"model": model, "rows": s.redact(rows), "row_count": len(rows)}, nil
}

// parseOrder accepts "column" or "column asc|desc" with the column checked
// against the registry.
func (s *Server) parseOrder(model, order string) (column, direction string, err error) {
	fields := strings.Fields(order)
	switch len(fields) {
	case 1:
		column, direction = fields[0], "asc"
	case 2:
		column = fields[0]
		direction = strings.ToLower(fields[1])
		if direction != "asc" && direction != "desc" {
			return "", "", toolserver.Errorf(toolserver.KindValidation,
				"order direction must be asc or desc, got %s", fields[1])
		}
	default:
		return "", "", toolserver.NewError(toolserver.KindValidation, "order must be \"column [asc|desc]\"")
	}
	if err := s.validator.ValidateColumn(model, column); err != nil {
		return "", "", err
	}
	return column, direction, nil
}
