package console

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/codescope/codescope/domain/store"
	"github.com/codescope/codescope/domain/unit"
	"github.com/codescope/codescope/infrastructure/toolserver"
)

// ModelValidator holds a pre-computed registry of known model names,
// columns, and associations, and rejects anything outside it before a
// query is built.
// AssociationDetail describes one association well enough to query it:
// the associated table and the foreign key pointing back at the owner.
type AssociationDetail struct {
	Table      string
	ForeignKey string
}

type ModelValidator struct {
	columns      map[string][]string
	associations map[string][]string
	scopes       map[string][]string
	assocDetails map[string]map[string]AssociationDetail
	tables       map[string]string
}

// NewModelValidator creates a validator over an explicit registry mapping
// model name to its column list.
func NewModelValidator(columns map[string][]string, associations map[string][]string) *ModelValidator {
	if columns == nil {
		columns = map[string][]string{}
	}
	if associations == nil {
		associations = map[string][]string{}
	}
	return &ModelValidator{
		columns:      columns,
		associations: associations,
		scopes:       map[string][]string{},
		assocDetails: map[string]map[string]AssociationDetail{},
		tables:       map[string]string{},
	}
}

// BuildModelValidator derives the registry from the extracted model units:
// columns from metadata.columns, associations from metadata.associations,
// table names from metadata.table_name.
func BuildModelValidator(ctx context.Context, metadata store.MetadataStore) (*ModelValidator, error) {
	models, err := metadata.FindByType(ctx, unit.TypeModel)
	if err != nil {
		return nil, fmt.Errorf("load model registry: %w", err)
	}

	columns := make(map[string][]string, len(models))
	associations := make(map[string][]string, len(models))
	scopes := make(map[string][]string, len(models))
	details := make(map[string]map[string]AssociationDetail, len(models))
	tables := make(map[string]string, len(models))
	for _, m := range models {
		columns[m.Identifier] = metadataNames(m.Metadata, "columns")
		associations[m.Identifier] = metadataNames(m.Metadata, "associations")
		scopes[m.Identifier] = metadataNames(m.Metadata, "scopes")
		details[m.Identifier] = associationDetails(m.Metadata)
		if table, ok := m.Metadata["table_name"].(string); ok {
			tables[m.Identifier] = table
		}
	}
	v := NewModelValidator(columns, associations)
	v.scopes = scopes
	v.assocDetails = details
	v.tables = tables
	return v, nil
}

// AssociationInfo returns the queryable detail for an association when the
// extraction metadata carried table and foreign-key names.
func (v *ModelValidator) AssociationInfo(model, association string) (AssociationDetail, bool) {
	detail, ok := v.assocDetails[model][association]
	return detail, ok
}

// associationDetails parses association objects of the form
// {name, table, foreign_key}; plain-string associations yield no detail.
func associationDetails(metadata map[string]any) map[string]AssociationDetail {
	raw, ok := metadata["associations"].([]any)
	if !ok {
		return nil
	}
	details := make(map[string]AssociationDetail)
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := obj["name"].(string)
		if name == "" {
			continue
		}
		table, _ := obj["table"].(string)
		fk, _ := obj["foreign_key"].(string)
		details[name] = AssociationDetail{Table: table, ForeignKey: fk}
	}
	return details
}

// TableFor returns the database table backing model, when known.
func (v *ModelValidator) TableFor(model string) (string, bool) {
	table, ok := v.tables[model]
	return table, ok
}

// Models returns the known model names, sorted.
func (v *ModelValidator) Models() []string {
	names := make([]string, 0, len(v.columns))
	for name := range v.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateModel returns a validation error naming the available models
// when model is unknown.
func (v *ModelValidator) ValidateModel(model string) error {
	if _, ok := v.columns[model]; ok {
		return nil
	}
	return toolserver.Errorf(toolserver.KindValidation,
		"Unknown model: %s. Available: %s", model, strings.Join(v.Models(), ", "))
}

// ValidateColumn checks that column exists on model.
func (v *ModelValidator) ValidateColumn(model, column string) error {
	if err := v.ValidateModel(model); err != nil {
		return err
	}
	for _, known := range v.columns[model] {
		if known == column {
			return nil
		}
	}
	return toolserver.Errorf(toolserver.KindValidation,
		"Unknown column: %s.%s. Available: %s", model, column, strings.Join(v.columns[model], ", "))
}

// ValidateColumns checks every column in the list.
func (v *ModelValidator) ValidateColumns(model string, columns []string) error {
	for _, column := range columns {
		if err := v.ValidateColumn(model, column); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAssociation checks that association is declared on model.
func (v *ModelValidator) ValidateAssociation(model, association string) error {
	if err := v.ValidateModel(model); err != nil {
		return err
	}
	for _, known := range v.associations[model] {
		if known == association {
			return nil
		}
	}
	return toolserver.Errorf(toolserver.KindValidation,
		"Unknown association: %s.%s. Available: %s", model, association, strings.Join(v.associations[model], ", "))
}

// ValidateScope checks that scope is a named scope declared on model.
func (v *ModelValidator) ValidateScope(model, scope string) error {
	if err := v.ValidateModel(model); err != nil {
		return err
	}
	for _, known := range v.scopes[model] {
		if known == scope {
			return nil
		}
	}
	return toolserver.Errorf(toolserver.KindValidation,
		"Unknown scope: %s.%s. Available: %s", model, scope, strings.Join(v.scopes[model], ", "))
}

// Columns returns the column list of model.
func (v *ModelValidator) Columns(model string) []string {
	out := make([]string, len(v.columns[model]))
	copy(out, v.columns[model])
	return out
}

// metadataNames extracts a list of names from a metadata key. The value
// may be a plain list of strings or a list of {name: ...} objects.
func metadataNames(metadata map[string]any, key string) []string {
	raw, ok := metadata[key]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		if strs, ok := raw.([]string); ok {
			return strs
		}
		return nil
	}
	names := make([]string, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case string:
			names = append(names, v)
		case map[string]any:
			if name, ok := v["name"].(string); ok {
				names = append(names, name)
			}
		}
	}
	return names
}
