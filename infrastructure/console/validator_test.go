package console

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/codescope/codescope/domain/unit"
	"github.com/codescope/codescope/infrastructure/memstore"
	"github.com/codescope/codescope/infrastructure/toolserver"
)

func registryValidator() *ModelValidator {
	return NewModelValidator(
		map[string][]string{
			"User": {"id", "email", "created_at"},
			"Post": {"id", "title", "user_id"},
		},
		map[string][]string{
			"User": {"posts"},
		},
	)
}

func TestModelValidator_UnknownModelMessage(t *testing.T) {
	err := registryValidator().ValidateModel("Hacker")
	if err == nil {
		t.Fatal("expected a rejection")
	}
	var toolErr *toolserver.Error
	if !errors.As(err, &toolErr) || toolErr.Kind != toolserver.KindValidation {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if toolErr.Message != "Unknown model: Hacker. Available: Post, User" {
		t.Errorf("unexpected message %q", toolErr.Message)
	}
}

func TestModelValidator_Columns(t *testing.T) {
	v := registryValidator()

	if err := v.ValidateColumn("User", "email"); err != nil {
		t.Errorf("expected email accepted, got %v", err)
	}
	if err := v.ValidateColumn("User", "password_digest"); err == nil {
		t.Error("expected an unknown column rejected")
	}
	if err := v.ValidateColumns("Post", []string{"id", "title"}); err != nil {
		t.Errorf("expected columns accepted, got %v", err)
	}
	if err := v.ValidateColumns("Post", []string{"id", "secret"}); err == nil {
		t.Error("expected the bad column in the list rejected")
	}
}

func TestModelValidator_Associations(t *testing.T) {
	v := registryValidator()

	if err := v.ValidateAssociation("User", "posts"); err != nil {
		t.Errorf("expected posts accepted, got %v", err)
	}
	if err := v.ValidateAssociation("User", "payments"); err == nil {
		t.Error("expected an undeclared association rejected")
	}
	if err := v.ValidateAssociation("Ghost", "posts"); err == nil {
		t.Error("expected the unknown model rejected first")
	}
}

func TestModelValidator_ModelsSorted(t *testing.T) {
	want := []string{"Post", "User"}
	if got := registryValidator().Models(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestBuildModelValidator_FromMetadata(t *testing.T) {
	metadata := memstore.NewMetadataStore()
	ctx := context.Background()

	u := unit.ExtractedUnit{
		Type:       unit.TypeModel,
		Identifier: "User",
		Metadata: map[string]any{
			"table_name": "users",
			"columns":    []any{"id", "email"},
			"associations": []any{
				map[string]any{"name": "posts", "table": "posts", "foreign_key": "user_id"},
				"account",
			},
		},
	}
	if err := metadata.Store(ctx, u.Identifier, u); err != nil {
		t.Fatal(err)
	}
	// Non-model units never enter the registry.
	svc := unit.ExtractedUnit{Type: unit.TypeService, Identifier: "UserRegistration"}
	if err := metadata.Store(ctx, svc.Identifier, svc); err != nil {
		t.Fatal(err)
	}

	v, err := BuildModelValidator(ctx, metadata)
	if err != nil {
		t.Fatal(err)
	}

	if got := v.Models(); !reflect.DeepEqual(got, []string{"User"}) {
		t.Errorf("expected only User, got %v", got)
	}
	if err := v.ValidateColumn("User", "email"); err != nil {
		t.Errorf("expected email known, got %v", err)
	}
	if err := v.ValidateAssociation("User", "posts"); err != nil {
		t.Errorf("expected posts association known, got %v", err)
	}
	if err := v.ValidateAssociation("User", "account"); err != nil {
		t.Errorf("expected plain-string association known, got %v", err)
	}

	table, ok := v.TableFor("User")
	if !ok || table != "users" {
		t.Errorf("expected table users, got %q %v", table, ok)
	}

	detail, ok := v.AssociationInfo("User", "posts")
	if !ok || detail.Table != "posts" || detail.ForeignKey != "user_id" {
		t.Errorf("unexpected association detail %+v %v", detail, ok)
	}
	if _, ok := v.AssociationInfo("User", "account"); ok {
		t.Error("plain-string association must carry no detail")
	}
}
