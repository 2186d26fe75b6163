package retrieval

import (
	"reflect"
	"testing"

	"github.com/codescope/codescope/domain/unit"
)

func TestClassify_Intents(t *testing.T) {
	tests := []struct {
		query string
		want  Intent
	}{
		{"where is tax calculated", IntentLocate},
		{"find the registration service", IntentLocate},
		{"which file defines the webhooks", IntentLocate},
		{"who calls UserRegistration", IntentTrace},
		{"what depends on the Payment model", IntentTrace},
		{"fix the broken invoice export", IntentDebug},
		{"there is a bug in checkout", IntentDebug},
		{"add a new controller action for exports", IntentImplement},
		{"how does activerecord handle callbacks", IntentFramework},
		{"list all public api endpoints", IntentReference},
		{"compare sync and async delivery", IntentCompare},
		{"user registration flow", IntentUnderstand},
	}
	classifier := NewClassifier()
	for _, tt := range tests {
		got := classifier.Classify(tt.query)
		if got.Intent != tt.want {
			t.Errorf("%q: expected intent %s, got %s", tt.query, tt.want, got.Intent)
		}
	}
}

func TestClassify_Scopes(t *testing.T) {
	tests := []struct {
		query string
		want  Scope
	}{
		{"just the User model", ScopePinpoint},
		{"exactly the create action", ScopePinpoint},
		{"all jobs touching invoices", ScopeComprehensive},
		{"everything related to payments", ScopeExploratory},
		{"user registration flow", ScopeFocused},
	}
	classifier := NewClassifier()
	for _, tt := range tests {
		got := classifier.Classify(tt.query)
		if got.Scope != tt.want {
			t.Errorf("%q: expected scope %s, got %s", tt.query, tt.want, got.Scope)
		}
	}
}

func TestClassify_TargetTypePriority(t *testing.T) {
	classifier := NewClassifier()

	got := classifier.Classify("the model behind the invoices controller")
	if got.TargetType != unit.TypeModel {
		t.Errorf("expected model to win on first-match priority, got %s", got.TargetType)
	}

	got = classifier.Classify("sidekiq worker for emails")
	if got.TargetType != unit.TypeJob {
		t.Errorf("expected job target, got %s", got.TargetType)
	}

	got = classifier.Classify("user registration")
	if got.TargetType != "" {
		t.Errorf("expected no target, got %s", got.TargetType)
	}
}

func TestClassify_FrameworkContext(t *testing.T) {
	classifier := NewClassifier()

	if !classifier.Classify("how does sidekiq retry jobs").FrameworkContext {
		t.Error("expected framework context for sidekiq")
	}
	if classifier.Classify("how do invoices expire").FrameworkContext {
		t.Error("expected no framework context")
	}
}

func TestClassify_Keywords(t *testing.T) {
	classifier := NewClassifier()

	got := classifier.Classify("How does the User model handle email validation?")
	want := []string{"user", "model", "handle", "email", "validation"}
	if !reflect.DeepEqual(got.Keywords, want) {
		t.Errorf("expected keywords %v, got %v", want, got.Keywords)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	classifier := NewClassifier()
	query := "trace everything related to Billing::Invoice"

	first := classifier.Classify(query)
	for range 5 {
		if next := classifier.Classify(query); !reflect.DeepEqual(first, next) {
			t.Fatal("classification is not deterministic")
		}
	}
}
