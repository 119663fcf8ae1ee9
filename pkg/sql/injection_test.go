package sql

import (
	"testing"

	"github.com/ekaya-inc/ekaya-gateway/pkg/models"
)

func TestCheckValueForInjection(t *testing.T) {
	tests := []struct {
		name            string
		value           any
		expectInjection bool
	}{
		{name: "clean string", value: "12345"},
		{name: "clean email", value: "user@example.com"},
		{name: "clean date", value: "2024-01-15"},
		{name: "clean uuid", value: "550e8400-e29b-41d4-a716-446655440000"},
		{name: "search term", value: "laptop computers"},
		{name: "integer", value: int64(100)},
		{name: "nil", value: nil},
		{name: "boolean", value: true},
		{name: "classic tautology", value: "' OR '1'='1", expectInjection: true},
		{name: "stacked drop", value: "'; DROP TABLE users--", expectInjection: true},
		{name: "union select", value: "1 UNION SELECT * FROM passwords", expectInjection: true},
		{name: "injection inside list", value: []any{"EU", "' OR 1=1--"}, expectInjection: true},
		{name: "clean list", value: []any{"EU", "US", int64(3)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckValueForInjection("col", tt.value)
			if tt.expectInjection && result == nil {
				t.Fatalf("expected injection to be detected for %v", tt.value)
			}
			if !tt.expectInjection && result != nil {
				t.Fatalf("unexpected injection result %+v", result)
			}
			if result != nil && result.Fingerprint == "" {
				t.Errorf("expected a fingerprint")
			}
		})
	}
}

func TestCheckFilters(t *testing.T) {
	filters := []models.Filter{
		{Column: "status", Operator: "=", Value: "active"},
		{Column: "name", Operator: "=", Value: "x' OR '1'='1"},
		{Column: "amount", Operator: ">", Value: int64(10)},
	}

	results := CheckFilters(filters)
	if len(results) != 1 {
		t.Fatalf("expected 1 flagged filter, got %d", len(results))
	}
	if results[0].Column != "name" {
		t.Errorf("expected name to be flagged, got %s", results[0].Column)
	}
}
