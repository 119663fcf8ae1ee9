package testhelpers

import (
	"context"
	"testing"
)

func TestGetTestDB_FixtureLoaded(t *testing.T) {
	testDB := GetTestDB(t)

	ctx := context.Background()

	tests := []struct {
		table    string
		expected int
	}{
		{"sales.customers", 3},
		{"sales.orders", 5},
	}

	for _, tt := range tests {
		var count int
		if err := testDB.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+tt.table).Scan(&count); err != nil {
			t.Errorf("failed to count %s: %v", tt.table, err)
			continue
		}
		if count != tt.expected {
			t.Errorf("%s: expected %d rows, got %d", tt.table, tt.expected, count)
		}
	}
}
