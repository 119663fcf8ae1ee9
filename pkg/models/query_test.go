package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuerySpec_MinimalBodyLeavesOptionalPartsNil(t *testing.T) {
	var spec QuerySpec
	require.NoError(t, json.Unmarshal([]byte(`{"table":"orders","limit":10}`), &spec))

	assert.Equal(t, "orders", spec.Table)
	require.NotNil(t, spec.Limit)
	assert.Equal(t, 10, *spec.Limit)
	assert.Nil(t, spec.Select)
	assert.Nil(t, spec.Where)
	assert.Nil(t, spec.GroupBy)
	assert.Nil(t, spec.OrderBy)
	assert.Nil(t, spec.Offset)
	assert.Nil(t, spec.Aggregation)
}

func TestFilters_ListForm(t *testing.T) {
	var spec QuerySpec
	body := `{"table":"orders","where":[{"column":"amount","operator":">=","value":100},{"field":"status","op":"like","value":"ship%"}]}`
	require.NoError(t, json.Unmarshal([]byte(body), &spec))

	require.Len(t, spec.Where, 2)
	assert.Equal(t, Filter{Column: "amount", Operator: ">=", Value: int64(100)}, spec.Where[0])
	assert.Equal(t, Filter{Column: "status", Operator: "LIKE", Value: "ship%"}, spec.Where[1])
}

func TestFilters_ObjectShorthand(t *testing.T) {
	var spec QuerySpec
	body := `{"table":"orders","where":{"status":"active","region":["EU","US"],"deleted_at":null,"total":{"operator":"<","value":2.5}}}`
	require.NoError(t, json.Unmarshal([]byte(body), &spec))

	// keys are applied in sorted order
	assert.Equal(t, Filters{
		{Column: "deleted_at", Operator: "IS NULL"},
		{Column: "region", Operator: "IN", Value: []any{"EU", "US"}},
		{Column: "status", Operator: "=", Value: "active"},
		{Column: "total", Operator: "<", Value: 2.5},
	}, spec.Where)
}

func TestFilters_RejectsScalar(t *testing.T) {
	var spec QuerySpec
	assert.Error(t, json.Unmarshal([]byte(`{"table":"orders","where":5}`), &spec))
}

func TestOrderTerms_Forms(t *testing.T) {
	tests := []struct {
		name string
		body string
		want OrderTerms
	}{
		{"single string", `"created_at"`, OrderTerms{{Column: "created_at"}}},
		{"string with direction", `"created_at desc"`, OrderTerms{{Column: "created_at", Direction: "DESC"}}},
		{"dash prefix", `["-total","name"]`, OrderTerms{{Column: "total", Direction: "DESC"}, {Column: "name"}}},
		{"objects", `[{"column":"total","direction":"asc"}]`, OrderTerms{{Column: "total", Direction: "ASC"}}},
		{"single object", `{"field":"total","dir":"desc"}`, OrderTerms{{Column: "total", Direction: "DESC"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got OrderTerms
			require.NoError(t, json.Unmarshal([]byte(tt.body), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAggregations_SingleObjectAndCountDefault(t *testing.T) {
	var single Aggregations
	require.NoError(t, json.Unmarshal([]byte(`{"type":"sum","field":"amount","alias":"revenue"}`), &single))
	assert.Equal(t, Aggregations{{Function: "SUM", Column: "amount", Alias: "revenue"}}, single)

	var count Aggregations
	require.NoError(t, json.Unmarshal([]byte(`[{"function":"count"}]`), &count))
	assert.Equal(t, Aggregations{{Function: "COUNT", Column: "*"}}, count)
}

func TestColumns_CommaSeparatedString(t *testing.T) {
	var cols Columns
	require.NoError(t, json.Unmarshal([]byte(`"id, name ,email"`), &cols))
	assert.Equal(t, Columns{"id", "name", "email"}, cols)
}

func TestConnection_NeverSerializesConnectionString(t *testing.T) {
	data, err := json.Marshal(Connection{ID: "c1", ConnectionString: "postgres://u:secret@h/db"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
}

func TestDatabaseMetadata_FindTable(t *testing.T) {
	md := DatabaseMetadata{Tables: []TableMetadata{
		{Schema: "public", Name: "orders"},
		{Schema: "sales", Name: "Customers"},
	}}

	assert.Equal(t, "orders", md.FindTable("orders").Name)
	assert.Equal(t, "orders", md.FindTable("public.orders").Name)
	assert.Equal(t, "Customers", md.FindTable("customers").Name)
	assert.Nil(t, md.FindTable("missing"))
}
