package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// QuerySpec is a structured, read-only query against a single table.
// Only Table is required; absent parts are left nil.
type QuerySpec struct {
	ConnectionID string       `json:"connectionId,omitempty"`
	Table        string       `json:"table" validate:"required,identifier"`
	Select       Columns      `json:"select,omitempty" validate:"omitempty,dive,identifier|eq=*"`
	Where        Filters      `json:"where,omitempty" validate:"omitempty,dive"`
	GroupBy      Columns      `json:"groupBy,omitempty" validate:"omitempty,dive,identifier"`
	OrderBy      OrderTerms   `json:"orderBy,omitempty" validate:"omitempty,dive"`
	Limit        *int         `json:"limit,omitempty" validate:"omitempty,gte=0"`
	Offset       *int         `json:"offset,omitempty" validate:"omitempty,gte=0"`
	Aggregation  Aggregations `json:"aggregation,omitempty" validate:"omitempty,dive"`
}

// Filter is one predicate; predicates in a QuerySpec are ANDed.
type Filter struct {
	Column   string `json:"column" validate:"required,identifier"`
	Operator string `json:"operator" validate:"required,sqlop"`
	Value    any    `json:"value,omitempty"`
}

// OrderTerm sorts by a column or an aggregate alias.
type OrderTerm struct {
	Column    string `json:"column" validate:"required,identifier"`
	Direction string `json:"direction,omitempty" validate:"omitempty,sortdir"`
}

// Aggregation applies an aggregate function to a column. Column may be "*" for COUNT.
type Aggregation struct {
	Function string `json:"function" validate:"required,aggfunc"`
	Column   string `json:"column" validate:"required,identifier|eq=*"`
	Alias    string `json:"alias,omitempty" validate:"omitempty,identifier"`
}

// QueryResult is what a query returns to the dashboard.
type QueryResult struct {
	Columns    []ColumnInfo     `json:"columns"`
	Rows       []map[string]any `json:"rows"`
	RowCount   int              `json:"rowCount"`
	SQL        string           `json:"sql"`
	DurationMs int64            `json:"durationMs"`
}

// ColumnInfo describes a result column.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Columns accepts ["a","b"] or "a, b".
type Columns []string

func (c *Columns) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*c = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = nil
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				*c = append(*c, part)
			}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected a column name or a list of column names")
	}
	*c = list
	return nil
}

// Filters accepts a list of filter objects, or an object keyed by column:
//
//	{"status": "active", "amount": {"operator": ">", "value": 10}, "region": ["EU", "US"]}
//
// Plain values become "=", arrays become "IN" and null becomes "IS NULL".
type Filters []Filter

func (f *Filters) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*f = nil
		return nil
	}

	switch data[0] {
	case '[':
		var list []Filter
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*f = list
		return nil
	case '{':
		var byColumn map[string]json.RawMessage
		if err := json.Unmarshal(data, &byColumn); err != nil {
			return err
		}
		columns := make([]string, 0, len(byColumn))
		for col := range byColumn {
			columns = append(columns, col)
		}
		sort.Strings(columns)

		list := make([]Filter, 0, len(columns))
		for _, col := range columns {
			filter, err := filterFromShorthand(col, byColumn[col])
			if err != nil {
				return err
			}
			list = append(list, filter)
		}
		*f = list
		return nil
	default:
		return fmt.Errorf("where must be a list of filters or an object keyed by column")
	}
}

func filterFromShorthand(column string, raw json.RawMessage) (Filter, error) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return Filter{Column: column, Operator: "IS NULL"}, nil
	}
	if raw[0] == '{' {
		var f Filter
		if err := json.Unmarshal(raw, &f); err != nil {
			return Filter{}, err
		}
		f.Column = column
		return f, nil
	}

	value, err := decodeValue(raw)
	if err != nil {
		return Filter{}, err
	}
	if _, ok := value.([]any); ok {
		return Filter{Column: column, Operator: "IN", Value: value}, nil
	}
	return Filter{Column: column, Operator: "=", Value: value}, nil
}

func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw struct {
		Column   string          `json:"column"`
		Field    string          `json:"field"`
		Operator string          `json:"operator"`
		Op       string          `json:"op"`
		Value    json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.Column = firstNonEmpty(raw.Column, raw.Field)
	f.Operator = strings.ToUpper(strings.TrimSpace(firstNonEmpty(raw.Operator, raw.Op)))
	if f.Operator == "" {
		f.Operator = "="
	}
	f.Value = nil
	if len(raw.Value) > 0 {
		value, err := decodeValue(raw.Value)
		if err != nil {
			return err
		}
		f.Value = value
	}
	return nil
}

// OrderTerms accepts "col", "col DESC", "-col", objects, or a list of any of these.
type OrderTerms []OrderTerm

func (o *OrderTerms) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*o = nil
		return nil
	}
	if data[0] != '[' {
		data = append(append([]byte{'['}, data...), ']')
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	terms := make([]OrderTerm, 0, len(items))
	for _, item := range items {
		var term OrderTerm
		if err := json.Unmarshal(item, &term); err != nil {
			return err
		}
		terms = append(terms, term)
	}
	*o = terms
	return nil
}

func (t *OrderTerm) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = parseOrderString(s)
		return nil
	}

	var raw struct {
		Column    string `json:"column"`
		Field     string `json:"field"`
		Direction string `json:"direction"`
		Dir       string `json:"dir"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("orderBy entries must be strings or objects")
	}
	t.Column = firstNonEmpty(raw.Column, raw.Field)
	t.Direction = strings.ToUpper(strings.TrimSpace(firstNonEmpty(raw.Direction, raw.Dir)))
	return nil
}

func parseOrderString(s string) OrderTerm {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return OrderTerm{Column: strings.TrimSpace(s[1:]), Direction: "DESC"}
	}
	fields := strings.Fields(s)
	switch len(fields) {
	case 0:
		return OrderTerm{}
	case 1:
		return OrderTerm{Column: fields[0]}
	default:
		return OrderTerm{Column: fields[0], Direction: strings.ToUpper(fields[len(fields)-1])}
	}
}

// Aggregations accepts a single aggregation object or a list of them.
type Aggregations []Aggregation

func (a *Aggregations) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*a = nil
		return nil
	}
	if data[0] == '{' {
		var single Aggregation
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*a = []Aggregation{single}
		return nil
	}
	var list []Aggregation
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("aggregation must be an object or a list of objects")
	}
	*a = list
	return nil
}

func (a *Aggregation) UnmarshalJSON(data []byte) error {
	var raw struct {
		Function string `json:"function"`
		Type     string `json:"type"`
		Column   string `json:"column"`
		Field    string `json:"field"`
		Alias    string `json:"alias"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.Function = strings.ToUpper(strings.TrimSpace(firstNonEmpty(raw.Function, raw.Type)))
	a.Column = firstNonEmpty(raw.Column, raw.Field)
	if a.Column == "" && a.Function == "COUNT" {
		a.Column = "*"
	}
	a.Alias = raw.Alias
	return nil
}

// decodeValue keeps integers as int64 so drivers bind them with integer types.
func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeNumbers(v), nil
}

func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case []any:
		for i := range val {
			val[i] = normalizeNumbers(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = normalizeNumbers(val[k])
		}
		return val
	default:
		return v
	}
}

func isNull(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) == 0 || bytes.Equal(data, []byte("null"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
