package sql

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-gateway/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-gateway/pkg/models"
)

// MaxQueryLimit is the hard cap on rows a structured query may return.
const MaxQueryLimit = 1000

// Dialect renders the parts of a SELECT that differ between databases.
type Dialect interface {
	// Name identifies the dialect in logs ("postgres", "mssql", ...).
	Name() string

	// QuoteIdentifier quotes a single identifier part, escaping embedded quotes.
	QuoteIdentifier(name string) string

	// Placeholder returns the bind marker for the n-th parameter (1-based).
	Placeholder(n int) string

	// Paginate applies limit and offset to a complete SELECT.
	// ordered reports whether the query already has an ORDER BY.
	Paginate(query string, limit, offset int, ordered bool) string
}

// BuiltQuery is a compiled statement with its bind parameters.
type BuiltQuery struct {
	SQL    string
	Params []any
	Limit  int
}

// EffectiveLimit applies MaxQueryLimit: absent, zero or oversized limits become the cap.
func EffectiveLimit(limit *int) int {
	if limit == nil || *limit <= 0 || *limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return *limit
}

// Build validates spec and compiles it for dialect d.
//
// Identifiers are quoted, values are bound, and every statement is paginated.
// With aggregations the projection is the grouping columns followed by the
// aggregates; any plain select columns are grouped too so the SQL stays valid.
func Build(spec *models.QuerySpec, d Dialect) (*BuiltQuery, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}

	b := &builder{dialect: d}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(b.projection(spec))
	sb.WriteString(" FROM ")
	sb.WriteString(b.qualified(spec.Table))

	if len(spec.Where) > 0 {
		clauses := make([]string, 0, len(spec.Where))
		for _, f := range spec.Where {
			clause, err := b.predicate(f)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, clause)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(clauses, " AND "))
	}

	if groups := groupColumns(spec); len(groups) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(b.columnList(groups))
	}

	if len(spec.OrderBy) > 0 {
		terms := make([]string, 0, len(spec.OrderBy))
		for _, o := range spec.OrderBy {
			dir := strings.ToUpper(o.Direction)
			if dir == "" {
				dir = "ASC"
			}
			terms = append(terms, b.qualified(o.Column)+" "+dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(terms, ", "))
	}

	limit := EffectiveLimit(spec.Limit)
	offset := 0
	if spec.Offset != nil {
		offset = *spec.Offset
	}

	return &BuiltQuery{
		SQL:    d.Paginate(sb.String(), limit, offset, len(spec.OrderBy) > 0),
		Params: b.params,
		Limit:  limit,
	}, nil
}

type builder struct {
	dialect Dialect
	params  []any
}

func (b *builder) bind(v any) string {
	b.params = append(b.params, v)
	return b.dialect.Placeholder(len(b.params))
}

// qualified quotes each dot-separated part: sales.orders -> "sales"."orders".
func (b *builder) qualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = b.dialect.QuoteIdentifier(strings.TrimSpace(p))
	}
	return strings.Join(parts, ".")
}

func (b *builder) columnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = b.qualified(c)
	}
	return strings.Join(quoted, ", ")
}

func (b *builder) projection(spec *models.QuerySpec) string {
	if len(spec.Aggregation) == 0 {
		cols := plainColumns(spec.Select)
		if len(cols) == 0 {
			return "*"
		}
		return b.columnList(cols)
	}

	parts := make([]string, 0, len(spec.Aggregation)+len(spec.GroupBy))
	for _, c := range groupColumns(spec) {
		parts = append(parts, b.qualified(c))
	}
	for _, agg := range spec.Aggregation {
		fn := strings.ToUpper(agg.Function)
		arg := "*"
		if agg.Column != "*" {
			arg = b.qualified(agg.Column)
		}
		parts = append(parts, fmt.Sprintf("%s(%s) AS %s", fn, arg, b.dialect.QuoteIdentifier(AggregateAlias(agg))))
	}
	return strings.Join(parts, ", ")
}

func (b *builder) predicate(f models.Filter) (string, error) {
	col := b.qualified(f.Column)
	op := normalizeOperator(f.Operator)

	switch op {
	case "IS NULL", "IS NOT NULL":
		return col + " " + op, nil
	case "IN", "NOT IN":
		list, _ := f.Value.([]any)
		markers := make([]string, len(list))
		for i, v := range list {
			markers[i] = b.bind(v)
		}
		return fmt.Sprintf("%s %s (%s)", col, op, strings.Join(markers, ", ")), nil
	case "BETWEEN":
		list, _ := f.Value.([]any)
		return fmt.Sprintf("%s BETWEEN %s AND %s", col, b.bind(list[0]), b.bind(list[1])), nil
	default:
		if !supportedOperators[op] {
			return "", fmt.Errorf("%w: unsupported operator %q", apperrors.ErrInvalidQuery, f.Operator)
		}
		return fmt.Sprintf("%s %s %s", col, op, b.bind(f.Value)), nil
	}
}

// AggregateAlias is the result column name of an aggregation.
// Without an explicit alias it is function_column, or "count" for COUNT(*).
func AggregateAlias(agg models.Aggregation) string {
	if agg.Alias != "" {
		return agg.Alias
	}
	fn := strings.ToLower(agg.Function)
	if agg.Column == "*" {
		return fn
	}
	col := agg.Column
	if i := strings.LastIndex(col, "."); i >= 0 {
		col = col[i+1:]
	}
	return fn + "_" + col
}

// groupColumns returns GROUP BY columns: the explicit list, plus plain select
// columns when aggregating.
func groupColumns(spec *models.QuerySpec) []string {
	if len(spec.Aggregation) == 0 {
		return spec.GroupBy
	}
	seen := make(map[string]bool, len(spec.GroupBy)+len(spec.Select))
	var cols []string
	for _, c := range append(append([]string{}, spec.GroupBy...), plainColumns(spec.Select)...) {
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	return cols
}

func plainColumns(cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c != "*" {
			out = append(out, c)
		}
	}
	return out
}
