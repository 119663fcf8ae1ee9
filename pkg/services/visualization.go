package services

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/ekaya-inc/ekaya-gateway/pkg/models"
)

type columnKind int

const (
	kindOther columnKind = iota
	kindNumeric
	kindTemporal
	kindBoolean
	kindText
)

const (
	barLimit = 20
	pieLimit = 10
	rowLimit = 100
)

// SuggestVisualizations proposes charts for a table from its column metadata,
// highest score first. A table always gets at least the plain table view.
func SuggestVisualizations(table *models.TableMetadata) []models.VisualizationSuggestion {
	fkColumns := make(map[string]bool, len(table.ForeignKeys))
	for _, fk := range table.ForeignKeys {
		fkColumns[fk.Column] = true
	}

	var temporal, metrics, categories []string
	for _, c := range table.Columns {
		kind := classifyColumn(c.DataType)
		isKey := c.IsPrimaryKey || fkColumns[c.Name] || isIDColumn(c.Name)
		switch {
		case kind == kindTemporal:
			temporal = append(temporal, c.Name)
		case kind == kindNumeric && !isKey:
			metrics = append(metrics, c.Name)
		case kind == kindBoolean:
			categories = append(categories, c.Name)
		case kind == kindText && !isKey && !c.IsUnique:
			categories = append(categories, c.Name)
		}
	}

	qualified := table.QualifiedName()
	entity := toEntityName(table.Name)
	var out []models.VisualizationSuggestion

	if len(temporal) > 0 && len(metrics) > 0 {
		x, y := temporal[0], metrics[0]
		out = append(out, models.VisualizationSuggestion{
			Type:        models.ChartLine,
			Title:       humanize(y) + " over time",
			Description: fmt.Sprintf("Sum of %s by %s", y, x),
			XAxis:       x,
			YAxis:       y,
			Aggregation: "SUM",
			GroupBy:     x,
			Score:       0.9,
			Query: &models.QuerySpec{
				Table:       qualified,
				Select:      models.Columns{x},
				GroupBy:     models.Columns{x},
				OrderBy:     models.OrderTerms{{Column: x, Direction: "ASC"}},
				Aggregation: models.Aggregations{{Function: "SUM", Column: y}},
			},
		})
	}

	if len(categories) > 0 && len(metrics) > 0 {
		x, y := categories[0], metrics[0]
		out = append(out, models.VisualizationSuggestion{
			Type:        models.ChartBar,
			Title:       humanize(y) + " by " + humanizeLower(x),
			Description: fmt.Sprintf("Sum of %s for each %s", y, x),
			XAxis:       x,
			YAxis:       y,
			Aggregation: "SUM",
			GroupBy:     x,
			Score:       0.8,
			Query: &models.QuerySpec{
				Table:       qualified,
				Select:      models.Columns{x},
				GroupBy:     models.Columns{x},
				Aggregation: models.Aggregations{{Function: "SUM", Column: y}},
				Limit:       intPtr(barLimit),
			},
		})
	}

	if len(categories) > 0 {
		x := categories[0]
		out = append(out, models.VisualizationSuggestion{
			Type:        models.ChartPie,
			Title:       entity + " count by " + humanizeLower(x),
			Description: fmt.Sprintf("Share of %s rows per %s", strings.ToLower(entity), x),
			XAxis:       x,
			Aggregation: "COUNT",
			GroupBy:     x,
			Score:       0.6,
			Query: &models.QuerySpec{
				Table:       qualified,
				Select:      models.Columns{x},
				GroupBy:     models.Columns{x},
				Aggregation: models.Aggregations{{Function: "COUNT", Column: "*"}},
				Limit:       intPtr(pieLimit),
			},
		})
	}

	if len(metrics) >= 2 {
		x, y := metrics[0], metrics[1]
		out = append(out, models.VisualizationSuggestion{
			Type:        models.ChartScatter,
			Title:       humanize(x) + " vs " + humanizeLower(y),
			Description: fmt.Sprintf("Relationship between %s and %s", x, y),
			XAxis:       x,
			YAxis:       y,
			Score:       0.5,
			Query: &models.QuerySpec{
				Table:  qualified,
				Select: models.Columns{x, y},
			},
		})
	}

	if len(metrics) > 0 {
		x := metrics[0]
		out = append(out, models.VisualizationSuggestion{
			Type:        models.ChartHistogram,
			Title:       "Distribution of " + humanizeLower(x),
			Description: fmt.Sprintf("How %s values are spread", x),
			XAxis:       x,
			Score:       0.4,
			Query: &models.QuerySpec{
				Table:  qualified,
				Select: models.Columns{x},
			},
		})
	}

	out = append(out, models.VisualizationSuggestion{
		Type:        models.ChartTable,
		Title:       "All " + strings.ToLower(inflection.Plural(entity)),
		Description: fmt.Sprintf("Raw rows of %s", qualified),
		Score:       0.1,
		Query: &models.QuerySpec{
			Table: qualified,
			Limit: intPtr(rowLimit),
		},
	})

	return out
}

// classifyColumn maps a database type name to a chart-relevant kind.
// Type modifiers and ClickHouse wrappers are ignored: "Nullable(Int64)" is numeric.
func classifyColumn(dataType string) columnKind {
	t := strings.ToLower(strings.TrimSpace(dataType))
	for _, wrapper := range []string{"nullable(", "lowcardinality("} {
		for strings.HasPrefix(t, wrapper) {
			t = strings.TrimSuffix(strings.TrimPrefix(t, wrapper), ")")
		}
	}
	// MySQL has no boolean type; BOOL columns are reported as tinyint(1).
	if strings.ReplaceAll(t, " ", "") == "tinyint(1)" {
		return kindBoolean
	}
	if i := strings.IndexAny(t, "(["); i >= 0 {
		t = t[:i]
	}
	t = strings.TrimSpace(t)

	switch {
	case t == "bool" || t == "boolean" || t == "bit":
		return kindBoolean
	case strings.HasPrefix(t, "timestamp") || strings.HasPrefix(t, "datetime") ||
		strings.HasPrefix(t, "date") || t == "smalldatetime" || t == "time" ||
		strings.HasPrefix(t, "time "):
		return kindTemporal
	case strings.Contains(t, "int") || strings.HasPrefix(t, "float") ||
		strings.HasPrefix(t, "decimal") || strings.HasPrefix(t, "numeric") ||
		t == "real" || t == "double" || t == "double precision" ||
		t == "money" || t == "smallmoney" || t == "number" || t == "serial" || t == "bigserial":
		if t == "interval" || t == "point" {
			return kindOther
		}
		return kindNumeric
	case strings.Contains(t, "char") || strings.Contains(t, "text") ||
		t == "string" || t == "fixedstring" || strings.HasPrefix(t, "enum") || t == "citext":
		return kindText
	}
	return kindOther
}

// isIDColumn reports whether name looks like a surrogate or reference key.
func isIDColumn(name string) bool {
	n := strings.ToLower(name)
	return n == "id" || strings.HasSuffix(n, "_id") || strings.HasSuffix(n, "uuid")
}

// toEntityName converts a table name to an entity name.
// Examples: "orders" -> "Order", "order_items" -> "Order item", "categories" -> "Category"
func toEntityName(tableName string) string {
	name := tableName
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return humanize(inflection.Singular(name))
}

func humanize(name string) string {
	s := strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(name))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func humanizeLower(name string) string {
	return strings.ToLower(humanize(name))
}

func intPtr(v int) *int {
	return &v
}
