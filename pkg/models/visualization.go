package models

// Chart types produced by the visualization suggester.
const (
	ChartLine      = "line"
	ChartBar       = "bar"
	ChartPie       = "pie"
	ChartScatter   = "scatter"
	ChartHistogram = "histogram"
	ChartTable     = "table"
)

// VisualizationSuggestion is a chart the dashboard can render for a table.
// Query is ready to post to the query route as-is.
type VisualizationSuggestion struct {
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	XAxis       string     `json:"xAxis,omitempty"`
	YAxis       string     `json:"yAxis,omitempty"`
	Aggregation string     `json:"aggregation,omitempty"`
	GroupBy     string     `json:"groupBy,omitempty"`
	Score       float64    `json:"score"`
	Query       *QuerySpec `json:"query,omitempty"`
}
