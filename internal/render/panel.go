// Package render turns an analysis result into what the results panel shows.
// Values are displayed as the backend sent them; only number formatting is
// applied.
package render

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	domain "github.com/bryanwahyu/estate-chat/internal/domain/chat"
)

const (
	NoSummaryText = "Ask about a locality to see a summary here."
	NoChartText   = "No trend data for this answer."
	NoTableText   = "No matching rows."
)

// Panel is the view model for the results panel.
type Panel struct {
	Ready    bool // false until the first successful answer
	Summary  string
	Location string
	Chart    ChartView
	Table    TableView
}

func BuildPanel(r *domain.AnalysisResult) Panel {
	if r == nil {
		return Panel{
			Summary: NoSummaryText,
			Chart:   ChartView{Empty: true},
			Table:   TableView{Empty: true},
		}
	}
	p := Panel{
		Ready:    true,
		Summary:  r.Summary,
		Location: r.Location,
		Chart:    BuildChart(r.Chart),
		Table:    BuildTable(r.Table),
	}
	if strings.TrimSpace(p.Summary) == "" {
		p.Summary = NoSummaryText
	}
	return p
}

// TableView is a table flattened to strings for the template.
type TableView struct {
	Empty   bool
	Columns []string
	Rows    [][]string
}

func BuildTable(t domain.Table) TableView {
	cols := t.Columns()
	if len(t) == 0 || len(cols) == 0 {
		return TableView{Empty: true}
	}
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		cells := make([]string, len(cols))
		for i, c := range cols {
			if v, ok := r.Get(c); ok {
				cells[i] = FormatValue(v)
			}
		}
		rows = append(rows, cells)
	}
	return TableView{Columns: cols, Rows: rows}
}

// FormatValue renders one cell. Numbers of five or more digits get
// thousands separators; everything else is printed as given.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case json.Number:
		return FormatNumber(x)
	case float64:
		return FormatNumber(json.Number(fmt.Sprint(x)))
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

func FormatNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		if i <= -10000 || i >= 10000 {
			return humanize.Comma(i)
		}
		return n.String()
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return n.String()
	}
	if math.Abs(f) >= 10000 {
		return humanize.Commaf(f)
	}
	return n.String()
}
