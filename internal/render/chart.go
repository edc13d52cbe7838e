package render

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	domain "github.com/bryanwahyu/estate-chat/internal/domain/chat"
)

// Chart geometry, in SVG user units.
const (
	ChartWidth  = 640
	ChartHeight = 260
	chartPad    = 44
)

// ChartView holds the trend chart as SVG polylines plus the raw series for
// the data list under the chart.
type ChartView struct {
	Empty        bool
	Width        int
	Height       int
	PricePoints  string
	DemandPoints string
	XLabels      []AxisLabel
	PriceMin     string
	PriceMax     string
	DemandMin    string
	DemandMax    string
	Years        []string
	Prices       []string
	Demand       []string
}

// AxisLabel is a year tick on the x axis.
type AxisLabel struct {
	X    float64
	Text string
}

func BuildChart(c domain.Chart) ChartView {
	if c.Empty() {
		return ChartView{Empty: true}
	}
	v := ChartView{
		Width:  ChartWidth,
		Height: ChartHeight,
		Years:  texts(c.Years),
		Prices: texts(c.Prices),
		Demand: texts(c.Demand),
	}

	n := maxLen(c.Years, c.Prices, c.Demand)
	xs := xPositions(n)
	for i, y := range c.Years {
		v.XLabels = append(v.XLabels, AxisLabel{X: xs[i], Text: y.String()})
	}

	var lo, hi float64
	v.PricePoints, lo, hi = polyline(xs, c.Prices)
	if v.PricePoints != "" {
		v.PriceMin, v.PriceMax = FormatNumber(num(lo)), FormatNumber(num(hi))
	}
	v.DemandPoints, lo, hi = polyline(xs, c.Demand)
	if v.DemandPoints != "" {
		v.DemandMin, v.DemandMax = FormatNumber(num(lo)), FormatNumber(num(hi))
	}
	return v
}

func texts(s []json.Number) []string {
	out := make([]string, len(s))
	for i, n := range s {
		out[i] = n.String()
	}
	return out
}

func maxLen(series ...[]json.Number) int {
	n := 0
	for _, s := range series {
		if len(s) > n {
			n = len(s)
		}
	}
	return n
}

func xPositions(n int) []float64 {
	xs := make([]float64, n)
	span := float64(ChartWidth - 2*chartPad)
	for i := range xs {
		if n == 1 {
			xs[i] = float64(ChartWidth) / 2
			continue
		}
		xs[i] = chartPad + span*float64(i)/float64(n-1)
	}
	return xs
}

// polyline scales one series into the plot area. Entries that are not
// numbers are skipped. Each series gets its own vertical scale.
func polyline(xs []float64, s []json.Number) (string, float64, float64) {
	type pt struct{ x, v float64 }
	var pts []pt
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, n := range s {
		f, err := n.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		pts = append(pts, pt{xs[i], f})
		lo, hi = math.Min(lo, f), math.Max(hi, f)
	}
	if len(pts) == 0 {
		return "", 0, 0
	}

	top, bottom := float64(chartPad), float64(ChartHeight-chartPad)
	var b strings.Builder
	for i, p := range pts {
		y := (top + bottom) / 2
		if hi > lo {
			y = bottom - (p.v-lo)/(hi-lo)*(bottom-top)
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%.1f,%.1f", p.x, y)
	}
	return b.String(), lo, hi
}

func num(f float64) json.Number {
	return json.Number(fmt.Sprint(f))
}
