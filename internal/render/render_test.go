package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	domain "github.com/bryanwahyu/estate-chat/internal/domain/chat"
)

func cannedResult(t *testing.T) *domain.AnalysisResult {
	t.Helper()
	return domain.NewAnalysisResult(domain.ChatReply{
		Response: "X",
		Chart:    json.RawMessage(`{"years":[2021,2022,2023],"prices":[250000,262500.5,270000],"demand":[7.5,8,8.25]}`),
		Table:    json.RawMessage(`[{"location":"Wakad","price":250000,"demand_score":7.5},{"location":"Wakad West","price":9000,"demand_score":null}]`),
	}, testTime)
}

func TestBuildPanel_ShowsCannedReply(t *testing.T) {
	p := BuildPanel(cannedResult(t))

	require.True(t, p.Ready)
	require.Equal(t, "X", p.Summary)

	require.False(t, p.Chart.Empty)
	require.Equal(t, []string{"2021", "2022", "2023"}, p.Chart.Years)
	require.Equal(t, []string{"250000", "262500.5", "270000"}, p.Chart.Prices)
	require.Equal(t, []string{"7.5", "8", "8.25"}, p.Chart.Demand)
	require.Len(t, p.Chart.XLabels, 3)
	require.Equal(t, "250,000", p.Chart.PriceMin)
	require.Equal(t, "270,000", p.Chart.PriceMax)
	require.Equal(t, "7.5", p.Chart.DemandMin)

	require.Equal(t, []string{"location", "price", "demand_score"}, p.Table.Columns)
	require.Equal(t, [][]string{
		{"Wakad", "250,000", "7.5"},
		{"Wakad West", "9000", ""},
	}, p.Table.Rows)
}

func TestBuildPanel_MissingFieldsArePlaceholders(t *testing.T) {
	empty := BuildPanel(nil)
	require.False(t, empty.Ready)
	require.Equal(t, NoSummaryText, empty.Summary)
	require.True(t, empty.Chart.Empty)
	require.True(t, empty.Table.Empty)

	p := BuildPanel(domain.NewAnalysisResult(domain.ChatReply{}, testTime))
	require.True(t, p.Ready)
	require.Equal(t, NoSummaryText, p.Summary)
	require.True(t, p.Chart.Empty)
	require.True(t, p.Table.Empty)
}

func TestBuildChart_Geometry(t *testing.T) {
	c := BuildChart(domain.Chart{
		Years:  []json.Number{"2021", "2022"},
		Prices: []json.Number{"100", "200"},
		Demand: []json.Number{"5", "5"},
	})
	// lowest price at the bottom edge, highest at the top
	require.Equal(t, "44.0,216.0 596.0,44.0", c.PricePoints)
	// a flat series sits in the middle
	require.Equal(t, "44.0,130.0 596.0,130.0", c.DemandPoints)

	single := BuildChart(domain.Chart{Prices: []json.Number{"3"}})
	require.Equal(t, "320.0,130.0", single.PricePoints)
	require.Empty(t, single.DemandPoints)

	gaps := BuildChart(domain.Chart{Prices: []json.Number{"1", "", "abc", "4"}})
	require.Equal(t, 2, strings.Count(gaps.PricePoints, ","))
}

func TestFormatValue(t *testing.T) {
	cases := map[string]struct {
		in   any
		want string
	}{
		"nil":         {nil, ""},
		"string":      {"Baner", "Baner"},
		"bool":        {true, "true"},
		"small int":   {json.Number("2021"), "2021"},
		"big int":     {json.Number("1250000"), "1,250,000"},
		"negative":    {json.Number("-25000"), "-25,000"},
		"big float":   {json.Number("12345.5"), "12,345.5"},
		"small float": {json.Number("7.25"), "7.25"},
		"nested":      {map[string]any{"a": json.Number("1")}, `{"a":1}`},
		"list":        {[]any{"x", "y"}, `["x","y"]`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.want, FormatValue(tc.in))
		})
	}
}

func TestExportXLSX(t *testing.T) {
	data, err := ExportXLSX(cannedResult(t).Table)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ExportSheet)
	require.NoError(t, err)
	require.Equal(t, []string{"location", "price", "demand_score"}, rows[0])
	require.Equal(t, []string{"Wakad", "250000", "7.5"}, rows[1])
	require.Equal(t, []string{"Wakad West", "9000"}, rows[2])

	_, err = ExportXLSX(nil)
	require.ErrorIs(t, err, ErrNothingToExport)
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, cannedResult(t).Table))
	require.Equal(t, "location,price,demand_score\nWakad,250000,7.5\nWakad West,9000,\n", buf.String())

	require.ErrorIs(t, ExportCSV(&buf, domain.Table{}), ErrNothingToExport)
}
