package render

import (
	"strings"
	"testing"

	"github.com/chrisdamba/availmap/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profile() models.HourProfile {
	var p models.HourProfile
	for h := range p {
		p[h] = float64(h%12) * 0.5
	}
	return p
}

func TestBarChartSVG(t *testing.T) {
	chart, err := BarChart(profile(), "#e8dd5a", DefaultChartOptions())
	require.NoError(t, err)

	markup := string(chart.Markup)
	assert.True(t, strings.HasPrefix(markup, "<svg"), markup[:min(len(markup), 40)])
	assert.Contains(t, markup, xAxisTitle)
	assert.Contains(t, markup, yAxisTitle)
	assert.Equal(t, 450, chart.Width)
	assert.Equal(t, 150, chart.Height)
}

func TestBarChartPNG(t *testing.T) {
	opts := DefaultChartOptions()
	opts.Format = models.ChartFormatPNG

	chart, err := BarChart(profile(), "#274cc9", opts)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(chart.Markup), `<img src="data:image/png;base64,`))
	assert.Contains(t, string(chart.Markup), `width="450"`)
}

func TestBarChartErrors(t *testing.T) {
	_, err := BarChart(profile(), "#274cc9", ChartOptions{Width: 0, Height: 150})
	assert.Error(t, err)

	_, err = BarChart(profile(), "#274cc9", ChartOptions{Width: 450, Height: 150, Format: "gif"})
	assert.Error(t, err)
}
