package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"image/color"
	"strconv"
	"strings"

	"github.com/chrisdamba/availmap/internal/models"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	_ "gonum.org/v1/plot/vg/vgimg" // png
	_ "gonum.org/v1/plot/vg/vgsvg" // svg
)

const (
	xAxisTitle = "Hour of Day"
	yAxisTitle = "Cars Available"

	// chart pixels are laid out at 96 dpi
	pixelsPerInch = 96
)

type ChartOptions struct {
	Width  int
	Height int
	Format string // svg or png
}

func DefaultChartOptions() ChartOptions {
	return ChartOptions{Width: 450, Height: 150, Format: models.ChartFormatSVG}
}

// Chart is an inline chart ready to be embedded in a popup.
type Chart struct {
	Markup template.HTML
	Width  int
	Height int
}

// BarChart draws the 24-hour availability profile as a bar chart.
func BarChart(profile models.HourProfile, fill string, opts ChartOptions) (Chart, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return Chart{}, fmt.Errorf("chart size must be positive, got %dx%d", opts.Width, opts.Height)
	}

	p := plot.New()
	p.X.Label.Text = xAxisTitle
	p.Y.Label.Text = yAxisTitle
	p.Y.Min = 0

	values := make(plotter.Values, models.HoursPerDay)
	copy(values, profile[:])

	barWidth := vg.Length(opts.Width) * vg.Inch / pixelsPerInch / (models.HoursPerDay * 1.6)
	bars, err := plotter.NewBarChart(values, barWidth)
	if err != nil {
		return Chart{}, fmt.Errorf("failed to create bar chart: %w", err)
	}
	bars.Color = parseHex(fill)
	bars.LineStyle.Width = vg.Length(0)
	bars.LineStyle.Color = color.Transparent
	p.Add(bars)

	labels := make([]string, models.HoursPerDay)
	for h := range labels {
		labels[h] = strconv.Itoa(h)
	}
	p.NominalX(labels...)

	w := vg.Length(opts.Width) * vg.Inch / pixelsPerInch
	h := vg.Length(opts.Height) * vg.Inch / pixelsPerInch

	switch opts.Format {
	case models.ChartFormatSVG, "":
		markup, err := drawSVG(p, w, h)
		if err != nil {
			return Chart{}, err
		}
		return Chart{Markup: markup, Width: opts.Width, Height: opts.Height}, nil
	case models.ChartFormatPNG:
		markup, err := drawPNG(p, w, h, opts.Width, opts.Height)
		if err != nil {
			return Chart{}, err
		}
		return Chart{Markup: markup, Width: opts.Width, Height: opts.Height}, nil
	default:
		return Chart{}, fmt.Errorf("unsupported chart format %q", opts.Format)
	}
}

func drawSVG(p *plot.Plot, w, h vg.Length) (template.HTML, error) {
	wt, err := p.WriterTo(w, h, "svg")
	if err != nil {
		return "", fmt.Errorf("failed to create svg canvas: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("failed to render svg: %w", err)
	}

	// drop the XML prolog so the document can be inlined
	svg := buf.String()
	if i := strings.Index(svg, "<svg"); i > 0 {
		svg = svg[i:]
	}
	return template.HTML(svg), nil
}

func drawPNG(p *plot.Plot, w, h vg.Length, widthPx, heightPx int) (template.HTML, error) {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return "", fmt.Errorf("failed to create png canvas: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("failed to render png: %w", err)
	}

	img := fmt.Sprintf(`<img src="data:image/png;base64,%s" width="%d" height="%d" alt="%s">`,
		base64.StdEncoding.EncodeToString(buf.Bytes()), widthPx, heightPx, yAxisTitle+" by "+xAxisTitle)
	return template.HTML(img), nil
}
