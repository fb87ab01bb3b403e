package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/chrisdamba/availmap/internal/models"
)

// popupPadding matches the margin Leaflet needs around the chart.
const popupPadding = 50

// Marker is a circle placed on a zone centroid with its chart popup.
type Marker struct {
	ZoneID        int     `json:"id"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	Radius        int     `json:"radius"`
	FillColor     string  `json:"fillColor"`
	FillOpacity   float64 `json:"fillOpacity"`
	CarHours      float64 `json:"carh"`
	PeakHour      int     `json:"peakHour"`
	Popup         string  `json:"popup"`
	PopupMaxWidth int     `json:"popupMaxWidth"`
}

var popupTemplate = template.Must(template.New("popup").Parse(
	`<div class="zone-popup"><div class="zone-title">Zone {{.ID}}: {{printf "%.1f" .CarHours}} car-hours, peak at {{.PeakHour}}h</div>{{.Chart}}</div>`))

// NewMarker builds the marker for zone z. Its fill color is the palette entry
// of the zone's peak hour.
func NewMarker(z models.Zone, chart Chart) (Marker, error) {
	var buf bytes.Buffer
	err := popupTemplate.Execute(&buf, struct {
		ID       int
		CarHours float64
		PeakHour int
		Chart    template.HTML
	}{z.ID, z.CarHours, z.PeakHour, chart.Markup})
	if err != nil {
		return Marker{}, fmt.Errorf("render popup for zone %d: %w", z.ID, err)
	}

	return Marker{
		ZoneID:        z.ID,
		Lat:           z.Centroid.Lat,
		Lon:           z.Centroid.Lon,
		Radius:        Radius(z.CarHours),
		FillColor:     ColorForHour(z.PeakHour),
		FillOpacity:   FillOpacity,
		CarHours:      z.CarHours,
		PeakHour:      z.PeakHour,
		Popup:         buf.String(),
		PopupMaxWidth: chart.Width + popupPadding,
	}, nil
}
