package render

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"

	"github.com/chrisdamba/availmap/internal/models"
	"github.com/paulmach/orb"
)

const (
	leafletJS  = "https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"
	leafletCSS = "https://unpkg.com/leaflet@1.9.4/dist/leaflet.css"
)

// Map is the interactive document: a basemap and one circle marker per zone.
type Map struct {
	Title     string
	Center    models.Location
	Zoom      int
	Tiles     TileLayer
	Markers   []Marker
	MaxBounds bool // keep panning within the padded marker bounds
}

func NewMap(title string, center models.Location, zoom int, tiles TileLayer) *Map {
	return &Map{Title: title, Center: center, Zoom: zoom, Tiles: tiles}
}

func (m *Map) AddMarker(mk Marker) {
	m.Markers = append(m.Markers, mk)
}

// Bound is the bounding box of the marker locations.
func (m *Map) Bound() orb.Bound {
	mp := make(orb.MultiPoint, 0, len(m.Markers))
	for _, mk := range m.Markers {
		mp = append(mp, orb.Point{mk.Lon, mk.Lat})
	}
	return mp.Bound()
}

// WriteHTML writes the map as a single HTML document. Marker data, popups
// and charts are inlined; only Leaflet and the tiles are fetched remotely.
func (m *Map) WriteHTML(w io.Writer) error {
	markers := m.Markers
	if markers == nil {
		markers = []Marker{}
	}
	// json.Marshal escapes <, > and & so the payload is safe inside <script>
	data, err := json.Marshal(markers)
	if err != nil {
		return fmt.Errorf("encode markers: %w", err)
	}

	b := m.Bound()
	err = mapTemplate.Execute(w, mapView{
		Title:      m.Title,
		LeafletJS:  leafletJS,
		LeafletCSS: leafletCSS,
		Center:     [2]float64{m.Center.Lat, m.Center.Lon},
		Zoom:       m.Zoom,
		Tiles:      m.Tiles,
		Bounds:     [2][2]float64{{b.Min.Lat(), b.Min.Lon()}, {b.Max.Lat(), b.Max.Lon()}},
		HasBounds:  m.MaxBounds && len(markers) > 0,
		Data:       template.JS(data),
	})
	if err != nil {
		return fmt.Errorf("render map: %w", err)
	}
	return nil
}

type mapView struct {
	Title      string
	LeafletJS  string
	LeafletCSS string
	Center     [2]float64
	Zoom       int
	Tiles      TileLayer
	Bounds     [2][2]float64
	HasBounds  bool
	Data       template.JS
}

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<link rel="stylesheet" href="{{.LeafletCSS}}">
<script src="{{.LeafletJS}}"></script>
<style>
html, body { width: 100%; height: 100%; margin: 0; padding: 0; }
#map { position: absolute; top: 0; bottom: 0; right: 0; left: 0; }
.zone-title { font: 12px sans-serif; margin-bottom: 4px; }
.zone-popup svg { display: block; }
</style>
</head>
<body>
<div id="map"></div>
<script type="application/json" id="zone-data">{{.Data}}</script>
<script>
(function () {
  var map = L.map("map", {center: {{.Center}}, zoom: {{.Zoom}}});
  L.tileLayer({{.Tiles.URL}}, {
    attribution: {{.Tiles.Attribution}},
    subdomains: {{.Tiles.Subdomains}},
    maxZoom: {{.Tiles.MaxZoom}}
  }).addTo(map);
  {{- if .HasBounds}}
  map.setMaxBounds(L.latLngBounds({{.Bounds}}).pad(1));
  {{- end}}

  var zones = JSON.parse(document.getElementById("zone-data").textContent);
  zones.forEach(function (z) {
    L.circleMarker([z.lat, z.lon], {
      radius: z.radius,
      stroke: false,
      fillColor: z.fillColor,
      fillOpacity: z.fillOpacity
    }).bindPopup(z.popup, {maxWidth: z.popupMaxWidth}).addTo(map);
  });
})();
</script>
</body>
</html>
`))
