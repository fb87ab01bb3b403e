package render

import (
	"bytes"
	"encoding/json"
	"html/template"
	"strings"
	"testing"

	"github.com/chrisdamba/availmap/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func testZone(id, peak int, carh float64) models.Zone {
	var p models.HourProfile
	p[peak] = carh / 30
	return models.Zone{
		ID:          id,
		Centroid:    models.Location{Lat: 45.5 + float64(id)*0.01, Lon: -73.6},
		CarHours:    carh,
		HourProfile: p,
		PeakHour:    peak,
	}
}

func TestNewMarker(t *testing.T) {
	z := testZone(7, 18, 25)
	chart := Chart{Markup: template.HTML("<svg></svg>"), Width: 450, Height: 150}

	mk, err := NewMarker(z, chart)
	require.NoError(t, err)

	assert.Equal(t, 7, mk.ZoneID)
	assert.Equal(t, z.Centroid.Lat, mk.Lat)
	assert.Equal(t, z.Centroid.Lon, mk.Lon)
	assert.Equal(t, 30, mk.Radius)
	assert.Equal(t, Palette[18], mk.FillColor)
	assert.Equal(t, 0.8, mk.FillOpacity)
	assert.Equal(t, 500, mk.PopupMaxWidth)
	assert.Contains(t, mk.Popup, "<svg></svg>")
	assert.Contains(t, mk.Popup, "Zone 7")
}

// findNode returns the first element for which match is true.
func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func TestMapWriteHTML(t *testing.T) {
	tiles, err := LookupTiles("cartodbpositron")
	require.NoError(t, err)

	m := NewMap("Availability", models.Location{Lat: 45.5, Lon: -73.6}, 12, tiles)
	for i := 0; i < 5; i++ {
		chart, err := BarChart(testZone(i, i*4, float64(i+1)).HourProfile, ColorForHour(i*4), DefaultChartOptions())
		require.NoError(t, err)
		mk, err := NewMarker(testZone(i, i*4, float64(i+1)), chart)
		require.NoError(t, err)
		m.AddMarker(mk)
	}

	var buf bytes.Buffer
	require.NoError(t, m.WriteHTML(&buf))
	out := buf.String()

	assert.Equal(t, 1, strings.Count(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "basemaps.cartocdn.com")
	assert.Regexp(t, `zoom:\s*12\s*}`, out)

	doc, err := html.Parse(strings.NewReader(out))
	require.NoError(t, err)

	mapDiv := findNode(doc, func(n *html.Node) bool { return n.Data == "div" && attr(n, "id") == "map" })
	require.NotNil(t, mapDiv)

	data := findNode(doc, func(n *html.Node) bool { return n.Data == "script" && attr(n, "id") == "zone-data" })
	require.NotNil(t, data)
	require.NotNil(t, data.FirstChild)

	var markers []Marker
	require.NoError(t, json.Unmarshal([]byte(data.FirstChild.Data), &markers))
	require.Len(t, markers, 5)
	for i, mk := range markers {
		assert.Equal(t, i, mk.ZoneID)
		assert.Equal(t, Palette[i*4], mk.FillColor)
		assert.True(t, strings.Contains(mk.Popup, "<svg"))
	}
}

func TestMapMaxBoundsIsOptIn(t *testing.T) {
	tiles, err := LookupTiles("cartodbpositron")
	require.NoError(t, err)

	m := NewMap("Availability", models.Location{Lat: 45.5, Lon: -73.6}, 12, tiles)
	for i := 0; i < 2; i++ {
		mk, err := NewMarker(testZone(i, 8, 10), Chart{Markup: template.HTML("<svg></svg>"), Width: 450, Height: 150})
		require.NoError(t, err)
		m.AddMarker(mk)
	}

	var buf bytes.Buffer
	require.NoError(t, m.WriteHTML(&buf))
	assert.NotContains(t, buf.String(), "setMaxBounds")

	m.MaxBounds = true
	buf.Reset()
	require.NoError(t, m.WriteHTML(&buf))
	assert.Contains(t, buf.String(), "setMaxBounds")
}

func TestMapWriteHTMLEmpty(t *testing.T) {
	tiles, err := LookupTiles("openstreetmap")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewMap("empty", models.Location{}, 3, tiles).WriteHTML(&buf))
	assert.Contains(t, buf.String(), `id="zone-data">[]</script>`)
	assert.NotContains(t, buf.String(), "setMaxBounds")
}

func TestLookupTiles(t *testing.T) {
	_, err := LookupTiles("CartoDB Positron")
	assert.NoError(t, err)

	custom, err := LookupTiles("https://tiles.example.com/{z}/{x}/{y}.png")
	require.NoError(t, err)
	assert.Equal(t, "custom", custom.Name)

	_, err = LookupTiles("stamen")
	assert.Error(t, err)
}
