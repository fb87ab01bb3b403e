package render

import (
	"fmt"
	"strings"
)

type TileLayer struct {
	Name        string
	URL         string
	Attribution string
	Subdomains  string
	MaxZoom     int
}

const osmAttribution = `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`

var tileLayers = map[string]TileLayer{
	"cartodbpositron": {
		Name:        "cartodbpositron",
		URL:         "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png",
		Attribution: osmAttribution + ` &copy; <a href="https://carto.com/attributions">CARTO</a>`,
		Subdomains:  "abcd",
		MaxZoom:     20,
	},
	"cartodbdark_matter": {
		Name:        "cartodbdark_matter",
		URL:         "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}{r}.png",
		Attribution: osmAttribution + ` &copy; <a href="https://carto.com/attributions">CARTO</a>`,
		Subdomains:  "abcd",
		MaxZoom:     20,
	},
	"openstreetmap": {
		Name:        "openstreetmap",
		URL:         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: osmAttribution,
		Subdomains:  "abc",
		MaxZoom:     19,
	},
}

// LookupTiles resolves a named basemap. A value containing {z}, {x} and {y}
// is used as a custom tile URL template.
func LookupTiles(name string) (TileLayer, error) {
	if t, ok := tileLayers[strings.ToLower(strings.ReplaceAll(name, " ", ""))]; ok {
		return t, nil
	}
	if strings.Contains(name, "{z}") && strings.Contains(name, "{x}") && strings.Contains(name, "{y}") {
		return TileLayer{Name: "custom", URL: name, Subdomains: "abc", MaxZoom: 19}, nil
	}
	return TileLayer{}, fmt.Errorf("unknown tile layer %q", name)
}
