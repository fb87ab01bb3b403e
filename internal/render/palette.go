package render

import (
	"image/color"
	"math"

	"github.com/chrisdamba/availmap/internal/models"
)

// Palette maps the peak hour of a zone to its fill color: blues for night,
// yellows for day and reds for the evening.
var Palette = [models.HoursPerDay]string{
	"#274cc9", "#274cc9", "#274cc9", "#274cc9",
	"#274cc9", "#3959bf", "#647aa6", "#909b8c", "#bcbc73",
	"#e8dd5a", "#f1e455", "#f1e455", "#f1e455", "#f1e455",
	"#f0df56", "#ecc45a", "#e7a95f", "#e28e63", "#de7467",
	"#c46576", "#9d5f8a", "#76599f", "#4e52b4", "#274cc9",
}

const (
	FillOpacity = 0.8
	radiusScale = 6
)

func ColorForHour(hour int) string {
	h := ((hour % models.HoursPerDay) + models.HoursPerDay) % models.HoursPerDay
	return Palette[h]
}

// Radius sizes a circle so its area is proportional to the zone's car-hours.
func Radius(carHours float64) int {
	if carHours <= 0 {
		return 0
	}
	return int(radiusScale * math.Sqrt(carHours))
}

// parseHex converts a #rrggbb string from Palette into a color.
func parseHex(s string) color.RGBA {
	c := color.RGBA{A: 0xff}
	if len(s) != 7 || s[0] != '#' {
		return c
	}
	hex := func(b byte) uint8 {
		switch {
		case b >= '0' && b <= '9':
			return b - '0'
		case b >= 'a' && b <= 'f':
			return b - 'a' + 10
		case b >= 'A' && b <= 'F':
			return b - 'A' + 10
		}
		return 0
	}
	c.R = hex(s[1])<<4 | hex(s[2])
	c.G = hex(s[3])<<4 | hex(s[4])
	c.B = hex(s[5])<<4 | hex(s[6])
	return c
}
