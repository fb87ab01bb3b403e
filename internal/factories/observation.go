// Package factories synthesizes availability samples for trying the pipeline
// without a real fleet export.
package factories

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/chrisdamba/availmap/internal/models"
	"github.com/jaswdr/faker"
)

const kmPerDegree = 111.0

// Hotspot is an area where parked cars concentrate, busiest around PeakHour.
type Hotspot struct {
	Name     string
	Center   models.Location
	Spread   float64 // standard deviation in degrees of latitude
	PeakHour int
	Weight   float64
}

type ObservationFactory struct {
	fake       faker.Faker
	rng        *rand.Rand
	Hotspots   []Hotspot
	cumulative []float64
}

// NewObservationFactory places count hotspots uniformly within radiusKm of
// center. The same seed always yields the same hotspots and samples.
func NewObservationFactory(seed int64, center models.Location, radiusKm float64, count int) (*ObservationFactory, error) {
	if count <= 0 {
		return nil, fmt.Errorf("hotspot count must be positive, got %d", count)
	}
	if radiusKm <= 0 {
		return nil, fmt.Errorf("urban radius must be positive, got %f", radiusKm)
	}
	if err := center.Validate(); err != nil {
		return nil, err
	}

	f := &ObservationFactory{
		fake: faker.NewWithSeed(rand.NewSource(seed)),
		rng:  rand.New(rand.NewSource(seed + 1)),
	}

	latRange := radiusKm / kmPerDegree
	lonRange := latRange / math.Cos(center.Lat*math.Pi/180.0)

	total := 0.0
	for i := 0; i < count; i++ {
		// uniform in the disc
		r := math.Sqrt(f.rng.Float64())
		theta := 2 * math.Pi * f.rng.Float64()
		h := Hotspot{
			Name: f.fake.Address().StreetName(),
			Center: models.Location{
				Lat: center.Lat + r*latRange*math.Sin(theta),
				Lon: center.Lon + r*lonRange*math.Cos(theta),
			},
			Spread:   latRange * f.fake.Float64(2, 2, 8) / 100,
			PeakHour: f.fake.IntBetween(0, models.HoursPerDay-1),
			Weight:   f.fake.Float64(2, 1, 10),
		}
		total += h.Weight
		f.Hotspots = append(f.Hotspots, h)
		f.cumulative = append(f.cumulative, total)
	}
	return f, nil
}

func (f *ObservationFactory) pickHotspot() Hotspot {
	x := f.rng.Float64() * f.cumulative[len(f.cumulative)-1]
	for i, c := range f.cumulative {
		if x < c {
			return f.Hotspots[i]
		}
	}
	return f.Hotspots[len(f.Hotspots)-1]
}

// pickHour favours the hours around the hotspot's peak and spreads the rest
// over the day.
func (f *ObservationFactory) pickHour(peak int) int {
	if f.rng.Float64() < 0.35 {
		return f.fake.IntBetween(0, models.HoursPerDay-1)
	}
	offset := int(math.Round(f.rng.NormFloat64() * 3))
	return ((peak+offset)%models.HoursPerDay + models.HoursPerDay) % models.HoursPerDay
}

func (f *ObservationFactory) CreateObservation() models.Observation {
	h := f.pickHotspot()
	lonSpread := h.Spread / math.Cos(h.Center.Lat*math.Pi/180.0)

	lat := h.Center.Lat + f.rng.NormFloat64()*h.Spread
	lon := h.Center.Lon + f.rng.NormFloat64()*lonSpread

	return models.Observation{
		Location: models.Location{
			Lat: math.Max(-90, math.Min(90, lat)),
			Lon: math.Max(-180, math.Min(180, lon)),
		},
		Hod: f.pickHour(h.PeakHour),
	}
}

func (f *ObservationFactory) CreateObservations(n int) []models.Observation {
	obs := make([]models.Observation, n)
	for i := range obs {
		obs[i] = f.CreateObservation()
	}
	return obs
}

// FromConfig builds a factory from the city settings in cfg.
func FromConfig(cfg *models.Config) (*ObservationFactory, error) {
	return NewObservationFactory(cfg.Seed, models.Location{Lat: cfg.CityLat, Lon: cfg.CityLon}, cfg.UrbanRadius, cfg.Hotspots)
}
