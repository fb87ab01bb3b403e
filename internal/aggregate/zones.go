// Package aggregate rolls labelled observations up into zones.
package aggregate

import (
	"errors"
	"fmt"

	"github.com/chrisdamba/availmap/internal/models"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var ErrLengthMismatch = errors.New("observations and labels differ in length")

// Zones groups observations by label. The returned slice has exactly k
// zones ordered by id; zone centroids are the mean member coordinates and
// hour profiles are average car-hours per day over numDays.
func Zones(obs []models.Observation, labels []int, k, numDays int) ([]models.Zone, error) {
	if len(obs) != len(labels) {
		return nil, fmt.Errorf("%w: %d observations, %d labels", ErrLengthMismatch, len(obs), len(labels))
	}
	if k <= 0 {
		return nil, fmt.Errorf("zone count must be positive, got %d", k)
	}
	if numDays <= 0 {
		return nil, fmt.Errorf("number of days must be positive, got %d", numDays)
	}

	zones := make([]models.Zone, k)
	hourly := mat.NewDense(k, models.HoursPerDay, nil)
	latSum := make([]float64, k)
	lonSum := make([]float64, k)

	for i, o := range obs {
		z := labels[i]
		if z < 0 || z >= k {
			return nil, fmt.Errorf("label %d of observation %d outside [0, %d)", z, i, k)
		}
		if o.Hod < 0 || o.Hod >= models.HoursPerDay {
			return nil, fmt.Errorf("observation %d has hour of day %d", i, o.Hod)
		}
		if o.CarHours < 0 {
			return nil, fmt.Errorf("observation %d has negative weight %f", i, o.CarHours)
		}
		zones[z].Observations++
		zones[z].CarHours += o.CarHours
		latSum[z] += o.Lat
		lonSum[z] += o.Lon
		hourly.Set(z, o.Hod, hourly.At(z, o.Hod)+o.CarHours)
	}

	hourly.Scale(1/float64(numDays), hourly)

	for z := range zones {
		zone := &zones[z]
		zone.ID = z
		if zone.Observations > 0 {
			n := float64(zone.Observations)
			zone.Centroid = models.Location{Lat: latSum[z] / n, Lon: lonSum[z] / n}
		}
		mat.Row(zone.HourProfile[:], z, hourly)
		zone.PeakHour = PeakHour(zone.HourProfile)
	}
	return zones, nil
}

// PeakHour is the hour with the highest average availability; the earliest
// hour wins a tie.
func PeakHour(profile models.HourProfile) int {
	return floats.MaxIdx(profile[:])
}

// Center is the mean of the zone centroids.
func Center(zones []models.Zone) models.Location {
	if len(zones) == 0 {
		return models.Location{}
	}
	lats := make([]float64, len(zones))
	lons := make([]float64, len(zones))
	for i, z := range zones {
		lats[i] = z.Centroid.Lat
		lons[i] = z.Centroid.Lon
	}
	n := float64(len(zones))
	return models.Location{Lat: floats.Sum(lats) / n, Lon: floats.Sum(lons) / n}
}
