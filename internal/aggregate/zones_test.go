package aggregate

import (
	"math/rand"
	"testing"

	"github.com/chrisdamba/availmap/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obsAt(lat, lon float64, hod int) models.Observation {
	return models.Observation{Location: models.Location{Lat: lat, Lon: lon}, Hod: hod, CarHours: 1.0 / 12}
}

func TestZones(t *testing.T) {
	obs := []models.Observation{
		obsAt(45.0, -73.0, 8),
		obsAt(45.2, -73.2, 8),
		obsAt(45.1, -73.1, 9),
		obsAt(46.0, -74.0, 22),
	}
	labels := []int{0, 0, 0, 1}

	zones, err := Zones(obs, labels, 2, 30)
	require.NoError(t, err)
	require.Len(t, zones, 2)

	z0 := zones[0]
	assert.Equal(t, 0, z0.ID)
	assert.Equal(t, 3, z0.Observations)
	assert.InDelta(t, 45.1, z0.Centroid.Lat, 1e-9)
	assert.InDelta(t, -73.1, z0.Centroid.Lon, 1e-9)
	assert.InDelta(t, 3.0/12, z0.CarHours, 1e-12)
	assert.InDelta(t, 2.0/12/30, z0.HourProfile[8], 1e-12)
	assert.InDelta(t, 1.0/12/30, z0.HourProfile[9], 1e-12)
	assert.Equal(t, 8, z0.PeakHour)

	assert.Equal(t, 1, zones[1].ID)
	assert.Equal(t, 22, zones[1].PeakHour)
}

func TestZonesProfileSumsToTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	const k, days = 25, 30

	obs := make([]models.Observation, 20000)
	labels := make([]int, len(obs))
	for i := range obs {
		obs[i] = obsAt(45+rng.Float64(), -73-rng.Float64(), rng.Intn(24))
		labels[i] = i % k
	}

	zones, err := Zones(obs, labels, k, days)
	require.NoError(t, err)
	require.Len(t, zones, k)

	for _, z := range zones {
		assert.InDelta(t, z.CarHours, z.HourProfile.Total()*days, 1e-9, "zone %d", z.ID)
		assert.GreaterOrEqual(t, z.CarHours, 0.0)
		for h, v := range z.HourProfile {
			assert.LessOrEqual(t, v, z.HourProfile[z.PeakHour], "zone %d hour %d", z.ID, h)
		}
	}
}

func TestZonesErrors(t *testing.T) {
	obs := []models.Observation{obsAt(45, -73, 1)}

	_, err := Zones(obs, []int{0, 1}, 2, 30)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = Zones(obs, []int{2}, 2, 30)
	assert.Error(t, err)

	_, err = Zones(obs, []int{0}, 0, 30)
	assert.Error(t, err)

	_, err = Zones(obs, []int{0}, 1, 0)
	assert.Error(t, err)

	neg := []models.Observation{{Hod: 1, CarHours: -1}}
	_, err = Zones(neg, []int{0}, 1, 30)
	assert.Error(t, err)
}

func TestPeakHourPrefersEarliestTie(t *testing.T) {
	var p models.HourProfile
	p[5], p[17] = 2, 2
	assert.Equal(t, 5, PeakHour(p))
}

func TestCenter(t *testing.T) {
	zones := []models.Zone{
		{Centroid: models.Location{Lat: 45, Lon: -73}},
		{Centroid: models.Location{Lat: 47, Lon: -75}},
	}
	assert.Equal(t, models.Location{Lat: 46, Lon: -74}, Center(zones))
	assert.Equal(t, models.Location{}, Center(nil))
}
