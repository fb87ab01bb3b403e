package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveCarHours(t *testing.T) {
	obs := make([]Observation, 100)
	for i := range obs {
		obs[i] = Observation{Location: Location{Lat: 45.5, Lon: -73.6}, Hod: i % HoursPerDay}
	}

	DeriveCarHours(obs, DefaultSamplesPerHour)

	for i, o := range obs {
		assert.Equal(t, 1.0/12.0, o.CarHours, "row %d", i)
	}
}

func TestObservationValidate(t *testing.T) {
	ok := Observation{Location: Location{Lat: 45.5, Lon: -73.6}, Hod: 23}
	assert.NoError(t, ok.Validate())

	assert.Error(t, Observation{Location: Location{Lat: 91}, Hod: 1}.Validate())
	assert.Error(t, Observation{Location: Location{Lon: -181}, Hod: 1}.Validate())
	assert.Error(t, Observation{Hod: 24}.Validate())
	assert.Error(t, Observation{Hod: -1}.Validate())
}

func TestLocationValidateRejectsNaN(t *testing.T) {
	tests := []Location{
		{Lat: math.NaN(), Lon: -73.6},
		{Lat: 45.5, Lon: math.NaN()},
		{Lat: math.Inf(1), Lon: -73.6},
		{Lat: 45.5, Lon: math.Inf(-1)},
	}
	for _, loc := range tests {
		assert.Error(t, loc.Validate(), "%+v", loc)
	}
}

func TestLocationPoint(t *testing.T) {
	p := Location{Lat: 45.51, Lon: -73.57}.Point()
	assert.Equal(t, -73.57, p.X())
	assert.Equal(t, 45.51, p.Y())
}
