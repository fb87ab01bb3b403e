package models

import "fmt"

// Observation is one availability sample: a vehicle seen at Location during
// hour-of-day Hod. CarHours is the weight derived from the sampling rate.
type Observation struct {
	Location
	Hod      int     `json:"hod"`
	CarHours float64 `json:"carh"`
}

func (o Observation) Validate() error {
	if err := o.Location.Validate(); err != nil {
		return err
	}
	if o.Hod < 0 || o.Hod >= HoursPerDay {
		return fmt.Errorf("hour of day %d out of range [0, %d]", o.Hod, HoursPerDay-1)
	}
	return nil
}

// CarHoursPerSample is the weight of a single sample when the source was
// polled samplesPerHour times an hour.
func CarHoursPerSample(samplesPerHour int) float64 {
	return 1.0 / float64(samplesPerHour)
}

// DeriveCarHours sets the constant per-sample weight on every observation.
func DeriveCarHours(obs []Observation, samplesPerHour int) {
	w := CarHoursPerSample(samplesPerHour)
	for i := range obs {
		obs[i].CarHours = w
	}
}
