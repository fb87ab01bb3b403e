package models

// HourProfile holds average car-hours per day for each hour of day.
type HourProfile [HoursPerDay]float64

// Zone is a spatial cluster of observations and its aggregated availability.
type Zone struct {
	ID           int         `json:"id"`
	Centroid     Location    `json:"centroid"`
	CarHours     float64     `json:"carh"`
	Observations int         `json:"observations"`
	HourProfile  HourProfile `json:"hour_profile"`
	PeakHour     int         `json:"peak_hour"`
}

func (p HourProfile) Slice() []float64 {
	out := make([]float64, HoursPerDay)
	copy(out, p[:])
	return out
}

func (p HourProfile) Total() float64 {
	var sum float64
	for _, v := range p {
		sum += v
	}
	return sum
}
