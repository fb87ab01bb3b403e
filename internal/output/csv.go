package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/chrisdamba/availmap/internal/models"
)

type CSVOutput struct {
	path string
}

func NewCSVOutput(path string) *CSVOutput {
	return &CSVOutput{path: path}
}

func csvHeader() []string {
	header := []string{"run_id", "zone_id", "lat", "lon", "carh", "observations", "peak_hour"}
	for h := 0; h < models.HoursPerDay; h++ {
		header = append(header, fmt.Sprintf("h%02d", h))
	}
	return header
}

func (c *CSVOutput) WriteZones(_ context.Context, runID string, zones []models.Zone) error {
	return WriteFile(c.path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader()); err != nil {
			return err
		}
		for _, z := range zones {
			r := NewZoneRecord(runID, z)
			row := []string{
				r.RunID,
				strconv.Itoa(r.ZoneID),
				strconv.FormatFloat(r.Lat, 'f', -1, 64),
				strconv.FormatFloat(r.Lon, 'f', -1, 64),
				strconv.FormatFloat(r.CarHours, 'f', -1, 64),
				strconv.Itoa(r.Observations),
				strconv.Itoa(r.PeakHour),
			}
			for _, v := range r.HourProfile {
				row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

func (c *CSVOutput) Close() error { return nil }
