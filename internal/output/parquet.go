package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrisdamba/availmap/internal/models"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"
)

type zoneRow struct {
	RunID        string    `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	ZoneID       int32     `parquet:"name=zone_id, type=INT32"`
	Lat          float64   `parquet:"name=lat, type=DOUBLE"`
	Lon          float64   `parquet:"name=lon, type=DOUBLE"`
	CarHours     float64   `parquet:"name=carh, type=DOUBLE"`
	Observations int64     `parquet:"name=observations, type=INT64"`
	PeakHour     int32     `parquet:"name=peak_hour, type=INT32"`
	HourProfile  []float64 `parquet:"name=hour_profile, type=DOUBLE, repetitiontype=REPEATED"`
}

type ParquetOutput struct {
	path string
}

func NewParquetOutput(path string) *ParquetOutput {
	return &ParquetOutput{path: path}
}

func (p *ParquetOutput) WriteZones(_ context.Context, runID string, zones []models.Zone) error {
	if err := os.MkdirAll(filepath.Dir(p.path), os.ModePerm); err != nil {
		return err
	}

	fw, err := local.NewLocalFileWriter(p.path)
	if err != nil {
		return fmt.Errorf("failed to create local file writer: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(zoneRow), 4)
	if err != nil {
		return fmt.Errorf("failed to create ParquetWriter: %w", err)
	}

	for _, z := range zones {
		r := NewZoneRecord(runID, z)
		row := zoneRow{
			RunID:        r.RunID,
			ZoneID:       int32(r.ZoneID),
			Lat:          r.Lat,
			Lon:          r.Lon,
			CarHours:     r.CarHours,
			Observations: int64(r.Observations),
			PeakHour:     int32(r.PeakHour),
			HourProfile:  r.HourProfile,
		}
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("failed to write zone %d: %w", z.ID, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return nil
}

func (p *ParquetOutput) Close() error { return nil }
