// Package output writes the map artifact and the optional zone tables.
package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chrisdamba/availmap/internal/models"
	"github.com/hashicorp/go-multierror"
)

// ZoneSink receives the zone table of a run.
type ZoneSink interface {
	WriteZones(ctx context.Context, runID string, zones []models.Zone) error
	Close() error
}

// ZoneRecord is the flat form of a zone shared by every sink.
type ZoneRecord struct {
	RunID        string    `json:"runId"`
	ZoneID       int       `json:"zoneId"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	CarHours     float64   `json:"carh"`
	Observations int       `json:"observations"`
	PeakHour     int       `json:"peakHour"`
	HourProfile  []float64 `json:"hourProfile"`
}

func NewZoneRecord(runID string, z models.Zone) ZoneRecord {
	return ZoneRecord{
		RunID:        runID,
		ZoneID:       z.ID,
		Lat:          z.Centroid.Lat,
		Lon:          z.Centroid.Lon,
		CarHours:     z.CarHours,
		Observations: z.Observations,
		PeakHour:     z.PeakHour,
		HourProfile:  z.HourProfile.Slice(),
	}
}

// WriteFile writes path atomically: render fills a temp file in the same
// directory which is then renamed over path.
func WriteFile(path string, render func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = render(tmp); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// MultiSink fans the zone table out to several sinks.
type MultiSink []ZoneSink

func (m MultiSink) WriteZones(ctx context.Context, runID string, zones []models.Zone) error {
	var result error
	for _, s := range m {
		if err := s.WriteZones(ctx, runID, zones); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

func (m MultiSink) Close() error {
	var result error
	for _, s := range m {
		if err := s.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// NewZoneSinks builds the sinks enabled in cfg. An empty MultiSink is valid.
func NewZoneSinks(cfg *models.Config) (MultiSink, error) {
	var sinks MultiSink

	switch strings.ToLower(cfg.ExportFormat) {
	case "":
	case models.ExportFormatCSV:
		sinks = append(sinks, NewCSVOutput(cfg.ExportPath))
	case models.ExportFormatJSON:
		sinks = append(sinks, NewJSONOutput(cfg.ExportPath))
	case models.ExportFormatParquet:
		sinks = append(sinks, NewParquetOutput(cfg.ExportPath))
	default:
		return nil, fmt.Errorf("unsupported export format: %s", cfg.ExportFormat)
	}

	if cfg.KafkaEnabled {
		producer, err := NewSaramaProducer(strings.Split(cfg.KafkaBrokerList, ","))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, NewKafkaOutput(producer, cfg.KafkaTopic))
	}
	return sinks, nil
}
