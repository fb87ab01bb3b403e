package output

import (
	"context"
	"encoding/json"
	"io"

	"github.com/chrisdamba/availmap/internal/models"
)

// JSONOutput writes one JSON object per zone per line.
type JSONOutput struct {
	path string
}

func NewJSONOutput(path string) *JSONOutput {
	return &JSONOutput{path: path}
}

func (j *JSONOutput) WriteZones(_ context.Context, runID string, zones []models.Zone) error {
	return WriteFile(j.path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		for _, z := range zones {
			if err := enc.Encode(NewZoneRecord(runID, z)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (j *JSONOutput) Close() error { return nil }
