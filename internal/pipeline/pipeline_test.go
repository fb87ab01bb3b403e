package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/chrisdamba/availmap/internal/cloudwriter"
	"github.com/chrisdamba/availmap/internal/factories"
	"github.com/chrisdamba/availmap/internal/loader"
	"github.com/chrisdamba/availmap/internal/models"
	"github.com/chrisdamba/availmap/internal/output"
	"github.com/chrisdamba/availmap/internal/render"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"
)

const sampleCount = 3000

func testConfig(t *testing.T) *models.Config {
	t.Helper()
	dir := t.TempDir()

	f, err := factories.NewObservationFactory(3, models.Location{Lat: 52.52, Lon: 13.405}, 8, 12)
	require.NoError(t, err)
	input := filepath.Join(dir, "lat_lon_hod.csv.gz")
	require.NoError(t, loader.WriteCSVFile(input, true, f.CreateObservations(sampleCount)))

	cfg, err := models.LoadConfig(viper.New(), "")
	require.NoError(t, err)
	cfg.InputPath = input
	cfg.OutputPath = filepath.Join(dir, "out", "map.html")
	cfg.Zones = 10
	cfg.BatchSize = 256
	cfg.MaxIter = 20
	cfg.Progress = false
	return cfg
}

func zoneData(t *testing.T, path string) []render.Marker {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := html.Parse(bytes.NewReader(data))
	require.NoError(t, err)

	var island *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" {
			for _, a := range n.Attr {
				if a.Key == "id" && a.Val == "zone-data" {
					island = n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	require.NotNil(t, island, "zone-data script missing")
	require.NotNil(t, island.FirstChild)

	var markers []render.Marker
	require.NoError(t, json.Unmarshal([]byte(island.FirstChild.Data), &markers))
	return markers
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	cfg.ExportFormat = models.ExportFormatJSON
	cfg.ExportPath = filepath.Join(filepath.Dir(cfg.OutputPath), "zones.jsonl")
	cfg.MetricsFile = filepath.Join(filepath.Dir(cfg.OutputPath), "availmap.prom")

	p, err := NewPipeline(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, sampleCount, res.Observations)
	require.Len(t, res.Zones, cfg.Zones)

	total := 0.0
	for i, z := range res.Zones {
		assert.Equal(t, i, z.ID)
		assert.Positive(t, z.Observations)
		assert.InDelta(t, float64(z.Observations)/12, z.CarHours, 1e-9)
		assert.InDelta(t, z.CarHours, z.HourProfile.Total()*float64(cfg.NumDays), 1e-9)
		total += z.CarHours
	}
	assert.InDelta(t, float64(sampleCount)/12, total, 1e-6)

	markers := zoneData(t, cfg.OutputPath)
	require.Len(t, markers, cfg.Zones)
	for i, mk := range markers {
		z := res.Zones[i]
		assert.Equal(t, z.ID, mk.ZoneID)
		assert.Equal(t, render.Radius(z.CarHours), mk.Radius)
		assert.Equal(t, render.ColorForHour(z.PeakHour), mk.FillColor)
		assert.Contains(t, mk.Popup, "<svg")
	}

	exported, err := os.ReadFile(cfg.ExportPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Zones, bytes.Count(exported, []byte("\n")))

	prom, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "availmap_zones 10")
}

type recordingSink struct {
	runID  string
	zones  int
	closed bool
}

func (r *recordingSink) WriteZones(_ context.Context, runID string, zones []models.Zone) error {
	r.runID = runID
	r.zones = len(zones)
	return nil
}

func (r *recordingSink) Close() error {
	r.closed = true
	return nil
}

type memWriter struct{ bytes.Buffer }

func (m *memWriter) Close() error { return nil }

type memFactory struct{ keys []string }

func (f *memFactory) NewWriter(_ context.Context, _, key, _ string) (cloudwriter.CloudWriter, error) {
	f.keys = append(f.keys, key)
	return &memWriter{}, nil
}

func TestRunUsesInjectedSinksAndPublisher(t *testing.T) {
	cfg := testConfig(t)
	p, err := NewPipeline(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	sink := &recordingSink{}
	factory := &memFactory{}
	p.Sinks = sink
	p.Publisher = output.NewArtifactPublisher(factory, "bucket", "maps")

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, res.RunID, sink.runID)
	assert.Equal(t, cfg.Zones, sink.zones)
	assert.True(t, sink.closed)
	assert.Equal(t, []string{"maps/" + res.RunID + "/map.html"}, factory.keys)
	assert.Equal(t, "s3://bucket/maps/"+res.RunID+"/map.html", res.ArtifactURL)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	cfg := testConfig(t)
	p, err := NewPipeline(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, cfg.OutputPath)
}

func TestRunRejectsEmptyInput(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, loader.WriteCSVFile(cfg.InputPath, true, nil))

	p, err := NewPipeline(cfg, nil)
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, loader.ErrNoObservations)
}

func TestNewPipelineValidatesConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Zones = 0
	_, err := NewPipeline(cfg, nil)
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
}
