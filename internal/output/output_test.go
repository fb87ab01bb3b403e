package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/chrisdamba/availmap/internal/cloudwriter"
	"github.com/chrisdamba/availmap/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
)

func testZones() []models.Zone {
	var p0, p1 models.HourProfile
	p0[8] = 1.5
	p1[18] = 0.25
	p1[3] = 0.1
	return []models.Zone{
		{ID: 0, Centroid: models.Location{Lat: 37.77, Lon: -122.42}, CarHours: 45, Observations: 540, HourProfile: p0, PeakHour: 8},
		{ID: 1, Centroid: models.Location{Lat: 37.80, Lon: -122.40}, CarHours: 10.5, Observations: 126, HourProfile: p1, PeakHour: 18},
	}
}

func TestWriteFileIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "map.html")

	require.NoError(t, WriteFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "first")
		return err
	}))

	err := WriteFile(path, func(w io.Writer) error {
		io.WriteString(w, "partial")
		return errors.New("render failed")
	})
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be cleaned up")
}

func TestCSVOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.csv")
	sink := NewCSVOutput(path)
	require.NoError(t, sink.WriteZones(context.Background(), "run1", testZones()))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Len(t, rows[0], 7+models.HoursPerDay)
	assert.Equal(t, "h00", rows[0][7])
	assert.Equal(t, "h23", rows[0][30])
	assert.Equal(t, []string{"run1", "0", "37.77", "-122.42", "45", "540", "8"}, rows[1][:7])
	assert.Equal(t, "1.5", rows[1][7+8])
	assert.Equal(t, "0.25", rows[2][7+18])
}

func TestJSONOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.jsonl")
	require.NoError(t, NewJSONOutput(path).WriteZones(context.Background(), "run1", testZones()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var rec ZoneRecord
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "run1", rec.RunID)
	assert.Equal(t, 1, rec.ZoneID)
	assert.Equal(t, 18, rec.PeakHour)
	assert.Len(t, rec.HourProfile, models.HoursPerDay)
	assert.InDelta(t, 0.25, rec.HourProfile[18], 1e-12)
}

func TestParquetOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.parquet")
	require.NoError(t, NewParquetOutput(path).WriteZones(context.Background(), "run1", testZones()))

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(zoneRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	require.EqualValues(t, 2, pr.GetNumRows())
	rows := make([]zoneRow, 2)
	require.NoError(t, pr.Read(&rows))
	assert.Equal(t, int32(1), rows[1].ZoneID)
	assert.InDelta(t, 10.5, rows[1].CarHours, 1e-12)
	require.Len(t, rows[0].HourProfile, models.HoursPerDay)
	assert.InDelta(t, 1.5, rows[0].HourProfile[8], 1e-12)
}

func TestKafkaOutput(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	var keys []string
	for i := 0; i < 2; i++ {
		producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
			k, err := msg.Key.Encode()
			if err != nil {
				return err
			}
			keys = append(keys, string(k))
			if msg.Topic != "zone_availability" {
				return errors.New("unexpected topic " + msg.Topic)
			}
			var rec ZoneRecord
			v, err := msg.Value.Encode()
			if err != nil {
				return err
			}
			return json.Unmarshal(v, &rec)
		})
	}

	sink := NewKafkaOutput(producer, "zone_availability")
	require.NoError(t, sink.WriteZones(context.Background(), "run1", testZones()))
	require.NoError(t, sink.Close())
	assert.Equal(t, []string{"run1/0", "run1/1"}, keys)

	assert.Error(t, sink.WriteZones(context.Background(), "run1", testZones()))
}

type failingSink struct{ err error }

func (f failingSink) WriteZones(context.Context, string, []models.Zone) error { return f.err }
func (f failingSink) Close() error                                         { return f.err }

func TestMultiSinkAggregatesErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	sinks := MultiSink{failingSink{errA}, failingSink{nil}, failingSink{errB}}

	err := sinks.WriteZones(context.Background(), "run1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)

	assert.Error(t, sinks.Close())
	assert.NoError(t, MultiSink{}.Close())
}

func TestNewZoneSinks(t *testing.T) {
	cfg := &models.Config{ExportFormat: models.ExportFormatJSON, ExportPath: "zones.jsonl"}
	sinks, err := NewZoneSinks(cfg)
	require.NoError(t, err)
	require.Len(t, sinks, 1)
	assert.IsType(t, &JSONOutput{}, sinks[0])

	sinks, err = NewZoneSinks(&models.Config{})
	require.NoError(t, err)
	assert.Empty(t, sinks)

	_, err = NewZoneSinks(&models.Config{ExportFormat: "xml"})
	assert.Error(t, err)
}

type memWriter struct {
	bytes.Buffer
	closed bool
}

func (m *memWriter) Close() error {
	m.closed = true
	return nil
}

type memFactory struct {
	bucket, key, contentType string
	w                        *memWriter
}

func (f *memFactory) NewWriter(_ context.Context, bucket, key, contentType string) (cloudwriter.CloudWriter, error) {
	f.bucket, f.key, f.contentType = bucket, key, contentType
	f.w = &memWriter{}
	return f.w, nil
}

func TestArtifactPublisher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.html")
	require.NoError(t, os.WriteFile(path, []byte("<html></html>"), 0o644))

	factory := &memFactory{}
	pub := NewArtifactPublisher(factory, "bucket", "/maps/")
	url, err := pub.Publish(context.Background(), "run1", path)
	require.NoError(t, err)

	assert.Equal(t, "s3://bucket/maps/run1/map.html", url)
	assert.Equal(t, "maps/run1/map.html", factory.key)
	assert.True(t, strings.HasPrefix(factory.contentType, "text/html"))
	assert.True(t, factory.w.closed)
	assert.Equal(t, "<html></html>", factory.w.String())

	_, err = pub.Publish(context.Background(), "run1", filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)
}
