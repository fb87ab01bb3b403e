// Package pipeline runs the batch job end to end: load, weight, cluster,
// aggregate, render and write.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chrisdamba/availmap/internal/aggregate"
	"github.com/chrisdamba/availmap/internal/cloudwriter"
	"github.com/chrisdamba/availmap/internal/cluster"
	"github.com/chrisdamba/availmap/internal/loader"
	"github.com/chrisdamba/availmap/internal/metrics"
	"github.com/chrisdamba/availmap/internal/models"
	"github.com/chrisdamba/availmap/internal/output"
	"github.com/chrisdamba/availmap/internal/render"
	"github.com/lucsky/cuid"
	"github.com/paulmach/orb"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

const mapTitle = "Car availability by zone"

type Result struct {
	RunID        string
	Observations int
	Zones        []models.Zone
	OutputPath   string
	ArtifactURL  string
	Steps        int
}

type Pipeline struct {
	Config  *models.Config
	Logger  *zap.Logger
	Metrics *metrics.RunMetrics

	// Sinks and Publisher are built from Config when nil.
	Sinks     output.ZoneSink
	Publisher *output.ArtifactPublisher
	Progress  io.Writer
}

func NewPipeline(cfg *models.Config, logger *zap.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m, err := metrics.NewRunMetrics()
	if err != nil {
		return nil, err
	}

	p := &Pipeline{Config: cfg, Logger: logger, Metrics: m, Progress: io.Discard}
	if cfg.Progress {
		p.Progress = os.Stderr
	}
	return p, nil
}

// stage runs fn after checking for cancellation and records its duration.
func (p *Pipeline) stage(ctx context.Context, log *zap.Logger, name string, fn func() ([]zap.Field, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	fields, err := fn()
	elapsed := time.Since(start)
	if err != nil {
		log.Error("stage failed", zap.String("stage", name), zap.Duration("duration", elapsed), zap.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}
	p.Metrics.ObserveStage(name, elapsed)
	log.Info("stage complete", append([]zap.Field{zap.String("stage", name), zap.Duration("duration", elapsed)}, fields...)...)
	return nil
}

func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	cfg := p.Config
	res := &Result{RunID: cuid.New(), OutputPath: cfg.OutputPath}
	log := p.Logger.With(zap.String("run_id", res.RunID))
	log.Info("starting run", zap.String("input", cfg.InputPath), zap.String("source", cfg.InputSource), zap.Int("zones", cfg.Zones))

	var obs []models.Observation
	err := p.stage(ctx, log, "load", func() ([]zap.Field, error) {
		var err error
		obs, err = loader.Load(ctx, cfg)
		if err != nil {
			return nil, err
		}
		models.DeriveCarHours(obs, cfg.SamplesPerHour)
		p.Metrics.AddObservations(len(obs))
		return []zap.Field{
			zap.Int("observations", len(obs)),
			zap.Float64("car_hours_per_sample", models.CarHoursPerSample(cfg.SamplesPerHour)),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	res.Observations = len(obs)

	var labels []int
	err = p.stage(ctx, log, "cluster", func() ([]zap.Field, error) {
		points := make([]orb.Point, len(obs))
		for i, o := range obs {
			points[i] = o.Point()
		}
		km := cluster.MiniBatchKMeans{
			K:                cfg.Zones,
			BatchSize:        cfg.BatchSize,
			MaxIter:          cfg.MaxIter,
			MaxNoImprovement: cfg.MaxNoImprovement,
			Tol:              cfg.Tol,
			InitSize:         cfg.InitSize,
			Seed:             cfg.Seed,
		}
		fit, err := km.Fit(points)
		if err != nil {
			return nil, err
		}
		labels = fit.Labels
		res.Steps = fit.Steps
		return []zap.Field{zap.Int("steps", fit.Steps), zap.Float64("inertia", fit.Inertia)}, nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, log, "aggregate", func() ([]zap.Field, error) {
		zones, err := aggregate.Zones(obs, labels, cfg.Zones, cfg.NumDays)
		if err != nil {
			return nil, err
		}
		res.Zones = zones
		total := 0.0
		for _, z := range zones {
			total += z.CarHours
		}
		p.Metrics.SetZones(len(zones), total)
		return []zap.Field{zap.Int("zones", len(zones)), zap.Float64("car_hours", total)}, nil
	})
	if err != nil {
		return nil, err
	}

	var m *render.Map
	err = p.stage(ctx, log, "render", func() ([]zap.Field, error) {
		var err error
		m, err = p.buildMap(ctx, res.Zones)
		if err != nil {
			return nil, err
		}
		return []zap.Field{zap.Int("markers", len(m.Markers))}, nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, log, "write", func() ([]zap.Field, error) {
		if err := output.WriteFile(cfg.OutputPath, m.WriteHTML); err != nil {
			return nil, err
		}
		return []zap.Field{zap.String("path", cfg.OutputPath)}, nil
	})
	if err != nil {
		return nil, err
	}

	if err := p.export(ctx, log, res); err != nil {
		return nil, err
	}

	p.Metrics.MarkSuccess(time.Now())
	if cfg.MetricsFile != "" {
		if err := p.Metrics.WriteToTextfile(cfg.MetricsFile); err != nil {
			return nil, fmt.Errorf("write metrics: %w", err)
		}
	}

	log.Info("run complete", zap.String("output", res.OutputPath), zap.Int("zones", len(res.Zones)))
	return res, nil
}

func (p *Pipeline) buildMap(ctx context.Context, zones []models.Zone) (*render.Map, error) {
	cfg := p.Config
	tiles, err := render.LookupTiles(cfg.Tiles)
	if err != nil {
		return nil, err
	}
	opts := render.ChartOptions{Width: cfg.ChartWidth, Height: cfg.ChartHeight, Format: cfg.ChartFormat}

	m := render.NewMap(mapTitle, aggregate.Center(zones), cfg.ZoomStart, tiles)
	m.MaxBounds = cfg.MaxBounds
	bar := progressbar.NewOptions(len(zones),
		progressbar.OptionSetWriter(p.Progress),
		progressbar.OptionSetDescription("rendering zones"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Close()

	for _, z := range zones {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chart, err := render.BarChart(z.HourProfile, render.ColorForHour(z.PeakHour), opts)
		if err != nil {
			return nil, fmt.Errorf("chart for zone %d: %w", z.ID, err)
		}
		mk, err := render.NewMarker(z, chart)
		if err != nil {
			return nil, err
		}
		m.AddMarker(mk)
		bar.Add(1)
	}
	return m, nil
}

// export hands the zone table to the configured sinks and uploads the map.
func (p *Pipeline) export(ctx context.Context, log *zap.Logger, res *Result) error {
	cfg := p.Config

	sinks := p.Sinks
	if sinks == nil {
		built, err := output.NewZoneSinks(cfg)
		if err != nil {
			return err
		}
		if len(built) > 0 {
			sinks = built
		}
	}
	if sinks != nil {
		err := p.stage(ctx, log, "export", func() ([]zap.Field, error) {
			err := sinks.WriteZones(ctx, res.RunID, res.Zones)
			if cerr := sinks.Close(); err == nil {
				err = cerr
			}
			return []zap.Field{zap.String("format", cfg.ExportFormat), zap.Bool("kafka", cfg.KafkaEnabled)}, err
		})
		if err != nil {
			return err
		}
	}

	publisher := p.Publisher
	if publisher == nil && cfg.CloudStorage.BucketName != "" {
		factory, err := newCloudWriterFactory(ctx, cfg.CloudStorage)
		if err != nil {
			return err
		}
		publisher = output.NewArtifactPublisher(factory, cfg.CloudStorage.BucketName, cfg.CloudStorage.Prefix)
	}
	if publisher == nil {
		return nil
	}
	return p.stage(ctx, log, "publish", func() ([]zap.Field, error) {
		url, err := publisher.Publish(ctx, res.RunID, cfg.OutputPath)
		if err != nil {
			return nil, err
		}
		res.ArtifactURL = url
		return []zap.Field{zap.String("url", url)}, nil
	})
}

func newCloudWriterFactory(ctx context.Context, cs models.CloudStorageConfig) (cloudwriter.CloudWriterFactory, error) {
	switch cs.Provider {
	case "s3", "":
		return cloudwriter.NewS3WriterFactory(ctx, cs.Region)
	default:
		return nil, fmt.Errorf("unsupported cloud storage provider: %s", cs.Provider)
	}
}
