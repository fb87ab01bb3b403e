// Package loader reads availability observations from delimited files,
// Parquet files or a Postgres table.
package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/chrisdamba/availmap/internal/models"
	"github.com/chrisdamba/availmap/internal/repositories"
	"github.com/chrisdamba/availmap/internal/repositories/postgres"
)

var (
	ErrMalformedRow      = errors.New("malformed row")
	ErrMissingColumn     = errors.New("missing column")
	ErrNoObservations    = errors.New("no observations")
	ErrUnsupportedFormat = errors.New("unsupported input format")
)

// Options controls how delimited input is parsed.
type Options struct {
	Delimiter rune
	LatColumn string
	LonColumn string
	HodColumn string
}

func DefaultOptions() Options {
	return Options{Delimiter: ',', LatColumn: "lat", LonColumn: "lon", HodColumn: "hod"}
}

func OptionsFromConfig(cfg *models.Config) Options {
	return Options{
		Delimiter: cfg.DelimiterRune(),
		LatColumn: cfg.LatColumn,
		LonColumn: cfg.LonColumn,
		HodColumn: cfg.HodColumn,
	}
}

// Load reads every observation named by cfg. The result is never empty.
func Load(ctx context.Context, cfg *models.Config) ([]models.Observation, error) {
	var (
		obs []models.Observation
		err error
	)
	switch cfg.InputSource {
	case models.InputSourcePostgres:
		obs, err = loadPostgres(ctx, cfg)
	case models.InputSourceFile, "":
		obs, err = LoadFile(ctx, cfg.InputPath, cfg.InputFormat, OptionsFromConfig(cfg))
	default:
		return nil, fmt.Errorf("%w: source %q", ErrUnsupportedFormat, cfg.InputSource)
	}
	if err != nil {
		return nil, err
	}
	if len(obs) == 0 {
		return nil, ErrNoObservations
	}
	return obs, nil
}

// LoadFile reads a local file. An empty format is detected from the extension.
func LoadFile(ctx context.Context, path, format string, opts Options) ([]models.Observation, error) {
	if format == "" {
		var err error
		if format, err = DetectFormat(path); err != nil {
			return nil, err
		}
	}

	opts = optionsForPath(path, opts)

	switch format {
	case models.InputFormatCSV, models.InputFormatCSVGzip:
		return readCSVFile(ctx, path, format == models.InputFormatCSVGzip, opts)
	case models.InputFormatParquet:
		return ReadParquet(ctx, path, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// optionsForPath switches the default comma delimiter to tab for .tsv and
// .tsv.gz files. Any other configured delimiter is kept.
func optionsForPath(path string, opts Options) Options {
	lower := strings.TrimSuffix(strings.ToLower(path), ".gz")
	if strings.HasSuffix(lower, ".tsv") && opts.Delimiter == ',' {
		opts.Delimiter = '\t'
	}
	return opts
}

func DetectFormat(path string) (string, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".csv.gz"), strings.HasSuffix(lower, ".gz"):
		return models.InputFormatCSVGzip, nil
	case strings.HasSuffix(lower, ".csv"), strings.HasSuffix(lower, ".tsv"), strings.HasSuffix(lower, ".txt"):
		return models.InputFormatCSV, nil
	case strings.HasSuffix(lower, ".parquet"):
		return models.InputFormatParquet, nil
	default:
		return "", fmt.Errorf("%w: cannot detect format of %q", ErrUnsupportedFormat, filepath.Base(path))
	}
}

func loadPostgres(ctx context.Context, cfg *models.Config) ([]models.Observation, error) {
	pool, err := postgres.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	return LoadRepository(ctx, postgres.NewObservationRepository(pool, cfg.PostgresTable))
}

// LoadRepository reads every stored observation from repo.
func LoadRepository(ctx context.Context, repo repositories.ObservationRepository) ([]models.Observation, error) {
	n, err := repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNoObservations
	}
	return repo.GetAll(ctx)
}
