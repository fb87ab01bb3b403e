package cmd

import (
	"fmt"
	"strings"

	"github.com/chrisdamba/availmap/internal/factories"
	"github.com/chrisdamba/availmap/internal/loader"
	"github.com/chrisdamba/availmap/internal/logging"
	"github.com/chrisdamba/availmap/internal/models"
	"github.com/chrisdamba/availmap/internal/repositories/postgres"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Writes synthetic availability samples",
	Long: `generate synthesizes lat, lon, hod samples clustered around hotspots of a
city and writes them where the main command reads its input: a csv, csv.gz or
parquet file, or a PostgreSQL table with --input-source postgres.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Samples <= 0 {
			return fmt.Errorf("%w: samples must be positive, got %d", models.ErrInvalidConfig, cfg.Samples)
		}

		logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		defer logger.Sync()

		factory, err := factories.FromConfig(cfg)
		if err != nil {
			return err
		}
		obs := factory.CreateObservations(cfg.Samples)

		ctx := cmd.Context()
		if cfg.InputSource == models.InputSourcePostgres {
			pool, err := postgres.Connect(ctx, cfg.PostgresURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			repo := postgres.NewObservationRepository(pool, cfg.PostgresTable)
			if truncate, _ := cmd.Flags().GetBool("truncate"); truncate {
				if err := repo.DeleteAll(ctx); err != nil {
					return err
				}
			}
			if err := repo.BulkCreate(ctx, obs); err != nil {
				return err
			}
			logger.Info("samples written", zap.String("table", cfg.PostgresTable), zap.Int("samples", len(obs)))
			return nil
		}

		format := cfg.InputFormat
		if format == "" {
			if format, err = loader.DetectFormat(cfg.InputPath); err != nil {
				return err
			}
		}
		switch strings.ToLower(format) {
		case models.InputFormatCSVGzip:
			err = loader.WriteCSVFile(cfg.InputPath, true, obs)
		case models.InputFormatCSV:
			err = loader.WriteCSVFile(cfg.InputPath, false, obs)
		case models.InputFormatParquet:
			err = loader.WriteParquet(cfg.InputPath, obs)
		default:
			err = fmt.Errorf("%w: %s", loader.ErrUnsupportedFormat, format)
		}
		if err != nil {
			return err
		}

		logger.Info("samples written",
			zap.String("path", cfg.InputPath),
			zap.Int("samples", len(obs)),
			zap.Int("hotspots", len(factory.Hotspots)))
		return nil
	},
}

func init() {
	f := generateCmd.Flags()
	f.String("input", "lat_lon_hod.csv.gz", "File to write")
	f.String("input-source", models.InputSourceFile, "Target (file or postgres)")
	f.String("input-format", "", "File format (csv, csv.gz or parquet); detected from the extension when empty")
	f.String("postgres-url", "", "PostgreSQL connection string for input-source=postgres")
	f.String("postgres-table", "observations", "PostgreSQL table to fill")
	f.Bool("truncate", false, "Empty the table before inserting")
	f.Int("samples", 100000, "Number of samples")
	f.Int("hotspots", 40, "Number of hotspots")
	f.Float64("city-lat", 52.52, "City center latitude")
	f.Float64("city-lon", 13.405, "City center longitude")
	f.Float64("urban-radius", 12, "Radius around the center in km")
	f.Int64("seed", 42, "Random seed")
}
