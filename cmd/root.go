package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chrisdamba/availmap/internal/logging"
	"github.com/chrisdamba/availmap/internal/models"
	"github.com/chrisdamba/availmap/internal/pipeline"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string

// flagKeys maps flags whose config key is not the flag name with dashes
// replaced by underscores.
var flagKeys = map[string]string{
	"input":     "input_path",
	"output":    "output_path",
	"s3-bucket": "cloud_storage.bucket_name",
	"s3-region": "cloud_storage.region",
	"s3-prefix": "cloud_storage.prefix",
}

var rootCmd = &cobra.Command{
	Use:   "availmap",
	Short: "Maps where and when shared cars are available",
	Long: `availmap clusters geolocated car availability samples into zones and renders
a single interactive HTML map with one circle per zone, sized by total
car-hours, colored by the busiest hour and showing its daily profile on click.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		defer logger.Sync()

		p, err := pipeline.NewPipeline(cfg, logger)
		if err != nil {
			return err
		}
		res, err := p.Run(cmd.Context())
		if err != nil {
			return err
		}

		logger.Info("map written",
			zap.String("run_id", res.RunID),
			zap.String("path", res.OutputPath),
			zap.Int("zones", len(res.Zones)),
			zap.Int("observations", res.Observations))
		if res.ArtifactURL != "" {
			fmt.Fprintln(cmd.OutOrStdout(), res.ArtifactURL)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initEnv)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml or json)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "Log encoding (console or json)")

	f := rootCmd.Flags()
	f.String("input", "lat_lon_hod.csv.gz", "Input file with lat, lon and hod columns")
	f.String("input-source", models.InputSourceFile, "Input source (file or postgres)")
	f.String("input-format", "", "Input format (csv, csv.gz or parquet); detected from the extension when empty")
	f.String("delimiter", ",", "Field delimiter of delimited input")
	f.String("lat-column", "lat", "Latitude column name")
	f.String("lon-column", "lon", "Longitude column name")
	f.String("hod-column", "hod", "Hour-of-day column name")
	f.String("postgres-url", "", "PostgreSQL connection string for input-source=postgres")
	f.String("postgres-table", "observations", "PostgreSQL table holding the observations")
	f.String("output", "map.html", "Output HTML file")
	f.Int("zones", models.DefaultZones, "Number of zones")
	f.Int("samples-per-hour", models.DefaultSamplesPerHour, "Samples per hour in the source data")
	f.Int("num-days", models.DefaultNumDays, "Days covered by the source data")
	f.Int64("seed", 42, "Random seed for clustering")
	f.Int("batch-size", 1024, "Mini-batch size")
	f.Int("max-iter", 100, "Maximum passes over the data")
	f.Int("max-no-improvement", 10, "Batches without inertia improvement before stopping (0 disables)")
	f.Float64("tol", 0, "Stop when centers move less than this (0 disables)")
	f.Int("init-size", 0, "Sample size for center seeding (0 means 3*batch-size)")
	f.Int("zoom-start", 12, "Initial map zoom")
	f.Bool("max-bounds", false, "Keep panning within the area covered by the zones")
	f.String("tiles", "cartodbpositron", "Basemap name or tile URL template")
	f.String("chart-format", models.ChartFormatSVG, "Popup chart format (svg or png)")
	f.Int("chart-width", 450, "Popup chart width in pixels")
	f.Int("chart-height", 150, "Popup chart height in pixels")
	f.String("export-format", "", "Also export the zone table (csv, json or parquet)")
	f.String("export-path", "", "Zone table path")
	f.String("s3-bucket", "", "Upload the map to this S3 bucket")
	f.String("s3-region", "us-east-1", "S3 region")
	f.String("s3-prefix", "maps", "S3 key prefix")
	f.Bool("kafka-enabled", false, "Publish one message per zone to Kafka")
	f.String("kafka-broker-list", "localhost:9092", "Kafka broker list")
	f.String("kafka-topic", "zone_availability", "Kafka topic")
	f.String("metrics-file", "", "Write Prometheus metrics to this textfile")
	f.Bool("progress", true, "Show a progress bar while rendering")

	rootCmd.AddCommand(generateCmd)
}

func initEnv() {
	_ = godotenv.Load() // ignore missing file
}

// bindFlags binds every flag of cmd to its configuration key.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Name == "config" || f.Name == "help" {
			return
		}
		key, ok := flagKeys[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

func loadConfig(cmd *cobra.Command) (*models.Config, error) {
	v := viper.New()
	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}
	cfg, err := models.LoadConfig(v, cfgFile)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
