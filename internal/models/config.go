package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const EnvPrefix = "AVAILMAP"

type Config struct {
	InputPath     string `mapstructure:"input_path"`
	InputSource   string `mapstructure:"input_source"` // file or postgres
	InputFormat   string `mapstructure:"input_format"` // empty means detect from extension
	Delimiter     string `mapstructure:"delimiter"`
	LatColumn     string `mapstructure:"lat_column"`
	LonColumn     string `mapstructure:"lon_column"`
	HodColumn     string `mapstructure:"hod_column"`
	PostgresURL   string `mapstructure:"postgres_url"`
	PostgresTable string `mapstructure:"postgres_table"`

	OutputPath string `mapstructure:"output_path"`

	Zones            int     `mapstructure:"zones"`
	SamplesPerHour   int     `mapstructure:"samples_per_hour"`
	NumDays          int     `mapstructure:"num_days"`
	Seed             int64   `mapstructure:"seed"`
	BatchSize        int     `mapstructure:"batch_size"`
	MaxIter          int     `mapstructure:"max_iter"`
	MaxNoImprovement int     `mapstructure:"max_no_improvement"`
	Tol              float64 `mapstructure:"tol"`
	InitSize         int     `mapstructure:"init_size"`

	ZoomStart   int    `mapstructure:"zoom_start"`
	MaxBounds   bool   `mapstructure:"max_bounds"`
	Tiles       string `mapstructure:"tiles"`
	ChartFormat string `mapstructure:"chart_format"` // svg or png
	ChartWidth  int    `mapstructure:"chart_width"`
	ChartHeight int    `mapstructure:"chart_height"`

	ExportFormat string `mapstructure:"export_format"` // csv, json, parquet or empty
	ExportPath   string `mapstructure:"export_path"`

	CloudStorage CloudStorageConfig `mapstructure:"cloud_storage"`

	KafkaEnabled    bool   `mapstructure:"kafka_enabled"`
	KafkaBrokerList string `mapstructure:"kafka_broker_list"`
	KafkaTopic      string `mapstructure:"kafka_topic"`

	CityLat     float64 `mapstructure:"city_lat"`
	CityLon     float64 `mapstructure:"city_lon"`
	UrbanRadius float64 `mapstructure:"urban_radius"` // km
	Hotspots    int     `mapstructure:"hotspots"`
	Samples     int     `mapstructure:"samples"`

	MetricsFile string `mapstructure:"metrics_file"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	Progress    bool   `mapstructure:"progress"`
}

type CloudStorageConfig struct {
	Provider   string `mapstructure:"provider"`
	BucketName string `mapstructure:"bucket_name"`
	Region     string `mapstructure:"region"`
	Prefix     string `mapstructure:"prefix"`
}

// SetDefaults registers the default value of every configuration key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("input_path", "lat_lon_hod.csv.gz")
	v.SetDefault("input_source", InputSourceFile)
	v.SetDefault("input_format", "")
	v.SetDefault("delimiter", ",")
	v.SetDefault("lat_column", "lat")
	v.SetDefault("lon_column", "lon")
	v.SetDefault("hod_column", "hod")
	v.SetDefault("postgres_url", "")
	v.SetDefault("postgres_table", "observations")
	v.SetDefault("output_path", "map.html")
	v.SetDefault("zones", DefaultZones)
	v.SetDefault("samples_per_hour", DefaultSamplesPerHour)
	v.SetDefault("num_days", DefaultNumDays)
	v.SetDefault("seed", 42)
	v.SetDefault("batch_size", 1024)
	v.SetDefault("max_iter", 100)
	v.SetDefault("max_no_improvement", 10)
	v.SetDefault("tol", 0.0)
	v.SetDefault("init_size", 0)
	v.SetDefault("zoom_start", 12)
	v.SetDefault("max_bounds", false)
	v.SetDefault("tiles", "cartodbpositron")
	v.SetDefault("chart_format", ChartFormatSVG)
	v.SetDefault("chart_width", 450)
	v.SetDefault("chart_height", 150)
	v.SetDefault("export_format", "")
	v.SetDefault("export_path", "")
	v.SetDefault("cloud_storage.provider", "s3")
	v.SetDefault("cloud_storage.bucket_name", "")
	v.SetDefault("cloud_storage.prefix", "maps")
	v.SetDefault("cloud_storage.region", "us-east-1")
	v.SetDefault("kafka_enabled", false)
	v.SetDefault("kafka_broker_list", "localhost:9092")
	v.SetDefault("kafka_topic", "zone_availability")
	v.SetDefault("city_lat", 52.5200)
	v.SetDefault("city_lon", 13.4050)
	v.SetDefault("urban_radius", 12.0)
	v.SetDefault("hotspots", 40)
	v.SetDefault("samples", 100000)
	v.SetDefault("metrics_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("progress", true)
}

// LoadConfig reads the configuration through v, layering defaults, the optional
// config file and AVAILMAP_* environment variables.
func LoadConfig(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var config Config
	decoderConfigOption := viper.DecoderConfigOption(func(config *mapstructure.DecoderConfig) {
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			config.DecodeHook,
			mapstructure.StringToTimeDurationHookFunc(),
		)
	})
	if err := v.Unmarshal(&config, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

var ErrInvalidConfig = errors.New("invalid config")

func (cfg *Config) Validate() error {
	switch {
	case cfg.Zones <= 0:
		return fmt.Errorf("%w: zones must be positive, got %d", ErrInvalidConfig, cfg.Zones)
	case cfg.SamplesPerHour <= 0:
		return fmt.Errorf("%w: samples_per_hour must be positive, got %d", ErrInvalidConfig, cfg.SamplesPerHour)
	case cfg.NumDays <= 0:
		return fmt.Errorf("%w: num_days must be positive, got %d", ErrInvalidConfig, cfg.NumDays)
	case cfg.BatchSize <= 0:
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidConfig, cfg.BatchSize)
	case cfg.MaxIter <= 0:
		return fmt.Errorf("%w: max_iter must be positive, got %d", ErrInvalidConfig, cfg.MaxIter)
	case cfg.OutputPath == "":
		return fmt.Errorf("%w: output_path is required", ErrInvalidConfig)
	case len([]rune(cfg.Delimiter)) != 1:
		return fmt.Errorf("%w: delimiter must be a single character, got %q", ErrInvalidConfig, cfg.Delimiter)
	}

	switch cfg.InputSource {
	case InputSourceFile:
		if cfg.InputPath == "" {
			return fmt.Errorf("%w: input_path is required", ErrInvalidConfig)
		}
	case InputSourcePostgres:
		if cfg.PostgresURL == "" {
			return fmt.Errorf("%w: postgres_url is required for input_source=postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported input_source %q", ErrInvalidConfig, cfg.InputSource)
	}

	switch cfg.ChartFormat {
	case ChartFormatSVG, ChartFormatPNG:
	default:
		return fmt.Errorf("%w: unsupported chart_format %q", ErrInvalidConfig, cfg.ChartFormat)
	}

	switch cfg.ExportFormat {
	case "":
	case ExportFormatCSV, ExportFormatJSON, ExportFormatParquet:
		if cfg.ExportPath == "" {
			return fmt.Errorf("%w: export_path is required when export_format is set", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported export_format %q", ErrInvalidConfig, cfg.ExportFormat)
	}

	if cfg.KafkaEnabled && (cfg.KafkaBrokerList == "" || cfg.KafkaTopic == "") {
		return fmt.Errorf("%w: kafka_broker_list and kafka_topic are required when kafka is enabled", ErrInvalidConfig)
	}
	return nil
}

// DelimiterRune returns the configured field separator.
func (cfg *Config) DelimiterRune() rune {
	for _, r := range cfg.Delimiter {
		return r
	}
	return ','
}
