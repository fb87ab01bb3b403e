package models

const (
	HoursPerDay = 24

	DefaultZones          = 250
	DefaultSamplesPerHour = 12
	DefaultNumDays        = 30

	InputSourceFile     = "file"
	InputSourcePostgres = "postgres"

	InputFormatCSV     = "csv"
	InputFormatCSVGzip = "csv.gz"
	InputFormatParquet = "parquet"

	ChartFormatSVG = "svg"
	ChartFormatPNG = "png"

	ExportFormatCSV     = "csv"
	ExportFormatJSON    = "json"
	ExportFormatParquet = "parquet"
)
