package loader

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/chrisdamba/availmap/internal/models"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/common"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/schema"
	"github.com/xitongsys/parquet-go/writer"
)

const parquetBatchRows = 1 << 16

// observationRow is the layout WriteParquet produces.
type observationRow struct {
	Lat float64 `parquet:"name=lat, type=DOUBLE"`
	Lon float64 `parquet:"name=lon, type=DOUBLE"`
	Hod int32   `parquet:"name=hod, type=INT32"`
}

// ReadParquet reads the lat, lon and hod columns named in opts, matched
// case-insensitively. Coordinates may be DOUBLE or FLOAT and hours any
// integer type or a whole DOUBLE; other columns are ignored.
func ReadParquet(ctx context.Context, path string, opts Options) ([]models.Observation, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file %s: %w", path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetColumnReader(fr, 4)
	if err != nil {
		return nil, fmt.Errorf("create parquet reader for %s: %w", path, err)
	}
	defer pr.ReadStop()

	latPath, lonPath, hodPath, err := parquetColumns(pr.SchemaHandler, opts)
	if err != nil {
		return nil, err
	}

	total := pr.GetNumRows()
	obs := make([]models.Observation, 0, total)
	for read := int64(0); read < total; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n := min(parquetBatchRows, total-read)
		lats, err := readParquetColumn(pr, latPath, n)
		if err != nil {
			return nil, err
		}
		lons, err := readParquetColumn(pr, lonPath, n)
		if err != nil {
			return nil, err
		}
		hods, err := readParquetColumn(pr, hodPath, n)
		if err != nil {
			return nil, err
		}
		if int64(len(lats)) != n || int64(len(lons)) != n || int64(len(hods)) != n {
			return nil, fmt.Errorf("%w: rows %d-%d: column lengths differ", ErrMalformedRow, read+1, read+n)
		}

		for i := range lats {
			row := read + int64(i) + 1
			o, err := parquetObservation(lats[i], lons[i], hods[i])
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedRow, row, err)
			}
			obs = append(obs, o)
		}
		read += n
	}
	return obs, nil
}

// parquetColumns resolves the configured column names to internal schema paths.
func parquetColumns(sh *schema.SchemaHandler, opts Options) (lat, lon, hod string, err error) {
	byName := make(map[string]string, len(sh.ValueColumns))
	for _, in := range sh.ValueColumns {
		ex := common.StrToPath(sh.InPathToExPath[in])
		// top-level leaves only: root + column
		if len(ex) != 2 {
			continue
		}
		byName[strings.ToLower(ex[1])] = in
	}

	lookup := func(name string) (string, error) {
		in, ok := byName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
		return in, nil
	}
	if lat, err = lookup(opts.LatColumn); err != nil {
		return
	}
	if lon, err = lookup(opts.LonColumn); err != nil {
		return
	}
	hod, err = lookup(opts.HodColumn)
	return
}

func readParquetColumn(pr *reader.ParquetReader, path string, n int64) ([]interface{}, error) {
	values, _, _, err := pr.ReadColumnByPath(path, n)
	if err != nil {
		return nil, fmt.Errorf("read parquet column %s: %w", strings.ReplaceAll(path, common.PAR_GO_PATH_DELIMITER, "."), err)
	}
	return values, nil
}

func parquetObservation(lat, lon, hod interface{}) (models.Observation, error) {
	var (
		o   models.Observation
		err error
	)
	if o.Lat, err = parquetFloat(lat); err != nil {
		return o, fmt.Errorf("lat: %w", err)
	}
	if o.Lon, err = parquetFloat(lon); err != nil {
		return o, fmt.Errorf("lon: %w", err)
	}
	if o.Hod, err = parquetHour(hod); err != nil {
		return o, fmt.Errorf("hod: %w", err)
	}
	return o, o.Validate()
}

func parquetFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case nil:
		return 0, fmt.Errorf("null value")
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func parquetHour(v interface{}) (int, error) {
	switch x := v.(type) {
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%v is not a whole hour", x)
		}
		return int(x), nil
	case nil:
		return 0, fmt.Errorf("null value")
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// WriteParquet writes observations to a Parquet file at path.
func WriteParquet(path string, obs []models.Observation) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create local file writer: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(observationRow), 4)
	if err != nil {
		return fmt.Errorf("failed to create ParquetWriter: %w", err)
	}

	for _, o := range obs {
		row := observationRow{Lat: o.Lat, Lon: o.Lon, Hod: int32(o.Hod)}
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("failed to write observation: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return nil
}
