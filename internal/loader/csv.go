package loader

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chrisdamba/availmap/internal/models"
	"github.com/klauspost/compress/gzip"
)

// rows between context checks
const ctxCheckInterval = 1 << 16

func readCSVFile(ctx context.Context, path string, gzipped bool, opts Options) ([]models.Observation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var r io.Reader = bufio.NewReaderSize(file, 1<<20)
	if gzipped {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	obs, err := ReadCSV(ctx, r, opts)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return obs, nil
}

// ReadCSV parses delimited observations. The first record must be a header
// naming the lat, lon and hod columns; other columns are ignored.
func ReadCSV(ctx context.Context, r io.Reader, opts Options) ([]models.Observation, error) {
	reader := csv.NewReader(r)
	reader.Comma = opts.Delimiter
	reader.ReuseRecord = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoObservations
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	latIdx, lonIdx, hodIdx, err := columnIndexes(header, opts)
	if err != nil {
		return nil, err
	}
	minFields := max(latIdx, lonIdx, hodIdx) + 1

	var obs []models.Observation
	for line := 2; ; line++ {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRow, line, err)
		}
		if len(fields) < minFields {
			return nil, fmt.Errorf("%w: line %d: expected at least %d fields, got %d", ErrMalformedRow, line, minFields, len(fields))
		}

		o, err := parseObservation(fields[latIdx], fields[lonIdx], fields[hodIdx])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRow, line, err)
		}
		obs = append(obs, o)

		if line%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}
	return obs, nil
}

func columnIndexes(header []string, opts Options) (lat, lon, hod int, err error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	lookup := func(col string) (int, error) {
		i, ok := index[strings.ToLower(col)]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrMissingColumn, col)
		}
		return i, nil
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

func parseObservation(latStr, lonStr, hodStr string) (models.Observation, error) {
	var o models.Observation
	var err error

	if o.Lat, err = strconv.ParseFloat(strings.TrimSpace(latStr), 64); err != nil {
		return o, fmt.Errorf("lat: %w", err)
	}
	if o.Lon, err = strconv.ParseFloat(strings.TrimSpace(lonStr), 64); err != nil {
		return o, fmt.Errorf("lon: %w", err)
	}
	if o.Hod, err = parseHour(strings.TrimSpace(hodStr)); err != nil {
		return o, fmt.Errorf("hod: %w", err)
	}
	return o, o.Validate()
}

// parseHour accepts "7" as well as "7.0", which some exports produce.
func parseHour(s string) (int, error) {
	if h, err := strconv.Atoi(s); err == nil {
		return h, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%q is not a whole hour", s)
	}
	return int(f), nil
}

// WriteCSV writes observations with a lat,lon,hod header.
func WriteCSV(w io.Writer, obs []models.Observation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"lat", "lon", "hod"}); err != nil {
		return err
	}
	record := make([]string, 3)
	for _, o := range obs {
		record[0] = strconv.FormatFloat(o.Lat, 'f', -1, 64)
		record[1] = strconv.FormatFloat(o.Lon, 'f', -1, 64)
		record[2] = strconv.Itoa(o.Hod)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes observations to path, gzip-compressed when gzipped is set.
func WriteCSVFile(path string, gzipped bool, obs []models.Observation) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriterSize(file, 1<<20)
	if gzipped {
		zw := gzip.NewWriter(bw)
		if err := WriteCSV(zw, obs); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
	} else if err := WriteCSV(bw, obs); err != nil {
		return err
	}
	return bw.Flush()
}
