package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"IndiCache/internal/domain/models"
	"IndiCache/pkg/util"
)

// CSVSourceReader reads per-symbol daily bars from <dir>/<code>.csv files
// with a "date,open,high,low,close,volume" header. Rows are normalized
// and sorted ascending; duplicate dates are left for series validation
// to reject.
type CSVSourceReader struct {
	dir string
}

// NewCSVSourceReader creates a reader rooted at dir.
func NewCSVSourceReader(dir string) *CSVSourceReader {
	return &CSVSourceReader{dir: dir}
}

// ReadSeries loads and parses one symbol file.
func (r *CSVSourceReader) ReadSeries(ctx context.Context, code string) (*models.SymbolSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(r.dir, code+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source %s: %w", path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = 6
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	if len(header) < 6 || !strings.EqualFold(strings.TrimSpace(header[0]), "date") {
		return nil, fmt.Errorf("unexpected header in %s: %v", path, header)
	}

	var bars []models.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s line %d: %w", path, line, err)
		}
		bar, err := parseBar(rec)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date < bars[j].Date })
	return &models.SymbolSeries{Code: code, Bars: bars}, nil
}

func parseBar(rec []string) (models.Bar, error) {
	day, err := util.NormalizeDay(rec[0])
	if err != nil {
		return models.Bar{}, err
	}
	vals := make([]float64, 5)
	for i, field := range rec[1:6] {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return models.Bar{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return models.Bar{
		Date:   day,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
