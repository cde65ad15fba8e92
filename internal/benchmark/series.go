package benchmark

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"tinyesn/internal/esn"
)

const (
	defaultSinePeriod = 50
	defaultSineLength = 2000
)

// Series turns a univariate time series into next-value prediction samples.
// Values are divided by twice the series maximum.
type Series struct {
	name   string
	values []float64
}

// NewSeries normalises raw and wraps it as a benchmark.
func NewSeries(name string, raw []float64) (*Series, error) {
	if len(raw) < 2 {
		return nil, errors.Errorf("series %s requires at least 2 values, got %d", name, len(raw))
	}
	peak := floats.Max(raw)
	if peak <= 0 {
		return nil, errors.Errorf("series %s requires a positive maximum, got %f", name, peak)
	}
	values := make([]float64, len(raw))
	for i, value := range raw {
		values[i] = value / (2 * peak)
	}
	return &Series{name: name, values: values}, nil
}

// NewSine samples length points of sin(2πi/period)+1.
func NewSine(period, length int) (*Series, error) {
	if period <= 0 {
		return nil, errors.Errorf("sine period must be positive, got %d", period)
	}
	raw := make([]float64, length)
	for i := range raw {
		raw[i] = math.Sin(2*math.Pi*float64(i)/float64(period)) + 1
	}
	return NewSeries("sine", raw)
}

// LoadSeriesCSV reads one numeric column of a csv file. Rows that fail to
// parse before the first numeric row are treated as headers.
func LoadSeriesCSV(name, path string, column int) (*Series, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("series csv path is required")
	}
	if column < 0 {
		return nil, errors.Errorf("series csv column must be non-negative, got %d", column)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open series csv %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	values := make([]float64, 0, 512)
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read series csv row %d", row+1)
		}
		row++

		if column >= len(record) {
			if len(values) == 0 {
				continue
			}
			return nil, errors.Errorf("series csv row %d has no column %d", row, column)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(record[column]), 64)
		if err != nil {
			if len(values) == 0 {
				continue
			}
			return nil, errors.Wrapf(err, "parse series csv row %d", row)
		}
		values = append(values, value)
	}
	return NewSeries(name, values)
}

func (s *Series) Name() string { return s.name }

// Values returns a copy of the normalised series.
func (s *Series) Values() []float64 {
	return append([]float64(nil), s.values...)
}

// CreateTrainingSet pairs each value with its successor. A non-positive
// size returns every pair.
func (s *Series) CreateTrainingSet(size int) (esn.Sequence, error) {
	pairs := len(s.values) - 1
	if size > 0 && size < pairs {
		pairs = size
	}
	seq := make(esn.Sequence, 0, pairs)
	for i := 0; i < pairs; i++ {
		seq = append(seq, esn.Sample{
			Input:  []float64{s.values[i]},
			Target: []float64{s.values[i+1]},
		})
	}
	return seq, nil
}

func (s *Series) Reset() {}
