package frame

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kbukum/mlkit/errors"
)

// CSVOptions controls ReadCSV.
type CSVOptions struct {
	// Comma is the field delimiter. Defaults to ','.
	Comma rune
	// NoHeader treats the first record as data and names columns x1..xn.
	NoHeader bool
	// Categorical forces the named columns to be categorical even when every
	// value parses as a number (e.g. integer class labels).
	Categorical []string
}

// ReadCSV reads a table. A column becomes numeric when every cell parses as a
// float, categorical otherwise.
func ReadCSV(r io.Reader, opts CSVOptions) (*Frame, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.InvalidInput("csv", err.Error())
	}
	if len(records) == 0 {
		return nil, errors.InsufficientData("", "csv input has no records")
	}

	var header []string
	if opts.NoHeader {
		header = make([]string, len(records[0]))
		for i := range header {
			header[i] = fmt.Sprintf("x%d", i+1)
		}
	} else {
		header, records = records[0], records[1:]
	}

	forced := make(map[string]bool, len(opts.Categorical))
	for _, name := range opts.Categorical {
		forced[name] = true
	}

	cols := make([]Series, len(header))
	for j, name := range header {
		name = strings.TrimSpace(name)
		raw := make([]string, len(records))
		for i, rec := range records {
			raw[i] = strings.TrimSpace(rec[j])
		}
		cols[j] = inferSeries(name, raw, forced[name])
	}
	f, err := New(cols...)
	if err != nil {
		return nil, err
	}
	f.rows = len(records)
	return f, nil
}

func inferSeries(name string, raw []string, categorical bool) Series {
	if !categorical {
		nums := make([]float64, len(raw))
		numeric := true
		for i, v := range raw {
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				numeric = false
				break
			}
			nums[i] = x
		}
		if numeric {
			return NumericSeries(name, nums)
		}
	}
	return CategoricalSeries(name, raw)
}

// SplitTarget separates the named target column from the features.
func SplitTarget(f *Frame, target string) (*Frame, Series, error) {
	y, ok := f.Column(target)
	if !ok {
		return nil, Series{}, errors.NotFound("column", target)
	}
	names := make([]string, 0, f.NumCols()-1)
	for _, n := range f.Names() {
		if n != target {
			names = append(names, n)
		}
	}
	x, err := f.Select(names...)
	if err != nil {
		return nil, Series{}, err
	}
	return x, y, nil
}
