package learners

import (
	"context"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kbukum/mlkit/errors"
	"github.com/kbukum/mlkit/frame"
	"github.com/kbukum/mlkit/stage"
)

// ScalerConfig configures StandardScaler and MinMaxScaler.
type ScalerConfig struct {
	// Columns limits scaling to the named numeric columns; empty scales all.
	Columns []string `mapstructure:"columns"`
}

// affine maps v to (v - shift) / scale for one column.
type affine struct {
	shift, scale float64
}

// columnScaler holds the fitted per-column transforms shared by the scalers.
type columnScaler struct {
	stage.Fitted
	name   string
	kind   string
	cfg    ScalerConfig
	params map[string]affine
	fitCol func(values []float64) affine
}

func (s *columnScaler) Name() string { return s.name }
func (s *columnScaler) Kind() string { return s.kind }

func (s *columnScaler) Fit(_ context.Context, x *frame.Frame, y frame.Series) error {
	s.Reset()
	if err := stage.CheckTarget(s.name, x, y); err != nil {
		return err
	}

	targets := s.cfg.Columns
	if len(targets) == 0 {
		targets = x.ByKind(frame.Numeric).Names()
	}

	params := make(map[string]affine, len(targets))
	for _, col := range targets {
		c, ok := x.Column(col)
		if !ok {
			return missingColumn(s.name, col)
		}
		if c.Kind != frame.Numeric {
			e := errors.InvalidInput(col, "scaler requires a numeric column")
			e.Stage = s.name
			return e
		}
		if c.Len() == 0 {
			return errors.InsufficientData(s.name, "cannot fit a scaler on zero rows")
		}
		params[col] = s.fitCol(c.Num)
	}

	s.params = params
	s.MarkFitted()
	return nil
}

func (s *columnScaler) Transform(_ context.Context, x *frame.Frame) (*frame.Frame, error) {
	if err := s.Check(s.name); err != nil {
		return nil, err
	}
	if len(s.params) == 0 {
		return x, nil
	}
	for col := range s.params {
		if _, ok := x.Column(col); !ok {
			return nil, missingColumn(s.name, col)
		}
	}

	cols := x.Columns()
	for i, c := range cols {
		p, ok := s.params[c.Name]
		if !ok {
			continue
		}
		out := make([]float64, len(c.Num))
		for r, v := range c.Num {
			out[r] = (v - p.shift) / p.scale
		}
		cols[i] = frame.NumericSeries(c.Name, out)
	}
	return frame.New(cols...)
}

// StandardScaler centres numeric columns on their mean and divides by the
// population standard deviation. Constant columns are only centred.
type StandardScaler struct {
	columnScaler
}

// NewStandardScaler creates an unfit standard scaler.
func NewStandardScaler(name string, cfg ScalerConfig) *StandardScaler {
	return &StandardScaler{columnScaler{
		name: name,
		kind: "standard_scaler",
		cfg:  cfg,
		fitCol: func(values []float64) affine {
			mean, std := stat.PopMeanStdDev(values, nil)
			if std == 0 {
				std = 1
			}
			return affine{shift: mean, scale: std}
		},
	}}
}

// Clone returns an unfit copy.
func (s *StandardScaler) Clone() stage.Stage { return NewStandardScaler(s.name, s.cfg) }

// MinMaxScaler maps numeric columns onto [0, 1] using the range seen at fit
// time. Constant columns map to 0.
type MinMaxScaler struct {
	columnScaler
}

// NewMinMaxScaler creates an unfit min-max scaler.
func NewMinMaxScaler(name string, cfg ScalerConfig) *MinMaxScaler {
	return &MinMaxScaler{columnScaler{
		name: name,
		kind: "minmax_scaler",
		cfg:  cfg,
		fitCol: func(values []float64) affine {
			lo, hi := floats.Min(values), floats.Max(values)
			span := hi - lo
			if span == 0 {
				span = 1
			}
			return affine{shift: lo, scale: span}
		},
	}}
}

// Clone returns an unfit copy.
func (s *MinMaxScaler) Clone() stage.Stage { return NewMinMaxScaler(s.name, s.cfg) }
