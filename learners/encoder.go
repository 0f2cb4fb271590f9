package learners

import (
	"context"

	"github.com/kbukum/mlkit/errors"
	"github.com/kbukum/mlkit/frame"
	"github.com/kbukum/mlkit/stage"
)

// OneHotConfig configures OneHotEncoder.
type OneHotConfig struct {
	// Columns limits encoding to the named categorical columns; empty encodes all.
	Columns []string `mapstructure:"columns"`
}

// OneHotEncoder replaces each categorical column with one indicator column
// per category seen at fit time, named "<column>=<value>". Values not seen
// at fit time encode as all zeros.
type OneHotEncoder struct {
	stage.Fitted
	name       string
	cfg        OneHotConfig
	categories map[string][]string
}

// NewOneHotEncoder creates an unfit encoder.
func NewOneHotEncoder(name string, cfg OneHotConfig) *OneHotEncoder {
	return &OneHotEncoder{name: name, cfg: cfg}
}

func (e *OneHotEncoder) Name() string      { return e.name }
func (e *OneHotEncoder) Kind() string      { return "one_hot" }
func (e *OneHotEncoder) Clone() stage.Stage { return NewOneHotEncoder(e.name, e.cfg) }

func (e *OneHotEncoder) Fit(_ context.Context, x *frame.Frame, y frame.Series) error {
	e.Reset()
	if err := stage.CheckTarget(e.name, x, y); err != nil {
		return err
	}

	targets := e.cfg.Columns
	if len(targets) == 0 {
		targets = x.ByKind(frame.Categorical).Names()
	}

	categories := make(map[string][]string, len(targets))
	for _, col := range targets {
		c, ok := x.Column(col)
		if !ok {
			return missingColumn(e.name, col)
		}
		if c.Kind != frame.Categorical {
			err := errors.InvalidInput(col, "one-hot encoding requires a categorical column")
			err.Stage = e.name
			return err
		}
		_, classes := frame.Encode(c)
		categories[col] = classes.Cat
	}

	e.categories = categories
	e.MarkFitted()
	return nil
}

func (e *OneHotEncoder) Transform(_ context.Context, x *frame.Frame) (*frame.Frame, error) {
	if err := e.Check(e.name); err != nil {
		return nil, err
	}
	if len(e.categories) == 0 {
		return x, nil
	}

	for col := range e.categories {
		if _, ok := x.Column(col); !ok {
			return nil, missingColumn(e.name, col)
		}
	}

	out := make([]frame.Series, 0, x.NumCols())
	for _, c := range x.Columns() {
		cats, ok := e.categories[c.Name]
		if !ok {
			out = append(out, c)
			continue
		}
		if c.Kind != frame.Categorical {
			err := errors.InvalidInput(c.Name, "column was categorical at fit time")
			err.Stage = e.name
			return nil, err
		}

		index := make(map[string]int, len(cats))
		indicators := make([][]float64, len(cats))
		for k, v := range cats {
			index[v] = k
			indicators[k] = make([]float64, len(c.Cat))
		}
		for r, v := range c.Cat {
			if k, ok := index[v]; ok {
				indicators[k][r] = 1
			}
		}
		for k, v := range cats {
			out = append(out, frame.NumericSeries(c.Name+"="+v, indicators[k]))
		}
	}
	if len(out) == 0 {
		return frame.Empty(x.Rows()), nil
	}
	return frame.New(out...)
}
