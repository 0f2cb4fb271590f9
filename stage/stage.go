package stage

import (
	"context"

	"github.com/kbukum/mlkit/errors"
	"github.com/kbukum/mlkit/frame"
)

// Stage is the fit/transform capability set.
type Stage interface {
	// Name returns a human-readable identifier used in errors, logs and explain output.
	Name() string
	// Fit learns state from x and y, replacing any previous state. Transformers
	// ignore y, which may be the zero Series.
	Fit(ctx context.Context, x *frame.Frame, y frame.Series) error
	// Transform applies the fitted state to x. It never mutates the stage or x.
	Transform(ctx context.Context, x *frame.Frame) (*frame.Frame, error)
	// Clone returns an unfit stage with the same configuration.
	Clone() Stage
}

// Composite is a stage built from child stages.
type Composite interface {
	Stage
	Children() []Stage
}

// Wrapper is a stage that decorates another without changing its behaviour.
type Wrapper interface {
	Stage
	Unwrap() Stage
}

// FitTransform fits s on x and y, then transforms x.
func FitTransform(ctx context.Context, s Stage, x *frame.Frame, y frame.Series) (*frame.Frame, error) {
	if err := s.Fit(ctx, x, y); err != nil {
		return nil, err
	}
	return s.Transform(ctx, x)
}

// CloneAll clones each stage.
func CloneAll(stages []Stage) []Stage {
	out := make([]Stage, len(stages))
	for i, s := range stages {
		out[i] = s.Clone()
	}
	return out
}

// Unimplemented is embedded by stages that only provide part of the
// contract; the operations it supplies fail with NOT_IMPLEMENTED.
type Unimplemented struct {
	StageName string
}

// Name returns the stage name.
func (u Unimplemented) Name() string { return u.StageName }

// Fit fails with NOT_IMPLEMENTED.
func (u Unimplemented) Fit(context.Context, *frame.Frame, frame.Series) error {
	return errors.NotImplemented(u.StageName, "fit")
}

// Transform fails with NOT_IMPLEMENTED.
func (u Unimplemented) Transform(context.Context, *frame.Frame) (*frame.Frame, error) {
	return nil, errors.NotImplemented(u.StageName, "transform")
}

// CheckTarget fails with SHAPE_MISMATCH when y is present and its length
// differs from the row count of x.
func CheckTarget(name string, x *frame.Frame, y frame.Series) error {
	if x == nil {
		return errors.InvalidInput("features", "nil frame").WithDetail("stage", name)
	}
	if y.IsZero() {
		return nil
	}
	if y.Len() != x.Rows() {
		return errors.ShapeMismatch(name, "target rows", x.Rows(), y.Len())
	}
	return nil
}

// RequireTarget is CheckTarget for learners, which cannot fit without a target.
func RequireTarget(name string, x *frame.Frame, y frame.Series) error {
	if y.IsZero() {
		e := errors.InvalidInput("target", "learner requires a target vector")
		e.Stage = name
		return e
	}
	if err := CheckTarget(name, x, y); err != nil {
		return err
	}
	if x.Rows() == 0 {
		return errors.InsufficientData(name, "cannot fit on zero rows")
	}
	return nil
}

// PredictionColumn is the column name used by Predictions when name is empty.
const PredictionColumn = "prediction"

// Predictions wraps a prediction vector into a one-column frame named after the stage.
func Predictions(name string, values frame.Series) *frame.Frame {
	if name == "" {
		name = PredictionColumn
	}
	return frame.MustNew(values.Rename(name))
}

// Predict transforms x and returns the single prediction column.
func Predict(ctx context.Context, s Stage, x *frame.Frame) (frame.Series, error) {
	out, err := s.Transform(ctx, x)
	if err != nil {
		return frame.Series{}, err
	}
	if out.NumCols() != 1 {
		return frame.Series{}, errors.ShapeMismatch(s.Name(), "prediction columns", 1, out.NumCols())
	}
	if out.Rows() != x.Rows() {
		return frame.Series{}, errors.ShapeMismatch(s.Name(), "prediction rows", x.Rows(), out.Rows())
	}
	return out.Col(0), nil
}
