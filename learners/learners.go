package learners

import (
	"github.com/kbukum/mlkit/errors"
	"github.com/kbukum/mlkit/frame"
)

// Task selects how a learner interprets its target.
type Task string

const (
	// Classification predicts one of the labels seen at fit time.
	Classification Task = "classification"
	// Regression predicts a number.
	Regression Task = "regression"
)

// ParseTask resolves a config string; empty means Classification.
func ParseTask(s string) (Task, error) {
	switch Task(s) {
	case "", Classification:
		return Classification, nil
	case Regression:
		return Regression, nil
	default:
		return "", errors.InvalidInput("task", "must be one of: classification, regression").WithDetail("value", s)
	}
}

// rowsOf converts the numeric feature columns of x into row vectors.
func rowsOf(name string, x *frame.Frame) ([][]float64, error) {
	m, err := x.Matrix()
	if err != nil {
		return nil, attribute(name, err)
	}
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = m.RawRowView(i)
	}
	return out, nil
}

// checkWidth fails when x does not have the column count seen at fit time.
func checkWidth(name string, want int, x *frame.Frame) error {
	if x.NumCols() != want {
		return errors.ShapeMismatch(name, "feature columns", want, x.NumCols())
	}
	return nil
}

// numericTarget reads y as numbers for regression.
func numericTarget(name string, y frame.Series) ([]float64, error) {
	out := make([]float64, y.Len())
	for i := range out {
		v, ok := y.Float(i)
		if !ok {
			e := errors.InvalidInput("target", "regression needs a numeric target").WithDetail("row", i)
			e.Stage = name
			return nil, e
		}
		out[i] = v
	}
	return out, nil
}

// plurality returns the most frequent code; ties go to the lowest code,
// which is the first label seen during fit.
func plurality(counts []int) int {
	best := 0
	for c := 1; c < len(counts); c++ {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

func attribute(name string, err error) error {
	if app, ok := errors.AsAppError(err); ok && app.Stage == "" {
		app.Stage = name
	}
	return err
}

func missingColumn(name, col string) error {
	e := errors.NotFound("column", col)
	e.Stage = name
	return e
}
