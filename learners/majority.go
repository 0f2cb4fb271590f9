package learners

import (
	"context"

	"gonum.org/v1/gonum/stat"

	"github.com/kbukum/mlkit/frame"
	"github.com/kbukum/mlkit/stage"
	"github.com/kbukum/mlkit/validation"
)

// MajorityConfig configures Majority.
type MajorityConfig struct {
	Task string `mapstructure:"task" validate:"omitempty,oneof=classification regression"`
}

// Majority ignores the features and always predicts the most frequent
// training label, or the training mean for regression. It is the baseline
// other learners should beat.
type Majority struct {
	stage.Fitted
	name  string
	cfg   MajorityConfig
	task  Task
	label frame.Series
	mean  float64
}

// NewMajority creates an unfit baseline.
func NewMajority(name string, cfg MajorityConfig) *Majority {
	return &Majority{name: name, cfg: cfg}
}

func (m *Majority) Name() string      { return m.name }
func (m *Majority) Kind() string      { return "majority" }
func (m *Majority) Clone() stage.Stage { return NewMajority(m.name, m.cfg) }

func (m *Majority) Fit(_ context.Context, x *frame.Frame, y frame.Series) error {
	m.Reset()
	if err := validation.StageConfig(m.name, m.cfg); err != nil {
		return err
	}
	task, err := ParseTask(m.cfg.Task)
	if err != nil {
		return attribute(m.name, err)
	}
	if err := stage.RequireTarget(m.name, x, y); err != nil {
		return err
	}

	m.task = task
	if task == Regression {
		values, err := numericTarget(m.name, y)
		if err != nil {
			return err
		}
		m.mean = stat.Mean(values, nil)
	} else {
		codes, classes := frame.Encode(y)
		counts := make([]int, classes.Len())
		for _, c := range codes {
			counts[c]++
		}
		m.label = classes.Take([]int{plurality(counts)})
	}
	m.MarkFitted()
	return nil
}

func (m *Majority) Transform(_ context.Context, x *frame.Frame) (*frame.Frame, error) {
	if err := m.Check(m.name); err != nil {
		return nil, err
	}
	if m.task == Regression {
		values := make([]float64, x.Rows())
		for i := range values {
			values[i] = m.mean
		}
		return stage.Predictions(m.name, frame.NumericSeries(m.name, values)), nil
	}
	return stage.Predictions(m.name, m.label.Take(make([]int, x.Rows()))), nil
}
