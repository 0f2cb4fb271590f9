package learners

import (
	"context"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/kbukum/mlkit/frame"
	"github.com/kbukum/mlkit/stage"
	"github.com/kbukum/mlkit/validation"
)

// KNNConfig configures KNN.
type KNNConfig struct {
	K    int    `mapstructure:"k" validate:"gte=1"`
	Task string `mapstructure:"task" validate:"omitempty,oneof=classification regression"`
}

// DefaultKNNConfig returns a five-neighbour classifier.
func DefaultKNNConfig() KNNConfig {
	return KNNConfig{K: 5, Task: string(Classification)}
}

// KNN predicts from the k training rows nearest in Euclidean distance.
// Classification takes the plurality label, with ties going to the label of
// the nearest tied neighbour. Regression averages the neighbours' targets.
// K larger than the training set uses every training row.
type KNN struct {
	stage.Fitted
	name string
	cfg  KNNConfig
	task Task

	train   [][]float64
	codes   []int
	classes frame.Series
	values  []float64
}

// NewKNN creates an unfit k-nearest-neighbours learner.
func NewKNN(name string, cfg KNNConfig) *KNN {
	return &KNN{name: name, cfg: cfg}
}

func (m *KNN) Name() string      { return m.name }
func (m *KNN) Kind() string      { return "knn" }
func (m *KNN) Clone() stage.Stage { return NewKNN(m.name, m.cfg) }

func (m *KNN) Fit(_ context.Context, x *frame.Frame, y frame.Series) error {
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
	train, err := rowsOf(m.name, x)
	if err != nil {
		return err
	}

	m.task = task
	m.train = train
	m.codes, m.classes, m.values = nil, frame.Series{}, nil
	if task == Regression {
		if m.values, err = numericTarget(m.name, y); err != nil {
			return err
		}
	} else {
		m.codes, m.classes = frame.Encode(y)
	}
	m.MarkFitted()
	return nil
}

func (m *KNN) Transform(_ context.Context, x *frame.Frame) (*frame.Frame, error) {
	if err := m.Check(m.name); err != nil {
		return nil, err
	}
	if err := checkWidth(m.name, len(m.train[0]), x); err != nil {
		return nil, err
	}
	if x.Rows() == 0 {
		return m.predictions(nil, nil), nil
	}
	rows, err := rowsOf(m.name, x)
	if err != nil {
		return nil, err
	}

	k := min(m.cfg.K, len(m.train))
	codes := make([]int, len(rows))
	values := make([]float64, len(rows))
	for i, row := range rows {
		nbrs := m.nearest(row, k)
		if m.task == Regression {
			sum := 0.0
			for _, j := range nbrs {
				sum += m.values[j]
			}
			values[i] = sum / float64(len(nbrs))
			continue
		}
		codes[i] = m.vote(nbrs)
	}
	return m.predictions(codes, values), nil
}

// nearest returns the indices of the k closest training rows, closest
// first. Equal distances keep training order.
func (m *KNN) nearest(row []float64, k int) []int {
	idx := make([]int, len(m.train))
	dist := make([]float64, len(m.train))
	for j, t := range m.train {
		idx[j] = j
		dist[j] = floats.Distance(row, t, 2)
	}
	sort.SliceStable(idx, func(a, b int) bool { return dist[idx[a]] < dist[idx[b]] })
	return idx[:k]
}

func (m *KNN) vote(nbrs []int) int {
	counts := make([]int, m.classes.Len())
	for _, j := range nbrs {
		counts[m.codes[j]]++
	}
	top := counts[plurality(counts)]
	for _, j := range nbrs {
		if counts[m.codes[j]] == top {
			return m.codes[j]
		}
	}
	return m.codes[nbrs[0]]
}

func (m *KNN) predictions(codes []int, values []float64) *frame.Frame {
	if m.task == Regression {
		if values == nil {
			values = []float64{}
		}
		return stage.Predictions(m.name, frame.NumericSeries(m.name, values))
	}
	if codes == nil {
		codes = []int{}
	}
	return stage.Predictions(m.name, m.classes.Take(codes))
}
