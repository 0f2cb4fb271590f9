package learners

import (
	"context"

	"gonum.org/v1/gonum/floats"

	"github.com/kbukum/mlkit/frame"
	"github.com/kbukum/mlkit/stage"
)

// NearestCentroid assigns each row the label of the closest class mean.
// Equidistant centroids resolve to the label seen first during fit.
type NearestCentroid struct {
	stage.Fitted
	name      string
	centroids [][]float64
	classes   frame.Series
}

// NewNearestCentroid creates an unfit nearest-centroid classifier.
func NewNearestCentroid(name string) *NearestCentroid {
	return &NearestCentroid{name: name}
}

func (m *NearestCentroid) Name() string      { return m.name }
func (m *NearestCentroid) Kind() string      { return "nearest_centroid" }
func (m *NearestCentroid) Clone() stage.Stage { return NewNearestCentroid(m.name) }

func (m *NearestCentroid) Fit(_ context.Context, x *frame.Frame, y frame.Series) error {
	m.Reset()
	if err := stage.RequireTarget(m.name, x, y); err != nil {
		return err
	}
	rows, err := rowsOf(m.name, x)
	if err != nil {
		return err
	}

	codes, classes := frame.Encode(y)
	centroids := make([][]float64, classes.Len())
	counts := make([]float64, classes.Len())
	for c := range centroids {
		centroids[c] = make([]float64, x.NumCols())
	}
	for i, row := range rows {
		floats.Add(centroids[codes[i]], row)
		counts[codes[i]]++
	}
	for c := range centroids {
		floats.Scale(1/counts[c], centroids[c])
	}

	m.centroids = centroids
	m.classes = classes
	m.MarkFitted()
	return nil
}

func (m *NearestCentroid) Transform(_ context.Context, x *frame.Frame) (*frame.Frame, error) {
	if err := m.Check(m.name); err != nil {
		return nil, err
	}
	if err := checkWidth(m.name, len(m.centroids[0]), x); err != nil {
		return nil, err
	}
	if x.Rows() == 0 {
		return stage.Predictions(m.name, m.classes.Take([]int{})), nil
	}
	rows, err := rowsOf(m.name, x)
	if err != nil {
		return nil, err
	}

	codes := make([]int, len(rows))
	for i, row := range rows {
		best, bestDist := 0, floats.Distance(row, m.centroids[0], 2)
		for c := 1; c < len(m.centroids); c++ {
			if d := floats.Distance(row, m.centroids[c], 2); d < bestDist {
				best, bestDist = c, d
			}
		}
		codes[i] = best
	}
	return stage.Predictions(m.name, m.classes.Take(codes)), nil
}
