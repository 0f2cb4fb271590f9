package datasets

import (
	"fmt"
	"math/rand/v2"

	"github.com/kbukum/mlkit/frame"
)

// Blob is one Gaussian class cluster.
type Blob struct {
	Label string
	Mean  []float64
	Std   []float64
}

// Blobs draws perClass rows from every blob. Rows are interleaved by class
// (row i belongs to blob i mod len(blobs)) so contiguous folds stay
// balanced without shuffling.
func Blobs(features []string, blobs []Blob, perClass int, seed uint64) (*frame.Frame, frame.Series) {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	n := perClass * len(blobs)

	cols := make([][]float64, len(features))
	for j := range cols {
		cols[j] = make([]float64, n)
	}
	labels := make([]string, n)

	for i := 0; i < n; i++ {
		b := blobs[i%len(blobs)]
		labels[i] = b.Label
		for j := range features {
			cols[j][i] = b.Mean[j] + b.Std[j]*r.NormFloat64()
		}
	}

	series := make([]frame.Series, len(features))
	for j, name := range features {
		series[j] = frame.NumericSeries(name, cols[j])
	}
	return frame.MustNew(series...), frame.CategoricalSeries("species", labels)
}

// IrisFeatures are the column names produced by Iris.
var IrisFeatures = []string{"sepal_length", "sepal_width", "petal_length", "petal_width"}

// Iris returns an iris-like three-class problem with perClass rows per class.
func Iris(perClass int, seed uint64) (*frame.Frame, frame.Series) {
	std := []float64{0.3, 0.3, 0.25, 0.15}
	return Blobs(IrisFeatures, []Blob{
		{Label: "setosa", Mean: []float64{5.0, 3.4, 1.5, 0.2}, Std: std},
		{Label: "versicolor", Mean: []float64{5.9, 2.8, 4.3, 1.3}, Std: std},
		{Label: "virginica", Mean: []float64{6.6, 3.0, 5.6, 2.0}, Std: std},
	}, perClass, seed)
}

// Linear returns n rows of uniform features in [0, 10) and a target
// intercept + coef·x plus Gaussian noise.
func Linear(n int, coef []float64, intercept, noise float64, seed uint64) (*frame.Frame, frame.Series) {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	cols := make([][]float64, len(coef))
	for j := range cols {
		cols[j] = make([]float64, n)
	}
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		y[i] = intercept + noise*r.NormFloat64()
		for j, c := range coef {
			v := 10 * r.Float64()
			cols[j][i] = v
			y[i] += c * v
		}
	}

	series := make([]frame.Series, len(coef))
	for j := range coef {
		series[j] = frame.NumericSeries(fmt.Sprintf("x%d", j+1), cols[j])
	}
	return frame.MustNew(series...), frame.NumericSeries("y", y)
}
