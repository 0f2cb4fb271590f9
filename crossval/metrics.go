package crossval

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/kbukum/mlkit/errors"
	"github.com/kbukum/mlkit/frame"
)

// Metric scores predicted against actual values; larger is better. Both
// series have the same, non-zero length when called through Score.
type Metric func(predicted, actual frame.Series) float64

// Accuracy is the percentage of rows whose predicted label equals the
// actual label, in [0, 100].
func Accuracy(predicted, actual frame.Series) float64 {
	hits := 0
	for i := 0; i < actual.Len(); i++ {
		if predicted.Label(i) == actual.Label(i) {
			hits++
		}
	}
	return 100 * float64(hits) / float64(actual.Len())
}

// MSE is the mean squared error. Values that are not numeric count as NaN.
func MSE(predicted, actual frame.Series) float64 {
	p, a := numbers(predicted), numbers(actual)
	sum := 0.0
	for i := range a {
		d := p[i] - a[i]
		sum += d * d
	}
	return sum / float64(len(a))
}

// RMSE is the root mean squared error.
func RMSE(predicted, actual frame.Series) float64 {
	return math.Sqrt(MSE(predicted, actual))
}

// MAE is the mean absolute error.
func MAE(predicted, actual frame.Series) float64 {
	p, a := numbers(predicted), numbers(actual)
	sum := 0.0
	for i := range a {
		sum += math.Abs(p[i] - a[i])
	}
	return sum / float64(len(a))
}

// R2 is the coefficient of determination of the predictions.
func R2(predicted, actual frame.Series) float64 {
	return stat.RSquaredFrom(numbers(predicted), numbers(actual), nil)
}

// Negate turns an error measure into a score where larger is better.
func Negate(m Metric) Metric {
	return func(predicted, actual frame.Series) float64 {
		return -m(predicted, actual)
	}
}

var (
	// NegMSE is -MSE.
	NegMSE = Negate(MSE)
	// NegRMSE is -RMSE.
	NegRMSE = Negate(RMSE)
	// NegMAE is -MAE.
	NegMAE = Negate(MAE)
)

var metricsByName = map[string]Metric{
	"accuracy": Accuracy,
	"r2":       R2,
	"neg_mse":  NegMSE,
	"neg_rmse": NegRMSE,
	"neg_mae":  NegMAE,
	"mse":      MSE,
	"rmse":     RMSE,
	"mae":      MAE,
}

// MetricByName resolves a metric from configuration. Names are
// case-insensitive. The plain error names (mse, rmse, mae) are returned
// as-is; selection maximises scores, so use the neg_ forms there.
func MetricByName(name string) (Metric, error) {
	m, ok := metricsByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, errors.InvalidInput("metric", "unknown metric").
			WithDetail("value", name).WithDetail("known", MetricNames())
	}
	return m, nil
}

// MetricNames lists the names accepted by MetricByName.
func MetricNames() []string {
	names := make([]string, 0, len(metricsByName))
	for n := range metricsByName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Score applies metric after checking that the series are comparable.
func Score(metric Metric, predicted, actual frame.Series) (float64, error) {
	if predicted.Len() != actual.Len() {
		return 0, errors.ShapeMismatch("score", "prediction length", actual.Len(), predicted.Len())
	}
	if actual.Len() == 0 {
		return 0, errors.InsufficientData("score", "cannot score zero rows")
	}
	return metric(predicted, actual), nil
}

func numbers(s frame.Series) []float64 {
	out := make([]float64, s.Len())
	for i := range out {
		v, ok := s.Float(i)
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}
