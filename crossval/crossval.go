package crossval

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/kbukum/mlkit/errors"
	"github.com/kbukum/mlkit/frame"
	"github.com/kbukum/mlkit/logger"
	"github.com/kbukum/mlkit/observability"
	"github.com/kbukum/mlkit/stage"
)

// DefaultFolds is used when Options.Folds is zero.
const DefaultFolds = 5

// Options controls a cross-validation run.
type Options struct {
	// Folds is k; zero means DefaultFolds.
	Folds int
	// Shuffle permutes rows with Seed before splitting.
	Shuffle bool
	Seed    int64
	// MaxParallel bounds how many folds run at once; 0 or 1 is sequential.
	MaxParallel int
	Logger      *logger.Logger
	// Metrics, when set, receives every fold score.
	Metrics *observability.Metrics
}

func (o Options) folds() int {
	if o.Folds == 0 {
		return DefaultFolds
	}
	return o.Folds
}

// Result summarises a cross-validation run.
type Result struct {
	RunID  string    `json:"run_id" yaml:"run_id"`
	Stage  string    `json:"stage" yaml:"stage"`
	Mean   float64   `json:"mean" yaml:"mean"`
	StdDev float64   `json:"std_dev" yaml:"std_dev"`
	Scores []float64 `json:"scores" yaml:"scores"`
}

// CrossValidate estimates the score of s on unseen rows. For each fold a
// Clone of s is fit on the training rows and scored on the test rows; s
// itself is left untouched. StdDev is the sample standard deviation of the
// fold scores. Any fold failure fails the run.
func CrossValidate(ctx context.Context, s stage.Stage, x *frame.Frame, y frame.Series, metric Metric, opts Options) (*Result, error) {
	if err := stage.RequireTarget(s.Name(), x, y); err != nil {
		return nil, err
	}
	folds, err := KFold(x.Rows(), opts.folds(), opts.Shuffle, opts.Seed)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := logger.OrNop(opts.Logger).WithComponent("crossval").WithFields(map[string]interface{}{
		logger.FieldRunID: runID,
		logger.FieldStage: s.Name(),
	})
	start := time.Now()

	scores := make([]float64, len(folds))
	err = stage.Run(ctx, len(folds), opts.MaxParallel, func(ctx context.Context, i int) error {
		f := folds[i]
		ctx, span := observability.StartFoldSpan(ctx, runID, s.Name(), f.Index, len(f.Test))

		pred, actual, err := holdOut(ctx, s, x, y, f)
		if err == nil {
			scores[i], err = Score(metric, pred, actual)
		}
		if err != nil {
			err = inFold(err, f.Index)
			span.End(err)
			return err
		}

		span.SetScore(scores[i])
		span.End(nil)
		if opts.Metrics != nil {
			opts.Metrics.RecordFoldScore(ctx, s.Name(), scores[i])
		}
		log.Debug("fold scored", logger.Fields(
			logger.FieldFold, f.Index,
			logger.FieldRows, len(f.Test),
			logger.FieldScore, scores[i],
		))
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:  runID,
		Stage:  s.Name(),
		Mean:   stat.Mean(scores, nil),
		StdDev: stat.StdDev(scores, nil),
		Scores: scores,
	}
	fields := logger.DurationFields("crossvalidate", time.Since(start))
	fields[logger.FieldScore] = res.Mean
	log.Debug("cross-validation finished", fields)
	return res, nil
}

// OutOfFold returns one prediction per row of x, each made by a clone of s
// that was fit without that row. Folds must partition the rows of x.
func OutOfFold(ctx context.Context, s stage.Stage, x *frame.Frame, y frame.Series, folds []Fold, maxParallel int) (frame.Series, error) {
	preds := make([]frame.Series, len(folds))
	err := stage.Run(ctx, len(folds), maxParallel, func(ctx context.Context, i int) error {
		p, _, err := holdOut(ctx, s, x, y, folds[i])
		if err != nil {
			return inFold(err, folds[i].Index)
		}
		preds[i] = p
		return nil
	})
	if err != nil {
		return frame.Series{}, err
	}
	return scatter(s.Name(), x.Rows(), folds, preds)
}

// holdOut fits a clone of s on the fold's training rows and predicts its
// test rows.
func holdOut(ctx context.Context, s stage.Stage, x *frame.Frame, y frame.Series, f Fold) (pred, actual frame.Series, err error) {
	if len(f.Test) == 0 || len(f.Train) == 0 {
		return pred, actual, errors.InsufficientData(s.Name(), "empty fold partition").
			WithDetail("train", len(f.Train)).WithDetail("test", len(f.Test))
	}
	c := s.Clone()
	if err := c.Fit(ctx, x.Take(f.Train), y.Take(f.Train)); err != nil {
		return pred, actual, err
	}
	pred, err = stage.Predict(ctx, c, x.Take(f.Test))
	if err != nil {
		return pred, actual, err
	}
	return pred, y.Take(f.Test), nil
}

// scatter writes per-fold predictions back to their original row positions.
func scatter(name string, n int, folds []Fold, preds []frame.Series) (frame.Series, error) {
	numeric := true
	for _, p := range preds {
		if p.Kind != frame.Numeric {
			numeric = false
		}
	}

	nums := make([]float64, n)
	cats := make([]string, n)
	filled := 0
	for i, f := range folds {
		for j, row := range f.Test {
			if numeric {
				nums[row] = preds[i].Num[j]
			} else {
				cats[row] = preds[i].Label(j)
			}
			filled++
		}
	}
	if filled != n {
		return frame.Series{}, errors.ShapeMismatch(name, "out-of-fold rows", n, filled)
	}

	if numeric {
		return frame.NumericSeries(name, nums), nil
	}
	return frame.CategoricalSeries(name, cats), nil
}

func inFold(err error, fold int) error {
	if app, ok := errors.AsAppError(err); ok {
		if _, set := app.Details["fold"]; !set {
			app.WithDetail("fold", fold)
		}
	}
	return err
}
