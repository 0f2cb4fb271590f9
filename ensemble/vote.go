package ensemble

import (
	"context"

	"github.com/kbukum/mlkit/errors"
	"github.com/kbukum/mlkit/frame"
	"github.com/kbukum/mlkit/learners"
	"github.com/kbukum/mlkit/logger"
	"github.com/kbukum/mlkit/stage"
)

// Vote combines member predictions row by row.
type Vote struct {
	stage.Fitted
	cfg     Config
	members []stage.Stage
}

// NewVote creates an unfit voting ensemble over members, which are owned by
// the ensemble from here on. At least two members are required at fit time.
func NewVote(cfg Config, members ...stage.Stage) *Vote {
	return &Vote{cfg: newConfig(cfg, "vote"), members: members}
}

func (v *Vote) Name() string             { return v.cfg.Name }
func (v *Vote) Kind() string             { return "vote" }
func (v *Vote) Children() []stage.Stage { return v.members }
func (v *Vote) Clone() stage.Stage {
	return &Vote{cfg: v.cfg.clone(), members: stage.CloneAll(v.members)}
}

func (v *Vote) Fit(ctx context.Context, x *frame.Frame, y frame.Series) error {
	v.Reset()
	if err := v.cfg.Validate(v.Name()); err != nil {
		return err
	}
	if len(v.members) < 2 {
		return tooFew(v.Name(), len(v.members), 2)
	}
	if err := stage.RequireTarget(v.Name(), x, y); err != nil {
		return err
	}

	log := logger.OrNop(v.cfg.Logger).WithComponent("ensemble").WithStage(v.Name())
	err := stage.Run(ctx, len(v.members), v.cfg.MaxParallel, func(ctx context.Context, i int) error {
		if err := v.members[i].Fit(ctx, x, y); err != nil {
			return err
		}
		log.Debug("member fitted", logger.Fields(logger.FieldMember, v.members[i].Name(), logger.FieldRows, x.Rows()))
		return nil
	})
	if err != nil {
		return err
	}
	v.MarkFitted()
	return nil
}

func (v *Vote) Transform(ctx context.Context, x *frame.Frame) (*frame.Frame, error) {
	if err := v.Check(v.Name()); err != nil {
		return nil, err
	}
	preds, err := predictAll(ctx, v.members, x, v.cfg.MaxParallel)
	if err != nil {
		return nil, err
	}

	var out frame.Series
	if v.cfg.task() == learners.Regression {
		out, err = average(v.Name(), preds, x.Rows())
	} else {
		out = plurality(v.Name(), preds, x.Rows())
	}
	if err != nil {
		return nil, err
	}
	return stage.Predictions(v.Name(), out), nil
}

// predictAll collects one prediction vector per member, in member order.
func predictAll(ctx context.Context, members []stage.Stage, x *frame.Frame, maxParallel int) ([]frame.Series, error) {
	preds := make([]frame.Series, len(members))
	err := stage.Run(ctx, len(members), maxParallel, func(ctx context.Context, i int) error {
		p, err := stage.Predict(ctx, members[i], x)
		preds[i] = p
		return err
	})
	return preds, err
}

// plurality picks, per row, the most common label. Among tied labels the
// one predicted by the earliest member wins. The output keeps a numeric
// kind when every member predicted numbers.
func plurality(name string, preds []frame.Series, rows int) frame.Series {
	numeric := true
	for _, p := range preds {
		numeric = numeric && p.Kind == frame.Numeric
	}

	nums := make([]float64, rows)
	cats := make([]string, rows)
	counts := make(map[string]int, len(preds))
	for r := 0; r < rows; r++ {
		clear(counts)
		top := 0
		for _, p := range preds {
			l := p.Label(r)
			counts[l]++
			top = max(top, counts[l])
		}
		for _, p := range preds {
			if counts[p.Label(r)] == top {
				if numeric {
					nums[r] = p.Num[r]
				} else {
					cats[r] = p.Label(r)
				}
				break
			}
		}
	}

	if numeric {
		return frame.NumericSeries(name, nums)
	}
	return frame.CategoricalSeries(name, cats)
}

// average is the per-row arithmetic mean of numeric member predictions.
func average(name string, preds []frame.Series, rows int) (frame.Series, error) {
	out := make([]float64, rows)
	for _, p := range preds {
		for r := 0; r < rows; r++ {
			f, ok := p.Float(r)
			if !ok {
				e := errors.InvalidInput(p.Name, "regression vote needs numeric predictions").WithDetail("row", r)
				e.Stage = name
				return frame.Series{}, e
			}
			out[r] += f
		}
	}
	for r := range out {
		out[r] /= float64(len(preds))
	}
	return frame.NumericSeries(name, out), nil
}
