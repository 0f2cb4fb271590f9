package ensemble

import (
	"context"

	"github.com/kbukum/mlkit/crossval"
	"github.com/kbukum/mlkit/frame"
	"github.com/kbukum/mlkit/logger"
	"github.com/kbukum/mlkit/stage"
)

// Best cross-validates every member with the same folds and keeps the one
// with the highest mean score, refit on the full data. Ties go to the
// first-declared member. Only the winner is used at transform time.
type Best struct {
	stage.Fitted
	cfg     Config
	members []stage.Stage
	results []*crossval.Result
	best    int
}

// NewBest creates an unfit best-of-N selector. At least one member is
// required at fit time.
func NewBest(cfg Config, members ...stage.Stage) *Best {
	return &Best{cfg: newConfig(cfg, "best"), members: members, best: -1}
}

func (b *Best) Name() string             { return b.cfg.Name }
func (b *Best) Kind() string             { return "best" }
func (b *Best) Clone() stage.Stage {
	return &Best{cfg: b.cfg.clone(), members: stage.CloneAll(b.members), best: -1}
}

// Children lists every member until a fit succeeds, then only the winner:
// the losers are never refit on the full data and play no part in Transform.
func (b *Best) Children() []stage.Stage {
	if b.best < 0 {
		return b.members
	}
	return b.members[b.best : b.best+1]
}

// Members returns every declared member, fitted or not.
func (b *Best) Members() []stage.Stage { return b.members }

// Best returns the selected member, or nil before a successful fit.
func (b *Best) Best() stage.Stage {
	if b.best < 0 {
		return nil
	}
	return b.members[b.best]
}

// BestIndex returns the declaration index of the selected member, or -1.
func (b *Best) BestIndex() int { return b.best }

// Results returns the cross-validation result of each member in
// declaration order.
func (b *Best) Results() []*crossval.Result { return b.results }

func (b *Best) Fit(ctx context.Context, x *frame.Frame, y frame.Series) error {
	b.Reset()
	b.best, b.results = -1, nil
	if err := b.cfg.Validate(b.Name()); err != nil {
		return err
	}
	if len(b.members) < 1 {
		return tooFew(b.Name(), len(b.members), 1)
	}
	if err := stage.RequireTarget(b.Name(), x, y); err != nil {
		return err
	}

	log := logger.OrNop(b.cfg.Logger).WithComponent("ensemble").WithStage(b.Name())
	metric := b.cfg.metric()
	opts := b.cfg.options()

	results := make([]*crossval.Result, len(b.members))
	err := stage.Run(ctx, len(b.members), b.cfg.MaxParallel, func(ctx context.Context, i int) error {
		res, err := crossval.CrossValidate(ctx, b.members[i], x, y, metric, opts)
		if err != nil {
			return err
		}
		results[i] = res
		log.Debug("member scored", logger.Fields(
			logger.FieldMember, b.members[i].Name(),
			logger.FieldScore, res.Mean,
			logger.FieldRunID, res.RunID,
		))
		return nil
	})
	if err != nil {
		return err
	}

	best := 0
	for i := 1; i < len(results); i++ {
		if results[i].Mean > results[best].Mean {
			best = i
		}
	}

	if err := b.members[best].Fit(ctx, x, y); err != nil {
		return err
	}
	log.Debug("member selected", logger.Fields(
		logger.FieldMember, b.members[best].Name(),
		logger.FieldScore, results[best].Mean,
	))

	b.results, b.best = results, best
	b.MarkFitted()
	return nil
}

func (b *Best) Transform(ctx context.Context, x *frame.Frame) (*frame.Frame, error) {
	if err := b.Check(b.Name()); err != nil {
		return nil, err
	}
	return b.members[b.best].Transform(ctx, x)
}
