package ensemble

import (
	"context"

	"github.com/kbukum/mlkit/crossval"
	"github.com/kbukum/mlkit/errors"
	"github.com/kbukum/mlkit/frame"
	"github.com/kbukum/mlkit/learners"
	"github.com/kbukum/mlkit/logger"
	"github.com/kbukum/mlkit/stage"
)

// Stack is stacked generalisation. Fit builds one meta-feature column per
// member from out-of-fold predictions, so no meta-feature row comes from a
// member that trained on that row, then fits the meta-learner on those
// columns against the original target. Members are then refit on all rows
// for use at transform time.
type Stack struct {
	stage.Fitted
	cfg     Config
	members []stage.Stage
	meta    stage.Stage
	folds   []crossval.Fold
}

// NewStack creates an unfit stacking ensemble. cfg.Meta is the
// meta-learner; nil means a decision tree of the configured task.
func NewStack(cfg Config, members ...stage.Stage) *Stack {
	cfg = newConfig(cfg, "stack")
	meta := cfg.Meta
	if meta == nil {
		tc := learners.DefaultTreeConfig()
		tc.Task = cfg.Task
		meta = learners.NewDecisionTree(cfg.Name+"_meta", tc)
	}
	cfg.Meta = nil
	return &Stack{cfg: cfg, members: members, meta: meta}
}

func (s *Stack) Name() string { return s.cfg.Name }
func (s *Stack) Kind() string { return "stack" }

// Children lists the members followed by the meta-learner.
func (s *Stack) Children() []stage.Stage {
	out := make([]stage.Stage, 0, len(s.members)+1)
	return append(append(out, s.members...), s.meta)
}

func (s *Stack) Clone() stage.Stage {
	return &Stack{cfg: s.cfg.clone(), members: stage.CloneAll(s.members), meta: s.meta.Clone()}
}

// Meta returns the meta-learner.
func (s *Stack) Meta() stage.Stage { return s.meta }

// Folds returns the partition used by the last successful fit.
func (s *Stack) Folds() []crossval.Fold { return s.folds }

func (s *Stack) Fit(ctx context.Context, x *frame.Frame, y frame.Series) error {
	s.Reset()
	s.folds = nil
	if err := s.cfg.Validate(s.Name()); err != nil {
		return err
	}
	if len(s.members) < 2 {
		return tooFew(s.Name(), len(s.members), 2)
	}
	if err := stage.RequireTarget(s.Name(), x, y); err != nil {
		return err
	}
	folds, err := crossval.KFold(x.Rows(), s.cfg.Folds, s.cfg.Shuffle, s.cfg.Seed)
	if err != nil {
		if app, ok := errors.AsAppError(err); ok {
			app.Stage = s.Name()
		}
		return err
	}

	log := logger.OrNop(s.cfg.Logger).WithComponent("ensemble").WithStage(s.Name())

	oof := make([]frame.Series, len(s.members))
	err = stage.Run(ctx, len(s.members), s.cfg.MaxParallel, func(ctx context.Context, i int) error {
		p, err := crossval.OutOfFold(ctx, s.members[i], x, y, folds, 0)
		if err != nil {
			return err
		}
		oof[i] = p
		log.Debug("out-of-fold predictions built", logger.Fields(logger.FieldMember, s.members[i].Name(), logger.FieldRows, p.Len()))
		return nil
	})
	if err != nil {
		return err
	}

	metaX, err := s.metaFeatures(x, oof)
	if err != nil {
		return err
	}

	err = stage.Run(ctx, len(s.members), s.cfg.MaxParallel, func(ctx context.Context, i int) error {
		return s.members[i].Fit(ctx, x, y)
	})
	if err != nil {
		return err
	}
	if err := s.meta.Fit(ctx, metaX, y); err != nil {
		return err
	}

	log.Debug("meta-learner fitted", logger.Fields(
		logger.FieldMember, s.meta.Name(),
		logger.FieldCols, metaX.NumCols(),
		logger.FieldRows, metaX.Rows(),
	))
	s.folds = folds
	s.MarkFitted()
	return nil
}

func (s *Stack) Transform(ctx context.Context, x *frame.Frame) (*frame.Frame, error) {
	if err := s.Check(s.Name()); err != nil {
		return nil, err
	}
	preds, err := predictAll(ctx, s.members, x, s.cfg.MaxParallel)
	if err != nil {
		return nil, err
	}
	metaX, err := s.metaFeatures(x, preds)
	if err != nil {
		return nil, err
	}
	out, err := stage.Predict(ctx, s.meta, metaX)
	if err != nil {
		return nil, err
	}
	return stage.Predictions(s.Name(), out), nil
}

// metaFeatures lays member predictions out as columns named after the
// members, after the original features when KeepOriginal is set.
func (s *Stack) metaFeatures(x *frame.Frame, preds []frame.Series) (*frame.Frame, error) {
	frames := make([]*frame.Frame, 0, len(preds)+1)
	if s.cfg.KeepOriginal {
		frames = append(frames, x)
	}
	for i, p := range preds {
		frames = append(frames, stage.Predictions(s.members[i].Name(), p))
	}
	out, err := frame.HConcat(frames...)
	if err != nil {
		if app, ok := errors.AsAppError(err); ok && app.Stage == "" {
			app.Stage = s.Name()
		}
		return nil, err
	}
	return out, nil
}
