package pipeline

import (
	"context"

	"github.com/kbukum/mlkit/ensemble"
	"github.com/kbukum/mlkit/errors"
	"github.com/kbukum/mlkit/frame"
	"github.com/kbukum/mlkit/stage"
	"github.com/kbukum/mlkit/validation"
)

// Selection modes.
const (
	ModeBest  = "best"
	ModeVote  = "vote"
	ModeStack = "stack"
)

// SelectConfig configures the "or" composite. The embedded ensemble config
// carries the metric, folds, seed and meta-learner.
type SelectConfig struct {
	ensemble.Config `mapstructure:",squash"`
	Mode            string `mapstructure:"mode"`
}

// Selection is the "or" composite. It resolves its alternatives through the
// ensemble matching its mode.
type Selection struct {
	cfg   SelectConfig
	alts  []stage.Stage
	inner stage.Stage
}

// Select creates a selection over alternatives, which it owns from here on.
// An empty mode means best.
func Select(cfg SelectConfig, alternatives ...stage.Stage) *Selection {
	if cfg.Name == "" {
		cfg.Name = "select"
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeBest
	}
	s := &Selection{cfg: cfg, alts: alternatives}
	s.inner = s.build()
	return s
}

func (s *Selection) build() stage.Stage {
	cfg := s.cfg.Config
	if cfg.Meta != nil {
		cfg.Meta = cfg.Meta.Clone()
	}
	switch s.cfg.Mode {
	case ModeBest:
		return ensemble.NewBest(cfg, s.alts...)
	case ModeVote:
		return ensemble.NewVote(cfg, s.alts...)
	case ModeStack:
		return ensemble.NewStack(cfg, s.alts...)
	}
	return nil
}

func (s *Selection) Name() string { return s.cfg.Name }
func (s *Selection) Kind() string { return "select:" + s.cfg.Mode }
func (s *Selection) Mode() string { return s.cfg.Mode }

// Children lists the alternatives, plus the meta-learner in stack mode.
// After a best-mode fit it lists only the winner.
func (s *Selection) Children() []stage.Stage {
	if c, ok := s.inner.(stage.Composite); ok {
		return c.Children()
	}
	return s.alts
}

// Ensemble returns the ensemble that resolves the selection, or nil when
// the mode is unknown.
func (s *Selection) Ensemble() stage.Stage { return s.inner }

func (s *Selection) Clone() stage.Stage {
	return Select(s.cfg, stage.CloneAll(s.alts)...)
}

// Fit requires at least two alternatives and a known mode, then fits the
// resolving ensemble.
func (s *Selection) Fit(ctx context.Context, x *frame.Frame, y frame.Series) error {
	v := validation.New().
		OneOf("mode", s.cfg.Mode, []string{ModeBest, ModeVote, ModeStack}).
		Custom(len(s.alts) >= 2, "alternatives", "selection needs at least 2 alternatives")
	if err := v.ValidateStage(s.Name()); err != nil {
		return err
	}
	return s.inner.Fit(ctx, x, y)
}

func (s *Selection) Transform(ctx context.Context, x *frame.Frame) (*frame.Frame, error) {
	if s.inner == nil {
		return nil, errors.NotFitted(s.Name(), "transform")
	}
	return s.inner.Transform(ctx, x)
}
