package learners

import (
	"context"

	"github.com/kbukum/mlkit/frame"
	"github.com/kbukum/mlkit/stage"
	"github.com/kbukum/mlkit/validation"
)

// SelectorConfig configures ColumnSelector. Exactly one of Kind and Names
// must be set.
type SelectorConfig struct {
	Kind  string   `mapstructure:"kind" validate:"omitempty,oneof=numeric categorical"`
	Names []string `mapstructure:"names"`
}

// ColumnSelector keeps a subset of columns, either by kind or by name.
type ColumnSelector struct {
	stage.Fitted
	name string
	cfg  SelectorConfig
}

// NewColumnSelector creates an unfit selector.
func NewColumnSelector(name string, cfg SelectorConfig) *ColumnSelector {
	return &ColumnSelector{name: name, cfg: cfg}
}

// NumericColumns is a selector that keeps every numeric column.
func NumericColumns(name string) *ColumnSelector {
	return NewColumnSelector(name, SelectorConfig{Kind: frame.Numeric.String()})
}

// CategoricalColumns is a selector that keeps every categorical column.
func CategoricalColumns(name string) *ColumnSelector {
	return NewColumnSelector(name, SelectorConfig{Kind: frame.Categorical.String()})
}

func (s *ColumnSelector) Name() string      { return s.name }
func (s *ColumnSelector) Kind() string      { return "select_columns" }
func (s *ColumnSelector) Clone() stage.Stage { return NewColumnSelector(s.name, s.cfg) }

func (s *ColumnSelector) Fit(_ context.Context, x *frame.Frame, y frame.Series) error {
	s.Reset()
	if err := validation.StageConfig(s.name, s.cfg); err != nil {
		return err
	}
	v := validation.New().Custom((s.cfg.Kind == "") != (len(s.cfg.Names) == 0), "kind", "set exactly one of kind and names")
	if err := v.ValidateStage(s.name); err != nil {
		return err
	}
	if err := stage.CheckTarget(s.name, x, y); err != nil {
		return err
	}
	if _, err := s.apply(x); err != nil {
		return err
	}
	s.MarkFitted()
	return nil
}

func (s *ColumnSelector) Transform(_ context.Context, x *frame.Frame) (*frame.Frame, error) {
	if err := s.Check(s.name); err != nil {
		return nil, err
	}
	return s.apply(x)
}

func (s *ColumnSelector) apply(x *frame.Frame) (*frame.Frame, error) {
	switch s.cfg.Kind {
	case "numeric":
		return x.ByKind(frame.Numeric), nil
	case "categorical":
		return x.ByKind(frame.Categorical), nil
	}
	out, err := x.Select(s.cfg.Names...)
	if err != nil {
		return nil, attribute(s.name, err)
	}
	return out, nil
}
