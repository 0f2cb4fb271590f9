package pipeline

import (
	"context"

	"github.com/kbukum/mlkit/errors"
	"github.com/kbukum/mlkit/frame"
	"github.com/kbukum/mlkit/stage"
)

// Sequential is the "then" composite.
type Sequential struct {
	stage.Fitted
	name   string
	stages []stage.Stage
}

// Chain creates a sequential composite over stages, which it owns from
// here on.
func Chain(stages ...stage.Stage) *Sequential {
	return &Sequential{name: "chain", stages: stages}
}

// Named sets the composite's name and returns it.
func (s *Sequential) Named(name string) *Sequential {
	s.name = name
	return s
}

func (s *Sequential) Name() string             { return s.name }
func (s *Sequential) Kind() string             { return "sequential" }
func (s *Sequential) Children() []stage.Stage { return s.stages }
func (s *Sequential) Clone() stage.Stage {
	return &Sequential{name: s.name, stages: stage.CloneAll(s.stages)}
}

// Fit fits every child but the last with FitTransform, feeding its output
// forward, then fits the last child on the final intermediate features. The
// original target is passed to every child.
func (s *Sequential) Fit(ctx context.Context, x *frame.Frame, y frame.Series) error {
	s.Reset()
	if len(s.stages) == 0 {
		return errors.InvalidConfiguration(s.name, "chain has no stages")
	}
	if err := stage.CheckTarget(s.name, x, y); err != nil {
		return err
	}

	cur := x
	last := len(s.stages) - 1
	for i, child := range s.stages[:last] {
		out, err := stage.FitTransform(ctx, child, cur, y)
		if err != nil {
			return err
		}
		if out.Rows() != x.Rows() {
			return errors.ShapeMismatch(s.name, "rows after "+child.Name(), x.Rows(), out.Rows()).
				WithDetail("position", i)
		}
		cur = out
	}
	if err := s.stages[last].Fit(ctx, cur, y); err != nil {
		return err
	}
	s.MarkFitted()
	return nil
}

// Transform pipes x through every child in order.
func (s *Sequential) Transform(ctx context.Context, x *frame.Frame) (*frame.Frame, error) {
	if err := s.Check(s.name); err != nil {
		return nil, err
	}
	cur := x
	for _, child := range s.stages {
		out, err := child.Transform(ctx, cur)
		if err != nil {
			return nil, err
		}
		cur = out
	}
	return cur, nil
}
