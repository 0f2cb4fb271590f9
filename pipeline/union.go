package pipeline

import (
	"context"

	"github.com/kbukum/mlkit/errors"
	"github.com/kbukum/mlkit/frame"
	"github.com/kbukum/mlkit/stage"
)

// UnionStage is the "with" composite.
type UnionStage struct {
	stage.Fitted
	name        string
	stages      []stage.Stage
	maxParallel int
}

// Union creates a union composite over stages, which it owns from here on.
func Union(stages ...stage.Stage) *UnionStage {
	return &UnionStage{name: "union", stages: stages}
}

// Named sets the composite's name and returns it.
func (u *UnionStage) Named(name string) *UnionStage {
	u.name = name
	return u
}

// WithMaxParallel lets up to n children fit and transform at once.
func (u *UnionStage) WithMaxParallel(n int) *UnionStage {
	u.maxParallel = n
	return u
}

func (u *UnionStage) Name() string             { return u.name }
func (u *UnionStage) Kind() string             { return "union" }
func (u *UnionStage) Children() []stage.Stage { return u.stages }
func (u *UnionStage) Clone() stage.Stage {
	return &UnionStage{name: u.name, stages: stage.CloneAll(u.stages), maxParallel: u.maxParallel}
}

// Fit fits every child independently on the same input.
func (u *UnionStage) Fit(ctx context.Context, x *frame.Frame, y frame.Series) error {
	u.Reset()
	if len(u.stages) == 0 {
		return errors.InvalidConfiguration(u.name, "union has no stages")
	}
	if err := stage.CheckTarget(u.name, x, y); err != nil {
		return err
	}
	err := stage.Run(ctx, len(u.stages), u.maxParallel, func(ctx context.Context, i int) error {
		return u.stages[i].Fit(ctx, x, y)
	})
	if err != nil {
		return err
	}
	u.MarkFitted()
	return nil
}

// Transform applies every child to x and joins the outputs column-wise in
// declaration order. A child whose output row count differs from x fails
// with SHAPE_MISMATCH.
func (u *UnionStage) Transform(ctx context.Context, x *frame.Frame) (*frame.Frame, error) {
	if err := u.Check(u.name); err != nil {
		return nil, err
	}
	outs := make([]*frame.Frame, len(u.stages))
	err := stage.Run(ctx, len(u.stages), u.maxParallel, func(ctx context.Context, i int) error {
		out, err := u.stages[i].Transform(ctx, x)
		if err != nil {
			return err
		}
		if out.Rows() != x.Rows() {
			return errors.ShapeMismatch(u.name, "child rows", x.Rows(), out.Rows()).
				WithDetail("child", u.stages[i].Name())
		}
		outs[i] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return frame.HConcat(outs...)
}
