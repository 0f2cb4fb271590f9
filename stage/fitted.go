package stage

import (
	"sync/atomic"

	"github.com/kbukum/mlkit/errors"
)

// Fitted tracks whether a stage has completed a successful fit. Embed it and
// call MarkFitted at the end of Fit and Check at the start of Transform.
type Fitted struct {
	ready atomic.Bool
}

// MarkFitted records a successful fit.
func (f *Fitted) MarkFitted() { f.ready.Store(true) }

// Reset marks the stage unfit, used at the start of a refit.
func (f *Fitted) Reset() { f.ready.Store(false) }

// IsFitted reports whether a fit has completed.
func (f *Fitted) IsFitted() bool { return f.ready.Load() }

// Check returns NOT_FITTED for stage name when no fit has completed.
func (f *Fitted) Check(name string) error {
	if !f.ready.Load() {
		return errors.NotFitted(name, "transform")
	}
	return nil
}
