package crossval

import (
	"math/rand/v2"

	"github.com/kbukum/mlkit/errors"
)

// Fold is one train/test partition of the row indices [0, n).
type Fold struct {
	Index int   `json:"index" yaml:"index"`
	Train []int `json:"train" yaml:"train"`
	Test  []int `json:"test" yaml:"test"`
}

// KFold splits n rows into k folds. Test groups are contiguous runs of the
// (optionally shuffled) row order: every group has n/k rows and the first
// n%k groups one more. Each row is in exactly one test group; a fold's
// training rows are all the others, in ascending order of position.
//
// Shuffling uses a PCG generator seeded from seed, so the partition is
// reproducible.
func KFold(n, k int, shuffle bool, seed int64) ([]Fold, error) {
	if k < 2 {
		return nil, errors.InvalidConfiguration("kfold", "folds must be at least 2").WithDetail("folds", k)
	}
	if k > n {
		return nil, errors.InvalidConfiguration("kfold", "more folds than rows").
			WithDetail("folds", k).WithDetail("rows", n)
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if shuffle {
		r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
		r.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	size, extra := n/k, n%k
	folds := make([]Fold, k)
	start := 0
	for f := range folds {
		end := start + size
		if f < extra {
			end++
		}
		test := append([]int(nil), order[start:end]...)
		train := make([]int, 0, n-len(test))
		train = append(train, order[:start]...)
		train = append(train, order[end:]...)
		folds[f] = Fold{Index: f, Train: train, Test: test}
		start = end
	}
	return folds, nil
}
