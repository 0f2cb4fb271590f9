package learners

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/kbukum/mlkit/errors"
	"github.com/kbukum/mlkit/frame"
	"github.com/kbukum/mlkit/stage"
	"github.com/kbukum/mlkit/validation"
)

// TreeConfig configures DecisionTree.
type TreeConfig struct {
	// MaxDepth bounds the depth of the tree; 0 means unlimited.
	MaxDepth int `mapstructure:"max_depth" validate:"gte=0"`
	// MinSamplesSplit is the smallest node that may be split.
	MinSamplesSplit int    `mapstructure:"min_samples_split" validate:"gte=2"`
	Task            string `mapstructure:"task" validate:"omitempty,oneof=classification regression"`
}

// DefaultTreeConfig returns an unbounded classification tree.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{MinSamplesSplit: 2, Task: string(Classification)}
}

// DecisionTree is a CART tree. Classification splits minimise gini
// impurity, regression splits minimise variance. Numeric columns split on
// a threshold (x <= t goes left), categorical columns on equality with one
// category (x == c goes left).
type DecisionTree struct {
	stage.Fitted
	name string
	cfg  TreeConfig

	task    Task
	kinds   []frame.Kind
	root    *treeNode
	classes frame.Series
}

type treeNode struct {
	leaf        bool
	feature     int
	categorical bool
	threshold   float64
	category    string
	left, right *treeNode

	code  int
	value float64
}

// NewDecisionTree creates an unfit tree. A zero MinSamplesSplit means 2.
func NewDecisionTree(name string, cfg TreeConfig) *DecisionTree {
	if cfg.MinSamplesSplit == 0 {
		cfg.MinSamplesSplit = 2
	}
	return &DecisionTree{name: name, cfg: cfg}
}

func (t *DecisionTree) Name() string      { return t.name }
func (t *DecisionTree) Kind() string      { return "decision_tree" }
func (t *DecisionTree) Clone() stage.Stage { return NewDecisionTree(t.name, t.cfg) }

// Depth returns the depth of the fitted tree; a single leaf has depth 0.
func (t *DecisionTree) Depth() int { return depthOf(t.root) }

func (t *DecisionTree) Fit(_ context.Context, x *frame.Frame, y frame.Series) error {
	t.Reset()
	if err := validation.StageConfig(t.name, t.cfg); err != nil {
		return err
	}
	task, err := ParseTask(t.cfg.Task)
	if err != nil {
		return attribute(t.name, err)
	}
	if err := stage.RequireTarget(t.name, x, y); err != nil {
		return err
	}
	if err := requireFinite(t.name, x); err != nil {
		return err
	}

	b := &treeBuilder{cfg: t.cfg, task: task, cols: x.Columns()}
	if task == Regression {
		if b.values, err = numericTarget(t.name, y); err != nil {
			return err
		}
	} else {
		var classes frame.Series
		b.codes, classes = frame.Encode(y)
		b.nClasses = classes.Len()
		t.classes = classes
	}

	idx := make([]int, x.Rows())
	for i := range idx {
		idx[i] = i
	}

	t.kinds = make([]frame.Kind, x.NumCols())
	for i, c := range b.cols {
		t.kinds[i] = c.Kind
	}
	t.task = task
	t.root = b.build(idx, 0)
	t.MarkFitted()
	return nil
}

func (t *DecisionTree) Transform(_ context.Context, x *frame.Frame) (*frame.Frame, error) {
	if err := t.Check(t.name); err != nil {
		return nil, err
	}
	if err := checkWidth(t.name, len(t.kinds), x); err != nil {
		return nil, err
	}
	cols := x.Columns()
	for i, c := range cols {
		if c.Kind != t.kinds[i] {
			e := errors.InvalidInput(c.Name, "column kind differs from fit time").
				WithDetail("want", t.kinds[i].String()).WithDetail("got", c.Kind.String())
			e.Stage = t.name
			return nil, e
		}
	}

	codes := make([]int, x.Rows())
	values := make([]float64, x.Rows())
	for r := range codes {
		n := t.root
		for !n.leaf {
			c := cols[n.feature]
			var left bool
			if n.categorical {
				left = c.Cat[r] == n.category
			} else {
				left = c.Num[r] <= n.threshold
			}
			if left {
				n = n.left
			} else {
				n = n.right
			}
		}
		codes[r], values[r] = n.code, n.value
	}

	if t.task == Regression {
		return stage.Predictions(t.name, frame.NumericSeries(t.name, values)), nil
	}
	return stage.Predictions(t.name, t.classes.Take(codes)), nil
}

// requireFinite rejects NaN and infinite numeric features; thresholds
// cannot order them.
func requireFinite(name string, x *frame.Frame) error {
	for _, c := range x.Columns() {
		if c.Kind != frame.Numeric {
			continue
		}
		for r, v := range c.Num {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				e := errors.InvalidInput(c.Name, "numeric feature is not finite").
					WithDetail("row", r).WithDetail("value", fmt.Sprint(v))
				e.Stage = name
				return e
			}
		}
	}
	return nil
}

func depthOf(n *treeNode) int {
	if n == nil || n.leaf {
		return 0
	}
	return 1 + max(depthOf(n.left), depthOf(n.right))
}

// --- growing ---

const minGain = 1e-12

type treeBuilder struct {
	cfg      TreeConfig
	task     Task
	cols     []frame.Series
	codes    []int
	nClasses int
	values   []float64
}

// tally accumulates what the impurity of a node depends on.
type tally struct {
	n          float64
	counts     []float64
	sum, sumSq float64
}

func (b *treeBuilder) newTally() *tally {
	return &tally{counts: make([]float64, b.nClasses)}
}

func (b *treeBuilder) add(t *tally, row int, sign float64) {
	t.n += sign
	if b.task == Regression {
		v := b.values[row]
		t.sum += sign * v
		t.sumSq += sign * v * v
		return
	}
	t.counts[b.codes[row]] += sign
}

func (b *treeBuilder) tallyOf(idx []int) *tally {
	t := b.newTally()
	for _, i := range idx {
		b.add(t, i, 1)
	}
	return t
}

func (t *tally) clone() *tally {
	c := *t
	c.counts = slices.Clone(t.counts)
	return &c
}

// impurity is gini for classification and variance for regression.
func (b *treeBuilder) impurity(t *tally) float64 {
	if t.n <= 0 {
		return 0
	}
	if b.task == Regression {
		mean := t.sum / t.n
		return max(0, t.sumSq/t.n-mean*mean)
	}
	g := 1.0
	for _, c := range t.counts {
		p := c / t.n
		g -= p * p
	}
	return g
}

type split struct {
	found       bool
	score       float64
	feature     int
	categorical bool
	threshold   float64
	category    string
}

func (b *treeBuilder) build(idx []int, depth int) *treeNode {
	total := b.tallyOf(idx)
	parent := b.impurity(total)
	if parent <= minGain || len(idx) < b.cfg.MinSamplesSplit ||
		(b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth) {
		return b.leaf(total)
	}

	best := split{score: parent - minGain}
	for f, col := range b.cols {
		if col.Kind == frame.Categorical {
			b.bestCategorical(f, col, idx, total, &best)
		} else {
			b.bestThreshold(f, col, idx, total, &best)
		}
	}
	if !best.found {
		return b.leaf(total)
	}

	var left, right []int
	col := b.cols[best.feature]
	for _, i := range idx {
		if (best.categorical && col.Cat[i] == best.category) || (!best.categorical && col.Num[i] <= best.threshold) {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	// A split that separates nothing would recurse on the same rows.
	if len(left) == 0 || len(right) == 0 {
		return b.leaf(total)
	}

	return &treeNode{
		feature:     best.feature,
		categorical: best.categorical,
		threshold:   best.threshold,
		category:    best.category,
		left:        b.build(left, depth+1),
		right:       b.build(right, depth+1),
	}
}

func (b *treeBuilder) bestThreshold(f int, col frame.Series, idx []int, total *tally, best *split) {
	sorted := slices.Clone(idx)
	sort.SliceStable(sorted, func(a, c int) bool { return col.Num[sorted[a]] < col.Num[sorted[c]] })

	left, right := b.newTally(), total.clone()
	for p := 0; p < len(sorted)-1; p++ {
		b.add(left, sorted[p], 1)
		b.add(right, sorted[p], -1)
		v, next := col.Num[sorted[p]], col.Num[sorted[p+1]]
		if v == next {
			continue
		}
		score := (left.n*b.impurity(left) + right.n*b.impurity(right)) / total.n
		if score < best.score {
			*best = split{found: true, score: score, feature: f, threshold: (v + next) / 2}
		}
	}
}

func (b *treeBuilder) bestCategorical(f int, col frame.Series, idx []int, total *tally, best *split) {
	groups := map[string]*tally{}
	for _, i := range idx {
		g, ok := groups[col.Cat[i]]
		if !ok {
			g = b.newTally()
			groups[col.Cat[i]] = g
		}
		b.add(g, i, 1)
	}
	if len(groups) < 2 {
		return
	}

	values := make([]string, 0, len(groups))
	for v := range groups {
		values = append(values, v)
	}
	sort.Strings(values)

	for _, v := range values {
		left := groups[v]
		right := total.clone()
		for c := range right.counts {
			right.counts[c] -= left.counts[c]
		}
		right.n -= left.n
		right.sum -= left.sum
		right.sumSq -= left.sumSq

		score := (left.n*b.impurity(left) + right.n*b.impurity(right)) / total.n
		if score < best.score {
			*best = split{found: true, score: score, feature: f, categorical: true, category: v}
		}
	}
}

func (b *treeBuilder) leaf(t *tally) *treeNode {
	if b.task == Regression {
		return &treeNode{leaf: true, value: t.sum / t.n}
	}
	counts := make([]int, len(t.counts))
	for c, v := range t.counts {
		counts[c] = int(v)
	}
	return &treeNode{leaf: true, code: plurality(counts)}
}
