package ensemble

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/kbukum/mlkit/crossval"
	"github.com/kbukum/mlkit/datasets"
	"github.com/kbukum/mlkit/errors"
	"github.com/kbukum/mlkit/frame"
	"github.com/kbukum/mlkit/learners"
	"github.com/kbukum/mlkit/stage"
)

var ctx = context.Background()

// --- test helpers ---

// constant predicts the same value for every row.
type constant struct {
	stage.Fitted
	name   string
	label  string
	value  float64
	fitErr error
}

func label(name, l string) *constant { return &constant{name: name, label: l} }
func number(name string, v float64) *constant { return &constant{name: name, value: v} }

func (c *constant) Name() string { return c.name }
func (c *constant) Clone() stage.Stage {
	return &constant{name: c.name, label: c.label, value: c.value, fitErr: c.fitErr}
}

func (c *constant) Fit(context.Context, *frame.Frame, frame.Series) error {
	if c.fitErr != nil {
		return c.fitErr
	}
	c.MarkFitted()
	return nil
}

func (c *constant) Transform(_ context.Context, x *frame.Frame) (*frame.Frame, error) {
	if err := c.Check(c.name); err != nil {
		return nil, err
	}
	if c.label == "" {
		vals := make([]float64, x.Rows())
		for i := range vals {
			vals[i] = c.value
		}
		return stage.Predictions(c.name, frame.NumericSeries(c.name, vals)), nil
	}
	vals := make([]string, x.Rows())
	for i := range vals {
		vals[i] = c.label
	}
	return stage.Predictions(c.name, frame.CategoricalSeries(c.name, vals)), nil
}

// memorizer predicts the label it saw for an identical "id" during fit and
// "unseen" otherwise, exposing any training row that leaks into a prediction.
type memorizer struct {
	stage.Fitted
	seen map[float64]string
}

func (m *memorizer) Name() string       { return "mem" }
func (m *memorizer) Clone() stage.Stage { return &memorizer{} }

func (m *memorizer) Fit(_ context.Context, x *frame.Frame, y frame.Series) error {
	m.seen = map[float64]string{}
	ids, _ := x.Column("id")
	for i, v := range ids.Num {
		m.seen[v] = y.Label(i)
	}
	m.MarkFitted()
	return nil
}

func (m *memorizer) Transform(_ context.Context, x *frame.Frame) (*frame.Frame, error) {
	ids, _ := x.Column("id")
	out := make([]string, x.Rows())
	for i, v := range ids.Num {
		if l, ok := m.seen[v]; ok {
			out[i] = l
		} else {
			out[i] = "unseen"
		}
	}
	return stage.Predictions("mem", frame.CategoricalSeries("mem", out)), nil
}

// spy records the frame it was fit on and predicts like a majority baseline.
type spy struct {
	*learners.Majority
	fitX *frame.Frame
}

func newSpy() *spy { return &spy{Majority: learners.NewMajority("spy", learners.MajorityConfig{})} }

func (s *spy) Clone() stage.Stage { return newSpy() }
func (s *spy) Fit(ctx context.Context, x *frame.Frame, y frame.Series) error {
	s.fitX = x
	return s.Majority.Fit(ctx, x, y)
}

func accuracy(t *testing.T, s stage.Stage, x *frame.Frame, y frame.Series) float64 {
	t.Helper()
	if err := s.Fit(ctx, x, y); err != nil {
		t.Fatalf("fit %s: %v", s.Name(), err)
	}
	p, err := stage.Predict(ctx, s, x)
	if err != nil {
		t.Fatalf("predict %s: %v", s.Name(), err)
	}
	return crossval.Accuracy(p, y)
}

func ids(n int) (*frame.Frame, frame.Series) {
	vals := make([]float64, n)
	labels := make([]string, n)
	for i := range vals {
		vals[i] = float64(i)
		labels[i] = []string{"a", "b"}[i%2]
	}
	return frame.MustNew(frame.NumericSeries("id", vals)), frame.CategoricalSeries("y", labels)
}

// --- Config ---

func TestConfig_ApplyDefaults(t *testing.T) {
	c := Config{}
	c.ApplyDefaults()
	if c.Folds != 5 || c.Task != "classification" || c.MetricName != "accuracy" {
		t.Errorf("unexpected defaults %+v", c)
	}

	r := Config{Task: "regression"}
	r.ApplyDefaults()
	if r.MetricName != "neg_mse" {
		t.Errorf("expected neg_mse for regression, got %q", r.MetricName)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"defaults", Config{}, true},
		{"one fold", Config{Folds: 1}, false},
		{"negative parallel", Config{MaxParallel: -1}, false},
		{"unknown task", Config{Task: "ranking"}, false},
		{"unknown metric", Config{MetricName: "f1"}, false},
		{"custom metric", Config{Metric: crossval.Accuracy, MetricName: "ignored"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newConfig(tc.cfg, "ens")
			err := c.Validate("ens")
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.HasCode(err, errors.ErrCodeInvalidConfiguration) {
				t.Fatalf("expected INVALID_CONFIGURATION, got %v", err)
			}
		})
	}
}

// --- Vote ---

func TestVote_Iris(t *testing.T) {
	x, y := datasets.Iris(50, 1)
	v := NewVote(Config{},
		learners.NewKNN("knn", learners.DefaultKNNConfig()),
		learners.NewDecisionTree("tree", learners.DefaultTreeConfig()),
		learners.NewNearestCentroid("centroid"),
	)
	if acc := accuracy(t, v, x, y); acc <= 90 {
		t.Errorf("expected training accuracy above 90, got %.1f", acc)
	}
}

func TestVote_Plurality(t *testing.T) {
	x, y := ids(4)
	tests := []struct {
		name    string
		members []stage.Stage
		want    string
	}{
		{"majority", []stage.Stage{label("m1", "b"), label("m2", "a"), label("m3", "a")}, "a"},
		{"three-way tie", []stage.Stage{label("m1", "c"), label("m2", "a"), label("m3", "b")}, "c"},
		{"two-way tie", []stage.Stage{label("m1", "b"), label("m2", "a")}, "b"},
		{"tie among leaders", []stage.Stage{label("m1", "z"), label("m2", "a"), label("m3", "b"), label("m4", "b"), label("m5", "a")}, "a"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := NewVote(Config{Name: "v"}, tc.members...)
			if err := v.Fit(ctx, x, y); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			p, err := stage.Predict(ctx, v, x)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name != "v" || p.Cat[0] != tc.want || p.Cat[3] != tc.want {
				t.Errorf("expected %q in column v, got %q %v", tc.want, p.Name, p.Cat)
			}
		})
	}
}

func TestVote_Regression(t *testing.T) {
	x, y := datasets.Linear(6, []float64{1}, 0, 0, 1)
	v := NewVote(Config{Task: "regression"}, number("a", 1), number("b", 2), number("c", 6))
	if err := v.Fit(ctx, x, y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, err := stage.Predict(ctx, v, x)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Kind != frame.Numeric || p.Num[0] != 3 {
		t.Errorf("expected mean 3, got %v", p)
	}

	mixed := NewVote(Config{Task: "regression"}, number("a", 1), label("b", "x"))
	if err := mixed.Fit(ctx, x, y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := mixed.Transform(ctx, x); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for a non-numeric member, got %v", err)
	}
}

func TestVote_Lifecycle(t *testing.T) {
	x, y := ids(4)

	one := NewVote(Config{}, label("only", "a"))
	if err := one.Fit(ctx, x, y); !errors.HasCode(err, errors.ErrCodeInvalidConfiguration) {
		t.Errorf("expected INVALID_CONFIGURATION for one member, got %v", err)
	}

	v := NewVote(Config{}, label("m1", "a"), label("m2", "b"))
	if _, err := v.Transform(ctx, x); !errors.HasCode(err, errors.ErrCodeNotFitted) {
		t.Errorf("expected NOT_FITTED, got %v", err)
	}

	boom := stderrors.New("member exploded")
	failing := NewVote(Config{MaxParallel: 2}, label("m1", "a"), &constant{name: "bad", label: "b", fitErr: boom})
	if err := failing.Fit(ctx, x, y); !stderrors.Is(err, boom) {
		t.Errorf("expected the member error unchanged, got %v", err)
	}
}

// --- Stack ---

func TestStack_NoLeakage(t *testing.T) {
	x, y := ids(20)
	meta := newSpy()
	s := NewStack(Config{Folds: 4, Shuffle: true, Seed: 3, Meta: meta}, &memorizer{}, label("const", "a"))
	if err := s.Fit(ctx, x, y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	counts := make([]int, x.Rows())
	for _, f := range s.Folds() {
		for _, r := range f.Test {
			counts[r]++
		}
	}
	for r, c := range counts {
		if c != 1 {
			t.Fatalf("row %d is held out %d times", r, c)
		}
	}

	memCol, ok := meta.fitX.Column("mem")
	if !ok {
		t.Fatalf("expected a meta-feature column per member, got %v", meta.fitX.Names())
	}
	for r, v := range memCol.Cat {
		if v != "unseen" {
			t.Fatalf("row %d: meta-feature came from a member that trained on it", r)
		}
	}
	if got := strings.Join(meta.fitX.Names(), ","); got != "mem,const" {
		t.Errorf("expected member columns in declaration order, got %s", got)
	}

	// Refit members saw every row.
	p, err := stage.Predict(ctx, s.Children()[0], x)
	if err != nil || p.Cat[5] != y.Cat[5] {
		t.Errorf("expected members refit on the full data, got %v %v", p.Cat, err)
	}
}

func TestStack_Iris(t *testing.T) {
	x, y := datasets.Iris(40, 2)
	s := NewStack(Config{Shuffle: true, Seed: 5},
		learners.NewKNN("knn", learners.DefaultKNNConfig()),
		learners.NewNearestCentroid("centroid"),
	)
	if acc := accuracy(t, s, x, y); acc <= 90 {
		t.Errorf("expected training accuracy above 90, got %.1f", acc)
	}
	if s.Meta().Name() != "stack_meta" {
		t.Errorf("expected default meta-learner, got %q", s.Meta().Name())
	}
	if len(s.Folds()) != 5 {
		t.Errorf("expected 5 folds, got %d", len(s.Folds()))
	}
}

func TestStack_KeepOriginal(t *testing.T) {
	x, y := ids(6)
	meta := newSpy()
	s := NewStack(Config{Folds: 2, KeepOriginal: true, Meta: meta}, label("id", "a"), label("b", "b"))
	if err := s.Fit(ctx, x, y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(meta.fitX.Names(), ","); got != "id,id_1,b" {
		t.Errorf("expected original features first with collisions suffixed, got %s", got)
	}
}

func TestStack_Errors(t *testing.T) {
	x, y := ids(3)
	tests := []struct {
		name  string
		stack *Stack
		code  errors.ErrorCode
	}{
		{"one member", NewStack(Config{Folds: 2}, label("a", "a")), errors.ErrCodeInvalidConfiguration},
		{"folds exceed rows", NewStack(Config{Folds: 4}, label("a", "a"), label("b", "b")), errors.ErrCodeInvalidConfiguration},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.stack.Fit(ctx, x, y)
			if !errors.HasCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
			if app, _ := errors.AsAppError(err); app.Stage != "stack" {
				t.Errorf("expected error attributed to the stack, got %q", app.Stage)
			}
		})
	}
}

// --- Best ---

func TestBest_PicksHighestMean(t *testing.T) {
	x, y := datasets.Iris(20, 4)
	b := NewBest(Config{Shuffle: true, Seed: 1},
		learners.NewMajority("majority", learners.MajorityConfig{}),
		learners.NewKNN("knn", learners.DefaultKNNConfig()),
		label("wrong", "tulip"),
	)
	if err := b.Fit(ctx, x, y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.BestIndex() != 1 || b.Best().Name() != "knn" {
		t.Fatalf("expected knn (member 2) to win, got index %d", b.BestIndex())
	}
	res := b.Results()
	if len(res) != 3 || res[2].Mean != 0 || res[1].Mean <= res[0].Mean {
		t.Errorf("unexpected results %+v %+v %+v", *res[0], *res[1], *res[2])
	}

	p, err := stage.Predict(ctx, b, x)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "knn" {
		t.Errorf("expected the winner's output, got column %q", p.Name)
	}
	if _, err := b.Members()[0].Transform(ctx, x); !errors.HasCode(err, errors.ErrCodeNotFitted) {
		t.Errorf("expected losing members to stay unfit, got %v", err)
	}
}

func TestBest_MatchesWinnerFitAlone(t *testing.T) {
	x, y := datasets.Iris(20, 8)
	var train, test []int
	for i := 0; i < x.Rows(); i++ {
		if i%4 == 0 {
			test = append(test, i)
		} else {
			train = append(train, i)
		}
	}
	xTrain, yTrain, xTest := x.Take(train), y.Take(train), x.Take(test)

	b := NewBest(Config{Shuffle: true, Seed: 5},
		learners.NewMajority("majority", learners.MajorityConfig{}),
		learners.NewKNN("knn", learners.DefaultKNNConfig()),
	)
	if err := b.Fit(ctx, xTrain, yTrain); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Best().Name() != "knn" {
		t.Fatalf("expected knn to win, got %s", b.Best().Name())
	}
	got, err := b.Transform(ctx, xTest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	alone := learners.NewKNN("knn", learners.DefaultKNNConfig())
	if err := alone.Fit(ctx, xTrain, yTrain); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, err := alone.Transform(ctx, xTest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(want) {
		t.Error("expected the selected member's held-out output to match the same learner fit alone")
	}
}

func TestBest_ChildrenAfterFit(t *testing.T) {
	x, y := datasets.Iris(20, 4)
	b := NewBest(Config{Shuffle: true, Seed: 1},
		learners.NewMajority("majority", learners.MajorityConfig{}),
		learners.NewKNN("knn", learners.DefaultKNNConfig()),
	)
	if got := len(b.Children()); got != 2 {
		t.Fatalf("expected both members before fit, got %d", got)
	}
	if err := b.Fit(ctx, x, y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	kids := b.Children()
	if len(kids) != 1 || kids[0] != b.Best() {
		t.Fatalf("expected only the winner after fit, got %v", kids)
	}
	if got := stage.Explain(b); strings.Contains(got, "majority") {
		t.Errorf("expected the unfit loser to be left out of the explanation, got\n%s", got)
	}
	if len(b.Members()) != 2 {
		t.Errorf("expected Members to keep every declared member, got %d", len(b.Members()))
	}

	// A failed refit goes back to listing every member.
	if err := b.Fit(ctx, x, frame.Series{}); err == nil {
		t.Fatal("expected an error without a target")
	}
	if got := len(b.Children()); got != 2 {
		t.Errorf("expected both members after a failed fit, got %d", got)
	}
}

func TestBest_TieGoesToFirstDeclared(t *testing.T) {
	x, y := ids(10)
	b := NewBest(Config{Folds: 2}, label("first", "a"), label("second", "a"))
	if err := b.Fit(ctx, x, y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.BestIndex() != 0 {
		t.Errorf("expected the first member on a tie, got %d", b.BestIndex())
	}
}

func TestBest_SingleMemberAndErrors(t *testing.T) {
	x, y := ids(10)
	b := NewBest(Config{Folds: 2}, label("only", "a"))
	if err := b.Fit(ctx, x, y); err != nil {
		t.Fatalf("expected one member to be enough, got %v", err)
	}

	if err := NewBest(Config{}).Fit(ctx, x, y); !errors.HasCode(err, errors.ErrCodeInvalidConfiguration) {
		t.Errorf("expected INVALID_CONFIGURATION for no members, got %v", err)
	}
	if NewBest(Config{}).Best() != nil {
		t.Error("expected no selection before fit")
	}
}

func TestBest_ParallelMatchesSequential(t *testing.T) {
	x, y := datasets.Iris(15, 8)
	members := func() []stage.Stage {
		return []stage.Stage{
			learners.NewKNN("knn1", learners.KNNConfig{K: 1}),
			learners.NewKNN("knn7", learners.KNNConfig{K: 7}),
			learners.NewDecisionTree("tree", learners.DefaultTreeConfig()),
		}
	}
	seq := NewBest(Config{Shuffle: true, Seed: 2}, members()...)
	par := NewBest(Config{Shuffle: true, Seed: 2, MaxParallel: 3}, members()...)
	if err := seq.Fit(ctx, x, y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := par.Fit(ctx, x, y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seq.BestIndex() != par.BestIndex() {
		t.Fatalf("sequential picked %d, parallel picked %d", seq.BestIndex(), par.BestIndex())
	}
	for i := range seq.Results() {
		if seq.Results()[i].Mean != par.Results()[i].Mean {
			t.Errorf("member %d: %v != %v", i, seq.Results()[i].Mean, par.Results()[i].Mean)
		}
	}
}

// --- nesting ---

func TestNested_EnsemblesOfEnsembles(t *testing.T) {
	x, y := datasets.Iris(30, 12)
	v := NewVote(Config{Name: "outer"},
		NewBest(Config{Shuffle: true, Seed: 1},
			learners.NewKNN("knn", learners.DefaultKNNConfig()),
			learners.NewMajority("majority", learners.MajorityConfig{}),
		),
		NewStack(Config{Shuffle: true, Seed: 1},
			learners.NewKNN("knn3", learners.KNNConfig{K: 3}),
			learners.NewDecisionTree("tree", learners.DefaultTreeConfig()),
		),
		learners.NewNearestCentroid("centroid"),
	)

	c := v.Clone()
	if acc := accuracy(t, c, x, y); acc <= 90 {
		t.Errorf("expected nested ensemble above 90, got %.1f", acc)
	}
	if _, err := v.Transform(ctx, x); !errors.HasCode(err, errors.ErrCodeNotFitted) {
		t.Errorf("expected the original to stay unfit after fitting its clone, got %v", err)
	}

	nodes, depth := stage.Describe(v).Size()
	if nodes != 9 || depth != 3 {
		t.Errorf("expected 9 nodes at depth 3, got %d/%d", nodes, depth)
	}
}
