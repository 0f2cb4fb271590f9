package pipeline

import (
	"maps"
	"sort"
	"sync"

	"github.com/go-viper/mapstructure/v2"

	"github.com/kbukum/mlkit/errors"
	"github.com/kbukum/mlkit/learners"
	"github.com/kbukum/mlkit/stage"
)

// ParamName is the reserved parameter carrying the stage name. Build sets it
// to the lookup name unless the caller already did.
const ParamName = "name"

// Factory builds a fresh, unfit stage from parameters.
type Factory func(params map[string]any) (stage.Stage, error)

// Registry provides named stage factories for expressions and definitions.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory, replacing any previous one under the same name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Get retrieves a factory by name.
func (r *Registry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// List returns sorted names of all registered factories.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build looks up name and calls its factory. Unknown names fail with NOT_FOUND.
func (r *Registry) Build(name string, params map[string]any) (stage.Stage, error) {
	f, ok := r.Get(name)
	if !ok {
		return nil, errors.NotFound("component", name)
	}
	p := make(map[string]any, len(params)+1)
	maps.Copy(p, params)
	if _, ok := p[ParamName]; !ok {
		p[ParamName] = name
	}
	return f(p)
}

// Clone returns an independent registry with the same factories.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Registry{factories: maps.Clone(r.factories)}
}

// LeafFactory adapts a leaf constructor. Params other than ParamName are
// decoded over defaults with mapstructure; unknown keys are rejected.
func LeafFactory[C any](defaults C, ctor func(name string, cfg C) stage.Stage) Factory {
	return func(params map[string]any) (stage.Stage, error) {
		cfg := defaults
		name, _ := params[ParamName].(string)
		rest := make(map[string]any, len(params))
		for k, v := range params {
			if k != ParamName {
				rest[k] = v
			}
		}
		if err := decodeParams(rest, &cfg); err != nil {
			return nil, errors.InvalidConfiguration(name, "invalid parameters").WithCause(err)
		}
		return ctor(name, cfg), nil
	}
}

func decodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(params)
}

type noParams struct{}

// DefaultRegistry returns a new registry holding the built-in leaves:
//
//	scale, standard_scaler   StandardScaler    params: columns
//	minmax                   MinMaxScaler      params: columns
//	onehot                   OneHotEncoder     params: columns
//	numeric, categorical     ColumnSelector    (fixed kind)
//	columns                  ColumnSelector    params: kind, names
//	knn                      KNN               params: k, task
//	centroid                 NearestCentroid
//	tree                     DecisionTree      params: max_depth, min_samples_split, task
//	majority                 Majority          params: task
func DefaultRegistry() *Registry {
	r := NewRegistry()

	scaler := LeafFactory(learners.ScalerConfig{}, func(n string, c learners.ScalerConfig) stage.Stage {
		return learners.NewStandardScaler(n, c)
	})
	r.Register("scale", scaler)
	r.Register("standard_scaler", scaler)
	r.Register("minmax", LeafFactory(learners.ScalerConfig{}, func(n string, c learners.ScalerConfig) stage.Stage {
		return learners.NewMinMaxScaler(n, c)
	}))
	r.Register("onehot", LeafFactory(learners.OneHotConfig{}, func(n string, c learners.OneHotConfig) stage.Stage {
		return learners.NewOneHotEncoder(n, c)
	}))

	columns := func(n string, c learners.SelectorConfig) stage.Stage { return learners.NewColumnSelector(n, c) }
	r.Register("numeric", LeafFactory(learners.SelectorConfig{Kind: "numeric"}, columns))
	r.Register("categorical", LeafFactory(learners.SelectorConfig{Kind: "categorical"}, columns))
	r.Register("columns", LeafFactory(learners.SelectorConfig{}, columns))

	r.Register("knn", LeafFactory(learners.DefaultKNNConfig(), func(n string, c learners.KNNConfig) stage.Stage {
		return learners.NewKNN(n, c)
	}))
	r.Register("centroid", LeafFactory(noParams{}, func(n string, _ noParams) stage.Stage {
		return learners.NewNearestCentroid(n)
	}))
	r.Register("tree", LeafFactory(learners.DefaultTreeConfig(), func(n string, c learners.TreeConfig) stage.Stage {
		return learners.NewDecisionTree(n, c)
	}))
	r.Register("majority", LeafFactory(learners.MajorityConfig{}, func(n string, c learners.MajorityConfig) stage.Stage {
		return learners.NewMajority(n, c)
	}))
	return r
}
