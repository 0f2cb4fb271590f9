package pipeline

import (
	"bytes"
	stderrors "errors"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/mlkit/ensemble"
	"github.com/kbukum/mlkit/errors"
	"github.com/kbukum/mlkit/stage"
	"github.com/kbukum/mlkit/validation"
)

// Definition is a YAML-declared pipeline.
type Definition struct {
	// Name identifies the definition in errors and reports.
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Expression is the pipeline in expression syntax.
	Expression string `yaml:"expression" json:"expression"`
	// Select configures "*" selections and explicit ensemble calls.
	Select SelectDef `yaml:"select,omitempty" json:"select,omitempty"`
	// MaxParallel bounds concurrent union children and ensemble members.
	MaxParallel int `yaml:"max_parallel,omitempty" json:"max_parallel,omitempty"`
	// Components are parameterised registry entries usable by name.
	Components map[string]ComponentDef `yaml:"components,omitempty" json:"components,omitempty"`
	// Aliases are named sub-expressions.
	Aliases map[string]string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// SelectDef is the YAML form of SelectConfig.
type SelectDef struct {
	Mode    string `yaml:"mode,omitempty" json:"mode,omitempty"`
	Metric  string `yaml:"metric,omitempty" json:"metric,omitempty"`
	Folds   int    `yaml:"folds,omitempty" json:"folds,omitempty"`
	Shuffle bool   `yaml:"shuffle,omitempty" json:"shuffle,omitempty"`
	Seed    int64  `yaml:"seed,omitempty" json:"seed,omitempty"`
	Task    string `yaml:"task,omitempty" json:"task,omitempty"`
	// Meta is an expression for the stack meta-learner.
	Meta string `yaml:"meta,omitempty" json:"meta,omitempty"`
	// KeepOriginal passes the original features to the meta-learner.
	KeepOriginal bool `yaml:"keep_original,omitempty" json:"keep_original,omitempty"`
}

// ComponentDef binds a name to a registry type with fixed parameters.
type ComponentDef struct {
	Type   string         `yaml:"type" json:"type"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// LoadDefinition reads and parses a definition file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NotFound("definition", path)
		}
		return nil, errors.Internal(err)
	}
	return ParseDefinition(data)
}

// FindDefinition searches dirs in order for {name}.yaml or {name}.yml.
func FindDefinition(name string, dirs ...string) (*Definition, error) {
	for _, dir := range dirs {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, name+ext)
			if _, err := os.Stat(path); err == nil {
				return LoadDefinition(path)
			}
		}
	}
	return nil, errors.NotFound("definition", name).WithDetail("dirs", dirs)
}

// ParseDefinition decodes and validates a YAML definition. Unknown keys are
// rejected.
func ParseDefinition(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var d Definition
	if err := dec.Decode(&d); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, errors.InvalidInput("definition", "empty document")
		}
		return nil, errors.InvalidInput("definition", "malformed YAML").WithCause(err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks the definition without resolving any names.
func (d *Definition) Validate() error {
	v := validation.New().
		Required("expression", d.Expression).
		OneOf("select.mode", d.Select.Mode, []string{ModeBest, ModeVote, ModeStack}).
		Custom(d.Select.Folds == 0 || d.Select.Folds >= 2, "select.folds", "must be at least 2").
		Min("max_parallel", d.MaxParallel, 0)
	for _, name := range slices.Sorted(maps.Keys(d.Components)) {
		v.Required("components."+name+".type", d.Components[name].Type)
		_, clash := d.Aliases[name]
		v.Custom(!clash, "components."+name, "name is also an alias")
	}
	for _, name := range slices.Sorted(maps.Keys(d.Aliases)) {
		v.Required("aliases."+name, d.Aliases[name])
	}
	if err := v.ValidateStage(d.stageName()); err != nil {
		return err
	}
	return nil
}

func (d *Definition) stageName() string {
	if d.Name == "" {
		return "definition"
	}
	return d.Name
}

// SelectConfig converts the select block.
func (d *Definition) SelectConfig() SelectConfig {
	return SelectConfig{
		Mode: d.Select.Mode,
		Config: ensemble.Config{
			MetricName:   d.Select.Metric,
			Folds:        d.Select.Folds,
			Shuffle:      d.Select.Shuffle,
			Seed:         d.Select.Seed,
			Task:         d.Select.Task,
			KeepOriginal: d.Select.KeepOriginal,
			MaxParallel:  d.MaxParallel,
		},
	}
}

// Build resolves the definition against reg (nil means DefaultRegistry) and
// returns the stage tree. Components shadow registry names for this build
// only. opts are applied after the definition's own settings.
func (d *Definition) Build(reg *Registry, opts ...Option) (stage.Stage, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		reg = DefaultRegistry()
	}

	r := reg.Clone()
	for _, name := range slices.Sorted(maps.Keys(d.Components)) {
		c := d.Components[name]
		base, ok := reg.Get(c.Type)
		if !ok {
			return nil, errors.NotFound("component", c.Type).WithDetail("definition", d.stageName()).
				WithDetail("used_by", name)
		}
		r.Register(name, func(params map[string]any) (stage.Stage, error) {
			p := maps.Clone(params)
			if p == nil {
				p = make(map[string]any, len(c.Params))
			}
			maps.Copy(p, c.Params)
			return base(p)
		})
	}

	cfg := d.SelectConfig()
	if d.Select.Meta != "" {
		meta, err := Parse(d.Select.Meta, r, WithAliases(d.Aliases))
		if err != nil {
			return nil, err
		}
		cfg.Meta = meta
	}

	all := append([]Option{
		WithSelect(cfg),
		WithAliases(d.Aliases),
		WithMaxParallel(d.MaxParallel),
	}, opts...)
	return Parse(d.Expression, r, all...)
}
