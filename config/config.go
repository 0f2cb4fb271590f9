package config

import (
	"github.com/kbukum/mlkit/crossval"
	"github.com/kbukum/mlkit/ensemble"
	"github.com/kbukum/mlkit/errors"
	"github.com/kbukum/mlkit/logger"
	"github.com/kbukum/mlkit/observability"
	"github.com/kbukum/mlkit/pipeline"
	"github.com/kbukum/mlkit/validation"
	"github.com/kbukum/mlkit/version"
)

// DefaultExpression is used when neither an expression nor a definition is
// configured.
const DefaultExpression = "numeric |> scale |> (knn * tree * centroid)"

// Config is the mlkit command configuration.
//
// Example config.yml:
//
//	name: mlkit
//	logging: {level: debug, format: json}
//	pipeline:
//	  expression: "numeric |> scale |> vote(knn, tree, centroid)"
//	  data: ./iris.csv
//	  target: species
//	evaluation: {metric: accuracy, folds: 10, shuffle: true, seed: 42}
type Config struct {
	Name          string              `yaml:"name" mapstructure:"name" validate:"required"`
	Environment   string              `yaml:"environment" mapstructure:"environment" validate:"oneof=development staging production"`
	Version       string              `yaml:"version" mapstructure:"version"`
	Logging       logger.Config       `yaml:"logging" mapstructure:"logging" validate:"-"`
	Pipeline      PipelineConfig      `yaml:"pipeline" mapstructure:"pipeline"`
	Evaluation    EvaluationConfig    `yaml:"evaluation" mapstructure:"evaluation"`
	Selection     SelectionConfig     `yaml:"selection" mapstructure:"selection"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

// PipelineConfig locates the pipeline and the data it runs on.
type PipelineConfig struct {
	// Definition is a YAML definition file; it wins over Expression.
	Definition string `yaml:"definition" mapstructure:"definition"`
	Expression string `yaml:"expression" mapstructure:"expression"`
	// Data is a CSV file; empty means the built-in iris-like sample.
	Data        string   `yaml:"data" mapstructure:"data"`
	Target      string   `yaml:"target" mapstructure:"target"`
	Categorical []string `yaml:"categorical" mapstructure:"categorical"`
}

// EvaluationConfig controls cross-validation.
type EvaluationConfig struct {
	Metric      string `yaml:"metric" mapstructure:"metric"`
	Folds       int    `yaml:"folds" mapstructure:"folds" validate:"gte=2"`
	Shuffle     bool   `yaml:"shuffle" mapstructure:"shuffle"`
	Seed        int64  `yaml:"seed" mapstructure:"seed"`
	MaxParallel int    `yaml:"max_parallel" mapstructure:"max_parallel" validate:"gte=0"`
}

// SelectionConfig controls how "*" selections are resolved.
type SelectionConfig struct {
	Mode string `yaml:"mode" mapstructure:"mode" validate:"oneof=best vote stack"`
	// Meta is an expression for the stack meta-learner.
	Meta         string `yaml:"meta" mapstructure:"meta"`
	Task         string `yaml:"task" mapstructure:"task" validate:"omitempty,oneof=classification regression"`
	KeepOriginal bool   `yaml:"keep_original" mapstructure:"keep_original"`
}

// ObservabilityConfig enables OTLP export of traces and metrics.
type ObservabilityConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint" validate:"required_if=Enabled true,omitempty,hostname_port"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "mlkit"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Version == "" {
		c.Version = version.Get().Short()
	}
	c.Logging.ApplyDefaults()

	if c.Pipeline.Definition == "" && c.Pipeline.Expression == "" {
		c.Pipeline.Expression = DefaultExpression
	}
	if c.Pipeline.Target == "" {
		c.Pipeline.Target = "species"
	}

	if c.Evaluation.Folds == 0 {
		c.Evaluation.Folds = crossval.DefaultFolds
	}
	if c.Evaluation.Metric == "" {
		c.Evaluation.Metric = "accuracy"
	}
	if c.Selection.Mode == "" {
		c.Selection.Mode = pipeline.ModeBest
	}

	if c.Observability.Enabled && c.Observability.Endpoint == "" {
		c.Observability.Endpoint = "localhost:4318"
	}
	if c.Observability.Enabled && c.Observability.SampleRate == 0 {
		c.Observability.SampleRate = 1.0
	}
}

// Validate checks struct tags, the logging block and the metric name.
// Failures are INVALID_INPUT AppErrors listing the offending fields.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return errors.Validation(err.Error()).WithCause(err)
	}
	if _, err := crossval.MetricByName(c.Evaluation.Metric); err != nil {
		return errors.Validation("evaluation.metric: unknown metric " + c.Evaluation.Metric).WithCause(err)
	}
	return nil
}

// SelectConfig converts the evaluation and selection blocks for the parser.
func (c *Config) SelectConfig() pipeline.SelectConfig {
	return pipeline.SelectConfig{
		Mode: c.Selection.Mode,
		Config: ensemble.Config{
			MetricName:   c.Evaluation.Metric,
			Folds:        c.Evaluation.Folds,
			Shuffle:      c.Evaluation.Shuffle,
			Seed:         c.Evaluation.Seed,
			MaxParallel:  c.Evaluation.MaxParallel,
			Task:         c.Selection.Task,
			KeepOriginal: c.Selection.KeepOriginal,
		},
	}
}

// TracerConfig converts the observability block.
func (c *Config) TracerConfig() *observability.TracerConfig {
	tc := observability.DefaultTracerConfig(c.Name)
	tc.Environment = c.Environment
	tc.Endpoint = c.Observability.Endpoint
	tc.Insecure = c.Observability.Insecure
	tc.SampleRate = c.Observability.SampleRate
	if c.Version != "" {
		tc.ServiceVersion = c.Version
	}
	return &tc
}

// MeterConfig converts the observability block.
func (c *Config) MeterConfig() *observability.MeterConfig {
	mc := observability.DefaultMeterConfig(c.Name)
	mc.Environment = c.Environment
	mc.Endpoint = c.Observability.Endpoint
	mc.Insecure = c.Observability.Insecure
	if c.Version != "" {
		mc.ServiceVersion = c.Version
	}
	return &mc
}

// Load loads, defaults and validates the configuration for name.
func Load(name string, opts ...LoaderOption) (*Config, error) {
	var cfg Config
	if err := LoadConfig(name, &cfg, opts...); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = name
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
