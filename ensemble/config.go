package ensemble

import (
	"github.com/kbukum/mlkit/crossval"
	"github.com/kbukum/mlkit/errors"
	"github.com/kbukum/mlkit/learners"
	"github.com/kbukum/mlkit/logger"
	"github.com/kbukum/mlkit/stage"
	"github.com/kbukum/mlkit/validation"
)

// Config is shared by Vote, Stack and Best. Fields that do not apply to an
// ensemble are ignored by it.
type Config struct {
	// Name identifies the ensemble in errors, logs and explain output.
	Name string `mapstructure:"name"`
	// Metric scores folds for Best. When nil, MetricName is resolved.
	Metric     crossval.Metric `mapstructure:"-" validate:"-"`
	MetricName string          `mapstructure:"metric"`
	// Folds is k for the cross-validation used by Stack and Best.
	Folds   int   `mapstructure:"folds" validate:"gte=2"`
	Shuffle bool  `mapstructure:"shuffle"`
	Seed    int64 `mapstructure:"seed"`
	// MaxParallel bounds how many members are fit at once; 0 or 1 is sequential.
	MaxParallel int    `mapstructure:"max_parallel" validate:"gte=0"`
	Task        string `mapstructure:"task" validate:"omitempty,oneof=classification regression"`
	// Meta is the Stack meta-learner; nil means a decision tree.
	Meta stage.Stage `mapstructure:"-" validate:"-"`
	// KeepOriginal feeds the original features to the Stack meta-learner
	// alongside the member predictions.
	KeepOriginal bool           `mapstructure:"keep_original"`
	Logger       *logger.Logger `mapstructure:"-" validate:"-"`
}

// ApplyDefaults fills zero values: five folds, classification, and
// accuracy (neg_mse for regression).
func (c *Config) ApplyDefaults() {
	if c.Folds == 0 {
		c.Folds = crossval.DefaultFolds
	}
	if c.Task == "" {
		c.Task = string(learners.Classification)
	}
	if c.MetricName == "" && c.Metric == nil {
		if c.Task == string(learners.Regression) {
			c.MetricName = "neg_mse"
		} else {
			c.MetricName = "accuracy"
		}
	}
}

// Validate checks the config on behalf of the named ensemble.
func (c *Config) Validate(name string) error {
	if err := validation.StageConfig(name, c); err != nil {
		return err
	}
	if c.Metric == nil {
		if _, err := crossval.MetricByName(c.MetricName); err != nil {
			return errors.InvalidConfiguration(name, "unknown metric").WithCause(err)
		}
	}
	return nil
}

func (c *Config) metric() crossval.Metric {
	if c.Metric != nil {
		return c.Metric
	}
	m, _ := crossval.MetricByName(c.MetricName)
	return m
}

func (c *Config) task() learners.Task {
	t, _ := learners.ParseTask(c.Task)
	return t
}

func (c *Config) options() crossval.Options {
	return crossval.Options{
		Folds:   c.Folds,
		Shuffle: c.Shuffle,
		Seed:    c.Seed,
		Logger:  c.Logger,
	}
}

// clone copies the config with a fresh meta-learner.
func (c Config) clone() Config {
	if c.Meta != nil {
		c.Meta = c.Meta.Clone()
	}
	return c
}

func newConfig(cfg Config, name string) Config {
	if cfg.Name == "" {
		cfg.Name = name
	}
	cfg.ApplyDefaults()
	return cfg
}

func tooFew(name string, members, want int) error {
	return errors.InvalidConfiguration(name, "not enough members").
		WithDetail("members", members).WithDetail("min", want)
}
