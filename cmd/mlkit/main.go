// Command mlkit builds a pipeline from an expression or a definition file
// and explains it, cross-validates it, or fits it on a data set.
//
//	mlkit -expr "numeric |> scale |> (knn * tree)" cv
//	mlkit -def iris.yaml -format json explain
package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/mlkit/config"
	"github.com/kbukum/mlkit/crossval"
	"github.com/kbukum/mlkit/datasets"
	"github.com/kbukum/mlkit/errors"
	"github.com/kbukum/mlkit/frame"
	"github.com/kbukum/mlkit/logger"
	"github.com/kbukum/mlkit/observability"
	"github.com/kbukum/mlkit/pipeline"
	"github.com/kbukum/mlkit/stage"
	"github.com/kbukum/mlkit/version"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const irisPerClass = 50

var commands = map[string]string{
	"explain": "print the stage tree",
	"cv":      "cross-validate the pipeline",
	"fit":     "fit on all rows and report the training score",
	"version": "print build information",
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return runWithArgs(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

type flags struct {
	configFile string
	envFile    string
	expr       string
	def        string
	data       string
	target     string
	format     string
	metric     string
	mode       string
	folds      int
	parallel   int
	seed       int64
	shuffle    bool
	verbose    bool
}

func runWithArgs(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mlkit", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var f flags
	fs.StringVar(&f.configFile, "config", "", "path to the config file")
	fs.StringVar(&f.envFile, "env", "", "path to a .env file")
	fs.StringVar(&f.expr, "expr", "", "pipeline expression")
	fs.StringVar(&f.def, "def", "", "pipeline definition file (YAML)")
	fs.StringVar(&f.data, "data", "", "CSV data file; empty uses the built-in iris sample")
	fs.StringVar(&f.target, "target", "", "target column in the CSV file")
	fs.StringVar(&f.format, "format", "text", "output format: text, json or yaml")
	fs.StringVar(&f.metric, "metric", "", "scoring metric ("+strings.Join(crossval.MetricNames(), ", ")+")")
	fs.StringVar(&f.mode, "mode", "", "selection mode for '*': best, vote or stack")
	fs.IntVar(&f.folds, "folds", 0, "number of cross-validation folds")
	fs.IntVar(&f.parallel, "parallel", 0, "maximum folds or members run at once")
	fs.Int64Var(&f.seed, "seed", 0, "shuffle and sample seed")
	fs.BoolVar(&f.shuffle, "shuffle", false, "shuffle rows before splitting into folds")
	fs.BoolVar(&f.verbose, "v", false, "debug logging")

	var usageErr error
	fs.Usage = func() {
		usageErr = stderrors.Join(
			usageErr,
			writef(stderr, "Usage: mlkit [options] <command>\n\n"),
			writeln(stderr, "Commands:"),
			writeln(stderr, "  explain  "+commands["explain"]),
			writeln(stderr, "  cv       "+commands["cv"]),
			writeln(stderr, "  fit      "+commands["fit"]),
			writeln(stderr, "  version  "+commands["version"]),
			writeln(stderr),
			writeln(stderr, "Options:"),
		)
		fs.PrintDefaults()
	}
	usage := func(msg string) int {
		if err := writeln(stderr, "error: "+msg); err != nil {
			return exitError
		}
		fs.Usage()
		if usageErr != nil {
			return exitError
		}
		return exitUsage
	}

	if err := fs.Parse(args); err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() != 1 {
		return usage("exactly one command is required")
	}
	cmd := fs.Arg(0)
	if _, ok := commands[cmd]; !ok {
		return usage(fmt.Sprintf("unknown command %q", cmd))
	}
	switch f.format {
	case "text", "json", "yaml":
	default:
		return usage(fmt.Sprintf("unknown format %q", f.format))
	}
	if cmd == "version" {
		return printVersion(stdout, stderr, f.format)
	}

	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	cfg, err := loadConfig(f, set)
	if err != nil {
		return fail(stdout, stderr, f.format, err)
	}

	base := logger.NewWithWriter(&cfg.Logging, cfg.Name, stderr)
	logger.SetGlobalLogger(base)
	logger.RegisterDefaults("cli")

	a := &app{cfg: cfg, base: base, log: logger.Get("cli"), format: f.format, stdout: stdout}
	shutdown, err := a.initObservability(ctx)
	if err != nil {
		return fail(stdout, stderr, f.format, err)
	}
	defer shutdown()

	if err := a.execute(ctx, cmd); err != nil {
		return fail(stdout, stderr, f.format, err)
	}
	return exitOK
}

// loadConfig reads the config files and lays explicitly set flags on top.
func loadConfig(f flags, set map[string]bool) (*config.Config, error) {
	var opts []config.LoaderOption
	if f.configFile != "" {
		opts = append(opts, config.WithConfigFile(f.configFile))
	}
	if f.envFile != "" {
		opts = append(opts, config.WithEnvFile(f.envFile))
	}
	cfg, err := config.Load("mlkit", opts...)
	if err != nil {
		return nil, err
	}

	if set["expr"] {
		cfg.Pipeline.Expression = f.expr
		cfg.Pipeline.Definition = ""
	}
	if set["def"] {
		cfg.Pipeline.Definition = f.def
	}
	if set["data"] {
		cfg.Pipeline.Data = f.data
	}
	if set["target"] {
		cfg.Pipeline.Target = f.target
	}
	if set["metric"] {
		cfg.Evaluation.Metric = f.metric
	}
	if set["mode"] {
		cfg.Selection.Mode = f.mode
	}
	if set["folds"] {
		cfg.Evaluation.Folds = f.folds
	}
	if set["parallel"] {
		cfg.Evaluation.MaxParallel = f.parallel
	}
	if set["seed"] {
		cfg.Evaluation.Seed = f.seed
	}
	if set["shuffle"] {
		cfg.Evaluation.Shuffle = f.shuffle
	}
	if f.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app carries one command run. base goes to stages and cross-validation,
// which tag their own component; log is the registered "cli" logger.
type app struct {
	cfg     *config.Config
	base    *logger.Logger
	log     *logger.Logger
	metrics *observability.Metrics
	format  string
	stdout  io.Writer
}

func (a *app) initObservability(ctx context.Context) (func(), error) {
	if !a.cfg.Observability.Enabled {
		return func() {}, nil
	}
	tp, err := observability.InitTracer(ctx, a.cfg.TracerConfig())
	if err != nil {
		return nil, errors.Internal(err)
	}
	mp, err := observability.InitMeter(ctx, a.cfg.MeterConfig())
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, errors.Internal(err)
	}
	a.metrics, err = observability.NewMetrics(observability.Meter(a.cfg.Name))
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, errors.Internal(err)
	}
	return func() {
		// ctx may already be cancelled by an interrupt; flush regardless.
		bg := context.WithoutCancel(ctx)
		if err := mp.Shutdown(bg); err != nil {
			a.log.Warn("meter shutdown failed", logger.ErrorFields("shutdown", err))
		}
		if err := tp.Shutdown(bg); err != nil {
			a.log.Warn("tracer shutdown failed", logger.ErrorFields("shutdown", err))
		}
	}, nil
}

func (a *app) execute(ctx context.Context, cmd string) error {
	root, err := a.build()
	if err != nil {
		return err
	}
	a.log.Debug("pipeline built", logger.Fields(logger.FieldStage, root.Name(), "command", cmd))

	if cmd == "explain" {
		return a.explain(root)
	}

	x, y, err := a.loadData()
	if err != nil {
		return err
	}
	metric, err := crossval.MetricByName(a.cfg.Evaluation.Metric)
	if err != nil {
		return err
	}
	root = a.instrument(root)

	if cmd == "cv" {
		return a.crossValidate(ctx, root, x, y, metric)
	}
	return a.fit(ctx, root, x, y, metric)
}

func (a *app) build() (stage.Stage, error) {
	p := a.cfg.Pipeline
	if p.Definition != "" {
		def, err := pipeline.LoadDefinition(p.Definition)
		if err != nil {
			return nil, err
		}
		return def.Build(nil, pipeline.WithLogger(a.base))
	}

	sc := a.cfg.SelectConfig()
	if a.cfg.Selection.Meta != "" {
		meta, err := pipeline.Parse(a.cfg.Selection.Meta, nil)
		if err != nil {
			return nil, err
		}
		sc.Meta = meta
	}
	return pipeline.Parse(p.Expression, nil,
		pipeline.WithSelect(sc),
		pipeline.WithMaxParallel(a.cfg.Evaluation.MaxParallel),
		pipeline.WithLogger(a.base),
	)
}

// instrument wraps the root stage with logging and, when exporting, with
// tracing and metrics.
func (a *app) instrument(s stage.Stage) stage.Stage {
	s = stage.WithLogging(s, a.base)
	if a.cfg.Observability.Enabled {
		s = stage.WithTracing(s, a.cfg.Name)
		s = stage.WithMetrics(s, a.metrics)
	}
	return s
}

func (a *app) loadData() (*frame.Frame, frame.Series, error) {
	p := a.cfg.Pipeline
	if p.Data == "" {
		x, y := datasets.Iris(irisPerClass, uint64(a.cfg.Evaluation.Seed))
		return x, y, nil
	}
	file, err := os.Open(p.Data)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, frame.Series{}, errors.NotFound("data file", p.Data)
		}
		return nil, frame.Series{}, errors.Internal(err)
	}
	defer file.Close()

	f, err := frame.ReadCSV(file, frame.CSVOptions{Categorical: p.Categorical})
	if err != nil {
		return nil, frame.Series{}, err
	}
	return frame.SplitTarget(f, p.Target)
}

func (a *app) explain(root stage.Stage) error {
	if a.format == "text" {
		return writef(a.stdout, "%s", stage.Explain(root))
	}
	return a.encode(stage.Describe(root))
}

type cvReport struct {
	crossval.Result `yaml:",inline"`

	Metric string `json:"metric" yaml:"metric"`
	Folds  int    `json:"folds" yaml:"folds"`
}

func (a *app) crossValidate(ctx context.Context, root stage.Stage, x *frame.Frame, y frame.Series, metric crossval.Metric) error {
	res, err := crossval.CrossValidate(ctx, root, x, y, metric, crossval.Options{
		Folds:       a.cfg.Evaluation.Folds,
		Shuffle:     a.cfg.Evaluation.Shuffle,
		Seed:        a.cfg.Evaluation.Seed,
		MaxParallel: a.cfg.Evaluation.MaxParallel,
		Logger:      a.base,
		Metrics:     a.metrics,
	})
	if err != nil {
		return err
	}
	if a.format != "text" {
		return a.encode(cvReport{Metric: a.cfg.Evaluation.Metric, Folds: len(res.Scores), Result: *res})
	}

	scores := make([]string, len(res.Scores))
	for i, s := range res.Scores {
		scores[i] = fmt.Sprintf("%.2f", s)
	}
	return stderrors.Join(
		writef(a.stdout, "%s: %s mean %.2f std %.2f over %d folds\n", res.Stage, a.cfg.Evaluation.Metric, res.Mean, res.StdDev, len(res.Scores)),
		writef(a.stdout, "scores: %s\n", strings.Join(scores, " ")),
	)
}

type fitReport struct {
	Stage  string     `json:"stage" yaml:"stage"`
	Rows   int        `json:"rows" yaml:"rows"`
	Metric string     `json:"metric" yaml:"metric"`
	Score  float64    `json:"score" yaml:"score"`
	Tree   stage.Tree `json:"tree" yaml:"tree"`
}

func (a *app) fit(ctx context.Context, root stage.Stage, x *frame.Frame, y frame.Series, metric crossval.Metric) error {
	if err := root.Fit(ctx, x, y); err != nil {
		return err
	}
	pred, err := stage.Predict(ctx, root, x)
	if err != nil {
		return err
	}
	score, err := crossval.Score(metric, pred, y)
	if err != nil {
		return err
	}

	r := fitReport{Stage: root.Name(), Rows: x.Rows(), Metric: a.cfg.Evaluation.Metric, Score: score, Tree: stage.Describe(root)}
	if a.format != "text" {
		return a.encode(r)
	}
	return stderrors.Join(
		writef(a.stdout, "%s: fitted on %d rows, training %s %.2f\n", r.Stage, r.Rows, r.Metric, r.Score),
		writef(a.stdout, "%s", stage.Explain(root)),
	)
}

func printVersion(stdout, stderr io.Writer, format string) int {
	info := version.Get()
	var err error
	if format == "text" {
		err = writeln(stdout, info.String())
	} else {
		err = (&app{format: format, stdout: stdout}).encode(info)
	}
	if err != nil {
		return fail(stdout, stderr, format, err)
	}
	return exitOK
}

func (a *app) encode(v any) error {
	if a.format == "yaml" {
		enc := yaml.NewEncoder(a.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Internal(err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Internal(err)
	}
	return nil
}

// fail reports err and returns the error exit code. With -format json the
// error response goes to stdout so callers can parse it.
func fail(stdout, stderr io.Writer, format string, err error) int {
	if format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(errors.ResponseFor(err))
		return exitError
	}
	_ = writef(stderr, "error: %v\n", err)
	return exitError
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}
