package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"tinyesn/internal/benchmark"
	"tinyesn/internal/esn"
	"tinyesn/internal/experiment"
	"tinyesn/internal/nn"
	"tinyesn/internal/stats"
	"tinyesn/internal/storage"
	tinyapi "tinyesn/pkg/tinyesn"
)

const (
	artifactsDir = "runs"
	exportsDir   = "exports"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:], out)
	case "compare":
		return runCompare(ctx, args[1:], out)
	case "behaviour":
		return runBehaviour(ctx, args[1:], out)
	case "diagnostics":
		return runDiagnostics(ctx, args[1:], out)
	case "runs":
		return runRuns(ctx, args[1:], out)
	case "show":
		return runShow(ctx, args[1:], out)
	case "delete":
		return runDelete(ctx, args[1:], out)
	case "export":
		return runExport(ctx, args[1:], out)
	case "benchmarks":
		for _, name := range benchmark.Names() {
			fmt.Fprintln(out, name)
		}
		return nil
	case "activations":
		for _, name := range nn.ListActivations() {
			fmt.Fprintln(out, name)
		}
		return nil
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runRun(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	common := registerCommonFlags(fs)
	batch := registerBatchFlags(fs, experiment.DefaultTrialSize)
	params := registerParamFlags(fs, "", experiment.DefaultParams())
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := resolveConfig(fs, batch, params, nil)
	if err != nil {
		return err
	}
	client, err := common.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, tinyapi.RunRequest{
		Benchmark: cfg.Benchmark,
		Params:    cfg.Params,
		Trials:    cfg.Trials,
		Size:      cfg.Size,
		Seed:      cfg.Seed,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(out, summary)
	}

	fmt.Fprintf(out, "run_id=%s benchmark=%s trials=%d artifacts=%s\n", summary.RunID, cfg.Benchmark.Name, len(summary.Results), summary.ArtifactsDir)
	printSummary(out, "", summary.Summary.Training, summary.Summary.Testing)
	return nil
}

func runCompare(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	common := registerCommonFlags(fs)
	batch := registerBatchFlags(fs, experiment.DefaultTrialSize)
	benchmarkB := fs.String("benchmark-b", "", "benchmark for the second configuration (defaults to -benchmark)")
	defaults := experiment.DefaultParams()
	paramsA := registerParamFlags(fs, "", defaults)
	paramsB := registerParamFlags(fs, "b-", defaults)
	jsonOut := fs.Bool("json", false, "emit comparison summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := resolveConfig(fs, batch, paramsA, paramsB)
	if err != nil {
		return err
	}
	req := tinyapi.CompareRequest{
		Benchmark:  cfg.Benchmark,
		BenchmarkB: cfg.BenchmarkB,
		ParamsA:    cfg.Params,
		ParamsB:    *cfg.ParamsB,
		Trials:     cfg.Trials,
		Size:       cfg.Size,
		Seed:       cfg.Seed,
	}
	if *benchmarkB != "" {
		b := cfg.Benchmark
		b.Name = *benchmarkB
		req.BenchmarkB = &b
	}

	client, err := common.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	cmp, err := client.Compare(ctx, req)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(out, cmp)
	}

	fmt.Fprintf(out, "run_id=%s trials=%d artifacts=%s\n", cmp.RunID, cfg.Trials, cmp.ArtifactsDir)
	printSummary(out, "a_", cmp.A.Training, cmp.A.Testing)
	printSummary(out, "b_", cmp.B.Training, cmp.B.Testing)
	return nil
}

func runBehaviour(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("behaviour", flag.ContinueOnError)
	common := registerCommonFlags(fs)
	batch := registerBatchFlags(fs, experiment.DefaultBehaviourSize)
	params := registerParamFlags(fs, "", experiment.DefaultParams())
	jsonOut := fs.Bool("json", false, "emit behaviour summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := resolveConfig(fs, batch, params, nil)
	if err != nil {
		return err
	}
	client, err := common.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	behaviour, err := client.Behaviour(ctx, tinyapi.BehaviourRequest{
		Benchmark: cfg.Benchmark,
		Params:    cfg.Params,
		Size:      cfg.Size,
		Seed:      cfg.Seed,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(out, behaviour)
	}

	fmt.Fprintf(out, "run_id=%s seed=%d artifacts=%s\n", behaviour.RunID, behaviour.Result.Seed, behaviour.ArtifactsDir)
	fmt.Fprintf(out, "training_nrmse=%.6f testing_nrmse=%.6f\n", behaviour.Result.TrainingNRMSE, behaviour.Result.TestingNRMSE)
	printDiagnostics(out, behaviour.Diagnostics)
	return nil
}

func runDiagnostics(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	params := registerParamFlags(fs, "", experiment.DefaultParams())
	configPath := fs.String("config", "", "optional run config JSON path")
	seed := fs.Int64("seed", 0, "rng seed (0 picks a time-based seed)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	set := setFlags(fs)

	cfg, err := loadOrDefaultFileConfig(*configPath)
	if err != nil {
		return err
	}
	if err := params.apply(&cfg.Params, set); err != nil {
		return err
	}
	if set["seed"] {
		cfg.Seed = *seed
	}

	client, err := tinyapi.New(tinyapi.Options{StoreKind: "memory", Logger: newLogger("warn", false)})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diag, err := client.Diagnostics(ctx, cfg.Params, cfg.Seed)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(out, diag)
	}
	printDiagnostics(out, diag)
	return nil
}

func runRuns(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	common := registerCommonFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := common.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, *limit)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(out, "run_id=%s kind=%s benchmark=%s trials=%d seed=%d median_testing_nrmse=%.6f created_at=%s\n",
			r.RunID, r.Kind, r.Benchmark, r.Trials, r.Seed, r.MedianTesting, r.CreatedAtUTC)
	}
	return nil
}

func runShow(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	common := registerCommonFlags(fs)
	runID := fs.String("run-id", "", "run id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("show requires --run-id")
	}

	client, err := common.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	record, err := client.Show(ctx, *runID)
	if err != nil {
		return err
	}
	return writeJSON(out, record)
}

func runDelete(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	common := registerCommonFlags(fs)
	runID := fs.String("run-id", "", "run id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("delete requires --run-id")
	}

	client, err := common.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Delete(ctx, *runID); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted run_id=%s\n", *runID)
	return nil
}

func runExport(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	common := registerCommonFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	toDir := fs.String("to", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := common.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	dir, err := client.Export(ctx, *runID, *latest, *toDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "exported to=%s\n", dir)
	return nil
}

type commonFlags struct {
	storeKind *string
	dbPath    *string
	outDir    *string
	logLevel  *string
	logJSON   *bool
}

func registerCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		storeKind: fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:    fs.String("db-path", "tinyesn.db", "sqlite database path"),
		outDir:    fs.String("out", artifactsDir, "run artifacts directory"),
		logLevel:  fs.String("log-level", "info", "log level: debug|info|warn|error"),
		logJSON:   fs.Bool("log-json", false, "emit logs as JSON"),
	}
}

func (c *commonFlags) client() (*tinyapi.Client, error) {
	level, err := logrus.ParseLevel(*c.logLevel)
	if err != nil {
		return nil, err
	}
	logger := newLogger(level.String(), *c.logJSON)
	return tinyapi.New(tinyapi.Options{
		StoreKind:    *c.storeKind,
		DBPath:       *c.dbPath,
		ArtifactsDir: *c.outDir,
		ExportsDir:   exportsDir,
		Logger:       logger,
	})
}

func newLogger(level string, jsonFormat bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if parsed, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(parsed)
	}
	if jsonFormat {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

type batchFlags struct {
	configPath *string
	benchmark  *string
	csvPath    *string
	column     *int
	period     *int
	trials     *int
	size       *int
	seed       *int64
}

func registerBatchFlags(fs *flag.FlagSet, defaultSize int) *batchFlags {
	return &batchFlags{
		configPath: fs.String("config", "", "optional run config JSON path"),
		benchmark:  fs.String("benchmark", "narma10", "benchmark name (see the benchmarks command)"),
		csvPath:    fs.String("csv", "", "csv path for file-backed series benchmarks"),
		column:     fs.Int("column", 0, "value column of the generic series benchmark"),
		period:     fs.Int("period", 0, "sine period in samples (0 uses the default)"),
		trials:     fs.Int("trials", experiment.DefaultTrials, "trial count"),
		size:       fs.Int("size", defaultSize, "samples drawn per trial"),
		seed:       fs.Int64("seed", 0, "base rng seed (0 picks a time-based seed)"),
	}
}

type paramFlags struct {
	prefix       string
	k            *int
	n            *int
	l            *int
	activation   *string
	mode         *string
	feedback     *bool
	topology     *string
	connectivity *float64
	inputNorm    *bool
	readout      *string
}

func registerParamFlags(fs *flag.FlagSet, prefix string, defaults experiment.Params) *paramFlags {
	return &paramFlags{
		prefix:       prefix,
		k:            fs.Int(prefix+"k", defaults.K, "input width"),
		n:            fs.Int(prefix+"n", defaults.N, "reservoir width"),
		l:            fs.Int(prefix+"l", defaults.L, "output width"),
		activation:   fs.String(prefix+"activation", defaults.Activation, "activation name (see the activations command)"),
		mode:         fs.String(prefix+"mode", string(defaults.Mode), "update mode: discretised|instantaneous"),
		feedback:     fs.Bool(prefix+"feedback", defaults.Feedback, "feed the output back into the reservoir"),
		topology:     fs.String(prefix+"topology", string(defaults.Topology), "topology: random|ring|lattice|torus|fully_connected"),
		connectivity: fs.Float64(prefix+"connectivity", defaults.Connectivity, "random topology connectivity in [0,1]"),
		inputNorm:    fs.Bool(prefix+"input-norm", defaults.InputNorm, "squash inputs with tanh"),
		readout:      fs.String(prefix+"readout", string(defaults.Readout), "readout solver: pinv|rls"),
	}
}

// apply overwrites the fields of p whose flags were set on the command line.
func (f *paramFlags) apply(p *experiment.Params, set map[string]bool) error {
	for name := range set {
		if !strings.HasPrefix(name, f.prefix) {
			continue
		}
		switch strings.TrimPrefix(name, f.prefix) {
		case "k":
			p.K = *f.k
		case "n":
			p.N = *f.n
		case "l":
			p.L = *f.l
		case "activation":
			p.Activation = *f.activation
		case "mode":
			mode, err := esn.ParseMode(*f.mode)
			if err != nil {
				return err
			}
			p.Mode = mode
		case "feedback":
			p.Feedback = *f.feedback
		case "topology":
			topology, err := esn.ParseTopology(*f.topology)
			if err != nil {
				return err
			}
			p.Topology = topology
		case "connectivity":
			p.Connectivity = *f.connectivity
		case "input-norm":
			p.InputNorm = *f.inputNorm
		case "readout":
			readout, err := esn.ParseReadout(*f.readout)
			if err != nil {
				return err
			}
			p.Readout = readout
		}
	}
	return nil
}

// resolveConfig layers the config file over the defaults and explicitly set
// flags over both. When paramsB is non-nil the second configuration starts
// from the first.
func resolveConfig(fs *flag.FlagSet, batch *batchFlags, paramsA, paramsB *paramFlags) (fileConfig, error) {
	set := setFlags(fs)
	base := defaultFileConfig()
	base.Size = *batch.size
	cfg := base
	if *batch.configPath != "" {
		loaded, err := loadFileConfig(*batch.configPath, base)
		if err != nil {
			return fileConfig{}, errors.Wrap(err, "load config")
		}
		cfg = loaded
	}

	if set["benchmark"] {
		cfg.Benchmark.Name = *batch.benchmark
	}
	if set["csv"] {
		cfg.Benchmark.CSVPath = *batch.csvPath
	}
	if set["column"] {
		cfg.Benchmark.Column = *batch.column
	}
	if set["period"] {
		cfg.Benchmark.Period = *batch.period
	}
	if set["trials"] {
		cfg.Trials = *batch.trials
	}
	if set["size"] {
		cfg.Size = *batch.size
	}
	if set["seed"] {
		cfg.Seed = *batch.seed
	}

	// The b- flags share the unprefixed names as suffixes, so A must only
	// see flags that do not start with the B prefix.
	setA := set
	if paramsB != nil {
		setA = make(map[string]bool, len(set))
		for name := range set {
			if !strings.HasPrefix(name, paramsB.prefix) {
				setA[name] = true
			}
		}
	}
	if err := paramsA.apply(&cfg.Params, setA); err != nil {
		return fileConfig{}, err
	}
	if paramsB != nil {
		b := cfg.Params
		if cfg.ParamsB != nil {
			b = *cfg.ParamsB
		}
		if err := paramsB.apply(&b, set); err != nil {
			return fileConfig{}, err
		}
		cfg.ParamsB = &b
	}
	return cfg, nil
}

func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

func printSummary(out io.Writer, prefix string, training, testing stats.BoxSummary) {
	printBox(out, prefix+"training", training)
	printBox(out, prefix+"testing", testing)
}

func printBox(out io.Writer, label string, box stats.BoxSummary) {
	fmt.Fprintf(out, "%s_nrmse median=%.6f q1=%.6f q3=%.6f min=%.6f max=%.6f mean=%.6f std=%.6f outliers=%d\n",
		label, box.Median, box.Q1, box.Q3, box.Min, box.Max, box.Mean, box.Std, box.Outliers)
}

func printDiagnostics(out io.Writer, diag esn.Diagnostics) {
	fmt.Fprintf(out, "spectral_radius=%.6f largest_singular_value=%.6f sufficient_echo_state=%t timestep=%d trained=%t\n",
		diag.SpectralRadius, diag.LargestSingularValue, diag.SufficientEchoState, diag.Timestep, diag.Trained)
}

func writeJSON(out io.Writer, value any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func usageError(msg string) error {
	return errors.Errorf("%s\nusage: esnctl <run|compare|behaviour|diagnostics|runs|show|delete|export|benchmarks|activations> [flags]", msg)
}
