package tinyesn

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"tinyesn/internal/benchmark"
	"tinyesn/internal/esn"
	"tinyesn/internal/experiment"
	"tinyesn/internal/model"
	"tinyesn/internal/stats"
	"tinyesn/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "tinyesn.db"
	defaultBenchmark    = "narma10"
	defaultRunsLimit    = 20

	// createdAtLayout is RFC 3339 with fixed nanoseconds so timestamps
	// also sort as strings.
	createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

const (
	KindRun       = "run"
	KindCompare   = "compare"
	KindBehaviour = "behaviour"
)

var ErrRunNotFound = errors.New("run not found")

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       logrus.FieldLogger
}

type Client struct {
	mu      sync.Mutex
	store   storage.Store
	started bool
	log     logrus.FieldLogger

	artifactsDir string
	exportsDir   string
}

// BenchmarkRequest names a benchmark and its data source.
type BenchmarkRequest struct {
	Name    string
	CSVPath string
	Column  int
	Period  int
}

type RunRequest struct {
	Benchmark BenchmarkRequest
	Params    experiment.Params
	Trials    int
	Size      int
	Seed      int64
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Results      []experiment.TrialResult
	Summary      stats.TrialSummary
}

type CompareRequest struct {
	Benchmark  BenchmarkRequest
	BenchmarkB *BenchmarkRequest
	ParamsA    experiment.Params
	ParamsB    experiment.Params
	Trials     int
	Size       int
	Seed       int64
}

type CompareSummary struct {
	RunID        string
	ArtifactsDir string
	A            stats.TrialSummary
	B            stats.TrialSummary
}

type BehaviourRequest struct {
	Benchmark BenchmarkRequest
	Params    experiment.Params
	Size      int
	Seed      int64
}

type BehaviourSummary struct {
	RunID        string
	ArtifactsDir string
	Result       experiment.TrialResult
	Diagnostics  esn.Diagnostics
}

type RunItem struct {
	RunID         string
	Kind          string
	Benchmark     string
	Trials        int
	Seed          int64
	MedianTesting float64
	CreatedAtUTC  string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		log:          log,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureStore(ctx)
	return err
}

func (c *Client) ensureStore(ctx context.Context) (storage.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return c.store, nil
	}
	if err := c.store.Init(ctx); err != nil {
		return nil, err
	}
	c.started = true
	return c.store, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Run executes a batch of trials of one configuration and persists the
// results, artifacts and index entry under a new run id.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	req.Trials, req.Size, req.Seed = defaultBatch(req.Trials, req.Size, req.Seed)
	bench, err := c.newBenchmark(req.Benchmark, req.Params.Mode, req.Seed)
	if err != nil {
		return RunSummary{}, err
	}

	runID := uuid.NewString()
	log := c.log.WithFields(logrus.Fields{"run_id": runID, "benchmark": bench.Name()})
	log.WithFields(logrus.Fields{"trials": req.Trials, "size": req.Size, "seed": req.Seed}).Info("starting run")

	results, err := experiment.RunMany(ctx, req.Params, bench, experiment.RunOptions{
		Trials: req.Trials,
		Size:   req.Size,
		Seed:   req.Seed,
		Logger: log,
	})
	if err != nil {
		return RunSummary{}, err
	}
	summary, err := stats.SummarizeTrials(experiment.TrainingNRMSEs(results), experiment.TestingNRMSEs(results))
	if err != nil {
		return RunSummary{}, err
	}

	artifacts := stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:        runID,
			Kind:         KindRun,
			Benchmark:    bench.Name(),
			Trials:       req.Trials,
			Size:         req.Size,
			Seed:         req.Seed,
			Params:       req.Params,
			CreatedAtUTC: createdAt(),
		},
		Results: results,
		Summary: summary,
	}
	runDir, err := c.persist(ctx, artifacts)
	if err != nil {
		return RunSummary{}, err
	}

	log.WithFields(logrus.Fields{
		"median_training_nrmse": summary.Training.Median,
		"median_testing_nrmse":  summary.Testing.Median,
	}).Info("run complete")
	return RunSummary{
		RunID:        runID,
		ArtifactsDir: filepath.Clean(runDir),
		Results:      results,
		Summary:      summary,
	}, nil
}

// Compare runs two configurations with shared trial seeds.
func (c *Client) Compare(ctx context.Context, req CompareRequest) (CompareSummary, error) {
	req.Trials, req.Size, req.Seed = defaultBatch(req.Trials, req.Size, req.Seed)
	benchA, err := c.newBenchmark(req.Benchmark, req.ParamsA.Mode, req.Seed)
	if err != nil {
		return CompareSummary{}, err
	}
	specB := req.Benchmark
	if req.BenchmarkB != nil {
		specB = *req.BenchmarkB
	}
	benchB, err := c.newBenchmark(specB, req.ParamsB.Mode, req.Seed)
	if err != nil {
		return CompareSummary{}, err
	}

	runID := uuid.NewString()
	log := c.log.WithFields(logrus.Fields{"run_id": runID, "benchmark": benchA.Name(), "benchmark_b": benchB.Name()})
	log.WithFields(logrus.Fields{"trials": req.Trials, "size": req.Size, "seed": req.Seed}).Info("starting comparison")

	cmp, err := experiment.Compare(ctx, req.ParamsA, req.ParamsB, benchA, benchB, experiment.RunOptions{
		Trials: req.Trials,
		Size:   req.Size,
		Seed:   req.Seed,
		Logger: log,
	})
	if err != nil {
		return CompareSummary{}, err
	}
	summaryA, err := stats.SummarizeTrials(experiment.TrainingNRMSEs(cmp.A), experiment.TestingNRMSEs(cmp.A))
	if err != nil {
		return CompareSummary{}, errors.Wrap(err, "summarize a")
	}
	summaryB, err := stats.SummarizeTrials(experiment.TrainingNRMSEs(cmp.B), experiment.TestingNRMSEs(cmp.B))
	if err != nil {
		return CompareSummary{}, errors.Wrap(err, "summarize b")
	}

	paramsB := req.ParamsB
	artifacts := stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:        runID,
			Kind:         KindCompare,
			Benchmark:    benchA.Name(),
			BenchmarkB:   benchB.Name(),
			Trials:       req.Trials,
			Size:         req.Size,
			Seed:         req.Seed,
			Params:       req.ParamsA,
			ParamsB:      &paramsB,
			CreatedAtUTC: createdAt(),
		},
		Results:  cmp.A,
		ResultsB: cmp.B,
		Summary:  summaryA,
		SummaryB: &summaryB,
	}
	runDir, err := c.persist(ctx, artifacts)
	if err != nil {
		return CompareSummary{}, err
	}

	log.WithFields(logrus.Fields{
		"median_testing_nrmse_a": summaryA.Testing.Median,
		"median_testing_nrmse_b": summaryB.Testing.Median,
	}).Info("comparison complete")
	return CompareSummary{
		RunID:        runID,
		ArtifactsDir: filepath.Clean(runDir),
		A:            summaryA,
		B:            summaryB,
	}, nil
}

// Behaviour runs one trial and writes its target and output series.
func (c *Client) Behaviour(ctx context.Context, req BehaviourRequest) (BehaviourSummary, error) {
	if req.Size <= 0 {
		req.Size = experiment.DefaultBehaviourSize
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}
	if err := ctx.Err(); err != nil {
		return BehaviourSummary{}, err
	}
	bench, err := c.newBenchmark(req.Benchmark, req.Params.Mode, req.Seed)
	if err != nil {
		return BehaviourSummary{}, err
	}

	runID := uuid.NewString()
	behaviour, err := experiment.RunBehaviour(req.Params, bench, req.Size, req.Seed)
	if err != nil {
		return BehaviourSummary{}, err
	}
	results := []experiment.TrialResult{behaviour.Result}
	summary, err := stats.SummarizeTrials(experiment.TrainingNRMSEs(results), experiment.TestingNRMSEs(results))
	if err != nil {
		return BehaviourSummary{}, err
	}

	artifacts := stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:        runID,
			Kind:         KindBehaviour,
			Benchmark:    bench.Name(),
			Trials:       1,
			Size:         req.Size,
			Seed:         req.Seed,
			Params:       req.Params,
			CreatedAtUTC: createdAt(),
		},
		Results: results,
		Summary: summary,
	}
	runDir, err := c.persist(ctx, artifacts)
	if err != nil {
		return BehaviourSummary{}, err
	}
	if err := stats.WriteBehaviourSeries(runDir, behaviour); err != nil {
		return BehaviourSummary{}, err
	}

	c.log.WithFields(logrus.Fields{
		"run_id":         runID,
		"benchmark":      bench.Name(),
		"training_nrmse": behaviour.Result.TrainingNRMSE,
		"testing_nrmse":  behaviour.Result.TestingNRMSE,
	}).Info("behaviour complete")
	return BehaviourSummary{
		RunID:        runID,
		ArtifactsDir: filepath.Clean(runDir),
		Result:       behaviour.Result,
		Diagnostics:  behaviour.Diagnostics,
	}, nil
}

// Diagnostics builds a reservoir from params without driving it and
// reports its spectral heuristics.
func (c *Client) Diagnostics(_ context.Context, params experiment.Params, seed int64) (esn.Diagnostics, error) {
	cfg, err := params.Config()
	if err != nil {
		return esn.Diagnostics{}, err
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	reservoir, err := esn.New(cfg, esn.WithSeed(seed))
	if err != nil {
		return esn.Diagnostics{}, err
	}
	return reservoir.Diagnostics()
}

// Runs lists persisted runs newest first from the artifact index.
func (c *Client) Runs(_ context.Context, limit int) ([]RunItem, error) {
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:         e.RunID,
			Kind:          e.Kind,
			Benchmark:     e.Benchmark,
			Trials:        e.Trials,
			Seed:          e.Seed,
			MedianTesting: e.MedianTesting,
			CreatedAtUTC:  e.CreatedAtUTC,
		})
	}
	return out, nil
}

// Show returns the stored record of runID. Runs missing from the store,
// such as those written by an earlier process with the memory backend,
// are rebuilt from their artifacts.
func (c *Client) Show(ctx context.Context, runID string) (model.RunRecord, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return model.RunRecord{}, errors.New("run id is required")
	}
	store, err := c.ensureStore(ctx)
	if err != nil {
		return model.RunRecord{}, err
	}
	record, ok, err := store.GetRun(ctx, runID)
	if err != nil {
		return model.RunRecord{}, err
	}
	if ok {
		return record, nil
	}

	artifacts, ok, err := stats.ReadRunArtifacts(c.artifactsDir, runID)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		return model.RunRecord{}, errors.Wrapf(ErrRunNotFound, "%s", runID)
	}
	return recordFromArtifacts(artifacts), nil
}

// Delete removes runID from the store and its artifacts from disk.
func (c *Client) Delete(ctx context.Context, runID string) error {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return errors.New("run id is required")
	}
	store, err := c.ensureStore(ctx)
	if err != nil {
		return err
	}
	fromStore, err := store.DeleteRun(ctx, runID)
	if err != nil {
		return err
	}
	fromDisk, err := stats.RemoveRunArtifacts(c.artifactsDir, runID)
	if err != nil {
		return err
	}
	if !fromStore && !fromDisk {
		return errors.Wrapf(ErrRunNotFound, "%s", runID)
	}
	c.log.WithField("run_id", runID).Info("run deleted")
	return nil
}

// Export copies the artifacts of runID, or of the newest run when latest
// is set, into outDir.
func (c *Client) Export(_ context.Context, runID string, latest bool, outDir string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return "", errors.New("export requires run id or latest")
	}
	if outDir == "" {
		outDir = c.exportsDir
	}
	if latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available to export")
		}
		runID = entries[0].RunID
	}
	dir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, outDir)
	if err != nil {
		return "", err
	}
	return filepath.Clean(dir), nil
}

func (c *Client) persist(ctx context.Context, artifacts stats.RunArtifacts) (string, error) {
	store, err := c.ensureStore(ctx)
	if err != nil {
		return "", err
	}
	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, artifacts)
	if err != nil {
		return "", err
	}
	cfg := artifacts.Config
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:         cfg.RunID,
		Kind:          cfg.Kind,
		Benchmark:     cfg.Benchmark,
		Trials:        cfg.Trials,
		Seed:          cfg.Seed,
		MedianTesting: artifacts.Summary.Testing.Median,
		CreatedAtUTC:  cfg.CreatedAtUTC,
	}); err != nil {
		return "", err
	}
	if err := store.SaveRun(ctx, recordFromArtifacts(artifacts)); err != nil {
		return "", errors.Wrapf(err, "save run %s", cfg.RunID)
	}
	return runDir, nil
}

func (c *Client) newBenchmark(req BenchmarkRequest, mode esn.Mode, seed int64) (benchmark.Benchmark, error) {
	name := req.Name
	if strings.TrimSpace(name) == "" {
		name = defaultBenchmark
	}
	return benchmark.New(name, benchmark.Options{
		Mode:    mode,
		Seed:    seed,
		CSVPath: req.CSVPath,
		Column:  req.Column,
		Period:  req.Period,
	})
}

func defaultBatch(trials, size int, seed int64) (int, int, int64) {
	if trials <= 0 {
		trials = experiment.DefaultTrials
	}
	if size <= 0 {
		size = experiment.DefaultTrialSize
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return trials, size, seed
}

func createdAt() string {
	return time.Now().UTC().Format(createdAtLayout)
}
