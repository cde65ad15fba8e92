package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"tinyesn/internal/experiment"
)

const runIndexFile = "run_index.json"

const (
	configFile           = "config.json"
	nrmseFile            = "nrmse.json"
	resultsFile          = "results.json"
	summaryFile          = "summary.json"
	behaviourTrainingCSV = "behaviour_training.csv"
	behaviourTestingCSV  = "behaviour_testing.csv"
)

type RunConfig struct {
	RunID        string             `json:"run_id"`
	Kind         string             `json:"kind"`
	Benchmark    string             `json:"benchmark"`
	BenchmarkB   string             `json:"benchmark_b,omitempty"`
	Trials       int                `json:"trials"`
	Size         int                `json:"size"`
	Seed         int64              `json:"seed"`
	Params       experiment.Params  `json:"params"`
	ParamsB      *experiment.Params `json:"params_b,omitempty"`
	CreatedAtUTC string             `json:"created_at_utc"`
}

// RunArtifacts is everything written for one run. Results holds the
// trials of Params; ResultsB holds those of ParamsB for comparisons.
type RunArtifacts struct {
	Config   RunConfig                `json:"config"`
	Results  []experiment.TrialResult `json:"results"`
	ResultsB []experiment.TrialResult `json:"results_b,omitempty"`
	Summary  TrialSummary             `json:"summary"`
	SummaryB *TrialSummary            `json:"summary_b,omitempty"`
}

type RunIndexEntry struct {
	RunID         string  `json:"run_id"`
	Kind          string  `json:"kind"`
	Benchmark     string  `json:"benchmark"`
	Trials        int     `json:"trials"`
	Seed          int64   `json:"seed"`
	MedianTesting float64 `json:"median_testing_nrmse"`
	CreatedAtUTC  string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", errors.New("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	nrmse := map[string]any{
		"training": experiment.TrainingNRMSEs(artifacts.Results),
		"testing":  experiment.TestingNRMSEs(artifacts.Results),
	}
	if len(artifacts.ResultsB) > 0 {
		nrmse["training_b"] = experiment.TrainingNRMSEs(artifacts.ResultsB)
		nrmse["testing_b"] = experiment.TestingNRMSEs(artifacts.ResultsB)
	}
	if err := writeJSON(filepath.Join(runDir, nrmseFile), nrmse); err != nil {
		return "", err
	}
	results := map[string]any{"a": artifacts.Results}
	if len(artifacts.ResultsB) > 0 {
		results["b"] = artifacts.ResultsB
	}
	if err := writeJSON(filepath.Join(runDir, resultsFile), results); err != nil {
		return "", err
	}
	summary := map[string]any{"a": artifacts.Summary}
	if artifacts.SummaryB != nil {
		summary["b"] = artifacts.SummaryB
	}
	if err := writeJSON(filepath.Join(runDir, summaryFile), summary); err != nil {
		return "", err
	}
	return runDir, nil
}

// ReadRunConfig returns the stored config of runID; the bool reports
// whether it exists.
func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func ReadRunSummary(baseDir, runID string) (TrialSummary, bool, error) {
	var summary struct {
		A TrialSummary `json:"a"`
	}
	ok, err := readJSON(filepath.Join(baseDir, runID, summaryFile), &summary)
	return summary.A, ok, err
}

// ReadRunArtifacts loads everything WriteRunArtifacts stored for runID.
func ReadRunArtifacts(baseDir, runID string) (RunArtifacts, bool, error) {
	runDir := filepath.Join(baseDir, runID)
	var artifacts RunArtifacts
	ok, err := readJSON(filepath.Join(runDir, configFile), &artifacts.Config)
	if err != nil || !ok {
		return RunArtifacts{}, ok, err
	}

	var results struct {
		A []experiment.TrialResult `json:"a"`
		B []experiment.TrialResult `json:"b"`
	}
	if _, err := readJSON(filepath.Join(runDir, resultsFile), &results); err != nil {
		return RunArtifacts{}, false, err
	}
	artifacts.Results, artifacts.ResultsB = results.A, results.B

	var summary struct {
		A TrialSummary  `json:"a"`
		B *TrialSummary `json:"b"`
	}
	if _, err := readJSON(filepath.Join(runDir, summaryFile), &summary); err != nil {
		return RunArtifacts{}, false, err
	}
	artifacts.Summary, artifacts.SummaryB = summary.A, summary.B
	return artifacts, true, nil
}

// RemoveRunArtifacts deletes the run directory and its index entry. It
// reports whether anything was removed.
func RemoveRunArtifacts(baseDir, runID string) (bool, error) {
	if strings.TrimSpace(runID) == "" {
		return false, errors.New("run id is required")
	}
	removed := false
	runDir := filepath.Join(baseDir, runID)
	if _, err := os.Stat(runDir); err == nil {
		if err := os.RemoveAll(runDir); err != nil {
			return false, err
		}
		removed = true
	} else if !os.IsNotExist(err) {
		return false, err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return removed, err
	}
	kept := index[:0]
	for _, entry := range index {
		if entry.RunID == runID {
			removed = true
			continue
		}
		kept = append(kept, entry)
	}
	if len(kept) == len(index) {
		return removed, nil
	}
	return removed, writeJSON(filepath.Join(baseDir, runIndexFile), kept)
}

// WriteBehaviourSeries writes the training and testing target/output
// series of one trial as csv files in runDir.
func WriteBehaviourSeries(runDir string, behaviour experiment.Behaviour) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	if err := writeSeriesCSV(filepath.Join(runDir, behaviourTrainingCSV), behaviour.TrainingTargets, behaviour.TrainingOutputs); err != nil {
		return errors.Wrap(err, "write training series")
	}
	if err := writeSeriesCSV(filepath.Join(runDir, behaviourTestingCSV), behaviour.TestingTargets, behaviour.TestingOutputs); err != nil {
		return errors.Wrap(err, "write testing series")
	}
	return nil
}

// ReadBehaviourSeries reads the series written by WriteBehaviourSeries.
// phase is "training" or "testing".
func ReadBehaviourSeries(baseDir, runID, phase string) (targets, outputs [][]float64, ok bool, err error) {
	var name string
	switch phase {
	case "training":
		name = behaviourTrainingCSV
	case "testing":
		name = behaviourTestingCSV
	default:
		return nil, nil, false, errors.Errorf("unknown behaviour phase %q", phase)
	}
	return readSeriesCSV(filepath.Join(baseDir, runID, name))
}

func writeSeriesCSV(path string, targets, outputs [][]float64) error {
	if len(targets) != len(outputs) {
		return errors.Errorf("series lengths differ: %d targets, %d outputs", len(targets), len(outputs))
	}
	width := 0
	if len(targets) > 0 {
		width = len(targets[0])
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"step"}
	for j := 0; j < width; j++ {
		header = append(header, fmt.Sprintf("target_%d", j))
	}
	for j := 0; j < width; j++ {
		header = append(header, fmt.Sprintf("output_%d", j))
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for i := range targets {
		if len(targets[i]) != width || len(outputs[i]) != width {
			return errors.Errorf("series row %d width mismatch", i)
		}
		record := make([]string, 0, 1+2*width)
		record = append(record, strconv.Itoa(i))
		for _, value := range targets[i] {
			record = append(record, strconv.FormatFloat(value, 'f', -1, 64))
		}
		for _, value := range outputs[i] {
			record = append(record, strconv.FormatFloat(value, 'f', -1, 64))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func readSeriesCSV(path string) ([][]float64, [][]float64, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return [][]float64{}, [][]float64{}, true, nil
		}
		return nil, nil, false, err
	}
	if len(header) < 1 || (len(header)-1)%2 != 0 {
		return nil, nil, false, errors.New("behaviour series header must be step plus target and output columns")
	}
	width := (len(header) - 1) / 2

	targets := make([][]float64, 0, 128)
	outputs := make([][]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, false, err
		}
		values := make([]float64, 2*width)
		for j := range values {
			values[j], err = strconv.ParseFloat(record[j+1], 64)
			if err != nil {
				return nil, nil, false, err
			}
		}
		targets = append(targets, values[:width])
		outputs = append(outputs, values[width:])
	}
	return targets, outputs, true, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return errors.New("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}
	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}
	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}
	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first. Entries with equal
// timestamps keep the later-appended one first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}

	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := entries[order[i]], entries[order[j]]
		if c := compareCreatedAt(a.CreatedAtUTC, b.CreatedAtUTC); c != 0 {
			return c > 0
		}
		return order[i] > order[j]
	})
	sorted := make([]RunIndexEntry, 0, len(entries))
	for _, idx := range order {
		sorted = append(sorted, entries[idx])
	}
	return sorted, nil
}

// compareCreatedAt orders RFC 3339 timestamps by instant. Unparseable
// values fall back to string order.
func compareCreatedAt(a, b string) int {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return ta.Compare(tb)
}

// readRunIndex returns the index entries in append order.
func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	var entries []RunIndexEntry
	if _, err := readJSON(filepath.Join(baseDir, runIndexFile), &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []RunIndexEntry{}
	}
	return entries, nil
}

// ExportRunArtifacts copies every artifact present for runID into outDir.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if strings.TrimSpace(runID) == "" {
		return "", errors.New("run id is required")
	}
	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}
	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, nrmseFile, resultsFile, summaryFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, file := range []string{behaviourTrainingCSV, behaviourTestingCSV} {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err == nil {
			if err := copyFile(path, filepath.Join(dst, file)); err != nil {
				return "", err
			}
		} else if !os.IsNotExist(err) {
			return "", err
		}
	}
	return dst, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, err
	}
	return true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
