package stats

import (
	"os"
	"path/filepath"
	"testing"

	"tinyesn/internal/experiment"
)

func sampleArtifacts(runID string) RunArtifacts {
	results := []experiment.TrialResult{
		{Index: 0, Seed: 1, TrainingNRMSE: 0.4, TestingNRMSE: 0.5},
		{Index: 1, Seed: 2, TrainingNRMSE: 0.3, TestingNRMSE: 0.6},
	}
	summary, _ := SummarizeTrials(experiment.TrainingNRMSEs(results), experiment.TestingNRMSEs(results))
	return RunArtifacts{
		Config: RunConfig{
			RunID:        runID,
			Kind:         "run",
			Benchmark:    "narma10",
			Trials:       2,
			Size:         500,
			Seed:         1,
			Params:       experiment.DefaultParams(),
			CreatedAtUTC: "2026-01-01T00:00:00Z",
		},
		Results: results,
		Summary: summary,
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runDir, err := WriteRunArtifacts(baseDir, sampleArtifacts("run-123"))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	for _, file := range []string{"config.json", "nrmse.json", "summary.json"} {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	cfg, ok, err := ReadRunConfig(baseDir, "run-123")
	if err != nil || !ok {
		t.Fatalf("read run config: ok=%t err=%v", ok, err)
	}
	if cfg.Benchmark != "narma10" || cfg.Params.N != 30 {
		t.Fatalf("unexpected run config: %+v", cfg)
	}
	summary, ok, err := ReadRunSummary(baseDir, "run-123")
	if err != nil || !ok {
		t.Fatalf("read run summary: ok=%t err=%v", ok, err)
	}
	if summary.Testing.Count != 2 || summary.Testing.Max != 0.6 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	exportedDir, err := ExportRunArtifacts(baseDir, "run-123", outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range []string{"config.json", "nrmse.json", "summary.json"} {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}
	if _, err := os.Stat(filepath.Join(exportedDir, "behaviour_training.csv")); !os.IsNotExist(err) {
		t.Fatalf("expected no behaviour export without series, got %v", err)
	}
}

func TestReadRunConfigMissing(t *testing.T) {
	_, ok, err := ReadRunConfig(t.TempDir(), "missing")
	if err != nil {
		t.Fatalf("read missing config: %v", err)
	}
	if ok {
		t.Fatal("expected missing config to report ok=false")
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); err == nil {
		t.Fatal("expected missing run id error")
	}
}

func TestBehaviourSeriesRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	behaviour := experiment.Behaviour{
		TrainingTargets: [][]float64{{0.1}, {0.2}},
		TrainingOutputs: [][]float64{{0.15}, {0.25}},
		TestingTargets:  [][]float64{{0.3}},
		TestingOutputs:  [][]float64{{0.35}},
	}
	if err := WriteBehaviourSeries(filepath.Join(baseDir, "run-b"), behaviour); err != nil {
		t.Fatalf("write behaviour: %v", err)
	}

	targets, outputs, ok, err := ReadBehaviourSeries(baseDir, "run-b", "training")
	if err != nil || !ok {
		t.Fatalf("read training series: ok=%t err=%v", ok, err)
	}
	if len(targets) != 2 || targets[1][0] != 0.2 || outputs[0][0] != 0.15 {
		t.Fatalf("unexpected training series: %v %v", targets, outputs)
	}

	targets, outputs, ok, err = ReadBehaviourSeries(baseDir, "run-b", "testing")
	if err != nil || !ok {
		t.Fatalf("read testing series: ok=%t err=%v", ok, err)
	}
	if len(targets) != 1 || outputs[0][0] != 0.35 {
		t.Fatalf("unexpected testing series: %v %v", targets, outputs)
	}

	if _, _, _, err := ReadBehaviourSeries(baseDir, "run-b", "validation"); err == nil {
		t.Fatal("expected unknown phase error")
	}
}

func TestRunIndexOrdersNewestFirstAndReplaces(t *testing.T) {
	baseDir := t.TempDir()
	entries := []RunIndexEntry{
		{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z"},
		{RunID: "b", CreatedAtUTC: "2026-01-02T00:00:00Z"},
		{RunID: "c", CreatedAtUTC: "2026-01-02T00:00:00Z"},
	}
	for _, entry := range entries {
		if err := AppendRunIndex(baseDir, entry); err != nil {
			t.Fatalf("append %s: %v", entry.RunID, err)
		}
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", Trials: 9, CreatedAtUTC: "2026-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("replace a: %v", err)
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(index) != 3 {
		t.Fatalf("expected 3 entries, got %+v", index)
	}
	if index[0].RunID != "c" || index[1].RunID != "b" || index[2].RunID != "a" {
		t.Fatalf("unexpected index order: %+v", index)
	}
	if index[2].Trials != 9 {
		t.Fatalf("expected replaced entry, got %+v", index[2])
	}
}

func TestReadRunArtifactsRestoresResults(t *testing.T) {
	baseDir := t.TempDir()
	written := sampleArtifacts("run-r")
	if _, err := WriteRunArtifacts(baseDir, written); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	read, ok, err := ReadRunArtifacts(baseDir, "run-r")
	if err != nil || !ok {
		t.Fatalf("read artifacts: ok=%t err=%v", ok, err)
	}
	if len(read.Results) != 2 || read.Results[1].Seed != 2 || read.Results[1].TestingNRMSE != 0.6 {
		t.Fatalf("unexpected results: %+v", read.Results)
	}
	if read.ResultsB != nil || read.SummaryB != nil {
		t.Fatalf("expected no comparison data, got %+v", read)
	}
	if read.Summary.Training.Min != 0.3 {
		t.Fatalf("unexpected summary: %+v", read.Summary)
	}

	if _, ok, err := ReadRunArtifacts(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, ok=%t err=%v", ok, err)
	}
}

func TestRemoveRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	if _, err := WriteRunArtifacts(baseDir, sampleArtifacts("gone")); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	for _, id := range []string{"gone", "kept"} {
		if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: id, CreatedAtUTC: "2026-01-01T00:00:00Z"}); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	removed, err := RemoveRunArtifacts(baseDir, "gone")
	if err != nil || !removed {
		t.Fatalf("remove: removed=%t err=%v", removed, err)
	}
	if _, err := os.Stat(filepath.Join(baseDir, "gone")); !os.IsNotExist(err) {
		t.Fatalf("expected run dir removed, got %v", err)
	}
	index, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(index) != 1 || index[0].RunID != "kept" {
		t.Fatalf("unexpected index after remove: %+v", index)
	}

	removed, err = RemoveRunArtifacts(baseDir, "gone")
	if err != nil || removed {
		t.Fatalf("expected second remove to report false, removed=%t err=%v", removed, err)
	}
}

func TestListRunIndexOrdersFractionalTimestampsByInstant(t *testing.T) {
	baseDir := t.TempDir()
	for _, entry := range []RunIndexEntry{
		{RunID: "whole", CreatedAtUTC: "2026-01-01T00:00:05Z"},
		{RunID: "later", CreatedAtUTC: "2026-01-01T00:00:05.12Z"},
		{RunID: "earlier", CreatedAtUTC: "2026-01-01T00:00:05.1Z"},
	} {
		if err := AppendRunIndex(baseDir, entry); err != nil {
			t.Fatalf("append %s: %v", entry.RunID, err)
		}
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	got := []string{entries[0].RunID, entries[1].RunID, entries[2].RunID}
	want := []string{"later", "earlier", "whole"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order %v, want %v", got, want)
		}
	}
}
