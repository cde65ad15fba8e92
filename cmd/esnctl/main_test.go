package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"tinyesn/internal/model"
)

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	if err := run(context.Background(), args, &out); err != nil {
		t.Fatalf("esnctl %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func fieldValue(t *testing.T, output, key string) string {
	t.Helper()
	for _, field := range strings.Fields(output) {
		if value, ok := strings.CutPrefix(field, key+"="); ok {
			return value
		}
	}
	t.Fatalf("missing %s in output:\n%s", key, output)
	return ""
}

func TestRunRequiresCommand(t *testing.T) {
	if err := run(context.Background(), nil, &bytes.Buffer{}); err == nil || !strings.Contains(err.Error(), "usage:") {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := run(context.Background(), []string{"bogus"}, &bytes.Buffer{}); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestRunShowRunsDeleteLifecycle(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "runs")
	common := []string{"-store", "memory", "-out", outDir, "-log-level", "error"}

	output := runCLI(t, append([]string{"run",
		"-benchmark", "sine", "-period", "20",
		"-n", "10", "-trials", "2", "-size", "60", "-seed", "4",
	}, common...)...)
	runID := fieldValue(t, output, "run_id")
	if !strings.Contains(output, "testing_nrmse median=") {
		t.Fatalf("expected testing summary line:\n%s", output)
	}

	listed := runCLI(t, append([]string{"runs"}, common...)...)
	if fieldValue(t, listed, "run_id") != runID {
		t.Fatalf("expected %s in runs output:\n%s", runID, listed)
	}

	shown := runCLI(t, append([]string{"show", "-run-id", runID}, common...)...)
	var record model.RunRecord
	if err := json.Unmarshal([]byte(shown), &record); err != nil {
		t.Fatalf("decode show output: %v\n%s", err, shown)
	}
	if record.ID != runID || record.Benchmark != "sine" || record.Config.N != 10 || len(record.Trials) != 2 {
		t.Fatalf("unexpected shown record: %+v", record)
	}

	deleted := runCLI(t, append([]string{"delete", "-run-id", runID}, common...)...)
	if fieldValue(t, deleted, "run_id") != runID {
		t.Fatalf("unexpected delete output: %s", deleted)
	}
	if listed := runCLI(t, append([]string{"runs"}, common...)...); !strings.Contains(listed, "no runs found") {
		t.Fatalf("expected empty run list after delete:\n%s", listed)
	}
}

func TestCompareAppliesPrefixedFlagsToSecondConfiguration(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "runs")
	output := runCLI(t, "compare",
		"-store", "memory", "-out", outDir, "-log-level", "error",
		"-benchmark", "sine", "-period", "20",
		"-n", "10", "-b-n", "9", "-b-topology", "torus",
		"-trials", "2", "-size", "60", "-seed", "8",
	)
	runID := fieldValue(t, output, "run_id")
	if !strings.Contains(output, "b_testing_nrmse median=") {
		t.Fatalf("expected b summary line:\n%s", output)
	}

	shown := runCLI(t, "show", "-store", "memory", "-out", outDir, "-run-id", runID)
	var record model.RunRecord
	if err := json.Unmarshal([]byte(shown), &record); err != nil {
		t.Fatalf("decode show output: %v", err)
	}
	if record.Config.N != 10 || record.Config.Topology != "random" {
		t.Fatalf("unexpected a config: %+v", record.Config)
	}
	if record.ConfigB == nil || record.ConfigB.N != 9 || record.ConfigB.Topology != "torus" {
		t.Fatalf("unexpected b config: %+v", record.ConfigB)
	}
}

func TestDiagnosticsCommand(t *testing.T) {
	output := runCLI(t, "diagnostics", "-n", "16", "-topology", "lattice", "-seed", "3")
	if fieldValue(t, output, "timestep") != "0" || fieldValue(t, output, "trained") != "false" {
		t.Fatalf("unexpected diagnostics output: %s", output)
	}
	if fieldValue(t, output, "spectral_radius") != "1.000000" {
		t.Fatalf("expected unit spectral radius: %s", output)
	}
}

func TestDiagnosticsRejectsUnknownTopology(t *testing.T) {
	if err := run(context.Background(), []string{"diagnostics", "-topology", "hexagon"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected unknown topology error")
	}
}

func TestListingCommands(t *testing.T) {
	benchmarks := runCLI(t, "benchmarks")
	for _, want := range []string{"narma10", "parity", "sine", "xor"} {
		if !strings.Contains(benchmarks, want+"\n") {
			t.Fatalf("expected %s in benchmarks list:\n%s", want, benchmarks)
		}
	}
	activations := runCLI(t, "activations")
	if !strings.Contains(activations, "tanh\n") {
		t.Fatalf("expected tanh in activations list:\n%s", activations)
	}
}

func TestExportRequiresSelection(t *testing.T) {
	err := run(context.Background(), []string{"export", "-store", "memory"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "--run-id or --latest") {
		t.Fatalf("expected selection error, got %v", err)
	}
}
