package main

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"tinyesn/internal/esn"
	"tinyesn/internal/experiment"
)

func writeConfig(t *testing.T, payload map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run_config.json")
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileConfigOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"benchmark": "sunspots",
		"csv_path":  "data/sunspots.csv",
		"trials":    12,
		"seed":      77,
		"params": map[string]any{
			"n":        16,
			"topology": "Torus",
			"mode":     "instantaneous",
			"feedback": true,
			"readout":  "rls",
		},
		"params_b": map[string]any{
			"topology": "ring",
		},
	})

	cfg, err := loadOrDefaultFileConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Benchmark.Name != "sunspots" || cfg.Benchmark.CSVPath != "data/sunspots.csv" {
		t.Fatalf("unexpected benchmark: %+v", cfg.Benchmark)
	}
	if cfg.Trials != 12 || cfg.Seed != 77 || cfg.Size != experiment.DefaultTrialSize {
		t.Fatalf("unexpected batch fields: %+v", cfg)
	}
	p := cfg.Params
	if p.N != 16 || p.Topology != esn.TopologyTorus || p.Mode != esn.ModeInstantaneous || !p.Feedback || p.Readout != esn.ReadoutRLS {
		t.Fatalf("unexpected params: %+v", p)
	}
	if p.K != 1 || p.Activation != "tanh" {
		t.Fatalf("expected defaults for unset params: %+v", p)
	}
	if cfg.ParamsB == nil || cfg.ParamsB.Topology != esn.TopologyRing || cfg.ParamsB.N != 16 {
		t.Fatalf("expected params_b to start from params: %+v", cfg.ParamsB)
	}
}

func TestLoadFileConfigRejectsUnknownReadout(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"params": map[string]any{"readout": "ridge"},
	})
	if _, err := loadOrDefaultFileConfig(path); err == nil {
		t.Fatal("expected unknown readout error")
	}
}

func TestResolveConfigFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"benchmark": "narma5",
		"trials":    7,
		"params":    map[string]any{"n": 25, "connectivity": 0.2},
	})

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	batch := registerBatchFlags(fs, experiment.DefaultTrialSize)
	params := registerParamFlags(fs, "", experiment.DefaultParams())
	if err := fs.Parse([]string{"-config", path, "-trials", "3", "-n", "40"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := resolveConfig(fs, batch, params, nil)
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if cfg.Benchmark.Name != "narma5" || cfg.Trials != 3 {
		t.Fatalf("unexpected batch fields: %+v", cfg)
	}
	if cfg.Params.N != 40 || cfg.Params.Connectivity != 0.2 {
		t.Fatalf("unexpected params: %+v", cfg.Params)
	}
}

func TestResolveConfigWithoutFileUsesFlagDefaults(t *testing.T) {
	fs := flag.NewFlagSet("behaviour", flag.ContinueOnError)
	batch := registerBatchFlags(fs, experiment.DefaultBehaviourSize)
	params := registerParamFlags(fs, "", experiment.DefaultParams())
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := resolveConfig(fs, batch, params, nil)
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if cfg.Size != experiment.DefaultBehaviourSize || cfg.Benchmark.Name != "narma10" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Params != experiment.DefaultParams() {
		t.Fatalf("unexpected params: %+v", cfg.Params)
	}
}
