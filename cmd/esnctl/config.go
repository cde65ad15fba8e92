package main

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"tinyesn/internal/esn"
	"tinyesn/internal/experiment"
	tinyapi "tinyesn/pkg/tinyesn"
)

// fileConfig is the JSON run configuration accepted by -config. Every key
// is optional; absent keys keep their defaults.
type fileConfig struct {
	Benchmark  tinyapi.BenchmarkRequest
	BenchmarkB *tinyapi.BenchmarkRequest
	Params     experiment.Params
	ParamsB    *experiment.Params
	Trials     int
	Size       int
	Seed       int64
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Benchmark: tinyapi.BenchmarkRequest{Name: "narma10"},
		Params:    experiment.DefaultParams(),
		Trials:    experiment.DefaultTrials,
		Size:      experiment.DefaultTrialSize,
	}
}

func loadFileConfig(path string, base fileConfig) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fileConfig{}, err
	}

	cfg := base
	applyBenchmarkConfig(&cfg.Benchmark, raw)
	if v, ok := asString(raw["benchmark_b"]); ok {
		b := cfg.Benchmark
		b.Name = v
		cfg.BenchmarkB = &b
	}
	if v, ok := asInt(raw["trials"]); ok {
		cfg.Trials = v
	}
	if v, ok := asInt(raw["size"]); ok {
		cfg.Size = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		cfg.Seed = v
	}
	if params, ok := raw["params"].(map[string]any); ok {
		if err := applyParamsConfig(&cfg.Params, params); err != nil {
			return fileConfig{}, errors.Wrap(err, "params")
		}
	}
	if params, ok := raw["params_b"].(map[string]any); ok {
		b := cfg.Params
		if err := applyParamsConfig(&b, params); err != nil {
			return fileConfig{}, errors.Wrap(err, "params_b")
		}
		cfg.ParamsB = &b
	}
	return cfg, nil
}

func loadOrDefaultFileConfig(path string) (fileConfig, error) {
	base := defaultFileConfig()
	if path == "" {
		return base, nil
	}
	cfg, err := loadFileConfig(path, base)
	if err != nil {
		return fileConfig{}, errors.Wrap(err, "load config")
	}
	return cfg, nil
}

func applyBenchmarkConfig(req *tinyapi.BenchmarkRequest, raw map[string]any) {
	if v, ok := asString(raw["benchmark"]); ok {
		req.Name = v
	}
	if v, ok := asString(raw["csv_path"]); ok {
		req.CSVPath = v
	}
	if v, ok := asInt(raw["column"]); ok {
		req.Column = v
	}
	if v, ok := asInt(raw["period"]); ok {
		req.Period = v
	}
}

func applyParamsConfig(p *experiment.Params, raw map[string]any) error {
	if v, ok := asInt(raw["k"]); ok {
		p.K = v
	}
	if v, ok := asInt(raw["n"]); ok {
		p.N = v
	}
	if v, ok := asInt(raw["l"]); ok {
		p.L = v
	}
	if v, ok := asString(raw["activation"]); ok {
		p.Activation = v
	}
	if v, ok := asString(raw["mode"]); ok {
		mode, err := esn.ParseMode(v)
		if err != nil {
			return err
		}
		p.Mode = mode
	}
	if v, ok := asBool(raw["feedback"]); ok {
		p.Feedback = v
	}
	if v, ok := asString(raw["topology"]); ok {
		topology, err := esn.ParseTopology(v)
		if err != nil {
			return err
		}
		p.Topology = topology
	}
	if v, ok := asFloat64(raw["connectivity"]); ok {
		p.Connectivity = v
	}
	if v, ok := asBool(raw["input_norm"]); ok {
		p.InputNorm = v
	}
	if v, ok := asString(raw["readout"]); ok {
		readout, err := esn.ParseReadout(v)
		if err != nil {
			return err
		}
		p.Readout = readout
	}
	return nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}
