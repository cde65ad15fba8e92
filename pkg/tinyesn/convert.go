package tinyesn

import (
	"tinyesn/internal/experiment"
	"tinyesn/internal/model"
	"tinyesn/internal/stats"
	"tinyesn/internal/storage"
)

func toModelConfig(p experiment.Params) model.ReservoirConfig {
	return model.ReservoirConfig{
		K:            p.K,
		N:            p.N,
		L:            p.L,
		Activation:   p.Activation,
		Mode:         string(p.Mode),
		Feedback:     p.Feedback,
		Topology:     string(p.Topology),
		Connectivity: p.Connectivity,
		InputNorm:    p.InputNorm,
		Readout:      string(p.Readout),
	}
}

func toTrialRecords(results []experiment.TrialResult) []model.TrialRecord {
	if results == nil {
		return nil
	}
	out := make([]model.TrialRecord, len(results))
	for i, result := range results {
		out[i] = model.TrialRecord{
			Index:         result.Index,
			Seed:          result.Seed,
			TrainingNRMSE: result.TrainingNRMSE,
			TestingNRMSE:  result.TestingNRMSE,
		}
	}
	return out
}

func recordFromArtifacts(artifacts stats.RunArtifacts) model.RunRecord {
	cfg := artifacts.Config
	record := model.RunRecord{
		ID:           cfg.RunID,
		Kind:         cfg.Kind,
		Benchmark:    cfg.Benchmark,
		BenchmarkB:   cfg.BenchmarkB,
		Size:         cfg.Size,
		Seed:         cfg.Seed,
		Config:       toModelConfig(cfg.Params),
		Trials:       toTrialRecords(artifacts.Results),
		TrialsB:      toTrialRecords(artifacts.ResultsB),
		CreatedAtUTC: cfg.CreatedAtUTC,
	}
	if cfg.ParamsB != nil {
		b := toModelConfig(*cfg.ParamsB)
		record.ConfigB = &b
	}
	return storage.Stamp(record)
}
