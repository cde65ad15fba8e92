package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// ReservoirConfig is the persisted form of a reservoir configuration.
// Reservoir matrices are never persisted; a run is reproduced from its
// configuration and seed.
type ReservoirConfig struct {
	K            int     `json:"k"`
	N            int     `json:"n"`
	L            int     `json:"l"`
	Activation   string  `json:"activation"`
	Mode         string  `json:"mode"`
	Feedback     bool    `json:"feedback"`
	Topology     string  `json:"topology"`
	Connectivity float64 `json:"connectivity"`
	InputNorm    bool    `json:"input_norm"`
	Readout      string  `json:"readout"`
}

type TrialRecord struct {
	Index         int     `json:"index"`
	Seed          int64   `json:"seed"`
	TrainingNRMSE float64 `json:"training_nrmse"`
	TestingNRMSE  float64 `json:"testing_nrmse"`
}

// RunRecord is one persisted batch of trials. Comparison runs fill the
// B fields with the second configuration.
type RunRecord struct {
	VersionedRecord
	ID           string           `json:"id"`
	Kind         string           `json:"kind"`
	Benchmark    string           `json:"benchmark"`
	BenchmarkB   string           `json:"benchmark_b,omitempty"`
	Size         int              `json:"size"`
	Seed         int64            `json:"seed"`
	Config       ReservoirConfig  `json:"config"`
	ConfigB      *ReservoirConfig `json:"config_b,omitempty"`
	Trials       []TrialRecord    `json:"trials"`
	TrialsB      []TrialRecord    `json:"trials_b,omitempty"`
	CreatedAtUTC string           `json:"created_at_utc"`
}
