package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"tinyesn/internal/model"
)

func sampleRun(id, createdAt string) model.RunRecord {
	return Stamp(model.RunRecord{
		ID:        id,
		Kind:      "run",
		Benchmark: "narma10",
		Size:      500,
		Seed:      7,
		Config: model.ReservoirConfig{
			K:            1,
			N:            30,
			L:            1,
			Activation:   "tanh",
			Mode:         "discretised",
			Topology:     "random",
			Connectivity: 0.1,
			InputNorm:    true,
			Readout:      "pinv",
		},
		Trials: []model.TrialRecord{
			{Index: 0, Seed: 7, TrainingNRMSE: 0.8, TestingNRMSE: 0.9},
		},
		CreatedAtUTC: createdAt,
	})
}

func TestDecodeRunFixture(t *testing.T) {
	data, err := os.ReadFile(fixturePath("run_record_v1.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	run, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if run.ID != "run-narma10-1" || run.Benchmark != "narma10" {
		t.Fatalf("unexpected run identity: %+v", run)
	}
	if run.Config.N != 30 || run.Config.Topology != "random" {
		t.Fatalf("unexpected run config: %+v", run.Config)
	}
	if len(run.Trials) != 2 || run.Trials[1].TestingNRMSE != 0.88 {
		t.Fatalf("unexpected trials: %+v", run.Trials)
	}
}

func TestRunCodecRoundTrip(t *testing.T) {
	input := sampleRun("r1", "2026-01-01T00:00:00Z")
	cfgB := input.Config
	cfgB.Topology = "ring"
	input.ConfigB = &cfgB
	input.TrialsB = []model.TrialRecord{{Index: 0, Seed: 7, TrainingNRMSE: 0.7, TestingNRMSE: 0.75}}

	data, err := EncodeRun(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(input, decoded) {
		t.Fatalf("round trip mismatch\nwant=%+v\ngot=%+v", input, decoded)
	}
}

func TestRunCodecVersionMismatch(t *testing.T) {
	if _, err := DecodeRun([]byte(`{"schema_version":2,"codec_version":1,"id":"r1"}`)); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch on decode, got: %v", err)
	}
	if _, err := EncodeRun(model.RunRecord{ID: "r1"}); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch on encode, got: %v", err)
	}
}

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", "fixtures", name)
}
