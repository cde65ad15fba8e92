package storage

import (
	"context"

	"tinyesn/internal/model"
)

// Store persists experiment runs: configuration and scalar trial results.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns every run, newest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	// DeleteRun reports whether a run was removed.
	DeleteRun(ctx context.Context, id string) (bool, error)
}
