package storage

import (
	"context"
	"errors"
	"testing"

	"tinyesn/internal/model"
)

func TestMemoryStoreRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	older := sampleRun("older", "2026-01-01T00:00:00Z")
	newer := sampleRun("newer", "2026-02-01T00:00:00Z")
	for _, run := range []model.RunRecord{older, newer} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save %s: %v", run.ID, err)
		}
	}

	loaded, ok, err := store.GetRun(ctx, "older")
	if err != nil || !ok {
		t.Fatalf("get older: ok=%t err=%v", ok, err)
	}
	if loaded.Trials[0].TestingNRMSE != 0.9 {
		t.Fatalf("unexpected loaded run: %+v", loaded)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "newer" || runs[1].ID != "older" {
		t.Fatalf("unexpected run order: %+v", runs)
	}

	deleted, err := store.DeleteRun(ctx, "older")
	if err != nil || !deleted {
		t.Fatalf("delete older: deleted=%t err=%v", deleted, err)
	}
	if _, ok, _ := store.GetRun(ctx, "older"); ok {
		t.Fatal("expected deleted run to be gone")
	}
	deleted, err = store.DeleteRun(ctx, "older")
	if err != nil || deleted {
		t.Fatalf("expected second delete to report false, got deleted=%t err=%v", deleted, err)
	}
}

func TestMemoryStoreCopiesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	run := sampleRun("r1", "2026-01-01T00:00:00Z")
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save: %v", err)
	}
	run.Trials[0].TestingNRMSE = 99

	loaded, _, _ := store.GetRun(ctx, "r1")
	if loaded.Trials[0].TestingNRMSE != 0.9 {
		t.Fatalf("store aliased caller slice: %+v", loaded.Trials)
	}
	loaded.Trials[0].TestingNRMSE = 42
	again, _, _ := store.GetRun(ctx, "r1")
	if again.Trials[0].TestingNRMSE != 0.9 {
		t.Fatalf("store aliased returned slice: %+v", again.Trials)
	}
}

func TestMemoryStoreRejectsInvalidRuns(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.SaveRun(ctx, sampleRun("r1", "")); err == nil {
		t.Fatal("expected uninitialized store error")
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := store.SaveRun(ctx, sampleRun("", "")); err == nil {
		t.Fatal("expected missing id error")
	}
	if err := store.SaveRun(ctx, model.RunRecord{ID: "unversioned"}); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}
