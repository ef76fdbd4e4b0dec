package storage

import (
	"path/filepath"
	"testing"
	"time"

	"har_importer/models"
)

func newTestOpsStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ops.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunHistoryRoundTrip(t *testing.T) {
	store := newTestOpsStore(t)

	started := time.Now().Truncate(time.Second)
	run := &models.ImportRun{
		StartedAt: started,
		Status:    models.RunStatusRunning,
		Trigger:   "manual",
	}
	id, err := store.CreateRun(run)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	run.ID = id

	if err := store.Log(&id, models.LogLevelWarn, "normalize: record has neither ListingId nor ListingKey"); err != nil {
		t.Fatalf("Log: %v", err)
	}

	finished := started.Add(time.Minute)
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.Imported = 12
	run.Skipped = 3
	run.Errored = 1
	run.Batches = 2
	if err := store.UpdateRun(run); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}

	got, err := store.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("expected run, got nil")
	}
	if got.Status != models.RunStatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.Trigger != "manual" {
		t.Fatalf("expected manual trigger, got %q", got.Trigger)
	}
	if got.Imported != 12 || got.Skipped != 3 || got.Errored != 1 || got.Batches != 2 {
		t.Fatalf("counters lost: %+v", got)
	}
	if got.FinishedAt == nil {
		t.Fatal("expected finished time")
	}

	logs, err := store.GetRunLogs(id)
	if err != nil {
		t.Fatalf("GetRunLogs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log line, got %d", len(logs))
	}
	if logs[0].Level != models.LogLevelWarn {
		t.Fatalf("unexpected level %s", logs[0].Level)
	}
	if logs[0].RunID == nil || *logs[0].RunID != id {
		t.Fatalf("log not attached to run %d: %+v", id, logs[0])
	}
}

func TestGetRunMissing(t *testing.T) {
	store := newTestOpsStore(t)

	got, err := store.GetRun(404)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing run, got %+v", got)
	}
}

func TestGetRecentRunsNewestFirst(t *testing.T) {
	store := newTestOpsStore(t)

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 3; i++ {
		_, err := store.CreateRun(&models.ImportRun{
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Status:    models.RunStatusCompleted,
			Trigger:   "cron",
		})
		if err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	runs, err := store.GetRecentRuns(2)
	if err != nil {
		t.Fatalf("GetRecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Fatalf("expected newest first, got %s then %s", runs[0].StartedAt, runs[1].StartedAt)
	}
}

func TestGetLastCompletedRunTime(t *testing.T) {
	store := newTestOpsStore(t)

	last, err := store.GetLastCompletedRunTime()
	if err != nil {
		t.Fatalf("GetLastCompletedRunTime: %v", err)
	}
	if !last.IsZero() {
		t.Fatalf("expected zero time on empty history, got %s", last)
	}

	completed := time.Now().Truncate(time.Second)
	if _, err := store.CreateRun(&models.ImportRun{
		StartedAt: completed.Add(-time.Hour),
		Status:    models.RunStatusFailed,
		Trigger:   "cron",
	}); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if _, err := store.CreateRun(&models.ImportRun{
		StartedAt: completed,
		Status:    models.RunStatusCompleted,
		Trigger:   "cron",
	}); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	last, err = store.GetLastCompletedRunTime()
	if err != nil {
		t.Fatalf("GetLastCompletedRunTime: %v", err)
	}
	if !last.Equal(completed) {
		t.Fatalf("expected %s, got %s", completed, last)
	}
}
