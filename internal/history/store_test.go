package history_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"sightline/internal/batch"
	"sightline/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.OpenPath(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordRunLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	summary := batch.Summary{
		RunID:     "run-0001",
		Operation: "deface",
		Tool:      "deface",
		OutputDir: "/out",
		Total:     2,
		StartedAt: started,
	}
	if err := store.RecordRunStart(ctx, summary); err != nil {
		t.Fatalf("RecordRunStart: %v", err)
	}

	jobs := []batch.Job{
		{Path: "/in/a.mp4", OutputPath: "/out/a_blurred.mp4", Status: batch.StatusSuccess, StartedAt: started, FinishedAt: started.Add(time.Minute)},
		{Path: "/in/b.mp4", OutputPath: "/out/b_blurred.mp4", Status: batch.StatusFailed, ExitCode: 2, ErrorLog: "Process exited with code 2"},
	}
	for _, job := range jobs {
		if err := store.RecordJob(ctx, summary.RunID, job); err != nil {
			t.Fatalf("RecordJob: %v", err)
		}
	}

	summary.Succeeded, summary.Failed = 1, 1
	summary.FinishedAt = started.Add(2 * time.Minute)
	if err := store.RecordRunEnd(ctx, summary); err != nil {
		t.Fatalf("RecordRunEnd: %v", err)
	}

	run, err := store.GetRun(ctx, "run-0001")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run == nil {
		t.Fatal("expected run")
	}
	if run.Succeeded != 1 || run.Failed != 1 || run.Total != 2 || run.Stopped {
		t.Fatalf("unexpected run counters %+v", run)
	}
	if !run.Finished() || run.Duration() != 2*time.Minute {
		t.Fatalf("unexpected run timing %+v", run)
	}
	if run.OutputDir != "/out" {
		t.Fatalf("OutputDir = %q", run.OutputDir)
	}

	recorded, err := store.Jobs(ctx, "run-0001")
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(recorded) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(recorded))
	}
	if recorded[0].InputPath != "/in/a.mp4" || recorded[0].Status != batch.StatusSuccess {
		t.Fatalf("unexpected first job %+v", recorded[0])
	}
	if !recorded[0].FinishedAt.Equal(started.Add(time.Minute)) {
		t.Fatalf("FinishedAt = %v", recorded[0].FinishedAt)
	}
	if recorded[1].ExitCode != 2 || recorded[1].ErrorLog != "Process exited with code 2" {
		t.Fatalf("unexpected failed job %+v", recorded[1])
	}
	if !recorded[1].StartedAt.IsZero() {
		t.Fatalf("expected zero start for never-started job, got %v", recorded[1].StartedAt)
	}
}

func TestRecordJobKeepsLatestOutcome(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	if err := store.RecordRunStart(ctx, batch.Summary{RunID: "run-2", Operation: "transcribe", Tool: "whisper"}); err != nil {
		t.Fatalf("RecordRunStart: %v", err)
	}
	job := batch.Job{Path: "/in/a.wav", Status: batch.StatusProcessing}
	if err := store.RecordJob(ctx, "run-2", job); err != nil {
		t.Fatalf("RecordJob: %v", err)
	}
	job.Status = batch.StatusFailed
	job.ErrorLog = batch.StopReason
	if err := store.RecordJob(ctx, "run-2", job); err != nil {
		t.Fatalf("RecordJob: %v", err)
	}

	recorded, err := store.Jobs(ctx, "run-2")
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(recorded) != 1 {
		t.Fatalf("expected upsert to keep one row, got %d", len(recorded))
	}
	if recorded[0].Status != batch.StatusFailed || recorded[0].ErrorLog != batch.StopReason {
		t.Fatalf("unexpected job %+v", recorded[0])
	}
}

func TestRecordJobRequiresRun(t *testing.T) {
	store := openStore(t)
	if err := store.RecordJob(context.Background(), "missing", batch.Job{Path: "/x", Status: batch.StatusSuccess}); err == nil {
		t.Fatal("expected foreign key violation for unknown run")
	}
	if err := store.RecordRunEnd(context.Background(), batch.Summary{RunID: "missing"}); err == nil {
		t.Fatal("expected error ending unknown run")
	}
	if err := store.RecordRunStart(context.Background(), batch.Summary{}); err == nil {
		t.Fatal("expected error for empty run id")
	}
}

func TestListRunsNewestFirstAndPrune(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := []string{"aaaa-1", "bbbb-2", "cccc-3"}
	for i, id := range ids {
		summary := batch.Summary{RunID: id, Operation: "deface", Tool: "deface", StartedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := store.RecordRunStart(ctx, summary); err != nil {
			t.Fatalf("RecordRunStart %s: %v", id, err)
		}
		if err := store.RecordJob(ctx, id, batch.Job{Path: "/in/" + id, Status: batch.StatusSuccess}); err != nil {
			t.Fatalf("RecordJob %s: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "cccc-3" || runs[1].ID != "bbbb-2" {
		t.Fatalf("unexpected runs %+v", runs)
	}
	if runs[0].Finished() {
		t.Fatal("run without end should be unfinished")
	}

	removed, err := store.Prune(ctx, 1)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("Prune removed %d, want 2", removed)
	}
	all, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(all) != 1 || all[0].ID != "cccc-3" {
		t.Fatalf("unexpected runs after prune %+v", all)
	}
	jobs, err := store.Jobs(ctx, "aaaa-1")
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected pruned run jobs to cascade, got %d", len(jobs))
	}
}

func TestGetRunByPrefix(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	for _, id := range []string{"abcd1234", "abcd5678", "ffff0000"} {
		if err := store.RecordRunStart(ctx, batch.Summary{RunID: id, Operation: "deface", Tool: "deface"}); err != nil {
			t.Fatalf("RecordRunStart: %v", err)
		}
	}

	run, err := store.GetRun(ctx, "ffff")
	if err != nil || run == nil || run.ID != "ffff0000" {
		t.Fatalf("GetRun prefix = %+v, %v", run, err)
	}
	if _, err := store.GetRun(ctx, "abcd"); err == nil {
		t.Fatal("expected ambiguous prefix error")
	}
	run, err = store.GetRun(ctx, "ab")
	if err != nil || run != nil {
		t.Fatalf("short prefix should not match, got %+v, %v", run, err)
	}
	run, err = store.GetRun(ctx, "zzzz")
	if err != nil || run != nil {
		t.Fatalf("unknown id should return nil, got %+v, %v", run, err)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if err := store.RecordRunStart(context.Background(), batch.Summary{RunID: "keep", Operation: "deface", Tool: "deface"}); err != nil {
		t.Fatalf("RecordRunStart: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := history.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if reopened.Path() != path {
		t.Fatalf("Path() = %q", reopened.Path())
	}
	run, err := reopened.GetRun(context.Background(), "keep")
	if err != nil || run == nil {
		t.Fatalf("expected run to survive reopen, got %+v, %v", run, err)
	}
}

func TestAcquireLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "sightline.lock")
	first, err := history.AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if first.Path() != path {
		t.Fatalf("Path() = %q", first.Path())
	}

	if _, err := history.AcquireLock(path); !errors.Is(err, history.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	second, err := history.AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock after release: %v", err)
	}
	if err := second.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	var nilLock *history.Lock
	if err := nilLock.Release(); err != nil {
		t.Fatalf("nil Release: %v", err)
	}
}

func TestOpenRejectsForeignSchema(t *testing.T) {
	tests := []struct {
		name  string
		setup string
	}{
		{name: "newer version", setup: "PRAGMA user_version = 7"},
		{name: "unversioned tables", setup: "CREATE TABLE notes (body TEXT)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "history.db")
			db, err := sql.Open("sqlite", path)
			if err != nil {
				t.Fatalf("open raw db: %v", err)
			}
			if _, err := db.Exec(tc.setup); err != nil {
				t.Fatalf("prepare db: %v", err)
			}
			_ = db.Close()

			if _, err := history.OpenPath(path); !errors.Is(err, history.ErrSchemaMismatch) {
				t.Fatalf("expected ErrSchemaMismatch, got %v", err)
			}
		})
	}
}

func TestOpenStampsSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer db.Close()
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("read user_version: %v", err)
	}
	if version != 1 {
		t.Fatalf("user_version = %d, want 1", version)
	}
}
