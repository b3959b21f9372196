package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sightline/internal/batch"
)

// Run is a recorded batch run.
type Run struct {
	ID         string
	Operation  string
	Tool       string
	OutputDir  string
	Total      int
	Succeeded  int
	Failed     int
	Stopped    bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Finished reports whether the run recorded its end.
func (r Run) Finished() bool { return !r.FinishedAt.IsZero() }

// Duration reports the wall-clock run time, or zero for unfinished runs.
func (r Run) Duration() time.Duration {
	if !r.Finished() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// JobRecord is the recorded outcome of one file in a run.
type JobRecord struct {
	RunID      string
	InputPath  string
	OutputPath string
	Status     batch.Status
	ExitCode   int
	ErrorLog   string
	StartedAt  time.Time
	FinishedAt time.Time
}

const runColumns = "id, operation, tool, output_dir, total, succeeded, failed, stopped, started_at, finished_at"

const jobColumns = "run_id, input_path, output_path, status, exit_code, error_log, started_at, finished_at"

var _ batch.Recorder = (*Store)(nil)

// RecordRunStart implements batch.Recorder.
func (s *Store) RecordRunStart(ctx context.Context, summary batch.Summary) error {
	if strings.TrimSpace(summary.RunID) == "" {
		return errors.New("run id is empty")
	}
	started := summary.StartedAt
	if started.IsZero() {
		started = time.Now().UTC()
	}
	_, err := s.exec(ctx,
		`INSERT INTO runs (id, operation, tool, output_dir, total, started_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET total = excluded.total`,
		summary.RunID,
		summary.Operation,
		summary.Tool,
		nullableString(summary.OutputDir),
		summary.Total,
		nullableTime(started),
	)
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// RecordJob implements batch.Recorder. A job recorded twice in the same run
// keeps the latest outcome.
func (s *Store) RecordJob(ctx context.Context, runID string, job batch.Job) error {
	_, err := s.exec(ctx,
		`INSERT INTO jobs (`+jobColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(run_id, input_path) DO UPDATE SET
            output_path = excluded.output_path,
            status = excluded.status,
            exit_code = excluded.exit_code,
            error_log = excluded.error_log,
            started_at = excluded.started_at,
            finished_at = excluded.finished_at`,
		runID,
		job.Path,
		nullableString(job.OutputPath),
		string(job.Status),
		job.ExitCode,
		nullableString(job.ErrorLog),
		nullableTime(job.StartedAt),
		nullableTime(job.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("record job %s: %w", job.Path, err)
	}
	return nil
}

// RecordRunEnd implements batch.Recorder.
func (s *Store) RecordRunEnd(ctx context.Context, summary batch.Summary) error {
	finished := summary.FinishedAt
	if finished.IsZero() {
		finished = time.Now().UTC()
	}
	res, err := s.exec(ctx,
		`UPDATE runs SET total = ?, succeeded = ?, failed = ?, stopped = ?, finished_at = ? WHERE id = ?`,
		summary.Total,
		summary.Succeeded,
		summary.Failed,
		boolToInt(summary.Stopped),
		nullableTime(finished),
		summary.RunID,
	)
	if err != nil {
		return fmt.Errorf("record run end: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("record run end: unknown run %s", summary.RunID)
	}
	return nil
}

// ListRuns returns the most recent runs first. A non-positive limit returns
// every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun fetches a run by id, returning nil when it does not exist. A unique
// id prefix of at least four characters is accepted.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == nil {
		return &run, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if len(id) < 4 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id LIKE ? LIMIT 2`, id+"%")
	if err != nil {
		return nil, fmt.Errorf("get run by prefix: %w", err)
	}
	defer rows.Close()
	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
}

// Jobs returns the recorded jobs of a run in the order they were recorded.
func (s *Store) Jobs(ctx context.Context, runID string) ([]JobRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var (
			rec        JobRecord
			output     sql.NullString
			status     string
			errorLog   sql.NullString
			startedRaw sql.NullString
			finishRaw  sql.NullString
		)
		if err := rows.Scan(&rec.RunID, &rec.InputPath, &output, &status, &rec.ExitCode, &errorLog, &startedRaw, &finishRaw); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		rec.OutputPath = output.String
		rec.Status = batch.Status(status)
		rec.ErrorLog = errorLog.String
		rec.StartedAt = parseTime(startedRaw)
		rec.FinishedAt = parseTime(finishRaw)
		jobs = append(jobs, rec)
	}
	return jobs, rows.Err()
}

// Prune deletes all but the keep most recent runs and reports how many were
// removed. Their jobs are removed with them.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.exec(ctx,
		`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY started_at DESC, id LIMIT ?)`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run         Run
		outputDir   sql.NullString
		stopped     int
		startedRaw  sql.NullString
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Operation,
		&run.Tool,
		&outputDir,
		&run.Total,
		&run.Succeeded,
		&run.Failed,
		&stopped,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return Run{}, err
	}
	run.OutputDir = outputDir.String
	run.Stopped = stopped != 0
	run.StartedAt = parseTime(startedRaw)
	run.FinishedAt = parseTime(finishedRaw)
	return run, nil
}
