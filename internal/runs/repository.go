package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/heimdex/heimdex-segmenter/internal/pipeline"
	"github.com/heimdex/heimdex-segmenter/internal/segments"
)

// timeLayout keeps a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

type Repository interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	ListPendingRuns(ctx context.Context) ([]*Run, error)
	CountByStatus(ctx context.Context) (StatusCounts, error)

	MarkRunning(ctx context.Context, id string) (bool, error)
	UpdateProgress(ctx context.Context, id string, stage pipeline.Stage, progress int) error
	CompleteRun(ctx context.Context, id string, result *segments.SegmentationResult) error
	FailRun(ctx context.Context, id string, kind segments.Kind, message string) error

	AppendEvent(ctx context.Context, runID string, ev Event) error
	ListEvents(ctx context.Context, runID string) ([]Event, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) stamp() string {
	return formatTime(r.now())
}

const runColumns = `id, status, stage, progress, input, result, error, error_kind, created_at, updated_at, completed_at`

func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Run) error {
	input, err := json.Marshal(run.Input)
	if err != nil {
		return fmt.Errorf("encode run input: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO runs (id, status, stage, progress, video_url, strategy, input, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, string(run.Status), nullString(string(run.Stage)), run.Progress,
		run.Input.VideoURL, string(run.Input.SplitStrategy), string(input),
		formatTime(run.CreatedAt), formatTime(run.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRuns(rows)
}

func (r *SQLiteRepository) ListPendingRuns(ctx context.Context) ([]*Run, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE status = 'pending' ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRuns(rows)
}

func (r *SQLiteRepository) CountByStatus(ctx context.Context) (StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := StatusCounts{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

// MarkRunning claims a pending run. It returns false if the run was not pending.
func (r *SQLiteRepository) MarkRunning(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE runs SET status = 'running', updated_at = ? WHERE id = ? AND status = 'pending'
	`, r.stamp(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *SQLiteRepository) UpdateProgress(ctx context.Context, id string, stage pipeline.Stage, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE runs SET stage = ?, progress = ?, updated_at = ? WHERE id = ?
	`, string(stage), progress, r.stamp(), id)
	return err
}

func (r *SQLiteRepository) CompleteRun(ctx context.Context, id string, result *segments.SegmentationResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode run result: %w", err)
	}
	now := r.stamp()
	_, err = r.db.ExecContext(ctx, `
		UPDATE runs
		SET status = 'completed', stage = ?, progress = 100, result = ?, error = NULL, error_kind = NULL,
		    updated_at = ?, completed_at = ?
		WHERE id = ?
	`, string(pipeline.StageComplete), string(data), now, now, id)
	return err
}

func (r *SQLiteRepository) FailRun(ctx context.Context, id string, kind segments.Kind, message string) error {
	now := r.stamp()
	_, err := r.db.ExecContext(ctx, `
		UPDATE runs
		SET status = 'failed', stage = ?, error = ?, error_kind = ?, updated_at = ?, completed_at = ?
		WHERE id = ?
	`, string(pipeline.StageFailed), message, nullString(string(kind)), now, now, id)
	return err
}

func (r *SQLiteRepository) AppendEvent(ctx context.Context, runID string, ev Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO run_events (run_id, seq, stage, progress, message, created_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), -1) + 1 FROM run_events WHERE run_id = ?), ?, ?, ?, ?)
	`, runID, runID, ev.Stage, ev.Progress, ev.Message, r.stamp())
	return err
}

func (r *SQLiteRepository) ListEvents(ctx context.Context, runID string) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, stage, progress, message, created_at FROM run_events WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var ev Event
		var createdAt string
		if err := rows.Scan(&ev.Seq, &ev.Stage, &ev.Progress, &ev.Message, &createdAt); err != nil {
			return nil, err
		}
		ev.CreatedAt = parseTime(createdAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var status string
	var stage, result, errMsg, errKind, completedAt sql.NullString
	var input, createdAt, updatedAt string

	if err := row.Scan(&run.ID, &status, &stage, &run.Progress, &input, &result, &errMsg, &errKind,
		&createdAt, &updatedAt, &completedAt); err != nil {
		return nil, err
	}

	run.Status = Status(status)
	run.Stage = pipeline.Stage(stage.String)
	run.Error = errMsg.String
	run.ErrorKind = segments.Kind(errKind.String)
	run.CreatedAt = parseTime(createdAt)
	run.UpdatedAt = parseTime(updatedAt)
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		run.CompletedAt = &t
	}

	if err := json.Unmarshal([]byte(input), &run.Input); err != nil {
		return nil, fmt.Errorf("decode input of run %s: %w", run.ID, err)
	}
	if result.Valid {
		run.Result = &segments.SegmentationResult{}
		if err := json.Unmarshal([]byte(result.String), run.Result); err != nil {
			return nil, fmt.Errorf("decode result of run %s: %w", run.ID, err)
		}
	}
	return &run, nil
}

func scanRuns(rows *sql.Rows) ([]*Run, error) {
	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime also accepts the second-precision stamps written by SQL defaults.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
