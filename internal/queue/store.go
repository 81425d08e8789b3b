package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ambo/internal/config"
)

// Store manages recording persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the recording database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "ambo.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// NewRecording inserts a newly discovered service recording awaiting its transcript.
func (s *Store) NewRecording(ctx context.Context, sourcePath, title, weekendKey string, serviceAt time.Time) (*Recording, error) {
	if strings.TrimSpace(sourcePath) == "" {
		return nil, errors.New("source path is required")
	}
	if strings.TrimSpace(weekendKey) == "" {
		return nil, errors.New("weekend key is required")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO recordings (
            source_path, title, weekend_key, service_at, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sourcePath,
		nullableString(title),
		weekendKey,
		serviceAt.UTC().Format(time.RFC3339Nano),
		StatusIngested,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert recording: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a recording by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Recording, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return rec, nil
}

// FindBySourcePath returns the recording ingested from a source file, if any.
func (s *Store) FindBySourcePath(ctx context.Context, sourcePath string) (*Recording, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE source_path = ? LIMIT 1`,
		sourcePath,
	)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by source path: %w", err)
	}
	return rec, nil
}

// Update persists changes to an existing recording.
func (s *Store) Update(ctx context.Context, rec *Recording) error {
	if rec == nil {
		return errors.New("recording is nil")
	}
	rec.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE recordings
         SET source_path = ?, title = ?, weekend_key = ?, service_at = ?, transcript_path = ?,
             status = ?, cue_count = ?, skipped_blocks = ?, boundary_start = ?, boundary_end = ?,
             boundary_clamped = ?, error_message = ?, needs_review = ?, review_reason = ?,
             progress_stage = ?, progress_message = ?, updated_at = ?, last_heartbeat = ?
         WHERE id = ?`,
		rec.SourcePath,
		nullableString(rec.Title),
		rec.WeekendKey,
		rec.ServiceAt.UTC().Format(time.RFC3339Nano),
		nullableString(rec.TranscriptPath),
		rec.Status,
		rec.CueCount,
		rec.SkippedBlocks,
		nullableFloat(rec.BoundaryStart),
		nullableFloat(rec.BoundaryEnd),
		boolToInt(rec.BoundaryClamped),
		nullableString(rec.ErrorMessage),
		boolToInt(rec.NeedsReview),
		nullableString(rec.ReviewReason),
		nullableString(rec.ProgressStage),
		nullableString(rec.ProgressMessage),
		rec.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(rec.LastHeartbeat),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update recording: %w", err)
	}
	return nil
}

// List returns recordings filtered by status set (or all when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Recording, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + recordingColumns + ` FROM recordings`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	return collectRecordings(rows)
}

// ListByWeekend returns all recordings belonging to a weekend group.
func (s *Store) ListByWeekend(ctx context.Context, weekendKey string) ([]*Recording, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE weekend_key = ? ORDER BY created_at`,
		weekendKey,
	)
	if err != nil {
		return nil, fmt.Errorf("list weekend recordings: %w", err)
	}
	defer rows.Close()

	return collectRecordings(rows)
}

// NextForStatuses returns the least recently touched recording matching any
// of the provided statuses. Ordering by updated_at keeps a recording that is
// waiting on an external collaborator from starving its siblings.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Recording, error) {
	return s.NextForStatusesExcluding(ctx, nil, statuses...)
}

// NextForStatusesExcluding behaves like NextForStatuses but skips the given
// recording IDs. The one-shot drain uses it to step past recordings that made
// no progress so their siblings still complete.
func (s *Store) NextForStatusesExcluding(ctx context.Context, exclude []int64, statuses ...Status) (*Recording, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(statuses)+len(exclude))
	for _, status := range statuses {
		args = append(args, status)
	}

	query := `SELECT ` + recordingColumns + ` FROM recordings WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
	if len(exclude) > 0 {
		query += ` AND id NOT IN (` + makePlaceholders(len(exclude)) + `)`
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	query += ` ORDER BY updated_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Remove deletes a recording (and, via foreign keys, its segment and comparisons).
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete recording: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const recordingColumns = "id, source_path, title, weekend_key, service_at, transcript_path, status, cue_count, skipped_blocks, boundary_start, boundary_end, boundary_clamped, error_message, needs_review, review_reason, progress_stage, progress_message, created_at, updated_at, last_heartbeat"

func scanRecording(scanner interface{ Scan(dest ...any) error }) (*Recording, error) {
	var (
		id              int64
		sourcePath      string
		title           sql.NullString
		weekendKey      string
		serviceAtRaw    string
		transcriptPath  sql.NullString
		statusStr       string
		cueCount        int
		skippedBlocks   int
		boundaryStart   sql.NullFloat64
		boundaryEnd     sql.NullFloat64
		boundaryClamped sql.NullInt64
		errorMessage    sql.NullString
		needsReview     sql.NullInt64
		reviewReason    sql.NullString
		progressStage   sql.NullString
		progressMessage sql.NullString
		createdRaw      string
		updatedRaw      string
		heartbeatRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&title,
		&weekendKey,
		&serviceAtRaw,
		&transcriptPath,
		&statusStr,
		&cueCount,
		&skippedBlocks,
		&boundaryStart,
		&boundaryEnd,
		&boundaryClamped,
		&errorMessage,
		&needsReview,
		&reviewReason,
		&progressStage,
		&progressMessage,
		&createdRaw,
		&updatedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	rec := &Recording{
		ID:              id,
		SourcePath:      sourcePath,
		Title:           title.String,
		WeekendKey:      weekendKey,
		TranscriptPath:  transcriptPath.String,
		Status:          Status(statusStr),
		CueCount:        cueCount,
		SkippedBlocks:   skippedBlocks,
		BoundaryStart:   boundaryStart.Float64,
		BoundaryEnd:     boundaryEnd.Float64,
		BoundaryClamped: boundaryClamped.Int64 != 0,
		ErrorMessage:    errorMessage.String,
		NeedsReview:     needsReview.Int64 != 0,
		ReviewReason:    reviewReason.String,
		ProgressStage:   progressStage.String,
		ProgressMessage: progressMessage.String,
	}

	if serviceAt, err := parseTimeString(serviceAtRaw); err == nil {
		rec.ServiceAt = serviceAt
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		rec.UpdatedAt = updated
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			rec.LastHeartbeat = &heartbeat
		}
	}
	return rec, nil
}

func collectRecordings(rows *sql.Rows) ([]*Recording, error) {
	var recordings []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recordings = append(recordings, rec)
	}
	return recordings, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableFloat(value float64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
