package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetComparison fetches the cached result for an unordered pair, if any.
func (s *Store) GetComparison(ctx context.Context, weekendKey string, a, b int64) (*ComparisonResult, error) {
	lo, hi := PairKey(a, b)
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+comparisonColumns+`
         FROM comparison_results
         WHERE weekend_key = ? AND recording_a = ? AND recording_b = ?`,
		weekendKey, lo, hi,
	)
	res, err := scanComparison(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get comparison: %w", err)
	}
	return res, nil
}

// EnsureComparison persists a comparison result unless the pair already has
// one, in which case the stored result is returned untouched. The INSERT with
// conflict-ignore plus read-back is a single atomic check-then-write under
// SQLite, which is the mutual-exclusion boundary concurrent pipeline runs
// rely on: two runs racing on the same pair converge on one row.
func (s *Store) EnsureComparison(ctx context.Context, result ComparisonResult) (*ComparisonResult, bool, error) {
	if result.WeekendKey == "" {
		return nil, false, errors.New("weekend key is required")
	}
	lo, hi := PairKey(result.RecordingA, result.RecordingB)
	if lo == hi {
		return nil, false, errors.New("cannot compare a recording with itself")
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO comparison_results (
            weekend_key, recording_a, recording_b, score, deviation_flagged, notified, created_at
        ) VALUES (?, ?, ?, ?, ?, 0, ?)
        ON CONFLICT(weekend_key, recording_a, recording_b) DO NOTHING`,
		result.WeekendKey,
		lo,
		hi,
		result.Score,
		boolToInt(result.DeviationFlagged),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert comparison: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	stored, err := s.GetComparison(ctx, result.WeekendKey, lo, hi)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, errors.New("comparison vanished after insert")
	}
	return stored, inserted > 0, nil
}

// ComparisonsForWeekend returns all results recorded for a weekend group.
func (s *Store) ComparisonsForWeekend(ctx context.Context, weekendKey string) ([]*ComparisonResult, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+comparisonColumns+`
         FROM comparison_results WHERE weekend_key = ?
         ORDER BY recording_a, recording_b`,
		weekendKey,
	)
	if err != nil {
		return nil, fmt.Errorf("query weekend comparisons: %w", err)
	}
	defer rows.Close()
	return collectComparisons(rows)
}

// ComparisonsForRecording returns all results involving one recording.
func (s *Store) ComparisonsForRecording(ctx context.Context, weekendKey string, id int64) ([]*ComparisonResult, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+comparisonColumns+`
         FROM comparison_results
         WHERE weekend_key = ? AND (recording_a = ? OR recording_b = ?)
         ORDER BY recording_a, recording_b`,
		weekendKey, id, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query recording comparisons: %w", err)
	}
	defer rows.Close()
	return collectComparisons(rows)
}

// FlaggedUnnotified returns deviation results that still await delivery.
// This is the sole surface the notification dispatcher consumes.
func (s *Store) FlaggedUnnotified(ctx context.Context) ([]*ComparisonResult, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+comparisonColumns+`
         FROM comparison_results
         WHERE deviation_flagged = 1 AND notified = 0
         ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("query flagged comparisons: %w", err)
	}
	defer rows.Close()
	return collectComparisons(rows)
}

// MarkNotified records that a deviation notice was delivered for a pair.
func (s *Store) MarkNotified(ctx context.Context, weekendKey string, a, b int64) error {
	lo, hi := PairKey(a, b)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE comparison_results SET notified = 1
         WHERE weekend_key = ? AND recording_a = ? AND recording_b = ?`,
		weekendKey, lo, hi,
	)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

const comparisonColumns = "weekend_key, recording_a, recording_b, score, deviation_flagged, notified, created_at"

func scanComparison(scanner interface{ Scan(dest ...any) error }) (*ComparisonResult, error) {
	var (
		weekendKey string
		recordingA int64
		recordingB int64
		score      float64
		flagged    int
		notified   int
		createdRaw string
	)
	if err := scanner.Scan(&weekendKey, &recordingA, &recordingB, &score, &flagged, &notified, &createdRaw); err != nil {
		return nil, err
	}
	res := &ComparisonResult{
		WeekendKey:       weekendKey,
		RecordingA:       recordingA,
		RecordingB:       recordingB,
		Score:            score,
		DeviationFlagged: flagged != 0,
		Notified:         notified != 0,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		res.CreatedAt = created
	}
	return res, nil
}

func collectComparisons(rows *sql.Rows) ([]*ComparisonResult, error) {
	var results []*ComparisonResult
	for rows.Next() {
		res, err := scanComparison(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
