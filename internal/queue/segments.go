package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertSegment writes the homily segment for a recording, replacing any
// previous artifact. Re-running the pipeline on the same recording must land
// on the same row.
func (s *Store) UpsertSegment(ctx context.Context, seg *HomilySegment) error {
	if seg == nil {
		return errors.New("segment is nil")
	}
	if seg.RecordingID == 0 {
		return errors.New("segment recording id is required")
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO homily_segments (
            recording_id, start_seconds, end_seconds, audio_path, raw_text, normalized_text, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(recording_id) DO UPDATE SET
            start_seconds = excluded.start_seconds,
            end_seconds = excluded.end_seconds,
            audio_path = excluded.audio_path,
            raw_text = excluded.raw_text,
            normalized_text = excluded.normalized_text,
            created_at = excluded.created_at`,
		seg.RecordingID,
		seg.StartSeconds,
		seg.EndSeconds,
		nullableString(seg.AudioPath),
		seg.RawText,
		nullableString(seg.NormalizedText),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert segment: %w", err)
	}
	seg.CreatedAt = now
	return nil
}

// GetSegment fetches the homily segment for a recording. Returns nil when absent.
func (s *Store) GetSegment(ctx context.Context, recordingID int64) (*HomilySegment, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT recording_id, start_seconds, end_seconds, audio_path, raw_text, normalized_text, created_at
         FROM homily_segments WHERE recording_id = ?`,
		recordingID,
	)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	return seg, nil
}

// NormalizedSiblings returns the other recordings in a weekend group that
// carry a normalized segment and have not been excluded from comparison.
func (s *Store) NormalizedSiblings(ctx context.Context, weekendKey string, excludeID int64) ([]*Recording, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+recordingColumns+`
         FROM recordings
         WHERE weekend_key = ?
           AND id != ?
           AND status IN (?, ?, ?, ?, ?)
           AND EXISTS (
               SELECT 1 FROM homily_segments
               WHERE homily_segments.recording_id = recordings.id
                 AND homily_segments.normalized_text IS NOT NULL
           )
         ORDER BY id`,
		weekendKey,
		excludeID,
		StatusNormalized,
		StatusScoring,
		StatusScored,
		StatusFinalizing,
		StatusFinalized,
	)
	if err != nil {
		return nil, fmt.Errorf("query normalized siblings: %w", err)
	}
	defer rows.Close()

	return collectRecordings(rows)
}

func scanSegment(scanner interface{ Scan(dest ...any) error }) (*HomilySegment, error) {
	var (
		recordingID    int64
		startSeconds   float64
		endSeconds     float64
		audioPath      sql.NullString
		rawText        string
		normalizedText sql.NullString
		createdRaw     string
	)
	if err := scanner.Scan(
		&recordingID,
		&startSeconds,
		&endSeconds,
		&audioPath,
		&rawText,
		&normalizedText,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	seg := &HomilySegment{
		RecordingID:    recordingID,
		StartSeconds:   startSeconds,
		EndSeconds:     endSeconds,
		AudioPath:      audioPath.String,
		RawText:        rawText,
		NormalizedText: normalizedText.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		seg.CreatedAt = created
	}
	return seg, nil
}
