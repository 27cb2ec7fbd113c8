package store

import (
	"context"
	"time"

	"github.com/pavelanni/assessor/internal/model"
)

// UpsertOutcome inserts or replaces the outcome for (sessionID, o.QuestionID).
// Any pinned compile timestamp is cleared.
func (s *Store) UpsertOutcome(ctx context.Context, sessionID string, o model.ReviewOutcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outcomes (session_id, question_id, score, reason, stt_accuracy, transcript,
			eye_movement_ratio, violations, cheating_flag, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, question_id) DO UPDATE SET
			score = excluded.score,
			reason = excluded.reason,
			stt_accuracy = excluded.stt_accuracy,
			transcript = excluded.transcript,
			eye_movement_ratio = excluded.eye_movement_ratio,
			violations = excluded.violations,
			cheating_flag = excluded.cheating_flag,
			updated_at = excluded.updated_at`,
		sessionID, o.QuestionID, o.Score, o.Reason, o.STTAccuracy, o.Transcript,
		o.CVMetrics.EyeMovementRatio, o.CVMetrics.Violations, o.CVMetrics.CheatingFlag, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if err := s.touchSession(ctx, tx, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

// ListOutcomes returns the outcomes of a session ordered by question id.
func (s *Store) ListOutcomes(ctx context.Context, sessionID string) ([]model.ReviewOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, score, reason, stt_accuracy, transcript, eye_movement_ratio, violations, cheating_flag
		 FROM outcomes WHERE session_id = ? ORDER BY question_id`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	outcomes := []model.ReviewOutcome{}
	for rows.Next() {
		var o model.ReviewOutcome
		if err := rows.Scan(&o.QuestionID, &o.Score, &o.Reason, &o.STTAccuracy, &o.Transcript,
			&o.CVMetrics.EyeMovementRatio, &o.CVMetrics.Violations, &o.CVMetrics.CheatingFlag); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// ClearOutcomes removes every outcome of a session and keeps the session itself.
func (s *Store) ClearOutcomes(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM outcomes WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	if err := s.touchSession(ctx, tx, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}
