package store

import (
	"context"
	"database/sql"
	"time"
)

// CreateSession registers a new review session.
func (s *Store) CreateSession(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO review_sessions (id, created_at, expires_at) VALUES (?, ?, ?)`,
		id, now, now.Add(s.sessionTTL),
	)
	return err
}

// SessionExists reports whether id is a live session. Expired sessions are
// removed on lookup.
func (s *Store) SessionExists(ctx context.Context, id string) (bool, error) {
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx, `SELECT expires_at FROM review_sessions WHERE id = ?`, id).Scan(&expiresAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if time.Now().After(expiresAt) {
		_ = s.DeleteSession(ctx, id)
		return false, nil
	}
	return true, nil
}

// DeleteSession removes a session and its outcomes.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM outcomes WHERE session_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM review_sessions WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// CleanupExpiredSessions removes all expired sessions and their outcomes.
func (s *Store) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM outcomes WHERE session_id IN (SELECT id FROM review_sessions WHERE expires_at < ?)`, now,
	); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM review_sessions WHERE expires_at < ?`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// PinReviewedAt returns the compile timestamp of the session, setting it to
// now if the session has not been compiled since its last change.
func (s *Store) PinReviewedAt(ctx context.Context, id string, now time.Time) (time.Time, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, err
	}
	defer tx.Rollback()

	var reviewedAt *time.Time
	if err := tx.QueryRowContext(ctx, `SELECT reviewed_at FROM review_sessions WHERE id = ?`, id).Scan(&reviewedAt); err != nil {
		return time.Time{}, err
	}
	if reviewedAt != nil {
		return reviewedAt.UTC(), nil
	}
	now = now.UTC().Truncate(time.Second)
	if _, err := tx.ExecContext(ctx, `UPDATE review_sessions SET reviewed_at = ? WHERE id = ?`, now, id); err != nil {
		return time.Time{}, err
	}
	return now, tx.Commit()
}

func (s *Store) touchSession(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE review_sessions SET expires_at = ?, reviewed_at = NULL WHERE id = ?`,
		time.Now().UTC().Add(s.sessionTTL), id,
	)
	return err
}
