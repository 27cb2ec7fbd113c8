package store

import (
	"database/sql"
	"fmt"

	"github.com/pavelanni/assessor/internal/model"
)

const importHashPrefix = "import_hash:"

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// setMetadata upserts a key-value pair in the service_metadata table.
func setMetadata(e execer, key, value string) error {
	_, err := e.Exec(
		`INSERT INTO service_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// getMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) getMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM service_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// GetImportedFileHash returns the content hash recorded for an imported
// questions file, or "" if the file was never imported.
func (s *Store) GetImportedFileHash(path string) (string, error) {
	return s.getMetadata(importHashPrefix + path)
}

// ImportQuestions inserts the questions of one file and records its hash in
// a single transaction, so a failed import leaves neither rows nor hash behind.
func (s *Store) ImportQuestions(path, hash string, questions []model.Question) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	for i, q := range questions {
		if _, err := tx.Exec(`INSERT INTO questions (text) VALUES (?)`, q.Text); err != nil {
			return fmt.Errorf("insert question %d: %w", i+1, err)
		}
	}
	if err := setMetadata(tx, importHashPrefix+path, hash); err != nil {
		return fmt.Errorf("record import hash: %w", err)
	}
	return tx.Commit()
}
