package store

import (
	"context"
	"database/sql"
)

// ImportedFile reports whether a file with this hash was already imported
// for the exam as kind ("questions" or "answers").
func (s *Store) ImportedFile(ctx context.Context, examID, kind, sha256 string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM imported_files WHERE exam_id = ? AND kind = ? AND sha256 = ?`, examID, kind, sha256,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// RecordImportedFile remembers an imported file hash.
func (s *Store) RecordImportedFile(ctx context.Context, examID, kind, sha256 string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO imported_files (exam_id, kind, sha256, imported_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(exam_id, kind, sha256) DO UPDATE SET imported_at = excluded.imported_at`,
		examID, kind, sha256, now(),
	)
	return err
}
