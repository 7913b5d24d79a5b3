package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// Store is the SQLite record store for exams, questions, students and answers.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exams (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		organizer TEXT NOT NULL DEFAULT '',
		school TEXT NOT NULL DEFAULT '',
		grade TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL DEFAULT '',
		series TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		number INTEGER NOT NULL DEFAULT 0,
		kind TEXT NOT NULL DEFAULT 'objective',
		domain TEXT NOT NULL DEFAULT '',
		sub_domain TEXT NOT NULL DEFAULT '',
		passage TEXT NOT NULL DEFAULT '',
		points REAL NOT NULL DEFAULT 0,
		correct_answer TEXT NOT NULL DEFAULT '',
		explanations TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS questions_exam ON questions(exam_id, number);

	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		school TEXT NOT NULL DEFAULT '',
		grade TEXT NOT NULL DEFAULT '',
		organization TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS answers (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		score_received REAL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS answers_exam ON answers(exam_id);
	CREATE INDEX IF NOT EXISTS answers_student ON answers(student_id);

	CREATE TABLE IF NOT EXISTS merge_audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target_id TEXT NOT NULL,
		source_id TEXT NOT NULL,
		answer_id TEXT NOT NULL,
		exam_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		text TEXT NOT NULL,
		score_received REAL,
		merged_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		exam_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		sha256 TEXT NOT NULL,
		imported_at DATETIME NOT NULL,
		PRIMARY KEY (exam_id, kind, sha256)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func newID() string {
	return uuid.NewString()
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// deleteIn deletes rows of table whose column value is in ids, in chunks
// that stay below SQLite's bound-parameter limit.
func deleteIn(ctx context.Context, x execer, table, column string, ids []string) error {
	const chunk = 500
	for start := 0; start < len(ids); start += chunk {
		end := min(start+chunk, len(ids))
		part := ids[start:end]
		args := make([]any, len(part))
		for i, id := range part {
			args[i] = id
		}
		query := fmt.Sprintf(`DELETE FROM %s WHERE %s IN (?%s)`, table, column, strings.Repeat(",?", len(part)-1))
		if _, err := x.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}
