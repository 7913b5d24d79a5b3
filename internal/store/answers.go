package store

import (
	"context"
	"database/sql"

	"github.com/pavelanni/gradeport/internal/model"
)

const answerColumns = `id, exam_id, student_id, question_id, text, score_received, created_at, updated_at`

// PutAnswer inserts or updates an answer. An empty ID is generated;
// CreatedAt is kept on update and UpdatedAt is set to now.
func (s *Store) PutAnswer(ctx context.Context, a *model.Answer) error {
	return putAnswer(ctx, s.db, a)
}

// PutAnswers stores answers in one transaction.
func (s *Store) PutAnswers(ctx context.Context, answers []model.Answer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := range answers {
		if err := putAnswer(ctx, tx, &answers[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func putAnswer(ctx context.Context, x execer, a *model.Answer) error {
	if a.ID == "" {
		a.ID = newID()
	}
	t := now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = t
	}
	a.UpdatedAt = t
	_, err := x.ExecContext(ctx,
		`INSERT INTO answers (`+answerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET exam_id = excluded.exam_id, student_id = excluded.student_id,
		   question_id = excluded.question_id, text = excluded.text,
		   score_received = excluded.score_received, updated_at = excluded.updated_at`,
		a.ID, a.ExamID, a.StudentID, a.QuestionID, a.Text, a.ScoreReceived, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

// GetAnswersForExam returns the answers to an exam in insertion order.
func (s *Store) GetAnswersForExam(ctx context.Context, examID string) ([]model.Answer, error) {
	return s.queryAnswers(ctx, `SELECT `+answerColumns+` FROM answers WHERE exam_id = ? ORDER BY rowid`, examID)
}

// ListAnswersByStudent returns a student's answers in insertion order.
func (s *Store) ListAnswersByStudent(ctx context.Context, studentID string) ([]model.Answer, error) {
	return s.queryAnswers(ctx, `SELECT `+answerColumns+` FROM answers WHERE student_id = ? ORDER BY rowid`, studentID)
}

// ListAnswers returns every answer in insertion order.
func (s *Store) ListAnswers(ctx context.Context) ([]model.Answer, error) {
	return s.queryAnswers(ctx, `SELECT `+answerColumns+` FROM answers ORDER BY rowid`)
}

func (s *Store) queryAnswers(ctx context.Context, query string, args ...any) ([]model.Answer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		var score sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.ExamID, &a.StudentID, &a.QuestionID, &a.Text, &score, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if score.Valid {
			a.ScoreReceived = model.Float(score.Float64)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// CountAnswersByStudent returns the number of answers per student ID.
func (s *Store) CountAnswersByStudent(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT student_id, COUNT(*) FROM answers GROUP BY student_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// DeleteAnswers removes answers by ID.
func (s *Store) DeleteAnswers(ctx context.Context, ids []string) error {
	return deleteIn(ctx, s.db, "answers", "id", ids)
}
