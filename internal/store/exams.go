package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pavelanni/gradeport/internal/model"
)

const examColumns = `id, name, organizer, school, grade, date, series`

// PutExam inserts or updates an exam. An empty ID is generated.
func (s *Store) PutExam(ctx context.Context, e *model.Exam) error {
	if e.ID == "" {
		e.ID = newID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exams (`+examColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, organizer = excluded.organizer,
		   school = excluded.school, grade = excluded.grade, date = excluded.date, series = excluded.series`,
		e.ID, e.Name, e.Organizer, e.School, e.Grade, e.Date, e.Series,
	)
	return err
}

// GetExamByID returns an exam, or nil if it does not exist.
func (s *Store) GetExamByID(ctx context.Context, id string) (*model.Exam, error) {
	var e model.Exam
	err := s.db.QueryRowContext(ctx, `SELECT `+examColumns+` FROM exams WHERE id = ?`, id).
		Scan(&e.ID, &e.Name, &e.Organizer, &e.School, &e.Grade, &e.Date, &e.Series)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListExams returns all exams by date, newest first.
func (s *Store) ListExams(ctx context.Context) ([]model.Exam, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+examColumns+` FROM exams ORDER BY date DESC, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Name, &e.Organizer, &e.School, &e.Grade, &e.Date, &e.Series); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// DeleteExam removes an exam together with its questions and answers.
func (s *Store) DeleteExam(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE exam_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE exam_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM exams WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

const questionColumns = `id, exam_id, number, kind, domain, sub_domain, passage, points, correct_answer, explanations`

type scanner interface {
	Scan(dest ...any) error
}

func scanQuestion(sc scanner) (model.Question, error) {
	var q model.Question
	var explanations string
	if err := sc.Scan(&q.ID, &q.ExamID, &q.Number, &q.Kind, &q.Domain, &q.SubDomain,
		&q.Passage, &q.Points, &q.CorrectAnswer, &explanations); err != nil {
		return q, err
	}
	if explanations != "" && explanations != "{}" {
		if err := json.Unmarshal([]byte(explanations), &q.Explanations); err != nil {
			return q, fmt.Errorf("decode explanations of question %s: %w", q.ID, err)
		}
	}
	return q, nil
}

// PutQuestion inserts or updates a question. An empty ID is generated.
func (s *Store) PutQuestion(ctx context.Context, q *model.Question) error {
	return putQuestion(ctx, s.db, q)
}

func putQuestion(ctx context.Context, x execer, q *model.Question) error {
	if q.ID == "" {
		q.ID = newID()
	}
	explanations := "{}"
	if len(q.Explanations) > 0 {
		b, err := json.Marshal(q.Explanations)
		if err != nil {
			return err
		}
		explanations = string(b)
	}
	_, err := x.ExecContext(ctx,
		`INSERT INTO questions (`+questionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET exam_id = excluded.exam_id, number = excluded.number,
		   kind = excluded.kind, domain = excluded.domain, sub_domain = excluded.sub_domain,
		   passage = excluded.passage, points = excluded.points,
		   correct_answer = excluded.correct_answer, explanations = excluded.explanations`,
		q.ID, q.ExamID, q.Number, q.Kind, q.Domain, q.SubDomain, q.Passage, q.Points, q.CorrectAnswer, explanations,
	)
	return err
}

// ReplaceQuestions replaces an exam's question set. Questions whose number
// already exists keep their ID so existing answers stay attached; answers
// to questions that disappear are deleted with them.
func (s *Store) ReplaceQuestions(ctx context.Context, examID string, questions []model.Question) error {
	existing, err := s.GetQuestionsForExam(ctx, examID)
	if err != nil {
		return err
	}
	byNumber := make(map[int]string, len(existing))
	for _, q := range existing {
		byNumber[q.Number] = q.ID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	keep := make(map[string]bool)
	for i := range questions {
		q := &questions[i]
		q.ExamID = examID
		if id, ok := byNumber[q.Number]; ok && q.ID == "" && !keep[id] {
			q.ID = id
		}
		if err := putQuestion(ctx, tx, q); err != nil {
			return fmt.Errorf("put question %d: %w", q.Number, err)
		}
		keep[q.ID] = true
	}
	var stale []string
	for _, q := range existing {
		if !keep[q.ID] {
			stale = append(stale, q.ID)
		}
	}
	if err := deleteIn(ctx, tx, "answers", "question_id", stale); err != nil {
		return err
	}
	if err := deleteIn(ctx, tx, "questions", "id", stale); err != nil {
		return err
	}
	return tx.Commit()
}

// GetQuestionsForExam returns an exam's questions ordered by number.
func (s *Store) GetQuestionsForExam(ctx context.Context, examID string) ([]model.Question, error) {
	return s.queryQuestions(ctx, `SELECT `+questionColumns+` FROM questions WHERE exam_id = ? ORDER BY number, rowid`, examID)
}

// ListAllQuestions returns every question of every exam.
func (s *Store) ListAllQuestions(ctx context.Context) ([]model.Question, error) {
	return s.queryQuestions(ctx, `SELECT `+questionColumns+` FROM questions ORDER BY exam_id, number, rowid`)
}

func (s *Store) queryQuestions(ctx context.Context, query string, args ...any) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// DeleteQuestion removes a question and its answers.
func (s *Store) DeleteQuestion(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE question_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}
