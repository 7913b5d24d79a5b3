// Package portal wires the store, identity resolution, cleanup, scoring and
// CSV interchange into the operations used by the CLI and the HTTP API.
package portal

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"

	"github.com/pavelanni/gradeport/internal/cleanup"
	"github.com/pavelanni/gradeport/internal/csvio"
	"github.com/pavelanni/gradeport/internal/i18n"
	"github.com/pavelanni/gradeport/internal/identity"
	"github.com/pavelanni/gradeport/internal/model"
)

// Store is everything the service needs from the record store.
type Store interface {
	identity.Store
	cleanup.Store

	PutExam(ctx context.Context, e *model.Exam) error
	GetExamByID(ctx context.Context, id string) (*model.Exam, error)
	DeleteExam(ctx context.Context, id string) error
	ReplaceQuestions(ctx context.Context, examID string, questions []model.Question) error
	GetQuestionsForExam(ctx context.Context, examID string) ([]model.Question, error)
	GetAnswersForExam(ctx context.Context, examID string) ([]model.Answer, error)
	PutAnswers(ctx context.Context, answers []model.Answer) error
	ImportedFile(ctx context.Context, examID, kind, sha256 string) (bool, error)
	RecordImportedFile(ctx context.Context, examID, kind, sha256 string) error
}

const (
	kindQuestions = "questions"
	kindAnswers   = "answers"
)

// Service implements the gradeport operations.
type Service struct {
	store    Store
	resolver *identity.Resolver
	dedup    *cleanup.Deduplicator
	catalog  *i18n.Catalog
	logger   *slog.Logger
}

// New creates a Service. The catalog supplies feedback text when callers
// do not pass their own; opts configure the identity resolver.
func New(s Store, catalog *i18n.Catalog, logger *slog.Logger, opts ...identity.Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]identity.Option{identity.WithLogger(logger)}, opts...)
	return &Service{
		store:    s,
		resolver: identity.New(s, opts...),
		dedup:    cleanup.New(s, logger),
		catalog:  catalog,
		logger:   logger,
	}
}

// ImportResult summarizes an import.
type ImportResult struct {
	Skipped         bool            `json:"skipped"`
	Questions       int             `json:"questions,omitempty"`
	Answers         int             `json:"answers,omitempty"`
	CreatedStudents int             `json:"created_students,omitempty"`
	Duplicates      int             `json:"duplicates_removed,omitempty"`
	Warnings        []csvio.Warning `json:"warnings,omitempty"`
}

// CreateExam stores a new exam or updates an existing one.
func (s *Service) CreateExam(ctx context.Context, e *model.Exam) error {
	if e.Name == "" {
		return fmt.Errorf("exam name is required: %w", model.ErrInvalidArgument)
	}
	if err := s.store.PutExam(ctx, e); err != nil {
		return fmt.Errorf("put exam: %w", err)
	}
	s.logger.Info("stored exam", "exam_id", e.ID, "name", e.Name)
	return nil
}

// ListExams returns every exam, newest first.
func (s *Service) ListExams(ctx context.Context) ([]model.Exam, error) {
	return s.store.ListExams(ctx)
}

// DeleteExam removes an exam with its questions and answers.
func (s *Service) DeleteExam(ctx context.Context, examID string) error {
	if _, err := s.exam(ctx, examID); err != nil {
		return err
	}
	if err := s.store.DeleteExam(ctx, examID); err != nil {
		return fmt.Errorf("delete exam %q: %w", examID, err)
	}
	s.logger.Info("deleted exam", "exam_id", examID)
	return nil
}

func (s *Service) exam(ctx context.Context, examID string) (*model.Exam, error) {
	exam, err := s.store.GetExamByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam %q: %w", examID, err)
	}
	if exam == nil {
		return nil, fmt.Errorf("exam %q: %w", examID, model.ErrNotFound)
	}
	return exam, nil
}

// readHashed reads r fully and returns its content with a hex SHA-256.
func readHashed(r io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", err
	}
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}

func (s *Service) alreadyImported(ctx context.Context, examID, kind, hash string, force bool) (bool, error) {
	if force {
		return false, nil
	}
	seen, err := s.store.ImportedFile(ctx, examID, kind, hash)
	if err != nil {
		return false, fmt.Errorf("check import history: %w", err)
	}
	if seen {
		s.logger.Info("file already imported, skipping", "exam_id", examID, "kind", kind, "sha256", hash)
	}
	return seen, nil
}

func (s *Service) logWarnings(examID, kind string, warnings []csvio.Warning) {
	for _, w := range warnings {
		s.logger.Warn("import warning", "exam_id", examID, "kind", kind, "row", w.Row, "column", w.Column, "message", w.Message)
	}
}

// ImportQuestions replaces the exam's question set with the sheet read
// from r. A sheet identical to one already imported is skipped unless
// force is set.
func (s *Service) ImportQuestions(ctx context.Context, examID string, r io.Reader, force bool) (*ImportResult, error) {
	if _, err := s.exam(ctx, examID); err != nil {
		return nil, err
	}
	data, hash, err := readHashed(r)
	if err != nil {
		return nil, fmt.Errorf("read question sheet: %w", err)
	}
	seen, err := s.alreadyImported(ctx, examID, kindQuestions, hash, force)
	if err != nil || seen {
		return &ImportResult{Skipped: seen}, err
	}

	questions, warnings, err := csvio.ImportQuestions(bytes.NewReader(data), examID)
	if err != nil {
		return nil, fmt.Errorf("parse question sheet: %w", err)
	}
	s.logWarnings(examID, kindQuestions, warnings)

	if err := s.store.ReplaceQuestions(ctx, examID, questions); err != nil {
		return nil, fmt.Errorf("store questions: %w", err)
	}
	if err := s.store.RecordImportedFile(ctx, examID, kindQuestions, hash); err != nil {
		return nil, fmt.Errorf("record import: %w", err)
	}
	s.logger.Info("imported questions", "exam_id", examID, "count", len(questions), "warnings", len(warnings))
	return &ImportResult{Questions: len(questions), Warnings: warnings}, nil
}

// ImportAnswers loads an answer sheet. Each row's student is resolved by
// identity key and created when unknown. A student's existing answer to
// the same question is overwritten.
func (s *Service) ImportAnswers(ctx context.Context, examID string, r io.Reader, force bool) (*ImportResult, error) {
	if _, err := s.exam(ctx, examID); err != nil {
		return nil, err
	}
	questions, err := s.store.GetQuestionsForExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("exam %q has no questions: %w", examID, model.ErrInvalidArgument)
	}
	data, hash, err := readHashed(r)
	if err != nil {
		return nil, fmt.Errorf("read answer sheet: %w", err)
	}
	seen, err := s.alreadyImported(ctx, examID, kindAnswers, hash, force)
	if err != nil || seen {
		return &ImportResult{Skipped: seen}, err
	}

	rows, warnings, err := csvio.ImportAnswers(bytes.NewReader(data), examID, questions)
	if err != nil {
		return nil, fmt.Errorf("parse answer sheet: %w", err)
	}
	s.logWarnings(examID, kindAnswers, warnings)

	existing, err := s.store.GetAnswersForExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}
	type slot struct{ student, question string }
	current := make(map[slot]model.Answer, len(existing))
	for _, a := range existing {
		current[slot{a.StudentID, a.QuestionID}] = a
	}

	res := &ImportResult{Warnings: warnings}
	var answers []model.Answer
	// A later row for the same student and question replaces the earlier one.
	pending := make(map[slot]int)
	for _, row := range rows {
		student, created, err := s.resolver.Ensure(ctx, row.Student)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row.Row, err)
		}
		if created {
			res.CreatedStudents++
		}
		for _, a := range row.Answers {
			a.StudentID = student.ID
			k := slot{student.ID, a.QuestionID}
			if prev, ok := current[k]; ok {
				a.ID = prev.ID
				a.CreatedAt = prev.CreatedAt
			}
			if i, ok := pending[k]; ok {
				answers[i] = a
				continue
			}
			pending[k] = len(answers)
			answers = append(answers, a)
		}
	}
	if err := s.store.PutAnswers(ctx, answers); err != nil {
		return nil, fmt.Errorf("store answers: %w", err)
	}
	res.Answers = len(answers)

	// Answers stored before this import may still collide.
	res.Duplicates, err = s.dedup.RemoveDuplicateAnswers(ctx)
	if err != nil {
		return nil, fmt.Errorf("remove duplicate answers: %w", err)
	}
	if err := s.store.RecordImportedFile(ctx, examID, kindAnswers, hash); err != nil {
		return nil, fmt.Errorf("record import: %w", err)
	}
	s.logger.Info("imported answers",
		"exam_id", examID,
		"answers", res.Answers,
		"created_students", res.CreatedStudents,
		"warnings", len(warnings),
	)
	return res, nil
}
