package portal

import (
	"context"
	"fmt"
	"io"

	"github.com/pavelanni/gradeport/internal/csvio"
	"github.com/pavelanni/gradeport/internal/model"
	"github.com/pavelanni/gradeport/internal/scoring"
)

// examData is a consistent snapshot of one exam.
type examData struct {
	exam      *model.Exam
	questions []model.Question
	students  []model.Student
	answers   []model.Answer
}

func (s *Service) load(ctx context.Context, examID string) (*examData, error) {
	exam, err := s.exam(ctx, examID)
	if err != nil {
		return nil, err
	}
	questions, err := s.store.GetQuestionsForExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	answers, err := s.store.GetAnswersForExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return &examData{exam: exam, questions: questions, students: students, answers: answers}, nil
}

func (s *Service) engine(fb scoring.Feedback) *scoring.Engine {
	if fb == nil && s.catalog != nil {
		fb = s.catalog.Translator()
	}
	return scoring.NewEngine(fb)
}

// ExamResults scores and ranks every student who answered the exam.
// A nil fb uses the service's default language.
func (s *Service) ExamResults(ctx context.Context, examID string, fb scoring.Feedback) ([]model.ExamResult, error) {
	d, err := s.load(ctx, examID)
	if err != nil {
		return nil, err
	}
	return s.engine(fb).ComputeExam(d.exam, d.students, d.questions, d.answers), nil
}

// StudentResult returns one student's ranked result for the exam.
func (s *Service) StudentResult(ctx context.Context, examID, studentID string, fb scoring.Feedback) (*model.ExamResult, error) {
	results, err := s.ExamResults(ctx, examID, fb)
	if err != nil {
		return nil, err
	}
	for i := range results {
		if results[i].Student.ID == studentID {
			return &results[i], nil
		}
	}
	return nil, fmt.Errorf("result of student %q in exam %q: %w", studentID, examID, model.ErrNotFound)
}

// ExportQuestions writes the exam's question sheet.
func (s *Service) ExportQuestions(ctx context.Context, examID string, w io.Writer) error {
	if _, err := s.exam(ctx, examID); err != nil {
		return err
	}
	questions, err := s.store.GetQuestionsForExam(ctx, examID)
	if err != nil {
		return fmt.Errorf("get questions: %w", err)
	}
	return csvio.ExportQuestions(w, questions)
}

// ExportAnswers writes the answer sheet of every student who answered.
func (s *Service) ExportAnswers(ctx context.Context, examID string, w io.Writer) error {
	d, err := s.load(ctx, examID)
	if err != nil {
		return err
	}
	answered := make(map[string]bool)
	for _, a := range d.answers {
		answered[a.StudentID] = true
	}
	var students []model.Student
	for _, st := range d.students {
		if answered[st.ID] {
			students = append(students, st)
		}
	}
	return csvio.ExportAnswers(w, d.questions, students, d.answers)
}

// ExportResults writes the ranked result table as CSV.
func (s *Service) ExportResults(ctx context.Context, examID string, w io.Writer) error {
	d, err := s.load(ctx, examID)
	if err != nil {
		return err
	}
	results := s.engine(nil).ComputeExam(d.exam, d.students, d.questions, d.answers)
	return csvio.ExportResults(w, d.questions, results)
}

// ExportResultsXLSX writes the ranked result table as a workbook.
func (s *Service) ExportResultsXLSX(ctx context.Context, examID string, w io.Writer) error {
	d, err := s.load(ctx, examID)
	if err != nil {
		return err
	}
	results := s.engine(nil).ComputeExam(d.exam, d.students, d.questions, d.answers)
	return csvio.ExportResultsXLSX(w, *d.exam, d.questions, results)
}
