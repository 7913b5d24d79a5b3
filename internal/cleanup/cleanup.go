// Package cleanup keeps the answer store consistent: it collapses
// duplicate answers, removes orphaned ones and clears merge residue.
// Every pass is idempotent and safe to run at any time.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/pavelanni/gradeport/internal/model"
)

// Store is the record-store capability set the passes need.
type Store interface {
	ListExams(ctx context.Context) ([]model.Exam, error)
	ListAllQuestions(ctx context.Context) ([]model.Question, error)
	ListStudents(ctx context.Context) ([]model.Student, error)
	ListAnswers(ctx context.Context) ([]model.Answer, error)
	DeleteAnswers(ctx context.Context, ids []string) error
	DeleteStudents(ctx context.Context, ids []string) error
}

// Summary reports the outcome of Run.
type Summary struct {
	Duplicates int `json:"duplicates"`
	Orphans    int `json:"orphans"`
}

// Deduplicator runs the cleanup passes against a store.
type Deduplicator struct {
	store  Store
	logger *slog.Logger
}

// New creates a Deduplicator. A nil logger uses slog.Default.
func New(s Store, logger *slog.Logger) *Deduplicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{store: s, logger: logger}
}

type triple struct {
	examID, studentID, questionID string
}

// RemoveDuplicateAnswers keeps, for every (exam, student, question), only
// the most recently updated answer and returns how many were removed.
// On equal UpdatedAt the answer listed first by the store survives.
func (d *Deduplicator) RemoveDuplicateAnswers(ctx context.Context) (int, error) {
	answers, err := d.store.ListAnswers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list answers: %w", err)
	}
	ids := duplicateIDs(answers)
	if len(ids) == 0 {
		return 0, nil
	}
	if err := d.store.DeleteAnswers(ctx, ids); err != nil {
		return 0, fmt.Errorf("delete duplicate answers: %w", err)
	}
	d.logger.Info("removed duplicate answers", "count", len(ids))
	return len(ids), nil
}

// duplicateIDs returns the IDs of every answer that is not the latest of its triple.
func duplicateIDs(answers []model.Answer) []string {
	groups := make(map[triple][]model.Answer)
	var order []triple
	for _, a := range answers {
		k := triple{a.ExamID, a.StudentID, a.QuestionID}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], a)
	}

	var ids []string
	for _, k := range order {
		g := groups[k]
		if len(g) < 2 {
			continue
		}
		sort.SliceStable(g, func(i, j int) bool {
			return g[i].UpdatedAt.After(g[j].UpdatedAt)
		})
		for _, a := range g[1:] {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// RemoveOrphanedAnswers deletes answers whose exam, student or question
// no longer exists and returns how many were removed.
func (d *Deduplicator) RemoveOrphanedAnswers(ctx context.Context) (int, error) {
	exams, err := d.store.ListExams(ctx)
	if err != nil {
		return 0, fmt.Errorf("list exams: %w", err)
	}
	questions, err := d.store.ListAllQuestions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list questions: %w", err)
	}
	students, err := d.store.ListStudents(ctx)
	if err != nil {
		return 0, fmt.Errorf("list students: %w", err)
	}
	answers, err := d.store.ListAnswers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list answers: %w", err)
	}

	examSet := make(map[string]bool, len(exams))
	for _, e := range exams {
		examSet[e.ID] = true
	}
	questionSet := make(map[string]bool, len(questions))
	for _, q := range questions {
		questionSet[q.ID] = true
	}
	studentSet := make(map[string]bool, len(students))
	for _, s := range students {
		studentSet[s.ID] = true
	}

	var ids []string
	for _, a := range answers {
		if !examSet[a.ExamID] || !studentSet[a.StudentID] || !questionSet[a.QuestionID] {
			ids = append(ids, a.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := d.store.DeleteAnswers(ctx, ids); err != nil {
		return 0, fmt.Errorf("delete orphaned answers: %w", err)
	}
	d.logger.Info("removed orphaned answers", "count", len(ids))
	return len(ids), nil
}

// RemoveStudentsWithNoAnswers deletes every student without answers.
// Run it only after answers have been loaded, typically after a merge
// batch; a freshly registered student would otherwise be removed.
func (d *Deduplicator) RemoveStudentsWithNoAnswers(ctx context.Context) (int, error) {
	students, err := d.store.ListStudents(ctx)
	if err != nil {
		return 0, fmt.Errorf("list students: %w", err)
	}
	answers, err := d.store.ListAnswers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list answers: %w", err)
	}

	active := make(map[string]bool)
	for _, a := range answers {
		active[a.StudentID] = true
	}
	var ids []string
	for _, s := range students {
		if !active[s.ID] {
			ids = append(ids, s.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := d.store.DeleteStudents(ctx, ids); err != nil {
		return 0, fmt.Errorf("delete students: %w", err)
	}
	d.logger.Info("removed students without answers", "count", len(ids))
	return len(ids), nil
}

// Run removes duplicate answers and then orphaned ones.
func (d *Deduplicator) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	var err error
	if sum.Duplicates, err = d.RemoveDuplicateAnswers(ctx); err != nil {
		return sum, err
	}
	if sum.Orphans, err = d.RemoveOrphanedAnswers(ctx); err != nil {
		return sum, err
	}
	return sum, nil
}
