// Package identity resolves student identities: it finds existing
// students for a roster entry, groups probable duplicates and merges them.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pavelanni/gradeport/internal/model"
	"github.com/pavelanni/gradeport/internal/normalize"
)

// Store is the record-store capability set the resolver needs.
type Store interface {
	ListStudents(ctx context.Context) ([]model.Student, error)
	GetStudent(ctx context.Context, id string) (*model.Student, error)
	PutStudent(ctx context.Context, s *model.Student) error
	ListAnswersByStudent(ctx context.Context, studentID string) ([]model.Answer, error)
	CountAnswersByStudent(ctx context.Context) (map[string]int, error)
	ApplyMerge(ctx context.Context, plan model.MergePlan) error
}

type slotKey struct {
	examID     string
	questionID string
}

// Resolver finds, groups and merges student records.
type Resolver struct {
	store  Store
	policy Policy
	logger *slog.Logger

	// mu serializes merges issued through this resolver.
	mu sync.Mutex
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPolicy sets the merge conflict policy. The default is KeepTarget.
func WithPolicy(p Policy) Option {
	return func(r *Resolver) {
		if p != nil {
			r.policy = p
		}
	}
}

// WithLogger sets the logger used for merge audit records.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Resolver over the given store.
func New(s Store, opts ...Option) *Resolver {
	r := &Resolver{store: s, policy: KeepTarget, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindByName returns the student matching the raw (name, school, grade)
// triple, falling back to the first student with the same identity key.
// It returns nil and no error when nothing matches.
func (r *Resolver) FindByName(ctx context.Context, name, school, grade string) (*model.Student, error) {
	students, err := r.store.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	if s := findIn(students, name, school, grade); s != nil {
		return s, nil
	}
	return nil, nil
}

func findIn(students []model.Student, name, school, grade string) *model.Student {
	for i := range students {
		s := &students[i]
		if s.Name == name && s.School == school && s.Grade == grade {
			return s
		}
	}
	key := normalize.IdentityKey(name, school, grade)
	for i := range students {
		s := &students[i]
		if normalize.IdentityKey(s.Name, s.School, s.Grade) == key {
			return s
		}
	}
	return nil
}

// Ensure returns the existing student matching s, or stores s as a new
// student. The returned bool reports whether a record was created.
func (r *Resolver) Ensure(ctx context.Context, s model.Student) (*model.Student, bool, error) {
	found, err := r.FindByName(ctx, s.Name, s.School, s.Grade)
	if err != nil {
		return nil, false, err
	}
	if found != nil {
		return found, false, nil
	}
	if err := r.store.PutStudent(ctx, &s); err != nil {
		return nil, false, fmt.Errorf("create student %q: %w", s.Name, err)
	}
	r.logger.Info("created student", "id", s.ID, "name", s.Name, "school", s.School, "grade", s.Grade)
	return &s, true, nil
}

// FindDuplicateGroups partitions all students by identity key and returns
// the groups with two or more members. Groups are ordered by their first
// member; members keep store order.
func (r *Resolver) FindDuplicateGroups(ctx context.Context) ([][]model.Student, error) {
	students, err := r.store.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return groupByKey(students), nil
}

func groupByKey(students []model.Student) [][]model.Student {
	index := make(map[string]int)
	var groups [][]model.Student
	for _, s := range students {
		key := normalize.IdentityKey(s.Name, s.School, s.Grade)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], s)
	}

	dups := groups[:0]
	for _, g := range groups {
		if len(g) >= 2 {
			dups = append(dups, g)
		}
	}
	return dups
}

// Merge moves every answer of sourceID to targetID and deletes the source
// student. When both own an answer for the same exam and question the
// resolver's policy picks the survivor; the other one is discarded and
// reported. The store applies the whole merge atomically.
func (r *Resolver) Merge(ctx context.Context, targetID, sourceID string) (*model.MergeReport, error) {
	if targetID == sourceID {
		return nil, fmt.Errorf("merge student %q into itself: %w", targetID, model.ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range []string{targetID, sourceID} {
		s, err := r.store.GetStudent(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get student %q: %w", id, err)
		}
		if s == nil {
			return nil, fmt.Errorf("student %q: %w", id, model.ErrNotFound)
		}
	}

	targetAnswers, err := r.store.ListAnswersByStudent(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("list answers of %q: %w", targetID, err)
	}
	sourceAnswers, err := r.store.ListAnswersByStudent(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list answers of %q: %w", sourceID, err)
	}

	plan := planMerge(targetID, sourceID, targetAnswers, sourceAnswers, r.policy)
	if err := r.store.ApplyMerge(ctx, plan); err != nil {
		return nil, fmt.Errorf("apply merge %q -> %q: %w", sourceID, targetID, err)
	}

	for _, a := range plan.Discard {
		r.logger.Warn("discarded conflicting answer during merge",
			"target_id", targetID,
			"source_id", sourceID,
			"answer_id", a.ID,
			"exam_id", a.ExamID,
			"question_id", a.QuestionID,
			"owner_id", a.StudentID,
			"text", a.Text,
		)
	}
	r.logger.Info("merged students",
		"target_id", targetID,
		"source_id", sourceID,
		"reassigned", len(plan.Reassign),
		"discarded", len(plan.Discard),
	)

	return &model.MergeReport{
		TargetID:   targetID,
		SourceID:   sourceID,
		Reassigned: len(plan.Reassign),
		Discarded:  plan.Discard,
	}, nil
}

// planMerge computes the writes of a merge without touching the store.
// When the source wins a slot, every target answer in that slot is
// discarded, including duplicates the target already held.
func planMerge(targetID, sourceID string, target, source []model.Answer, policy Policy) model.MergePlan {
	plan := model.MergePlan{TargetID: targetID, SourceID: sourceID}

	owned := make(map[slotKey]model.Answer, len(target))
	shadowed := make(map[slotKey][]model.Answer)
	for _, a := range target {
		k := slotKey{a.ExamID, a.QuestionID}
		if _, dup := owned[k]; dup {
			shadowed[k] = append(shadowed[k], a)
			continue
		}
		owned[k] = a
	}

	for _, a := range source {
		k := slotKey{a.ExamID, a.QuestionID}
		existing, conflict := owned[k]
		switch {
		case !conflict:
			plan.Reassign = append(plan.Reassign, a.ID)
			// A second source answer for the same slot conflicts with this one.
			owned[k] = a
		case policy(existing, a):
			plan.Discard = append(plan.Discard, a)
		default:
			plan.Discard = append(plan.Discard, existing)
			plan.Discard = append(plan.Discard, shadowed[k]...)
			delete(shadowed, k)
			if existing.StudentID != targetID {
				plan.Reassign = without(plan.Reassign, existing.ID)
			}
			plan.Reassign = append(plan.Reassign, a.ID)
			owned[k] = a
		}
	}
	return plan
}

// MergeDuplicates merges every duplicate group into its member with the
// most answers, the first-seen member winning ties. Residue cleanup is
// left to the caller.
func (r *Resolver) MergeDuplicates(ctx context.Context) ([]model.MergeReport, error) {
	groups, err := r.FindDuplicateGroups(ctx)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, nil
	}
	counts, err := r.store.CountAnswersByStudent(ctx)
	if err != nil {
		return nil, fmt.Errorf("count answers: %w", err)
	}

	var reports []model.MergeReport
	for _, g := range groups {
		target := pickTarget(g, counts)
		for _, s := range g {
			if s.ID == target.ID {
				continue
			}
			rep, err := r.Merge(ctx, target.ID, s.ID)
			if err != nil {
				return reports, err
			}
			reports = append(reports, *rep)
		}
	}
	return reports, nil
}

func pickTarget(group []model.Student, counts map[string]int) model.Student {
	best := group[0]
	for _, s := range group[1:] {
		if counts[s.ID] > counts[best.ID] {
			best = s
		}
	}
	return best
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
