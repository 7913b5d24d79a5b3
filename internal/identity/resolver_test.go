package identity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/gradeport/internal/model"
)

// fakeStore is an in-memory Store preserving insertion order.
type fakeStore struct {
	students  []model.Student
	answers   []model.Answer
	nextID    int
	failApply bool
}

func (f *fakeStore) ListStudents(context.Context) ([]model.Student, error) {
	return append([]model.Student(nil), f.students...), nil
}

func (f *fakeStore) GetStudent(_ context.Context, id string) (*model.Student, error) {
	for _, s := range f.students {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) PutStudent(_ context.Context, s *model.Student) error {
	if s.ID == "" {
		f.nextID++
		s.ID = fmt.Sprintf("gen-%d", f.nextID)
	}
	f.students = append(f.students, *s)
	return nil
}

func (f *fakeStore) ListAnswersByStudent(_ context.Context, id string) ([]model.Answer, error) {
	var out []model.Answer
	for _, a := range f.answers {
		if a.StudentID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) CountAnswersByStudent(context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, a := range f.answers {
		counts[a.StudentID]++
	}
	return counts, nil
}

func (f *fakeStore) ApplyMerge(_ context.Context, plan model.MergePlan) error {
	if f.failApply {
		return fmt.Errorf("apply failed")
	}
	discard := make(map[string]bool)
	for _, a := range plan.Discard {
		discard[a.ID] = true
	}
	reassign := make(map[string]bool)
	for _, id := range plan.Reassign {
		reassign[id] = true
	}
	var kept []model.Answer
	for _, a := range f.answers {
		if discard[a.ID] {
			continue
		}
		if reassign[a.ID] {
			a.StudentID = plan.TargetID
		}
		kept = append(kept, a)
	}
	f.answers = kept
	var students []model.Student
	for _, s := range f.students {
		if s.ID != plan.SourceID {
			students = append(students, s)
		}
	}
	f.students = students
	return nil
}

func answer(id, student, question string) model.Answer {
	return model.Answer{ID: id, ExamID: "e1", StudentID: student, QuestionID: question, Text: "1"}
}

func TestFindByName(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{students: []model.Student{
		{ID: "a", Name: "김민수", School: "서울고등학교", Grade: "1학년"},
		{ID: "b", Name: "김민수", School: "서울고교", Grade: "1"},
	}}
	r := New(fs)

	t.Run("exact match wins over normalized", func(t *testing.T) {
		s, err := r.FindByName(ctx, "김민수", "서울고교", "1")
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, "b", s.ID)
	})

	t.Run("normalized fallback returns first match", func(t *testing.T) {
		s, err := r.FindByName(ctx, " 김 민수", "서울 고교", "1 학년 1반")
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, "a", s.ID)
	})

	t.Run("no match", func(t *testing.T) {
		s, err := r.FindByName(ctx, "박지민", "서울고", "1")
		require.NoError(t, err)
		assert.Nil(t, s)
	})
}

func TestEnsure(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{students: []model.Student{{ID: "a", Name: "김민수", School: "서울고", Grade: "1"}}}
	r := New(fs)

	s, created, err := r.Ensure(ctx, model.Student{Name: "김 민수", School: "서울고등학교", Grade: "1학년"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "a", s.ID)

	s, created, err = r.Ensure(ctx, model.Student{Name: "박지민", School: "서울고", Grade: "1"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, s.ID)
	assert.Len(t, fs.students, 2)
}

func TestFindDuplicateGroups(t *testing.T) {
	fs := &fakeStore{students: []model.Student{
		{ID: "1", Name: "이영희", School: "한빛고", Grade: "2"},
		{ID: "2", Name: "박철수", School: "한빛고", Grade: "2"},
		{ID: "3", Name: "이 영희", School: "한빛고등학교", Grade: "2학년"},
		{ID: "4", Name: "이영희 ", School: "한빛고교", Grade: "2"},
		{ID: "5", Name: "박철수", School: "한빛고", Grade: "3"},
		{ID: "6", Name: "최수진", School: "한빛고", Grade: "2"},
		{ID: "7", Name: "최 수진", School: "한빛고", Grade: "2"},
	}}
	groups, err := New(fs).FindDuplicateGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)

	ids := func(g []model.Student) []string {
		var out []string
		for _, s := range g {
			out = append(out, s.ID)
		}
		return out
	}
	assert.Equal(t, []string{"1", "3", "4"}, ids(groups[0]))
	assert.Equal(t, []string{"6", "7"}, ids(groups[1]))
}

func TestMerge(t *testing.T) {
	ctx := context.Background()
	newStore := func() *fakeStore {
		return &fakeStore{
			students: []model.Student{{ID: "A", Name: "김민수"}, {ID: "B", Name: "김 민수"}},
			answers: []model.Answer{
				answer("a1", "A", "q1"),
				answer("b1", "B", "q1"),
				answer("b2", "B", "q2"),
			},
		}
	}

	t.Run("target keeps conflicting slot", func(t *testing.T) {
		fs := newStore()
		rep, err := New(fs).Merge(ctx, "A", "B")
		require.NoError(t, err)
		assert.Equal(t, 1, rep.Reassigned)
		require.Len(t, rep.Discarded, 1)
		assert.Equal(t, "b1", rep.Discarded[0].ID)

		owned, _ := fs.ListAnswersByStudent(ctx, "A")
		var ids []string
		for _, a := range owned {
			ids = append(ids, a.ID)
		}
		assert.ElementsMatch(t, []string{"a1", "b2"}, ids)

		b, _ := fs.GetStudent(ctx, "B")
		assert.Nil(t, b)
	})

	t.Run("self merge", func(t *testing.T) {
		_, err := New(newStore()).Merge(ctx, "A", "A")
		assert.ErrorIs(t, err, model.ErrInvalidArgument)
	})

	t.Run("missing student", func(t *testing.T) {
		_, err := New(newStore()).Merge(ctx, "A", "Z")
		assert.ErrorIs(t, err, model.ErrNotFound)
		_, err = New(newStore()).Merge(ctx, "Z", "A")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("failed apply leaves state unchanged", func(t *testing.T) {
		fs := newStore()
		fs.failApply = true
		_, err := New(fs).Merge(ctx, "A", "B")
		require.Error(t, err)
		assert.Len(t, fs.students, 2)
		assert.Len(t, fs.answers, 3)
	})

	t.Run("most recent policy", func(t *testing.T) {
		fs := newStore()
		now := time.Now()
		fs.answers[0].UpdatedAt = now.Add(-time.Hour)
		fs.answers[1].UpdatedAt = now
		rep, err := New(fs, WithPolicy(KeepMostRecent)).Merge(ctx, "A", "B")
		require.NoError(t, err)
		require.Len(t, rep.Discarded, 1)
		assert.Equal(t, "a1", rep.Discarded[0].ID)
		assert.Equal(t, 2, rep.Reassigned)
		assert.Len(t, fs.answers, 2)
	})
}

func TestPlanMergeHighestScore(t *testing.T) {
	target := []model.Answer{{ID: "t", ExamID: "e", QuestionID: "q", StudentID: "A", ScoreReceived: model.Float(3)}}
	source := []model.Answer{{ID: "s", ExamID: "e", QuestionID: "q", StudentID: "B", ScoreReceived: model.Float(5)}}
	plan := planMerge("A", "B", target, source, KeepHighestScore)
	assert.Equal(t, []string{"s"}, plan.Reassign)
	require.Len(t, plan.Discard, 1)
	assert.Equal(t, "t", plan.Discard[0].ID)
}

func TestPlanMergeTargetDuplicates(t *testing.T) {
	target := []model.Answer{
		{ID: "t1", ExamID: "e", QuestionID: "q", StudentID: "A", Text: "1"},
		{ID: "t2", ExamID: "e", QuestionID: "q", StudentID: "A", Text: "2"},
	}
	source := []model.Answer{{ID: "s", ExamID: "e", QuestionID: "q", StudentID: "B", Text: "3"}}

	keepSource := func(model.Answer, model.Answer) bool { return false }
	plan := planMerge("A", "B", target, source, keepSource)
	assert.Equal(t, []string{"s"}, plan.Reassign)
	require.Len(t, plan.Discard, 2)
	assert.Equal(t, "t1", plan.Discard[0].ID)
	assert.Equal(t, "t2", plan.Discard[1].ID)

	// Keeping the target leaves its own duplicates to the cleanup pass.
	plan = planMerge("A", "B", target, source, KeepTarget)
	assert.Empty(t, plan.Reassign)
	require.Len(t, plan.Discard, 1)
	assert.Equal(t, "s", plan.Discard[0].ID)
}

func TestMergeDuplicates(t *testing.T) {
	fs := &fakeStore{
		students: []model.Student{
			{ID: "1", Name: "이영희", School: "한빛고", Grade: "2"},
			{ID: "2", Name: "이 영희", School: "한빛고", Grade: "2"},
			{ID: "3", Name: "이영희 ", School: "한빛고", Grade: "2"},
			{ID: "4", Name: "박철수", School: "한빛고", Grade: "2"},
		},
		answers: []model.Answer{
			answer("x1", "1", "q1"),
			answer("y1", "2", "q1"),
			answer("y2", "2", "q2"),
			answer("z3", "3", "q3"),
		},
	}
	reports, err := New(fs).MergeDuplicates(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, rep := range reports {
		assert.Equal(t, "2", rep.TargetID)
	}
	assert.Len(t, fs.students, 2)
	counts, _ := fs.CountAnswersByStudent(context.Background())
	assert.Equal(t, 3, counts["2"])
}

func TestPickTargetTieFirstSeen(t *testing.T) {
	group := []model.Student{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	got := pickTarget(group, map[string]int{"a": 1, "b": 2, "c": 2})
	assert.Equal(t, "b", got.ID)
	got = pickTarget(group, map[string]int{})
	assert.Equal(t, "a", got.ID)
}

func TestPolicyByName(t *testing.T) {
	for _, name := range []string{"", "keep-target", "keep-most-recent", "keep-highest-score"} {
		p, ok := PolicyByName(name)
		assert.True(t, ok, name)
		assert.NotNil(t, p, name)
	}
	_, ok := PolicyByName("coin-flip")
	assert.False(t, ok)
}
