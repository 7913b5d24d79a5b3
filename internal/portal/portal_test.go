package portal

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/gradeport/internal/i18n"
	"github.com/pavelanni/gradeport/internal/identity"
	"github.com/pavelanni/gradeport/internal/model"
	"github.com/pavelanni/gradeport/internal/store"
)

const questionSheet = "번호,유형,영역,세부영역,지문,배점,정답,해설1,해설2,해설3,해설4,해설5\n" +
	"1,객관식,문학,현대시,,2,3,오답1,오답2,정답,오답4,오답5\n" +
	"2,객관식,문법,,,3,1,정답,b,c,d,e\n" +
	"3,서술형,문학,,,5,서술형,모범 답안,,,,\n"

const answerSheet = "이름,학교,학년,1,2,3\n" +
	"김민수,서울고등학교,1학년,3,2,4\n" +
	"이영희,서울고,1,1,1,5\n" +
	" 김 민수,서울고교,1 학년 1반,3,1,\n"

func newTestService(t *testing.T, opts ...identity.Option) (*Service, *store.Store) {
	t.Helper()
	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	catalog, err := i18n.Load("ko")
	require.NoError(t, err)
	return New(st, catalog, nil, opts...), st
}

func seedService(t *testing.T, svc *Service) model.Exam {
	t.Helper()
	ctx := context.Background()
	exam := model.Exam{Name: "3월 모의고사", Date: "2026-03-12"}
	require.NoError(t, svc.CreateExam(ctx, &exam))

	res, err := svc.ImportQuestions(ctx, exam.ID, strings.NewReader(questionSheet), false)
	require.NoError(t, err)
	require.Equal(t, 3, res.Questions)

	res, err = svc.ImportAnswers(ctx, exam.ID, strings.NewReader(answerSheet), false)
	require.NoError(t, err)
	require.Equal(t, 2, res.CreatedStudents)
	require.Equal(t, 6, res.Answers)
	return exam
}

func TestCreateExamRequiresName(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.CreateExam(context.Background(), &model.Exam{})
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestDeleteExam(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	exam := seedService(t, svc)

	require.NoError(t, svc.DeleteExam(ctx, exam.ID))
	answers, err := st.ListAnswers(ctx)
	require.NoError(t, err)
	assert.Empty(t, answers)
	assert.ErrorIs(t, svc.DeleteExam(ctx, exam.ID), model.ErrNotFound)
}

func TestImportSkipsSameFile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	exam := seedService(t, svc)

	res, err := svc.ImportQuestions(ctx, exam.ID, strings.NewReader(questionSheet), false)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	res, err = svc.ImportAnswers(ctx, exam.ID, strings.NewReader(answerSheet), false)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	res, err = svc.ImportAnswers(ctx, exam.ID, strings.NewReader(answerSheet), true)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Zero(t, res.CreatedStudents)
	assert.Zero(t, res.Duplicates)
}

func TestImportUnknownExam(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ImportQuestions(context.Background(), "missing", strings.NewReader(questionSheet), false)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestImportAnswersWithoutQuestions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	exam := model.Exam{Name: "empty"}
	require.NoError(t, svc.CreateExam(ctx, &exam))

	_, err := svc.ImportAnswers(ctx, exam.ID, strings.NewReader(answerSheet), false)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestExamResults(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	exam := seedService(t, svc)

	results, err := svc.ExamResults(ctx, exam.ID, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// 김민수: q1 correct (2), q2 corrected by the later row (3), essay 4 of 5.
	first := results[0]
	assert.Equal(t, "김민수", first.Student.Name)
	assert.Equal(t, 9.0, first.TotalScore)
	assert.Equal(t, 10.0, first.MaxScore)
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, 2, first.TotalStudents)
	require.Len(t, first.Wrong, 1)
	assert.Equal(t, 3, first.Wrong[0].Question.Number)
	assert.Contains(t, first.Wrong[0].Feedback, "모범 답안")

	second := results[1]
	assert.Equal(t, "이영희", second.Student.Name)
	assert.Equal(t, 8.0, second.TotalScore)
	assert.Equal(t, 2, second.Rank)
	require.Len(t, second.Wrong, 1)
	assert.Equal(t, "정답은 3번이고 선택한 답은 1번입니다. 해설: 오답1", second.Wrong[0].Feedback)
}

func TestStudentResult(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	exam := seedService(t, svc)

	students, err := st.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, students, 2)

	en, err := i18n.Load("en")
	require.NoError(t, err)
	res, err := svc.StudentResult(ctx, exam.ID, students[1].ID, en.Translator("en"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rank)
	assert.NotContains(t, res.Wrong[0].Feedback, "정답은")

	_, err = svc.StudentResult(ctx, exam.ID, "nobody", nil)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = svc.StudentResult(ctx, "missing", students[0].ID, nil)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestExports(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	exam := seedService(t, svc)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportQuestions(ctx, exam.ID, &buf))
	assert.Contains(t, buf.String(), "3,서술형,문학,,,5,서술형,모범 답안")

	buf.Reset()
	require.NoError(t, svc.ExportAnswers(ctx, exam.ID, &buf))
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(buf.String(), "\ufeff")), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "김민수,서울고등학교,1학년,3,1,4", strings.TrimSpace(lines[1]))

	buf.Reset()
	require.NoError(t, svc.ExportResults(ctx, exam.ID, &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "\ufeff"))
	assert.Contains(t, buf.String(), "문학_점수")

	buf.Reset()
	require.NoError(t, svc.ExportResultsXLSX(ctx, exam.ID, &buf))
	assert.NotZero(t, buf.Len())
}

func TestMergeDuplicates(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	exam := seedService(t, svc)

	// A student entered by hand under a spelling that normalizes alike.
	dup := model.Student{Name: "김민 수", School: "서울고", Grade: "1"}
	require.NoError(t, st.PutStudent(ctx, &dup))
	questions, err := st.GetQuestionsForExam(ctx, exam.ID)
	require.NoError(t, err)
	require.NoError(t, st.PutAnswers(ctx, []model.Answer{
		{ExamID: exam.ID, StudentID: dup.ID, QuestionID: questions[0].ID, Text: "5"},
	}))
	// And one who never answered.
	idle := model.Student{Name: "박지훈", School: "부산고", Grade: "2"}
	require.NoError(t, st.PutStudent(ctx, &idle))

	groups, err := svc.DuplicateGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 2)

	res, err := svc.MergeDuplicates(ctx)
	require.NoError(t, err)
	require.Len(t, res.Merges, 1)
	assert.Equal(t, dup.ID, res.Merges[0].SourceID)
	require.Len(t, res.Merges[0].Discarded, 1)
	assert.Equal(t, "5", res.Merges[0].Discarded[0].Text)
	assert.Equal(t, 1, res.RemovedStudents)

	students, err := st.ListStudents(ctx)
	require.NoError(t, err)
	assert.Len(t, students, 2)

	audit, err := st.ListMergeAudit(ctx)
	require.NoError(t, err)
	assert.Len(t, audit, 1)
}

func TestMergeDuplicatesKeepMostRecent(t *testing.T) {
	svc, st := newTestService(t, identity.WithPolicy(identity.KeepMostRecent))
	ctx := context.Background()
	exam := seedService(t, svc)
	questions, err := st.GetQuestionsForExam(ctx, exam.ID)
	require.NoError(t, err)

	// Two more spellings of 이영희. The seeded record keeps the most answers
	// and absorbs b first, then c.
	b := model.Student{Name: "이 영희", School: "서울고교", Grade: "1학년"}
	c := model.Student{Name: "이영 희", School: "서울고", Grade: "1 학년"}
	require.NoError(t, st.PutStudent(ctx, &b))
	require.NoError(t, st.PutStudent(ctx, &c))

	// b answers question 1 before c does.
	require.NoError(t, st.PutAnswers(ctx, []model.Answer{
		{ExamID: exam.ID, StudentID: b.ID, QuestionID: questions[0].ID, Text: "2"},
	}))
	require.NoError(t, st.PutAnswers(ctx, []model.Answer{
		{ExamID: exam.ID, StudentID: c.ID, QuestionID: questions[0].ID, Text: "4"},
	}))

	res, err := svc.MergeDuplicates(ctx)
	require.NoError(t, err)
	require.Len(t, res.Merges, 2)
	assert.Equal(t, b.ID, res.Merges[0].SourceID)
	assert.Equal(t, c.ID, res.Merges[1].SourceID)

	students, err := st.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, students, 2)
	target := students[1]
	require.Equal(t, "이영희", target.Name)

	answers, err := st.ListAnswersByStudent(ctx, target.ID)
	require.NoError(t, err)
	var got []string
	for _, a := range answers {
		if a.QuestionID == questions[0].ID {
			got = append(got, a.Text)
		}
	}
	assert.Equal(t, []string{"4"}, got)
}

func TestMergeSelf(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Merge(context.Background(), "a", "a")
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestCleanupOrphans(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	exam := seedService(t, svc)

	questions, err := st.GetQuestionsForExam(ctx, exam.ID)
	require.NoError(t, err)
	require.NoError(t, st.PutAnswers(ctx, []model.Answer{
		{ExamID: exam.ID, StudentID: "ghost", QuestionID: questions[0].ID, Text: "1"},
		{ExamID: "gone", StudentID: "ghost", QuestionID: "gone", Text: "1"},
	}))

	sum, err := svc.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Orphans)
	assert.Zero(t, sum.Duplicates)

	sum, err = svc.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.Orphans)
}
