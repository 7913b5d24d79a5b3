package csvio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/gradeport/internal/model"
)

func sampleResults() ([]model.Question, []model.ExamResult) {
	questions := []model.Question{
		{ID: "q2", Number: 2, Domain: "문법", Points: 3},
		{ID: "q1", Number: 1, Domain: "문학", Points: 2},
	}
	results := []model.ExamResult{
		{
			Student:    model.Student{Name: "김민수", School: "서울고", Grade: "1"},
			TotalScore: 5, MaxScore: 5, ObjectiveScore: 5, Rank: 1, TotalStudents: 2,
			Domains: map[string]*model.DomainScore{
				"문학": {Score: 2, MaxScore: 2},
				"문법": {Score: 3, MaxScore: 3},
			},
			Items: []model.ItemScore{
				{QuestionID: "q1", Number: 1, Answered: true, Correct: true, Earned: 2},
				{QuestionID: "q2", Number: 2, Answered: true, Correct: true, Earned: 3},
			},
		},
		{
			Student:    model.Student{Name: "이영희", School: "서울고", Grade: "1"},
			TotalScore: 0, MaxScore: 5, Rank: 2, TotalStudents: 2,
			Domains: map[string]*model.DomainScore{
				"문학": {Score: 0, MaxScore: 2},
				"문법": {Score: 0, MaxScore: 3},
			},
			Items: []model.ItemScore{
				{QuestionID: "q1", Number: 1, Answered: true},
				{QuestionID: "q2", Number: 2},
			},
		},
	}
	return questions, results
}

func TestExportResults(t *testing.T) {
	questions, results := sampleResults()
	var buf bytes.Buffer
	require.NoError(t, ExportResults(&buf, questions, results))
	want := "\ufeff이름,학교,학년,총점,만점,객관식,서술형,순위,응시인원,1,2,문학_점수,문학_만점,문법_점수,문법_만점\n" +
		"김민수,서울고,1,5,5,5,0,1,2,2,3,2,2,3,3\n" +
		"이영희,서울고,1,0,5,0,0,2,2,0,,0,2,0,3\n"
	assert.Equal(t, want, buf.String())
}

func TestExportResultsXLSX(t *testing.T) {
	questions, results := sampleResults()
	var buf bytes.Buffer
	require.NoError(t, ExportResultsXLSX(&buf, model.Exam{Name: "3월 모의고사 [국어]"}, questions, results))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	require.Equal(t, []string{"3월 모의고사  국어"}, sheets)
	rows, err := f.GetRows(sheets[0])
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "총점", rows[0][3])
	assert.Equal(t, "김민수", rows[1][0])
	assert.Equal(t, "5", rows[1][3])
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Results", sheetName("  "))
	assert.Equal(t, "a b", sheetName("a/b"))
	assert.Equal(t, 31, len([]rune(sheetName("가나다라마바사아자차카타파하가나다라마바사아자차카타파하가나다라"))))
}
