package csvio

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pavelanni/gradeport/internal/model"
)

const (
	colName   = "이름"
	colSchool = "학교"
	colGrade  = "학년"
	colOrg    = "소속"
)

var rosterAliases = map[string]string{
	"이름": colName, "성명": colName, "학생": colName, "name": colName,
	"학교": colSchool, "school": colSchool,
	"학년": colGrade, "grade": colGrade,
	"소속": colOrg, "학원": colOrg, "organization": colOrg, "org": colOrg,
}

// AnswerRow is one student's row of an answer sheet. Answers carry exam
// and question IDs; the caller resolves the student and sets StudentID.
type AnswerRow struct {
	Row     int
	Student model.Student
	Answers []model.Answer
}

// ImportAnswers parses an answer sheet against the exam's questions. Every
// column whose header is a question number holds that question's answers.
// Rows without a name are skipped with a warning.
func ImportAnswers(r io.Reader, examID string, questions []model.Question) ([]AnswerRow, []Warning, error) {
	records, err := readAll(r)
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("answer sheet is empty: %w", model.ErrInvalidArgument)
	}
	header := records[0]
	cols := mapHeader(header, rosterAliases)
	if !cols.has(colName) {
		return nil, nil, fmt.Errorf("answer sheet has no %s column: %w", colName, model.ErrInvalidArgument)
	}

	byNumber := make(map[int]model.Question, len(questions))
	for _, q := range questions {
		byNumber[q.Number] = q
	}

	var warnings []Warning
	questionCols := make(map[int]model.Question)
	for i, h := range header {
		if _, known := rosterAliases[headerKey(h)]; known {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(h, bom)))
		if err != nil {
			warnings = append(warnings, Warning{Row: 1, Column: h, Message: "not a question number, column ignored"})
			continue
		}
		q, ok := byNumber[n]
		if !ok {
			warnings = append(warnings, Warning{Row: 1, Column: h, Message: fmt.Sprintf("no question %d in exam, column ignored", n)})
			continue
		}
		questionCols[i] = q
	}
	colOrder := make([]int, 0, len(questionCols))
	for i := range questionCols {
		colOrder = append(colOrder, i)
	}
	sort.Ints(colOrder)

	var rows []AnswerRow
	for i, rec := range records[1:] {
		rowNum := i + 2
		if isBlank(rec) {
			continue
		}
		name := strings.TrimSpace(cols.get(rec, colName))
		if name == "" {
			warnings = append(warnings, Warning{Row: rowNum, Column: colName, Message: "missing student name, row skipped"})
			continue
		}
		row := AnswerRow{
			Row: rowNum,
			Student: model.Student{
				Name:         name,
				School:       strings.TrimSpace(cols.get(rec, colSchool)),
				Grade:        strings.TrimSpace(cols.get(rec, colGrade)),
				Organization: strings.TrimSpace(cols.get(rec, colOrg)),
			},
		}
		for _, ci := range colOrder {
			if ci >= len(rec) || strings.TrimSpace(rec[ci]) == "" {
				continue
			}
			q := questionCols[ci]
			a := model.Answer{ExamID: examID, QuestionID: q.ID}
			if q.IsEssay() {
				a.Text, a.ScoreReceived = ParseEssayCell(rec[ci], q.Points)
			} else {
				a.Text = strings.TrimSpace(rec[ci])
			}
			row.Answers = append(row.Answers, a)
		}
		rows = append(rows, row)
	}
	return rows, warnings, nil
}

// ParseEssayCell interprets an essay column of an answer sheet. A number
// between 0 and the question's points is a received score; anything else
// is transcribed answer text awaiting manual grading. The sheet format has
// no way to tell a numeric answer from a score, and existing sheets rely
// on exactly this rule.
func ParseEssayCell(cell string, points float64) (string, *float64) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err == nil && v >= 0 && v <= points {
		return "", &v
	}
	return cell, nil
}

// ExportAnswers writes one row per student with one column per question
// number. Graded essay answers are written as their score.
func ExportAnswers(w io.Writer, questions []model.Question, students []model.Student, answers []model.Answer) error {
	ordered := sortedQuestions(questions)
	header := []string{colName, colSchool, colGrade}
	for _, q := range ordered {
		header = append(header, strconv.Itoa(q.Number))
	}

	type slot struct{ student, question string }
	cells := make(map[slot]model.Answer)
	for _, a := range answers {
		k := slot{a.StudentID, a.QuestionID}
		if prev, ok := cells[k]; ok && !a.UpdatedAt.After(prev.UpdatedAt) {
			continue
		}
		cells[k] = a
	}

	records := [][]string{header}
	for _, s := range students {
		rec := []string{s.Name, s.School, s.Grade}
		for _, q := range ordered {
			a, ok := cells[slot{s.ID, q.ID}]
			switch {
			case !ok:
				rec = append(rec, "")
			case q.IsEssay() && a.ScoreReceived != nil:
				rec = append(rec, formatFloat(*a.ScoreReceived))
			default:
				rec = append(rec, a.Text)
			}
		}
		records = append(records, rec)
	}
	return writeAll(w, records)
}

func sortedQuestions(questions []model.Question) []model.Question {
	ordered := append([]model.Question(nil), questions...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Number < ordered[j].Number
	})
	return ordered
}
