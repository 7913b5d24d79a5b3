package csvio

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pavelanni/gradeport/internal/model"
)

const (
	colNumber    = "번호"
	colType      = "유형"
	colDomain    = "영역"
	colSubDomain = "세부영역"
	colPassage   = "지문"
	colPoints    = "배점"
	colAnswer    = "정답"
	colChoice    = "해설"
)

const (
	typeObjective = "객관식"
	typeEssay     = "서술형"
)

// choiceCount is the number of choice columns.
const choiceCount = 5

// QuestionHeader is the header row written by ExportQuestions.
var QuestionHeader = []string{
	colNumber, colType, colDomain, colSubDomain, colPassage, colPoints, colAnswer,
	colChoice + "1", colChoice + "2", colChoice + "3", colChoice + "4", colChoice + "5",
}

var questionAliases = func() map[string]string {
	m := map[string]string{
		"번호": colNumber, "문항": colNumber, "문항번호": colNumber, "number": colNumber, "no": colNumber,
		"유형": colType, "문항유형": colType, "type": colType, "kind": colType,
		"영역": colDomain, "대영역": colDomain, "domain": colDomain,
		"세부영역": colSubDomain, "소영역": colSubDomain, "subdomain": colSubDomain,
		"지문": colPassage, "참고": colPassage, "passage": colPassage,
		"배점": colPoints, "점수": colPoints, "points": colPoints, "score": colPoints,
		"정답": colAnswer, "답": colAnswer, "answer": colAnswer, "correct": colAnswer,
	}
	for i := 1; i <= choiceCount; i++ {
		n := strconv.Itoa(i)
		for _, prefix := range []string{"해설", "선지", "보기", "choice", "explanation"} {
			m[prefix+n] = colChoice + n
		}
	}
	return m
}()

// ImportQuestions parses a question sheet for examID. Cells that cannot be
// parsed default to zero or empty and are reported as warnings; only an
// unreadable file or a header without number and answer columns fails.
func ImportQuestions(r io.Reader, examID string) ([]model.Question, []Warning, error) {
	records, err := readAll(r)
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("question sheet is empty: %w", model.ErrInvalidArgument)
	}
	cols := mapHeader(records[0], questionAliases)
	if !cols.has(colNumber) && !cols.has(colAnswer) {
		return nil, nil, fmt.Errorf("question sheet has no %s or %s column: %w", colNumber, colAnswer, model.ErrInvalidArgument)
	}

	var questions []model.Question
	var warnings []Warning
	for i, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		q, ws := parseQuestion(rec, cols, i+2)
		q.ExamID = examID
		questions = append(questions, q)
		warnings = append(warnings, ws...)
	}
	return questions, warnings, nil
}

func parseQuestion(rec []string, cols columns, row int) (model.Question, []Warning) {
	var warnings []Warning
	warn := func(col, format string, args ...any) {
		warnings = append(warnings, Warning{Row: row, Column: col, Message: fmt.Sprintf(format, args...)})
	}

	q := model.Question{
		Domain:    cols.get(rec, colDomain),
		SubDomain: cols.get(rec, colSubDomain),
		Passage:   cols.get(rec, colPassage),
	}

	numCell := strings.TrimSpace(cols.get(rec, colNumber))
	if n, err := strconv.Atoi(numCell); err == nil {
		q.Number = n
	} else {
		warn(colNumber, "invalid number %q, using 0", numCell)
	}

	pointsCell := strings.TrimSpace(cols.get(rec, colPoints))
	if p, err := strconv.ParseFloat(pointsCell, 64); err == nil && p >= 0 {
		q.Points = p
	} else {
		warn(colPoints, "invalid points %q, using 0", pointsCell)
	}

	kind, ok := parseKind(cols.get(rec, colType))
	if !ok {
		warn(colType, "unknown type %q, using %s", cols.get(rec, colType), typeObjective)
	}
	q.Kind = kind

	answer := strings.TrimSpace(cols.get(rec, colAnswer))
	var choices [choiceCount]string
	for i := range choices {
		choices[i] = explanationCell(cols.get(rec, colChoice+strconv.Itoa(i+1)))
	}

	if kind == model.KindEssay {
		q.CorrectAnswer = choices[0]
		if !essayPlaceholder(answer) {
			q.CorrectAnswer = cols.get(rec, colAnswer)
		}
		return q, warnings
	}

	q.CorrectAnswer = answer
	for i, c := range choices {
		if c == "" {
			continue
		}
		if q.Explanations == nil {
			q.Explanations = make(map[string]string)
		}
		q.Explanations[strconv.Itoa(i+1)] = c
	}
	return q, warnings
}

// parseKind maps a type cell to a kind. Empty or unknown values are
// objective; unknown values report false.
func parseKind(cell string) (model.QuestionKind, bool) {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case typeEssay, "essay", "서술", "주관식":
		return model.KindEssay, true
	case typeObjective, "objective", "객관", "":
		return model.KindObjective, true
	}
	return model.KindObjective, false
}

// essayPlaceholder reports whether an essay row's answer cell holds no
// model answer of its own.
func essayPlaceholder(answer string) bool {
	if answer == "" || answer == explanationPlaceholder {
		return true
	}
	kind, ok := parseKind(answer)
	return ok && kind == model.KindEssay
}

func explanationCell(s string) string {
	if strings.TrimSpace(s) == explanationPlaceholder {
		return ""
	}
	return s
}

// ExportQuestions writes questions in QuestionHeader layout. An objective
// answer is a choice number and is written trimmed, as import reads it.
func ExportQuestions(w io.Writer, questions []model.Question) error {
	records := [][]string{QuestionHeader}
	for _, q := range questions {
		rec := []string{
			strconv.Itoa(q.Number),
			typeObjective,
			q.Domain,
			q.SubDomain,
			q.Passage,
			formatFloat(q.Points),
			strings.TrimSpace(q.CorrectAnswer),
			"", "", "", "", "",
		}
		if q.IsEssay() {
			rec[1] = typeEssay
			rec[6] = model.EssayToken
			rec[7] = q.CorrectAnswer
		} else {
			for i := 0; i < choiceCount; i++ {
				rec[7+i] = q.Explanations[strconv.Itoa(i+1)]
			}
		}
		records = append(records, rec)
	}
	return writeAll(w, records)
}
