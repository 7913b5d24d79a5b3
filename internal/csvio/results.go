package csvio

import (
	"io"
	"strconv"

	"github.com/pavelanni/gradeport/internal/model"
)

const (
	colTotal     = "총점"
	colMax       = "만점"
	colObjective = "객관식"
	colEssay     = "서술형"
	colRank      = "순위"
	colCohort    = "응시인원"

	domainScoreSuffix = "_점수"
	domainMaxSuffix   = "_만점"
)

// resultTable lays out results as typed cells: strings, ints or float64s.
// Unanswered questions are left empty.
func resultTable(questions []model.Question, results []model.ExamResult) [][]any {
	ordered := sortedQuestions(questions)
	var domains []string
	seen := make(map[string]bool)
	for _, q := range ordered {
		if !seen[q.Domain] {
			seen[q.Domain] = true
			domains = append(domains, q.Domain)
		}
	}

	header := []any{colName, colSchool, colGrade, colTotal, colMax, colObjective, colEssay, colRank, colCohort}
	for _, q := range ordered {
		header = append(header, strconv.Itoa(q.Number))
	}
	for _, d := range domains {
		header = append(header, d+domainScoreSuffix, d+domainMaxSuffix)
	}

	table := [][]any{header}
	for _, r := range results {
		row := []any{
			r.Student.Name, r.Student.School, r.Student.Grade,
			r.TotalScore, r.MaxScore, r.ObjectiveScore, r.EssayScore, r.Rank, r.TotalStudents,
		}
		items := make(map[string]model.ItemScore, len(r.Items))
		for _, it := range r.Items {
			items[it.QuestionID] = it
		}
		for _, q := range ordered {
			if it, ok := items[q.ID]; ok && it.Answered {
				row = append(row, it.Earned)
			} else {
				row = append(row, "")
			}
		}
		for _, d := range domains {
			var score, maxScore float64
			if ds, ok := r.Domains[d]; ok {
				score, maxScore = ds.Score, ds.MaxScore
			}
			row = append(row, score, maxScore)
		}
		table = append(table, row)
	}
	return table
}

// ExportResults writes one row per result: totals, rank, the points earned
// on every question and a score/max column pair per domain.
func ExportResults(w io.Writer, questions []model.Question, results []model.ExamResult) error {
	table := resultTable(questions, results)
	records := make([][]string, len(table))
	for i, row := range table {
		rec := make([]string, len(row))
		for j, cell := range row {
			rec[j] = cellString(cell)
		}
		records[i] = rec
	}
	return writeAll(w, records)
}

func cellString(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case int:
		return strconv.Itoa(c)
	case float64:
		return formatFloat(c)
	}
	return ""
}
