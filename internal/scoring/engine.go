// Package scoring computes exam results from questions and answers and
// ranks them within an exam.
package scoring

import (
	"sort"

	"github.com/pavelanni/gradeport/internal/model"
)

// Feedback renders the text attached to wrong-answer entries and the
// note shown for unanswered items.
type Feedback interface {
	Objective(correct, chosen, explanation string) string
	Essay(points, received float64, modelAnswer string) string
	NoAnswer() string
}

// Engine scores answer sets. It keeps no state between calls.
type Engine struct {
	feedback Feedback
}

// NewEngine creates an Engine that renders feedback with fb.
func NewEngine(fb Feedback) *Engine {
	return &Engine{feedback: fb}
}

// Compute scores one student's answers against an exam's questions.
// It returns false when the exam, the student or the question set is
// missing, which callers treat as "nothing to compute".
//
// Unanswered questions count toward the maximum score only and are not
// listed as wrong; their item carries the no-answer note instead. When several answers exist for one question the most
// recently updated one is scored.
func (e *Engine) Compute(exam *model.Exam, student *model.Student, questions []model.Question, answers []model.Answer) (model.ExamResult, bool) {
	if exam == nil || student == nil || len(questions) == 0 {
		return model.ExamResult{}, false
	}

	ordered := append([]model.Question(nil), questions...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Number < ordered[j].Number
	})

	res := model.ExamResult{
		Exam:    *exam,
		Student: *student,
		Domains: make(map[string]*model.DomainScore),
	}

	for _, q := range ordered {
		d, ok := res.Domains[q.Domain]
		if !ok {
			d = &model.DomainScore{}
			res.Domains[q.Domain] = d
			res.DomainOrder = append(res.DomainOrder, q.Domain)
		}
		d.MaxScore += q.Points
		d.TotalCount++
		res.MaxScore += q.Points
	}

	latest := latestByQuestion(student.ID, answers)
	for _, q := range ordered {
		a, ok := latest[q.ID]
		if !ok {
			res.Items = append(res.Items, model.ItemScore{QuestionID: q.ID, Number: q.Number, Note: e.noAnswer()})
			continue
		}
		earned, correct := grade(q, a)
		res.Items = append(res.Items, model.ItemScore{
			QuestionID: q.ID,
			Number:     q.Number,
			Answered:   true,
			Correct:    correct,
			Earned:     earned,
		})
		if q.IsEssay() {
			res.EssayScore += earned
		} else {
			res.ObjectiveScore += earned
		}
		res.TotalScore += earned

		d := res.Domains[q.Domain]
		d.Score += earned
		if correct {
			d.CorrectCount++
			continue
		}
		res.Wrong = append(res.Wrong, model.WrongQuestion{
			Question: q,
			Answer:   a,
			Feedback: e.feedbackFor(q, a, earned),
		})
	}
	return res, true
}

// grade returns the points earned for a and whether it counts as correct.
// Essay answers are correct only with full marks.
func grade(q model.Question, a model.Answer) (float64, bool) {
	if q.IsEssay() {
		var earned float64
		if a.ScoreReceived != nil {
			earned = *a.ScoreReceived
		}
		return earned, earned == q.Points
	}
	if a.Text == q.CorrectAnswer {
		return q.Points, true
	}
	return 0, false
}

func (e *Engine) noAnswer() string {
	if e.feedback == nil {
		return ""
	}
	return e.feedback.NoAnswer()
}

func (e *Engine) feedbackFor(q model.Question, a model.Answer, earned float64) string {
	if e.feedback == nil {
		return ""
	}
	if q.IsEssay() {
		modelAnswer := q.CorrectAnswer
		if modelAnswer == model.EssayToken {
			modelAnswer = ""
		}
		return e.feedback.Essay(q.Points, earned, modelAnswer)
	}
	return e.feedback.Objective(q.CorrectAnswer, a.Text, q.Explanations[a.Text])
}

// latestByQuestion indexes the student's answers by question ID, keeping
// the most recently updated one (the first listed on ties).
func latestByQuestion(studentID string, answers []model.Answer) map[string]model.Answer {
	out := make(map[string]model.Answer, len(answers))
	for _, a := range answers {
		if a.StudentID != studentID {
			continue
		}
		if prev, ok := out[a.QuestionID]; ok && !a.UpdatedAt.After(prev.UpdatedAt) {
			continue
		}
		out[a.QuestionID] = a
	}
	return out
}

// ComputeExam scores every student with at least one answer in the exam
// and ranks the batch.
func (e *Engine) ComputeExam(exam *model.Exam, students []model.Student, questions []model.Question, answers []model.Answer) []model.ExamResult {
	byStudent := make(map[string][]model.Answer)
	for _, a := range answers {
		if exam != nil && a.ExamID != exam.ID {
			continue
		}
		byStudent[a.StudentID] = append(byStudent[a.StudentID], a)
	}

	var results []model.ExamResult
	for i := range students {
		own, ok := byStudent[students[i].ID]
		if !ok {
			continue
		}
		if res, ok := e.Compute(exam, &students[i], questions, own); ok {
			results = append(results, res)
		}
	}
	return AssignRanks(results)
}
