package model

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is returned for requests that can never succeed, such as a self-merge.
	ErrInvalidArgument = errors.New("invalid argument")
)

// QuestionKind distinguishes objective (multiple choice) from essay questions.
type QuestionKind string

const (
	KindObjective QuestionKind = "objective"
	KindEssay     QuestionKind = "essay"
)

// EssayToken is the literal written in the answer column of essay questions.
// It doubles as the "essay, ungraded" placeholder in stored model answers.
const EssayToken = "서술형"

// Exam is a single sitting of a test for one school and grade.
type Exam struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Organizer string `json:"organizer"`
	School    string `json:"school"`
	Grade     string `json:"grade"`
	Date      string `json:"date"`
	Series    string `json:"series"`
}

// Question is one item of an exam. Number is unique within the exam only.
type Question struct {
	ID        string       `json:"id"`
	ExamID    string       `json:"exam_id"`
	Number    int          `json:"number"`
	Kind      QuestionKind `json:"kind"`
	Domain    string       `json:"domain"`
	SubDomain string       `json:"sub_domain"`
	Passage   string       `json:"passage"`
	Points    float64      `json:"points"`
	// CorrectAnswer holds the correct choice digit for objective questions
	// and the model answer text for essay questions.
	CorrectAnswer string `json:"correct_answer"`
	// Explanations maps a choice index ("1".."5") to its explanation text.
	Explanations map[string]string `json:"explanations,omitempty"`
}

// IsEssay reports whether the question is graded manually.
func (q Question) IsEssay() bool {
	return q.Kind == KindEssay
}

// Student is a person on an organization's roster.
type Student struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	School       string `json:"school"`
	Grade        string `json:"grade"`
	Organization string `json:"organization"`
}

// Answer is a student's response to one question.
type Answer struct {
	ID         string `json:"id"`
	ExamID     string `json:"exam_id"`
	StudentID  string `json:"student_id"`
	QuestionID string `json:"question_id"`
	// Text is the selected choice for objective questions and the
	// transcribed answer for essay questions.
	Text string `json:"text"`
	// ScoreReceived is set by manual grading of essay answers.
	ScoreReceived *float64  `json:"score_received,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Float returns a pointer to v, for building ScoreReceived values.
func Float(v float64) *float64 {
	return &v
}
