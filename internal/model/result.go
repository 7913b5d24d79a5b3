package model

// DomainScore is the per-domain breakdown of an ExamResult.
type DomainScore struct {
	Score        float64 `json:"score"`
	MaxScore     float64 `json:"max_score"`
	CorrectCount int     `json:"correct_count"`
	TotalCount   int     `json:"total_count"`
}

// Accuracy returns CorrectCount/TotalCount, or 0 for an empty domain.
func (d DomainScore) Accuracy() float64 {
	if d.TotalCount == 0 {
		return 0
	}
	return float64(d.CorrectCount) / float64(d.TotalCount)
}

// ItemScore is the outcome of one question in an ExamResult.
type ItemScore struct {
	QuestionID string  `json:"question_id"`
	Number     int     `json:"number"`
	Answered   bool    `json:"answered"`
	Correct    bool    `json:"correct"`
	Earned     float64 `json:"earned"`
	// Note is the localized "no answer" text of unanswered items.
	Note string `json:"note,omitempty"`
}

// WrongQuestion is an entry of the wrong-answer note.
type WrongQuestion struct {
	Question Question `json:"question"`
	Answer   Answer   `json:"answer"`
	Feedback string   `json:"feedback"`
}

// ExamResult is the scored report of one student for one exam.
// It is derived on every request and never persisted.
type ExamResult struct {
	Exam           Exam                    `json:"exam"`
	Student        Student                 `json:"student"`
	TotalScore     float64                 `json:"total_score"`
	MaxScore       float64                 `json:"max_score"`
	ObjectiveScore float64                 `json:"objective_score"`
	EssayScore     float64                 `json:"essay_score"`
	Domains        map[string]*DomainScore `json:"domains"`
	// DomainOrder lists domain names in first-appearance question order.
	DomainOrder []string `json:"domain_order"`
	// Items has one entry per question, ordered by question number.
	Items         []ItemScore     `json:"items"`
	Wrong         []WrongQuestion `json:"wrong"`
	Rank          int             `json:"rank"`
	TotalStudents int             `json:"total_students"`
}

// MergePlan is the complete set of writes of a student merge,
// applied by the store in a single transaction.
type MergePlan struct {
	TargetID string
	SourceID string
	// Reassign lists answer IDs whose owner becomes TargetID.
	Reassign []string
	// Discard lists answers deleted because they lost a conflict.
	Discard []Answer
}

// MergeReport summarizes a completed merge.
type MergeReport struct {
	TargetID   string   `json:"target_id"`
	SourceID   string   `json:"source_id"`
	Reassigned int      `json:"reassigned"`
	Discarded  []Answer `json:"discarded,omitempty"`
}
