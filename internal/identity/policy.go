package identity

import "github.com/pavelanni/gradeport/internal/model"

// Policy decides which of two answers for the same (exam, question) slot
// survives a merge. It returns true when the target's answer is kept.
type Policy func(target, source model.Answer) bool

// KeepTarget always keeps the target's answer. A merge target is assumed
// to be the more complete record.
func KeepTarget(model.Answer, model.Answer) bool {
	return true
}

// KeepMostRecent keeps whichever answer was updated last, the target on ties.
func KeepMostRecent(target, source model.Answer) bool {
	return !source.UpdatedAt.After(target.UpdatedAt)
}

// KeepHighestScore keeps the answer with the higher received score,
// treating ungraded answers as zero. The target wins ties.
func KeepHighestScore(target, source model.Answer) bool {
	return scoreOf(source) <= scoreOf(target)
}

func scoreOf(a model.Answer) float64 {
	if a.ScoreReceived == nil {
		return 0
	}
	return *a.ScoreReceived
}

// PolicyByName resolves a policy name as used in configuration.
// Unknown names return nil and false.
func PolicyByName(name string) (Policy, bool) {
	switch name {
	case "", "keep-target":
		return KeepTarget, true
	case "keep-most-recent":
		return KeepMostRecent, true
	case "keep-highest-score":
		return KeepHighestScore, true
	}
	return nil, false
}
