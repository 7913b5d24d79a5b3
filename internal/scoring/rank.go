package scoring

import (
	"sort"

	"github.com/pavelanni/gradeport/internal/model"
)

// AssignRanks orders results by total score, highest first, and assigns
// competition ranks: equal scores share a rank and the next distinct score
// takes its 1-based position ([90 90 80] ranks [1 1 3]). Equal scores keep
// their input order. The input slice is not modified.
func AssignRanks(results []model.ExamResult) []model.ExamResult {
	ranked := append([]model.ExamResult(nil), results...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalScore > ranked[j].TotalScore
	})
	for i := range ranked {
		ranked[i].TotalStudents = len(ranked)
		if i > 0 && ranked[i].TotalScore == ranked[i-1].TotalScore {
			ranked[i].Rank = ranked[i-1].Rank
			continue
		}
		ranked[i].Rank = i + 1
	}
	return ranked
}
