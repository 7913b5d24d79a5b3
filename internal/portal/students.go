package portal

import (
	"context"
	"fmt"

	"github.com/pavelanni/gradeport/internal/cleanup"
	"github.com/pavelanni/gradeport/internal/model"
)

// DuplicateGroups lists the groups of students sharing an identity key.
func (s *Service) DuplicateGroups(ctx context.Context) ([][]model.Student, error) {
	return s.resolver.FindDuplicateGroups(ctx)
}

// Merge folds sourceID into targetID.
func (s *Service) Merge(ctx context.Context, targetID, sourceID string) (*model.MergeReport, error) {
	return s.resolver.Merge(ctx, targetID, sourceID)
}

// MergeResult is the outcome of MergeDuplicates.
type MergeResult struct {
	Merges          []model.MergeReport `json:"merges"`
	RemovedStudents int                 `json:"removed_students"`
}

// MergeDuplicates merges every duplicate group, then deletes students left
// without answers.
func (s *Service) MergeDuplicates(ctx context.Context) (*MergeResult, error) {
	reports, err := s.resolver.MergeDuplicates(ctx)
	res := &MergeResult{Merges: reports}
	if err != nil {
		return res, fmt.Errorf("merge duplicates: %w", err)
	}
	res.RemovedStudents, err = s.dedup.RemoveStudentsWithNoAnswers(ctx)
	if err != nil {
		return res, fmt.Errorf("remove students without answers: %w", err)
	}
	s.logger.Info("merged duplicate students", "merges", len(reports), "removed_students", res.RemovedStudents)
	return res, nil
}

// Cleanup removes duplicate and orphaned answers.
func (s *Service) Cleanup(ctx context.Context) (cleanup.Summary, error) {
	return s.dedup.Run(ctx)
}
