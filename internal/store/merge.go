package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/gradeport/internal/model"
)

// ApplyMerge re-owns, discards and deletes as described by plan in a
// single transaction. Discarded answers are copied to merge_audit.
func (s *Store) ApplyMerge(ctx context.Context, plan model.MergePlan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Re-owning leaves updated_at as written.
	for _, id := range plan.Reassign {
		if _, err := tx.ExecContext(ctx,
			`UPDATE answers SET student_id = ? WHERE id = ?`, plan.TargetID, id,
		); err != nil {
			return fmt.Errorf("reassign answer %s: %w", id, err)
		}
	}
	for _, a := range plan.Discard {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO merge_audit (target_id, source_id, answer_id, exam_id, question_id, text, score_received, merged_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			plan.TargetID, plan.SourceID, a.ID, a.ExamID, a.QuestionID, a.Text, a.ScoreReceived, now(),
		); err != nil {
			return fmt.Errorf("audit answer %s: %w", a.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE id = ?`, a.ID); err != nil {
			return fmt.Errorf("discard answer %s: %w", a.ID, err)
		}
	}
	// Answers the plan did not cover would be orphaned by the delete below.
	var left int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM answers WHERE student_id = ?`, plan.SourceID,
	).Scan(&left); err != nil {
		return err
	}
	if left > 0 {
		return fmt.Errorf("source %s still owns %d answers: %w", plan.SourceID, left, model.ErrInvalidArgument)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = ?`, plan.SourceID); err != nil {
		return fmt.Errorf("delete student %s: %w", plan.SourceID, err)
	}
	return tx.Commit()
}

// MergeAuditEntry is a discarded answer recorded by ApplyMerge.
type MergeAuditEntry struct {
	TargetID string
	SourceID string
	Answer   model.Answer
}

// ListMergeAudit returns the merge audit log, oldest first.
func (s *Store) ListMergeAudit(ctx context.Context) ([]MergeAuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT target_id, source_id, answer_id, exam_id, question_id, text, score_received
		 FROM merge_audit ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []MergeAuditEntry
	for rows.Next() {
		var e MergeAuditEntry
		if err := rows.Scan(&e.TargetID, &e.SourceID, &e.Answer.ID, &e.Answer.ExamID,
			&e.Answer.QuestionID, &e.Answer.Text, &e.Answer.ScoreReceived); err != nil {
			return nil, err
		}
		e.Answer.StudentID = e.SourceID
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
