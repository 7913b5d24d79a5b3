package store

import (
	"context"
	"database/sql"

	"github.com/pavelanni/gradeport/internal/model"
)

// PutStudent inserts or updates a student. An empty ID is generated.
func (s *Store) PutStudent(ctx context.Context, st *model.Student) error {
	if st.ID == "" {
		st.ID = newID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO students (id, name, school, grade, organization) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, school = excluded.school,
		   grade = excluded.grade, organization = excluded.organization`,
		st.ID, st.Name, st.School, st.Grade, st.Organization,
	)
	return err
}

// GetStudent returns a student by ID, or nil if it does not exist.
func (s *Store) GetStudent(ctx context.Context, id string) (*model.Student, error) {
	var st model.Student
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, school, grade, organization FROM students WHERE id = ?`, id,
	).Scan(&st.ID, &st.Name, &st.School, &st.Grade, &st.Organization)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ListStudents returns all students in insertion order.
func (s *Store) ListStudents(ctx context.Context) ([]model.Student, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, school, grade, organization FROM students ORDER BY rowid`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var students []model.Student
	for rows.Next() {
		var st model.Student
		if err := rows.Scan(&st.ID, &st.Name, &st.School, &st.Grade, &st.Organization); err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// DeleteStudent removes a student and its answers.
func (s *Store) DeleteStudent(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE student_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteStudents removes students by ID. Their answers are left in place.
func (s *Store) DeleteStudents(ctx context.Context, ids []string) error {
	return deleteIn(ctx, s.db, "students", "id", ids)
}
