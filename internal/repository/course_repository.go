package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NTA1210/learning-management-system-sub002/internal/model"
)

// CourseRepository answers the membership questions the quiz core needs.
// Course management itself (enrollment approval, rosters) lives outside
// this service; these are fast local lookups only.
type CourseRepository struct {
	pool *pgxpool.Pool
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// GetByID retrieves a course by id.
func (r *CourseRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Course, error) {
	course := &model.Course{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, teacher_id, created_at, updated_at
		 FROM courses
		 WHERE id = $1`, id,
	).Scan(&course.ID, &course.Title, &course.TeacherID, &course.CreatedAt, &course.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return course, nil
}

// IsApprovedStudent reports whether the student is an APPROVED member of the course.
func (r *CourseRepository) IsApprovedStudent(ctx context.Context, studentID int, courseID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM course_members
			WHERE course_id = $1 AND student_id = $2 AND status = $3
		 )`, courseID, studentID, model.MemberStatusApproved,
	).Scan(&exists)
	return exists, err
}

// IsTeacherOf reports whether the teacher owns the course.
func (r *CourseRepository) IsTeacherOf(ctx context.Context, teacherID int, courseID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM courses
			WHERE id = $1 AND teacher_id = $2
		 )`, courseID, teacherID,
	).Scan(&exists)
	return exists, err
}

// CountApprovedStudents counts the APPROVED members of the course.
func (r *CourseRepository) CountApprovedStudents(ctx context.Context, courseID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM course_members
		 WHERE course_id = $1 AND status = $2`,
		courseID, model.MemberStatusApproved,
	).Scan(&count)
	return count, err
}
