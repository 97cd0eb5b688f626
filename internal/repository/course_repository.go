package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/pkg/database"
)

const courseColumns = `id, code, name_vi, name_en, credits, theory_credits, practical_credits, type, status, org_unit_id,
description, contents, instructor_qualifications, created_at, updated_at`

// CourseRepository persists courses with their prerequisites and syllabus.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns a page of courses without their child collections.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var b filterBuilder
	if filter.Search != "" {
		b.add("(code ILIKE ? OR name_vi ILIKE ? OR name_en ILIKE ?)", containsPattern(filter.Search))
	}
	if filter.Code != "" {
		b.add("code = ?", filter.Code)
	}
	if filter.Status != "" {
		b.add("status = ?", filter.Status)
	} else {
		b.add("status <> ?", models.StatusDeleted)
	}
	if filter.OrgUnitID != nil {
		b.add("org_unit_id = ?", *filter.OrgUnitID)
	}

	sorts := map[string]string{
		"code":       "code",
		"name":       "name_vi",
		"credits":    "credits",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
	query := "SELECT " + courseColumns + " FROM courses" + b.where() + orderBy(filter.PageQuery, sorts, "code") + limitOffset(filter.PageQuery)

	courses := make([]models.Course, 0)
	if err := r.db.SelectContext(ctx, &courses, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses"+b.where(), b.args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID loads a course with prerequisites and syllabus.
func (r *CourseRepository) FindByID(ctx context.Context, id models.ID) (*models.Course, error) {
	var course models.Course
	if err := r.db.GetContext(ctx, &course, "SELECT "+courseColumns+" FROM courses WHERE id = $1", id); err != nil {
		return nil, translate("find course", err)
	}

	const prereqQuery = `SELECT cp.course_id, cp.prerequisite_course_id, cp.prerequisite_type, cp.min_grade, c.code AS prerequisite_code
FROM course_prerequisites cp JOIN courses c ON c.id = cp.prerequisite_course_id WHERE cp.course_id = $1 ORDER BY c.code`
	course.Prerequisites = make([]models.CoursePrerequisite, 0)
	if err := r.db.SelectContext(ctx, &course.Prerequisites, prereqQuery, id); err != nil {
		return nil, fmt.Errorf("list course prerequisites: %w", err)
	}

	const syllabusQuery = `SELECT course_id, week_number, topic, objectives, materials, assignments, duration
FROM course_syllabus WHERE course_id = $1 ORDER BY week_number`
	course.Syllabus = make([]models.SyllabusWeek, 0)
	if err := r.db.SelectContext(ctx, &course.Syllabus, syllabusQuery, id); err != nil {
		return nil, fmt.Errorf("list course syllabus: %w", err)
	}
	return &course, nil
}

// Create inserts a course, its child collections and its DRAFT workflow in one transaction.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		course.Status = models.StatusDraft
		const query = `INSERT INTO courses (code, name_vi, name_en, credits, theory_credits, practical_credits, type, status, org_unit_id,
description, contents, instructor_qualifications, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13) RETURNING id, created_at, updated_at`
		err := tx.QueryRowxContext(ctx, query,
			course.Code, course.NameVi, course.NameEn, course.Credits, course.TheoryCredits, course.PracticalCredits, course.Type,
			course.Status, course.OrgUnitID, course.Description, course.Contents, course.InstructorQualifications, now,
		).Scan(&course.ID, &course.CreatedAt, &course.UpdatedAt)
		if err != nil {
			return translate("create course", err)
		}
		if err := replaceCourseChildren(ctx, tx, course); err != nil {
			return err
		}
		return initWorkflow(ctx, tx, models.EntityCourse, course.ID, "", now)
	})
}

// Update overwrites course columns and replaces prerequisites and syllabus atomically.
// Status is owned by the workflow and is not written here.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const query = `UPDATE courses SET code = $2, name_vi = $3, name_en = $4, credits = $5, theory_credits = $6, practical_credits = $7,
type = $8, org_unit_id = $9, description = $10, contents = $11, instructor_qualifications = $12, updated_at = $13
WHERE id = $1 AND status <> 'DELETED' RETURNING updated_at`
		err := tx.QueryRowxContext(ctx, query,
			course.ID, course.Code, course.NameVi, course.NameEn, course.Credits, course.TheoryCredits, course.PracticalCredits,
			course.Type, course.OrgUnitID, course.Description, course.Contents, course.InstructorQualifications, time.Now().UTC(),
		).Scan(&course.UpdatedAt)
		if err != nil {
			return translate("update course", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM course_prerequisites WHERE course_id = $1`, course.ID); err != nil {
			return translate("clear course prerequisites", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM course_syllabus WHERE course_id = $1`, course.ID); err != nil {
			return translate("clear course syllabus", err)
		}
		return replaceCourseChildren(ctx, tx, course)
	})
}

func replaceCourseChildren(ctx context.Context, tx *sqlx.Tx, course *models.Course) error {
	for _, p := range course.Prerequisites {
		const query = `INSERT INTO course_prerequisites (course_id, prerequisite_course_id, prerequisite_type, min_grade) VALUES ($1, $2, $3, $4)`
		if _, err := tx.ExecContext(ctx, query, course.ID, p.PrerequisiteCourseID, p.PrerequisiteType, p.MinGrade); err != nil {
			return translate("insert course prerequisite", err)
		}
	}
	for _, w := range course.Syllabus {
		const query = `INSERT INTO course_syllabus (course_id, week_number, topic, objectives, materials, assignments, duration) VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if _, err := tx.ExecContext(ctx, query, course.ID, w.WeekNumber, w.Topic, w.Objectives, w.Materials, w.Assignments, w.Duration); err != nil {
			return translate("insert course syllabus", err)
		}
	}
	return nil
}
