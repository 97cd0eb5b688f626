package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-admin-api/internal/models"
)

const assignmentSelect = `SELECT a.id, a.employee_id, a.org_unit_id, a.job_position_id, a.assignment_type, a.is_primary, a.allocation,
a.start_date, a.end_date, a.created_at, a.updated_at,
e.full_name AS employee_name, u.code AS org_unit_code, u.name AS org_unit_name, jp.name AS job_position_name
FROM org_assignments a
JOIN employees e ON e.id = a.employee_id
JOIN org_units u ON u.id = a.org_unit_id
LEFT JOIN job_positions jp ON jp.id = a.job_position_id`

// OrgAssignmentRepository persists employee assignments to org units.
type OrgAssignmentRepository struct {
	db *sqlx.DB
}

// NewOrgAssignmentRepository constructs the repository.
func NewOrgAssignmentRepository(db *sqlx.DB) *OrgAssignmentRepository {
	return &OrgAssignmentRepository{db: db}
}

// List returns a page of assignments.
func (r *OrgAssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.OrgAssignment, int, error) {
	var b filterBuilder
	if filter.EmployeeID != nil {
		b.add("a.employee_id = ?", *filter.EmployeeID)
	}
	if filter.OrgUnitID != nil {
		b.add("a.org_unit_id = ?", *filter.OrgUnitID)
	}
	if filter.AssignmentType != "" {
		b.add("a.assignment_type = ?", filter.AssignmentType)
	}
	if filter.ActiveOn != nil {
		b.add("a.start_date <= ? AND (a.end_date IS NULL OR a.end_date >= ?)", *filter.ActiveOn)
	}

	sorts := map[string]string{
		"start_date": "a.start_date",
		"created_at": "a.created_at",
		"employee":   "e.full_name",
		"org_unit":   "u.code",
	}
	query := assignmentSelect + b.where() + orderBy(filter.PageQuery, sorts, "start_date") + limitOffset(filter.PageQuery)

	items := make([]models.OrgAssignment, 0)
	if err := r.db.SelectContext(ctx, &items, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list org assignments: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM org_assignments a"+b.where(), b.args...); err != nil {
		return nil, 0, fmt.Errorf("count org assignments: %w", err)
	}
	return items, total, nil
}

// FindByID loads an assignment with its display names.
func (r *OrgAssignmentRepository) FindByID(ctx context.Context, id models.ID) (*models.OrgAssignment, error) {
	var a models.OrgAssignment
	if err := r.db.GetContext(ctx, &a, assignmentSelect+" WHERE a.id = $1", id); err != nil {
		return nil, translate("find org assignment", err)
	}
	return &a, nil
}

// Create inserts an assignment.
func (r *OrgAssignmentRepository) Create(ctx context.Context, a *models.OrgAssignment) error {
	const query = `INSERT INTO org_assignments (employee_id, org_unit_id, job_position_id, assignment_type, is_primary, allocation, start_date, end_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9) RETURNING id, created_at, updated_at`
	err := r.db.QueryRowxContext(ctx, query,
		a.EmployeeID, a.OrgUnitID, a.JobPositionID, a.AssignmentType, a.IsPrimary, a.Allocation, a.StartDate, a.EndDate, time.Now().UTC(),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return translate("create org assignment", err)
}

// Update overwrites an assignment's mutable columns.
func (r *OrgAssignmentRepository) Update(ctx context.Context, a *models.OrgAssignment) error {
	const query = `UPDATE org_assignments SET org_unit_id = $2, job_position_id = $3, assignment_type = $4, is_primary = $5, allocation = $6,
start_date = $7, end_date = $8, updated_at = $9 WHERE id = $1 RETURNING updated_at`
	err := r.db.QueryRowxContext(ctx, query,
		a.ID, a.OrgUnitID, a.JobPositionID, a.AssignmentType, a.IsPrimary, a.Allocation, a.StartDate, a.EndDate, time.Now().UTC(),
	).Scan(&a.UpdatedAt)
	return translate("update org assignment", err)
}

// Delete removes an assignment.
func (r *OrgAssignmentRepository) Delete(ctx context.Context, id models.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM org_assignments WHERE id = $1`, id)
	if err != nil {
		return translate("delete org assignment", err)
	}
	return expectAffected(res, "delete org assignment")
}
