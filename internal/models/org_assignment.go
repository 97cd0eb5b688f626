package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssignmentType classifies an employee's role in an org unit.
type AssignmentType string

const (
	AssignmentAdmin    AssignmentType = "admin"
	AssignmentAcademic AssignmentType = "academic"
	AssignmentSupport  AssignmentType = "support"
)

// Valid reports whether t is a known assignment type.
func (t AssignmentType) Valid() bool {
	switch t {
	case AssignmentAdmin, AssignmentAcademic, AssignmentSupport:
		return true
	}
	return false
}

// OrgAssignment places an employee in an org unit with a job position.
// Allocation is a percentage in (0, 100].
type OrgAssignment struct {
	ID             ID              `db:"id" json:"id"`
	EmployeeID     ID              `db:"employee_id" json:"employee_id"`
	OrgUnitID      ID              `db:"org_unit_id" json:"org_unit_id"`
	JobPositionID  *ID             `db:"job_position_id" json:"job_position_id,omitempty"`
	AssignmentType AssignmentType  `db:"assignment_type" json:"assignment_type"`
	IsPrimary      bool            `db:"is_primary" json:"is_primary"`
	Allocation     decimal.Decimal `db:"allocation" json:"allocation"`
	StartDate      Date            `db:"start_date" json:"start_date"`
	EndDate        *Date           `db:"end_date" json:"end_date"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
	EmployeeName   string          `db:"employee_name" json:"employee_name,omitempty"`
	OrgUnitCode    string          `db:"org_unit_code" json:"org_unit_code,omitempty"`
	OrgUnitName    string          `db:"org_unit_name" json:"org_unit_name,omitempty"`
	JobPosition    *string         `db:"job_position_name" json:"job_position_name,omitempty"`
}

// AssignmentFilter captures list criteria.
type AssignmentFilter struct {
	EmployeeID     *ID
	OrgUnitID      *ID
	AssignmentType AssignmentType
	ActiveOn       *Date
	PageQuery
}
