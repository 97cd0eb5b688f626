package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a lookup or mutation matches no row.
var ErrNotFound = errors.New("record not found")

// ConstraintKind classifies an integrity violation.
type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintCheck      ConstraintKind = "check"
	ConstraintExclusion  ConstraintKind = "exclusion"
	ConstraintNotNull    ConstraintKind = "not_null"
)

// ConstraintError is a tagged integrity violation raised by the database.
type ConstraintError struct {
	Kind       ConstraintKind
	Constraint string
	Field      string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s violation on %s (%s)", e.Kind, e.Field, e.Constraint)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// constraintFields maps named constraints to the input field they guard.
var constraintFields = map[string]string{
	"org_units_code_key":                      "code",
	"org_units_parent_id_fkey":                "parent_id",
	"org_units_not_self_parent":               "parent_id",
	"org_units_valid_window":                  "effective_to",
	"org_unit_relations_parent_id_fkey":       "parent_id",
	"org_unit_relations_child_id_fkey":        "child_id",
	"org_unit_relations_key_unique":           "key",
	"org_unit_relations_not_self":             "child_id",
	"org_unit_relations_type_check":           "relation_type",
	"org_unit_relations_valid_window":         "effective_to",
	"org_assignments_employee_id_fkey":        "employee_id",
	"org_assignments_org_unit_id_fkey":        "org_unit_id",
	"org_assignments_job_position_id_fkey":    "job_position_id",
	"org_assignments_allocation_range":        "allocation",
	"org_assignments_valid_window":            "end_date",
	"courses_code_key":                        "code",
	"courses_org_unit_id_fkey":                "org_unit_id",
	"course_prerequisites_prerequisite_fkey":  "prerequisite_course_id",
	"course_prerequisites_not_self":           "prerequisite_course_id",
	"programs_code_version_key":               "code",
	"programs_org_unit_id_fkey":               "org_unit_id",
	"programs_priority_check":                 "priority",
	"workflows_priority_check":                "priority",
	"program_blocks_program_id_fkey":          "program_id",
	"program_blocks_program_code_key":         "code",
	"program_block_groups_block_id_fkey":      "block_id",
	"program_block_groups_block_code_key":     "code",
	"program_block_group_rules_group_id_fkey": "group_id",
	"program_course_maps_course_id_fkey":      "course_id",
	"program_course_maps_block_id_fkey":       "block_id",
	"program_course_maps_group_id_fkey":       "group_id",
	"program_course_maps_program_course_key":  "course_id",
	"users_email_key":                         "email",
}

// translate converts driver errors into ErrNotFound or *ConstraintError and
// wraps everything else with op.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var kind ConstraintKind
	switch pqErr.Code {
	case "23505":
		kind = ConstraintUnique
	case "23503":
		kind = ConstraintForeignKey
	case "23514":
		kind = ConstraintCheck
	case "23P01":
		kind = ConstraintExclusion
	case "23502":
		kind = ConstraintNotNull
	default:
		return fmt.Errorf("%s: %w", op, err)
	}

	field, ok := constraintFields[pqErr.Constraint]
	if !ok {
		field = pqErr.Column
	}
	return &ConstraintError{Kind: kind, Constraint: pqErr.Constraint, Field: field, Err: err}
}

// AsConstraint reports whether err is a constraint violation of the given kind.
func AsConstraint(err error, kind ConstraintKind) (*ConstraintError, bool) {
	var ce *ConstraintError
	if errors.As(err, &ce) && ce.Kind == kind {
		return ce, true
	}
	return nil, false
}

// expectAffected turns a zero-row mutation into ErrNotFound.
func expectAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
