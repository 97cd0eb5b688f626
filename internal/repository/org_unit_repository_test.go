package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-admin-api/internal/models"
)

var orgUnitRowColumns = []string{"id", "code", "name", "type", "status", "description", "parent_id", "effective_from", "effective_to", "created_at", "updated_at"}

func TestOrgUnitRepositoryListActive(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewOrgUnitRepository(db)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	rows := sqlmock.NewRows(orgUnitRowColumns).
		AddRow(1, "UNI", "University", "university", "ACTIVE", nil, nil, from, nil, now, now).
		AddRow(2, "FIT", "Faculty of IT", "faculty", "ACTIVE", nil, 1, from, nil, now, now)
	mock.ExpectQuery(`FROM org_units WHERE status = \$1 ORDER BY code ASC`).
		WithArgs(models.OrgUnitStatusActive).
		WillReturnRows(rows)

	units, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, units, 2)
	require.NotNil(t, units[1].ParentID)
	assert.Equal(t, models.ID(1), *units[1].ParentID)
	assert.Nil(t, units[0].EffectiveTo)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrgUnitRepositoryCreateMissingParent(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewOrgUnitRepository(db)
	parent := models.ID(99)

	mock.ExpectQuery(`INSERT INTO org_units`).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "org_units_parent_id_fkey"})

	err := repo.Create(context.Background(), &models.OrgUnit{
		Code:          "FIT",
		Name:          "Faculty of IT",
		Type:          "faculty",
		Status:        models.OrgUnitStatusActive,
		ParentID:      &parent,
		EffectiveFrom: models.Today(),
	})
	ce, ok := AsConstraint(err, ConstraintForeignKey)
	require.True(t, ok)
	assert.Equal(t, "parent_id", ce.Field)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrgUnitRepositoryUpdateMissing(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewOrgUnitRepository(db)

	mock.ExpectQuery(`UPDATE org_units SET`).WillReturnError(sql.ErrNoRows)

	err := repo.Update(context.Background(), &models.OrgUnit{ID: 5, Code: "X", EffectiveFrom: models.Today()})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrgAssignmentRepositoryDelete(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewOrgAssignmentRepository(db)

	mock.ExpectExec(`DELETE FROM org_assignments WHERE id = \$1`).
		WithArgs(models.ID(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM org_assignments WHERE id = \$1`).
		WithArgs(models.ID(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), 3))
	assert.ErrorIs(t, repo.Delete(context.Background(), 4), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrgAssignmentRepositoryCreateUnknownEmployee(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewOrgAssignmentRepository(db)

	mock.ExpectQuery(`INSERT INTO org_assignments`).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "org_assignments_employee_id_fkey"})

	err := repo.Create(context.Background(), &models.OrgAssignment{EmployeeID: 12, OrgUnitID: 1, StartDate: models.Today()})
	ce, ok := AsConstraint(err, ConstraintForeignKey)
	require.True(t, ok)
	assert.Equal(t, "employee_id", ce.Field)
}

func TestProgramBlockGroupRepositoryListByBlock(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewProgramBlockGroupRepository(db)
	block := models.ID(8)
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM program_block_groups WHERE block_id = \$1 ORDER BY display_order ASC LIMIT 20 OFFSET 20`).
		WithArgs(block).
		WillReturnRows(sqlmock.NewRows([]string{"id", "block_id", "code", "title", "group_type", "display_order", "created_at", "updated_at"}).
			AddRow(4, 8, "ELEC-A", "Electives A", "elective", 1, now, now))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM program_block_groups WHERE block_id = \$1`).
		WithArgs(block).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))

	groups, total, err := repo.List(context.Background(), &block, models.PageQuery{Page: 2, Size: 20})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "ELEC-A", groups[0].Code)
	assert.Equal(t, 21, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
