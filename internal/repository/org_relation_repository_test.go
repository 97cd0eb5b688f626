package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-admin-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var relationRowColumns = []string{
	"id", "parent_id", "child_id", "relation_type", "effective_from", "effective_to", "note", "created_at", "updated_at",
	"parent_code", "parent_name", "child_code", "child_name",
}

func mustDate(t *testing.T, raw string) models.Date {
	t.Helper()
	d, err := models.ParseDate(raw)
	require.NoError(t, err)
	return d
}

func TestRelationRepositoryFindByKey(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewOrgUnitRelationRepository(db)
	from := mustDate(t, "2024-01-01")
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.parent_id = $1 AND r.child_id = $2 AND r.relation_type = $3 AND r.effective_from = $4")).
		WithArgs(int64(1), int64(2), "direct", "2024-01-01").
		WillReturnRows(sqlmock.NewRows(relationRowColumns).
			AddRow(int64(10), int64(1), int64(2), "direct", from.Time, nil, "note", now, now, "UNI", "University", "FIT", "Faculty of IT"))

	rel, err := repo.FindByKey(context.Background(), models.RelationKey{ParentID: 1, ChildID: 2, RelationType: models.RelationDirect, EffectiveFrom: from})
	require.NoError(t, err)
	assert.Equal(t, models.ID(10), rel.ID)
	assert.Equal(t, "2024-01-01", rel.EffectiveFrom.String())
	assert.Nil(t, rel.EffectiveTo)
	require.NotNil(t, rel.Parent)
	assert.Equal(t, "UNI", rel.Parent.Code)
	assert.Equal(t, "FIT", rel.Child.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationRepositoryFindByIDNotFound(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewOrgUnitRelationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.id = $1")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(relationRowColumns))

	_, err := repo.FindByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationRepositoryCreate(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewOrgUnitRelationRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO org_unit_relations")).
		WithArgs(int64(1), int64(2), "advisory", "2024-01-01", nil, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(5), now, now))

	rel := &models.OrgUnitRelation{ParentID: 1, ChildID: 2, RelationType: models.RelationAdvisory, EffectiveFrom: mustDate(t, "2024-01-01")}
	require.NoError(t, repo.Create(context.Background(), rel))
	assert.Equal(t, models.ID(5), rel.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationRepositoryCreateTagsConstraintErrors(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewOrgUnitRelationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO org_unit_relations")).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "org_unit_relations_child_id_fkey"})

	err := repo.Create(context.Background(), &models.OrgUnitRelation{ParentID: 1, ChildID: 404, RelationType: models.RelationDirect, EffectiveFrom: models.Today()})
	ce, ok := AsConstraint(err, ConstraintForeignKey)
	require.True(t, ok)
	assert.Equal(t, "child_id", ce.Field)
}

func TestRelationRepositoryDeleteMissing(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewOrgUnitRelationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM org_unit_relations WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), 7), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationRepositoryFindAllActiveOn(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewOrgUnitRelationRepository(db)
	day := mustDate(t, "2024-05-01")
	parent := models.ID(1)

	filter := models.RelationFilter{ParentID: &parent, ActiveOn: &day, PageQuery: models.PageQuery{Page: 3, Size: 10}}
	filter.Normalize()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.parent_id = $1 AND r.effective_from <= $2 AND (r.effective_to IS NULL OR r.effective_to >= $2) ORDER BY r.effective_from ASC, r.id ASC LIMIT 10 OFFSET 20")).
		WithArgs(int64(1), "2024-05-01").
		WillReturnRows(sqlmock.NewRows(relationRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM org_unit_relations r WHERE")).
		WithArgs(int64(1), "2024-05-01").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	items, total, err := repo.FindAll(context.Background(), filter)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
	assert.Equal(t, 4, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
