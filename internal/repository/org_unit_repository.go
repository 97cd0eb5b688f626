package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-admin-api/internal/models"
)

const orgUnitColumns = "id, code, name, type, status, description, parent_id, effective_from, effective_to, created_at, updated_at"

// OrgUnitRepository handles persistence for org units.
type OrgUnitRepository struct {
	db *sqlx.DB
}

// NewOrgUnitRepository instantiates an org unit repository.
func NewOrgUnitRepository(db *sqlx.DB) *OrgUnitRepository {
	return &OrgUnitRepository{db: db}
}

// List returns org units matching the filter and the total match count.
func (r *OrgUnitRepository) List(ctx context.Context, filter models.OrgUnitFilter) ([]models.OrgUnit, int, error) {
	var b filterBuilder
	if filter.Search != "" {
		b.add("(code ILIKE ? OR name ILIKE ?)", containsPattern(filter.Search))
	}
	if filter.Type != "" {
		b.add("type = ?", filter.Type)
	}
	if filter.Status != "" {
		b.add("status = ?", filter.Status)
	}
	if filter.ParentID != nil {
		b.add("parent_id = ?", *filter.ParentID)
	}

	sorts := map[string]string{
		"code":           "code",
		"name":           "name",
		"created_at":     "created_at",
		"effective_from": "effective_from",
	}
	query := "SELECT " + orgUnitColumns + " FROM org_units" + b.where() + orderBy(filter.PageQuery, sorts, "code") + limitOffset(filter.PageQuery)

	units := make([]models.OrgUnit, 0)
	if err := r.db.SelectContext(ctx, &units, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list org units: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM org_units"+b.where(), b.args...); err != nil {
		return nil, 0, fmt.Errorf("count org units: %w", err)
	}
	return units, total, nil
}

// ListActive returns every ACTIVE unit ordered for tree building.
func (r *OrgUnitRepository) ListActive(ctx context.Context) ([]models.OrgUnit, error) {
	query := "SELECT " + orgUnitColumns + " FROM org_units WHERE status = $1 ORDER BY code ASC"
	units := make([]models.OrgUnit, 0)
	if err := r.db.SelectContext(ctx, &units, query, models.OrgUnitStatusActive); err != nil {
		return nil, fmt.Errorf("list active org units: %w", err)
	}
	return units, nil
}

// FindByID loads an org unit.
func (r *OrgUnitRepository) FindByID(ctx context.Context, id models.ID) (*models.OrgUnit, error) {
	var unit models.OrgUnit
	if err := r.db.GetContext(ctx, &unit, "SELECT "+orgUnitColumns+" FROM org_units WHERE id = $1", id); err != nil {
		return nil, translate("find org unit", err)
	}
	return &unit, nil
}

// Create inserts a unit and fills its generated fields.
func (r *OrgUnitRepository) Create(ctx context.Context, unit *models.OrgUnit) error {
	now := time.Now().UTC()
	const query = `INSERT INTO org_units (code, name, type, status, description, parent_id, effective_from, effective_to, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9) RETURNING id, created_at, updated_at`
	err := r.db.QueryRowxContext(ctx, query,
		unit.Code, unit.Name, unit.Type, unit.Status, unit.Description, unit.ParentID, unit.EffectiveFrom, unit.EffectiveTo, now,
	).Scan(&unit.ID, &unit.CreatedAt, &unit.UpdatedAt)
	return translate("create org unit", err)
}

// Update overwrites the mutable columns of a unit.
func (r *OrgUnitRepository) Update(ctx context.Context, unit *models.OrgUnit) error {
	const query = `UPDATE org_units SET code = $2, name = $3, type = $4, status = $5, description = $6, parent_id = $7,
effective_from = $8, effective_to = $9, updated_at = $10 WHERE id = $1 RETURNING updated_at`
	err := r.db.QueryRowxContext(ctx, query,
		unit.ID, unit.Code, unit.Name, unit.Type, unit.Status, unit.Description, unit.ParentID, unit.EffectiveFrom, unit.EffectiveTo, time.Now().UTC(),
	).Scan(&unit.UpdatedAt)
	return translate("update org unit", err)
}
