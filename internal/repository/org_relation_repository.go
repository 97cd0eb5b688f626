package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-admin-api/internal/models"
)

const relationSelect = `SELECT r.id, r.parent_id, r.child_id, r.relation_type, r.effective_from, r.effective_to, r.note, r.created_at, r.updated_at,
p.code AS parent_code, p.name AS parent_name, c.code AS child_code, c.name AS child_name
FROM org_unit_relations r
JOIN org_units p ON p.id = r.parent_id
JOIN org_units c ON c.id = r.child_id`

type relationRow struct {
	models.OrgUnitRelation
	ParentCode string `db:"parent_code"`
	ParentName string `db:"parent_name"`
	ChildCode  string `db:"child_code"`
	ChildName  string `db:"child_name"`
}

func (row relationRow) toModel() models.OrgUnitRelation {
	rel := row.OrgUnitRelation
	rel.Parent = &models.OrgUnitSummary{ID: rel.ParentID, Code: row.ParentCode, Name: row.ParentName}
	rel.Child = &models.OrgUnitSummary{ID: rel.ChildID, Code: row.ChildCode, Name: row.ChildName}
	return rel
}

// OrgUnitRelationRepository persists parent/child org unit relations.
type OrgUnitRelationRepository struct {
	db *sqlx.DB
}

// NewOrgUnitRelationRepository constructs the repository.
func NewOrgUnitRelationRepository(db *sqlx.DB) *OrgUnitRelationRepository {
	return &OrgUnitRelationRepository{db: db}
}

// FindAll returns a page of relations with parent and child summaries.
func (r *OrgUnitRelationRepository) FindAll(ctx context.Context, filter models.RelationFilter) ([]models.OrgUnitRelation, int, error) {
	var b filterBuilder
	if filter.Search != "" {
		b.add("(r.note ILIKE ? OR r.relation_type ILIKE ?)", containsPattern(filter.Search))
	}
	if filter.ParentID != nil {
		b.add("r.parent_id = ?", *filter.ParentID)
	}
	if filter.ChildID != nil {
		b.add("r.child_id = ?", *filter.ChildID)
	}
	if filter.RelationType != "" {
		b.add("r.relation_type = ?", filter.RelationType)
	}
	if filter.ActiveOn != nil {
		b.add("r.effective_from <= ? AND (r.effective_to IS NULL OR r.effective_to >= ?)", *filter.ActiveOn)
	}

	sorts := map[string]string{
		"effective_from": "r.effective_from",
		"relation_type":  "r.relation_type",
		"created_at":     "r.created_at",
		"parent":         "p.code",
		"child":          "c.code",
	}
	query := relationSelect + b.where() + orderBy(filter.PageQuery, sorts, "effective_from") + ", r.id ASC" + limitOffset(filter.PageQuery)

	var rows []relationRow
	if err := r.db.SelectContext(ctx, &rows, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list org unit relations: %w", err)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM org_unit_relations r" + b.where()
	if err := r.db.GetContext(ctx, &total, countQuery, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count org unit relations: %w", err)
	}

	items := make([]models.OrgUnitRelation, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toModel())
	}
	return items, total, nil
}

// FindByID loads a relation by surrogate id.
func (r *OrgUnitRelationRepository) FindByID(ctx context.Context, id models.ID) (*models.OrgUnitRelation, error) {
	var row relationRow
	if err := r.db.GetContext(ctx, &row, relationSelect+" WHERE r.id = $1", id); err != nil {
		return nil, translate("find org unit relation", err)
	}
	rel := row.toModel()
	return &rel, nil
}

// FindByKey loads a relation by its natural key; effective_from must match exactly.
func (r *OrgUnitRelationRepository) FindByKey(ctx context.Context, key models.RelationKey) (*models.OrgUnitRelation, error) {
	const where = " WHERE r.parent_id = $1 AND r.child_id = $2 AND r.relation_type = $3 AND r.effective_from = $4"
	var row relationRow
	if err := r.db.GetContext(ctx, &row, relationSelect+where, key.ParentID, key.ChildID, key.RelationType, key.EffectiveFrom); err != nil {
		return nil, translate("find org unit relation by key", err)
	}
	rel := row.toModel()
	return &rel, nil
}

// Create inserts a relation and fills its generated fields.
func (r *OrgUnitRelationRepository) Create(ctx context.Context, rel *models.OrgUnitRelation) error {
	now := time.Now().UTC()
	const query = `INSERT INTO org_unit_relations (parent_id, child_id, relation_type, effective_from, effective_to, note, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING id, created_at, updated_at`
	err := r.db.QueryRowxContext(ctx, query,
		rel.ParentID, rel.ChildID, rel.RelationType, rel.EffectiveFrom, rel.EffectiveTo, rel.Note, now,
	).Scan(&rel.ID, &rel.CreatedAt, &rel.UpdatedAt)
	return translate("create org unit relation", err)
}

// Update writes the mutable fields of a relation.
func (r *OrgUnitRelationRepository) Update(ctx context.Context, rel *models.OrgUnitRelation) error {
	const query = `UPDATE org_unit_relations SET relation_type = $2, effective_from = $3, effective_to = $4, note = $5, updated_at = $6
WHERE id = $1 RETURNING updated_at`
	err := r.db.QueryRowxContext(ctx, query,
		rel.ID, rel.RelationType, rel.EffectiveFrom, rel.EffectiveTo, rel.Note, time.Now().UTC(),
	).Scan(&rel.UpdatedAt)
	return translate("update org unit relation", err)
}

// Delete removes a relation.
func (r *OrgUnitRelationRepository) Delete(ctx context.Context, id models.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM org_unit_relations WHERE id = $1`, id)
	if err != nil {
		return translate("delete org unit relation", err)
	}
	return expectAffected(res, "delete org unit relation")
}
