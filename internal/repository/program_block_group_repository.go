package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-admin-api/internal/models"
)

const (
	groupColumns = "id, block_id, code, title, group_type, display_order, created_at, updated_at"
	ruleColumns  = "id, group_id, min_credits, max_credits, min_courses, max_courses, description, created_at, updated_at"
)

// ProgramBlockGroupRepository persists block groups.
type ProgramBlockGroupRepository struct {
	db *sqlx.DB
}

// NewProgramBlockGroupRepository constructs the repository.
func NewProgramBlockGroupRepository(db *sqlx.DB) *ProgramBlockGroupRepository {
	return &ProgramBlockGroupRepository{db: db}
}

// List returns groups, optionally restricted to one block.
func (r *ProgramBlockGroupRepository) List(ctx context.Context, blockID *models.ID, page models.PageQuery) ([]models.ProgramBlockGroup, int, error) {
	var b filterBuilder
	if blockID != nil {
		b.add("block_id = ?", *blockID)
	}
	sorts := map[string]string{"display_order": "display_order", "code": "code", "created_at": "created_at"}
	query := "SELECT " + groupColumns + " FROM program_block_groups" + b.where() + orderBy(page, sorts, "display_order") + limitOffset(page)

	groups := make([]models.ProgramBlockGroup, 0)
	if err := r.db.SelectContext(ctx, &groups, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list program block groups: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM program_block_groups"+b.where(), b.args...); err != nil {
		return nil, 0, fmt.Errorf("count program block groups: %w", err)
	}
	return groups, total, nil
}

// FindByID loads a group.
func (r *ProgramBlockGroupRepository) FindByID(ctx context.Context, id models.ID) (*models.ProgramBlockGroup, error) {
	var g models.ProgramBlockGroup
	if err := r.db.GetContext(ctx, &g, "SELECT "+groupColumns+" FROM program_block_groups WHERE id = $1", id); err != nil {
		return nil, translate("find program block group", err)
	}
	return &g, nil
}

// Create inserts a group.
func (r *ProgramBlockGroupRepository) Create(ctx context.Context, g *models.ProgramBlockGroup) error {
	const query = `INSERT INTO program_block_groups (block_id, code, title, group_type, display_order, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id, created_at, updated_at`
	err := r.db.QueryRowxContext(ctx, query, g.BlockID, g.Code, g.Title, g.GroupType, g.DisplayOrder, time.Now().UTC()).
		Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	return translate("create program block group", err)
}

// Update writes a group.
func (r *ProgramBlockGroupRepository) Update(ctx context.Context, g *models.ProgramBlockGroup) error {
	const query = `UPDATE program_block_groups SET block_id = $2, code = $3, title = $4, group_type = $5, display_order = $6, updated_at = $7
WHERE id = $1 RETURNING updated_at`
	err := r.db.QueryRowxContext(ctx, query, g.ID, g.BlockID, g.Code, g.Title, g.GroupType, g.DisplayOrder, time.Now().UTC()).
		Scan(&g.UpdatedAt)
	return translate("update program block group", err)
}

// Delete removes a group; its rules cascade.
func (r *ProgramBlockGroupRepository) Delete(ctx context.Context, id models.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM program_block_groups WHERE id = $1`, id)
	if err != nil {
		return translate("delete program block group", err)
	}
	return expectAffected(res, "delete program block group")
}

// ProgramBlockGroupRuleRepository persists group rules.
type ProgramBlockGroupRuleRepository struct {
	db *sqlx.DB
}

// NewProgramBlockGroupRuleRepository constructs the repository.
func NewProgramBlockGroupRuleRepository(db *sqlx.DB) *ProgramBlockGroupRuleRepository {
	return &ProgramBlockGroupRuleRepository{db: db}
}

// List returns rules, optionally restricted to one group.
func (r *ProgramBlockGroupRuleRepository) List(ctx context.Context, groupID *models.ID, page models.PageQuery) ([]models.ProgramBlockGroupRule, int, error) {
	var b filterBuilder
	if groupID != nil {
		b.add("group_id = ?", *groupID)
	}
	sorts := map[string]string{"id": "id", "created_at": "created_at"}
	query := "SELECT " + ruleColumns + " FROM program_block_group_rules" + b.where() + orderBy(page, sorts, "id") + limitOffset(page)

	rules := make([]models.ProgramBlockGroupRule, 0)
	if err := r.db.SelectContext(ctx, &rules, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list program block group rules: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM program_block_group_rules"+b.where(), b.args...); err != nil {
		return nil, 0, fmt.Errorf("count program block group rules: %w", err)
	}
	return rules, total, nil
}

// FindByID loads a rule.
func (r *ProgramBlockGroupRuleRepository) FindByID(ctx context.Context, id models.ID) (*models.ProgramBlockGroupRule, error) {
	var rule models.ProgramBlockGroupRule
	if err := r.db.GetContext(ctx, &rule, "SELECT "+ruleColumns+" FROM program_block_group_rules WHERE id = $1", id); err != nil {
		return nil, translate("find program block group rule", err)
	}
	return &rule, nil
}

// Create inserts a rule.
func (r *ProgramBlockGroupRuleRepository) Create(ctx context.Context, rule *models.ProgramBlockGroupRule) error {
	const query = `INSERT INTO program_block_group_rules (group_id, min_credits, max_credits, min_courses, max_courses, description, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING id, created_at, updated_at`
	err := r.db.QueryRowxContext(ctx, query, rule.GroupID, rule.MinCredits, rule.MaxCredits, rule.MinCourses, rule.MaxCourses, rule.Description, time.Now().UTC()).
		Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	return translate("create program block group rule", err)
}

// Update writes a rule.
func (r *ProgramBlockGroupRuleRepository) Update(ctx context.Context, rule *models.ProgramBlockGroupRule) error {
	const query = `UPDATE program_block_group_rules SET group_id = $2, min_credits = $3, max_credits = $4, min_courses = $5, max_courses = $6,
description = $7, updated_at = $8 WHERE id = $1 RETURNING updated_at`
	err := r.db.QueryRowxContext(ctx, query, rule.ID, rule.GroupID, rule.MinCredits, rule.MaxCredits, rule.MinCourses, rule.MaxCourses, rule.Description, time.Now().UTC()).
		Scan(&rule.UpdatedAt)
	return translate("update program block group rule", err)
}

// Delete removes a rule.
func (r *ProgramBlockGroupRuleRepository) Delete(ctx context.Context, id models.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM program_block_group_rules WHERE id = $1`, id)
	if err != nil {
		return translate("delete program block group rule", err)
	}
	return expectAffected(res, "delete program block group rule")
}
