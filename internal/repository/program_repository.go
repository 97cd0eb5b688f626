package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/pkg/database"
)

const (
	programColumns = `id, code, name_vi, name_en, version, status, total_credits, priority, effective_from, effective_to,
org_unit_id, major_id, plo, created_at, updated_at`
	blockColumns    = "id, program_id, code, title, block_type, display_order, created_at, updated_at"
	courseMapSelect = `SELECT m.id, m.program_id, m.course_id, m.block_id, m.group_id, m.is_required, m.display_order, m.created_at,
c.code AS course_code, c.name_vi AS course_name, c.credits
FROM program_course_maps m JOIN courses c ON c.id = m.course_id`
)

// ProgramRepository persists programs, their blocks and course mappings.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs the repository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// List returns a page of programs.
func (r *ProgramRepository) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error) {
	var b filterBuilder
	if filter.Search != "" {
		b.add("(code ILIKE ? OR name_vi ILIKE ? OR name_en ILIKE ?)", containsPattern(filter.Search))
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
		"version":    "version",
		"created_at": "created_at",
	}
	query := "SELECT " + programColumns + " FROM programs" + b.where() + orderBy(filter.PageQuery, sorts, "code") + limitOffset(filter.PageQuery)

	programs := make([]models.Program, 0)
	if err := r.db.SelectContext(ctx, &programs, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list programs: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM programs"+b.where(), b.args...); err != nil {
		return nil, 0, fmt.Errorf("count programs: %w", err)
	}
	return programs, total, nil
}

// FindByID loads a program.
func (r *ProgramRepository) FindByID(ctx context.Context, id models.ID) (*models.Program, error) {
	var p models.Program
	if err := r.db.GetContext(ctx, &p, "SELECT "+programColumns+" FROM programs WHERE id = $1", id); err != nil {
		return nil, translate("find program", err)
	}
	return &p, nil
}

// Create inserts a program with a DRAFT workflow record.
func (r *ProgramRepository) Create(ctx context.Context, p *models.Program) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		p.Status = models.StatusDraft
		if p.Priority == "" {
			p.Priority = "normal"
		}
		const query = `INSERT INTO programs (code, name_vi, name_en, version, status, total_credits, priority, effective_from, effective_to,
org_unit_id, major_id, plo, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13) RETURNING id, created_at, updated_at`
		err := tx.QueryRowxContext(ctx, query,
			p.Code, p.NameVi, p.NameEn, p.Version, p.Status, p.TotalCredits, p.Priority, p.EffectiveFrom, p.EffectiveTo,
			p.OrgUnitID, p.MajorID, p.PLO, now,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return translate("create program", err)
		}
		return initWorkflow(ctx, tx, models.EntityProgram, p.ID, p.Priority, now)
	})
}

// Update writes every mutable program column except status.
func (r *ProgramRepository) Update(ctx context.Context, p *models.Program) error {
	const query = `UPDATE programs SET name_vi = $2, name_en = $3, version = $4, total_credits = $5, priority = $6, effective_from = $7,
effective_to = $8, org_unit_id = $9, major_id = $10, plo = $11, updated_at = $12 WHERE id = $1 AND status <> 'DELETED' RETURNING updated_at`
	err := r.db.QueryRowxContext(ctx, query,
		p.ID, p.NameVi, p.NameEn, p.Version, p.TotalCredits, p.Priority, p.EffectiveFrom, p.EffectiveTo, p.OrgUnitID, p.MajorID, p.PLO, time.Now().UTC(),
	).Scan(&p.UpdatedAt)
	return translate("update program", err)
}

// ListBlocks returns a program's blocks in display order.
func (r *ProgramRepository) ListBlocks(ctx context.Context, programID models.ID) ([]models.ProgramBlock, error) {
	blocks := make([]models.ProgramBlock, 0)
	query := "SELECT " + blockColumns + " FROM program_blocks WHERE program_id = $1 ORDER BY display_order, id"
	if err := r.db.SelectContext(ctx, &blocks, query, programID); err != nil {
		return nil, fmt.Errorf("list program blocks: %w", err)
	}
	return blocks, nil
}

// CreateBlock inserts a block.
func (r *ProgramRepository) CreateBlock(ctx context.Context, block *models.ProgramBlock) error {
	const query = `INSERT INTO program_blocks (program_id, code, title, block_type, display_order, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id, created_at, updated_at`
	err := r.db.QueryRowxContext(ctx, query, block.ProgramID, block.Code, block.Title, block.BlockType, block.DisplayOrder, time.Now().UTC()).
		Scan(&block.ID, &block.CreatedAt, &block.UpdatedAt)
	return translate("create program block", err)
}

// UpdateBlock writes a block scoped to its program.
func (r *ProgramRepository) UpdateBlock(ctx context.Context, block *models.ProgramBlock) error {
	const query = `UPDATE program_blocks SET code = $3, title = $4, block_type = $5, display_order = $6, updated_at = $7
WHERE id = $1 AND program_id = $2 RETURNING created_at, updated_at`
	err := r.db.QueryRowxContext(ctx, query, block.ID, block.ProgramID, block.Code, block.Title, block.BlockType, block.DisplayOrder, time.Now().UTC()).
		Scan(&block.CreatedAt, &block.UpdatedAt)
	return translate("update program block", err)
}

// DeleteBlock removes a block scoped to its program.
func (r *ProgramRepository) DeleteBlock(ctx context.Context, programID, blockID models.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM program_blocks WHERE id = $1 AND program_id = $2`, blockID, programID)
	if err != nil {
		return translate("delete program block", err)
	}
	return expectAffected(res, "delete program block")
}

// ListGroups returns every group of a program's blocks.
func (r *ProgramRepository) ListGroups(ctx context.Context, programID models.ID) ([]models.ProgramBlockGroup, error) {
	const query = `SELECT g.id, g.block_id, g.code, g.title, g.group_type, g.display_order, g.created_at, g.updated_at
FROM program_block_groups g JOIN program_blocks b ON b.id = g.block_id WHERE b.program_id = $1 ORDER BY g.display_order, g.id`
	groups := make([]models.ProgramBlockGroup, 0)
	if err := r.db.SelectContext(ctx, &groups, query, programID); err != nil {
		return nil, fmt.Errorf("list program groups: %w", err)
	}
	return groups, nil
}

// ListRules returns every group rule of a program.
func (r *ProgramRepository) ListRules(ctx context.Context, programID models.ID) ([]models.ProgramBlockGroupRule, error) {
	const query = `SELECT gr.id, gr.group_id, gr.min_credits, gr.max_credits, gr.min_courses, gr.max_courses, gr.description, gr.created_at, gr.updated_at
FROM program_block_group_rules gr
JOIN program_block_groups g ON g.id = gr.group_id
JOIN program_blocks b ON b.id = g.block_id
WHERE b.program_id = $1 ORDER BY gr.id`
	rules := make([]models.ProgramBlockGroupRule, 0)
	if err := r.db.SelectContext(ctx, &rules, query, programID); err != nil {
		return nil, fmt.Errorf("list program rules: %w", err)
	}
	return rules, nil
}

// ListCourseMaps returns a program's course mappings with course details.
func (r *ProgramRepository) ListCourseMaps(ctx context.Context, programID models.ID) ([]models.ProgramCourseMap, error) {
	maps := make([]models.ProgramCourseMap, 0)
	query := courseMapSelect + " WHERE m.program_id = $1 ORDER BY m.display_order, c.code"
	if err := r.db.SelectContext(ctx, &maps, query, programID); err != nil {
		return nil, fmt.Errorf("list program course maps: %w", err)
	}
	return maps, nil
}

// FindCourseMap loads one mapping.
func (r *ProgramRepository) FindCourseMap(ctx context.Context, programID, mapID models.ID) (*models.ProgramCourseMap, error) {
	var m models.ProgramCourseMap
	if err := r.db.GetContext(ctx, &m, courseMapSelect+" WHERE m.id = $1 AND m.program_id = $2", mapID, programID); err != nil {
		return nil, translate("find program course map", err)
	}
	return &m, nil
}

// CreateCourseMap inserts a mapping.
func (r *ProgramRepository) CreateCourseMap(ctx context.Context, m *models.ProgramCourseMap) error {
	const query = `INSERT INTO program_course_maps (program_id, course_id, block_id, group_id, is_required, display_order, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`
	err := r.db.QueryRowxContext(ctx, query, m.ProgramID, m.CourseID, m.BlockID, m.GroupID, m.IsRequired, m.DisplayOrder, time.Now().UTC()).
		Scan(&m.ID, &m.CreatedAt)
	return translate("create program course map", err)
}

// DeleteCourseMap removes a mapping scoped to its program.
func (r *ProgramRepository) DeleteCourseMap(ctx context.Context, programID, mapID models.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM program_course_maps WHERE id = $1 AND program_id = $2`, mapID, programID)
	if err != nil {
		return translate("delete program course map", err)
	}
	return expectAffected(res, "delete program course map")
}

// BlockProgramID returns the program owning a block.
func (r *ProgramRepository) BlockProgramID(ctx context.Context, blockID models.ID) (models.ID, error) {
	var id models.ID
	if err := r.db.GetContext(ctx, &id, `SELECT program_id FROM program_blocks WHERE id = $1`, blockID); err != nil {
		return 0, translate("find block program", err)
	}
	return id, nil
}

// GroupProgramID returns the program owning a group.
func (r *ProgramRepository) GroupProgramID(ctx context.Context, groupID models.ID) (models.ID, error) {
	var id models.ID
	const query = `SELECT b.program_id FROM program_block_groups g JOIN program_blocks b ON b.id = g.block_id WHERE g.id = $1`
	if err := r.db.GetContext(ctx, &id, query, groupID); err != nil {
		return 0, translate("find group program", err)
	}
	return id, nil
}
