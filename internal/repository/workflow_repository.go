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
	workflowColumns = "id, entity_type, entity_id, status, workflow_stage, priority, notes, updated_by, created_at, updated_at"
	historyColumns  = "id, entity_type, entity_id, action, from_status, to_status, reviewer_role, reviewer_id, comments, created_at"
)

var entityTables = map[models.EntityType]string{
	models.EntityCourse:  "courses",
	models.EntityProgram: "programs",
}

// WorkflowChange is the outcome of a guarded transition decided inside the transaction.
type WorkflowChange struct {
	Action       string
	Status       models.WorkflowStatus
	Stage        models.WorkflowStage
	ReviewerRole models.UserRole
	ReviewerID   *models.ID
	Comments     *string
	Priority     *string
}

// DecideFunc inspects the locked current status and returns the change to apply.
type DecideFunc func(current models.WorkflowStatus) (WorkflowChange, error)

// WorkflowRepository persists review state and approval history for courses and programs.
type WorkflowRepository struct {
	db *sqlx.DB
}

// NewWorkflowRepository constructs the repository.
func NewWorkflowRepository(db *sqlx.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

func tableFor(entity models.EntityType) (string, error) {
	table, ok := entityTables[entity]
	if !ok {
		return "", fmt.Errorf("unknown workflow entity %q", entity)
	}
	return table, nil
}

// Find returns the workflow record of an entity.
func (r *WorkflowRepository) Find(ctx context.Context, entity models.EntityType, id models.ID) (*models.WorkflowRecord, error) {
	var rec models.WorkflowRecord
	query := "SELECT " + workflowColumns + " FROM workflows WHERE entity_type = $1 AND entity_id = $2"
	if err := r.db.GetContext(ctx, &rec, query, entity, id); err != nil {
		return nil, translate("find workflow", err)
	}
	return &rec, nil
}

// CurrentStatus reads the status column of the entity itself.
func (r *WorkflowRepository) CurrentStatus(ctx context.Context, entity models.EntityType, id models.ID) (models.WorkflowStatus, error) {
	table, err := tableFor(entity)
	if err != nil {
		return "", err
	}
	var status models.WorkflowStatus
	if err := r.db.GetContext(ctx, &status, "SELECT status FROM "+table+" WHERE id = $1", id); err != nil {
		return "", translate("read entity status", err)
	}
	return status, nil
}

// History lists approval history oldest first.
func (r *WorkflowRepository) History(ctx context.Context, entity models.EntityType, id models.ID) ([]models.ApprovalHistory, error) {
	query := "SELECT " + historyColumns + " FROM approval_history WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at ASC, id ASC"
	items := make([]models.ApprovalHistory, 0)
	if err := r.db.SelectContext(ctx, &items, query, entity, id); err != nil {
		return nil, fmt.Errorf("list approval history: %w", err)
	}
	return items, nil
}

// Apply locks the entity row, lets decide choose the change and persists it
// with one history row, all in a single transaction.
func (r *WorkflowRepository) Apply(ctx context.Context, entity models.EntityType, id models.ID, decide DecideFunc) (*models.WorkflowRecord, error) {
	table, err := tableFor(entity)
	if err != nil {
		return nil, err
	}

	var rec models.WorkflowRecord
	err = database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var current models.WorkflowStatus
		if err := tx.GetContext(ctx, &current, "SELECT status FROM "+table+" WHERE id = $1 FOR UPDATE", id); err != nil {
			return translate("lock "+string(entity), err)
		}

		change, err := decide(current)
		if err != nil {
			return err
		}
		now := time.Now().UTC()

		if _, err := tx.ExecContext(ctx, "UPDATE "+table+" SET status = $2, updated_at = $3 WHERE id = $1", id, change.Status, now); err != nil {
			return translate("update "+string(entity)+" status", err)
		}

		const upsert = `INSERT INTO workflows (entity_type, entity_id, status, workflow_stage, priority, notes, updated_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, COALESCE($5, 'normal'), $6, $7, $8, $8)
ON CONFLICT (entity_type, entity_id) DO UPDATE SET status = EXCLUDED.status, workflow_stage = EXCLUDED.workflow_stage,
priority = COALESCE($5, workflows.priority), notes = COALESCE(EXCLUDED.notes, workflows.notes), updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
RETURNING ` + workflowColumns
		if err := tx.GetContext(ctx, &rec, upsert, entity, id, change.Status, change.Stage, change.Priority, change.Comments, change.ReviewerID, now); err != nil {
			return translate("upsert workflow", err)
		}

		const history = `INSERT INTO approval_history (entity_type, entity_id, action, from_status, to_status, reviewer_role, reviewer_id, comments, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		if _, err := tx.ExecContext(ctx, history, entity, id, change.Action, current, change.Status, change.ReviewerRole, change.ReviewerID, change.Comments, now); err != nil {
			return translate("insert approval history", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// initWorkflow creates the DRAFT workflow record for a new entity inside tx.
func initWorkflow(ctx context.Context, tx *sqlx.Tx, entity models.EntityType, id models.ID, priority string, at time.Time) error {
	if priority == "" {
		priority = "normal"
	}
	const query = `INSERT INTO workflows (entity_type, entity_id, status, workflow_stage, priority, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)`
	if _, err := tx.ExecContext(ctx, query, entity, id, models.StatusDraft, models.StageFaculty, priority, at); err != nil {
		return translate("init workflow", err)
	}
	return nil
}
