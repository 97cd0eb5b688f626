package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/internal/repository"
	appErrors "github.com/noah-isme/uni-admin-api/pkg/errors"
)

type workflowStore interface {
	Find(ctx context.Context, entity models.EntityType, id models.ID) (*models.WorkflowRecord, error)
	CurrentStatus(ctx context.Context, entity models.EntityType, id models.ID) (models.WorkflowStatus, error)
	History(ctx context.Context, entity models.EntityType, id models.ID) ([]models.ApprovalHistory, error)
	Apply(ctx context.Context, entity models.EntityType, id models.ID, decide repository.DecideFunc) (*models.WorkflowRecord, error)
}

// actionOrder is the order actions are offered to clients.
var actionOrder = []models.WorkflowAction{
	models.ActionSubmit,
	models.ActionApprove,
	models.ActionReject,
	models.ActionRequestChanges,
	models.ActionForward,
	models.ActionFinalApprove,
	models.ActionFinalReject,
	models.ActionDelete,
}

// transitions maps each action to its target regardless of the current state.
var transitions = map[models.WorkflowAction]models.Transition{
	models.ActionSubmit:         {Status: models.StatusSubmitted, Stage: models.StageAcademicOffice, ReviewerRole: models.RoleFaculty},
	models.ActionApprove:        {Status: models.StatusApproved, Stage: models.StageAcademicOffice, ReviewerRole: models.RoleAcademicOffice},
	models.ActionReject:         {Status: models.StatusRejected, Stage: models.StageFaculty, ReviewerRole: models.RoleAcademicOffice},
	models.ActionRequestChanges: {Status: models.StatusDraft, Stage: models.StageFaculty, ReviewerRole: models.RoleAcademicOffice},
	models.ActionForward:        {Status: models.StatusSubmitted, Stage: models.StageAcademicBoard, ReviewerRole: models.RoleAcademicOffice},
	models.ActionFinalApprove:   {Status: models.StatusPublished, Stage: models.StageAcademicBoard, ReviewerRole: models.RoleAcademicBoard},
	models.ActionFinalReject:    {Status: models.StatusRejected, Stage: models.StageAcademicBoard, ReviewerRole: models.RoleAcademicBoard},
	models.ActionDelete:         {Status: models.StatusDeleted, Stage: models.StageAcademicOffice, ReviewerRole: models.RoleAcademicOffice},
}

func statuses(s ...models.WorkflowStatus) map[models.WorkflowStatus]bool {
	set := make(map[models.WorkflowStatus]bool, len(s))
	for _, status := range s {
		set[status] = true
	}
	return set
}

// allowedFrom lists the statuses each action may be applied from. PUBLISHED and
// DELETED appear nowhere.
var allowedFrom = map[models.WorkflowAction]map[models.WorkflowStatus]bool{
	models.ActionSubmit:         statuses(models.StatusDraft, models.StatusRejected),
	models.ActionApprove:        statuses(models.StatusDraft, models.StatusSubmitted, models.StatusApproved),
	models.ActionReject:         statuses(models.StatusDraft, models.StatusSubmitted, models.StatusApproved),
	models.ActionRequestChanges: statuses(models.StatusSubmitted, models.StatusApproved, models.StatusRejected),
	models.ActionForward:        statuses(models.StatusSubmitted, models.StatusApproved),
	models.ActionFinalApprove:   statuses(models.StatusSubmitted, models.StatusApproved),
	models.ActionFinalReject:    statuses(models.StatusSubmitted, models.StatusApproved),
	models.ActionDelete:         statuses(models.StatusDraft, models.StatusSubmitted, models.StatusApproved, models.StatusRejected),
}

// ResolveTransition returns the target of action.
func ResolveTransition(action models.WorkflowAction) (models.Transition, bool) {
	t, ok := transitions[action]
	return t, ok
}

// TransitionAllowed reports whether action may be applied to a record in status.
func TransitionAllowed(status models.WorkflowStatus, action models.WorkflowAction) bool {
	return allowedFrom[action][status]
}

// RoleMayAct reports whether role can act as the reviewer of action.
func RoleMayAct(role models.UserRole, action models.WorkflowAction) bool {
	t, ok := transitions[action]
	if !ok {
		return false
	}
	return role.IsAdministrator() || role == t.ReviewerRole
}

// WorkflowActionInput carries the optional payload of a workflow action.
type WorkflowActionInput struct {
	Comments *string `json:"comments"`
	Priority *string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
}

// WorkflowService applies review actions to courses and programs.
type WorkflowService struct {
	repo      workflowStore
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	strict    bool
}

// NewWorkflowService constructs the service. With strict disabled every known
// action is applied regardless of the current status.
func NewWorkflowService(repo workflowStore, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, strict bool) *WorkflowService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{repo: repo, cache: cache, metrics: metrics, validator: validate, logger: logger, strict: strict}
}

// Apply performs action on the entity in one transaction and returns the new
// workflow with the stored history.
func (s *WorkflowService) Apply(ctx context.Context, entity models.EntityType, id models.ID, action models.WorkflowAction, input WorkflowActionInput, actor models.WorkflowActor) (*models.WorkflowResult, error) {
	if !entity.Valid() {
		return nil, invalid("unknown workflow entity")
	}
	target, ok := ResolveTransition(action)
	if !ok {
		return nil, invalid(fmt.Sprintf("unknown workflow action %q", action))
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, validationError(err, "invalid workflow action payload")
	}
	if !RoleMayAct(actor.Role, action) {
		s.metrics.RecordWorkflowRejection(entity, action, "role")
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("action %s requires role %s", action, target.ReviewerRole))
	}

	reviewer := actor.UserID
	rec, err := s.repo.Apply(ctx, entity, id, func(current models.WorkflowStatus) (repository.WorkflowChange, error) {
		if s.strict && !TransitionAllowed(current, action) {
			return repository.WorkflowChange{}, appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("cannot %s a %s %s", action, entity, current))
		}
		return repository.WorkflowChange{
			Action:       action.HistoryLabel(),
			Status:       target.Status,
			Stage:        target.Stage,
			ReviewerRole: target.ReviewerRole,
			ReviewerID:   &reviewer,
			Comments:     input.Comments,
			Priority:     input.Priority,
		}, nil
	})
	if err != nil {
		if errors.Is(err, appErrors.ErrInvalidTransition) {
			s.metrics.RecordWorkflowRejection(entity, action, "state")
			return nil, err
		}
		return nil, lookupError(err, "", fmt.Sprintf("%s not found", entity), "failed to apply workflow action")
	}
	s.metrics.RecordWorkflowTransition(entity, action)

	if entity == models.EntityProgram {
		s.cache.Invalidate(ctx, ProgramStructureKey(id))
	}

	history, err := s.repo.History(ctx, entity, id)
	if err != nil {
		return nil, internal(err, "failed to load approval history")
	}

	s.logger.Info("workflow action applied",
		zap.String("entity", string(entity)),
		zap.String("id", id.String()),
		zap.String("action", string(action)),
		zap.String("status", string(rec.Status)),
	)
	return &models.WorkflowResult{Workflow: *rec, History: history}, nil
}

// Get returns the workflow record of an entity.
func (s *WorkflowService) Get(ctx context.Context, entity models.EntityType, id models.ID) (*models.WorkflowRecord, error) {
	rec, err := s.repo.Find(ctx, entity, id)
	if err != nil {
		return nil, lookupError(err, "", "workflow not found", "failed to load workflow")
	}
	return rec, nil
}

// History returns the approval history of an entity oldest first.
func (s *WorkflowService) History(ctx context.Context, entity models.EntityType, id models.ID) ([]models.ApprovalHistory, error) {
	if !entity.Valid() {
		return nil, invalid("unknown workflow entity")
	}
	if _, err := s.repo.CurrentStatus(ctx, entity, id); err != nil {
		return nil, lookupError(err, "", fmt.Sprintf("%s not found", entity), "failed to load approval history")
	}
	history, err := s.repo.History(ctx, entity, id)
	if err != nil {
		return nil, internal(err, "failed to load approval history")
	}
	return history, nil
}

// Actions lists which actions the actor may apply to the entity right now.
func (s *WorkflowService) Actions(ctx context.Context, entity models.EntityType, id models.ID, actor models.WorkflowActor) ([]models.ActionAvailability, error) {
	if !entity.Valid() {
		return nil, invalid("unknown workflow entity")
	}
	status, err := s.repo.CurrentStatus(ctx, entity, id)
	if err != nil {
		return nil, lookupError(err, "", fmt.Sprintf("%s not found", entity), "failed to load workflow status")
	}
	return s.AvailableActions(status, actor.Role), nil
}

// AvailableActions evaluates every action against status and role.
func (s *WorkflowService) AvailableActions(status models.WorkflowStatus, role models.UserRole) []models.ActionAvailability {
	out := make([]models.ActionAvailability, 0, len(actionOrder))
	for _, action := range actionOrder {
		item := models.ActionAvailability{Action: action, Target: transitions[action], Allowed: true}
		switch {
		case s.strict && !TransitionAllowed(status, action):
			item.Allowed = false
			item.Reason = fmt.Sprintf("not allowed from %s", status)
		case !RoleMayAct(role, action):
			item.Allowed = false
			item.Reason = fmt.Sprintf("requires role %s", transitions[action].ReviewerRole)
		}
		out = append(out, item)
	}
	return out
}
