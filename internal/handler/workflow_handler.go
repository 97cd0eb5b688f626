package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/internal/service"
	"github.com/noah-isme/uni-admin-api/pkg/response"
)

type workflowService interface {
	Apply(ctx context.Context, entity models.EntityType, id models.ID, action models.WorkflowAction, input service.WorkflowActionInput, actor models.WorkflowActor) (*models.WorkflowResult, error)
	History(ctx context.Context, entity models.EntityType, id models.ID) ([]models.ApprovalHistory, error)
	Actions(ctx context.Context, entity models.EntityType, id models.ID, actor models.WorkflowActor) ([]models.ActionAvailability, error)
}

// WorkflowHandler exposes approval workflow endpoints for courses and programs.
type WorkflowHandler struct {
	service workflowService
}

// NewWorkflowHandler constructs the handler.
func NewWorkflowHandler(svc workflowService) *WorkflowHandler {
	return &WorkflowHandler{service: svc}
}

// Apply godoc
// @Summary Apply workflow action
// @Description Actions: submit, approve, reject, request_changes, forward, final_approve, final_reject, delete.
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Course or program id"
// @Param action path string true "Workflow action"
// @Param payload body service.WorkflowActionInput false "Comments and priority"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tms/courses/{id}/workflow/{action} [post]
// @Router /tms/programs/{id}/workflow/{action} [post]
func (h *WorkflowHandler) Apply(entity models.EntityType) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var input service.WorkflowActionInput
		if !bindOptionalJSON(c, &input, "invalid workflow payload") {
			return
		}
		result, err := h.service.Apply(c.Request.Context(), entity, id, models.WorkflowAction(c.Param("action")), input, actorFromContext(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		respond(c, http.StatusOK, result, nil)
	}
}

// History godoc
// @Summary Approval history
// @Tags Workflow
// @Produce json
// @Param id path string true "Course or program id"
// @Success 200 {object} response.Envelope
// @Router /tms/courses/{id}/workflow/history [get]
// @Router /tms/programs/{id}/workflow/history [get]
func (h *WorkflowHandler) History(entity models.EntityType) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		history, err := h.service.History(c.Request.Context(), entity, id)
		if err != nil {
			response.Error(c, err)
			return
		}
		respond(c, http.StatusOK, history, nil)
	}
}

// Actions godoc
// @Summary Actions available to the caller
// @Tags Workflow
// @Produce json
// @Param id path string true "Course or program id"
// @Success 200 {object} response.Envelope
// @Router /tms/courses/{id}/workflow/actions [get]
// @Router /tms/programs/{id}/workflow/actions [get]
func (h *WorkflowHandler) Actions(entity models.EntityType) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		actions, err := h.service.Actions(c.Request.Context(), entity, id, actorFromContext(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		respond(c, http.StatusOK, actions, nil)
	}
}
