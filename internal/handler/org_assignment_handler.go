package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/internal/service"
	"github.com/noah-isme/uni-admin-api/pkg/response"
)

type orgAssignmentService interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.OrgAssignment, *models.Pagination, error)
	Get(ctx context.Context, id models.ID) (*models.OrgAssignment, error)
	Create(ctx context.Context, req service.CreateAssignmentRequest, meta models.AuditMeta) (*models.OrgAssignment, error)
	Update(ctx context.Context, id models.ID, req service.UpdateAssignmentRequest, meta models.AuditMeta) (*models.OrgAssignment, error)
	Delete(ctx context.Context, id models.ID, meta models.AuditMeta) error
}

// OrgAssignmentHandler exposes employee assignment endpoints.
type OrgAssignmentHandler struct {
	service orgAssignmentService
}

// NewOrgAssignmentHandler constructs the handler.
func NewOrgAssignmentHandler(svc orgAssignmentService) *OrgAssignmentHandler {
	return &OrgAssignmentHandler{service: svc}
}

// List godoc
// @Summary List org assignments
// @Tags Org Assignments
// @Produce json
// @Param employee_id query string false "Employee id"
// @Param org_unit_id query string false "Org unit id"
// @Param assignment_type query string false "admin, academic or support"
// @Param active_on query string false "Only assignments active on this date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param size query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Router /org/assignments [get]
func (h *OrgAssignmentHandler) List(c *gin.Context) {
	employeeID, err := queryID(c, "employee_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	orgUnitID, err := queryID(c, "org_unit_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	activeOn, err := queryDate(c, "active_on")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.AssignmentFilter{
		EmployeeID:     employeeID,
		OrgUnitID:      orgUnitID,
		AssignmentType: models.AssignmentType(c.Query("assignment_type")),
		ActiveOn:       activeOn,
		PageQuery:      pageQuery(c),
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get org assignment
// @Tags Org Assignments
// @Produce json
// @Param id path string true "Assignment id"
// @Success 200 {object} response.Envelope
// @Router /org/assignments/{id} [get]
func (h *OrgAssignmentHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	a, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, a, nil)
}

// Create godoc
// @Summary Create org assignment
// @Tags Org Assignments
// @Accept json
// @Produce json
// @Param payload body service.CreateAssignmentRequest true "Assignment"
// @Success 201 {object} response.Envelope
// @Router /org/assignments [post]
func (h *OrgAssignmentHandler) Create(c *gin.Context) {
	var req service.CreateAssignmentRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	a, err := h.service.Create(c.Request.Context(), req, auditMetaFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, a)
}

// Update godoc
// @Summary Update org assignment
// @Tags Org Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment id"
// @Param payload body service.UpdateAssignmentRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /org/assignments/{id} [put]
func (h *OrgAssignmentHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateAssignmentRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	a, err := h.service.Update(c.Request.Context(), id, req, auditMetaFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, a, nil)
}

// Delete godoc
// @Summary Delete org assignment
// @Tags Org Assignments
// @Param id path string true "Assignment id"
// @Success 204
// @Router /org/assignments/{id} [delete]
func (h *OrgAssignmentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id, auditMetaFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
