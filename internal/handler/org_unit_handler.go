package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-admin-api/internal/middleware"
	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/internal/service"
	"github.com/noah-isme/uni-admin-api/pkg/response"
)

type orgUnitService interface {
	List(ctx context.Context, filter models.OrgUnitFilter) ([]models.OrgUnit, *models.Pagination, error)
	Get(ctx context.Context, id models.ID) (*models.OrgUnit, error)
	Tree(ctx context.Context) ([]*models.OrgUnitNode, bool, error)
	Create(ctx context.Context, req service.CreateOrgUnitRequest, meta models.AuditMeta) (*models.OrgUnit, error)
	Update(ctx context.Context, id models.ID, req service.UpdateOrgUnitRequest, meta models.AuditMeta) (*models.OrgUnit, error)
	Retire(ctx context.Context, id models.ID, meta models.AuditMeta) (*models.OrgUnit, error)
	History(ctx context.Context, id models.ID) ([]models.OrgUnitHistoryEntry, error)
}

// OrgUnitHandler exposes org unit endpoints.
type OrgUnitHandler struct {
	service orgUnitService
}

// NewOrgUnitHandler constructs the handler.
func NewOrgUnitHandler(svc orgUnitService) *OrgUnitHandler {
	return &OrgUnitHandler{service: svc}
}

// List godoc
// @Summary List org units
// @Tags Org Units
// @Produce json
// @Param search query string false "Search code or name"
// @Param type query string false "Unit type"
// @Param status query string false "ACTIVE, INACTIVE, DRAFT or REJECTED"
// @Param parent_id query string false "Parent unit id"
// @Param page query int false "Page"
// @Param size query int false "Page size (max 100)"
// @Param sort query string false "code, name, created_at or effective_from"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /org/units [get]
func (h *OrgUnitHandler) List(c *gin.Context) {
	parentID, err := queryID(c, "parent_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.OrgUnitFilter{
		Search:    c.Query("search"),
		Type:      c.Query("type"),
		Status:    models.OrgUnitStatus(c.Query("status")),
		ParentID:  parentID,
		PageQuery: pageQuery(c),
	}
	units, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, units, pagination)
}

// Tree godoc
// @Summary Active org unit hierarchy
// @Tags Org Units
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /org/units/tree [get]
func (h *OrgUnitHandler) Tree(c *gin.Context) {
	tree, hit, err := h.service.Tree(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	respond(c, http.StatusOK, tree, nil)
}

// Get godoc
// @Summary Get org unit
// @Tags Org Units
// @Produce json
// @Param id path string true "Org unit id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /org/units/{id} [get]
func (h *OrgUnitHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	unit, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, unit, nil)
}

// Create godoc
// @Summary Create org unit
// @Tags Org Units
// @Accept json
// @Produce json
// @Param payload body service.CreateOrgUnitRequest true "Org unit"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /org/units [post]
func (h *OrgUnitHandler) Create(c *gin.Context) {
	var req service.CreateOrgUnitRequest
	if !bindJSON(c, &req, "invalid org unit payload") {
		return
	}
	unit, err := h.service.Create(c.Request.Context(), req, auditMetaFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, unit)
}

// Update godoc
// @Summary Update org unit
// @Tags Org Units
// @Accept json
// @Produce json
// @Param id path string true "Org unit id"
// @Param payload body service.UpdateOrgUnitRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /org/units/{id} [put]
func (h *OrgUnitHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateOrgUnitRequest
	if !bindJSON(c, &req, "invalid org unit payload") {
		return
	}
	unit, err := h.service.Update(c.Request.Context(), id, req, auditMetaFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, unit, nil)
}

// Retire godoc
// @Summary Retire org unit
// @Description Marks the unit INACTIVE and closes its effective window. Units are never hard-deleted.
// @Tags Org Units
// @Produce json
// @Param id path string true "Org unit id"
// @Success 200 {object} response.Envelope
// @Router /org/units/{id} [delete]
func (h *OrgUnitHandler) Retire(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	unit, err := h.service.Retire(c.Request.Context(), id, auditMetaFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, unit, nil)
}

// History godoc
// @Summary Org unit change history
// @Tags Org Units
// @Produce json
// @Param id path string true "Org unit id"
// @Success 200 {object} response.Envelope
// @Router /org/units/{id}/history [get]
func (h *OrgUnitHandler) History(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	entries, err := h.service.History(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, entries, nil)
}
