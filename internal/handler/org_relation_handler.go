package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/internal/service"
	appErrors "github.com/noah-isme/uni-admin-api/pkg/errors"
	"github.com/noah-isme/uni-admin-api/pkg/response"
)

type orgRelationService interface {
	List(ctx context.Context, filter models.RelationFilter) ([]models.OrgUnitRelation, *models.Pagination, error)
	Get(ctx context.Context, id models.ID) (*models.OrgUnitRelation, error)
	GetByKey(ctx context.Context, key models.RelationKey) (*models.OrgUnitRelation, error)
	Create(ctx context.Context, req service.CreateRelationRequest, meta models.AuditMeta) (*models.OrgUnitRelation, error)
	Update(ctx context.Context, id models.ID, req service.UpdateRelationRequest, meta models.AuditMeta) (*models.OrgUnitRelation, error)
	UpdateByKey(ctx context.Context, key models.RelationKey, req service.UpdateRelationRequest, meta models.AuditMeta) (*models.OrgUnitRelation, error)
	Delete(ctx context.Context, id models.ID, meta models.AuditMeta) error
	DeleteByKey(ctx context.Context, key models.RelationKey, meta models.AuditMeta) error
}

// OrgRelationHandler exposes org unit relation endpoints. Single relations are
// addressed either by surrogate id or by the four-segment natural key.
type OrgRelationHandler struct {
	service orgRelationService
}

// NewOrgRelationHandler constructs the handler.
func NewOrgRelationHandler(svc orgRelationService) *OrgRelationHandler {
	return &OrgRelationHandler{service: svc}
}

// relationAddress is either an id or a natural key.
type relationAddress struct {
	id  models.ID
	key *models.RelationKey
}

func parseRelationAddress(c *gin.Context) (relationAddress, bool) {
	raw := strings.Trim(c.Param("key"), "/")
	if raw != "" && !strings.Contains(raw, "/") {
		id, err := models.ParseID(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid relation id"))
			return relationAddress{}, false
		}
		return relationAddress{id: id}, true
	}
	key, err := models.ParseRelationKey(raw)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid relation key: "+err.Error()))
		return relationAddress{}, false
	}
	return relationAddress{key: &key}, true
}

// List godoc
// @Summary List org unit relations
// @Tags Org Relations
// @Produce json
// @Param search query string false "Search note or relation type"
// @Param parent_id query string false "Parent unit id"
// @Param child_id query string false "Child unit id"
// @Param relation_type query string false "direct, advisory, support or collab"
// @Param active_on query string false "Only relations active on this date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param size query int false "Page size (max 100)"
// @Param sort query string false "Sort column"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /org/unit-relations [get]
func (h *OrgRelationHandler) List(c *gin.Context) {
	parentID, err := queryID(c, "parent_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	childID, err := queryID(c, "child_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	activeOn, err := queryDate(c, "active_on")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.RelationFilter{
		Search:       c.Query("search"),
		ParentID:     parentID,
		ChildID:      childID,
		RelationType: models.RelationType(c.Query("relation_type")),
		ActiveOn:     activeOn,
		PageQuery:    pageQuery(c),
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, items, pagination)
}

// Create godoc
// @Summary Create org unit relation
// @Tags Org Relations
// @Accept json
// @Produce json
// @Param payload body service.CreateRelationRequest true "Relation"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /org/unit-relations [post]
func (h *OrgRelationHandler) Create(c *gin.Context) {
	var req service.CreateRelationRequest
	if !bindJSON(c, &req, "invalid relation payload") {
		return
	}
	rel, err := h.service.Create(c.Request.Context(), req, auditMetaFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rel)
}

// Get godoc
// @Summary Get org unit relation
// @Description Address by id (/unit-relations/{id}) or by key (/unit-relations/{parent_id}/{child_id}/{relation_type}/{effective_from}).
// @Tags Org Relations
// @Produce json
// @Param key path string true "Relation id or natural key"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /org/unit-relations/{key} [get]
func (h *OrgRelationHandler) Get(c *gin.Context) {
	addr, ok := parseRelationAddress(c)
	if !ok {
		return
	}
	var (
		rel *models.OrgUnitRelation
		err error
	)
	if addr.key != nil {
		rel, err = h.service.GetByKey(c.Request.Context(), *addr.key)
	} else {
		rel, err = h.service.Get(c.Request.Context(), addr.id)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, rel, nil)
}

// Update godoc
// @Summary Update org unit relation
// @Tags Org Relations
// @Accept json
// @Produce json
// @Param key path string true "Relation id or natural key"
// @Param payload body service.UpdateRelationRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /org/unit-relations/{key} [put]
func (h *OrgRelationHandler) Update(c *gin.Context) {
	addr, ok := parseRelationAddress(c)
	if !ok {
		return
	}
	var req service.UpdateRelationRequest
	if !bindJSON(c, &req, "invalid relation payload") {
		return
	}
	var (
		rel *models.OrgUnitRelation
		err error
	)
	if addr.key != nil {
		rel, err = h.service.UpdateByKey(c.Request.Context(), *addr.key, req, auditMetaFromContext(c))
	} else {
		rel, err = h.service.Update(c.Request.Context(), addr.id, req, auditMetaFromContext(c))
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, rel, nil)
}

// Delete godoc
// @Summary Delete org unit relation
// @Tags Org Relations
// @Param key path string true "Relation id or natural key"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /org/unit-relations/{key} [delete]
func (h *OrgRelationHandler) Delete(c *gin.Context) {
	addr, ok := parseRelationAddress(c)
	if !ok {
		return
	}
	var err error
	if addr.key != nil {
		err = h.service.DeleteByKey(c.Request.Context(), *addr.key, auditMetaFromContext(c))
	} else {
		err = h.service.Delete(c.Request.Context(), addr.id, auditMetaFromContext(c))
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
