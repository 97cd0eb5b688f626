package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/internal/service"
	"github.com/noah-isme/uni-admin-api/pkg/response"
)

type blockGroupService interface {
	List(ctx context.Context, blockID *models.ID, page models.PageQuery) ([]models.ProgramBlockGroup, *models.Pagination, error)
	Get(ctx context.Context, id models.ID) (*models.ProgramBlockGroup, error)
	Create(ctx context.Context, req service.BlockGroupRequest) (*models.ProgramBlockGroup, error)
	Update(ctx context.Context, id models.ID, req service.BlockGroupRequest) (*models.ProgramBlockGroup, error)
	Delete(ctx context.Context, id models.ID) error
}

type blockGroupRuleService interface {
	List(ctx context.Context, groupID *models.ID, page models.PageQuery) ([]models.ProgramBlockGroupRule, *models.Pagination, error)
	Get(ctx context.Context, id models.ID) (*models.ProgramBlockGroupRule, error)
	Create(ctx context.Context, req service.BlockGroupRuleRequest) (*models.ProgramBlockGroupRule, error)
	Update(ctx context.Context, id models.ID, req service.BlockGroupRuleRequest) (*models.ProgramBlockGroupRule, error)
	Delete(ctx context.Context, id models.ID) error
}

// ProgramBlockGroupHandler serves block groups and their rules.
type ProgramBlockGroupHandler struct {
	groups blockGroupService
	rules  blockGroupRuleService
}

// NewProgramBlockGroupHandler constructs the handler.
func NewProgramBlockGroupHandler(groups blockGroupService, rules blockGroupRuleService) *ProgramBlockGroupHandler {
	return &ProgramBlockGroupHandler{groups: groups, rules: rules}
}

// ListGroups godoc
// @Summary List block groups
// @Tags Program Block Groups
// @Produce json
// @Param block_id query string false "Block id"
// @Success 200 {object} response.Envelope
// @Router /tms/program-block-groups [get]
func (h *ProgramBlockGroupHandler) ListGroups(c *gin.Context) {
	blockID, err := queryID(c, "block_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.groups.List(c.Request.Context(), blockID, pageQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, items, pagination)
}

// GetGroup godoc
// @Summary Get block group
// @Tags Program Block Groups
// @Produce json
// @Param id path string true "Group id"
// @Success 200 {object} response.Envelope
// @Router /tms/program-block-groups/{id} [get]
func (h *ProgramBlockGroupHandler) GetGroup(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	group, err := h.groups.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, group, nil)
}

// CreateGroup godoc
// @Summary Create block group
// @Tags Program Block Groups
// @Accept json
// @Produce json
// @Param payload body service.BlockGroupRequest true "Group"
// @Success 201 {object} response.Envelope
// @Router /tms/program-block-groups [post]
func (h *ProgramBlockGroupHandler) CreateGroup(c *gin.Context) {
	var req service.BlockGroupRequest
	if !bindJSON(c, &req, "invalid block group payload") {
		return
	}
	group, err := h.groups.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group)
}

// UpdateGroup godoc
// @Summary Update block group
// @Tags Program Block Groups
// @Accept json
// @Produce json
// @Param id path string true "Group id"
// @Param payload body service.BlockGroupRequest true "Group"
// @Success 200 {object} response.Envelope
// @Router /tms/program-block-groups/{id} [put]
func (h *ProgramBlockGroupHandler) UpdateGroup(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.BlockGroupRequest
	if !bindJSON(c, &req, "invalid block group payload") {
		return
	}
	group, err := h.groups.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, group, nil)
}

// DeleteGroup godoc
// @Summary Delete block group
// @Tags Program Block Groups
// @Param id path string true "Group id"
// @Success 204
// @Router /tms/program-block-groups/{id} [delete]
func (h *ProgramBlockGroupHandler) DeleteGroup(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.groups.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListRules godoc
// @Summary List group rules
// @Tags Program Block Groups
// @Produce json
// @Param group_id query string false "Group id"
// @Success 200 {object} response.Envelope
// @Router /tms/program-block-group-rules [get]
func (h *ProgramBlockGroupHandler) ListRules(c *gin.Context) {
	groupID, err := queryID(c, "group_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.rules.List(c.Request.Context(), groupID, pageQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, items, pagination)
}

// GetRule godoc
// @Summary Get group rule
// @Tags Program Block Groups
// @Produce json
// @Param id path string true "Rule id"
// @Success 200 {object} response.Envelope
// @Router /tms/program-block-group-rules/{id} [get]
func (h *ProgramBlockGroupHandler) GetRule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	rule, err := h.rules.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, rule, nil)
}

// CreateRule godoc
// @Summary Create group rule
// @Tags Program Block Groups
// @Accept json
// @Produce json
// @Param payload body service.BlockGroupRuleRequest true "Rule"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /tms/program-block-group-rules [post]
func (h *ProgramBlockGroupHandler) CreateRule(c *gin.Context) {
	var req service.BlockGroupRuleRequest
	if !bindJSON(c, &req, "invalid rule payload") {
		return
	}
	rule, err := h.rules.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rule)
}

// UpdateRule godoc
// @Summary Update group rule
// @Tags Program Block Groups
// @Accept json
// @Produce json
// @Param id path string true "Rule id"
// @Param payload body service.BlockGroupRuleRequest true "Rule"
// @Success 200 {object} response.Envelope
// @Router /tms/program-block-group-rules/{id} [put]
func (h *ProgramBlockGroupHandler) UpdateRule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.BlockGroupRuleRequest
	if !bindJSON(c, &req, "invalid rule payload") {
		return
	}
	rule, err := h.rules.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, rule, nil)
}

// DeleteRule godoc
// @Summary Delete group rule
// @Tags Program Block Groups
// @Param id path string true "Rule id"
// @Success 204
// @Router /tms/program-block-group-rules/{id} [delete]
func (h *ProgramBlockGroupHandler) DeleteRule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.rules.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
