package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-admin-api/internal/middleware"
	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/internal/service"
	appErrors "github.com/noah-isme/uni-admin-api/pkg/errors"
	"github.com/noah-isme/uni-admin-api/pkg/response"
)

type programService interface {
	List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, *models.Pagination, error)
	Get(ctx context.Context, id models.ID) (*models.Program, error)
	Create(ctx context.Context, req service.CreateProgramRequest) (*models.Program, error)
	Update(ctx context.Context, id models.ID, req service.UpdateProgramRequest) (*models.Program, error)
	Structure(ctx context.Context, id models.ID) (*models.ProgramStructure, bool, error)
	CreateBlock(ctx context.Context, programID models.ID, req service.BlockRequest) (*models.ProgramBlock, error)
	UpdateBlock(ctx context.Context, programID, blockID models.ID, req service.BlockRequest) (*models.ProgramBlock, error)
	DeleteBlock(ctx context.Context, programID, blockID models.ID) error
	AddCourse(ctx context.Context, programID models.ID, req service.CourseMapRequest) (*models.ProgramCourseMap, error)
	RemoveCourse(ctx context.Context, programID, mapID models.ID) error
}

type exportJobCreator interface {
	CreateJob(ctx context.Context, programID models.ID, req service.ExportRequest, actor *models.ID) (*models.ExportJob, error)
}

// ProgramHandler exposes training program endpoints.
type ProgramHandler struct {
	service programService
	exports exportJobCreator
}

// NewProgramHandler constructs the handler. exports may be nil when exports are disabled.
func NewProgramHandler(svc programService, exports exportJobCreator) *ProgramHandler {
	return &ProgramHandler{service: svc, exports: exports}
}

// List godoc
// @Summary List programs
// @Tags Programs
// @Produce json
// @Param search query string false "Search code or name"
// @Param status query string false "Workflow status"
// @Param org_unit_id query string false "Owning org unit"
// @Param page query int false "Page"
// @Param size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /tms/programs [get]
func (h *ProgramHandler) List(c *gin.Context) {
	orgUnitID, err := queryID(c, "org_unit_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.ProgramFilter{
		Search:    c.Query("search"),
		Status:    models.WorkflowStatus(c.Query("status")),
		OrgUnitID: orgUnitID,
		PageQuery: pageQuery(c),
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get program
// @Tags Programs
// @Produce json
// @Param id path string true "Program id"
// @Success 200 {object} response.Envelope
// @Router /tms/programs/{id} [get]
func (h *ProgramHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	program, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, program, nil)
}

// Create godoc
// @Summary Create program
// @Tags Programs
// @Accept json
// @Produce json
// @Param payload body service.CreateProgramRequest true "Program"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tms/programs [post]
func (h *ProgramHandler) Create(c *gin.Context) {
	var req service.CreateProgramRequest
	if !bindJSON(c, &req, "invalid program payload") {
		return
	}
	program, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, program)
}

// Update godoc
// @Summary Patch program
// @Description Only fields present in the payload are changed.
// @Tags Programs
// @Accept json
// @Produce json
// @Param id path string true "Program id"
// @Param payload body service.UpdateProgramRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /tms/programs/{id} [patch]
func (h *ProgramHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateProgramRequest
	if !bindJSON(c, &req, "invalid program payload") {
		return
	}
	program, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, program, nil)
}

// Structure godoc
// @Summary Program curriculum structure
// @Description Blocks, groups, courses, credit summaries and rule violations.
// @Tags Programs
// @Produce json
// @Param id path string true "Program id"
// @Success 200 {object} response.Envelope
// @Router /tms/programs/{id}/structure [get]
func (h *ProgramHandler) Structure(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	structure, hit, err := h.service.Structure(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	respond(c, http.StatusOK, structure, nil)
}

// CreateBlock godoc
// @Summary Add block
// @Tags Programs
// @Accept json
// @Produce json
// @Param id path string true "Program id"
// @Param payload body service.BlockRequest true "Block"
// @Success 201 {object} response.Envelope
// @Router /tms/programs/{id}/blocks [post]
func (h *ProgramHandler) CreateBlock(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.BlockRequest
	if !bindJSON(c, &req, "invalid block payload") {
		return
	}
	block, err := h.service.CreateBlock(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, block)
}

// UpdateBlock godoc
// @Summary Replace block
// @Tags Programs
// @Accept json
// @Produce json
// @Param id path string true "Program id"
// @Param blockId path string true "Block id"
// @Param payload body service.BlockRequest true "Block"
// @Success 200 {object} response.Envelope
// @Router /tms/programs/{id}/blocks/{blockId} [put]
func (h *ProgramHandler) UpdateBlock(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	blockID, ok := pathID(c, "blockId")
	if !ok {
		return
	}
	var req service.BlockRequest
	if !bindJSON(c, &req, "invalid block payload") {
		return
	}
	block, err := h.service.UpdateBlock(c.Request.Context(), id, blockID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, block, nil)
}

// DeleteBlock godoc
// @Summary Delete block
// @Tags Programs
// @Param id path string true "Program id"
// @Param blockId path string true "Block id"
// @Success 204
// @Router /tms/programs/{id}/blocks/{blockId} [delete]
func (h *ProgramHandler) DeleteBlock(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	blockID, ok := pathID(c, "blockId")
	if !ok {
		return
	}
	if err := h.service.DeleteBlock(c.Request.Context(), id, blockID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddCourse godoc
// @Summary Map course into program
// @Description Without block_id and group_id the course is standalone.
// @Tags Programs
// @Accept json
// @Produce json
// @Param id path string true "Program id"
// @Param payload body service.CourseMapRequest true "Course map"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tms/programs/{id}/courses [post]
func (h *ProgramHandler) AddCourse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.CourseMapRequest
	if !bindJSON(c, &req, "invalid course map payload") {
		return
	}
	m, err := h.service.AddCourse(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, m)
}

// RemoveCourse godoc
// @Summary Remove course from program
// @Tags Programs
// @Param id path string true "Program id"
// @Param mapId path string true "Course map id"
// @Success 204
// @Router /tms/programs/{id}/courses/{mapId} [delete]
func (h *ProgramHandler) RemoveCourse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	mapID, ok := pathID(c, "mapId")
	if !ok {
		return
	}
	if err := h.service.RemoveCourse(c.Request.Context(), id, mapID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Request curriculum export
// @Description Queues a CSV or PDF export. Poll the job and follow result_url once FINISHED.
// @Tags Exports
// @Accept json
// @Produce json
// @Param id path string true "Program id"
// @Param payload body service.ExportRequest true "Format"
// @Success 202 {object} response.Envelope
// @Router /tms/programs/{id}/exports [post]
func (h *ProgramHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "exports are disabled"))
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.ExportRequest
	if !bindJSON(c, &req, "invalid export payload") {
		return
	}
	var actor *models.ID
	if claims := claimsFromContext(c); claims != nil {
		uid := claims.UserID
		actor = &uid
	}
	job, err := h.exports.CreateJob(c.Request.Context(), id, req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusAccepted, job, nil)
}
