package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/internal/service"
	"github.com/noah-isme/uni-admin-api/pkg/response"
)

type courseService interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error)
	Get(ctx context.Context, id models.ID) (*models.Course, error)
	Create(ctx context.Context, req service.CourseRequest) (*models.Course, error)
	Update(ctx context.Context, id models.ID, req service.CourseRequest) (*models.Course, error)
	Delete(ctx context.Context, id models.ID, comments *string, actor models.WorkflowActor) (*models.WorkflowResult, error)
}

// CourseHandler exposes course catalogue endpoints.
type CourseHandler struct {
	service courseService
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(svc courseService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param search query string false "Search code or name"
// @Param code query string false "Exact course code"
// @Param status query string false "Workflow status"
// @Param org_unit_id query string false "Owning org unit"
// @Param page query int false "Page"
// @Param size query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Router /tms/courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	orgUnitID, err := queryID(c, "org_unit_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.CourseFilter{
		Search:    c.Query("search"),
		Code:      c.Query("code"),
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
// @Summary Get course detail
// @Description Includes prerequisites, syllabus, workflow and credit warnings.
// @Tags Courses
// @Produce json
// @Param id path string true "Course id"
// @Success 200 {object} response.Envelope
// @Router /tms/courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	course, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, course, nil)
}

// Create godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body service.CourseRequest true "Course"
// @Success 201 {object} response.Envelope
// @Router /tms/courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req service.CourseRequest
	if !bindJSON(c, &req, "invalid course payload") {
		return
	}
	course, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Update godoc
// @Summary Update course
// @Description Replaces prerequisites and syllabus in one transaction.
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course id"
// @Param payload body service.CourseRequest true "Course"
// @Success 200 {object} response.Envelope
// @Router /tms/courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.CourseRequest
	if !bindJSON(c, &req, "invalid course payload") {
		return
	}
	course, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, course, nil)
}

// Delete godoc
// @Summary Delete course
// @Description Applies the workflow delete action; the course is kept with status DELETED.
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course id"
// @Param payload body service.WorkflowActionInput false "Optional comments"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tms/courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input service.WorkflowActionInput
	if !bindOptionalJSON(c, &input, "invalid delete payload") {
		return
	}
	result, err := h.service.Delete(c.Request.Context(), id, input.Comments, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, result, nil)
}
