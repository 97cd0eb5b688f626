package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-admin-api/internal/middleware"
	"github.com/noah-isme/uni-admin-api/internal/models"
	appErrors "github.com/noah-isme/uni-admin-api/pkg/errors"
	"github.com/noah-isme/uni-admin-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// actorFromContext returns the workflow actor; a request without claims yields the zero actor.
func actorFromContext(c *gin.Context) models.WorkflowActor {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.WorkflowActor{}
	}
	return models.WorkflowActor{UserID: claims.UserID, Role: claims.Role}
}

func auditMetaFromContext(c *gin.Context) models.AuditMeta {
	meta := models.AuditMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	if claims := claimsFromContext(c); claims != nil {
		id := claims.UserID
		meta.UserID = &id
	}
	return meta
}

func pathID(c *gin.Context, name string) (models.ID, bool) {
	id, err := models.ParseID(c.Param(name))
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid %s", name)))
		return 0, false
	}
	return id, true
}

func queryID(c *gin.Context, name string) (*models.ID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := models.ParseID(raw)
	if err != nil || id <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid %s", name))
	}
	return &id, nil
}

func queryDate(c *gin.Context, name string) (*models.Date, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid %s, expected YYYY-MM-DD", name))
	}
	return &d, nil
}

func pageQuery(c *gin.Context) models.PageQuery {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("size"))
	return models.PageQuery{Page: page, Size: size, Sort: c.Query("sort"), Order: c.Query("order")}
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

func respond(c *gin.Context, status int, data interface{}, pagination *models.Pagination) {
	response.JSON(c, status, data, pagination, middleware.ExtractMeta(c))
}

// bindOptionalJSON binds dest only when the request carries a body.
func bindOptionalJSON(c *gin.Context, dest interface{}, message string) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, dest, message)
}
