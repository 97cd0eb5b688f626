package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-admin-api/internal/models"
)

type auditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// Audit records one entry per successful write request on resource. The path
// parameter "id", when present, becomes the resource id; workflow routes are
// recorded as WORKFLOW_<ACTION>.
func Audit(w auditWriter, resource string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		start := time.Now().UTC()
		c.Next()

		if w == nil || c.Writer.Status() >= 400 {
			return
		}

		entry := &models.AuditLog{
			Action:    auditAction(c),
			Resource:  resource,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if claims := Claims(c); claims != nil {
			userID := claims.UserID
			entry.UserID = &userID
		}
		if id := c.Param("id"); id != "" {
			entry.ResourceID = &id
		}
		entry.NewValues, _ = json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		if err := w.Create(c.Request.Context(), entry); err != nil {
			logger.Warn("failed to record request audit", zap.String("resource", resource), zap.String("path", c.FullPath()), zap.Error(err))
		}
	}
}

func auditAction(c *gin.Context) string {
	if action := c.Param("action"); action != "" {
		return "WORKFLOW_" + strings.ToUpper(action)
	}
	switch c.Request.Method {
	case http.MethodPost:
		return models.AuditActionCreate
	case http.MethodDelete:
		return models.AuditActionDelete
	default:
		return models.AuditActionUpdate
	}
}
