package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-admin-api/internal/models"
)

// recordAudit writes an audit entry with JSON snapshots of the old and new
// values. Failures are logged only.
func recordAudit(ctx context.Context, w auditWriter, logger *zap.Logger, meta models.AuditMeta, action, resource string, id models.ID, oldValue, newValue interface{}) {
	if w == nil {
		return
	}
	resourceID := id.String()
	entry := &models.AuditLog{
		UserID:     meta.UserID,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		OldValues:  snapshot(oldValue),
		NewValues:  snapshot(newValue),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if err := w.Create(ctx, entry); err != nil {
		logger.Warn("failed to record audit log",
			zap.String("resource", resource),
			zap.String("resource_id", resourceID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func snapshot(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
