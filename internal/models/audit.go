package models

import (
	"encoding/json"
	"time"
)

const (
	AuditActionLogin  = "LOGIN"
	AuditActionCreate = "CREATE"
	AuditActionUpdate = "UPDATE"
	AuditActionRetire = "RETIRE"
	AuditActionDelete = "DELETE"
)

// Audit resources.
const (
	AuditResourceOrgUnit    = "org_unit"
	AuditResourceRelation   = "org_unit_relation"
	AuditResourceAssignment = "org_assignment"
	AuditResourceCourse     = "course"
	AuditResourceProgram    = "program"
	AuditResourceExport     = "export_job"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string          `db:"id" json:"id"`
	UserID     *ID             `db:"user_id" json:"user_id,omitempty"`
	Action     string          `db:"action" json:"action"`
	Resource   string          `db:"resource" json:"resource"`
	ResourceID *string         `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  json.RawMessage `db:"old_values" json:"old_values,omitempty"`
	NewValues  json.RawMessage `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string          `db:"ip_address" json:"ip_address"`
	UserAgent  string          `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// AuditMeta identifies who made a change and from where.
type AuditMeta struct {
	UserID    *ID
	IP        string
	UserAgent string
}
