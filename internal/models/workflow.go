package models

import (
	"strings"
	"time"
)

// WorkflowStatus is the approval status of a course or program.
type WorkflowStatus string

const (
	StatusDraft     WorkflowStatus = "DRAFT"
	StatusSubmitted WorkflowStatus = "SUBMITTED"
	StatusApproved  WorkflowStatus = "APPROVED"
	StatusRejected  WorkflowStatus = "REJECTED"
	StatusPublished WorkflowStatus = "PUBLISHED"
	StatusDeleted   WorkflowStatus = "DELETED"
)

// WorkflowStage names the body currently reviewing the record.
type WorkflowStage string

const (
	StageFaculty        WorkflowStage = "FACULTY"
	StageAcademicOffice WorkflowStage = "ACADEMIC_OFFICE"
	StageAcademicBoard  WorkflowStage = "ACADEMIC_BOARD"
)

// WorkflowAction is a named review action.
type WorkflowAction string

const (
	ActionSubmit         WorkflowAction = "submit"
	ActionApprove        WorkflowAction = "approve"
	ActionReject         WorkflowAction = "reject"
	ActionRequestChanges WorkflowAction = "request_changes"
	ActionForward        WorkflowAction = "forward"
	ActionFinalApprove   WorkflowAction = "final_approve"
	ActionFinalReject    WorkflowAction = "final_reject"
	ActionDelete         WorkflowAction = "delete"
)

// HistoryLabel is the upper-case form recorded in approval history.
func (a WorkflowAction) HistoryLabel() string { return strings.ToUpper(string(a)) }

// EntityType identifies which record family a workflow belongs to.
type EntityType string

const (
	EntityCourse  EntityType = "course"
	EntityProgram EntityType = "program"
)

// Valid reports whether e is a workflow-enabled entity.
func (e EntityType) Valid() bool { return e == EntityCourse || e == EntityProgram }

// WorkflowRecord is the current review state of one course or program.
type WorkflowRecord struct {
	ID         ID             `db:"id" json:"id"`
	EntityType EntityType     `db:"entity_type" json:"entity_type"`
	EntityID   ID             `db:"entity_id" json:"entity_id"`
	Status     WorkflowStatus `db:"status" json:"status"`
	Stage      WorkflowStage  `db:"workflow_stage" json:"workflow_stage"`
	Priority   string         `db:"priority" json:"priority"`
	Notes      *string        `db:"notes" json:"notes,omitempty"`
	UpdatedBy  *ID            `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// ApprovalHistory is an append-only record of one applied action.
type ApprovalHistory struct {
	ID           ID             `db:"id" json:"id"`
	EntityType   EntityType     `db:"entity_type" json:"entity_type"`
	EntityID     ID             `db:"entity_id" json:"entity_id"`
	Action       string         `db:"action" json:"action"`
	FromStatus   WorkflowStatus `db:"from_status" json:"from_status"`
	ToStatus     WorkflowStatus `db:"to_status" json:"to_status"`
	ReviewerRole UserRole       `db:"reviewer_role" json:"reviewer_role"`
	ReviewerID   *ID            `db:"reviewer_id" json:"reviewer_id,omitempty"`
	Comments     *string        `db:"comments" json:"comments,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// Transition is the target of a workflow action.
type Transition struct {
	Status       WorkflowStatus `json:"status"`
	Stage        WorkflowStage  `json:"workflow_stage"`
	ReviewerRole UserRole       `json:"reviewer_role"`
}

// WorkflowActor is the authenticated user applying an action.
type WorkflowActor struct {
	UserID ID
	Role   UserRole
}

// WorkflowResult is returned after an action is applied.
type WorkflowResult struct {
	Workflow WorkflowRecord    `json:"workflow"`
	History  []ApprovalHistory `json:"history"`
}

// ActionAvailability tells a client whether an action may be offered.
type ActionAvailability struct {
	Action  WorkflowAction `json:"action"`
	Allowed bool           `json:"allowed"`
	Target  Transition     `json:"target"`
	Reason  string         `json:"reason,omitempty"`
}
