package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/internal/repository"
	appErrors "github.com/noah-isme/uni-admin-api/pkg/errors"
)

// Assignment error codes.
const (
	CodeAssignmentNotFound            = "ASSIGNMENT_NOT_FOUND"
	CodeAssignmentEmployeeNotFound    = "ASSIGNMENT_EMPLOYEE_NOT_FOUND"
	CodeAssignmentOrgUnitNotFound     = "ASSIGNMENT_ORG_UNIT_NOT_FOUND"
	CodeAssignmentJobPositionNotFound = "ASSIGNMENT_JOB_POSITION_NOT_FOUND"
	CodeAssignmentInvalidAllocation   = "ASSIGNMENT_INVALID_ALLOCATION"
	CodeAssignmentInvalidWindow       = "ASSIGNMENT_INVALID_WINDOW"
)

var hundred = decimal.NewFromInt(100)

type orgAssignmentRepository interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.OrgAssignment, int, error)
	FindByID(ctx context.Context, id models.ID) (*models.OrgAssignment, error)
	Create(ctx context.Context, a *models.OrgAssignment) error
	Update(ctx context.Context, a *models.OrgAssignment) error
	Delete(ctx context.Context, id models.ID) error
}

// CreateAssignmentRequest places an employee in an org unit. Allocation
// defaults to 100 percent.
type CreateAssignmentRequest struct {
	EmployeeID     models.ID             `json:"employee_id" validate:"gt=0"`
	OrgUnitID      models.ID             `json:"org_unit_id" validate:"gt=0"`
	JobPositionID  *models.ID            `json:"job_position_id"`
	AssignmentType models.AssignmentType `json:"assignment_type" validate:"required,oneof=admin academic support"`
	IsPrimary      bool                  `json:"is_primary"`
	Allocation     *decimal.Decimal      `json:"allocation"`
	StartDate      *models.Date          `json:"start_date"`
	EndDate        *models.Date          `json:"end_date"`
}

// UpdateAssignmentRequest patches an assignment. The employee is fixed.
type UpdateAssignmentRequest struct {
	OrgUnitID        *models.ID             `json:"org_unit_id" validate:"omitempty,gt=0"`
	JobPositionID    *models.ID             `json:"job_position_id"`
	AssignmentType   *models.AssignmentType `json:"assignment_type" validate:"omitempty,oneof=admin academic support"`
	IsPrimary        *bool                  `json:"is_primary"`
	Allocation       *decimal.Decimal       `json:"allocation"`
	StartDate        *models.Date           `json:"start_date"`
	EndDate          *models.Date           `json:"end_date"`
	ClearEndDate     bool                   `json:"clear_end_date"`
	ClearJobPosition bool                   `json:"clear_job_position"`
}

// OrgAssignmentService manages employee assignments.
type OrgAssignmentService struct {
	repo      orgAssignmentRepository
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
	today     func() models.Date
}

// NewOrgAssignmentService constructs the service.
func NewOrgAssignmentService(repo orgAssignmentRepository, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *OrgAssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrgAssignmentService{repo: repo, audit: audit, validator: validate, logger: logger, today: models.Today}
}

// List returns a page of assignments.
func (s *OrgAssignmentService) List(ctx context.Context, filter models.AssignmentFilter) ([]models.OrgAssignment, *models.Pagination, error) {
	if filter.AssignmentType != "" && !filter.AssignmentType.Valid() {
		return nil, nil, invalid("unknown assignment_type")
	}
	filter.Normalize()
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internal(err, "failed to list org assignments")
	}
	return items, models.NewPagination(filter.Page, filter.Size, total), nil
}

// Get returns one assignment.
func (s *OrgAssignmentService) Get(ctx context.Context, id models.ID) (*models.OrgAssignment, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapAssignmentError(err, "failed to load org assignment")
	}
	return a, nil
}

// Create validates and stores an assignment.
func (s *OrgAssignmentService) Create(ctx context.Context, req CreateAssignmentRequest, meta models.AuditMeta) (*models.OrgAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid assignment payload")
	}
	a := &models.OrgAssignment{
		EmployeeID:     req.EmployeeID,
		OrgUnitID:      req.OrgUnitID,
		JobPositionID:  req.JobPositionID,
		AssignmentType: req.AssignmentType,
		IsPrimary:      req.IsPrimary,
		Allocation:     hundred,
		EndDate:        req.EndDate,
	}
	if req.Allocation != nil {
		a.Allocation = *req.Allocation
	}
	if req.StartDate != nil {
		a.StartDate = *req.StartDate
	} else {
		a.StartDate = s.today()
	}
	if err := checkAssignment(a); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, mapAssignmentError(err, "failed to create org assignment")
	}
	recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionCreate, models.AuditResourceAssignment, a.ID, nil, a)
	return s.reload(ctx, a), nil
}

// Update patches an assignment.
func (s *OrgAssignmentService) Update(ctx context.Context, id models.ID, req UpdateAssignmentRequest, meta models.AuditMeta) (*models.OrgAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid assignment payload")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *current
	next := *current
	if req.OrgUnitID != nil {
		next.OrgUnitID = *req.OrgUnitID
	}
	if req.ClearJobPosition {
		next.JobPositionID = nil
	} else if req.JobPositionID != nil {
		next.JobPositionID = req.JobPositionID
	}
	if req.AssignmentType != nil {
		next.AssignmentType = *req.AssignmentType
	}
	if req.IsPrimary != nil {
		next.IsPrimary = *req.IsPrimary
	}
	if req.Allocation != nil {
		next.Allocation = *req.Allocation
	}
	if req.StartDate != nil {
		next.StartDate = *req.StartDate
	}
	if req.ClearEndDate {
		next.EndDate = nil
	} else if req.EndDate != nil {
		next.EndDate = req.EndDate
	}
	if err := checkAssignment(&next); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, &next); err != nil {
		return nil, mapAssignmentError(err, "failed to update org assignment")
	}
	recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionUpdate, models.AuditResourceAssignment, next.ID, before, next)
	return s.reload(ctx, &next), nil
}

// Delete removes an assignment.
func (s *OrgAssignmentService) Delete(ctx context.Context, id models.ID, meta models.AuditMeta) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapAssignmentError(err, "failed to delete org assignment")
	}
	recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionDelete, models.AuditResourceAssignment, id, nil, nil)
	return nil
}

// reload refreshes joined display names after a write.
func (s *OrgAssignmentService) reload(ctx context.Context, a *models.OrgAssignment) *models.OrgAssignment {
	fresh, err := s.repo.FindByID(ctx, a.ID)
	if err != nil {
		s.logger.Warn("failed to reload org assignment", zap.String("id", a.ID.String()), zap.Error(err))
		return a
	}
	return fresh
}

func checkAssignment(a *models.OrgAssignment) error {
	if !a.Allocation.IsPositive() || a.Allocation.GreaterThan(hundred) {
		return appErrors.WithCode(appErrors.ErrValidation, CodeAssignmentInvalidAllocation, "allocation must be greater than 0 and at most 100")
	}
	if !a.Allocation.Equal(a.Allocation.Truncate(2)) {
		return appErrors.WithCode(appErrors.ErrValidation, CodeAssignmentInvalidAllocation, "allocation allows at most 2 decimal places")
	}
	if a.EndDate != nil && a.EndDate.Before(a.StartDate) {
		return appErrors.WithCode(appErrors.ErrValidation, CodeAssignmentInvalidWindow, "end_date must be on or after start_date")
	}
	return nil
}

func mapAssignmentError(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return appErrors.WithCode(appErrors.ErrNotFound, CodeAssignmentNotFound, "org assignment not found")
	}
	var ce *repository.ConstraintError
	if !errors.As(err, &ce) {
		return internal(err, op)
	}
	switch ce.Kind {
	case repository.ConstraintForeignKey:
		switch ce.Field {
		case "employee_id":
			return appErrors.WithCode(appErrors.ErrUnprocessable, CodeAssignmentEmployeeNotFound, "Employee not found")
		case "job_position_id":
			return appErrors.WithCode(appErrors.ErrUnprocessable, CodeAssignmentJobPositionNotFound, "Job position not found")
		}
		return appErrors.WithCode(appErrors.ErrUnprocessable, CodeAssignmentOrgUnitNotFound, "Org unit not found")
	case repository.ConstraintCheck:
		if ce.Field == "allocation" {
			return appErrors.WithCode(appErrors.ErrValidation, CodeAssignmentInvalidAllocation, "allocation must be greater than 0 and at most 100")
		}
		return appErrors.WithCode(appErrors.ErrValidation, CodeAssignmentInvalidWindow, "end_date must be on or after start_date")
	}
	return internal(err, op)
}
