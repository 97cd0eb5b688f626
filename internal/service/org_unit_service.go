package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/internal/repository"
	appErrors "github.com/noah-isme/uni-admin-api/pkg/errors"
)

// Org unit error codes.
const (
	CodeOrgUnitNotFound       = "ORG_UNIT_NOT_FOUND"
	CodeOrgUnitCodeConflict   = "ORG_UNIT_CODE_CONFLICT"
	CodeOrgUnitParentNotFound = "ORG_UNIT_PARENT_NOT_FOUND"
	CodeOrgUnitSelfParent     = "ORG_UNIT_SELF_PARENT"
	CodeOrgUnitParentCycle    = "ORG_UNIT_PARENT_CYCLE"
	CodeOrgUnitInvalidWindow  = "ORG_UNIT_INVALID_WINDOW"
)

type orgUnitRepository interface {
	List(ctx context.Context, filter models.OrgUnitFilter) ([]models.OrgUnit, int, error)
	ListActive(ctx context.Context) ([]models.OrgUnit, error)
	FindByID(ctx context.Context, id models.ID) (*models.OrgUnit, error)
	Create(ctx context.Context, unit *models.OrgUnit) error
	Update(ctx context.Context, unit *models.OrgUnit) error
}

type orgUnitAuditStore interface {
	auditWriter
	ListByResource(ctx context.Context, resource, resourceID string) ([]models.AuditLog, error)
}

// CreateOrgUnitRequest is the payload for a new org unit.
type CreateOrgUnitRequest struct {
	Code          string               `json:"code" validate:"required,max=50"`
	Name          string               `json:"name" validate:"required,max=255"`
	Type          string               `json:"type" validate:"required,max=50"`
	Status        models.OrgUnitStatus `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE DRAFT REJECTED"`
	Description   *string              `json:"description"`
	ParentID      *models.ID           `json:"parent_id"`
	EffectiveFrom *models.Date         `json:"effective_from"`
	EffectiveTo   *models.Date         `json:"effective_to"`
}

// UpdateOrgUnitRequest patches an org unit.
type UpdateOrgUnitRequest struct {
	Code             *string               `json:"code" validate:"omitempty,min=1,max=50"`
	Name             *string               `json:"name" validate:"omitempty,min=1,max=255"`
	Type             *string               `json:"type" validate:"omitempty,min=1,max=50"`
	Status           *models.OrgUnitStatus `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE DRAFT REJECTED"`
	Description      *string               `json:"description"`
	ParentID         *models.ID            `json:"parent_id"`
	ClearParent      bool                  `json:"clear_parent"`
	EffectiveFrom    *models.Date          `json:"effective_from"`
	EffectiveTo      *models.Date          `json:"effective_to"`
	ClearEffectiveTo bool                  `json:"clear_effective_to"`
}

// OrgUnitService manages the org unit hierarchy.
type OrgUnitService struct {
	repo      orgUnitRepository
	audit     orgUnitAuditStore
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	today     func() models.Date
}

// NewOrgUnitService constructs the service.
func NewOrgUnitService(repo orgUnitRepository, audit orgUnitAuditStore, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *OrgUnitService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrgUnitService{repo: repo, audit: audit, cache: cache, validator: validate, logger: logger, today: models.Today}
}

// List returns a page of org units.
func (s *OrgUnitService) List(ctx context.Context, filter models.OrgUnitFilter) ([]models.OrgUnit, *models.Pagination, error) {
	filter.Normalize()
	units, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internal(err, "failed to list org units")
	}
	return units, models.NewPagination(filter.Page, filter.Size, total), nil
}

// Get returns one org unit.
func (s *OrgUnitService) Get(ctx context.Context, id models.ID) (*models.OrgUnit, error) {
	unit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, CodeOrgUnitNotFound, "org unit not found", "failed to load org unit")
	}
	return unit, nil
}

// Tree returns all active units nested by parent. The boolean reports a cache hit.
func (s *OrgUnitService) Tree(ctx context.Context) ([]*models.OrgUnitNode, bool, error) {
	tree, hit, err := cached(ctx, s.cache, orgUnitTreeKey, func(ctx context.Context) ([]*models.OrgUnitNode, error) {
		units, err := s.repo.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		return models.BuildOrgUnitTree(units), nil
	})
	if err != nil {
		return nil, false, internal(err, "failed to build org unit tree")
	}
	return tree, hit, nil
}

// Create validates and stores a new org unit.
func (s *OrgUnitService) Create(ctx context.Context, req CreateOrgUnitRequest, meta models.AuditMeta) (*models.OrgUnit, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid org unit payload")
	}
	unit := &models.OrgUnit{
		Code:        req.Code,
		Name:        req.Name,
		Type:        req.Type,
		Status:      req.Status,
		Description: req.Description,
		ParentID:    req.ParentID,
		EffectiveTo: req.EffectiveTo,
	}
	if unit.Status == "" {
		unit.Status = models.OrgUnitStatusActive
	}
	if req.EffectiveFrom != nil {
		unit.EffectiveFrom = *req.EffectiveFrom
	} else {
		unit.EffectiveFrom = s.today()
	}
	if err := checkOrgUnitWindow(unit); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, unit); err != nil {
		return nil, mapOrgUnitError(err, "failed to create org unit")
	}
	s.cache.Invalidate(ctx, orgUnitTreeKey)
	recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionCreate, models.AuditResourceOrgUnit, unit.ID, nil, unit)
	return unit, nil
}

// Update patches an org unit.
func (s *OrgUnitService) Update(ctx context.Context, id models.ID, req UpdateOrgUnitRequest, meta models.AuditMeta) (*models.OrgUnit, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid org unit payload")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *current
	next := *current
	if req.Code != nil {
		next.Code = *req.Code
	}
	if req.Name != nil {
		next.Name = *req.Name
	}
	if req.Type != nil {
		next.Type = *req.Type
	}
	if req.Status != nil {
		next.Status = *req.Status
	}
	if req.Description != nil {
		next.Description = req.Description
	}
	if req.ClearParent {
		next.ParentID = nil
	} else if req.ParentID != nil {
		next.ParentID = req.ParentID
	}
	if req.EffectiveFrom != nil {
		next.EffectiveFrom = *req.EffectiveFrom
	}
	if req.ClearEffectiveTo {
		next.EffectiveTo = nil
	} else if req.EffectiveTo != nil {
		next.EffectiveTo = req.EffectiveTo
	}
	if err := checkOrgUnitWindow(&next); err != nil {
		return nil, err
	}
	if next.ParentID != nil && (before.ParentID == nil || *before.ParentID != *next.ParentID) {
		if err := s.checkAncestors(ctx, next.ID, *next.ParentID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, &next); err != nil {
		return nil, mapOrgUnitError(err, "failed to update org unit")
	}
	s.cache.Invalidate(ctx, orgUnitTreeKey)
	recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionUpdate, models.AuditResourceOrgUnit, next.ID, before, next)
	return &next, nil
}

// Retire soft-deletes an org unit: it becomes INACTIVE and an open window is
// closed today. Retiring an inactive unit is a no-op.
func (s *OrgUnitService) Retire(ctx context.Context, id models.ID, meta models.AuditMeta) (*models.OrgUnit, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == models.OrgUnitStatusInactive && current.EffectiveTo != nil {
		return current, nil
	}
	before := *current
	next := *current
	next.Status = models.OrgUnitStatusInactive
	if next.EffectiveTo == nil {
		end := s.today()
		if end.Before(next.EffectiveFrom) {
			end = next.EffectiveFrom
		}
		next.EffectiveTo = &end
	}

	if err := s.repo.Update(ctx, &next); err != nil {
		return nil, mapOrgUnitError(err, "failed to retire org unit")
	}
	s.cache.Invalidate(ctx, orgUnitTreeKey)
	recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionRetire, models.AuditResourceOrgUnit, next.ID, before, next)
	return &next, nil
}

// History lists the audit trail of an org unit newest first.
func (s *OrgUnitService) History(ctx context.Context, id models.ID) ([]models.OrgUnitHistoryEntry, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return []models.OrgUnitHistoryEntry{}, nil
	}
	logs, err := s.audit.ListByResource(ctx, models.AuditResourceOrgUnit, id.String())
	if err != nil {
		return nil, internal(err, "failed to load org unit history")
	}
	entries := make([]models.OrgUnitHistoryEntry, 0, len(logs))
	for _, log := range logs {
		entries = append(entries, models.OrgUnitHistoryEntry{
			ID:        log.ID,
			Action:    log.Action,
			UserID:    log.UserID,
			OldValues: log.OldValues,
			NewValues: log.NewValues,
			CreatedAt: log.CreatedAt,
		})
	}
	return entries, nil
}

// checkAncestors walks up from parent and fails if id is one of its ancestors.
// A missing parent is left to the foreign key.
func (s *OrgUnitService) checkAncestors(ctx context.Context, id, parent models.ID) error {
	seen := map[models.ID]bool{}
	for cur := &parent; cur != nil && !seen[*cur]; {
		if *cur == id {
			return appErrors.WithCode(appErrors.ErrValidation, CodeOrgUnitParentCycle, "parent change would make the org unit its own ancestor")
		}
		seen[*cur] = true
		unit, err := s.repo.FindByID(ctx, *cur)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return internal(err, "failed to load parent org unit")
		}
		cur = unit.ParentID
	}
	return nil
}

func checkOrgUnitWindow(unit *models.OrgUnit) error {
	if unit.ParentID != nil && unit.ID != 0 && *unit.ParentID == unit.ID {
		return appErrors.WithCode(appErrors.ErrValidation, CodeOrgUnitSelfParent, "an org unit cannot be its own parent")
	}
	if unit.EffectiveTo != nil && unit.EffectiveTo.Before(unit.EffectiveFrom) {
		return appErrors.WithCode(appErrors.ErrValidation, CodeOrgUnitInvalidWindow, "effective_to must be on or after effective_from")
	}
	return nil
}

func mapOrgUnitError(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return appErrors.WithCode(appErrors.ErrNotFound, CodeOrgUnitNotFound, "org unit not found")
	}
	var ce *repository.ConstraintError
	if !errors.As(err, &ce) {
		return internal(err, op)
	}
	switch ce.Kind {
	case repository.ConstraintUnique:
		return appErrors.WithCode(appErrors.ErrConflict, CodeOrgUnitCodeConflict, "org unit code already exists")
	case repository.ConstraintForeignKey:
		return appErrors.WithCode(appErrors.ErrUnprocessable, CodeOrgUnitParentNotFound, "parent org unit not found")
	case repository.ConstraintCheck:
		if ce.Field == "parent_id" {
			return appErrors.WithCode(appErrors.ErrValidation, CodeOrgUnitSelfParent, "an org unit cannot be its own parent")
		}
		return appErrors.WithCode(appErrors.ErrValidation, CodeOrgUnitInvalidWindow, "effective_to must be on or after effective_from")
	}
	return internal(err, op)
}
