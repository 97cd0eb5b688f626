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

// Relation error codes returned to clients.
const (
	CodeRelationNotFound       = "RELATION_NOT_FOUND"
	CodeRelationParentNotFound = "RELATION_PARENT_NOT_FOUND"
	CodeRelationChildNotFound  = "RELATION_CHILD_NOT_FOUND"
	CodeRelationDuplicate      = "RELATION_DUPLICATE"
	CodeRelationSelfReference  = "RELATION_SELF_REFERENCE"
	CodeRelationInvalidWindow  = "RELATION_INVALID_WINDOW"
)

const (
	msgRelationNotFound       = "Org unit relation not found"
	msgRelationParentNotFound = "Parent org unit not found"
	msgRelationChildNotFound  = "Child org unit not found"
	msgRelationDuplicate      = "Relation already exists for this parent, child, type and effective date"
	msgRelationSelfReference  = "An org unit cannot be related to itself"
	msgRelationInvalidWindow  = "effective_to must be on or after effective_from"
)

type orgRelationRepository interface {
	FindAll(ctx context.Context, filter models.RelationFilter) ([]models.OrgUnitRelation, int, error)
	FindByID(ctx context.Context, id models.ID) (*models.OrgUnitRelation, error)
	FindByKey(ctx context.Context, key models.RelationKey) (*models.OrgUnitRelation, error)
	Create(ctx context.Context, rel *models.OrgUnitRelation) error
	Update(ctx context.Context, rel *models.OrgUnitRelation) error
	Delete(ctx context.Context, id models.ID) error
}

// CreateRelationRequest is the payload for linking two org units.
type CreateRelationRequest struct {
	ParentID      models.ID           `json:"parent_id" validate:"gt=0"`
	ChildID       models.ID           `json:"child_id" validate:"gt=0"`
	RelationType  models.RelationType `json:"relation_type" validate:"required,relationtype"`
	EffectiveFrom *models.Date        `json:"effective_from"`
	EffectiveTo   *models.Date        `json:"effective_to"`
	Note          *string             `json:"note" validate:"omitempty,max=1000"`
}

// UpdateRelationRequest patches the mutable fields of a relation. Parent and
// child are fixed once created.
type UpdateRelationRequest struct {
	RelationType     *models.RelationType `json:"relation_type" validate:"omitempty,relationtype"`
	EffectiveFrom    *models.Date         `json:"effective_from"`
	EffectiveTo      *models.Date         `json:"effective_to"`
	ClearEffectiveTo bool                 `json:"clear_effective_to"`
	Note             *string              `json:"note" validate:"omitempty,max=1000"`
}

// OrgRelationService manages typed links between org units.
type OrgRelationService struct {
	repo      orgRelationRepository
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
	today     func() models.Date
}

// NewOrgRelationService constructs the service.
func NewOrgRelationService(repo orgRelationRepository, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *OrgRelationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	validate.RegisterValidation("relationtype", func(fl validator.FieldLevel) bool {
		return models.RelationType(fl.Field().String()).Valid()
	})
	return &OrgRelationService{repo: repo, audit: audit, validator: validate, logger: logger, today: models.Today}
}

// List returns a page of relations.
func (s *OrgRelationService) List(ctx context.Context, filter models.RelationFilter) ([]models.OrgUnitRelation, *models.Pagination, error) {
	if filter.RelationType != "" && !filter.RelationType.Valid() {
		return nil, nil, invalid("unknown relation_type")
	}
	filter.Normalize()
	items, total, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		return nil, nil, internal(err, "failed to list org unit relations")
	}
	return items, models.NewPagination(filter.Page, filter.Size, total), nil
}

// Get returns a relation by surrogate id.
func (s *OrgRelationService) Get(ctx context.Context, id models.ID) (*models.OrgUnitRelation, error) {
	rel, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRelationError(err, "failed to load org unit relation")
	}
	return rel, nil
}

// GetByKey returns a relation by its natural key.
func (s *OrgRelationService) GetByKey(ctx context.Context, key models.RelationKey) (*models.OrgUnitRelation, error) {
	rel, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, mapRelationError(err, "failed to load org unit relation")
	}
	return rel, nil
}

// Create validates and stores a new relation.
func (s *OrgRelationService) Create(ctx context.Context, req CreateRelationRequest, meta models.AuditMeta) (*models.OrgUnitRelation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid relation payload")
	}
	if req.ParentID == req.ChildID {
		return nil, appErrors.WithCode(appErrors.ErrValidation, CodeRelationSelfReference, msgRelationSelfReference)
	}

	rel := &models.OrgUnitRelation{
		ParentID:     req.ParentID,
		ChildID:      req.ChildID,
		RelationType: req.RelationType,
		EffectiveTo:  req.EffectiveTo,
		Note:         req.Note,
	}
	if req.EffectiveFrom != nil {
		rel.EffectiveFrom = *req.EffectiveFrom
	} else {
		rel.EffectiveFrom = s.today()
	}
	if err := checkWindow(rel.EffectiveFrom, rel.EffectiveTo); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, rel); err != nil {
		return nil, mapRelationError(err, "failed to create org unit relation")
	}
	recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionCreate, models.AuditResourceRelation, rel.ID, nil, rel)
	return rel, nil
}

// Update patches a relation addressed by surrogate id.
func (s *OrgRelationService) Update(ctx context.Context, id models.ID, req UpdateRelationRequest, meta models.AuditMeta) (*models.OrgUnitRelation, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, current, req, meta)
}

// UpdateByKey patches a relation addressed by its natural key.
func (s *OrgRelationService) UpdateByKey(ctx context.Context, key models.RelationKey, req UpdateRelationRequest, meta models.AuditMeta) (*models.OrgUnitRelation, error) {
	current, err := s.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, current, req, meta)
}

func (s *OrgRelationService) update(ctx context.Context, current *models.OrgUnitRelation, req UpdateRelationRequest, meta models.AuditMeta) (*models.OrgUnitRelation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid relation payload")
	}
	before := *current
	next := *current
	if req.RelationType != nil {
		next.RelationType = *req.RelationType
	}
	if req.EffectiveFrom != nil {
		next.EffectiveFrom = *req.EffectiveFrom
	}
	if req.ClearEffectiveTo {
		next.EffectiveTo = nil
	} else if req.EffectiveTo != nil {
		next.EffectiveTo = req.EffectiveTo
	}
	if req.Note != nil {
		next.Note = req.Note
	}
	if err := checkWindow(next.EffectiveFrom, next.EffectiveTo); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, &next); err != nil {
		return nil, mapRelationError(err, "failed to update org unit relation")
	}
	recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionUpdate, models.AuditResourceRelation, next.ID, before, next)
	return &next, nil
}

// Delete removes a relation addressed by surrogate id.
func (s *OrgRelationService) Delete(ctx context.Context, id models.ID, meta models.AuditMeta) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.delete(ctx, current, meta)
}

// DeleteByKey removes a relation addressed by its natural key.
func (s *OrgRelationService) DeleteByKey(ctx context.Context, key models.RelationKey, meta models.AuditMeta) error {
	current, err := s.GetByKey(ctx, key)
	if err != nil {
		return err
	}
	return s.delete(ctx, current, meta)
}

func (s *OrgRelationService) delete(ctx context.Context, current *models.OrgUnitRelation, meta models.AuditMeta) error {
	if err := s.repo.Delete(ctx, current.ID); err != nil {
		return mapRelationError(err, "failed to delete org unit relation")
	}
	recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionDelete, models.AuditResourceRelation, current.ID, current, nil)
	return nil
}

func checkWindow(from models.Date, to *models.Date) error {
	if to != nil && to.Before(from) {
		return appErrors.WithCode(appErrors.ErrValidation, CodeRelationInvalidWindow, msgRelationInvalidWindow)
	}
	return nil
}

// mapRelationError turns tagged persistence errors into client errors.
func mapRelationError(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return appErrors.WithCode(appErrors.ErrNotFound, CodeRelationNotFound, msgRelationNotFound)
	}
	var ce *repository.ConstraintError
	if !errors.As(err, &ce) {
		return internal(err, op)
	}
	switch ce.Kind {
	case repository.ConstraintForeignKey:
		if ce.Field == "child_id" {
			return appErrors.WithCode(appErrors.ErrUnprocessable, CodeRelationChildNotFound, msgRelationChildNotFound)
		}
		return appErrors.WithCode(appErrors.ErrUnprocessable, CodeRelationParentNotFound, msgRelationParentNotFound)
	case repository.ConstraintUnique:
		return appErrors.WithCode(appErrors.ErrConflict, CodeRelationDuplicate, msgRelationDuplicate)
	case repository.ConstraintCheck:
		switch ce.Constraint {
		case "org_unit_relations_not_self":
			return appErrors.WithCode(appErrors.ErrValidation, CodeRelationSelfReference, msgRelationSelfReference)
		case "org_unit_relations_valid_window":
			return appErrors.WithCode(appErrors.ErrValidation, CodeRelationInvalidWindow, msgRelationInvalidWindow)
		}
		return appErrors.Clone(appErrors.ErrValidation, "invalid "+ce.Field)
	}
	return internal(err, op)
}
