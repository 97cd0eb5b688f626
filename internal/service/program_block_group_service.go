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

// Block group and rule error codes.
const (
	CodeGroupCodeConflict = "PROGRAM_BLOCK_GROUP_CODE_CONFLICT"
	CodeRuleNotFound      = "PROGRAM_BLOCK_GROUP_RULE_NOT_FOUND"
	CodeRuleInvalidBounds = "PROGRAM_BLOCK_GROUP_RULE_INVALID_BOUNDS"
)

type blockGroupRepository interface {
	List(ctx context.Context, blockID *models.ID, page models.PageQuery) ([]models.ProgramBlockGroup, int, error)
	FindByID(ctx context.Context, id models.ID) (*models.ProgramBlockGroup, error)
	Create(ctx context.Context, g *models.ProgramBlockGroup) error
	Update(ctx context.Context, g *models.ProgramBlockGroup) error
	Delete(ctx context.Context, id models.ID) error
}

type blockGroupRuleRepository interface {
	List(ctx context.Context, groupID *models.ID, page models.PageQuery) ([]models.ProgramBlockGroupRule, int, error)
	FindByID(ctx context.Context, id models.ID) (*models.ProgramBlockGroupRule, error)
	Create(ctx context.Context, rule *models.ProgramBlockGroupRule) error
	Update(ctx context.Context, rule *models.ProgramBlockGroupRule) error
	Delete(ctx context.Context, id models.ID) error
}

// programOwner resolves the program a block or group belongs to.
type programOwner interface {
	BlockProgramID(ctx context.Context, blockID models.ID) (models.ID, error)
	GroupProgramID(ctx context.Context, groupID models.ID) (models.ID, error)
}

// BlockGroupRequest creates or replaces a block group.
type BlockGroupRequest struct {
	BlockID      models.ID `json:"block_id" validate:"gt=0"`
	Code         string    `json:"code" validate:"required,max=50"`
	Title        string    `json:"title" validate:"required,max=255"`
	GroupType    string    `json:"group_type" validate:"required,max=50"`
	DisplayOrder int       `json:"display_order" validate:"gte=0"`
}

// BlockGroupRuleRequest creates or replaces a group rule.
type BlockGroupRuleRequest struct {
	GroupID     models.ID `json:"group_id" validate:"gt=0"`
	MinCredits  *int      `json:"min_credits" validate:"omitempty,gte=0"`
	MaxCredits  *int      `json:"max_credits" validate:"omitempty,gte=0"`
	MinCourses  *int      `json:"min_courses" validate:"omitempty,gte=0"`
	MaxCourses  *int      `json:"max_courses" validate:"omitempty,gte=0"`
	Description *string   `json:"description" validate:"omitempty,max=1000"`
}

// ProgramBlockGroupService manages block groups.
type ProgramBlockGroupService struct {
	repo      blockGroupRepository
	owners    programOwner
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgramBlockGroupService constructs the service.
func NewProgramBlockGroupService(repo blockGroupRepository, owners programOwner, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ProgramBlockGroupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramBlockGroupService{repo: repo, owners: owners, cache: cache, validator: validate, logger: logger}
}

// List returns a page of groups, optionally for one block.
func (s *ProgramBlockGroupService) List(ctx context.Context, blockID *models.ID, page models.PageQuery) ([]models.ProgramBlockGroup, *models.Pagination, error) {
	page.Normalize()
	groups, total, err := s.repo.List(ctx, blockID, page)
	if err != nil {
		return nil, nil, internal(err, "failed to list program block groups")
	}
	return groups, models.NewPagination(page.Page, page.Size, total), nil
}

// Get returns a group.
func (s *ProgramBlockGroupService) Get(ctx context.Context, id models.ID) (*models.ProgramBlockGroup, error) {
	g, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapGroupError(err, "failed to load program block group")
	}
	return g, nil
}

// Create adds a group to a block.
func (s *ProgramBlockGroupService) Create(ctx context.Context, req BlockGroupRequest) (*models.ProgramBlockGroup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid program block group payload")
	}
	g := &models.ProgramBlockGroup{BlockID: req.BlockID, Code: req.Code, Title: req.Title, GroupType: req.GroupType, DisplayOrder: req.DisplayOrder}
	if err := s.repo.Create(ctx, g); err != nil {
		return nil, mapGroupError(err, "failed to create program block group")
	}
	s.invalidateBlock(ctx, g.BlockID)
	return g, nil
}

// Update replaces a group. Moving it to another block invalidates both programs.
func (s *ProgramBlockGroupService) Update(ctx context.Context, id models.ID, req BlockGroupRequest) (*models.ProgramBlockGroup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid program block group payload")
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapGroupError(err, "failed to load program block group")
	}
	g := &models.ProgramBlockGroup{ID: id, BlockID: req.BlockID, Code: req.Code, Title: req.Title, GroupType: req.GroupType, DisplayOrder: req.DisplayOrder, CreatedAt: current.CreatedAt}
	if err := s.repo.Update(ctx, g); err != nil {
		return nil, mapGroupError(err, "failed to update program block group")
	}
	s.invalidateBlock(ctx, current.BlockID)
	if current.BlockID != g.BlockID {
		s.invalidateBlock(ctx, g.BlockID)
	}
	return g, nil
}

// Delete removes a group with its rules.
func (s *ProgramBlockGroupService) Delete(ctx context.Context, id models.ID) error {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return mapGroupError(err, "failed to load program block group")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapGroupError(err, "failed to delete program block group")
	}
	s.invalidateBlock(ctx, current.BlockID)
	return nil
}

func (s *ProgramBlockGroupService) invalidateBlock(ctx context.Context, blockID models.ID) {
	if !s.cache.Enabled() || s.owners == nil {
		return
	}
	programID, err := s.owners.BlockProgramID(ctx, blockID)
	if err != nil {
		s.logger.Warn("failed to resolve block program", zap.String("block_id", blockID.String()), zap.Error(err))
		return
	}
	s.cache.Invalidate(ctx, ProgramStructureKey(programID))
}

// ProgramBlockGroupRuleService manages group rules.
type ProgramBlockGroupRuleService struct {
	repo      blockGroupRuleRepository
	owners    programOwner
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgramBlockGroupRuleService constructs the service.
func NewProgramBlockGroupRuleService(repo blockGroupRuleRepository, owners programOwner, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ProgramBlockGroupRuleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramBlockGroupRuleService{repo: repo, owners: owners, cache: cache, validator: validate, logger: logger}
}

// List returns a page of rules, optionally for one group.
func (s *ProgramBlockGroupRuleService) List(ctx context.Context, groupID *models.ID, page models.PageQuery) ([]models.ProgramBlockGroupRule, *models.Pagination, error) {
	page.Normalize()
	rules, total, err := s.repo.List(ctx, groupID, page)
	if err != nil {
		return nil, nil, internal(err, "failed to list program block group rules")
	}
	return rules, models.NewPagination(page.Page, page.Size, total), nil
}

// Get returns a rule.
func (s *ProgramBlockGroupRuleService) Get(ctx context.Context, id models.ID) (*models.ProgramBlockGroupRule, error) {
	rule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRuleError(err, "failed to load program block group rule")
	}
	return rule, nil
}

// Create adds a rule to a group.
func (s *ProgramBlockGroupRuleService) Create(ctx context.Context, req BlockGroupRuleRequest) (*models.ProgramBlockGroupRule, error) {
	rule, err := s.build(req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, mapRuleError(err, "failed to create program block group rule")
	}
	s.invalidateGroup(ctx, rule.GroupID)
	return rule, nil
}

// Update replaces a rule.
func (s *ProgramBlockGroupRuleService) Update(ctx context.Context, id models.ID, req BlockGroupRuleRequest) (*models.ProgramBlockGroupRule, error) {
	rule, err := s.build(req)
	if err != nil {
		return nil, err
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRuleError(err, "failed to load program block group rule")
	}
	rule.ID = id
	rule.CreatedAt = current.CreatedAt
	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, mapRuleError(err, "failed to update program block group rule")
	}
	s.invalidateGroup(ctx, current.GroupID)
	if current.GroupID != rule.GroupID {
		s.invalidateGroup(ctx, rule.GroupID)
	}
	return rule, nil
}

// Delete removes a rule.
func (s *ProgramBlockGroupRuleService) Delete(ctx context.Context, id models.ID) error {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return mapRuleError(err, "failed to load program block group rule")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRuleError(err, "failed to delete program block group rule")
	}
	s.invalidateGroup(ctx, current.GroupID)
	return nil
}

func (s *ProgramBlockGroupRuleService) build(req BlockGroupRuleRequest) (*models.ProgramBlockGroupRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid program block group rule payload")
	}
	if req.MinCredits != nil && req.MaxCredits != nil && *req.MinCredits > *req.MaxCredits {
		return nil, appErrors.WithCode(appErrors.ErrValidation, CodeRuleInvalidBounds, "min_credits must not exceed max_credits")
	}
	if req.MinCourses != nil && req.MaxCourses != nil && *req.MinCourses > *req.MaxCourses {
		return nil, appErrors.WithCode(appErrors.ErrValidation, CodeRuleInvalidBounds, "min_courses must not exceed max_courses")
	}
	return &models.ProgramBlockGroupRule{
		GroupID:     req.GroupID,
		MinCredits:  req.MinCredits,
		MaxCredits:  req.MaxCredits,
		MinCourses:  req.MinCourses,
		MaxCourses:  req.MaxCourses,
		Description: req.Description,
	}, nil
}

func (s *ProgramBlockGroupRuleService) invalidateGroup(ctx context.Context, groupID models.ID) {
	if !s.cache.Enabled() || s.owners == nil {
		return
	}
	programID, err := s.owners.GroupProgramID(ctx, groupID)
	if err != nil {
		s.logger.Warn("failed to resolve group program", zap.String("group_id", groupID.String()), zap.Error(err))
		return
	}
	s.cache.Invalidate(ctx, ProgramStructureKey(programID))
}

func mapGroupError(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return appErrors.WithCode(appErrors.ErrNotFound, CodeGroupNotFound, "program block group not found")
	}
	var ce *repository.ConstraintError
	if errors.As(err, &ce) {
		switch ce.Kind {
		case repository.ConstraintUnique:
			return appErrors.WithCode(appErrors.ErrConflict, CodeGroupCodeConflict, "group code already exists in this block")
		case repository.ConstraintForeignKey:
			return appErrors.WithCode(appErrors.ErrUnprocessable, CodeBlockNotFound, "program block not found")
		}
	}
	return internal(err, op)
}

func mapRuleError(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return appErrors.WithCode(appErrors.ErrNotFound, CodeRuleNotFound, "program block group rule not found")
	}
	var ce *repository.ConstraintError
	if errors.As(err, &ce) {
		switch ce.Kind {
		case repository.ConstraintForeignKey:
			return appErrors.WithCode(appErrors.ErrUnprocessable, CodeGroupNotFound, "program block group not found")
		case repository.ConstraintCheck:
			return appErrors.WithCode(appErrors.ErrValidation, CodeRuleInvalidBounds, "rule bounds are invalid")
		}
	}
	return internal(err, op)
}
