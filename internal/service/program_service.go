package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/internal/repository"
	appErrors "github.com/noah-isme/uni-admin-api/pkg/errors"
)

// Program error codes.
const (
	CodeProgramNotFound        = "PROGRAM_NOT_FOUND"
	CodeProgramCodeConflict    = "PROGRAM_CODE_CONFLICT"
	CodeProgramOrgUnitNotFound = "PROGRAM_ORG_UNIT_NOT_FOUND"
	CodeProgramInvalidWindow   = "PROGRAM_INVALID_WINDOW"
	CodeBlockNotFound          = "PROGRAM_BLOCK_NOT_FOUND"
	CodeBlockCodeConflict      = "PROGRAM_BLOCK_CODE_CONFLICT"
	CodeGroupNotFound          = "PROGRAM_BLOCK_GROUP_NOT_FOUND"
	CodeCourseMapNotFound      = "PROGRAM_COURSE_NOT_FOUND"
	CodeCourseMapDuplicate     = "PROGRAM_COURSE_DUPLICATE"
)

type programRepository interface {
	List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error)
	FindByID(ctx context.Context, id models.ID) (*models.Program, error)
	Create(ctx context.Context, p *models.Program) error
	Update(ctx context.Context, p *models.Program) error
	ListBlocks(ctx context.Context, programID models.ID) ([]models.ProgramBlock, error)
	CreateBlock(ctx context.Context, block *models.ProgramBlock) error
	UpdateBlock(ctx context.Context, block *models.ProgramBlock) error
	DeleteBlock(ctx context.Context, programID, blockID models.ID) error
	ListGroups(ctx context.Context, programID models.ID) ([]models.ProgramBlockGroup, error)
	ListRules(ctx context.Context, programID models.ID) ([]models.ProgramBlockGroupRule, error)
	ListCourseMaps(ctx context.Context, programID models.ID) ([]models.ProgramCourseMap, error)
	FindCourseMap(ctx context.Context, programID, mapID models.ID) (*models.ProgramCourseMap, error)
	CreateCourseMap(ctx context.Context, m *models.ProgramCourseMap) error
	DeleteCourseMap(ctx context.Context, programID, mapID models.ID) error
}

// CreateProgramRequest is the payload for a new program.
type CreateProgramRequest struct {
	Code          string       `json:"code" validate:"required,max=50"`
	NameVi        string       `json:"name_vi" validate:"required,max=255"`
	NameEn        *string      `json:"name_en" validate:"omitempty,max=255"`
	Version       string       `json:"version" validate:"required,max=20"`
	TotalCredits  int          `json:"total_credits" validate:"gte=0,lte=400"`
	Priority      string       `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	EffectiveFrom *models.Date `json:"effective_from"`
	EffectiveTo   *models.Date `json:"effective_to"`
	OrgUnitID     models.ID    `json:"org_unit_id" validate:"gt=0"`
	MajorID       *models.ID   `json:"major_id"`
	PLO           []any        `json:"plo"`
}

// UpdateProgramRequest is a partial update; absent fields are left unchanged.
type UpdateProgramRequest struct {
	NameVi        *string      `json:"name_vi" validate:"omitempty,min=1,max=255"`
	NameEn        *string      `json:"name_en" validate:"omitempty,max=255"`
	Version       *string      `json:"version" validate:"omitempty,min=1,max=20"`
	TotalCredits  *int         `json:"total_credits" validate:"omitempty,gte=0,lte=400"`
	Priority      *string      `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	EffectiveFrom *models.Date `json:"effective_from"`
	EffectiveTo   *models.Date `json:"effective_to"`
	OrgUnitID     *models.ID   `json:"org_unit_id" validate:"omitempty,gt=0"`
	MajorID       *models.ID   `json:"major_id"`
	PLO           []any        `json:"plo"`
}

// BlockRequest creates or replaces a program block.
type BlockRequest struct {
	Code         string `json:"code" validate:"required,max=50"`
	Title        string `json:"title" validate:"required,max=255"`
	BlockType    string `json:"block_type" validate:"required,max=50"`
	DisplayOrder int    `json:"display_order" validate:"gte=0"`
}

// CourseMapRequest adds a course to a program. Without block_id and group_id
// the course is standalone.
type CourseMapRequest struct {
	CourseID     models.ID  `json:"course_id" validate:"gt=0"`
	BlockID      *models.ID `json:"block_id" validate:"omitempty,gt=0"`
	GroupID      *models.ID `json:"group_id" validate:"omitempty,gt=0"`
	IsRequired   *bool      `json:"is_required"`
	DisplayOrder int        `json:"display_order" validate:"gte=0"`
}

// ProgramService manages programs and their curriculum structure.
type ProgramService struct {
	repo      programRepository
	workflow  workflowRunner
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgramService constructs the service.
func NewProgramService(repo programRepository, workflow workflowRunner, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ProgramService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramService{repo: repo, workflow: workflow, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// List returns a page of programs.
func (s *ProgramService) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, *models.Pagination, error) {
	filter.Normalize()
	programs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internal(err, "failed to list programs")
	}
	return programs, models.NewPagination(filter.Page, filter.Size, total), nil
}

// Get returns a program with its workflow record.
func (s *ProgramService) Get(ctx context.Context, id models.ID) (*models.Program, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapProgramError(err, "failed to load program")
	}
	if s.workflow != nil {
		rec, err := s.workflow.Get(ctx, models.EntityProgram, id)
		switch {
		case err == nil:
			p.Workflow = rec
		case !errors.Is(err, appErrors.ErrNotFound):
			s.logger.Warn("failed to load program workflow", zap.String("program_id", id.String()), zap.Error(err))
		}
	}
	return p, nil
}

// Create stores a DRAFT program.
func (s *ProgramService) Create(ctx context.Context, req CreateProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid program payload")
	}
	p := &models.Program{
		Code:          req.Code,
		NameVi:        req.NameVi,
		NameEn:        req.NameEn,
		Version:       req.Version,
		TotalCredits:  req.TotalCredits,
		Priority:      req.Priority,
		EffectiveFrom: req.EffectiveFrom,
		EffectiveTo:   req.EffectiveTo,
		OrgUnitID:     req.OrgUnitID,
		MajorID:       req.MajorID,
		PLO:           models.LooseList(req.PLO),
	}
	if p.PLO == nil {
		p.PLO = models.LooseList{}
	}
	if err := checkProgramWindow(p); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, mapProgramError(err, "failed to create program")
	}
	s.logger.Info("program created", zap.String("program_id", p.ID.String()), zap.String("code", p.Code))
	return s.Get(ctx, p.ID)
}

// Update applies a partial update.
func (s *ProgramService) Update(ctx context.Context, id models.ID, req UpdateProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid program payload")
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapProgramError(err, "failed to load program")
	}
	if req.NameVi != nil {
		p.NameVi = *req.NameVi
	}
	if req.NameEn != nil {
		p.NameEn = req.NameEn
	}
	if req.Version != nil {
		p.Version = *req.Version
	}
	if req.TotalCredits != nil {
		p.TotalCredits = *req.TotalCredits
	}
	if req.Priority != nil {
		p.Priority = *req.Priority
	}
	if req.EffectiveFrom != nil {
		p.EffectiveFrom = req.EffectiveFrom
	}
	if req.EffectiveTo != nil {
		p.EffectiveTo = req.EffectiveTo
	}
	if req.OrgUnitID != nil {
		p.OrgUnitID = *req.OrgUnitID
	}
	if req.MajorID != nil {
		p.MajorID = req.MajorID
	}
	if req.PLO != nil {
		p.PLO = models.LooseList(req.PLO)
	}
	if err := checkProgramWindow(p); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, mapProgramError(err, "failed to update program")
	}
	s.invalidate(ctx, id)
	return s.Get(ctx, id)
}

// Structure returns the curriculum tree of a program. The boolean reports a cache hit.
func (s *ProgramService) Structure(ctx context.Context, id models.ID) (*models.ProgramStructure, bool, error) {
	structure, hit, err := cached(ctx, s.cache, ProgramStructureKey(id), func(ctx context.Context) (*models.ProgramStructure, error) {
		start := time.Now()
		defer func() { s.metrics.ObserveDBQuery("program_structure", time.Since(start)) }()
		return s.loadStructure(ctx, id)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, mapProgramError(err, "")
		}
		return nil, false, internal(err, "failed to load program structure")
	}
	return structure, hit, nil
}

func (s *ProgramService) loadStructure(ctx context.Context, id models.ID) (*models.ProgramStructure, error) {
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	blocks, err := s.repo.ListBlocks(ctx, id)
	if err != nil {
		return nil, err
	}
	groups, err := s.repo.ListGroups(ctx, id)
	if err != nil {
		return nil, err
	}
	rules, err := s.repo.ListRules(ctx, id)
	if err != nil {
		return nil, err
	}
	maps, err := s.repo.ListCourseMaps(ctx, id)
	if err != nil {
		return nil, err
	}
	structure := BuildProgramStructure(*program, blocks, groups, rules, maps)
	return &structure, nil
}

// CreateBlock adds a block to a program.
func (s *ProgramService) CreateBlock(ctx context.Context, programID models.ID, req BlockRequest) (*models.ProgramBlock, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid block payload")
	}
	if _, err := s.repo.FindByID(ctx, programID); err != nil {
		return nil, mapProgramError(err, "failed to load program")
	}
	block := &models.ProgramBlock{ProgramID: programID, Code: req.Code, Title: req.Title, BlockType: req.BlockType, DisplayOrder: req.DisplayOrder}
	if err := s.repo.CreateBlock(ctx, block); err != nil {
		return nil, mapBlockError(err, "failed to create program block")
	}
	s.invalidate(ctx, programID)
	return block, nil
}

// UpdateBlock replaces a block's fields.
func (s *ProgramService) UpdateBlock(ctx context.Context, programID, blockID models.ID, req BlockRequest) (*models.ProgramBlock, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid block payload")
	}
	block := &models.ProgramBlock{ID: blockID, ProgramID: programID, Code: req.Code, Title: req.Title, BlockType: req.BlockType, DisplayOrder: req.DisplayOrder}
	if err := s.repo.UpdateBlock(ctx, block); err != nil {
		return nil, mapBlockError(err, "failed to update program block")
	}
	s.invalidate(ctx, programID)
	return block, nil
}

// DeleteBlock removes a block with its groups. Its course maps become standalone.
func (s *ProgramService) DeleteBlock(ctx context.Context, programID, blockID models.ID) error {
	if err := s.repo.DeleteBlock(ctx, programID, blockID); err != nil {
		return mapBlockError(err, "failed to delete program block")
	}
	s.invalidate(ctx, programID)
	return nil
}

// AddCourse maps a course into a program, a block or a group.
func (s *ProgramService) AddCourse(ctx context.Context, programID models.ID, req CourseMapRequest) (*models.ProgramCourseMap, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid program course payload")
	}
	if _, err := s.repo.FindByID(ctx, programID); err != nil {
		return nil, mapProgramError(err, "failed to load program")
	}

	m := &models.ProgramCourseMap{ProgramID: programID, CourseID: req.CourseID, BlockID: req.BlockID, GroupID: req.GroupID, IsRequired: true, DisplayOrder: req.DisplayOrder}
	if req.IsRequired != nil {
		m.IsRequired = *req.IsRequired
	}
	if err := s.placeCourse(ctx, programID, m); err != nil {
		return nil, err
	}

	if err := s.repo.CreateCourseMap(ctx, m); err != nil {
		return nil, mapCourseMapError(err, "failed to add program course")
	}
	s.invalidate(ctx, programID)

	full, err := s.repo.FindCourseMap(ctx, programID, m.ID)
	if err != nil {
		s.logger.Warn("failed to reload program course", zap.String("map_id", m.ID.String()), zap.Error(err))
		return m, nil
	}
	return full, nil
}

// placeCourse checks that the referenced block and group belong to the program
// and fills the block from the group when only a group is given.
func (s *ProgramService) placeCourse(ctx context.Context, programID models.ID, m *models.ProgramCourseMap) error {
	if m.BlockID != nil {
		blocks, err := s.repo.ListBlocks(ctx, programID)
		if err != nil {
			return internal(err, "failed to load program blocks")
		}
		found := false
		for _, b := range blocks {
			if b.ID == *m.BlockID {
				found = true
				break
			}
		}
		if !found {
			return appErrors.WithCode(appErrors.ErrUnprocessable, CodeBlockNotFound, "block does not belong to this program")
		}
	}
	if m.GroupID == nil {
		return nil
	}
	groups, err := s.repo.ListGroups(ctx, programID)
	if err != nil {
		return internal(err, "failed to load program groups")
	}
	for _, g := range groups {
		if g.ID != *m.GroupID {
			continue
		}
		if m.BlockID != nil && *m.BlockID != g.BlockID {
			return invalid("group does not belong to the given block")
		}
		blockID := g.BlockID
		m.BlockID = &blockID
		return nil
	}
	return appErrors.WithCode(appErrors.ErrUnprocessable, CodeGroupNotFound, "group does not belong to this program")
}

// RemoveCourse deletes a course mapping.
func (s *ProgramService) RemoveCourse(ctx context.Context, programID, mapID models.ID) error {
	if err := s.repo.DeleteCourseMap(ctx, programID, mapID); err != nil {
		return mapCourseMapError(err, "failed to remove program course")
	}
	s.invalidate(ctx, programID)
	return nil
}

func (s *ProgramService) invalidate(ctx context.Context, programID models.ID) {
	s.cache.Invalidate(ctx, ProgramStructureKey(programID))
}

func checkProgramWindow(p *models.Program) error {
	if p.EffectiveFrom != nil && p.EffectiveTo != nil && p.EffectiveTo.Before(*p.EffectiveFrom) {
		return appErrors.WithCode(appErrors.ErrValidation, CodeProgramInvalidWindow, "effective_to must be on or after effective_from")
	}
	return nil
}

func mapProgramError(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return appErrors.WithCode(appErrors.ErrNotFound, CodeProgramNotFound, "program not found")
	}
	var ce *repository.ConstraintError
	if errors.As(err, &ce) {
		switch ce.Kind {
		case repository.ConstraintUnique:
			return appErrors.WithCode(appErrors.ErrConflict, CodeProgramCodeConflict, "program code and version already exist")
		case repository.ConstraintForeignKey:
			return appErrors.WithCode(appErrors.ErrUnprocessable, CodeProgramOrgUnitNotFound, "org unit not found")
		}
	}
	return internal(err, op)
}

func mapBlockError(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return appErrors.WithCode(appErrors.ErrNotFound, CodeBlockNotFound, "program block not found")
	}
	var ce *repository.ConstraintError
	if errors.As(err, &ce) {
		switch ce.Kind {
		case repository.ConstraintUnique:
			return appErrors.WithCode(appErrors.ErrConflict, CodeBlockCodeConflict, "block code already exists in this program")
		case repository.ConstraintForeignKey:
			return appErrors.WithCode(appErrors.ErrNotFound, CodeProgramNotFound, "program not found")
		}
	}
	return internal(err, op)
}

func mapCourseMapError(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return appErrors.WithCode(appErrors.ErrNotFound, CodeCourseMapNotFound, "program course not found")
	}
	var ce *repository.ConstraintError
	if errors.As(err, &ce) {
		switch ce.Kind {
		case repository.ConstraintUnique:
			return appErrors.WithCode(appErrors.ErrConflict, CodeCourseMapDuplicate, "course already mapped in this program")
		case repository.ConstraintForeignKey:
			switch ce.Field {
			case "block_id":
				return appErrors.WithCode(appErrors.ErrUnprocessable, CodeBlockNotFound, "program block not found")
			case "group_id":
				return appErrors.WithCode(appErrors.ErrUnprocessable, CodeGroupNotFound, "program block group not found")
			}
			return appErrors.WithCode(appErrors.ErrUnprocessable, CodeCourseNotFound, "course not found")
		}
	}
	return internal(err, op)
}
