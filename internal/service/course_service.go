package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/internal/repository"
	appErrors "github.com/noah-isme/uni-admin-api/pkg/errors"
)

// Course error codes.
const (
	CodeCourseNotFound             = "COURSE_NOT_FOUND"
	CodeCourseCodeConflict         = "COURSE_CODE_CONFLICT"
	CodeCourseOrgUnitNotFound      = "COURSE_ORG_UNIT_NOT_FOUND"
	CodeCoursePrerequisiteNotFound = "COURSE_PREREQUISITE_NOT_FOUND"
	CodeCourseSelfPrerequisite     = "COURSE_SELF_PREREQUISITE"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id models.ID) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
}

type workflowRunner interface {
	Apply(ctx context.Context, entity models.EntityType, id models.ID, action models.WorkflowAction, input WorkflowActionInput, actor models.WorkflowActor) (*models.WorkflowResult, error)
	Get(ctx context.Context, entity models.EntityType, id models.ID) (*models.WorkflowRecord, error)
}

// PrerequisiteInput references a course that must precede this one.
type PrerequisiteInput struct {
	PrerequisiteCourseID models.ID        `json:"prerequisite_course_id" validate:"gt=0"`
	PrerequisiteType     string           `json:"prerequisite_type" validate:"omitempty,oneof=prerequisite corequisite recommended"`
	MinGrade             *decimal.Decimal `json:"min_grade"`
}

// SyllabusWeekInput is one syllabus row.
type SyllabusWeekInput struct {
	WeekNumber  int     `json:"week_number" validate:"gte=1,lte=52"`
	Topic       string  `json:"topic" validate:"required"`
	Objectives  *string `json:"objectives"`
	Materials   *string `json:"materials"`
	Assignments *string `json:"assignments"`
	Duration    *string `json:"duration"`
}

// CourseRequest is the full payload for creating or replacing a course.
type CourseRequest struct {
	Code                     string                `json:"code" validate:"required,max=20"`
	NameVi                   string                `json:"name_vi" validate:"required,max=255"`
	NameEn                   *string               `json:"name_en" validate:"omitempty,max=255"`
	Credits                  int                   `json:"credits" validate:"gte=1,lte=30"`
	TheoryCredits            *int                  `json:"theory_credits" validate:"omitempty,gte=0"`
	PracticalCredits         *int                  `json:"practical_credits" validate:"omitempty,gte=0"`
	Type                     string                `json:"type" validate:"required,max=50"`
	OrgUnitID                models.ID             `json:"org_unit_id" validate:"gt=0"`
	Description              *string               `json:"description"`
	Contents                 models.CourseContents `json:"contents"`
	InstructorQualifications []string              `json:"instructor_qualifications" validate:"dive,required"`
	Prerequisites            []PrerequisiteInput   `json:"prerequisites" validate:"dive"`
	Syllabus                 []SyllabusWeekInput   `json:"syllabus" validate:"dive"`
}

// CourseService manages the course catalogue.
type CourseService struct {
	repo      courseRepository
	workflow  workflowRunner
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs the service.
func NewCourseService(repo courseRepository, workflow workflowRunner, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, workflow: workflow, validator: validate, logger: logger}
}

// List returns a page of courses. Deleted courses are hidden unless the
// status filter asks for them.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	filter.Normalize()
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internal(err, "failed to list courses")
	}
	return courses, models.NewPagination(filter.Page, filter.Size, total), nil
}

// Get returns a course with its children, workflow record and credit warnings.
func (s *CourseService) Get(ctx context.Context, id models.ID) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapCourseError(err, "failed to load course")
	}
	if s.workflow != nil {
		rec, err := s.workflow.Get(ctx, models.EntityCourse, id)
		switch {
		case err == nil:
			course.Workflow = rec
		case !errors.Is(err, appErrors.ErrNotFound):
			s.logger.Warn("failed to load course workflow", zap.String("course_id", id.String()), zap.Error(err))
		}
	}
	course.Warnings = course.CreditWarnings()
	return course, nil
}

// Create stores a DRAFT course with its prerequisites and syllabus.
func (s *CourseService) Create(ctx context.Context, req CourseRequest) (*models.Course, error) {
	course, err := s.build(req, 0)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, mapCourseError(err, "failed to create course")
	}
	s.logger.Info("course created", zap.String("course_id", course.ID.String()), zap.String("code", course.Code))
	return s.Get(ctx, course.ID)
}

// Update replaces a course's fields, prerequisites and syllabus.
func (s *CourseService) Update(ctx context.Context, id models.ID, req CourseRequest) (*models.Course, error) {
	course, err := s.build(req, id)
	if err != nil {
		return nil, err
	}
	course.ID = id
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, mapCourseError(err, "failed to update course")
	}
	return s.Get(ctx, id)
}

// Delete soft-deletes a course through the workflow so the action is recorded in history.
func (s *CourseService) Delete(ctx context.Context, id models.ID, comments *string, actor models.WorkflowActor) (*models.WorkflowResult, error) {
	if s.workflow == nil {
		return nil, internal(errors.New("workflow not configured"), "failed to delete course")
	}
	return s.workflow.Apply(ctx, models.EntityCourse, id, models.ActionDelete, WorkflowActionInput{Comments: comments}, actor)
}

func (s *CourseService) build(req CourseRequest, id models.ID) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course payload")
	}
	for _, m := range req.Contents.AssessmentMethods {
		if m.Method == "" || m.Weight < 0 || m.Weight > 100 {
			return nil, invalid("assessment methods need a name and a weight between 0 and 100")
		}
	}

	course := &models.Course{
		Code:                     req.Code,
		NameVi:                   req.NameVi,
		NameEn:                   req.NameEn,
		Credits:                  req.Credits,
		TheoryCredits:            req.TheoryCredits,
		PracticalCredits:         req.PracticalCredits,
		Type:                     req.Type,
		OrgUnitID:                req.OrgUnitID,
		Description:              req.Description,
		Contents:                 req.Contents,
		InstructorQualifications: models.StringList(req.InstructorQualifications),
		Prerequisites:            make([]models.CoursePrerequisite, 0, len(req.Prerequisites)),
		Syllabus:                 make([]models.SyllabusWeek, 0, len(req.Syllabus)),
	}
	if course.InstructorQualifications == nil {
		course.InstructorQualifications = models.StringList{}
	}

	seenPrereq := make(map[models.ID]bool, len(req.Prerequisites))
	for _, p := range req.Prerequisites {
		if id != 0 && p.PrerequisiteCourseID == id {
			return nil, appErrors.WithCode(appErrors.ErrValidation, CodeCourseSelfPrerequisite, "a course cannot be its own prerequisite")
		}
		if seenPrereq[p.PrerequisiteCourseID] {
			return nil, invalid(fmt.Sprintf("prerequisite %s listed twice", p.PrerequisiteCourseID))
		}
		seenPrereq[p.PrerequisiteCourseID] = true
		kind := p.PrerequisiteType
		if kind == "" {
			kind = "prerequisite"
		}
		course.Prerequisites = append(course.Prerequisites, models.CoursePrerequisite{
			PrerequisiteCourseID: p.PrerequisiteCourseID,
			PrerequisiteType:     kind,
			MinGrade:             p.MinGrade,
		})
	}

	seenWeek := make(map[int]bool, len(req.Syllabus))
	for _, w := range req.Syllabus {
		if seenWeek[w.WeekNumber] {
			return nil, invalid(fmt.Sprintf("syllabus week %d listed twice", w.WeekNumber))
		}
		seenWeek[w.WeekNumber] = true
		course.Syllabus = append(course.Syllabus, models.SyllabusWeek{
			WeekNumber:  w.WeekNumber,
			Topic:       w.Topic,
			Objectives:  w.Objectives,
			Materials:   w.Materials,
			Assignments: w.Assignments,
			Duration:    w.Duration,
		})
	}
	return course, nil
}

func mapCourseError(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return appErrors.WithCode(appErrors.ErrNotFound, CodeCourseNotFound, "course not found")
	}
	var ce *repository.ConstraintError
	if !errors.As(err, &ce) {
		return internal(err, op)
	}
	switch ce.Kind {
	case repository.ConstraintUnique:
		return appErrors.WithCode(appErrors.ErrConflict, CodeCourseCodeConflict, "course code already exists")
	case repository.ConstraintForeignKey:
		if ce.Field == "prerequisite_course_id" {
			return appErrors.WithCode(appErrors.ErrUnprocessable, CodeCoursePrerequisiteNotFound, "prerequisite course not found")
		}
		return appErrors.WithCode(appErrors.ErrUnprocessable, CodeCourseOrgUnitNotFound, "org unit not found")
	case repository.ConstraintCheck:
		if ce.Field == "prerequisite_course_id" {
			return appErrors.WithCode(appErrors.ErrValidation, CodeCourseSelfPrerequisite, "a course cannot be its own prerequisite")
		}
		return appErrors.Clone(appErrors.ErrValidation, "invalid "+ce.Field)
	}
	return internal(err, op)
}
