package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/internal/repository"
	appErrors "github.com/noah-isme/uni-admin-api/pkg/errors"
)

type fakeCourseRepo struct {
	courses map[models.ID]*models.Course
	nextID  models.ID
	store   *fakeWorkflowStore
}

func newFakeCourseRepo(store *fakeWorkflowStore) *fakeCourseRepo {
	return &fakeCourseRepo{courses: map[models.ID]*models.Course{}, nextID: 1, store: store}
}

func (f *fakeCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	out := make([]models.Course, 0)
	for _, c := range f.courses {
		status := f.store.status[c.ID]
		if filter.Status == "" && status == models.StatusDeleted {
			continue
		}
		if filter.Status != "" && status != filter.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (f *fakeCourseRepo) FindByID(ctx context.Context, id models.ID) (*models.Course, error) {
	c, ok := f.courses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *c
	copied.Status = f.store.status[id]
	return &copied, nil
}

func (f *fakeCourseRepo) Create(ctx context.Context, course *models.Course) error {
	for _, existing := range f.courses {
		if existing.Code == course.Code {
			return &repository.ConstraintError{Kind: repository.ConstraintUnique, Constraint: "courses_code_key", Field: "code"}
		}
	}
	for _, p := range course.Prerequisites {
		if _, ok := f.courses[p.PrerequisiteCourseID]; !ok {
			return &repository.ConstraintError{Kind: repository.ConstraintForeignKey, Constraint: "course_prerequisites_prerequisite_fkey", Field: "prerequisite_course_id"}
		}
	}
	course.ID = f.nextID
	f.nextID++
	course.Status = models.StatusDraft
	copied := *course
	f.courses[course.ID] = &copied
	f.store.status[course.ID] = models.StatusDraft
	f.store.records[course.ID] = &models.WorkflowRecord{EntityType: models.EntityCourse, EntityID: course.ID, Status: models.StatusDraft, Stage: models.StageFaculty}
	return nil
}

func (f *fakeCourseRepo) Update(ctx context.Context, course *models.Course) error {
	if _, ok := f.courses[course.ID]; !ok || f.store.status[course.ID] == models.StatusDeleted {
		return repository.ErrNotFound
	}
	copied := *course
	f.courses[course.ID] = &copied
	return nil
}

func newCourseFixture() (*CourseService, *fakeCourseRepo, *fakeWorkflowStore) {
	store := &fakeWorkflowStore{
		status:  map[models.ID]models.WorkflowStatus{},
		records: map[models.ID]*models.WorkflowRecord{},
		history: map[models.ID][]models.ApprovalHistory{},
	}
	repo := newFakeCourseRepo(store)
	workflow := NewWorkflowService(store, nil, nil, nil, nil, true)
	return NewCourseService(repo, workflow, nil, nil), repo, store
}

func intPtr(v int) *int { return &v }

func baseCourseRequest(code string) CourseRequest {
	return CourseRequest{
		Code:      code,
		NameVi:    "Nhap mon lap trinh",
		Credits:   3,
		Type:      "compulsory",
		OrgUnitID: 4,
		Contents: models.CourseContents{AssessmentMethods: []models.AssessmentMethod{
			{Method: "midterm", Weight: 40},
			{Method: "final", Weight: 60},
		}},
		Syllabus: []SyllabusWeekInput{{WeekNumber: 1, Topic: "Intro"}, {WeekNumber: 2, Topic: "Variables"}},
	}
}

func TestCourseCreateReturnsWorkflowAndNoWarnings(t *testing.T) {
	svc, _, _ := newCourseFixture()

	course, err := svc.Create(context.Background(), baseCourseRequest("CS101"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, course.Status)
	require.NotNil(t, course.Workflow)
	assert.Equal(t, models.StageFaculty, course.Workflow.Stage)
	assert.Empty(t, course.Warnings)
	assert.Len(t, course.Syllabus, 2)
}

func TestCourseCreditWarningsAreAdvisory(t *testing.T) {
	svc, _, _ := newCourseFixture()
	req := baseCourseRequest("CS102")
	req.TheoryCredits = intPtr(3)
	req.PracticalCredits = intPtr(2)
	req.Contents.AssessmentMethods[1].Weight = 50

	course, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"theory and practical credits exceed total credits",
		"assessment method weights do not sum to 100",
	}, course.Warnings)
}

func TestCourseSelfPrerequisiteRejected(t *testing.T) {
	svc, _, _ := newCourseFixture()
	course, err := svc.Create(context.Background(), baseCourseRequest("CS101"))
	require.NoError(t, err)

	req := baseCourseRequest("CS101")
	req.Prerequisites = []PrerequisiteInput{{PrerequisiteCourseID: course.ID}}
	_, err = svc.Update(context.Background(), course.ID, req)
	assert.Equal(t, CodeCourseSelfPrerequisite, appErrors.FromError(err).Code)
}

func TestCourseValidationAndConflicts(t *testing.T) {
	svc, _, _ := newCourseFixture()

	req := baseCourseRequest("CS101")
	req.Syllabus = append(req.Syllabus, SyllabusWeekInput{WeekNumber: 1, Topic: "Again"})
	_, err := svc.Create(context.Background(), req)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), CourseRequest{Code: "X"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), baseCourseRequest("CS101"))
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), baseCourseRequest("CS101"))
	assert.Equal(t, CodeCourseCodeConflict, appErrors.FromError(err).Code)

	req = baseCourseRequest("CS201")
	req.Prerequisites = []PrerequisiteInput{{PrerequisiteCourseID: 999}}
	_, err = svc.Create(context.Background(), req)
	assert.Equal(t, CodeCoursePrerequisiteNotFound, appErrors.FromError(err).Code)
}

func TestCourseDeleteGoesThroughWorkflow(t *testing.T) {
	svc, _, store := newCourseFixture()
	course, err := svc.Create(context.Background(), baseCourseRequest("CS101"))
	require.NoError(t, err)

	res, err := svc.Delete(context.Background(), course.ID, strPtr("retired"), models.WorkflowActor{UserID: 5, Role: models.RoleAcademicOffice})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeleted, res.Workflow.Status)
	require.Len(t, res.History, 1)
	assert.Equal(t, "DELETE", res.History[0].Action)

	items, _, err := svc.List(context.Background(), models.CourseFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = svc.Delete(context.Background(), course.ID, nil, models.WorkflowActor{UserID: 5, Role: models.RoleAcademicOffice})
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.StatusDeleted, store.status[course.ID])
}

func TestCourseGetNotFound(t *testing.T) {
	svc, _, _ := newCourseFixture()
	_, err := svc.Get(context.Background(), 77)
	assert.Equal(t, CodeCourseNotFound, appErrors.FromError(err).Code)
}
