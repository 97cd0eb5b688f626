package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/internal/repository"
	appErrors "github.com/noah-isme/uni-admin-api/pkg/errors"
)

type fakeProgramRepo struct {
	programs  map[models.ID]*models.Program
	blocks    []models.ProgramBlock
	groups    []models.ProgramBlockGroup
	rules     []models.ProgramBlockGroupRule
	maps      []models.ProgramCourseMap
	courses   map[models.ID]models.ProgramCourseMap
	nextID    models.ID
	loadCalls int
}

func newFakeProgramRepo() *fakeProgramRepo {
	return &fakeProgramRepo{
		programs: map[models.ID]*models.Program{},
		courses: map[models.ID]models.ProgramCourseMap{
			501: {CourseCode: "CS101", CourseName: "Intro", Credits: 4},
			502: {CourseCode: "CS102", CourseName: "Data Structures", Credits: 4},
			503: {CourseCode: "CS350", CourseName: "Graphics", Credits: 3},
			504: {CourseCode: "PE100", CourseName: "Physical Education", Credits: 1},
		},
		nextID: 1,
	}
}

func (f *fakeProgramRepo) id() models.ID {
	id := f.nextID
	f.nextID++
	return id
}

func (f *fakeProgramRepo) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error) {
	out := make([]models.Program, 0)
	for _, p := range f.programs {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (f *fakeProgramRepo) FindByID(ctx context.Context, id models.ID) (*models.Program, error) {
	f.loadCalls++
	p, ok := f.programs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeProgramRepo) Create(ctx context.Context, p *models.Program) error {
	for _, existing := range f.programs {
		if existing.Code == p.Code && existing.Version == p.Version {
			return &repository.ConstraintError{Kind: repository.ConstraintUnique, Constraint: "programs_code_version_key", Field: "code"}
		}
	}
	p.ID = f.id()
	p.Status = models.StatusDraft
	if p.Priority == "" {
		p.Priority = "normal"
	}
	copied := *p
	f.programs[p.ID] = &copied
	return nil
}

func (f *fakeProgramRepo) Update(ctx context.Context, p *models.Program) error {
	if _, ok := f.programs[p.ID]; !ok {
		return repository.ErrNotFound
	}
	copied := *p
	f.programs[p.ID] = &copied
	return nil
}

func (f *fakeProgramRepo) ListBlocks(ctx context.Context, programID models.ID) ([]models.ProgramBlock, error) {
	out := make([]models.ProgramBlock, 0)
	for _, b := range f.blocks {
		if b.ProgramID == programID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeProgramRepo) CreateBlock(ctx context.Context, block *models.ProgramBlock) error {
	block.ID = f.id()
	f.blocks = append(f.blocks, *block)
	return nil
}

func (f *fakeProgramRepo) UpdateBlock(ctx context.Context, block *models.ProgramBlock) error {
	for i, b := range f.blocks {
		if b.ID == block.ID && b.ProgramID == block.ProgramID {
			f.blocks[i] = *block
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeProgramRepo) DeleteBlock(ctx context.Context, programID, blockID models.ID) error {
	for i, b := range f.blocks {
		if b.ID == blockID && b.ProgramID == programID {
			f.blocks = append(f.blocks[:i], f.blocks[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeProgramRepo) ListGroups(ctx context.Context, programID models.ID) ([]models.ProgramBlockGroup, error) {
	blocks, _ := f.ListBlocks(ctx, programID)
	owned := map[models.ID]bool{}
	for _, b := range blocks {
		owned[b.ID] = true
	}
	out := make([]models.ProgramBlockGroup, 0)
	for _, g := range f.groups {
		if owned[g.BlockID] {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeProgramRepo) ListRules(ctx context.Context, programID models.ID) ([]models.ProgramBlockGroupRule, error) {
	return append([]models.ProgramBlockGroupRule(nil), f.rules...), nil
}

func (f *fakeProgramRepo) ListCourseMaps(ctx context.Context, programID models.ID) ([]models.ProgramCourseMap, error) {
	out := make([]models.ProgramCourseMap, 0)
	for _, m := range f.maps {
		if m.ProgramID == programID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeProgramRepo) FindCourseMap(ctx context.Context, programID, mapID models.ID) (*models.ProgramCourseMap, error) {
	for _, m := range f.maps {
		if m.ID == mapID && m.ProgramID == programID {
			copied := m
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeProgramRepo) CreateCourseMap(ctx context.Context, m *models.ProgramCourseMap) error {
	course, ok := f.courses[m.CourseID]
	if !ok {
		return &repository.ConstraintError{Kind: repository.ConstraintForeignKey, Constraint: "program_course_maps_course_id_fkey", Field: "course_id"}
	}
	for _, existing := range f.maps {
		if existing.ProgramID == m.ProgramID && existing.CourseID == m.CourseID {
			return &repository.ConstraintError{Kind: repository.ConstraintUnique, Constraint: "program_course_maps_program_course_key", Field: "course_id"}
		}
	}
	m.ID = f.id()
	stored := *m
	stored.CourseCode, stored.CourseName, stored.Credits = course.CourseCode, course.CourseName, course.Credits
	f.maps = append(f.maps, stored)
	return nil
}

func (f *fakeProgramRepo) DeleteCourseMap(ctx context.Context, programID, mapID models.ID) error {
	for i, m := range f.maps {
		if m.ID == mapID && m.ProgramID == programID {
			f.maps = append(f.maps[:i], f.maps[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func boolPtr(v bool) *bool { return &v }

func TestBuildProgramStructureSummaries(t *testing.T) {
	blockID, groupID := models.ID(10), models.ID(20)
	program := models.Program{ID: 1, Code: "SE", NameVi: "Software Engineering"}
	blocks := []models.ProgramBlock{{ID: blockID, ProgramID: 1, Code: "CORE", Title: "Core"}}
	groups := []models.ProgramBlockGroup{{ID: groupID, BlockID: blockID, Code: "ELEC", Title: "Electives"}}
	rules := []models.ProgramBlockGroupRule{{ID: 30, GroupID: groupID, MinCredits: intPtr(6), MaxCourses: intPtr(3)}}
	maps := []models.ProgramCourseMap{
		{ID: 1, BlockID: &blockID, CourseCode: "CS101", Credits: 4, IsRequired: true},
		{ID: 2, BlockID: &blockID, GroupID: &groupID, CourseCode: "CS350", Credits: 3},
		{ID: 3, CourseCode: "PE100", Credits: 1, IsRequired: true},
	}

	s := BuildProgramStructure(program, blocks, groups, rules, maps)

	require.Len(t, s.Blocks, 1)
	block := s.Blocks[0]
	require.Len(t, block.Courses, 1)
	require.Len(t, block.Groups, 1)
	assert.Equal(t, models.CreditSummary{TotalCredits: 3, ElectiveCredits: 3, CourseCount: 1}, block.Groups[0].Summary)
	assert.Equal(t, models.CreditSummary{TotalCredits: 7, RequiredCredits: 4, ElectiveCredits: 3, CourseCount: 2, RequiredCount: 1}, block.Summary)
	require.Len(t, s.Standalone, 1)
	assert.Equal(t, models.CreditSummary{TotalCredits: 1, RequiredCredits: 1, CourseCount: 1, RequiredCount: 1}, s.StandaloneSummary)
	assert.Equal(t, models.CreditSummary{TotalCredits: 8, RequiredCredits: 5, ElectiveCredits: 3, CourseCount: 3, RequiredCount: 2}, s.Summary)

	require.Len(t, s.RuleViolations, 1)
	v := s.RuleViolations[0]
	assert.Equal(t, "min_credits", v.Rule)
	assert.Equal(t, 6, v.Limit)
	assert.Equal(t, 3, v.Actual)
	assert.Equal(t, "group ELEC requires at least 6 credits, has 3", v.Message)
}

func TestBuildProgramStructureEmpty(t *testing.T) {
	s := BuildProgramStructure(models.Program{ID: 1}, nil, nil, nil, nil)
	assert.NotNil(t, s.Blocks)
	assert.NotNil(t, s.Standalone)
	assert.NotNil(t, s.RuleViolations)
	assert.Equal(t, models.CreditSummary{}, s.Summary)
}

func newProgramFixture(cacheRepo *fakeCacheRepo) (*ProgramService, *fakeProgramRepo) {
	repo := newFakeProgramRepo()
	var cache *CacheService
	if cacheRepo != nil {
		cache = NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	}
	return NewProgramService(repo, nil, cache, NewMetricsService(), nil, nil), repo
}

func TestProgramCreateAndPatch(t *testing.T) {
	svc, _ := newProgramFixture(nil)
	p, err := svc.Create(context.Background(), CreateProgramRequest{Code: "SE", NameVi: "Ky thuat phan mem", Version: "2024", TotalCredits: 150, OrgUnitID: 3, PLO: []any{"PLO1"}})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, p.Status)
	assert.Equal(t, "normal", p.Priority)

	name := "Software Engineering"
	credits := 155
	updated, err := svc.Update(context.Background(), p.ID, UpdateProgramRequest{NameEn: &name, TotalCredits: &credits})
	require.NoError(t, err)
	assert.Equal(t, "Software Engineering", *updated.NameEn)
	assert.Equal(t, 155, updated.TotalCredits)
	assert.Equal(t, "Ky thuat phan mem", updated.NameVi)
	assert.Equal(t, models.LooseList{"PLO1"}, updated.PLO)

	_, err = svc.Create(context.Background(), CreateProgramRequest{Code: "SE", NameVi: "dup", Version: "2024", OrgUnitID: 3})
	assert.Equal(t, CodeProgramCodeConflict, appErrors.FromError(err).Code)

	_, err = svc.Update(context.Background(), 404, UpdateProgramRequest{NameEn: &name})
	assert.Equal(t, CodeProgramNotFound, appErrors.FromError(err).Code)
}

func TestProgramStructureCachedAndInvalidated(t *testing.T) {
	cacheRepo := newFakeCacheRepo()
	svc, repo := newProgramFixture(cacheRepo)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateProgramRequest{Code: "SE", NameVi: "SE", Version: "2024", OrgUnitID: 3})
	require.NoError(t, err)
	block, err := svc.CreateBlock(ctx, p.ID, BlockRequest{Code: "CORE", Title: "Core", BlockType: "core"})
	require.NoError(t, err)
	_, err = svc.AddCourse(ctx, p.ID, CourseMapRequest{CourseID: 501, BlockID: &block.ID})
	require.NoError(t, err)

	first, hit, err := svc.Structure(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 4, first.Summary.TotalCredits)

	before := repo.loadCalls
	_, hit, err = svc.Structure(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, before, repo.loadCalls)

	_, err = svc.AddCourse(ctx, p.ID, CourseMapRequest{CourseID: 503, IsRequired: boolPtr(false)})
	require.NoError(t, err)
	assert.Contains(t, cacheRepo.deletes, ProgramStructureKey(p.ID))

	second, hit, err := svc.Structure(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, second.Summary.TotalCredits)
	assert.Equal(t, 3, second.StandaloneSummary.ElectiveCredits)
}

func TestProgramAddCoursePlacement(t *testing.T) {
	svc, repo := newProgramFixture(nil)
	ctx := context.Background()
	p, err := svc.Create(ctx, CreateProgramRequest{Code: "SE", NameVi: "SE", Version: "2024", OrgUnitID: 3})
	require.NoError(t, err)
	block, err := svc.CreateBlock(ctx, p.ID, BlockRequest{Code: "CORE", Title: "Core", BlockType: "core"})
	require.NoError(t, err)
	repo.groups = append(repo.groups, models.ProgramBlockGroup{ID: 900, BlockID: block.ID, Code: "ELEC"})

	m, err := svc.AddCourse(ctx, p.ID, CourseMapRequest{CourseID: 502, GroupID: ptrID(900)})
	require.NoError(t, err)
	require.NotNil(t, m.BlockID)
	assert.Equal(t, block.ID, *m.BlockID)
	assert.Equal(t, "CS102", m.CourseCode)

	_, err = svc.AddCourse(ctx, p.ID, CourseMapRequest{CourseID: 503, GroupID: ptrID(901)})
	assert.Equal(t, CodeGroupNotFound, appErrors.FromError(err).Code)

	_, err = svc.AddCourse(ctx, p.ID, CourseMapRequest{CourseID: 503, BlockID: ptrID(12345)})
	assert.Equal(t, CodeBlockNotFound, appErrors.FromError(err).Code)

	_, err = svc.AddCourse(ctx, p.ID, CourseMapRequest{CourseID: 502})
	assert.Equal(t, CodeCourseMapDuplicate, appErrors.FromError(err).Code)

	_, err = svc.AddCourse(ctx, p.ID, CourseMapRequest{CourseID: 999})
	assert.Equal(t, CodeCourseNotFound, appErrors.FromError(err).Code)

	require.NoError(t, svc.RemoveCourse(ctx, p.ID, m.ID))
	err = svc.RemoveCourse(ctx, p.ID, m.ID)
	assert.Equal(t, CodeCourseMapNotFound, appErrors.FromError(err).Code)
}

func TestProgramBlockLifecycle(t *testing.T) {
	svc, _ := newProgramFixture(nil)
	ctx := context.Background()
	p, err := svc.Create(ctx, CreateProgramRequest{Code: "SE", NameVi: "SE", Version: "2024", OrgUnitID: 3})
	require.NoError(t, err)

	_, err = svc.CreateBlock(ctx, 404, BlockRequest{Code: "CORE", Title: "Core", BlockType: "core"})
	assert.Equal(t, CodeProgramNotFound, appErrors.FromError(err).Code)

	block, err := svc.CreateBlock(ctx, p.ID, BlockRequest{Code: "CORE", Title: "Core", BlockType: "core"})
	require.NoError(t, err)
	updated, err := svc.UpdateBlock(ctx, p.ID, block.ID, BlockRequest{Code: "CORE", Title: "Core modules", BlockType: "core", DisplayOrder: 2})
	require.NoError(t, err)
	assert.Equal(t, "Core modules", updated.Title)

	require.NoError(t, svc.DeleteBlock(ctx, p.ID, block.ID))
	err = svc.DeleteBlock(ctx, p.ID, block.ID)
	assert.Equal(t, CodeBlockNotFound, appErrors.FromError(err).Code)
}

func ptrID(v models.ID) *models.ID { return &v }
