package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/internal/repository"
	appErrors "github.com/noah-isme/uni-admin-api/pkg/errors"
	"github.com/noah-isme/uni-admin-api/pkg/jobs"
	"github.com/noah-isme/uni-admin-api/pkg/storage"
)

type stubStructures struct {
	structure *models.ProgramStructure
	err       error
}

func (s stubStructures) Structure(ctx context.Context, id models.ID) (*models.ProgramStructure, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	return s.structure, false, nil
}

func (s stubStructures) Get(ctx context.Context, id models.ID) (*models.Program, error) {
	if s.err != nil {
		return nil, s.err
	}
	p := s.structure.Program
	return &p, nil
}

type fakeExportJobRepo struct {
	jobs map[string]*models.ExportJob
}

func newFakeExportJobRepo() *fakeExportJobRepo {
	return &fakeExportJobRepo{jobs: map[string]*models.ExportJob{}}
}

func (f *fakeExportJobRepo) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = "0f8fad5b-d9cb-469f-a165-70867728950e"
	}
	job.CreatedAt = time.Now().UTC()
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeExportJobRepo) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (f *fakeExportJobRepo) Update(ctx context.Context, id string, u repository.ExportJobUpdate) error {
	job, ok := f.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	if u.Status != nil {
		job.Status = *u.Status
	}
	if u.Progress != nil {
		job.Progress = *u.Progress
	}
	if u.FilePath != nil {
		job.FilePath = u.FilePath
	}
	if u.ResultURL != nil {
		job.ResultURL = u.ResultURL
	}
	if u.ErrorMessage != nil {
		job.ErrorMessage = u.ErrorMessage
	}
	if u.FinishedAt != nil {
		job.FinishedAt = u.FinishedAt
	}
	return nil
}

func (f *fakeExportJobRepo) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	out := make([]models.ExportJob, 0)
	for _, job := range f.jobs {
		if job.Status == models.ExportStatusQueued || job.Status == models.ExportStatusProcessing {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (f *fakeExportJobRepo) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	out := make([]models.ExportJob, 0)
	for _, job := range f.jobs {
		if job.Status == models.ExportStatusFinished && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			out = append(out, *job)
		}
	}
	return out, nil
}

type recordingDispatcher struct {
	jobs []jobs.Job
	err  error
}

func (d *recordingDispatcher) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

func sampleStructure() *models.ProgramStructure {
	blockID, groupID := models.ID(10), models.ID(20)
	name := "Software Engineering"
	program := models.Program{ID: 7, Code: "SE", NameVi: "Ky thuat phan mem", NameEn: &name, Version: "2024", TotalCredits: 150}
	s := BuildProgramStructure(program,
		[]models.ProgramBlock{{ID: blockID, ProgramID: 7, Code: "CORE", Title: "Core"}},
		[]models.ProgramBlockGroup{{ID: groupID, BlockID: blockID, Code: "ELEC"}},
		[]models.ProgramBlockGroupRule{{ID: 1, GroupID: groupID, MinCredits: intPtr(6)}},
		[]models.ProgramCourseMap{
			{ID: 1, BlockID: &blockID, CourseCode: "CS101", CourseName: "Intro", Credits: 4, IsRequired: true},
			{ID: 2, BlockID: &blockID, GroupID: &groupID, CourseCode: "CS350", CourseName: "Graphics", Credits: 3},
			{ID: 3, CourseCode: "PE100", CourseName: "Physical Education", Credits: 1, IsRequired: true},
		})
	return &s
}

type exportFixture struct {
	repo     *fakeExportJobRepo
	queue    *recordingDispatcher
	exporter *ExportService
	jobs     *ExportJobService
	worker   *ExportWorker
	metrics  *MetricsService
}

func newExportFixture(t *testing.T, structures stubStructures) *exportFixture {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	metrics := NewMetricsService()
	repo := newFakeExportJobRepo()
	queue := &recordingDispatcher{}
	exporter := NewExportService(structures, files, signer, ExportConfig{APIPrefix: "/api"}, nil)
	return &exportFixture{
		repo:     repo,
		queue:    queue,
		exporter: exporter,
		jobs:     NewExportJobService(repo, structures, queue, exporter, metrics, nil, nil, ExportJobServiceConfig{}),
		worker:   NewExportWorker(repo, exporter, metrics, 2, nil),
		metrics:  metrics,
	}
}

func TestBuildCurriculumDocument(t *testing.T) {
	doc := BuildCurriculumDocument(sampleStructure())

	assert.Equal(t, "SE Ky thuat phan mem (2024)", doc.Title)
	assert.Equal(t, "Software Engineering", doc.Subtitle)
	require.Len(t, doc.Sections, 4)

	core := doc.Sections[0]
	assert.Equal(t, "CORE - Core", core.Heading)
	assert.Equal(t, [][]string{
		{"", "CS101", "Intro", "4", "yes"},
		{"ELEC", "CS350", "Graphics", "3", "no"},
	}, core.Rows)
	assert.Equal(t, []string{"7 credits (4 required, 3 elective) in 2 courses"}, core.Footer)

	assert.Equal(t, "Standalone courses", doc.Sections[1].Heading)
	summary := doc.Sections[2]
	assert.Equal(t, []string{"program", "8", "5", "3", "3"}, summary.Rows[len(summary.Rows)-1])
	assert.Equal(t, "Rule violations", doc.Sections[3].Heading)
}

func TestExportLifecycleCSV(t *testing.T) {
	f := newExportFixture(t, stubStructures{structure: sampleStructure()})
	ctx := context.Background()

	job, err := f.jobs.CreateJob(ctx, 7, ExportRequest{Format: models.ExportFormatCSV}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, job.Status)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, ExportJobType, f.queue.jobs[0].Type)

	require.NoError(t, f.worker.Handle(ctx, f.queue.jobs[0]))

	done, err := f.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, done.Status)
	assert.Equal(t, 100, done.Progress)
	require.NotNil(t, done.ResultURL)
	assert.True(t, strings.HasPrefix(*done.ResultURL, "/api/tms/exports/download/"))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.exportJobs.WithLabelValues("csv", "FINISHED")))

	token := strings.TrimPrefix(*done.ResultURL, "/api/tms/exports/download/")
	download, err := f.jobs.ResolveDownload(ctx, token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "text/csv", download.ContentType)
	assert.True(t, strings.HasSuffix(download.Filename, ".csv"))

	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Contains(t, string(body), "CORE - Core,ELEC,CS350,Graphics,3,no")
}

func TestExportDownloadRejectsTamperedToken(t *testing.T) {
	f := newExportFixture(t, stubStructures{structure: sampleStructure()})
	_, err := f.jobs.ResolveDownload(context.Background(), "job.123.cGF0aA.deadbeef")
	assert.Equal(t, CodeExportInvalidToken, appErrors.FromError(err).Code)
}

func TestExportCreateValidatesAndChecksProgram(t *testing.T) {
	f := newExportFixture(t, stubStructures{structure: sampleStructure()})
	_, err := f.jobs.CreateJob(context.Background(), 7, ExportRequest{Format: "xlsx"}, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	missing := newExportFixture(t, stubStructures{err: appErrors.WithCode(appErrors.ErrNotFound, CodeProgramNotFound, "program not found")})
	_, err = missing.jobs.CreateJob(context.Background(), 7, ExportRequest{Format: models.ExportFormatPDF}, nil)
	assert.Equal(t, CodeProgramNotFound, appErrors.FromError(err).Code)
	assert.Empty(t, missing.queue.jobs)
}

func TestExportEnqueueFailureMarksJobFailed(t *testing.T) {
	f := newExportFixture(t, stubStructures{structure: sampleStructure()})
	f.queue.err = jobs.ErrQueueStopped

	_, err := f.jobs.CreateJob(context.Background(), 7, ExportRequest{Format: models.ExportFormatPDF}, nil)
	require.Error(t, err)
	for _, job := range f.repo.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
	}
}

func TestExportWorkerRetriesThenFails(t *testing.T) {
	f := newExportFixture(t, stubStructures{structure: sampleStructure()})
	ctx := context.Background()
	job, err := f.jobs.CreateJob(ctx, 7, ExportRequest{Format: models.ExportFormatPDF}, nil)
	require.NoError(t, err)

	broken := NewExportWorker(f.repo, NewExportService(stubStructures{err: errors.New("db down")}, nil, nil, ExportConfig{}, nil), f.metrics, 1, nil)

	err = broken.Handle(ctx, jobs.Job{ID: job.ID, Attempt: 0})
	require.Error(t, err)
	assert.Equal(t, models.ExportStatusQueued, f.repo.jobs[job.ID].Status)

	err = broken.Handle(ctx, jobs.Job{ID: job.ID, Attempt: 1})
	require.Error(t, err)
	failed := f.repo.jobs[job.ID]
	assert.Equal(t, models.ExportStatusFailed, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Equal(t, "db down", *failed.ErrorMessage)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.exportJobs.WithLabelValues("pdf", "FAILED")))
}

func TestExportRecoverPendingJobs(t *testing.T) {
	f := newExportFixture(t, stubStructures{structure: sampleStructure()})
	f.repo.jobs["a"] = &models.ExportJob{ID: "a", Status: models.ExportStatusQueued}
	f.repo.jobs["b"] = &models.ExportJob{ID: "b", Status: models.ExportStatusProcessing}
	f.repo.jobs["c"] = &models.ExportJob{ID: "c", Status: models.ExportStatusFinished}

	f.jobs.RecoverPendingJobs(context.Background())

	ids := make([]string, 0, len(f.queue.jobs))
	for _, j := range f.queue.jobs {
		ids = append(ids, j.ID)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}
