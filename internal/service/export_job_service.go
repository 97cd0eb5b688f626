package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/internal/repository"
	appErrors "github.com/noah-isme/uni-admin-api/pkg/errors"
	"github.com/noah-isme/uni-admin-api/pkg/jobs"
)

// Export error codes.
const (
	CodeExportNotFound     = "EXPORT_NOT_FOUND"
	CodeExportInvalidToken = "EXPORT_INVALID_TOKEN"
	CodeExportNotReady     = "EXPORT_NOT_READY"
)

// ExportJobType tags curriculum export jobs on the queue.
const ExportJobType = "program_export"

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, u repository.ExportJobUpdate) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error)
}

type programFinder interface {
	Get(ctx context.Context, id models.ID) (*models.Program, error)
}

// ExportRequest asks for a curriculum export.
type ExportRequest struct {
	Format models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportJobServiceConfig governs recovery and cleanup.
type ExportJobServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ExportDownload is a resolved download.
type ExportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

// ExportJobService manages the lifecycle of export jobs.
type ExportJobService struct {
	repo      exportJobStore
	programs  programFinder
	queue     jobDispatcher
	exporter  *ExportService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportJobServiceConfig
}

// NewExportJobService constructs the service.
func NewExportJobService(repo exportJobStore, programs programFinder, queue jobDispatcher, exporter *ExportService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ExportJobServiceConfig) *ExportJobService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportJobService{
		repo:      repo,
		programs:  programs,
		queue:     queue,
		exporter:  exporter,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// CreateJob persists a QUEUED job for an existing program and enqueues it.
func (s *ExportJobService) CreateJob(ctx context.Context, programID models.ID, req ExportRequest, actor *models.ID) (*models.ExportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid export request")
	}
	if _, err := s.programs.Get(ctx, programID); err != nil {
		return nil, err
	}
	job := &models.ExportJob{
		ProgramID: programID,
		Format:    req.Format,
		Status:    models.ExportStatusQueued,
		CreatedBy: actor,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, internal(err, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: ExportJobType}); err != nil {
		status := models.ExportStatusFailed
		msg := "failed to enqueue job"
		progress := 100
		now := time.Now().UTC()
		if updateErr := s.repo.Update(ctx, job.ID, repository.ExportJobUpdate{Status: &status, Progress: &progress, ErrorMessage: &msg, FinishedAt: &now}); updateErr != nil {
			s.logger.Warn("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		s.metrics.RecordExportJob(job.Format, status)
		return nil, internal(err, "failed to enqueue export job")
	}
	s.metrics.RecordExportJob(job.Format, job.Status)
	s.logger.Info("export job queued", zap.String("job_id", job.ID), zap.String("program_id", programID.String()), zap.String("format", string(job.Format)))
	return job, nil
}

// Get returns job status.
func (s *ExportJobService) Get(ctx context.Context, id string) (*models.ExportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, CodeExportNotFound, "export job not found", "failed to load export job")
	}
	return job, nil
}

// ResolveDownload validates a token and opens the stored file.
func (s *ExportJobService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	parsed, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.WithCode(appErrors.ErrForbidden, CodeExportInvalidToken, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, parsed.ResourceID)
	if err != nil {
		return nil, lookupError(err, CodeExportNotFound, "export job not found", "failed to load export job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.WithCode(appErrors.ErrForbidden, CodeExportInvalidToken, "token mismatch")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.WithCode(appErrors.ErrForbidden, CodeExportNotReady, "export not ready")
	}
	file, err := s.exporter.Open(parsed.Path)
	if err != nil {
		return nil, internal(err, "failed to open export file")
	}
	return &ExportDownload{
		File:        file,
		Filename:    filepath.Base(parsed.Path),
		ContentType: s.exporter.ContentType(job.Format),
		ExpiresAt:   parsed.ExpiresAt,
	}, nil
}

// RecoverPendingJobs re-enqueues jobs left QUEUED or PROCESSING by a previous process.
func (s *ExportJobService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued export jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: ExportJobType}); err != nil {
			s.logger.Warn("failed to requeue export job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if len(pending) > 0 {
		s.logger.Info("export jobs recovered", zap.Int("count", len(pending)))
	}
}

// StartCleanup purges expired export files every CleanupInterval until ctx ends.
func (s *ExportJobService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CleanupExpired(ctx)
			}
		}
	}()
}

// CleanupExpired deletes files of jobs finished before the TTL, then sweeps the storage directory.
func (s *ExportJobService) CleanupExpired(ctx context.Context) {
	const batch = 100
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	expired, err := s.repo.ListFinishedBefore(ctx, cutoff, batch)
	if err != nil {
		s.logger.Warn("export cleanup list failed", zap.Error(err))
		return
	}
	for _, job := range expired {
		if job.FilePath == nil || *job.FilePath == "" {
			continue
		}
		if err := s.exporter.Delete(*job.FilePath); err != nil {
			s.logger.Warn("export cleanup delete failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	removed, err := s.exporter.Cleanup(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("export storage cleanup failed", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.logger.Info("export files removed", zap.Int("count", len(removed)))
	}
}

// ExportWorker bridges queue jobs to the ExportService.
type ExportWorker struct {
	repo       exportJobStore
	exporter   exportGenerator
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
}

// NewExportWorker constructs a worker.
func NewExportWorker(repo exportJobStore, exporter exportGenerator, metrics *MetricsService, maxRetries int, logger *zap.Logger) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &ExportWorker{repo: repo, exporter: exporter, metrics: metrics, logger: logger, maxRetries: maxRetries}
}

// Handle processes one queue job. Errors are returned so the queue retries;
// the final attempt marks the job FAILED.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if record.Status == models.ExportStatusFinished {
		return nil
	}
	processing := models.ExportStatusProcessing
	progress := 10
	if err := w.repo.Update(ctx, job.ID, repository.ExportJobUpdate{Status: &processing, Progress: &progress}); err != nil {
		return err
	}

	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		if job.Attempt >= w.maxRetries {
			failed := models.ExportStatusFailed
			done := 100
			now := time.Now().UTC()
			if updateErr := w.repo.Update(ctx, job.ID, repository.ExportJobUpdate{Status: &failed, Progress: &done, ErrorMessage: &msg, FinishedAt: &now}); updateErr != nil {
				w.logger.Warn("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
			w.metrics.RecordExportJob(record.Format, failed)
		} else {
			queued := models.ExportStatusQueued
			reset := 0
			if updateErr := w.repo.Update(ctx, job.ID, repository.ExportJobUpdate{Status: &queued, Progress: &reset, ErrorMessage: &msg}); updateErr != nil {
				w.logger.Warn("failed to mark export job queued", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
		}
		return err
	}

	finished := models.ExportStatusFinished
	done := 100
	now := time.Now().UTC()
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.ExportJobUpdate{
		Status:       &finished,
		Progress:     &done,
		FilePath:     &result.RelativePath,
		ResultURL:    &result.URL,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark export job finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	w.metrics.RecordExportJob(record.Format, finished)
	w.logger.Info("export job finished", zap.String("job_id", job.ID), zap.String("path", result.RelativePath))
	return nil
}
