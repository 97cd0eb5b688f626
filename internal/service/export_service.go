package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/pkg/export"
	"github.com/noah-isme/uni-admin-api/pkg/storage"
)

type structureLoader interface {
	Structure(ctx context.Context, id models.ID) (*models.ProgramStructure, bool, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders program curricula and persists the files.
type ExportService struct {
	programs  structureLoader
	storage   fileStorage
	renderers map[models.ExportFormat]export.Renderer
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService with the CSV and PDF renderers.
func NewExportService(programs structureLoader, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		programs: programs,
		storage:  files,
		renderers: map[models.ExportFormat]export.Renderer{
			models.ExportFormatCSV: export.NewCSVExporter(),
			models.ExportFormatPDF: export.NewPDFExporter(),
		},
		signer: signer,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Supports reports whether a renderer exists for format.
func (s *ExportService) Supports(format models.ExportFormat) bool {
	_, ok := s.renderers[format]
	return ok
}

// ContentType returns the MIME type for format.
func (s *ExportService) ContentType(format models.ExportFormat) string {
	if r, ok := s.renderers[format]; ok {
		return r.ContentType()
	}
	return "application/octet-stream"
}

// Generate renders the job's program and stores the file.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	renderer, ok := s.renderers[job.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %s", job.Format)
	}
	structure, _, err := s.programs.Structure(ctx, job.ProgramID)
	if err != nil {
		return nil, err
	}

	payload, err := renderer.Render(BuildCurriculumDocument(structure))
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job, structure.Program, renderer.Extension()), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/tms/exports/download/%s", prefix, token),
		Format:       job.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates a download token.
func (s *ExportService) ParseToken(token string, allowExpired bool) (*storage.SignedToken, error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl, or the configured ResultTTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ExportJob, program models.Program, ext string) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("program_%s_%s_%s_%s.%s", sanitizeFilename(program.Code), sanitizeFilename(program.Version), timestamp, shortID(job.ID), ext)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

var courseHeaders = []string{"Group", "Course Code", "Course Name", "Credits", "Required"}

// BuildCurriculumDocument lays out a program structure as one table per
// block, a standalone table, a credit summary and any rule violations.
func BuildCurriculumDocument(s *models.ProgramStructure) export.Document {
	title := fmt.Sprintf("%s %s (%s)", s.Program.Code, s.Program.NameVi, s.Program.Version)
	subtitle := "Curriculum structure"
	if s.Program.NameEn != nil && *s.Program.NameEn != "" {
		subtitle = *s.Program.NameEn
	}
	doc := export.Document{Title: title, Subtitle: subtitle}

	summaryRows := make([][]string, 0, len(s.Blocks)+2)
	for _, block := range s.Blocks {
		rows := make([][]string, 0)
		for _, c := range block.Courses {
			rows = append(rows, courseRow("", c))
		}
		for _, group := range block.Groups {
			for _, c := range group.Courses {
				rows = append(rows, courseRow(group.Code, c))
			}
		}
		if len(rows) > 0 {
			doc.Sections = append(doc.Sections, export.Section{
				Heading: fmt.Sprintf("%s - %s", block.Code, block.Title),
				Headers: courseHeaders,
				Rows:    rows,
				Footer:  []string{summaryLine(block.Summary)},
			})
		}
		summaryRows = append(summaryRows, summaryRow(block.Code, block.Summary))
	}

	if len(s.Standalone) > 0 {
		rows := make([][]string, 0, len(s.Standalone))
		for _, c := range s.Standalone {
			rows = append(rows, courseRow("", c))
		}
		doc.Sections = append(doc.Sections, export.Section{
			Heading: "Standalone courses",
			Headers: courseHeaders,
			Rows:    rows,
			Footer:  []string{summaryLine(s.StandaloneSummary)},
		})
		summaryRows = append(summaryRows, summaryRow("standalone", s.StandaloneSummary))
	}

	summaryRows = append(summaryRows, summaryRow("program", s.Summary))
	doc.Sections = append(doc.Sections, export.Section{
		Heading: "Credit summary",
		Headers: []string{"Scope", "Total Credits", "Required Credits", "Elective Credits", "Courses"},
		Rows:    summaryRows,
		Footer:  []string{fmt.Sprintf("Declared total credits: %d", s.Program.TotalCredits)},
	})

	if len(s.RuleViolations) > 0 {
		rows := make([][]string, 0, len(s.RuleViolations))
		for _, v := range s.RuleViolations {
			rows = append(rows, []string{v.GroupID.String(), v.Rule, strconv.Itoa(v.Limit), strconv.Itoa(v.Actual), v.Message})
		}
		doc.Sections = append(doc.Sections, export.Section{
			Heading: "Rule violations",
			Headers: []string{"Group", "Rule", "Limit", "Actual", "Message"},
			Rows:    rows,
		})
	}
	return doc
}

func courseRow(group string, c models.ProgramCourseMap) []string {
	required := "no"
	if c.IsRequired {
		required = "yes"
	}
	return []string{group, c.CourseCode, c.CourseName, strconv.Itoa(c.Credits), required}
}

func summaryRow(scope string, s models.CreditSummary) []string {
	return []string{scope, strconv.Itoa(s.TotalCredits), strconv.Itoa(s.RequiredCredits), strconv.Itoa(s.ElectiveCredits), strconv.Itoa(s.CourseCount)}
}

func summaryLine(s models.CreditSummary) string {
	return fmt.Sprintf("%d credits (%d required, %d elective) in %d courses", s.TotalCredits, s.RequiredCredits, s.ElectiveCredits, s.CourseCount)
}
