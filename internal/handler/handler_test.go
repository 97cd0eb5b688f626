package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-admin-api/internal/middleware"
	"github.com/noah-isme/uni-admin-api/internal/models"
	"github.com/noah-isme/uni-admin-api/internal/service"
	appErrors "github.com/noah-isme/uni-admin-api/pkg/errors"
)

type envelope struct {
	Success bool                   `json:"success"`
	Data    json.RawMessage        `json:"data"`
	Error   *appErrors.Error       `json:"error"`
	Meta    map[string]interface{} `json:"meta"`
}

func newTestRouter(claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.WithResponseMeta())
	if claims != nil {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.ContextUserKey, claims)
			c.Next()
		})
	}
	return r
}

func perform(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

type relationServiceStub struct {
	orgRelationService
	gotID  models.ID
	gotKey *models.RelationKey
}

func (s *relationServiceStub) Get(ctx context.Context, id models.ID) (*models.OrgUnitRelation, error) {
	s.gotID = id
	return &models.OrgUnitRelation{ID: id}, nil
}

func (s *relationServiceStub) GetByKey(ctx context.Context, key models.RelationKey) (*models.OrgUnitRelation, error) {
	s.gotKey = &key
	return &models.OrgUnitRelation{ID: 9, ParentID: key.ParentID, ChildID: key.ChildID}, nil
}

func (s *relationServiceStub) DeleteByKey(ctx context.Context, key models.RelationKey, meta models.AuditMeta) error {
	return appErrors.Clone(appErrors.ErrNotFound, "relation not found")
}

func TestOrgRelationHandlerAddressing(t *testing.T) {
	svc := &relationServiceStub{}
	h := NewOrgRelationHandler(svc)
	r := newTestRouter(nil)
	r.GET("/unit-relations/*key", h.Get)
	r.DELETE("/unit-relations/*key", h.Delete)

	w, _ := perform(t, r, http.MethodGet, "/unit-relations/42", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ID(42), svc.gotID)
	assert.Nil(t, svc.gotKey)

	w, _ = perform(t, r, http.MethodGet, "/unit-relations/1/2/advisory/2024-09-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.gotKey)
	assert.Equal(t, models.ID(1), svc.gotKey.ParentID)
	assert.Equal(t, models.ID(2), svc.gotKey.ChildID)
	assert.Equal(t, models.RelationAdvisory, svc.gotKey.RelationType)
	assert.Equal(t, "2024-09-01", svc.gotKey.EffectiveFrom.String())

	w, env := perform(t, r, http.MethodGet, "/unit-relations/1/2/bogus/2024-09-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, env.Error.Code)

	w, _ = perform(t, r, http.MethodGet, "/unit-relations/1/2", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = perform(t, r, http.MethodDelete, "/unit-relations/1/2/direct/2024-09-01", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
}

type workflowServiceStub struct {
	entity models.EntityType
	action models.WorkflowAction
	actor  models.WorkflowActor
	input  service.WorkflowActionInput
	err    error
}

func (s *workflowServiceStub) Apply(ctx context.Context, entity models.EntityType, id models.ID, action models.WorkflowAction, input service.WorkflowActionInput, actor models.WorkflowActor) (*models.WorkflowResult, error) {
	s.entity, s.action, s.actor, s.input = entity, action, actor, input
	if s.err != nil {
		return nil, s.err
	}
	return &models.WorkflowResult{}, nil
}

func (s *workflowServiceStub) History(ctx context.Context, entity models.EntityType, id models.ID) ([]models.ApprovalHistory, error) {
	return []models.ApprovalHistory{}, nil
}

func (s *workflowServiceStub) Actions(ctx context.Context, entity models.EntityType, id models.ID, actor models.WorkflowActor) ([]models.ActionAvailability, error) {
	s.actor = actor
	return []models.ActionAvailability{}, nil
}

func TestWorkflowHandlerApply(t *testing.T) {
	svc := &workflowServiceStub{}
	h := NewWorkflowHandler(svc)
	r := newTestRouter(&models.JWTClaims{UserID: 7, Role: models.RoleFaculty})
	r.POST("/courses/:id/workflow/:action", h.Apply(models.EntityCourse))
	r.POST("/programs/:id/workflow/:action", h.Apply(models.EntityProgram))

	w, _ := perform(t, r, http.MethodPost, "/courses/3/workflow/submit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.EntityCourse, svc.entity)
	assert.Equal(t, models.WorkflowAction("submit"), svc.action)
	assert.Equal(t, models.WorkflowActor{UserID: 7, Role: models.RoleFaculty}, svc.actor)

	comments := "please revise"
	w, _ = perform(t, r, http.MethodPost, "/programs/3/workflow/request_changes", service.WorkflowActionInput{Comments: &comments})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.EntityProgram, svc.entity)
	require.NotNil(t, svc.input.Comments)
	assert.Equal(t, comments, *svc.input.Comments)

	svc.err = appErrors.Clone(appErrors.ErrInvalidTransition, "cannot approve from DRAFT")
	w, env := perform(t, r, http.MethodPost, "/courses/3/workflow/approve", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, env.Error.Code)

	w, _ = perform(t, r, http.MethodPost, "/courses/abc/workflow/submit", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type programServiceStub struct {
	programService
	hit bool
}

func (s *programServiceStub) Structure(ctx context.Context, id models.ID) (*models.ProgramStructure, bool, error) {
	return &models.ProgramStructure{Program: models.Program{ID: id, Code: "CS"}}, s.hit, nil
}

func TestProgramHandlerStructureReportsCacheHit(t *testing.T) {
	h := NewProgramHandler(&programServiceStub{hit: true}, nil)
	r := newTestRouter(nil)
	r.GET("/programs/:id/structure", h.Structure)
	r.POST("/programs/:id/exports", h.Export)

	w, env := perform(t, r, http.MethodGet, "/programs/5/structure", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, env.Meta["cache_hit"])

	w, _ = perform(t, r, http.MethodPost, "/programs/5/exports", map[string]string{"format": "csv"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

type courseServiceStub struct {
	courseService
	created        bool
	deletedID      models.ID
	deleteComments *string
	deleteActor    models.WorkflowActor
}

func (s *courseServiceStub) Delete(ctx context.Context, id models.ID, comments *string, actor models.WorkflowActor) (*models.WorkflowResult, error) {
	s.deletedID, s.deleteComments, s.deleteActor = id, comments, actor
	return &models.WorkflowResult{}, nil
}

func (s *courseServiceStub) Create(ctx context.Context, req service.CourseRequest) (*models.Course, error) {
	s.created = true
	return &models.Course{ID: 1}, nil
}

func TestCourseHandlerCreateRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &courseServiceStub{}
	h := NewCourseHandler(svc)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/courses", bytes.NewReader([]byte(`{not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: 2, Role: models.RoleFaculty})

	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, env.Error.Code)
	assert.False(t, svc.created)
}

func TestCourseHandlerDeleteWithoutBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &courseServiceStub{}
	h := NewCourseHandler(svc)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodDelete, "/courses/8", nil)
	c.Params = gin.Params{{Key: "id", Value: "8"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: 2, Role: models.RoleAdmin})

	h.Delete(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ID(8), svc.deletedID)
	assert.Nil(t, svc.deleteComments)
	assert.Equal(t, models.RoleAdmin, svc.deleteActor.Role)
}

type exportReaderStub struct {
	path string
	err  error
}

func (s *exportReaderStub) Get(ctx context.Context, id string) (*models.ExportJob, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
}

func (s *exportReaderStub) ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error) {
	if s.err != nil {
		return nil, s.err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	return &service.ExportDownload{File: f, Filename: filepath.Base(s.path), ContentType: "text/csv"}, nil
}

func TestExportHandlerDownload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "program_CS_2024.csv")
	require.NoError(t, os.WriteFile(path, []byte("Group,Course Code\n"), 0o600))

	stub := &exportReaderStub{path: path}
	h := NewExportHandler(stub)
	r := newTestRouter(nil)
	r.GET("/exports/:id", h.Status)
	r.GET("/exports/download/:token", h.Download)

	w, _ := perform(t, r, http.MethodGet, "/exports/download/abc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "program_CS_2024.csv")
	assert.Equal(t, "Group,Course Code\n", w.Body.String())

	stub.err = appErrors.WithCode(appErrors.ErrForbidden, service.CodeExportInvalidToken, "invalid or expired download token")
	w, env := perform(t, r, http.MethodGet, "/exports/download/abc", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, service.CodeExportInvalidToken, env.Error.Code)

	w, _ = perform(t, r, http.MethodGet, "/exports/job-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type authServiceStub struct{}

func (authServiceStub) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	return nil, appErrors.ErrInvalidCredentials
}

func (authServiceStub) Me(ctx context.Context, id models.ID) (*models.UserInfo, error) {
	return &models.UserInfo{ID: id, Role: models.RoleAdmin}, nil
}

func TestAuthHandler(t *testing.T) {
	h := NewAuthHandler(authServiceStub{})
	anon := newTestRouter(nil)
	anon.POST("/login", h.Login)
	anon.GET("/me", h.Me)

	w, _ := perform(t, anon, http.MethodPost, "/login", map[string]string{"email": "a@b.c", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = perform(t, anon, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	authed := newTestRouter(&models.JWTClaims{UserID: 11, Role: models.RoleAdmin})
	authed.GET("/me", h.Me)
	w, env := perform(t, authed, http.MethodGet, "/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var user models.UserInfo
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, models.ID(11), user.ID)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestMetricsHandlerReady(t *testing.T) {
	r := newTestRouter(nil)
	down := NewMetricsHandler(nil, pingerFunc(func(context.Context) error { return errors.New("refused") }))
	up := NewMetricsHandler(service.NewMetricsService(), pingerFunc(func(context.Context) error { return nil }))
	r.GET("/ready-down", down.Ready)
	r.GET("/ready-up", up.Ready)
	r.GET("/metrics", up.Prometheus)
	r.GET("/metrics-off", down.Prometheus)

	w, _ := perform(t, r, http.MethodGet, "/ready-down", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w, _ = perform(t, r, http.MethodGet, "/ready-up", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = perform(t, r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = perform(t, r, http.MethodGet, "/metrics-off", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
