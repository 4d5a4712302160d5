package upload

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/epicollect5/epicollect5-server-sub003/internal/config"
	"github.com/epicollect5/epicollect5-server-sub003/internal/database"
	"github.com/epicollect5/epicollect5-server-sub003/internal/entry"
	"github.com/epicollect5/epicollect5-server-sub003/internal/metrics"
	"github.com/epicollect5/epicollect5-server-sub003/internal/project"
	"github.com/epicollect5/epicollect5-server-sub003/internal/uniqueness"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testCORS = &config.CORSConfig{
	AllowedOrigins: []string{"http://localhost:3000"},
	AllowedMethods: []string{"GET", "POST", "OPTIONS"},
	AllowedHeaders: []string{"Content-Type"},
	MaxAge:         3600,
}

// setupRouter serves a single project "ec5-trees" from in-memory stores.
func setupRouter(t *testing.T, maxPayloadBytes int64) *gin.Engine {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	require.NoError(t, database.Migrate(db, append(entry.Models(), &project.Project{})...))

	projects := project.NewStore(db)
	require.NoError(t, projects.Create(context.Background(), &project.Project{
		ID:         testProjectID,
		Ref:        "ec5-trees",
		Name:       "Trees",
		Definition: datatypes.JSON(surveyDefinition),
	}))

	entries := entry.NewStore(db)
	validator := NewValidator(uniqueness.NewChecker(entries), entries)
	handler := NewHandler(projects, validator, maxPayloadBytes)
	return NewRouter(testCORS, handler, func() error { return database.HealthCheck(db) })
}

func post(router *gin.Engine, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleUpload_OakTreeScenario(t *testing.T) {
	router := setupRouter(t, 1<<20)

	rec := post(router, "/api/upload/ec5-trees", payloadBody(t, uuid.New(), "F1", map[string]any{"R1": "Oak Tree"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"code":"ec5_237","title":"Entry successfully uploaded."}}`, rec.Body.String())

	rec = post(router, "/api/upload/ec5-trees", payloadBody(t, uuid.New(), "F1", map[string]any{"R1": "Oak Tree"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"errors":[{"code":"ec5_22","title":"Answer is not unique.","source":"R1"}]}`, rec.Body.String())

	rec = post(router, "/api/upload/ec5-trees", payloadBody(t, uuid.New(), "F1", map[string]any{"R1": "Pine Tree"}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleUpload_GroupedDuplicate(t *testing.T) {
	router := setupRouter(t, 1<<20)

	require.Equal(t, http.StatusOK, post(router, "/api/upload/ec5-trees", payloadBody(t, uuid.New(), "F1", map[string]any{"G1R1": "Oak Tree"})).Code)

	rec := post(router, "/api/upload/ec5-trees", payloadBody(t, uuid.New(), "F1", map[string]any{"G1R1": "Oak Tree"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"errors":[{"code":"ec5_22","title":"Answer is not unique.","source":"G1R1"}]}`, rec.Body.String())
}

func TestHandleUpload_Errors(t *testing.T) {
	router := setupRouter(t, 512)

	t.Run("unknown project", func(t *testing.T) {
		rec := post(router, "/api/upload/ec5-missing", payloadBody(t, uuid.New(), "F1", map[string]any{}))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"errors":[{"code":"ec5_11","title":"Project does not exist.","source":"ec5-missing"}]}`, rec.Body.String())
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := post(router, "/api/upload/ec5-trees", []byte(`{"data": [`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"errors":[{"code":"ec5_26","title":"Entry payload is invalid.","source":"upload"}]}`, rec.Body.String())
	})

	t.Run("body too large", func(t *testing.T) {
		rec := post(router, "/api/upload/ec5-trees", payloadBody(t, uuid.New(), "F1", map[string]any{"R1": string(bytes.Repeat([]byte("x"), 1024))}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"ec5_26"`)
	})

	t.Run("invalid date", func(t *testing.T) {
		rec := post(router, "/api/upload/ec5-trees", payloadBody(t, uuid.New(), "F1", map[string]any{"D1": "2024/12/25"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"source":"D1"`)
		assert.Contains(t, rec.Body.String(), `"ec5_79"`)
	})
}

// MockProjects
type MockProjects struct {
	mock.Mock
}

func (m *MockProjects) GetByRef(ctx context.Context, ref string) (*project.Project, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*project.Project), args.Error(1)
}

func TestHandleUpload_ServerErrors(t *testing.T) {
	projects := new(MockProjects)
	checker := new(MockChecker)
	handler := NewHandler(projects, NewValidator(checker, new(MockPersister)), 1<<20)
	router := NewRouter(testCORS, handler, func() error { return nil })

	projects.On("GetByRef", mock.Anything, "ec5-down").Return(nil, errors.New("connection refused"))
	projects.On("GetByRef", mock.Anything, "ec5-trees").
		Return(&project.Project{ID: testProjectID, Ref: "ec5-trees", Definition: datatypes.JSON(surveyDefinition)}, nil)
	checker.On("CheckConflict", mock.Anything, mock.Anything).Return(nil, errors.New("lookup timeout"))

	serverError := `{"errors":[{"code":"ec5_103","title":"Server error.","source":"upload"}]}`

	rec := post(router, "/api/upload/ec5-down", payloadBody(t, uuid.New(), "F1", map[string]any{}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, serverError, rec.Body.String())

	rec = post(router, "/api/upload/ec5-trees", payloadBody(t, uuid.New(), "F1", map[string]any{"R1": "Oak"}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, serverError, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	router := setupRouter(t, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	down := NewRouter(testCORS, NewHandler(new(MockProjects), nil, 1), func() error { return errors.New("ping failed") })
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetrics(t *testing.T) {
	router := setupRouter(t, 1<<20)

	accepted := metrics.UploadsTotal.WithLabelValues("200", "ec5_237")
	notUnique := metrics.UploadsTotal.WithLabelValues("400", "ec5_22")
	precheck := metrics.UniquenessConflictsTotal.WithLabelValues("form", metrics.StagePrecheck)
	acceptedBefore := testutil.ToFloat64(accepted)
	notUniqueBefore := testutil.ToFloat64(notUnique)
	precheckBefore := testutil.ToFloat64(precheck)

	require.Equal(t, http.StatusOK, post(router, "/api/upload/ec5-trees", payloadBody(t, uuid.New(), "F1", map[string]any{"R1": "Elm"})).Code)
	require.Equal(t, http.StatusBadRequest, post(router, "/api/upload/ec5-trees", payloadBody(t, uuid.New(), "F1", map[string]any{"R1": "Elm"})).Code)

	assert.Equal(t, acceptedBefore+1, testutil.ToFloat64(accepted))
	assert.Equal(t, notUniqueBefore+1, testutil.ToFloat64(notUnique))
	assert.Equal(t, precheckBefore+1, testutil.ToFloat64(precheck))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ec5_uploads_total")
	assert.Contains(t, rec.Body.String(), "ec5_upload_duration_seconds")
}

func TestCORSConfig(t *testing.T) {
	cfg := corsConfig(testCORS)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowOrigins)
	assert.False(t, cfg.AllowAllOrigins)

	wildcard := corsConfig(&config.CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true})
	assert.True(t, wildcard.AllowAllOrigins)
	assert.False(t, wildcard.AllowCredentials)
	assert.Empty(t, wildcard.AllowOrigins)
}
