package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/cloudpulse/api/middleware"
	"github.com/OldStager01/cloudpulse/internal/auth"
	"github.com/OldStager01/cloudpulse/internal/metrics"
	"github.com/OldStager01/cloudpulse/internal/orchestrator"
	"github.com/OldStager01/cloudpulse/internal/simulator"
	"github.com/OldStager01/cloudpulse/internal/storage"
	"github.com/OldStager01/cloudpulse/pkg/config"
	"github.com/OldStager01/cloudpulse/pkg/database"
	"github.com/OldStager01/cloudpulse/pkg/database/queries"
	"github.com/OldStager01/cloudpulse/pkg/models"
)

type testEnv struct {
	router *gin.Engine
	repo   *queries.UserRepository
	auth   *auth.Service
	store  *storage.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.New(database.Config{Driver: database.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = database.NewMigrator(db).Run(context.Background())
	require.NoError(t, err)

	repo := queries.NewUserRepository(db)
	authService := auth.NewService("test-secret", time.Hour)
	apiCfg := config.APIConfig{RequestTimeout: 5 * time.Second, DefaultLimit: 10, MaxLimit: 20}

	store := storage.NewMemoryStore()
	orch, err := orchestrator.NewWithStore(&config.Config{
		Events: config.EventsConfig{BufferSize: 50},
	}, store, repo, metrics.New())
	require.NoError(t, err)

	authHandler := NewAuthHandler(repo, authService, apiCfg)
	profileHandler := NewProfileHandler(repo, apiCfg)
	dashboardHandler := NewDashboardHandler(orch.Dashboard(), apiCfg)

	router := gin.New()
	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)

	protected := router.Group("/")
	protected.Use(middleware.JWTAuth(authService, ""))
	protected.POST("/auth/logout", authHandler.Logout)
	protected.GET("/profile", profileHandler.Get)
	protected.PUT("/profile/emails", profileHandler.UpdateEmails)
	protected.GET("/dashboard", dashboardHandler.Overview)
	protected.GET("/anomalies", dashboardHandler.Anomalies)
	protected.GET("/forecast", dashboardHandler.Forecast)
	protected.GET("/recommendations", dashboardHandler.Recommendations)
	protected.POST("/live/update", dashboardHandler.LiveUpdate)
	protected.POST("/anomaly/force", dashboardHandler.ForceAnomaly)
	protected.POST("/anomaly/solve", dashboardHandler.SolveAnomaly)

	return &testEnv{router: router, repo: repo, auth: authService, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, username, email string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{
		Username:        username,
		Email:           email,
		Password:        "pa55word",
		ConfirmPassword: "pa55word",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAuthHandler_Register(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "pa55word", ConfirmPassword: "pa55word",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, 3600, resp.ExpiresIn)

	claims, err := env.auth.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.AuthCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestAuthHandler_RegisterRejects(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "taken", "")

	tests := []struct {
		name string
		req  RegisterRequest
		code int
	}{
		{"duplicate username", RegisterRequest{Username: "taken", Password: "x", ConfirmPassword: "x"}, http.StatusConflict},
		{"password mismatch", RegisterRequest{Username: "bob", Password: "one", ConfirmPassword: "two"}, http.StatusBadRequest},
		{"bad email", RegisterRequest{Username: "bob", Email: "nope", Password: "x", ConfirmPassword: "x"}, http.StatusBadRequest},
		{"blank username", RegisterRequest{Username: "   ", Password: "x", ConfirmPassword: "x"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/auth/register", "", tt.req)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "carol", "")

	rec := env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Username: "carol", Password: "pa55word"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Username: "carol", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Username: "nobody", Password: "pa55word"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "carol"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_LogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "dave", "")

	rec := env.do(t, http.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/dashboard", "/anomalies", "/forecast", "/profile"} {
		rec := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestProfileHandler_Emails(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "erin", "erin@example.com")

	rec := env.do(t, http.MethodGet, "/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile ProfileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "erin@example.com", profile.Email)
	assert.Empty(t, profile.NotificationEmails)

	rec = env.do(t, http.MethodPut, "/profile/emails", token, UpdateEmailsRequest{
		Emails: []string{" ops@example.com ", "", "finance@example.com"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, decode(t, rec)["count"])

	rec = env.do(t, http.MethodGet, "/profile", token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, []string{"ops@example.com", "finance@example.com"}, profile.NotificationEmails)

	rec = env.do(t, http.MethodPut, "/profile/emails", token, UpdateEmailsRequest{Emails: []string{"not-an-email"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardHandler_EmptyTables(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "frank", "")

	rec := env.do(t, http.MethodGet, "/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["anomaly_active"])

	rec = env.do(t, http.MethodGet, "/anomalies", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode(t, rec)["count"])

	rec = env.do(t, http.MethodGet, "/forecast", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fallback", decode(t, rec)["source"])

	rec = env.do(t, http.MethodGet, "/recommendations", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decode(t, rec)["count"])
}

func TestDashboardHandler_AnomaliesInvalidSeverity(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "gina", "")

	rec := env.do(t, http.MethodGet, "/anomalies?severity=extreme", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/anomalies?severity=high&limit=5", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDashboardHandler_LiveUpdateAndFlag(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "hank", "")

	rec := env.do(t, http.MethodPost, "/live/update", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	appended := decode(t, rec)["appended"].(map[string]interface{})
	assert.Equal(t, false, appended["spiked"])

	rec = env.do(t, http.MethodPost, "/live/update?force=1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	appended = decode(t, rec)["appended"].(map[string]interface{})
	assert.Equal(t, true, appended["spiked"])

	rows, err := env.store.Hourly.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rec = env.do(t, http.MethodPost, "/anomaly/force", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["anomaly_active"])

	rows, err = env.store.Hourly.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rec = env.do(t, http.MethodPost, "/anomaly/solve", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["anomaly_active"])
}

func TestDashboardHandler_ForceAnomalyReturnsNewAnomalies(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "ivy", "")

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var history []models.HourlyCostRecord
	for h := 0; h < 48; h++ {
		for _, svc := range simulator.DefaultServices {
			history = append(history, models.NewHourlyCostRecord(start.Add(time.Duration(h)*time.Hour), svc.Name, 10))
		}
	}
	require.NoError(t, env.store.Hourly.AtomicReplace(context.Background(), history))

	rec := env.do(t, http.MethodPost, "/anomaly/force", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, true, body["anomaly_active"])

	appended := body["appended"].(map[string]interface{})
	assert.Equal(t, true, appended["spiked"])
	record := appended["record"].(map[string]interface{})

	found := body["new_anomalies"].([]interface{})
	require.Len(t, found, 1)
	got := found[0].(map[string]interface{})
	assert.Equal(t, record["service"], got["service"])
	assert.Equal(t, "2024-03-03 00:00", got["timestamp"])
}

type stubChecker struct{ err error }

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name  string
		err   error
		code  int
		ready int
	}{
		{"healthy", nil, http.StatusOK, http.StatusOK},
		{"database down", errors.New("connection refused"), http.StatusServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(stubChecker{err: tt.err}).
				AddCheck("cost_tables", storage.NewMemoryStore())
			router := gin.New()
			router.GET("/health", h.Health)
			router.GET("/health/ready", h.Ready)
			router.GET("/health/live", h.Live)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.code, rec.Code)

			rec = httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			assert.Equal(t, tt.ready, rec.Code)

			rec = httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestHealthHandler_ReportsEachCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewHealthHandler(stubChecker{}).AddCheck("cost_tables", stubChecker{err: errors.New("permission denied")})
	router := gin.New()
	router.GET("/health", h.Health)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Checks["database"])
	assert.Equal(t, "unhealthy: permission denied", body.Checks["cost_tables"])
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 10},
		{"abc", 10},
		{"-3", 10},
		{"5", 5},
		{"500", 20},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLimit(tt.raw, 10, 20))
		})
	}
}
