package handler

import (
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

	"github.com/noah-isme/shift-ledger-api/internal/dto"
	"github.com/noah-isme/shift-ledger-api/internal/models"
	appErrors "github.com/noah-isme/shift-ledger-api/pkg/errors"
)

type tokenTable map[string]*models.JWTClaims

func (t tokenTable) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := t[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type sweepMock struct {
	runs int
}

func (m *sweepMock) RunOnce(ctx context.Context) (*dto.SweepResult, error) {
	m.runs++
	return &dto.SweepResult{Scanned: 3, Affected: 2, Skipped: 1}, nil
}

type batchMock struct {
	limit int
}

func (m *batchMock) EnqueuePending(ctx context.Context, limit int) (int, error) {
	m.limit = limit
	return 4, nil
}

type routerFixture struct {
	engine    *gin.Engine
	timecards *timecardServiceMock
	sweeps    *sweepMock
	batches   *batchMock
}

func newRouterFixture() *routerFixture {
	gin.SetMode(gin.TestMode)
	f := &routerFixture{
		engine:    gin.New(),
		timecards: &timecardServiceMock{},
		sweeps:    &sweepMock{},
		batches:   &batchMock{},
	}
	RegisterRoutes(f.engine.Group("/api/v1"), Handlers{
		Timecards: NewTimecardHandler(f.timecards, &settlerMock{}, &statementMock{}),
		Disputes:  NewDisputeHandler(&disputeServiceMock{}),
		Admin:     NewAdminHandler(f.sweeps, f.batches),
	}, tokenTable{
		"nurse":  nurseClaims,
		"client": clientClaims,
		"admin":  adminClaims,
	})
	return f
}

func (f *routerFixture) do(method, path, token string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	f.engine.ServeHTTP(rec, req)
	return rec
}

func TestRouterRoleGates(t *testing.T) {
	f := newRouterFixture()

	cases := []struct {
		method string
		path   string
		token  string
		status int
	}{
		{http.MethodGet, "/api/v1/timecards", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/timecards", "bogus", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/timecards", "nurse", http.StatusOK},
		{http.MethodPost, "/api/v1/timecards/tc-1/approve", "nurse", http.StatusForbidden},
		{http.MethodPost, "/api/v1/timecards/tc-1/approve", "admin", http.StatusForbidden},
		{http.MethodPost, "/api/v1/timecards/tc-1/approve", "client", http.StatusOK},
		{http.MethodPost, "/api/v1/timecards/tc-1/pay", "client", http.StatusForbidden},
		{http.MethodPost, "/api/v1/timecards/tc-1/pay", "admin", http.StatusOK},
		{http.MethodGet, "/api/v1/timecards/statement?weekStart=2026-10-12", "client", http.StatusOK},
		{http.MethodGet, "/api/v1/timecards/tc-1/earnings", "admin", http.StatusOK},
		{http.MethodPost, "/api/v1/disputes/d-1/resolve", "client", http.StatusForbidden},
		{http.MethodPost, "/api/v1/admin/auto-approvals/sweep", "nurse", http.StatusForbidden},
	}
	for _, tc := range cases {
		rec := f.do(tc.method, tc.path, tc.token)
		assert.Equal(t, tc.status, rec.Code, "%s %s as %q", tc.method, tc.path, tc.token)
	}
}

func TestRouterAdminEndpoints(t *testing.T) {
	f := newRouterFixture()

	rec := f.do(http.MethodPost, "/api/v1/admin/auto-approvals/sweep", "admin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.sweeps.runs)

	var envelope struct {
		Data dto.SweepResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 2, envelope.Data.Affected)

	rec = f.do(http.MethodPost, "/api/v1/admin/payouts/run?limit=10", "admin")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 10, f.batches.limit)
	assert.Contains(t, rec.Body.String(), `"queued":4`)
}

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	last := time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)
	healthy := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"postgres": func(ctx context.Context) error { return nil },
	}, func() time.Time { return last })

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	healthy.Ready(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2026-10-12T08:00:00Z")

	degraded := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	}, nil)
	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	degraded.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	degraded.Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, c.Writer.Status())
}
