package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/shift-ledger-api/internal/dto"
	"github.com/noah-isme/shift-ledger-api/internal/middleware"
	"github.com/noah-isme/shift-ledger-api/internal/models"
	appErrors "github.com/noah-isme/shift-ledger-api/pkg/errors"
)

type timecardServiceMock struct {
	submitReq   dto.SubmitTimecardRequest
	lastQuery   dto.TimecardQuery
	rejectReq   dto.RejectTimecardRequest
	paidRef     string
	markPaidHit bool
	actor       *models.JWTClaims
	err         error
}

func (m *timecardServiceMock) Submit(ctx context.Context, req dto.SubmitTimecardRequest, actor *models.JWTClaims) (*models.Timecard, error) {
	m.submitReq, m.actor = req, actor
	if m.err != nil {
		return nil, m.err
	}
	return &models.Timecard{ID: "tc-1", Status: models.TimecardStatusSubmitted}, nil
}

func (m *timecardServiceMock) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Timecard, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Timecard{ID: id}, nil
}

func (m *timecardServiceMock) List(ctx context.Context, query dto.TimecardQuery, actor *models.JWTClaims) ([]models.Timecard, *models.Pagination, error) {
	m.lastQuery = query
	if m.err != nil {
		return nil, nil, m.err
	}
	return []models.Timecard{{ID: "tc-1"}}, &models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: 1}, nil
}

func (m *timecardServiceMock) Approve(ctx context.Context, id string, actor *models.JWTClaims) (*models.Timecard, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Timecard{ID: id, Status: models.TimecardStatusApproved}, nil
}

func (m *timecardServiceMock) Reject(ctx context.Context, id string, req dto.RejectTimecardRequest, actor *models.JWTClaims) (*models.Timecard, error) {
	m.rejectReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.Timecard{ID: id, Status: models.TimecardStatusRejected}, nil
}

func (m *timecardServiceMock) MarkPaid(ctx context.Context, id, reference string) (*models.Timecard, error) {
	m.markPaidHit, m.paidRef = true, reference
	if m.err != nil {
		return nil, m.err
	}
	return &models.Timecard{ID: id, Status: models.TimecardStatusPaid}, nil
}

func (m *timecardServiceMock) Earnings(ctx context.Context, id string, actor *models.JWTClaims) (*models.Earnings, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Earnings{Gross: decimal.RequireFromString("100")}, nil
}

type settlerMock struct {
	called bool
	err    error
}

func (m *settlerMock) Settle(ctx context.Context, timecardID string) (*models.Payout, error) {
	m.called = true
	if m.err != nil {
		return nil, m.err
	}
	return &models.Payout{TimecardID: timecardID, Reference: "PO-1"}, nil
}

type statementMock struct {
	query dto.StatementQuery
}

func (m *statementMock) Weekly(ctx context.Context, query dto.StatementQuery, actor *models.JWTClaims) (*dto.StatementFile, error) {
	m.query = query
	return &dto.StatementFile{Filename: "statement-2026-10-12.csv", ContentType: "text/csv", Body: []byte("date\n")}, nil
}

func newTimecardContext(method, target string, body []byte, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

var (
	nurseClaims  = &models.JWTClaims{UserID: "nurse-1", Role: models.RoleProvider}
	clientClaims = &models.JWTClaims{UserID: "client-1", Role: models.RoleClient}
	adminClaims  = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
)

func TestTimecardHandlerSubmit(t *testing.T) {
	svc := &timecardServiceMock{}
	handler := NewTimecardHandler(svc, &settlerMock{}, &statementMock{})

	payload, _ := json.Marshal(map[string]interface{}{
		"clientId":     "client-1",
		"jobCode":      "JOB-1",
		"shiftDate":    "2026-10-12",
		"startTime":    "08:07",
		"endTime":      "16:53",
		"breakMinutes": 30,
		"hourlyRate":   "42.50",
	})
	c, rec := newTimecardContext(http.MethodPost, "/timecards", payload, nurseClaims)
	handler.Submit(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "08:07", svc.submitReq.StartTime)
	assert.Equal(t, "42.5", svc.submitReq.HourlyRate.String())
	assert.Equal(t, "nurse-1", svc.actor.UserID)
}

func TestTimecardHandlerSubmitInvalidBody(t *testing.T) {
	handler := NewTimecardHandler(&timecardServiceMock{}, nil, nil)
	c, rec := newTimecardContext(http.MethodPost, "/timecards", []byte(`{"jobCode":`), nurseClaims)
	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimecardHandlerSubmitInvalidDuration(t *testing.T) {
	svc := &timecardServiceMock{err: appErrors.ErrInvalidDuration}
	handler := NewTimecardHandler(svc, nil, nil)
	c, rec := newTimecardContext(http.MethodPost, "/timecards", []byte(`{"startTime":"09:00"}`), nurseClaims)
	handler.Submit(c)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "INVALID_DURATION", envelope.Error.Code)
}

func TestTimecardHandlerListParsesFilters(t *testing.T) {
	svc := &timecardServiceMock{}
	handler := NewTimecardHandler(svc, nil, nil)
	c, rec := newTimecardContext(http.MethodGet, "/timecards?status=submitted,approved&from=2026-10-12&page=2&limit=5", nil, clientClaims)
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.TimecardStatus{models.TimecardStatusSubmitted, models.TimecardStatusApproved}, svc.lastQuery.Status)
	require.NotNil(t, svc.lastQuery.From)
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), *svc.lastQuery.From)
	assert.Nil(t, svc.lastQuery.To)
	assert.Equal(t, 2, svc.lastQuery.Page)
	assert.Equal(t, 5, svc.lastQuery.PageSize)

	c, rec = newTimecardContext(http.MethodGet, "/timecards?to=12-10-2026", nil, clientClaims)
	handler.List(c)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimecardHandlerApproveConflict(t *testing.T) {
	svc := &timecardServiceMock{err: appErrors.Clone(appErrors.ErrConflict, "cannot approve: already AUTO_APPROVED")}
	handler := NewTimecardHandler(svc, nil, nil)
	c, rec := newTimecardContext(http.MethodPost, "/timecards/tc-1/approve", nil, clientClaims)
	c.Params = gin.Params{{Key: "id", Value: "tc-1"}}
	handler.Approve(c)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already AUTO_APPROVED")
}

func TestTimecardHandlerReject(t *testing.T) {
	svc := &timecardServiceMock{}
	handler := NewTimecardHandler(svc, nil, nil)
	c, rec := newTimecardContext(http.MethodPost, "/timecards/tc-1/reject", []byte(`{"reason":"never showed"}`), clientClaims)
	c.Params = gin.Params{{Key: "id", Value: "tc-1"}}
	handler.Reject(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "never showed", svc.rejectReq.Reason)
}

func TestTimecardHandlerPayRoutes(t *testing.T) {
	svc := &timecardServiceMock{}
	settler := &settlerMock{}
	handler := NewTimecardHandler(svc, settler, nil)

	c, rec := newTimecardContext(http.MethodPost, "/timecards/tc-1/pay", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "tc-1"}}
	handler.Pay(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, settler.called)
	assert.False(t, svc.markPaidHit)

	c, rec = newTimecardContext(http.MethodPost, "/timecards/tc-2/pay", []byte(`{"reference":"WIRE-7"}`), adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "tc-2"}}
	handler.Pay(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.markPaidHit)
	assert.Equal(t, "WIRE-7", svc.paidRef)

	settler.err = appErrors.ErrUnavailable
	c, rec = newTimecardContext(http.MethodPost, "/timecards/tc-3/pay", nil, adminClaims)
	handler.Pay(c)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTimecardHandlerStatement(t *testing.T) {
	statements := &statementMock{}
	handler := NewTimecardHandler(&timecardServiceMock{}, nil, statements)

	c, rec := newTimecardContext(http.MethodGet, "/timecards/statement?weekStart=2026-10-14&format=pdf", nil, nurseClaims)
	handler.Statement(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pdf", statements.query.Format)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "statement-2026-10-12.csv")

	c, rec = newTimecardContext(http.MethodGet, "/timecards/statement", nil, nurseClaims)
	handler.Statement(c)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimecardHandlerPayBindsChunkedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &timecardServiceMock{}
	settler := &settlerMock{}
	handler := NewTimecardHandler(svc, settler, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(http.MethodPost, "/timecards/tc-1/pay", io.MultiReader(strings.NewReader(`{"reference":"WIRE-9"}`)))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, int64(-1), req.ContentLength)
	c.Request = req
	c.Set(middleware.ContextUserKey, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "tc-1"}}

	handler.Pay(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.markPaidHit)
	assert.Equal(t, "WIRE-9", svc.paidRef)
	assert.False(t, settler.called)
}
