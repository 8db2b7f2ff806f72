package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/shift-ledger-api/internal/dto"
	"github.com/noah-isme/shift-ledger-api/internal/models"
	appErrors "github.com/noah-isme/shift-ledger-api/pkg/errors"
)

type disputeServiceMock struct {
	openReq    dto.OpenDisputeRequest
	resolveReq dto.ResolveDisputeRequest
	lastQuery  dto.DisputeQuery
	timecardID string
	err        error
}

func (m *disputeServiceMock) detail() *dto.DisputeDetail {
	return &dto.DisputeDetail{Dispute: &models.Dispute{ID: "d-1", Status: models.DisputeStatusOpen}}
}

func (m *disputeServiceMock) Open(ctx context.Context, timecardID string, req dto.OpenDisputeRequest, actor *models.JWTClaims) (*dto.DisputeDetail, error) {
	m.timecardID, m.openReq = timecardID, req
	if m.err != nil {
		return nil, m.err
	}
	return m.detail(), nil
}

func (m *disputeServiceMock) SubmitEvidence(ctx context.Context, id string, req dto.DisputeEvidenceRequest, actor *models.JWTClaims) (*dto.DisputeDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.detail(), nil
}

func (m *disputeServiceMock) Resolve(ctx context.Context, id string, req dto.ResolveDisputeRequest, actor *models.JWTClaims) (*dto.DisputeDetail, error) {
	m.resolveReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.detail(), nil
}

func (m *disputeServiceMock) Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.DisputeDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.detail(), nil
}

func (m *disputeServiceMock) List(ctx context.Context, query dto.DisputeQuery, actor *models.JWTClaims) ([]models.Dispute, *models.Pagination, error) {
	m.lastQuery = query
	return []models.Dispute{}, &models.Pagination{Page: 1, PageSize: 20}, m.err
}

func TestDisputeHandlerOpen(t *testing.T) {
	svc := &disputeServiceMock{}
	handler := NewDisputeHandler(svc)

	c, rec := newTimecardContext(http.MethodPost, "/timecards/tc-1/disputes", []byte(`{"reason":"hours wrong"}`), nurseClaims)
	c.Params = gin.Params{{Key: "id", Value: "tc-1"}}
	handler.Open(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "tc-1", svc.timecardID)
	assert.Equal(t, "hours wrong", svc.openReq.Reason)

	svc.err = appErrors.Clone(appErrors.ErrConflict, "timecard already has a dispute")
	c, rec = newTimecardContext(http.MethodPost, "/timecards/tc-1/disputes", []byte(`{"reason":"again"}`), nurseClaims)
	handler.Open(c)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestDisputeHandlerResolvePartial(t *testing.T) {
	svc := &disputeServiceMock{}
	handler := NewDisputeHandler(svc)

	body := []byte(`{"resolution":"PARTIAL_APPROVAL","adjustedHours":5.25,"adminNotes":"badge log"}`)
	c, rec := newTimecardContext(http.MethodPost, "/disputes/d-1/resolve", body, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "d-1"}}
	handler.Resolve(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.DisputeResolutionPartial, svc.resolveReq.Resolution)
	require.NotNil(t, svc.resolveReq.AdjustedHours)
	assert.Equal(t, "5.25", svc.resolveReq.AdjustedHours.StringFixed(2))
}

func TestDisputeHandlerResolveForbidden(t *testing.T) {
	handler := NewDisputeHandler(&disputeServiceMock{err: appErrors.ErrForbidden})
	c, rec := newTimecardContext(http.MethodPost, "/disputes/d-1/resolve", []byte(`{"resolution":"APPROVE_TIMECARD"}`), clientClaims)
	handler.Resolve(c)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDisputeHandlerEvidenceInvalidBody(t *testing.T) {
	handler := NewDisputeHandler(&disputeServiceMock{})
	c, rec := newTimecardContext(http.MethodPost, "/disputes/d-1/evidence", []byte(`[]`), clientClaims)
	handler.Evidence(c)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDisputeHandlerListFilters(t *testing.T) {
	svc := &disputeServiceMock{}
	handler := NewDisputeHandler(svc)
	c, rec := newTimecardContext(http.MethodGet, "/disputes?status=open&timecardId=tc-1", nil, adminClaims)
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.DisputeStatus{models.DisputeStatusOpen}, svc.lastQuery.Status)
	assert.Equal(t, "tc-1", svc.lastQuery.TimecardID)
}
