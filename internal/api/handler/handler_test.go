package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qabulxona/backend/internal/models"
	"qabulxona/backend/internal/report"
)

const (
	secret        = "test-secret"
	adminID int64 = 42
)

type stubDataset struct {
	rows []report.Row
	err  error
}

func (s stubDataset) GetComplaintDataset(context.Context) ([]report.Row, error) { return s.rows, s.err }

type stubLister struct{ complaints []models.Complaint }

func (s stubLister) ListAll(context.Context) ([]models.Complaint, error) { return s.complaints, nil }

func newTestHandler() *Handler {
	gin.SetMode(gin.TestMode)
	h := NewHandler(secret, func(id int64) bool { return id == adminID }, zerolog.Nop())
	h.Dataset = stubDataset{rows: []report.Row{{ID: "c1", Status: string(models.StatusPending)}}}
	h.Complaints = stubLister{complaints: []models.Complaint{{ID: "c1", SubmitterID: 7, Status: models.StatusPending}}}
	h.Exporter = report.NewCSVExporter(time.UTC)
	return h
}

func do(t *testing.T, h *Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	h := newTestHandler()
	w := do(t, h, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	h.Health = func(context.Context) error { return errors.New("db down") }
	w = do(t, h, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsExposed(t *testing.T) {
	w := do(t, newTestHandler(), "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestComplaintsRequireToken(t *testing.T) {
	w := do(t, newTestHandler(), "/api/complaints", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, newTestHandler(), "/api/complaints", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestComplaintsRejectNonAdmin(t *testing.T) {
	token, err := GenerateToken([]byte(secret), 7, time.Hour)
	require.NoError(t, err)

	w := do(t, newTestHandler(), "/api/complaints", token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestComplaintsRejectExpiredToken(t *testing.T) {
	token, err := GenerateToken([]byte(secret), adminID, -time.Minute)
	require.NoError(t, err)

	w := do(t, newTestHandler(), "/api/complaints", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestComplaintsRejectForeignSecret(t *testing.T) {
	token, err := GenerateToken([]byte("other"), adminID, time.Hour)
	require.NoError(t, err)

	w := do(t, newTestHandler(), "/api/complaints", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListComplaints(t *testing.T) {
	token, err := GenerateToken([]byte(secret), adminID, time.Hour)
	require.NoError(t, err)

	w := do(t, newTestHandler(), "/api/complaints", token)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Count      int          `json:"count"`
		Complaints []report.Row `json:"complaints"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "c1", body.Complaints[0].ID)
}

func TestListComplaintsFailure(t *testing.T) {
	h := newTestHandler()
	h.Dataset = stubDataset{err: errors.New("db down")}
	token, err := GenerateToken([]byte(secret), adminID, time.Hour)
	require.NoError(t, err)

	w := do(t, h, "/api/complaints?token="+token, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestExportComplaints(t *testing.T) {
	token, err := GenerateToken([]byte(secret), adminID, time.Hour)
	require.NoError(t, err)

	w := do(t, newTestHandler(), "/api/complaints/export", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment"))
	assert.Contains(t, w.Body.String(), "c1")
}

func TestEmptySecretDisablesAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler("", nil, zerolog.Nop())
	w := do(t, h, "/api/complaints", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestParseTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken([]byte(secret), adminID, time.Hour)
	require.NoError(t, err)

	id, err := ParseToken([]byte(secret), token)
	require.NoError(t, err)
	assert.Equal(t, adminID, id)

	_, err = GenerateToken(nil, adminID, time.Hour)
	assert.Error(t, err)
}
