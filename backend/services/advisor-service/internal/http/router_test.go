package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"smartcharge/backend/services/advisor-service/internal/advisory"
	"smartcharge/backend/services/advisor-service/internal/http/handlers"
	"smartcharge/backend/services/advisor-service/internal/http/middleware"
	"smartcharge/backend/services/advisor-service/internal/models"
	"smartcharge/backend/services/advisor-service/internal/service"
)

const routerSecret = "router-secret-0123456789"

func newTestRouter(t *testing.T, answer string, withAuth bool) (http.Handler, *int) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	calls := 0
	inv := advisory.InvokerFunc(func(context.Context, string, *advisory.Schema) (json.RawMessage, error) {
		calls++
		return json.RawMessage(answer), nil
	})

	patterns, err := advisory.NewPatternAnalysis(inv, logger)
	require.NoError(t, err)
	recommendation, err := advisory.NewRecommendation(inv, logger)
	require.NoError(t, err)
	svc := service.NewAdvisorService(patterns, recommendation, nil, nil, service.Options{
		DefaultGrid: models.GridConditions{PriceTier: models.PriceTierOffPeak, Availability: "high"},
	}, logger)

	var auth func(http.Handler) http.Handler
	if withAuth {
		auth = middleware.AuthMiddleware(routerSecret)
	}
	router := NewRouter(RouterDeps{
		AdvisoryHandlers: handlers.NewAdvisoryHandlers(svc, logger),
		GridHandlers:     handlers.NewGridHandlers(svc, logger),
		HealthHandler:    handlers.NewHealthHandler("test-model"),
	}, auth)

	server := NewServer(":0", router, logger,
		middleware.RequestIDMiddleware(),
		middleware.LoggingMiddleware(logger),
		middleware.RecoveryMiddleware(logger),
	)
	return server.Handler(), &calls
}

func TestRouterPatternAnalysisEndToEnd(t *testing.T) {
	h, calls := newTestRouter(t, `{"peakUsageTimes":["18:00-20:00"],"averageChargingDuration":62.5,"predictedOverloadRisk":false,"suggestedChargingSchedule":"Spread sessions."}`, false)

	req := httptest.NewRequest(http.MethodPost, "/advisory/charging-patterns",
		strings.NewReader(`{"stationId":"SC-001","startDate":"2024-01-01T00:00:00Z","endDate":"2024-01-31T23:59:59Z"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, 1, *calls)

	var res advisory.PatternAnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 62.5, res.AverageChargingDuration)
}

func TestRouterRejectsInvalidInputWithoutModelCall(t *testing.T) {
	h, calls := newTestRouter(t, `{}`, false)

	req := httptest.NewRequest(http.MethodPost, "/advisory/recommendations",
		strings.NewReader(`{"userId":"","recentChargingSessions":"[]","currentGridConditions":"{}"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, *calls)
	assert.Contains(t, rec.Body.String(), `"path":"userId"`)
}

func TestRouterMethodNotAllowed(t *testing.T) {
	h, _ := newTestRouter(t, `{}`, true)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/advisory/charging-patterns", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/grid/conditions", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, PUT", rec.Header().Get("Allow"))
}

func TestRouterAuthenticatedRoutes(t *testing.T) {
	h, calls := newTestRouter(t, `{"recommendation":"Charge after midnight.","confidenceScore":0.75}`, true)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/advisory/recommendations/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": float64(7),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(routerSecret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/advisory/recommendations/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"recommendation":"Charge after midnight.","confidenceScore":0.75}`, rec.Body.String())
	assert.Equal(t, 1, *calls)

	req = httptest.NewRequest(http.MethodGet, "/grid/conditions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"price":"off-peak","availability":"high"}`, rec.Body.String())
}

func TestRouterWithoutAuthOmitsIdentityRoutes(t *testing.T) {
	h, _ := newTestRouter(t, `{}`, false)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/grid/conditions", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
