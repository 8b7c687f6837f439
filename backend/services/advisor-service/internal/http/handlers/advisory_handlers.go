package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"smartcharge/backend/services/advisor-service/internal/advisory"
	"smartcharge/backend/services/advisor-service/internal/http/middleware"
	"smartcharge/backend/services/advisor-service/internal/service"
)

// Advisor is the subset of the advisor service used over HTTP.
type Advisor interface {
	AnalyzePatterns(ctx context.Context, input any) (advisory.PatternAnalysisResult, error)
	Recommend(ctx context.Context, input any) (advisory.RecommendationResult, error)
	RecommendForUser(ctx context.Context, userID string) (advisory.RecommendationResult, error)
}

// AdvisoryHandlers serves the advisory functions.
type AdvisoryHandlers struct {
	svc    Advisor
	logger *zap.Logger
}

// NewAdvisoryHandlers builds handler set.
func NewAdvisoryHandlers(svc Advisor, logger *zap.Logger) *AdvisoryHandlers {
	return &AdvisoryHandlers{svc: svc, logger: logger}
}

type errorResponse struct {
	Error      string               `json:"error"`
	Violations []advisory.Violation `json:"violations,omitempty"`
}

// AnalyzePatterns handles POST /advisory/charging-patterns.
func (h *AdvisoryHandlers) AnalyzePatterns(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		h.writeBodyError(w, err)
		return
	}
	result, err := h.svc.AnalyzePatterns(r.Context(), body)
	if err != nil {
		h.writeAdvisoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Recommend handles POST /advisory/recommendations.
func (h *AdvisoryHandlers) Recommend(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		h.writeBodyError(w, err)
		return
	}
	result, err := h.svc.Recommend(r.Context(), body)
	if err != nil {
		h.writeAdvisoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RecommendMe handles POST /advisory/recommendations/me for the authenticated user.
func (h *AdvisoryHandlers) RecommendMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	result, err := h.svc.RecommendForUser(r.Context(), userID)
	if err != nil {
		h.writeAdvisoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *AdvisoryHandlers) writeBodyError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, "failed to read request body")
}

func (h *AdvisoryHandlers) writeAdvisoryError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *advisory.ValidationError
	var contractErr *advisory.OutputContractError
	var remoteErr *advisory.RemoteCallError

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:      advisory.Describe(err),
			Violations: validationErr.Violations,
		})
	case errors.As(err, &contractErr):
		writeError(w, http.StatusBadGateway, advisory.Describe(err))
	case errors.As(err, &remoteErr):
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, advisory.Describe(err))
	case errors.Is(err, service.ErrUserRequired):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		h.logger.Error("advisory request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to produce advice")
	}
}
