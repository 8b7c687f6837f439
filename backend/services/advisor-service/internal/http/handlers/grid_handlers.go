package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"smartcharge/backend/services/advisor-service/internal/models"
	"smartcharge/backend/services/advisor-service/internal/service"
)

// GridConditions reads and replaces the grid snapshot.
type GridConditions interface {
	GridConditions(ctx context.Context) models.GridConditions
	UpdateGridConditions(ctx context.Context, conditions models.GridConditions) (models.GridConditions, error)
}

// GridHandlers serves /grid/conditions.
type GridHandlers struct {
	svc    GridConditions
	logger *zap.Logger
}

// NewGridHandlers builds handler set.
func NewGridHandlers(svc GridConditions, logger *zap.Logger) *GridHandlers {
	return &GridHandlers{svc: svc, logger: logger}
}

// Get handles GET /grid/conditions.
func (h *GridHandlers) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.GridConditions(r.Context()))
}

// Put handles PUT /grid/conditions.
func (h *GridHandlers) Put(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req models.GridConditions
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	saved, err := h.svc.UpdateGridConditions(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, saved)
	case errors.Is(err, service.ErrInvalidGridConditions):
		writeError(w, http.StatusBadRequest, "price and availability are required")
	case errors.Is(err, service.ErrGridStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "grid store is not configured")
	default:
		h.logger.Error("update grid conditions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update grid conditions")
	}
}
