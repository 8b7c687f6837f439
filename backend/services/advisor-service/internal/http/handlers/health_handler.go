package handlers

import (
	"net/http"
)

// NewHealthHandler returns GET /health handler.
func NewHealthHandler(model string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "model": model})
	}
}
