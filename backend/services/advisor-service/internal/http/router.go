package httpserver

import (
	"net/http"
	"sort"
	"strings"

	"smartcharge/backend/services/advisor-service/internal/http/handlers"
	"smartcharge/backend/services/advisor-service/internal/http/middleware"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	AdvisoryHandlers *handlers.AdvisoryHandlers
	GridHandlers     *handlers.GridHandlers
	HealthHandler    http.HandlerFunc
}

// NewRouter wires HTTP routes. Identity-bound routes are registered only when
// authMiddleware is not nil.
func NewRouter(deps RouterDeps, authMiddleware func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", method(http.MethodGet, deps.HealthHandler))

	mux.Handle("/advisory/charging-patterns", method(http.MethodPost, http.HandlerFunc(deps.AdvisoryHandlers.AnalyzePatterns)))
	mux.Handle("/advisory/recommendations", method(http.MethodPost, http.HandlerFunc(deps.AdvisoryHandlers.Recommend)))

	if authMiddleware == nil {
		return mux
	}

	authenticated := func(handler http.HandlerFunc) http.Handler {
		return middleware.Chain(handler, authMiddleware)
	}

	mux.Handle("/advisory/recommendations/me", method(http.MethodPost, authenticated(deps.AdvisoryHandlers.RecommendMe)))
	mux.Handle("/grid/conditions", methods(map[string]http.Handler{
		http.MethodGet: authenticated(deps.GridHandlers.Get),
		http.MethodPut: authenticated(deps.GridHandlers.Put),
	}))

	return mux
}

func method(expected string, handler http.Handler) http.Handler {
	return methods(map[string]http.Handler{expected: handler})
}

func methods(byMethod map[string]http.Handler) http.Handler {
	allow := make([]string, 0, len(byMethod))
	for m := range byMethod {
		allow = append(allow, m)
	}
	sort.Strings(allow)
	allowHeader := strings.Join(allow, ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := byMethod[r.Method]
		if !ok {
			w.Header().Set("Allow", allowHeader)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
