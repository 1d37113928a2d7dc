package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"trivia-quiz/internal/metrics"
)

func NewRouter(api *API, log logrus.FieldLogger) http.Handler {
	return NewRouterWithMetrics(api, log, nil)
}

// NewRouterWithMetrics also serves GET /metrics and records per-route
// request metrics when m is not nil.
func NewRouterWithMetrics(api *API, log logrus.FieldLogger, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	if m != nil {
		r.Use(m.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Mount("/session", Routes(api))
	r.Get("/history", api.HandleHistory)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	return r
}

func Routes(api *API) http.Handler {
	r := chi.NewRouter()

	r.Get("/", api.HandleSession)
	r.Post("/answer", api.HandleAnswer)
	r.Post("/new", api.HandleNew)
	r.Post("/suspend", api.HandleSuspend)
	r.Post("/resume", api.HandleResume)
	return r
}
