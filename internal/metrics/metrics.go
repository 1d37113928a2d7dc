// Package metrics exports session and HTTP counters for Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trivia-quiz/internal/quiz"
	"trivia-quiz/internal/session"
)

type Metrics struct {
	registry *prometheus.Registry

	questionsPresented prometheus.Counter
	quizzesFinished    *prometheus.CounterVec
	correctAnswers     prometheus.Histogram
	sessionErrors      *prometheus.CounterVec
	timeLeft           prometheus.Gauge
	requests           *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		questionsPresented: factory.NewCounter(prometheus.CounterOpts{
			Name: "quiz_questions_presented_total",
			Help: "Questions shown to the player",
		}),
		quizzesFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_finished_total",
			Help: "Finished quizzes",
		}, []string{"reason"}), // reason: exhausted/timeout
		correctAnswers: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "quiz_correct_ratio",
			Help:    "Share of correct answers per finished quiz",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		sessionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_session_errors_total",
			Help: "Errors reported by the session controller",
		}, []string{"kind"}),
		timeLeft: factory.NewGauge(prometheus.GaugeOpts{
			Name: "quiz_time_left_seconds",
			Help: "Time left on the running countdown",
		}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quiz_http_request_duration_seconds",
			Help:    "Time spent serving HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Renderer counts session events and forwards them to next.
func (m *Metrics) Renderer(next session.Renderer) session.Renderer {
	return &renderer{metrics: m, next: next}
}

type renderer struct {
	metrics *Metrics
	next    session.Renderer
}

var (
	_ session.Renderer     = (*renderer)(nil)
	_ session.TickObserver = (*renderer)(nil)
)

func (r *renderer) QuestionPresented(p session.Presentation) {
	r.metrics.questionsPresented.Inc()
	r.metrics.timeLeft.Set(p.Remaining.Seconds())
	r.next.QuestionPresented(p)
}

func (r *renderer) QuizFinished(score quiz.Score) {
	r.metrics.quizzesFinished.WithLabelValues(string(score.Reason)).Inc()
	if score.Total > 0 {
		r.metrics.correctAnswers.Observe(float64(score.Correct) / float64(score.Total))
	}
	r.metrics.timeLeft.Set(0)
	r.next.QuizFinished(score)
}

func (r *renderer) Error(err error) {
	r.metrics.sessionErrors.WithLabelValues(quiz.KindOf(err).String()).Inc()
	r.next.Error(err)
}

func (r *renderer) TimeLeft(remaining time.Duration) {
	r.metrics.timeLeft.Set(remaining.Seconds())
	if observer, ok := r.next.(session.TickObserver); ok {
		observer.TimeLeft(remaining)
	}
}

// Middleware records request counts and latency labelled by the chi route
// pattern, so path parameters do not explode the label set.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
