package httpapi

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"trivia-quiz/internal/logging"
)

const maxLoggedBody = 512

// statusRecorder captures what a handler wrote so the request log can
// include it. Only the first maxLogBytes of the body are kept.
type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	maxLogBytes  int
	logBody      bytes.Buffer
	truncated    bool
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if room := r.maxLogBytes - r.logBody.Len(); room > 0 {
		if len(p) > room {
			r.logBody.Write(p[:room])
			r.truncated = true
		} else {
			r.logBody.Write(p)
		}
	} else if len(p) > 0 {
		r.truncated = true
	}

	n, err := r.ResponseWriter.Write(p)
	r.bytesWritten += n
	return n, err
}

// requestLogger stores a request-scoped logger in the context and logs one
// line per request. Error bodies are included at debug level.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
			})

			recorder := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				maxLogBytes:    maxLoggedBody,
			}
			next.ServeHTTP(recorder, r.WithContext(logging.NewContext(r.Context(), entry)))

			done := entry.WithFields(logrus.Fields{
				"status":   recorder.statusCode,
				"bytes":    recorder.bytesWritten,
				"duration": time.Since(start),
			})
			if recorder.statusCode >= http.StatusBadRequest {
				done.WithFields(logrus.Fields{
					"body":      recorder.logBody.String(),
					"truncated": recorder.truncated,
				}).Debug("request failed")
			}
			done.Info("request handled")
		})
	}
}
