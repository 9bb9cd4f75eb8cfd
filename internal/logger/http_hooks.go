package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/bilyardvmetro/quill/internal/logctx"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController and the websocket upgrader reach the
// underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// HTTPHooks logs every request around the handler and puts a request scoped
// logger into the context.
func HTTPHooks(log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/ws/") {
			// hijacked connections cannot go through the recorder
			ctx := logctx.WithRequestID(r.Context(), log, uuid.NewString())
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := logctx.WithRequestID(r.Context(), log, reqID)
		l := logctx.From(ctx, log)

		l.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request started")

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		event := l.Info()
		if rec.status >= http.StatusInternalServerError {
			event = l.Error()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request finished")
	})
}
