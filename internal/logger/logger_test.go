package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bilyardvmetro/quill/internal/logctx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("loud"))
}

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", "json")
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "shown", got[0]["message"])
	assert.Contains(t, got[0], "time")
}

func TestHTTPHooksLogsStatusAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info", "json")

	var fromCtx zerolog.Logger
	h := HTTPHooks(l, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = logctx.From(r.Context(), zerolog.Nop())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)

	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "request finished", got[0]["message"])
	assert.Equal(t, "req-1", got[0]["request_id"])
	assert.EqualValues(t, http.StatusTeapot, got[0]["status"])
	assert.Equal(t, "info", got[0]["level"])

	buf.Reset()
	fromCtx.Info().Msg("inside")
	assert.Equal(t, "req-1", lines(t, &buf)[0]["request_id"])
}

func TestHTTPHooksServerErrorsLogAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	h := HTTPHooks(New(&buf, "info", "json"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/posts", nil))

	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "error", got[0]["level"])
}

func TestHTTPHooksSkipsRecorderForWebsockets(t *testing.T) {
	var buf bytes.Buffer
	var sawRecorder bool
	h := HTTPHooks(New(&buf, "info", "json"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawRecorder = w.(*statusRecorder)
		w.WriteHeader(http.StatusOK)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/ws/comments/p1", nil))

	assert.False(t, sawRecorder)
	assert.Empty(t, strings.TrimSpace(buf.String()))
}
