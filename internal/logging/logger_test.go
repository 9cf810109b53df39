package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithFields_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, false)

	logger.WithFields(map[string]any{"user_id": 42}).Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, float64(42), entry["user_id"])
}

func TestProductionLoggerDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, false)

	logger.Debug("noise")

	assert.Empty(t, buf.String())
}

func TestGetLoggerFromContext_Fallback(t *testing.T) {
	assert.NotNil(t, GetLoggerFromContext(context.Background()))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, false)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
		GetLoggerFromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var inner, done map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &inner))
	require.NoError(t, json.Unmarshal(lines[1], &done))

	assert.Equal(t, "/missing", inner["path"])
	assert.NotEmpty(t, inner["request_id"])
	assert.Equal(t, "WARN", done["level"])
	assert.Equal(t, float64(http.StatusNotFound), done["status"])
}
