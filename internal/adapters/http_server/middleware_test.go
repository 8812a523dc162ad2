package httpserver_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	server "business_reviews/internal/adapters/http_server"
)

func loggedRouter(buf *bytes.Buffer) http.Handler {
	m := chi.NewRouter()
	m.Use(server.Logger(zerolog.New(buf)))
	m.Use(server.Auth([]byte(secret)))
	m.Post("/v1/businesses/{address}/reviews", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	return m
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var v map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &v), buf.String())
	return v
}

func TestLogger_NamesTheCaller(t *testing.T) {
	var buf bytes.Buffer
	h := loggedRouter(&buf)

	rr := do(t, h, http.MethodPost, "/v1/businesses/biz/reviews", "{}", token(t, "alice", secret))
	require.Equal(t, http.StatusCreated, rr.Code)

	line := lastLine(t, &buf)
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "alice", line["caller"])
	assert.Equal(t, "/v1/businesses/{address}/reviews", line["route"])
	assert.Equal(t, float64(http.StatusCreated), line["status"])
	assert.NotContains(t, line, "auth_error")
}

func TestLogger_RejectedToken(t *testing.T) {
	var buf bytes.Buffer
	h := loggedRouter(&buf)

	rr := do(t, h, http.MethodPost, "/v1/businesses/biz/reviews", "{}", token(t, "alice", "other-secret"))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	line := lastLine(t, &buf)
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "invalid or expired token", line["auth_error"])
	assert.NotContains(t, line, "caller")
	// the router never matched, so the raw path is logged
	assert.Equal(t, "/v1/businesses/biz/reviews", line["route"])
}

func TestLogger_Anonymous(t *testing.T) {
	var buf bytes.Buffer
	h := loggedRouter(&buf)

	do(t, h, http.MethodPost, "/v1/businesses/biz/reviews", "{}", "")

	line := lastLine(t, &buf)
	assert.NotContains(t, line, "caller")
	assert.NotContains(t, line, "auth_error")
}
