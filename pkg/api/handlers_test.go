package api

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optoutdao/engine/pkg/engine"
)

const owner = "owner"

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	e, err := engine.New(owner, engine.DefaultParams())
	require.NoError(t, err)
	return NewServer(e), e
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSubmitAndGetBroker(t *testing.T) {
	s, _ := newTestServer(t)
	mux := s.Routes()

	rec := doJSON(t, mux, http.MethodPost, "/v1/brokers",
		`{"caller":"u1","name":"Acme","website":"https://acme.test","instructions":"email"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"broker_id":1`)

	rec = doJSON(t, mux, http.MethodGet, "/v1/brokers/get?id=1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Acme"`)

	rec = doJSON(t, mux, http.MethodGet, "/v1/brokers", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	s, e := newTestServer(t)
	mux := s.Routes()

	// validation → 400
	rec := doJSON(t, mux, http.MethodPost, "/v1/brokers",
		`{"caller":"u1","name":"","website":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	// authorization → 403
	rec = doJSON(t, mux, http.MethodPost, "/v1/brokers/verify",
		`{"caller":"mallory","broker_id":1}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// not found → 404
	rec = doJSON(t, mux, http.MethodGet, "/v1/tasks/get?id=99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// precondition → 409
	rec = doJSON(t, mux, http.MethodPost, "/v1/tasks",
		`{"caller":"u1","broker_id":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// halted → 503
	require.NoError(t, e.Pause(owner))
	rec = doJSON(t, mux, http.MethodPost, "/v1/brokers",
		`{"caller":"u1","name":"X","website":"https://x.test"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLifecycleOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)
	mux := s.Routes()
	p := engine.DefaultParams()

	codes := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodPost, "/v1/brokers", `{"caller":"u1","name":"Acme","website":"https://acme.test"}`, 201},
		{http.MethodPost, "/v1/brokers/verify", `{"caller":"owner","broker_id":1}`, 200},
		{http.MethodPost, "/v1/credit/mint", `{"caller":"owner","account":"p1","amount":` + itoa(int64(p.MinProcessorStake)) + `}`, 200},
		{http.MethodPost, "/v1/processors", `{"caller":"p1","stake":` + itoa(int64(p.MinProcessorStake)) + `,"description":"d"}`, 201},
		{http.MethodPost, "/v1/credit/mint", `{"caller":"owner","account":"u2","amount":` + itoa(int64(p.MinUserStake)) + `}`, 200},
		{http.MethodPost, "/v1/stakes", `{"caller":"u2","amount":` + itoa(int64(p.MinUserStake)) + `,"processors":["p1"]}`, 201},
		{http.MethodPost, "/v1/tasks", `{"caller":"u2","broker_id":1}`, 201},
		{http.MethodPost, "/v1/tasks/complete", `{"caller":"p1","task_id":1,"evidence":"proof-1"}`, 200},
	}
	for _, c := range codes {
		rec := doJSON(t, mux, c.method, c.path, c.body)
		require.Equal(t, c.want, rec.Code, "%s %s: %s", c.method, c.path, rec.Body.String())
	}

	rec := doJSON(t, mux, http.MethodGet, "/v1/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_tasks_completed":1`)

	rec = doJSON(t, mux, http.MethodGet, "/v1/events", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"chain":true`)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)
	mux := s.Routes()

	rec := doJSON(t, mux, http.MethodDelete, "/v1/brokers", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	rec = doJSON(t, mux, http.MethodPost, "/v1/stats", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestIdempotencyReplay(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler(nil, NewIdempotencyStore(time.Minute))

	body := `{"caller":"u1","name":"Acme","website":"https://acme.test"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/brokers", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "k-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	first := rec.Body.String()

	// Same key replays the cached response instead of submitting again.
	req = httptest.NewRequest(http.MethodPost, "/v1/brokers", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "k-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, first, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/v1/stats", "")
	assert.Contains(t, rec.Body.String(), `"total_brokers":1`)
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler(NewGlobalRateLimiter(1, 1), nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRequestID(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler(nil, nil)

	rec := doJSON(t, h, http.MethodGet, "/v1/stats", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
