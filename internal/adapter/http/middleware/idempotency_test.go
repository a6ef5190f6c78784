package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bolsoapp/bolso/internal/adapter/http/middleware"
)

type fakeIdempotencyStore struct {
	entries map[string][]byte
	failing bool
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{entries: make(map[string][]byte)}
}

func (s *fakeIdempotencyStore) CheckAndSet(ctx context.Context, key string, ttl time.Duration) (bool, []byte, error) {
	if s.failing {
		return false, nil, errors.New("store down")
	}
	if cached, ok := s.entries[key]; ok {
		return true, cached, nil
	}
	s.entries[key] = []byte("processing")
	return false, nil, nil
}

func (s *fakeIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	s.entries[key] = response
	return nil
}

func countingHandler(calls *int, status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
}

func TestIdempotency_ReplayReturnsCachedResponse(t *testing.T) {
	store := newFakeIdempotencyStore()
	m := middleware.NewIdempotencyMiddleware(store, 0)

	var calls int
	h := m.Wrap(countingHandler(&calls, http.StatusOK, `{"ok":true}`))

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sync/upload", nil)
	req.Header.Set(middleware.IdempotencyKeyHeader, "key-1")
	h.ServeHTTP(first, req)

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Empty(t, first.Header().Get("X-Idempotency-Replay"))

	replay := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/sync/upload", nil)
	req.Header.Set(middleware.IdempotencyKeyHeader, "key-1")
	h.ServeHTTP(replay, req)

	assert.Equal(t, 1, calls, "handler must not run again on replay")
	assert.Equal(t, `{"ok":true}`, replay.Body.String())
	assert.Equal(t, "true", replay.Header().Get("X-Idempotency-Replay"))
}

func TestIdempotency_FailedResponsesAreNotRecorded(t *testing.T) {
	store := newFakeIdempotencyStore()
	m := middleware.NewIdempotencyMiddleware(store, 0)

	var calls int
	h := m.Wrap(countingHandler(&calls, http.StatusInternalServerError, "boom"))

	req := httptest.NewRequest(http.MethodPost, "/sync/upload", nil)
	req.Header.Set(middleware.IdempotencyKeyHeader, "key-err")
	h.ServeHTTP(httptest.NewRecorder(), req)

	// Only the processing marker remains, so the next attempt runs the
	// handler again instead of replaying the failure.
	assert.Equal(t, "processing", string(store.entries["key-err"]))
}

func TestIdempotency_MissingKeyBypasses(t *testing.T) {
	store := newFakeIdempotencyStore()
	m := middleware.NewIdempotencyMiddleware(store, 0)

	var calls int
	h := m.Wrap(countingHandler(&calls, http.StatusOK, "ok"))

	for range 2 {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/sync/upload", nil))
	}

	assert.Equal(t, 2, calls)
	assert.Empty(t, store.entries)
}

func TestIdempotency_GetBypasses(t *testing.T) {
	store := newFakeIdempotencyStore()
	m := middleware.NewIdempotencyMiddleware(store, 0)

	var calls int
	h := m.Wrap(countingHandler(&calls, http.StatusOK, "ok"))

	req := httptest.NewRequest(http.MethodGet, "/sync/download", nil)
	req.Header.Set(middleware.IdempotencyKeyHeader, "key-get")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1, calls)
	assert.Empty(t, store.entries)
}

func TestIdempotency_StoreFailureIsServerError(t *testing.T) {
	store := newFakeIdempotencyStore()
	store.failing = true
	m := middleware.NewIdempotencyMiddleware(store, 0)

	var calls int
	h := m.Wrap(countingHandler(&calls, http.StatusOK, "ok"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sync/upload", nil)
	req.Header.Set(middleware.IdempotencyKeyHeader, "key-down")
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, calls)
}
