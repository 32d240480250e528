package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonoseba/portal/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api/", func() string { return "tok-123" }, 2*time.Second,
		WithRetryDelay(time.Millisecond))
}

func TestClientAttachesBearerToken(t *testing.T) {
	var gotAuth, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, c.Get(context.Background(), "/services", nil, &struct{}{}))
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "/api/services", gotPath)
}

func TestClientOmitsHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, time.Second)
	require.NoError(t, c.Put(context.Background(), "/x", nil, nil))
	assert.Empty(t, gotAuth)
}

func TestClientUnauthorizedReturnsAuthError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"token expired"}`))
	})

	err := c.Get(context.Background(), "/notifications", nil, nil)
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Contains(t, err.Error(), "token expired")
}

func TestClientStatusErrorCarriesMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid status"}`))
	})

	err := c.Put(context.Background(), "/applications/1/status", map[string]string{"status": "X"}, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, "invalid status", se.Message)
	assert.False(t, IsAuthError(err))
}

func TestClientRetriesGetOnce(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"content":[],"pageInfo":{"page":1}}`))
	})

	var page model.Page[model.Service]
	require.NoError(t, c.Get(context.Background(), "/services", nil, &page))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientGivesUpAfterSingleRetry(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	err := c.Get(context.Background(), "/services", nil, nil)
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientDoesNotRetryWrites(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	require.Error(t, c.Put(context.Background(), "/notifications/1/read", nil, nil))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientSendsJSONBody(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.Post(context.Background(), "/x", map[string]any{"a": 1}, nil))
	assert.Equal(t, float64(1), got["a"])
}

func TestClientHonorsContextDeadline(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Put(ctx, "/notifications/mark-all-read", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
