package slotstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestHTTPStoreList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/slots", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		_, _ = w.Write([]byte(`[
			{"id": 1, "date": "2024-05-01", "time": "09:00", "status": "available"},
			{"id": 2, "date": "2024-05-01", "time": "10:00", "status": "booked"}
		]`))
	}))
	defer srv.Close()

	store := NewHTTPStore(HTTPConfig{BaseURL: srv.URL, APIKey: "secret"}, testLogger())
	slots, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, slots, 2)
	assert.False(t, store.Prefiltered())
}

func TestHTTPStoreListErrors(t *testing.T) {
	t.Run("ServerError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		store := NewHTTPStore(HTTPConfig{BaseURL: srv.URL}, testLogger())
		_, err := store.List(context.Background())
		assert.ErrorIs(t, err, ErrNetwork)
	})

	t.Run("Unreachable", func(t *testing.T) {
		store := NewHTTPStore(HTTPConfig{
			BaseURL: "http://127.0.0.1:1",
			Timeout: 200 * time.Millisecond,
		}, testLogger())
		_, err := store.List(context.Background())
		assert.ErrorIs(t, err, ErrNetwork)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer srv.Close()

		store := NewHTTPStore(HTTPConfig{BaseURL: srv.URL}, testLogger())
		_, err := store.List(context.Background())
		assert.ErrorIs(t, err, ErrDecode)
	})
}

func TestHTTPStorePatch(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		var got Patch
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPatch, r.Method)
			assert.Equal(t, "/slots/s1", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		store := NewHTTPStore(HTTPConfig{BaseURL: srv.URL}, testLogger())
		err := store.Patch(context.Background(), "s1", Patch{
			Status:      "booked",
			ClientName:  "Ana Lee",
			ClientEmail: "a@x.com",
			BookingDate: "2024-05-01T09:00:00Z",
		})
		require.NoError(t, err)
		assert.Equal(t, "Ana Lee", got.ClientName)
		assert.Equal(t, "a@x.com", got.ClientEmail)
	})

	t.Run("Rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		store := NewHTTPStore(HTTPConfig{BaseURL: srv.URL}, testLogger())
		err := store.Patch(context.Background(), "s1", Patch{Status: "booked"})
		assert.ErrorIs(t, err, ErrRejected)
	})

	t.Run("ConflictWithConditionalUpdates", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "available", r.Header.Get("X-Expected-Status"))
			w.WriteHeader(http.StatusConflict)
		}))
		defer srv.Close()

		store := NewHTTPStore(HTTPConfig{BaseURL: srv.URL, ConditionalUpdates: true}, testLogger())
		err := store.Patch(context.Background(), "s1", Patch{Status: "booked"})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("ConflictStatusWithoutConditionalUpdatesIsRejected", func(t *testing.T) {
		// Without the precondition the store's 409 carries no
		// compare-and-swap meaning; it stays a plain rejection.
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
		}))
		defer srv.Close()

		store := NewHTTPStore(HTTPConfig{BaseURL: srv.URL}, testLogger())
		err := store.Patch(context.Background(), "s1", Patch{Status: "booked"})
		assert.ErrorIs(t, err, ErrRejected)
		assert.NotErrorIs(t, err, ErrConflict)
	})

	t.Run("NetworkFailure", func(t *testing.T) {
		store := NewHTTPStore(HTTPConfig{
			BaseURL: "http://127.0.0.1:1",
			Timeout: 200 * time.Millisecond,
		}, testLogger())
		err := store.Patch(context.Background(), "s1", Patch{Status: "booked"})
		assert.ErrorIs(t, err, ErrNetwork)
	})
}
