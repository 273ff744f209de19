package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevcor13/client-interface1/internal/booking"
	"github.com/kevcor13/client-interface1/internal/models"
	"github.com/kevcor13/client-interface1/internal/slotstore"
)

type fakeStore struct {
	mu       sync.Mutex
	slots    []models.Slot
	patchErr error
	patched  []string
}

func (f *fakeStore) List(ctx context.Context) ([]models.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Slot, len(f.slots))
	copy(out, f.slots)
	return out, nil
}

func (f *fakeStore) Patch(ctx context.Context, id string, p slotstore.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.patchErr != nil {
		return f.patchErr
	}
	f.patched = append(f.patched, id)
	return nil
}

func (f *fakeStore) Prefiltered() bool { return false }

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, models.Slot, models.BookerInfo) {}

func testHandler(t *testing.T, store slotstore.Store) (*Handler, *SessionStore) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	factory := func() *booking.Coordinator {
		return booking.New(store, noopNotifier{}, nil, booking.Config{
			PollInterval: time.Hour,
		}, logger)
	}
	sessions := NewSessionStore(factory, time.Minute)
	return NewHandler(sessions, nil, logger), sessions
}

func doJSON(t *testing.T, r chi.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) sessionResponse {
	t.Helper()
	var resp sessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func waitForState(t *testing.T, r chi.Router, sessionID string, want booking.State) sessionResponse {
	t.Helper()
	var resp sessionResponse
	require.Eventually(t, func() bool {
		rec := doJSON(t, r, http.MethodGet, "/api/sessions/"+sessionID+"/", nil)
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			return false
		}
		return resp.Render.State == want
	}, 2*time.Second, 10*time.Millisecond)
	return resp
}

func TestCreateSession(t *testing.T) {
	store := &fakeStore{slots: []models.Slot{
		{ID: "1", Date: "2026-03-02", Time: "09:00", Status: models.SlotAvailable},
	}}
	h, sessions := testHandler(t, store)
	r := h.Routes()

	rec := doJSON(t, r, http.MethodPost, "/api/sessions/", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeSession(t, rec)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, 1, sessions.Len())

	state := waitForState(t, r, resp.SessionID, booking.StateBrowsing)
	require.Len(t, state.Render.Days, 1)
	assert.Equal(t, "2026-03-02", state.Render.Days[0].Date)
}

func TestUnknownSession(t *testing.T) {
	h, _ := testHandler(t, &fakeStore{})
	r := h.Routes()

	rec := doJSON(t, r, http.MethodGet, "/api/sessions/nope/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown session")
}

func TestBookingFlow(t *testing.T) {
	store := &fakeStore{slots: []models.Slot{
		{ID: "7", Date: "2026-03-02", Time: "09:00", Status: models.SlotAvailable},
	}}
	h, _ := testHandler(t, store)
	r := h.Routes()

	created := decodeSession(t, doJSON(t, r, http.MethodPost, "/api/sessions/", nil))
	base := "/api/sessions/" + created.SessionID
	waitForState(t, r, created.SessionID, booking.StateBrowsing)

	rec := doJSON(t, r, http.MethodPost, base+"/select", map[string]string{"slot_id": "7"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeSession(t, rec)
	require.Equal(t, booking.StateSlotSelected, resp.Render.State)
	require.NotNil(t, resp.Render.Selected)
	assert.Equal(t, "7", resp.Render.Selected.ID)

	rec = doJSON(t, r, http.MethodPost, base+"/submit", models.BookerInfo{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeSession(t, rec)
	assert.Equal(t, booking.StateConfirmed, resp.Render.State)
	require.NotNil(t, resp.Render.Slot)
	assert.Equal(t, "7", resp.Render.Slot.ID)
	require.NotNil(t, resp.Render.Booker)
	assert.Equal(t, "ada@example.com", resp.Render.Booker.Email)

	store.mu.Lock()
	patched := store.patched
	store.mu.Unlock()
	assert.Equal(t, []string{"7"}, patched)
}

func TestDeselectReturnsToBrowsing(t *testing.T) {
	store := &fakeStore{slots: []models.Slot{
		{ID: "7", Date: "2026-03-02", Time: "09:00", Status: models.SlotAvailable},
	}}
	h, _ := testHandler(t, store)
	r := h.Routes()

	created := decodeSession(t, doJSON(t, r, http.MethodPost, "/api/sessions/", nil))
	base := "/api/sessions/" + created.SessionID
	waitForState(t, r, created.SessionID, booking.StateBrowsing)

	doJSON(t, r, http.MethodPost, base+"/select", map[string]string{"slot_id": "7"})
	rec := doJSON(t, r, http.MethodPost, base+"/deselect", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, booking.StateBrowsing, decodeSession(t, rec).Render.State)
}

func TestSelectMissingSlotID(t *testing.T) {
	h, _ := testHandler(t, &fakeStore{})
	r := h.Routes()

	created := decodeSession(t, doJSON(t, r, http.MethodPost, "/api/sessions/", nil))
	rec := doJSON(t, r, http.MethodPost, "/api/sessions/"+created.SessionID+"/select", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelectUnknownSlot(t *testing.T) {
	store := &fakeStore{slots: []models.Slot{
		{ID: "7", Date: "2026-03-02", Time: "09:00", Status: models.SlotAvailable},
	}}
	h, _ := testHandler(t, store)
	r := h.Routes()

	created := decodeSession(t, doJSON(t, r, http.MethodPost, "/api/sessions/", nil))
	waitForState(t, r, created.SessionID, booking.StateBrowsing)

	rec := doJSON(t, r, http.MethodPost, "/api/sessions/"+created.SessionID+"/select", map[string]string{"slot_id": "404"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubmitValidationError(t *testing.T) {
	store := &fakeStore{slots: []models.Slot{
		{ID: "7", Date: "2026-03-02", Time: "09:00", Status: models.SlotAvailable},
	}}
	h, _ := testHandler(t, store)
	r := h.Routes()

	created := decodeSession(t, doJSON(t, r, http.MethodPost, "/api/sessions/", nil))
	base := "/api/sessions/" + created.SessionID
	waitForState(t, r, created.SessionID, booking.StateBrowsing)
	doJSON(t, r, http.MethodPost, base+"/select", map[string]string{"slot_id": "7"})

	rec := doJSON(t, r, http.MethodPost, base+"/submit", models.BookerInfo{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "not-an-email",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "email")

	// Still selected: the form error must not have advanced the machine.
	rec = doJSON(t, r, http.MethodGet, base+"/", nil)
	assert.Equal(t, booking.StateSlotSelected, decodeSession(t, rec).Render.State)
}

func TestIntentInWrongState(t *testing.T) {
	store := &fakeStore{slots: []models.Slot{
		{ID: "7", Date: "2026-03-02", Time: "09:00", Status: models.SlotAvailable},
	}}
	h, _ := testHandler(t, store)
	r := h.Routes()

	created := decodeSession(t, doJSON(t, r, http.MethodPost, "/api/sessions/", nil))
	waitForState(t, r, created.SessionID, booking.StateBrowsing)

	// Submitting without a selection is a conflict, not a crash.
	rec := doJSON(t, r, http.MethodPost, "/api/sessions/"+created.SessionID+"/submit", models.BookerInfo{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	h, sessions := testHandler(t, &fakeStore{})
	r := h.Routes()

	created := decodeSession(t, doJSON(t, r, http.MethodPost, "/api/sessions/", nil))
	rec := doJSON(t, r, http.MethodDelete, "/api/sessions/"+created.SessionID+"/", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, sessions.Len())

	rec = doJSON(t, r, http.MethodGet, "/api/sessions/"+created.SessionID+"/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMalformedSubmitBody(t *testing.T) {
	store := &fakeStore{slots: []models.Slot{
		{ID: "7", Date: "2026-03-02", Time: "09:00", Status: models.SlotAvailable},
	}}
	h, _ := testHandler(t, store)
	r := h.Routes()

	created := decodeSession(t, doJSON(t, r, http.MethodPost, "/api/sessions/", nil))
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+created.SessionID+"/submit", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionCleanup(t *testing.T) {
	logger := zerolog.New(io.Discard)
	factory := func() *booking.Coordinator {
		return booking.New(&fakeStore{}, noopNotifier{}, nil, booking.Config{PollInterval: time.Hour}, logger)
	}
	sessions := NewSessionStore(factory, 10*time.Millisecond)

	sess := sessions.Create()
	require.Equal(t, 1, sessions.Len())

	// Fresh sessions survive a sweep.
	assert.Equal(t, 0, sessions.Cleanup())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, sessions.Cleanup())
	assert.Equal(t, 0, sessions.Len())

	_, ok := sessions.Get(sess.ID)
	assert.False(t, ok)
}
