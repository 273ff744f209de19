package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/kevcor13/client-interface1/internal/audit"
	"github.com/kevcor13/client-interface1/internal/booking"
	"github.com/kevcor13/client-interface1/internal/models"
)

// Handler serves the session API consumed by the rendering shell.
type Handler struct {
	sessions *SessionStore
	audit    *audit.Store // optional
	logger   zerolog.Logger
}

// NewHandler creates the handler. audit may be nil.
func NewHandler(sessions *SessionStore, auditStore *audit.Store, logger zerolog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		audit:    auditStore,
		logger:   logger.With().Str("component", "httpapi").Logger(),
	}
}

// Routes builds the router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.createSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.getState)
			r.Delete("/", h.deleteSession)
			r.Post("/select", h.selectSlot)
			r.Post("/deselect", h.changeSelection)
			r.Post("/submit", h.submit)
			r.Post("/retry", h.retryFetch)
		})
	})

	if h.audit != nil {
		r.Get("/admin/audit.xlsx", h.exportAudit)
	}
	return r
}

type sessionResponse struct {
	SessionID string              `json:"session_id"`
	Render    booking.RenderState `json:"render"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Create()
	h.logger.Info().Str("session_id", sess.ID).Msg("session created")
	h.writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID: sess.ID,
		Render:    sess.Coordinator.Render(),
	})
}

func (h *Handler) getState(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: sess.ID,
		Render:    sess.Coordinator.Render(),
	})
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	h.sessions.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) selectSlot(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		SlotID string `json:"slot_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SlotID == "" {
		h.writeError(w, http.StatusBadRequest, "slot_id is required")
		return
	}

	h.intentResult(w, sess, sess.Coordinator.SelectSlot(req.SlotID))
}

func (h *Handler) changeSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.intentResult(w, sess, sess.Coordinator.ChangeSelection())
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var info models.BookerInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed booking form")
		return
	}

	h.intentResult(w, sess, sess.Coordinator.Submit(r.Context(), info))
}

func (h *Handler) retryFetch(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.intentResult(w, sess, sess.Coordinator.RetryFetch(r.Context()))
}

func (h *Handler) exportAudit(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="booking-attempts.xlsx"`)
	if err := h.audit.ExportExcel(r.Context(), w, 0); err != nil {
		h.logger.Error().Err(err).Msg("audit export failed")
	}
}

// intentResult maps coordinator intent errors onto HTTP statuses and
// otherwise answers with the fresh render state.
func (h *Handler) intentResult(w http.ResponseWriter, sess *Session, err error) {
	var vErr *models.ValidationError
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, sessionResponse{
			SessionID: sess.ID,
			Render:    sess.Coordinator.Render(),
		})
	case errors.As(err, &vErr):
		h.writeError(w, http.StatusUnprocessableEntity, vErr.Error())
	case errors.Is(err, booking.ErrSlotNotInSnapshot):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, booking.ErrInvalidIntent):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error().Err(err).Msg("intent failed")
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := chi.URLParam(r, "sessionID")
	sess, ok := h.sessions.Get(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown session")
		return nil, false
	}
	return sess, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("write response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
