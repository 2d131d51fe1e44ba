package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/kasmeter/kasmeter-server/internal/errors"
	"github.com/kasmeter/kasmeter-server/internal/httputil"
	"github.com/kasmeter/kasmeter-server/internal/service"
	"github.com/kasmeter/kasmeter-server/internal/util"
)

type SessionHandler struct {
	sessionService *service.SessionService
	createLimit    func(http.Handler) http.Handler
}

func NewSessionHandler(sessionService *service.SessionService, createLimit func(http.Handler) http.Handler) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		createLimit:    createLimit,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// Creation is rate limited; status polling is not
	r.With(h.createLimit).Post("/", h.CreateSession)
	r.Get("/{id}", h.GetSession)

	return r
}

// POST /api/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// An empty body means "use the defaults"
	var input service.CreateSessionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteError(w, apperrors.ValidationError("Request body is not valid JSON"))
		return
	}

	result, err := h.sessionService.CreateSession(ctx, input)
	if err != nil {
		log.Error().Err(err).Msg("failed to create session")
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// GET /api/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !util.IsValidUUID(id) {
		httputil.WriteError(w, apperrors.InvalidInput("id", "must be a session id"))
		return
	}

	result, err := h.sessionService.GetStatus(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("session", id).Msg("failed to get session status")
		httputil.WriteError(w, err)
		return
	}

	if result == nil {
		httputil.WriteError(w, apperrors.NotFound("Session"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}
