package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"novalabs_hub/internal/api/middleware"
	"novalabs_hub/internal/app/service"
	"novalabs_hub/internal/common"
	"novalabs_hub/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type SessionHandler struct {
	sessionService *service.SessionService
}

func NewSessionHandler(ss *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: ss}
}

func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.createSession)                  // POST /api/v1/sessions
	r.Get("/{sessionID}", h.getSession)
	r.Patch("/{sessionID}", h.updateSession)
	r.Delete("/{sessionID}", h.deleteSession)
	r.Get("/user/{userID}", h.listUserSessions)   // self or admin
}

type createSessionRequest struct {
	Token string `json:"token"`
}

// sessionResponse never carries the stored credential; the session id
// returned at creation is the only handle the client ever sees.
type sessionResponse struct {
	SessionID    string          `json:"session_id"`
	UserID       string          `json:"user_id"`
	State        json.RawMessage `json:"state"`
	CreatedAt    time.Time       `json:"created_at"`
	LastActivity time.Time       `json:"last_activity"`
}

func toSessionResponse(s *model.Session) sessionResponse {
	return sessionResponse{
		SessionID:    s.ID,
		UserID:       s.UserID,
		State:        json.RawMessage(s.State),
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
	}
}

func (h *SessionHandler) createSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	// The body is optional; a chunked request carries no Content-Length,
	// so decode unconditionally and treat an empty body as the default.
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	result, err := h.sessionService.Create(r.Context(), userID, req.Token)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, result)
}

func (h *SessionHandler) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionService.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, toSessionResponse(session))
}

type updateSessionRequest struct {
	Token *string          `json:"token,omitempty"`
	State *json.RawMessage `json:"state,omitempty"`
}

func (h *SessionHandler) updateSession(w http.ResponseWriter, r *http.Request) {
	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	var state *string
	if req.State != nil {
		s := string(*req.State)
		state = &s
	}
	if err := h.sessionService.Update(r.Context(), chi.URLParam(r, "sessionID"), req.Token, state); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *SessionHandler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionService.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *SessionHandler) listUserSessions(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	callerRole, _ := middleware.GetUserRoleFromContext(r.Context())

	sessions, err := h.sessionService.ListByUser(r.Context(), callerID, callerRole, chi.URLParam(r, "userID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	resp := make([]sessionResponse, 0, len(sessions))
	for i := range sessions {
		resp = append(resp, toSessionResponse(&sessions[i]))
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}
