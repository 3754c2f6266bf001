package handler

import (
	"encoding/json"
	"net/http"

	"novalabs_hub/internal/api/middleware"
	"novalabs_hub/internal/app/service"
	"novalabs_hub/internal/common"

	"github.com/go-chi/chi/v5"
)

type ProgressHandler struct {
	progressService *service.ProgressService
}

func NewProgressHandler(ps *service.ProgressService) *ProgressHandler {
	return &ProgressHandler{progressService: ps}
}

func (h *ProgressHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.getMyProgress)                   // GET /api/v1/progress
	r.Get("/lab/{labRef}", h.getLabProgress)      // GET /api/v1/progress/lab/moon-phases
	r.Post("/lab/{labRef}/start", h.startLab)
	r.Post("/lab/{labRef}/complete", h.completeLab)
}

func (h *ProgressHandler) getMyProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	report, err := h.progressService.GetProgress(r.Context(), userID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, report)
}

func (h *ProgressHandler) getLabProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	progress, err := h.progressService.GetLabProgress(r.Context(), userID, chi.URLParam(r, "labRef"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, progress)
}

func (h *ProgressHandler) startLab(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	rec, err := h.progressService.StartLab(r.Context(), userID, chi.URLParam(r, "labRef"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, rec)
}

type completeLabRequest struct {
	Score       float64 `json:"score"`
	BonusPoints float64 `json:"bonus_points"`
}

func (h *ProgressHandler) completeLab(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	var req completeLabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	result, err := h.progressService.CompleteLab(r.Context(), userID, chi.URLParam(r, "labRef"), req.Score, req.BonusPoints)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, result)
}
