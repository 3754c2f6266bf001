package handler

import (
	"encoding/json"
	"net/http"

	"novalabs_hub/internal/api/middleware"
	"novalabs_hub/internal/app/service"
	"novalabs_hub/internal/common"
	"novalabs_hub/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type LabHandler struct {
	labService *service.LabService
}

func NewLabHandler(ls *service.LabService) *LabHandler {
	return &LabHandler{labService: ls}
}

func (h *LabHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listLabs)                        // GET /api/v1/labs
	r.Get("/{labRef}", h.getLab)                  // GET /api/v1/labs/moon-phases
	r.Get("/{labRef}/accessible", h.checkAccessible)

	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(middleware.RequireRole(model.RoleAdmin))
		adminRouter.Post("/", h.createLab)
		adminRouter.Patch("/{labRef}", h.updateLab)
		adminRouter.Delete("/{labRef}", h.deleteLab)
	})
}

func (h *LabHandler) listLabs(w http.ResponseWriter, r *http.Request) {
	labs, err := h.labService.ListLabs(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, labs)
}

func (h *LabHandler) getLab(w http.ResponseWriter, r *http.Request) {
	lab, err := h.labService.GetLab(r.Context(), chi.URLParam(r, "labRef"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, lab)
}

func (h *LabHandler) checkAccessible(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	result, err := h.labService.CheckAccessible(r.Context(), userID, chi.URLParam(r, "labRef"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, result)
}

func (h *LabHandler) createLab(w http.ResponseWriter, r *http.Request) {
	var req service.CreateLabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	lab, err := h.labService.CreateLab(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, lab)
}

func (h *LabHandler) updateLab(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateLabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	lab, err := h.labService.UpdateLab(r.Context(), chi.URLParam(r, "labRef"), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, lab)
}

func (h *LabHandler) deleteLab(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "labRef")
	if err := h.labService.DeleteLab(r.Context(), ref); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted", "ref": ref})
}
