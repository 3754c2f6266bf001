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

// AdminHandler groups the staff-only surfaces: instructor progress
// views, score overrides, and role management.
type AdminHandler struct {
	progressService *service.ProgressService
	authService     *service.AuthService
}

func NewAdminHandler(ps *service.ProgressService, as *service.AuthService) *AdminHandler {
	return &AdminHandler{progressService: ps, authService: as}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(staffRouter chi.Router) {
		staffRouter.Use(middleware.RequireRole(model.RoleInstructor))
		staffRouter.Get("/users/{userID}/progress", h.getUserProgress)
	})

	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(middleware.RequireRole(model.RoleAdmin))
		adminRouter.Patch("/users/{userID}/labs/{labRef}", h.overrideScore)
		adminRouter.Patch("/users/{userID}/role", h.setUserRole)
	})
}

func (h *AdminHandler) getUserProgress(w http.ResponseWriter, r *http.Request) {
	report, err := h.progressService.GetProgress(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, report)
}

func (h *AdminHandler) overrideScore(w http.ResponseWriter, r *http.Request) {
	var req service.OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	result, err := h.progressService.OverrideScore(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "labRef"), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, result)
}

type setRoleRequest struct {
	Role model.Role `json:"role"`
}

func (h *AdminHandler) setUserRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	user, err := h.authService.SetUserRole(r.Context(), chi.URLParam(r, "userID"), req.Role)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}
