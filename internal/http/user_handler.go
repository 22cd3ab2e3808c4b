package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"edu-consult/internal/metrics"
	"edu-consult/internal/service"
)

// UserHandler mantiene dependencias para endpoints del usuario autenticado.
type UserHandler struct {
	logger  *zap.Logger
	users   *service.UserService
	metrics *metrics.Metrics
}

func NewUserHandler(logger *zap.Logger, users *service.UserService, m *metrics.Metrics) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{logger: logger, users: users, metrics: m}
}

// Me maneja GET /api/users/me.
func (h *UserHandler) Me(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.users.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		writeServiceError(c, h.logger, "get profile", err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"user": user})
}

// UpdateMe maneja PUT /api/users/me.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req service.UpdateProfileInput
	if !bindJSON(c, h.logger, &req) {
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), claims.UserID, req)
	if err != nil {
		writeServiceError(c, h.logger, "update profile", err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"user": user})
}

// ChangePassword maneja PUT /api/users/me/password.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req service.ChangePasswordInput
	if !bindJSON(c, h.logger, &req) {
		return
	}
	err := h.users.ChangePassword(c.Request.Context(), claims.UserID, req)
	h.metrics.AuthEvent("change_password", outcomeOf(err))
	if err != nil {
		writeServiceError(c, h.logger, "change password", err)
		return
	}
	respondMessage(c, http.StatusOK, "password updated successfully")
}

// AdminArea y StaffArea son páginas mínimas detrás del gate de roles.
func (h *UserHandler) AdminArea(c *gin.Context) {
	respondMessage(c, http.StatusOK, "admin page")
}

func (h *UserHandler) StaffArea(c *gin.Context) {
	respondMessage(c, http.StatusOK, "employee page")
}
