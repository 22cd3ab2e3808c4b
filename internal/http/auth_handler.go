package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"edu-consult/internal/metrics"
	"edu-consult/internal/service"
)

const refreshCookiePath = "/api/auth"

// CookieOptions controla el transporte de tokens por cookie HttpOnly.
type CookieOptions struct {
	Enabled bool
	Secure  bool
	Domain  string
}

// AuthHandler expone los flujos de autenticación bajo /api/auth.
type AuthHandler struct {
	logger  *zap.Logger
	auth    *service.AuthService
	jwt     *service.JWTService
	metrics *metrics.Metrics
	cookies CookieOptions
}

func NewAuthHandler(logger *zap.Logger, auth *service.AuthService, jwt *service.JWTService, m *metrics.Metrics, cookies CookieOptions) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		logger:  logger,
		auth:    auth,
		jwt:     jwt,
		metrics: m,
		cookies: cookies,
	}
}

// Register maneja POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterInput
	if !bindJSON(c, h.logger, &req) {
		return
	}

	res, err := h.auth.Register(c.Request.Context(), req)
	h.metrics.AuthEvent("register", outcomeOf(err))
	if err != nil {
		writeServiceError(c, h.logger, "register", err)
		return
	}

	h.setTokenCookies(c, res.Tokens)
	respondData(c, http.StatusCreated, res)
}

// Login maneja POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginInput
	if !bindJSON(c, h.logger, &req) {
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req)
	h.metrics.AuthEvent("login", outcomeOf(err))
	if err != nil {
		writeServiceError(c, h.logger, "login", err)
		return
	}

	h.setTokenCookies(c, res.Tokens)
	respondData(c, http.StatusOK, res)
}

// Logout maneja POST /api/auth/logout. El body es opcional.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, _ := GetAuthClaims(c)

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if c.Request.ContentLength > 0 {
		_ = c.ShouldBindJSON(&req)
	}

	h.auth.Logout(c.Request.Context(), claims, h.refreshTokenFrom(c, req.RefreshToken))
	h.metrics.AuthEvent("logout", metrics.OutcomeSuccess)

	h.clearTokenCookies(c)
	respondMessage(c, http.StatusOK, "logged out successfully")
}

// ForgotPassword maneja POST /api/auth/forgot-password.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req service.ForgotPasswordInput
	if !bindJSON(c, h.logger, &req) {
		return
	}

	err := h.auth.ForgotPassword(c.Request.Context(), req)
	h.metrics.AuthEvent("forgot_password", outcomeOf(err))
	if err != nil {
		writeServiceError(c, h.logger, "forgot password", err)
		return
	}
	respondMessage(c, http.StatusOK, "reset code sent to your email")
}

// ResetPassword maneja POST /api/auth/reset-password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req service.ResetPasswordInput
	if !bindJSON(c, h.logger, &req) {
		return
	}

	err := h.auth.ResetPassword(c.Request.Context(), req)
	h.metrics.AuthEvent("reset_password", outcomeOf(err))
	if err != nil {
		writeServiceError(c, h.logger, "reset password", err)
		return
	}
	respondMessage(c, http.StatusOK, "password reset successfully")
}

// RefreshToken maneja POST /api/auth/refresh-token. El refresh token llega por
// cookie o en el body; solo se emite un nuevo access token.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if c.Request.ContentLength > 0 {
		_ = c.ShouldBindJSON(&req)
	}

	res, err := h.auth.Refresh(c.Request.Context(), h.refreshTokenFrom(c, req.RefreshToken))
	h.metrics.AuthEvent("refresh", outcomeOf(err))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingToken):
			respondError(c, http.StatusUnauthorized, "refresh token missing")
		case errors.Is(err, service.ErrInvalidRefreshToken):
			respondError(c, http.StatusForbidden, "invalid or expired refresh token")
		case errors.Is(err, service.ErrUserNotFound):
			respondError(c, http.StatusUnauthorized, "user no longer exists")
		default:
			writeServiceError(c, h.logger, "refresh token", err)
		}
		return
	}

	h.setAccessCookie(c, res.AccessToken)
	respondData(c, http.StatusOK, res)
}

func (h *AuthHandler) refreshTokenFrom(c *gin.Context, fromBody string) string {
	if cookie, err := c.Cookie(refreshTokenCookie); err == nil && strings.TrimSpace(cookie) != "" {
		return strings.TrimSpace(cookie)
	}
	return strings.TrimSpace(fromBody)
}

func (h *AuthHandler) setTokenCookies(c *gin.Context, tokens service.TokenPair) {
	if !h.cookies.Enabled {
		return
	}
	h.setAccessCookie(c, tokens.AccessToken)
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshTokenCookie, tokens.RefreshToken, seconds(h.jwt.RefreshTTL()), refreshCookiePath, h.cookies.Domain, h.cookies.Secure, true)
}

func (h *AuthHandler) setAccessCookie(c *gin.Context, token string) {
	if !h.cookies.Enabled {
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(accessTokenCookie, token, seconds(h.jwt.AccessTTL()), "/", h.cookies.Domain, h.cookies.Secure, true)
}

func (h *AuthHandler) clearTokenCookies(c *gin.Context) {
	if !h.cookies.Enabled {
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(accessTokenCookie, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(refreshTokenCookie, "", -1, refreshCookiePath, h.cookies.Domain, h.cookies.Secure, true)
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}
