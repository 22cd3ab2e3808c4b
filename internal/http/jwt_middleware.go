package http

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"edu-consult/internal/domain"
	"edu-consult/internal/service"
)

const (
	authClaimsKey = "auth_claims"

	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// RequireAuth valida el access token (header Bearer o cookie) y guarda los claims en el contexto.
func RequireAuth(jwtSvc *service.JWTService, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if jwtSvc == nil {
			respondError(c, http.StatusInternalServerError, "jwt not configured")
			return
		}

		token := accessTokenFrom(c)
		if token == "" {
			respondError(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		claims, err := jwtSvc.ParseAccessToken(c.Request.Context(), token)
		if err != nil {
			logger.Debug("access token rejected", zap.Error(err))
			respondError(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

// RequireRoles deja pasar solo a los roles indicados. Debe ir después de RequireAuth.
func RequireRoles(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetAuthClaims(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !slices.Contains(roles, claims.Role) {
			respondError(c, http.StatusForbidden, "forbidden")
			return
		}
		c.Next()
	}
}

// GetAuthClaims obtiene claims de JWT desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}

func accessTokenFrom(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	if cookie, err := c.Cookie(accessTokenCookie); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}
