package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"edu-consult/internal/domain"
	"edu-consult/internal/metrics"
	"edu-consult/internal/service"
)

// RouterDeps agrupa lo necesario para montar el router.
type RouterDeps struct {
	Logger         *zap.Logger
	Auth           *AuthHandler
	Users          *UserHandler
	JWT            *service.JWTService
	Metrics        *metrics.Metrics
	RequestTimeout time.Duration
	// AuthLimiter limita por IP login y forgot-password; nil lo desactiva.
	AuthLimiter *IPRateLimiter
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(d RouterDeps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(zapLoggerMiddleware(logger), recoveryMiddleware(logger), metricsMiddleware(d.Metrics))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	api := r.Group("/api", jsonContentTypeMiddleware(), timeoutMiddleware(d.RequestTimeout))
	requireAuth := RequireAuth(d.JWT, logger)

	auth := api.Group("/auth")
	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", d.AuthLimiter.Handler(), d.Auth.Login)
	auth.POST("/logout", requireAuth, d.Auth.Logout)
	auth.POST("/forgot-password", d.AuthLimiter.Handler(), d.Auth.ForgotPassword)
	auth.POST("/reset-password", d.Auth.ResetPassword)
	auth.POST("/refresh-token", d.Auth.RefreshToken)

	users := api.Group("/users", requireAuth)
	users.GET("/me", d.Users.Me)
	users.PUT("/me", d.Users.UpdateMe)
	users.PUT("/me/password", d.Users.ChangePassword)
	users.GET("/admin", RequireRoles(domain.RoleAdmin), d.Users.AdminArea)
	users.GET("/employee", RequireRoles(domain.RoleAdmin, domain.RoleEmployee), d.Users.StaffArea)

	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "route not found")
	})
	return r
}
