package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"edu-consult/internal/metrics"
	"edu-consult/internal/service"
)

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"status": "error", "message": message})
}

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"status": "success", "data": data})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"status": "success", "message": message})
}

// bindJSON decodifica el body; la validación de campos la hacen los servicios.
func bindJSON(c *gin.Context, logger *zap.Logger, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		logger.Warn("invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeServiceError traduce errores de negocio a status HTTP. Cualquier otro
// error es una falla de infraestructura y se responde como 500 genérico.
func writeServiceError(c *gin.Context, logger *zap.Logger, op string, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "invalid input data",
			"errors":  verr.Fields,
		})
	case errors.Is(err, service.ErrValidation):
		respondError(c, http.StatusBadRequest, "invalid input data")
	case errors.Is(err, service.ErrDuplicateEmail):
		respondError(c, http.StatusConflict, "email is already registered")
	case errors.Is(err, service.ErrDuplicatePhone):
		respondError(c, http.StatusConflict, "phone number is already registered")
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "user not found")
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, service.ErrInvalidOrExpiredCode):
		respondError(c, http.StatusBadRequest, "invalid or expired reset code")
	case errors.Is(err, service.ErrIncorrectPassword):
		respondError(c, http.StatusBadRequest, "old password is incorrect")
	case errors.Is(err, service.ErrRateLimited):
		respondError(c, http.StatusTooManyRequests, "too many requests")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn(op+" timed out", zap.Error(err))
		respondError(c, http.StatusServiceUnavailable, "request timed out")
	default:
		logger.Error(op+" failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "internal server error")
	}
}

// outcomeOf clasifica un error para las métricas de auth.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrDuplicateEmail),
		errors.Is(err, service.ErrDuplicatePhone),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidOrExpiredCode),
		errors.Is(err, service.ErrIncorrectPassword),
		errors.Is(err, service.ErrRateLimited),
		errors.Is(err, service.ErrMissingToken),
		errors.Is(err, service.ErrInvalidRefreshToken):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
