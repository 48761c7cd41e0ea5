package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classconnect-auth/internal/apperrors"
)

type ErrorResponse struct {
	Error     string     `json:"error"`
	Type      string     `json:"type,omitempty"`
	LockUntil *time.Time `json:"lock_until,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.NotFound:
		return http.StatusNotFound
	case apperrors.Conflict:
		return http.StatusConflict
	case apperrors.Unauthorized:
		return http.StatusUnauthorized
	case apperrors.Forbidden:
		return http.StatusForbidden
	case apperrors.Gone:
		return http.StatusGone
	case apperrors.Unavailable:
		return http.StatusServiceUnavailable
	case apperrors.Rejected:
		return http.StatusBadGateway
	case apperrors.RateLimited:
		return http.StatusTooManyRequests
	case apperrors.BadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a service error. Unclassified errors are logged and
// answered with a generic 500 so internals never reach the client.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	e, ok := apperrors.As(err)
	if !ok || e.Kind == apperrors.Internal {
		log.Error("internal error",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Type: "internal"})
		return
	}
	c.JSON(statusFor(e.Kind), ErrorResponse{Error: e.Message, Type: e.Type, LockUntil: e.LockUntil})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Type: "bad_request"})
}
