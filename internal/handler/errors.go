package handler

import (
	"errors"
	"net/http"

	"pulse-chat/internal/services"
	"pulse-chat/internal/transport/httpdto"
	pulse_errors "pulse-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondError maps a service error onto an HTTP status and error code.
// Unclassified errors are attached to the context for the error middleware.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pulse_errors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), httpdto.CodeInvalidRequest))
	case errors.Is(err, pulse_errors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
	case errors.Is(err, pulse_errors.ErrForbidden):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse(err.Error(), httpdto.CodeForbidden))
	case errors.Is(err, pulse_errors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("not found", httpdto.CodeNotFound))
	case errors.Is(err, pulse_errors.ErrConflict), errors.Is(err, pulse_errors.ErrAlreadyExists):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse(err.Error(), httpdto.CodeConflict))
	case errors.Is(err, pulse_errors.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("rate limit exceeded", httpdto.CodeRateLimited))
	case errors.Is(err, pulse_errors.ErrServiceUnavailable):
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("dependency unavailable", httpdto.CodeServiceUnavailable))
	default:
		c.Status(http.StatusInternalServerError)
		_ = c.Error(err)
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(msg, httpdto.CodeInvalidRequest))
}

// currentUser returns the authenticated user, writing a 401 when absent.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
		return uuid.Nil, false
	}
	return userID, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
