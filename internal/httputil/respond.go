// Package httputil holds the request and response helpers shared by gin handlers.
package httputil

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/apperrors"
)

// ActorHeader carries the authenticated user id, set by the auth gateway
const ActorHeader = "X-User-ID"

// ActorID returns the calling user's id from the auth header
func ActorID(c *gin.Context) (uuid.UUID, error) {
	raw := c.GetHeader(ActorHeader)
	if raw == "" {
		return uuid.Nil, apperrors.New(apperrors.CodeForbidden, "missing "+ActorHeader+" header")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.New(apperrors.CodeInvalidArgument, "invalid "+ActorHeader+" header")
	}
	return id, nil
}

// UUIDParam parses a path parameter as a UUID
func UUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperrors.New(apperrors.CodeInvalidArgument, "invalid "+name)
	}
	return id, nil
}

// IntQuery gets an integer query parameter with a default value
func IntQuery(c *gin.Context, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// BadRequest writes a 400 for a binding error
func BadRequest(c *gin.Context, err error) {
	c.JSON(400, gin.H{
		"code":    apperrors.CodeInvalidArgument,
		"error":   err.Error(),
		"message": "The request is invalid.",
	})
}

// RespondError maps a domain error onto its HTTP status and user-facing message
func RespondError(c *gin.Context, logger *zap.Logger, err error) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()
	if status >= 500 {
		logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", string(code)),
			zap.Error(err))
	}

	body := gin.H{
		"code":    code,
		"error":   err.Error(),
		"message": apperrors.UserMessage(err),
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && len(appErr.Fields) > 0 {
		body["details"] = appErr.Fields
	}
	c.JSON(status, body)
}
