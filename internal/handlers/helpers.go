package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "cycleledger/internal/errors"
	"cycleledger/internal/logger"
	"cycleledger/internal/uuid"
)

// dateFormat is the wire format for all date fields.
const dateFormat = "2006-01-02"

// getOwnerID extracts the authenticated owner ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getOwnerID(c *gin.Context) (string, error) {
	ownerID, exists := c.Get("ownerID")
	if !exists {
		return "", apperrors.ErrUnauthorized
	}
	return ownerID.(string), nil
}

// parsePathUUID parses a UUID path parameter.
// Returns ErrInvalidInput if the parameter is not a valid UUID.
func parsePathUUID(c *gin.Context, param string) (string, error) {
	id := c.Param(param)
	if !uuid.IsValid(id) {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return id, nil
}

// parseDate parses an ISO date string (YYYY-MM-DD) into a UTC time.
func parseDate(value, field string) (time.Time, error) {
	t, err := time.Parse(dateFormat, value)
	if err != nil {
		return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, field+" must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

// respondWithError writes a consistent JSON error response. If the error is an
// *AppError it uses the error's status code, code, and message. Otherwise it
// logs the unexpected error and returns a generic internal server error.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
			)
		}
		c.JSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
	)
	c.JSON(apperrors.ErrInternalServer.StatusCode, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrInternalServer.Code,
			"message": apperrors.ErrInternalServer.Message,
		},
	})
}
