package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/facecheck/internal/integrity"
	"github.com/timmy/facecheck/internal/service"
	"github.com/timmy/facecheck/internal/storage"
	"gorm.io/gorm"
)

// statusFor maps engine and service errors to HTTP status codes.
func statusFor(err error) int {
	var (
		conflict    *integrity.DuplicateConflict
		pageFailure *integrity.PageFetchFailure
		unavailable *integrity.CollaboratorUnavailable
	)
	switch {
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.Is(err, integrity.ErrPersonNotFound),
		errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, storage.ErrObjectNotFound),
		errors.Is(err, service.ErrReportNotArchived):
		return http.StatusNotFound
	case errors.Is(err, integrity.ErrUnknownIssueType),
		errors.Is(err, integrity.ErrNotAutoFixable),
		errors.Is(err, service.ErrUnknownSetting),
		errors.Is(err, service.ErrInvalidSetting):
		return http.StatusBadRequest
	case errors.As(err, &pageFailure), errors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": "<action>: <err>"} with the mapped status.
func respondError(c *gin.Context, action string, err error) {
	c.JSON(statusFor(err), gin.H{"error": action + ": " + err.Error()})
}
