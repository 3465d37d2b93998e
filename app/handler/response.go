package handler

import (
	"errors"
	"net/http"

	"ugc-forge/app/logger"
	"ugc-forge/app/payload"
	"ugc-forge/app/service"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Issues  []payload.Issue `json:"issues,omitempty"`
}

func fail(c *gin.Context, code int, message string) {
	c.JSON(code, ErrorResponse{Success: false, Error: message})
}

func invalid(c *gin.Context, issues []payload.Issue) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Error:   "invalid payload",
		Issues:  issues,
	})
}

// failFromService maps a service error onto a status code. Unexpected errors are
// logged and reported without detail.
func failFromService(c *gin.Context, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrFileNotFound):
		fail(c, http.StatusNotFound, "File not found")
	case errors.Is(err, service.ErrPipelineNotFound):
		fail(c, http.StatusNotFound, "Pipeline not found")
	case errors.Is(err, service.ErrInvalidStatus):
		invalid(c, []payload.Issue{{Field: "status", Message: "must be one of processing completed failed"}})
	case errors.Is(err, service.ErrUnknownStage):
		invalid(c, []payload.Issue{{Field: "stage", Message: "is not a known pipeline stage"}})
	default:
		log.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "Internal server error")
	}
}
