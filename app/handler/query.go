package handler

import (
	"errors"
	"net/http"
	"strconv"

	"ugc-forge/app/logger"
	"ugc-forge/app/middleware"
	"ugc-forge/app/model"
	"ugc-forge/app/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	defaultChargeLimit = 50
	maxChargeLimit     = 200
)

// QueryHandler serves the read API polled by the UI. Every lookup is scoped to
// the user in the bearer token.
type QueryHandler struct {
	db      *gorm.DB
	logger  *logger.Logger
	credits *service.CreditService
}

func NewQueryHandler(db *gorm.DB, log *logger.Logger, credits *service.CreditService) *QueryHandler {
	return &QueryHandler{db: db, logger: log, credits: credits}
}

// GetFile handles GET /api/files/:id.
func (h *QueryHandler) GetFile(c *gin.Context) {
	var file model.File
	if !h.take(c, &file, "File not found") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": file})
}

// GetPipeline handles GET /api/pipelines/:id.
func (h *QueryHandler) GetPipeline(c *gin.Context) {
	var pipeline model.Pipeline
	if !h.take(c, &pipeline, "Pipeline not found") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": pipeline})
}

// ListCharges handles GET /api/credits/charges?limit=N.
func (h *QueryHandler) ListCharges(c *gin.Context) {
	limit := defaultChargeLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			fail(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxChargeLimit)
	}

	charges, total, err := h.credits.ListCharges(c.Request.Context(), c.GetString(middleware.ContextUserID), limit)
	if err != nil {
		failFromService(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    charges,
		"total":   total,
	})
}

func (h *QueryHandler) take(c *gin.Context, dest interface{}, notFound string) bool {
	err := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", c.Param("id"), c.GetString(middleware.ContextUserID)).
		Take(dest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, notFound)
		} else {
			failFromService(c, h.logger, err)
		}
		return false
	}
	return true
}
