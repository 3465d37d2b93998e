package handler

import (
	"encoding/json"
	"net/http"

	"ugc-forge/app/model"
	"ugc-forge/app/payload"
	"ugc-forge/app/service"

	"github.com/gin-gonic/gin"
)

// PipelineStatusRequest is the loosely checked body of the direct pipeline
// status endpoint.
type PipelineStatusRequest struct {
	PipelineID      string          `json:"pipeline_id" binding:"required,max=128"`
	Status          string          `json:"status"`
	Stage           string          `json:"stage"`
	OutputURL       string          `json:"output_url"`
	OutputData      json.RawMessage `json:"output_data"`
	DurationSeconds *float64        `json:"duration_seconds"`
	Progress        *int            `json:"progress" binding:"omitempty,min=0,max=100"`
	ErrorMessage    string          `json:"error_message"`
}

// UpdatePipelineStatus handles POST /api/webhooks/update-pipeline-status. With a
// stage it completes or fails that stage, without one it sets the pipeline's
// aggregate status.
func (h *StatusWebhookHandler) UpdatePipelineStatus(c *gin.Context) {
	var req PipelineStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnf("rejected pipeline status webhook: %v", err)
		invalid(c, []payload.Issue{{Field: "body", Message: "pipeline_id is required and progress must be 0-100"}})
		return
	}

	upd := service.StageUpdate{
		PipelineID:   req.PipelineID,
		Status:       req.Status,
		Progress:     req.Progress,
		ErrorMessage: req.ErrorMessage,
	}

	if req.Stage != "" {
		stage, ok := model.ParseStage(req.Stage)
		if !ok {
			failFromService(c, h.logger, service.ErrUnknownStage)
			return
		}
		upd.Stage = stage
	}

	if upd.Status == "" {
		switch {
		case req.OutputURL != "":
			upd.Status = model.GenerationStatusCompleted
		case req.ErrorMessage != "":
			upd.Status = model.GenerationStatusFailed
		default:
			upd.Status = model.GenerationStatusProcessing
		}
	}

	if req.OutputURL != "" {
		upd.Output = &model.StageOutput{
			URL:             req.OutputURL,
			DurationSeconds: req.DurationSeconds,
			Data:            req.OutputData,
		}
	}

	res, err := h.pipelines.ApplyStageUpdate(c.Request.Context(), upd)
	if err != nil {
		failFromService(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"pipeline_id": res.PipelineID,
		"stage":       res.Stage,
		"status":      res.Status,
		"skipped":     res.Skipped,
	})
}
