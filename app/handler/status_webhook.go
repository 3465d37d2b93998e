package handler

import (
	"io"
	"net/http"

	"ugc-forge/app/logger"
	"ugc-forge/app/model"
	"ugc-forge/app/payload"
	"ugc-forge/app/service"

	"github.com/gin-gonic/gin"
)

const maxBodyBytes = 1 << 20

// StatusWebhookHandler receives file and pipeline stage notifications from the
// workflow runner.
type StatusWebhookHandler struct {
	logger    *logger.Logger
	files     *service.FileStatusService
	pipelines *service.PipelineStatusService
}

func NewStatusWebhookHandler(log *logger.Logger, files *service.FileStatusService, pipelines *service.PipelineStatusService) *StatusWebhookHandler {
	return &StatusWebhookHandler{
		logger:    log,
		files:     files,
		pipelines: pipelines,
	}
}

// UpdateFileStatus handles POST /api/webhooks/update-file-status.
func (h *StatusWebhookHandler) UpdateFileStatus(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		invalid(c, []payload.Issue{{Field: "body", Message: "could not be read"}})
		return
	}

	n, err := payload.Parse(body)
	if err != nil {
		if ve, ok := payload.AsValidationError(err); ok {
			h.logger.Warnf("rejected status webhook: %v", ve)
			invalid(c, ve.Issues)
			return
		}
		failFromService(c, h.logger, err)
		return
	}

	if n.Kind == payload.KindPipelineStage {
		h.applyStage(c, n.Pipeline)
		return
	}
	h.applyContent(c, n.Content)
}

func (h *StatusWebhookHandler) applyContent(c *gin.Context, p *payload.ContentUpdate) {
	upd := service.FileUpdate{
		FileID:       p.FileID,
		Status:       p.EffectiveStatus(),
		Progress:     p.Progress,
		PreviewURL:   p.PreviewURL,
		DownloadURL:  p.DownloadURL,
		ScriptOutput: p.ScriptOutput,
		AudioURL:     p.AudioURL,
		ErrorMessage: p.ErrorMessage,
		Metadata:     p.Metadata,
		UserID:       p.UserID,
	}
	if p.CreditsCost != nil {
		upd.CreditsCost = *p.CreditsCost
	}

	res, err := h.files.ApplyFileUpdate(c.Request.Context(), upd)
	if err != nil {
		failFromService(c, h.logger, err)
		return
	}

	resp := gin.H{
		"success": true,
		"file_id": res.FileID,
		"status":  res.Status,
	}
	if res.PipelineID != "" {
		resp["pipeline_id"] = res.PipelineID
		resp["stage"] = res.Stage
		resp["pipeline_synced"] = res.PipelineSynced
		if res.PipelineSynced {
			resp["pipeline_status"] = res.PipelineStatus
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StatusWebhookHandler) applyStage(c *gin.Context, p *payload.PipelineStageUpdate) {
	upd := service.StageUpdate{
		PipelineID:   p.PipelineID,
		Stage:        p.Stage,
		Status:       p.Status,
		Progress:     p.Progress,
		ErrorMessage: p.ErrorMessage,
		UserID:       p.UserID,
	}
	if p.Output != nil {
		upd.Output = &model.StageOutput{
			URL:             p.Output.URL,
			DurationSeconds: p.Output.DurationSeconds,
			Data:            p.Output.Data,
		}
	}
	if p.CreditsCost != nil {
		upd.CreditsCost = *p.CreditsCost
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
		"status":      p.Status,
		"pipeline":    res.Status,
		"skipped":     res.Skipped,
	})
}
