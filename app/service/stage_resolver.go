package service

import (
	"errors"
	"fmt"

	"ugc-forge/app/logger"
	"ugc-forge/app/model"

	"gorm.io/gorm"
)

// StageTarget is the pipeline stage a file's outcome belongs to.
type StageTarget struct {
	Pipeline *model.Pipeline
	Stage    model.Stage
	// Inferred is set when the stage was guessed rather than tagged.
	Inferred bool
}

// StageResolver links a file to a pipeline stage using the file's metadata.
type StageResolver struct {
	logger          *logger.Logger
	inferFirstFrame bool
}

func NewStageResolver(log *logger.Logger, inferFirstFrame bool) *StageResolver {
	return &StageResolver{logger: log, inferFirstFrame: inferFirstFrame}
}

// Resolve returns nil when the file has no pipeline association.
//
// The pipeline id is metadata.pipeline_id or, without one, the file id itself. The
// stage comes from metadata.stage, then metadata.frame_type. With neither, an
// output-bearing file is attributed to the first frame while that stage is still
// open.
func (r *StageResolver) Resolve(db *gorm.DB, fileID string, metadata map[string]interface{}, hasOutput bool) (*StageTarget, error) {
	pipelineID := metaString(metadata, "pipeline_id")
	if pipelineID == "" {
		pipelineID = fileID
	}

	stage, tagged, ok := stageFromMetadata(metadata)
	if tagged && !ok {
		r.logger.Warnf("file %s: unrecognised stage tag %q/%q, not linking to a pipeline",
			fileID, metaString(metadata, "stage"), metaString(metadata, "frame_type"))
		return nil, nil
	}

	var pipeline model.Pipeline
	if err := db.Where("id = ?", pipelineID).Take(&pipeline).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load pipeline %s: %w", pipelineID, err)
	}

	if tagged {
		return &StageTarget{Pipeline: &pipeline, Stage: stage}, nil
	}

	if r.inferFirstFrame && hasOutput && !pipeline.FirstFrameComplete {
		r.logger.Warnf("file %s: no stage tag, assuming %s of pipeline %s", fileID, model.StageFirstFrame, pipeline.ID)
		return &StageTarget{Pipeline: &pipeline, Stage: model.StageFirstFrame, Inferred: true}, nil
	}
	return nil, nil
}

// stageFromMetadata reports the tagged stage. tagged is true when metadata carries
// a stage or frame_type value at all; ok is false when that value is unknown.
func stageFromMetadata(metadata map[string]interface{}) (stage model.Stage, tagged, ok bool) {
	if name := metaString(metadata, "stage"); name != "" {
		stage, ok = model.ParseStage(name)
		return stage, true, ok
	}
	if frameType := metaString(metadata, "frame_type"); frameType != "" {
		stage, ok = model.ParseFrameType(frameType)
		return stage, true, ok
	}
	return "", false, false
}

func metaString(metadata map[string]interface{}, key string) string {
	if metadata == nil {
		return ""
	}
	if s, ok := metadata[key].(string); ok {
		return s
	}
	return ""
}
