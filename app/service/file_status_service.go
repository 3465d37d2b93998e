package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ugc-forge/app/config"
	"ugc-forge/app/logger"
	"ugc-forge/app/model"
	"ugc-forge/app/notify"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FileUpdate is a status report for a single file.
type FileUpdate struct {
	FileID       string
	Status       string
	Progress     *int
	PreviewURL   string
	DownloadURL  string
	ScriptOutput string
	AudioURL     string
	ErrorMessage string
	Metadata     map[string]interface{}
	UserID       string
	CreditsCost  int

	// ExpectStatus, when set, applies the update only while the file still has
	// this generation status. Otherwise the update is skipped.
	ExpectStatus string
}

// HasOutput reports whether the update carries any output location.
func (u FileUpdate) HasOutput() bool {
	return u.PreviewURL != "" || u.DownloadURL != "" || u.AudioURL != ""
}

// FileResult describes the file write and the pipeline sync that followed it.
type FileResult struct {
	FileID          string
	Status          string
	Skipped         bool
	PipelineID      string
	Stage           model.Stage
	Inferred        bool
	PipelineStatus  string
	PipelineSynced  bool
	PipelineSkipped bool
}

// FileStatusService writes file outcomes and mirrors them onto the linked pipeline.
type FileStatusService struct {
	db        *gorm.DB
	logger    *logger.Logger
	config    config.ReconcileConfig
	resolver  *StageResolver
	pipelines *PipelineStatusService
	credits   *CreditService
	publisher notify.Publisher
	now       func() time.Time
}

func NewFileStatusService(db *gorm.DB, log *logger.Logger, cfg config.ReconcileConfig, pipelines *PipelineStatusService, credits *CreditService, publisher notify.Publisher) *FileStatusService {
	return &FileStatusService{
		db:        db,
		logger:    log,
		config:    cfg,
		resolver:  NewStageResolver(log, cfg.InferFirstFrame),
		pipelines: pipelines,
		credits:   credits,
		publisher: publisher,
		now:       time.Now,
	}
}

// ApplyFileUpdate writes upd to its file and then syncs the linked pipeline stage.
//
// Without atomic writes a failed pipeline sync leaves the file write in place and
// is reported through PipelineSynced. With atomic writes both happen in one
// transaction and any failure rolls everything back.
func (s *FileStatusService) ApplyFileUpdate(ctx context.Context, upd FileUpdate) (*FileResult, error) {
	if !model.IsValidGenerationStatus(upd.Status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, upd.Status)
	}

	var (
		result *FileResult
		events []notify.Event
	)

	db := s.db.WithContext(ctx)
	if s.config.AtomicWrites {
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			result, events, err = s.reconcile(tx, upd, true)
			return err
		})
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		result, events, err = s.reconcile(db, upd, false)
		if err != nil {
			return nil, err
		}
	}

	dispatch(s.logger, s.publisher, events...)
	return result, nil
}

func (s *FileStatusService) reconcile(db *gorm.DB, upd FileUpdate, strict bool) (*FileResult, []notify.Event, error) {
	var file model.File
	if err := db.Where("id = ?", upd.FileID).Take(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrFileNotFound, upd.FileID)
		}
		return nil, nil, fmt.Errorf("load file %s: %w", upd.FileID, err)
	}

	if upd.ExpectStatus != "" && file.GenerationStatus != upd.ExpectStatus {
		return s.skipped(&file, upd), nil, nil
	}

	now := s.now()
	updates, progress := s.fileChanges(upd, now)

	metadata := mergeMetadata(file.Metadata, upd.Metadata)
	if len(upd.Metadata) > 0 {
		updates["metadata"] = metadata
	}

	query := db.Model(&model.File{}).Where("id = ?", file.ID)
	if upd.ExpectStatus != "" {
		query = query.Where("generation_status = ?", upd.ExpectStatus)
	}
	res := query.Updates(updates)
	if res.Error != nil {
		return nil, nil, fmt.Errorf("update file %s: %w", file.ID, res.Error)
	}
	if upd.ExpectStatus != "" && res.RowsAffected == 0 {
		return s.skipped(&file, upd), nil, nil
	}
	s.logger.Infof("file %s generation_status=%s", file.ID, upd.Status)

	if upd.Status == model.GenerationStatusCompleted {
		if err := s.credits.charge(db, model.ReferenceTypeFile, file.ID, "", upd.UserID, upd.CreditsCost); err != nil {
			if strict {
				return nil, nil, err
			}
			s.logger.Errorf("file %s: %v", file.ID, err)
		}
	}

	result := &FileResult{FileID: file.ID, Status: upd.Status}
	events := []notify.Event{{
		Kind:       notify.KindFile,
		ID:         file.ID,
		Status:     upd.Status,
		Progress:   progress,
		OccurredAt: now,
	}}

	stageResult, target, err := s.syncPipeline(db, file.ID, metadata, upd)
	if target != nil {
		result.PipelineID = target.Pipeline.ID
		result.Stage = target.Stage
		result.Inferred = target.Inferred
		events[0].PipelineID = target.Pipeline.ID
		events[0].Stage = string(target.Stage)
	}
	if err != nil {
		if strict {
			return nil, nil, fmt.Errorf("sync pipeline for file %s: %w", file.ID, err)
		}
		s.logger.Errorf("file %s updated but pipeline sync failed: %v", file.ID, err)
		return result, events, nil
	}
	if stageResult != nil {
		result.PipelineSynced = true
		result.PipelineSkipped = stageResult.Skipped
		result.PipelineStatus = stageResult.Status
		events = append(events, pipelineEvents(stageResult, upd.Progress, now)...)
	}
	return result, events, nil
}

func (s *FileStatusService) skipped(file *model.File, upd FileUpdate) *FileResult {
	s.logger.Infof("file %s left unchanged: status is no longer %s", file.ID, upd.ExpectStatus)
	return &FileResult{FileID: file.ID, Status: file.GenerationStatus, Skipped: true}
}

// fileChanges builds the column updates for a file and returns the progress that
// was written, if any.
func (s *FileStatusService) fileChanges(upd FileUpdate, now time.Time) (map[string]interface{}, *int) {
	updates := map[string]interface{}{
		"generation_status": upd.Status,
		"updated_at":        now,
	}

	var progress *int
	switch upd.Status {
	case model.GenerationStatusCompleted:
		if upd.PreviewURL != "" {
			updates["preview_url"] = upd.PreviewURL
		}
		if upd.DownloadURL != "" {
			updates["download_url"] = upd.DownloadURL
		}
		if upd.ScriptOutput != "" {
			updates["script_output"] = upd.ScriptOutput
		}
		if upd.AudioURL != "" {
			updates["audio_url"] = upd.AudioURL
		}
		updates["error_message"] = nil
		p := 100
		if upd.Progress != nil {
			p = *upd.Progress
		}
		progress = &p

	case model.GenerationStatusFailed:
		msg := upd.ErrorMessage
		if msg == "" {
			msg = s.config.DefaultErrorMessage
		}
		updates["error_message"] = msg
		p := 0
		progress = &p

	case model.GenerationStatusProcessing:
		progress = upd.Progress
	}

	if progress != nil {
		updates["progress"] = *progress
	}
	return updates, progress
}

// syncPipeline resolves the file's pipeline stage and applies the file's outcome
// to it. A nil target means the file belongs to no pipeline.
func (s *FileStatusService) syncPipeline(db *gorm.DB, fileID string, metadata map[string]interface{}, upd FileUpdate) (*StageResult, *StageTarget, error) {
	target, err := s.resolver.Resolve(db, fileID, metadata, upd.HasOutput())
	if err != nil || target == nil {
		return nil, nil, err
	}

	stageUpd := StageUpdate{
		PipelineID:   target.Pipeline.ID,
		Stage:        target.Stage,
		Status:       upd.Status,
		Progress:     upd.Progress,
		ErrorMessage: upd.ErrorMessage,
	}
	if upd.Status == model.GenerationStatusCompleted {
		if url := stageOutputURL(target.Stage, upd); url != "" {
			stageUpd.Output = &model.StageOutput{
				URL:             url,
				DurationSeconds: metaFloat(metadata, "duration_seconds"),
			}
		}
	}

	res, err := s.pipelines.apply(db, target.Pipeline, stageUpd)
	return res, target, err
}

// stageOutputURL picks the file URL that best represents the stage's artifact.
func stageOutputURL(stage model.Stage, upd FileUpdate) string {
	candidates := []string{upd.DownloadURL, upd.PreviewURL, upd.AudioURL}
	if stage == model.StageVoice {
		candidates = []string{upd.AudioURL, upd.DownloadURL, upd.PreviewURL}
	}
	for _, u := range candidates {
		if u != "" {
			return u
		}
	}
	return ""
}

// mergeMetadata overlays incoming keys on the stored metadata.
func mergeMetadata(stored datatypes.JSONMap, incoming map[string]interface{}) datatypes.JSONMap {
	merged := make(datatypes.JSONMap, len(stored)+len(incoming))
	for k, v := range stored {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}

func metaFloat(metadata map[string]interface{}, key string) *float64 {
	switch v := metadata[key].(type) {
	case float64:
		if v >= 0 {
			return &v
		}
	case int:
		f := float64(v)
		if f >= 0 {
			return &f
		}
	}
	return nil
}
