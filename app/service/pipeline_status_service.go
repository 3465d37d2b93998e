package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ugc-forge/app/logger"
	"ugc-forge/app/model"
	"ugc-forge/app/notify"

	"gorm.io/gorm"
)

// StageUpdate is a status report for one stage of a pipeline. An empty Stage
// addresses the aggregate status only.
type StageUpdate struct {
	PipelineID   string
	Stage        model.Stage
	Status       string
	Output       *model.StageOutput
	Progress     *int
	ErrorMessage string
	UserID       string
	CreditsCost  int
}

// StageResult describes what an update did to the pipeline record.
type StageResult struct {
	PipelineID string
	Stage      model.Stage
	Status     string
	Changed    []string
	Skipped    bool
}

// PipelineStatusService applies stage reports to pipeline records.
type PipelineStatusService struct {
	db        *gorm.DB
	logger    *logger.Logger
	credits   *CreditService
	publisher notify.Publisher
	now       func() time.Time
}

func NewPipelineStatusService(db *gorm.DB, log *logger.Logger, credits *CreditService, publisher notify.Publisher) *PipelineStatusService {
	return &PipelineStatusService{
		db:        db,
		logger:    log,
		credits:   credits,
		publisher: publisher,
		now:       time.Now,
	}
}

// ApplyStageUpdate loads the pipeline and applies upd to it.
func (s *PipelineStatusService) ApplyStageUpdate(ctx context.Context, upd StageUpdate) (*StageResult, error) {
	if !model.IsValidGenerationStatus(upd.Status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, upd.Status)
	}

	db := s.db.WithContext(ctx)
	pipeline, err := s.load(db, upd.PipelineID)
	if err != nil {
		return nil, err
	}

	result, err := s.apply(db, pipeline, upd)
	if err != nil {
		return nil, err
	}
	if err := s.credits.charge(db, model.ReferenceTypePipeline, pipeline.ID, upd.Stage, upd.UserID, creditsFor(upd)); err != nil {
		s.logger.Errorf("pipeline %s: %v", pipeline.ID, err)
	}

	dispatch(s.logger, s.publisher, pipelineEvents(result, upd.Progress, s.now())...)
	return result, nil
}

func creditsFor(upd StageUpdate) int {
	if upd.Status != model.GenerationStatusCompleted {
		return 0
	}
	return upd.CreditsCost
}

func (s *PipelineStatusService) load(db *gorm.DB, id string) (*model.Pipeline, error) {
	var pipeline model.Pipeline
	if err := db.Where("id = ?", id).Take(&pipeline).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPipelineNotFound, id)
		}
		return nil, fmt.Errorf("load pipeline %s: %w", id, err)
	}
	return &pipeline, nil
}

// apply writes the columns that upd changes on an already loaded pipeline. There
// is no row lock: two stages reported at the same time may overwrite each other's
// aggregate status.
func (s *PipelineStatusService) apply(db *gorm.DB, pipeline *model.Pipeline, upd StageUpdate) (*StageResult, error) {
	now := s.now()
	updates := stageChanges(pipeline, upd, now)

	result := &StageResult{
		PipelineID: pipeline.ID,
		Stage:      upd.Stage,
		Status:     pipeline.Status,
	}
	if len(updates) == 0 {
		result.Skipped = true
		s.logger.Debugf("pipeline %s stage=%s status=%s: nothing to change", pipeline.ID, upd.Stage, upd.Status)
		return result, nil
	}

	for col := range updates {
		result.Changed = append(result.Changed, col)
	}
	updates["updated_at"] = now

	if err := db.Model(&model.Pipeline{}).Where("id = ?", pipeline.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update pipeline %s: %w", pipeline.ID, err)
	}
	if status, ok := updates["status"].(string); ok {
		result.Status = status
	}

	s.logger.Infof("pipeline %s stage=%s status=%s updated: %v", pipeline.ID, upd.Stage, upd.Status, result.Changed)
	return result, nil
}

// stageChanges computes the column changes upd makes to p, leaving out values
// that are already stored.
func stageChanges(p *model.Pipeline, upd StageUpdate, now time.Time) map[string]interface{} {
	updates := map[string]interface{}{}

	switch upd.Status {
	case model.GenerationStatusCompleted:
		if upd.Stage == "" {
			setIfChanged(updates, "status", p.Status, model.PipelineStatusCompleted)
			break
		}

		if upd.Output != nil && upd.Output.URL != "" {
			current := p.Output(upd.Stage)
			if !p.Complete(upd.Stage) || !current.SameResult(upd.Output) {
				out := *upd.Output
				out.GeneratedAt = now
				updates[upd.Stage.OutputColumn()] = out
			}
		}
		if col := upd.Stage.FlagColumn(); col != "" && !p.Complete(upd.Stage) {
			updates[col] = true
		}

		target := model.PipelineStatusDraft
		if upd.Stage.Terminal() {
			target = model.PipelineStatusCompleted
		}
		setIfChanged(updates, "status", p.Status, target)

	case model.GenerationStatusFailed:
		setIfChanged(updates, "status", p.Status, model.PipelineStatusFailed)
		if p.Progress != 0 {
			updates["progress"] = 0
		}

	case model.GenerationStatusProcessing:
		if upd.Progress != nil && *upd.Progress != p.Progress {
			updates["progress"] = *upd.Progress
		}
		if upd.Stage == "" {
			setIfChanged(updates, "status", p.Status, model.PipelineStatusProcessing)
		}
	}

	return updates
}

func setIfChanged(updates map[string]interface{}, col, current, target string) {
	if current != target {
		updates[col] = target
	}
}

func pipelineEvents(result *StageResult, progress *int, at time.Time) []notify.Event {
	if result == nil || result.Skipped {
		return nil
	}
	return []notify.Event{{
		Kind:       notify.KindPipeline,
		ID:         result.PipelineID,
		Status:     result.Status,
		Stage:      string(result.Stage),
		PipelineID: result.PipelineID,
		Progress:   progress,
		OccurredAt: at,
	}}
}
