package service

import (
	"context"
	"fmt"
	"time"

	"ugc-forge/app/config"
	"ugc-forge/app/logger"
	"ugc-forge/app/model"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// TimedOutMessage is recorded on files the sweeper gives up on.
const TimedOutMessage = "generation timed out"

const sweepBatchSize = 100

// StaleSweeper fails files that have been processing for too long.
type StaleSweeper struct {
	db     *gorm.DB
	logger *logger.Logger
	files  *FileStatusService
	config config.SweeperConfig
	cron   *cron.Cron
	now    func() time.Time
}

func NewStaleSweeper(db *gorm.DB, log *logger.Logger, files *FileStatusService, cfg config.SweeperConfig) *StaleSweeper {
	return &StaleSweeper{
		db:     db,
		logger: log,
		files:  files,
		config: cfg,
		now:    time.Now,
	}
}

// Start schedules Sweep on the configured cron schedule.
func (s *StaleSweeper) Start() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Errorf("stale sweep failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweeper %q: %w", s.config.Schedule, err)
	}
	s.cron.Start()
	s.logger.Infof("stale sweeper started, schedule=%s stale_after=%s", s.config.Schedule, s.config.StaleAfter)
	return nil
}

// Stop waits for a running sweep to finish.
func (s *StaleSweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Sweep marks every file stuck in processing past the cutoff as failed and
// returns how many it updated.
func (s *StaleSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.config.StaleAfter)

	var ids []string
	err := s.db.WithContext(ctx).Model(&model.File{}).
		Where("generation_status = ? AND updated_at < ?", model.GenerationStatusProcessing, cutoff).
		Order("updated_at").
		Limit(sweepBatchSize).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("find stale files: %w", err)
	}

	swept := 0
	for _, id := range ids {
		res, err := s.files.ApplyFileUpdate(ctx, FileUpdate{
			FileID:       id,
			Status:       model.GenerationStatusFailed,
			ErrorMessage: TimedOutMessage,
			ExpectStatus: model.GenerationStatusProcessing,
		})
		if err != nil {
			s.logger.Warnf("fail stale file %s: %v", id, err)
			continue
		}
		if !res.Skipped {
			swept++
		}
	}
	if swept > 0 {
		s.logger.Infof("marked %d stale files as failed", swept)
	}
	return swept, nil
}
