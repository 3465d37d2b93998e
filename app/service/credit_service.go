package service

import (
	"context"
	"fmt"

	"ugc-forge/app/logger"
	"ugc-forge/app/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreditService records credit charges for completed generations.
type CreditService struct {
	db     *gorm.DB
	logger *logger.Logger
}

func NewCreditService(db *gorm.DB, log *logger.Logger) *CreditService {
	return &CreditService{db: db, logger: log}
}

// charge writes one ledger row. Charging the same reference and stage twice is a no-op.
func (s *CreditService) charge(db *gorm.DB, refType, refID string, stage model.Stage, userID string, amount int) error {
	if userID == "" || amount <= 0 {
		return nil
	}

	row := model.CreditCharge{
		ID:            uuid.NewString(),
		UserID:        userID,
		ReferenceType: refType,
		ReferenceID:   refID,
		Stage:         string(stage),
		Amount:        amount,
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("charge %d credits for %s %s: %w", amount, refType, refID, res.Error)
	}
	if res.RowsAffected == 0 {
		s.logger.Debugf("credits already charged: %s %s stage=%s", refType, refID, stage)
		return nil
	}
	s.logger.Infof("charged %d credits to %s for %s %s stage=%s", amount, userID, refType, refID, stage)
	return nil
}

// ListCharges returns the newest charges of a user and the sum of all of them.
func (s *CreditService) ListCharges(ctx context.Context, userID string, limit int) ([]model.CreditCharge, int64, error) {
	db := s.db.WithContext(ctx)

	var charges []model.CreditCharge
	if err := db.Where("user_id = ?", userID).Order("created_at desc").Limit(limit).Find(&charges).Error; err != nil {
		return nil, 0, err
	}

	var total int64
	if err := db.Model(&model.CreditCharge{}).Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").Scan(&total).Error; err != nil {
		return nil, 0, err
	}
	return charges, total, nil
}
