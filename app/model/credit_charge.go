package model

import "time"

// CreditCharge records credits spent on one completed generation. A reference is
// charged at most once per stage.
type CreditCharge struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	UserID        string    `gorm:"size:128;not null;index" json:"user_id"`
	ReferenceType string    `gorm:"size:20;not null;uniqueIndex:idx_credit_reference" json:"reference_type"`
	ReferenceID   string    `gorm:"size:128;not null;uniqueIndex:idx_credit_reference" json:"reference_id"`
	Stage         string    `gorm:"size:30;not null;default:'';uniqueIndex:idx_credit_reference" json:"stage"`
	Amount        int       `gorm:"not null" json:"amount"`
	CreatedAt     time.Time `json:"created_at"`
}

func (CreditCharge) TableName() string {
	return "credit_charges"
}

const (
	ReferenceTypeFile     = "file"
	ReferenceTypePipeline = "pipeline"
)
