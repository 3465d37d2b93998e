package model

import (
	"time"

	"gorm.io/datatypes"
)

// File is a single generation job's persisted result and status.
type File struct {
	ID               string            `gorm:"primaryKey;size:128" json:"id"`
	UserID           string            `gorm:"size:128;index" json:"user_id"`
	ProjectID        string            `gorm:"size:128;index" json:"project_id"`
	Name             string            `gorm:"size:255" json:"name"`
	Type             string            `gorm:"size:50;index" json:"type"`
	GenerationStatus string            `gorm:"size:20;index;default:processing" json:"generation_status"`
	Progress         *int              `json:"progress"`
	PreviewURL       string            `gorm:"size:2048" json:"preview_url"`
	DownloadURL      string            `gorm:"size:2048" json:"download_url"`
	ScriptOutput     string            `gorm:"type:text" json:"script_output"`
	AudioURL         string            `gorm:"size:2048" json:"audio_url"`
	ErrorMessage     *string           `gorm:"type:text" json:"error_message"`
	Metadata         datatypes.JSONMap `json:"metadata"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (File) TableName() string {
	return "files"
}

// Generation status values shared by files and pipeline stage notifications.
const (
	GenerationStatusProcessing = "processing"
	GenerationStatusCompleted  = "completed"
	GenerationStatusFailed     = "failed"
)

// IsValidGenerationStatus reports whether s is a known generation status.
func IsValidGenerationStatus(s string) bool {
	return s == GenerationStatusProcessing || s == GenerationStatusCompleted || s == GenerationStatusFailed
}
