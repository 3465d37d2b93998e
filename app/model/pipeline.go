package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Pipeline aggregates the stages of one composite generation job.
type Pipeline struct {
	ID                 string       `gorm:"primaryKey;size:128" json:"id"`
	UserID             string       `gorm:"size:128;index" json:"user_id"`
	ProjectID          string       `gorm:"size:128;index" json:"project_id"`
	Name               string       `gorm:"size:255" json:"name"`
	Status             string       `gorm:"size:20;index;default:draft" json:"status"`
	Progress           int          `gorm:"default:0" json:"progress"`
	FirstFrameOutput   *StageOutput `gorm:"type:json" json:"first_frame_output"`
	LastFrameOutput    *StageOutput `gorm:"type:json" json:"last_frame_output"`
	VoiceOutput        *StageOutput `gorm:"type:json" json:"voice_output"`
	FinalVideoOutput   *StageOutput `gorm:"type:json" json:"final_video_output"`
	FirstFrameComplete bool         `gorm:"default:false" json:"first_frame_complete"`
	LastFrameComplete  bool         `gorm:"default:false" json:"last_frame_complete"`
	VoiceComplete      bool         `gorm:"default:false" json:"voice_complete"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

func (Pipeline) TableName() string {
	return "pipelines"
}

// Pipeline aggregate status values
const (
	PipelineStatusDraft      = "draft"
	PipelineStatusProcessing = "processing"
	PipelineStatusCompleted  = "completed"
	PipelineStatusFailed     = "failed"
)

// Output returns the stored output of a stage.
func (p *Pipeline) Output(stage Stage) *StageOutput {
	switch stage {
	case StageFirstFrame:
		return p.FirstFrameOutput
	case StageLastFrame:
		return p.LastFrameOutput
	case StageVoice:
		return p.VoiceOutput
	case StageFinalVideo:
		return p.FinalVideoOutput
	}
	return nil
}

// Complete reports whether a stage has finished. The final video stage has no flag
// of its own and counts as complete once its output exists.
func (p *Pipeline) Complete(stage Stage) bool {
	switch stage {
	case StageFirstFrame:
		return p.FirstFrameComplete
	case StageLastFrame:
		return p.LastFrameComplete
	case StageVoice:
		return p.VoiceComplete
	case StageFinalVideo:
		return p.FinalVideoOutput != nil
	}
	return false
}

// StageOutput is the structured value stored in a stage slot.
type StageOutput struct {
	URL             string          `json:"url"`
	GeneratedAt     time.Time       `json:"generated_at"`
	DurationSeconds *float64        `json:"duration_seconds,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
}

// SameResult reports whether two outputs describe the same generated artifact,
// ignoring when they were recorded.
func (o *StageOutput) SameResult(other *StageOutput) bool {
	if o == nil || other == nil {
		return o == other
	}
	if o.URL != other.URL || !bytes.Equal(compactJSON(o.Data), compactJSON(other.Data)) {
		return false
	}
	if o.DurationSeconds == nil || other.DurationSeconds == nil {
		return o.DurationSeconds == other.DurationSeconds
	}
	return *o.DurationSeconds == *other.DurationSeconds
}

// compactJSON strips insignificant whitespace so stored and incoming data compare
// equal. Invalid JSON is returned unchanged.
func compactJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

// Value implements driver.Valuer: struct -> JSON text
func (o StageOutput) Value() (driver.Value, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner: JSON text -> struct
func (o *StageOutput) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, o)
	case string:
		return json.Unmarshal([]byte(v), o)
	default:
		return fmt.Errorf("unsupported stage output value %T", value)
	}
}
