// Package payload decodes and validates inbound status notifications before
// anything is persisted.
package payload

import (
	"encoding/json"
	"strings"

	"ugc-forge/app/model"
)

// Kind tells which record a notification updates.
type Kind int

const (
	KindContent Kind = iota
	KindPipelineStage
)

// PipelineTypePrefix marks a notification as a pipeline stage update.
const PipelineTypePrefix = "pipeline_"

// ContentUpdate reports progress or an outcome for a single file.
type ContentUpdate struct {
	Type             string         `json:"type" validate:"max=64"`
	FileID           string         `json:"file_id" validate:"required,max=128"`
	Status           string         `json:"status" validate:"omitempty,oneof=processing completed failed"`
	GenerationStatus string         `json:"generation_status" validate:"omitempty,oneof=processing completed failed"`
	Progress         *int           `json:"progress" validate:"omitempty,min=0,max=100"`
	PreviewURL       string         `json:"preview_url" validate:"omitempty,http_url,max=2048"`
	DownloadURL      string         `json:"download_url" validate:"omitempty,http_url,max=2048"`
	ScriptOutput     string         `json:"script_output" validate:"max=100000"`
	AudioURL         string         `json:"audio_url" validate:"omitempty,http_url,max=2048"`
	ErrorMessage     string         `json:"error_message" validate:"max=2000"`
	Metadata         map[string]any `json:"metadata"`
	UserID           string         `json:"user_id" validate:"max=128"`
	CreditsCost      *int           `json:"credits_cost" validate:"omitempty,gt=0"`
}

// EffectiveStatus prefers generation_status over status when both are sent.
func (c *ContentUpdate) EffectiveStatus() string {
	if c.GenerationStatus != "" {
		return c.GenerationStatus
	}
	return c.Status
}

// StageOutput is the artifact produced by a pipeline stage.
type StageOutput struct {
	URL             string          `json:"url" validate:"required,http_url,max=2048"`
	DurationSeconds *float64        `json:"duration_seconds" validate:"omitempty,gte=0"`
	Data            json.RawMessage `json:"data"`
}

// PipelineStageUpdate reports progress or an outcome for one stage of a pipeline.
type PipelineStageUpdate struct {
	Type         string       `json:"type" validate:"required,startswith=pipeline_,max=64"`
	PipelineID   string       `json:"pipeline_id" validate:"required,max=128"`
	Status       string       `json:"status" validate:"omitempty,oneof=processing completed failed"`
	Output       *StageOutput `json:"output"`
	Progress     *int         `json:"progress" validate:"omitempty,min=0,max=100"`
	ErrorMessage string       `json:"error_message" validate:"max=2000"`
	UserID       string       `json:"user_id" validate:"max=128"`
	CreditsCost  *int         `json:"credits_cost" validate:"omitempty,gt=0"`

	// Stage is resolved from Type during Parse.
	Stage model.Stage `json:"-" validate:"-"`
}

// Notification is a parsed and validated inbound payload. Exactly one of Content
// and Pipeline is set, matching Kind.
type Notification struct {
	Kind     Kind
	Content  *ContentUpdate
	Pipeline *PipelineStageUpdate
}

// Classify decides from the type tag which shape a payload has.
func Classify(typeTag string) Kind {
	if strings.HasPrefix(typeTag, PipelineTypePrefix) {
		return KindPipelineStage
	}
	return KindContent
}

// Parse decodes body, classifies it and validates the result. Any problem with
// the payload is returned as *ValidationError.
func Parse(body []byte) (*Notification, error) {
	var probe struct {
		Type json.RawMessage `json:"type"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, newValidationError(Issue{Field: "body", Message: "must be a JSON object"})
	}

	var typeTag string
	if len(probe.Type) > 0 && string(probe.Type) != "null" {
		if err := json.Unmarshal(probe.Type, &typeTag); err != nil {
			return nil, newValidationError(Issue{Field: "type", Message: "must be a string"})
		}
	}

	if Classify(typeTag) == KindPipelineStage {
		update, err := parsePipeline(body)
		if err != nil {
			return nil, err
		}
		return &Notification{Kind: KindPipelineStage, Pipeline: update}, nil
	}

	update, err := parseContent(body)
	if err != nil {
		return nil, err
	}
	return &Notification{Kind: KindContent, Content: update}, nil
}

func parseContent(body []byte) (*ContentUpdate, error) {
	var update ContentUpdate
	if err := decode(body, &update); err != nil {
		return nil, err
	}
	issues := validateStruct(&update)
	if update.EffectiveStatus() == "" {
		issues = append(issues, Issue{Field: "status", Message: "is required"})
	}
	if len(issues) > 0 {
		return nil, newValidationError(issues...)
	}
	return &update, nil
}

func parsePipeline(body []byte) (*PipelineStageUpdate, error) {
	var update PipelineStageUpdate
	if err := decode(body, &update); err != nil {
		return nil, err
	}

	issues := validateStruct(&update)

	suffix := strings.TrimPrefix(update.Type, PipelineTypePrefix)
	stage, ok := model.ParseStage(suffix)
	if ok {
		update.Stage = stage
	} else if !hasIssue(issues, "type") {
		issues = append(issues, Issue{Field: "type", Message: "unknown pipeline stage " + suffix})
	}

	if update.Status == "" {
		switch {
		case update.Output != nil && update.Output.URL != "":
			update.Status = model.GenerationStatusCompleted
		case update.ErrorMessage != "":
			update.Status = model.GenerationStatusFailed
		default:
			if !hasIssue(issues, "status") {
				issues = append(issues, Issue{Field: "status", Message: "is required when neither output nor error_message is given"})
			}
		}
	}
	if update.Status == model.GenerationStatusCompleted && update.Output == nil {
		issues = append(issues, Issue{Field: "output", Message: "is required when status is completed"})
	}

	if len(issues) > 0 {
		return nil, newValidationError(issues...)
	}
	return &update, nil
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		if typeErr, ok := err.(*json.UnmarshalTypeError); ok {
			field := typeErr.Field
			if field == "" {
				field = "body"
			}
			return newValidationError(Issue{Field: field, Message: "must be of type " + jsonTypeName(typeErr.Type.Kind().String())})
		}
		return newValidationError(Issue{Field: "body", Message: "malformed JSON"})
	}
	return nil
}

func jsonTypeName(kind string) string {
	switch kind {
	case "int", "int64", "float64":
		return "number"
	case "map", "struct":
		return "object"
	case "slice":
		return "array"
	}
	return kind
}

func hasIssue(issues []Issue, field string) bool {
	for _, i := range issues {
		if i.Field == field {
			return true
		}
	}
	return false
}
