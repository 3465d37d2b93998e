package model

import (
	"strings"

	"golang.org/x/text/cases"
)

// Stage names a slot within a pipeline.
type Stage string

const (
	StageFirstFrame Stage = "first_frame"
	StageLastFrame  Stage = "last_frame"
	StageVoice      Stage = "voice"
	StageFinalVideo Stage = "final_video"
)

// Stages lists every stage in production order.
var Stages = []Stage{StageFirstFrame, StageLastFrame, StageVoice, StageFinalVideo}

var stageAliases = map[string]Stage{
	"first_frame": StageFirstFrame,
	"firstframe":  StageFirstFrame,
	"last_frame":  StageLastFrame,
	"lastframe":   StageLastFrame,
	"voice":       StageVoice,
	"audio":       StageVoice,
	"final_video": StageFinalVideo,
	"video":       StageFinalVideo,
	"final":       StageFinalVideo,
	"lipsync":     StageFinalVideo,
	"lip_sync":    StageFinalVideo,
	"animate":     StageFinalVideo,
}

var folder = cases.Fold()

func normalizeTag(tag string) string {
	tag = folder.String(strings.TrimSpace(tag))
	return strings.NewReplacer("-", "_", " ", "_").Replace(tag)
}

// ParseStage maps a stage name or one of its aliases to the canonical stage.
func ParseStage(name string) (Stage, bool) {
	s, ok := stageAliases[normalizeTag(name)]
	return s, ok
}

// ParseFrameType maps a frame_type tag ("first", "last") to its stage.
func ParseFrameType(frameType string) (Stage, bool) {
	switch normalizeTag(frameType) {
	case "first", "first_frame", "start":
		return StageFirstFrame, true
	case "last", "last_frame", "end":
		return StageLastFrame, true
	}
	return "", false
}

// Terminal reports whether completing the stage completes the whole pipeline.
func (s Stage) Terminal() bool {
	return s == StageFinalVideo
}

// OutputColumn is the column holding the stage's structured output.
func (s Stage) OutputColumn() string {
	return string(s) + "_output"
}

// FlagColumn is the column holding the stage's completion flag, empty for the
// terminal stage.
func (s Stage) FlagColumn() string {
	if s.Terminal() {
		return ""
	}
	return string(s) + "_complete"
}

func (s Stage) String() string {
	return string(s)
}
