package service

import "errors"

var (
	ErrFileNotFound     = errors.New("file not found")
	ErrPipelineNotFound = errors.New("pipeline not found")
	ErrUnknownStage     = errors.New("unknown pipeline stage")
	ErrInvalidStatus    = errors.New("invalid status")
)
