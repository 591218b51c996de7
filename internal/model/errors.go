package model

import "errors"

var (
	ErrNotFound               = errors.New("resource not found")
	ErrInvalidInput           = errors.New("invalid input data")
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidStageTransition = errors.New("invalid pipeline stage transition")
	ErrStoryRewriteFailed     = errors.New("story rewrite failed")
	ErrRunHandedOff           = errors.New("pipeline run already handed off")
)
