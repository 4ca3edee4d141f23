package core

import (
	"errors"
)

var (
	ErrPipelineBuild      = errors.New("pipeline build failed")
	ErrAllPipelinesFailed = errors.New("every pipeline build failed this frame")
	ErrResourceNotReady   = errors.New("resource not ready")
	ErrShaderNotFound     = errors.New("shader not registered")
	ErrInvariant          = errors.New("invariant violation")
	ErrInvalidHandle      = errors.New("invalid handle")
	ErrQueueFull          = errors.New("queue is full")
	ErrQueueEmpty         = errors.New("queue is empty")
	ErrFenceTimeout       = errors.New("fence wait timed out")
	ErrUnknown            = errors.New("unknown")
)
