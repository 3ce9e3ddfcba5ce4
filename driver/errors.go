package driver

import "errors"

var (
	ErrCycle        = errors.New("stage graph has a cycle")
	ErrUnknownStage = errors.New("unknown stage")
	ErrDuplicate    = errors.New("duplicate stage")
	ErrEmptyGraph   = errors.New("stage graph has no nodes")
)
