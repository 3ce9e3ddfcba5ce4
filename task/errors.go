package task

import "errors"

var (
	ErrUnknownGuardrail = errors.New("unknown guardrail")
	ErrNotFound         = errors.New("task not found")
	ErrMissingInput     = errors.New("missing input for placeholder")
	ErrInvalid          = errors.New("invalid task definition")
)
