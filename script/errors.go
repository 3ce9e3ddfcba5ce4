package script

import "errors"

var (
	ErrTimeout        = errors.New("execution timed out")
	ErrStepLimit      = errors.New("execution step limit exceeded")
	ErrSentinelNotSet = errors.New("result variable was not set")
)
