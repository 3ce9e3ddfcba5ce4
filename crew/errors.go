package crew

import "errors"

var (
	ErrUnknownProcess  = errors.New("unknown process")
	ErrEmptyQuery      = errors.New("empty query")
	ErrUnknownAgent    = errors.New("task assigned to unknown agent")
	ErrUnknownCallback = errors.New("unknown task callback")
	ErrMissingManager  = errors.New("hierarchical process needs a manager agent")
	ErrNoAnalysis      = errors.New("no analysis task defined")
	ErrAnalysisFailed  = errors.New("analysis failed")
	ErrGuardrail       = errors.New("task output rejected by guardrail")
	ErrGraphMismatch   = errors.New("stage graph does not match tasks")
)
