package handoff

import "errors"

var (
	ErrNoData          = errors.New("no data for visualization")
	ErrDuplicateMarker = errors.New("data marker appears more than once")
)
