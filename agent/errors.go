package agent

import "errors"

// ErrRetriesExceeded is returned when the agent keeps producing output the
// feedback chain rejects.
var ErrRetriesExceeded = errors.New("agent output rejected too many times")
