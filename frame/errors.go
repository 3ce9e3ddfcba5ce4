package frame

import "errors"

var (
	ErrNoColumns      = errors.New("table has no columns")
	ErrUnknownColumn  = errors.New("unknown column")
	ErrNotNumeric     = errors.New("column is not numeric")
	ErrUnsupportedOp  = errors.New("unsupported comparison operator")
	ErrUnsupportedAgg = errors.New("unsupported aggregation")
	ErrRaggedColumns  = errors.New("all arrays must be of the same length")
	ErrNoSource       = errors.New("no datasets are configured")
	ErrEmptyInput     = errors.New("no columns to parse from input")
	ErrNotRecords     = errors.New("expected a JSON array of objects")
	ErrNotColumns     = errors.New("expected a JSON object of arrays")
)
