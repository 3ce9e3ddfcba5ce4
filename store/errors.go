package store

import "errors"

var (
	ErrDisabled = errors.New("run history disabled: empty dsn")
	ErrNotFound = errors.New("run not found")
)
