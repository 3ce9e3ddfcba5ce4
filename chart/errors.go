package chart

import "errors"

var (
	ErrSaveNotAllowed = errors.New("saving to this path is not allowed")
	ErrUnknownKind    = errors.New("unknown chart kind")
	ErrNoSeries       = errors.New("figure has no series")
	ErrShape          = errors.New("series length does not match categories")
)
