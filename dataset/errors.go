package dataset

import "errors"

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrNotAllowed      = errors.New("file is not a configured dataset")
	ErrNoPath          = errors.New("dataset path is empty")
)
