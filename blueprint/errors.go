package blueprint

import "errors"

var (
	ErrMalformed         = errors.New("malformed visualization blueprint")
	ErrMissingCode       = errors.New("python_code_to_generate_figure is missing")
	ErrMissingData       = errors.New("data_for_visualization is missing")
	ErrMissingValue      = errors.New("data_for_visualization is missing 'value'")
	ErrUnsupportedFormat = errors.New("unsupported 'data_for_visualization.format'")
	ErrNoneWithContent   = errors.New("visualization_type is none but content fields are set")
	ErrNoRows            = errors.New("data_for_visualization has no rows")
)
