package openai

import "errors"

var ErrMissingToken = errors.New("missing LLM API key")
