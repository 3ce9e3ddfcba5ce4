package openai

import (
	"net/http"
	"time"
)

type options struct {
	token        string
	model        string
	baseURL      string
	organization string
	timeout      time.Duration
	httpClient   *http.Client
}

type Option func(*options)

// WithToken sets the API key. Gemini keys work against the default gateway.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithModel overrides DefaultModel. Empty keeps the default.
func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = model
		}
	}
}

// WithBaseURL points the client at another OpenAI-compatible endpoint.
// Empty keeps DefaultBaseURL.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		if baseURL != "" {
			o.baseURL = baseURL
		}
	}
}

func WithOrganization(org string) Option {
	return func(o *options) {
		o.organization = org
	}
}

// WithTimeout bounds every HTTP exchange, including the whole stream.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}
