package tool

import (
	"context"
)

// Tool is a capability an agent can invoke with a string input.
type Tool interface {
	Name() string
	Description() string
	Schema() *PropertiesSchema
	Strict() bool
	// Call runs the tool. Failures the model should see are returned as
	// output text; a non-nil error is reserved for the caller.
	Call(ctx context.Context, input string) (string, error)
}

const (
	TypeJson   = "object"
	TypeString = "string"
	TypeArr    = "array"
	TypeInt    = "integer"
	TypeNum    = "number"
	TypeBool   = "boolean"
)

type PropertiesSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

type PropertySchema struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}
