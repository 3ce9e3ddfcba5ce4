package feedback

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/antgroup/datacrew/blueprint"
	"github.com/antgroup/datacrew/handoff"
	utilsjson "github.com/antgroup/datacrew/utils/json"
)

// JSON requires the final answer to be a JSON object.
func JSON() Func {
	return func(content string) *Result {
		if _, err := decodeObject(content); err != nil {
			return reject("Output must be valid JSON. Please format your response as a proper JSON object.")
		}
		return approve()
	}
}

// RequiredFields requires a JSON object answer carrying every field.
func RequiredFields(fields ...string) Func {
	return func(content string) *Result {
		obj, err := decodeObject(content)
		if err != nil {
			return reject("Output must be valid JSON. Please format your response as a proper JSON object.")
		}
		missing := make([]string, 0)
		for _, f := range fields {
			if _, ok := obj[f]; !ok {
				missing = append(missing, f)
			}
		}
		if len(missing) > 0 {
			return reject("Output is missing the following required fields: " + strings.Join(missing, ", "))
		}
		return approve()
	}
}

// Handoff checks the analyst blob. A blob without the data marker is
// accepted; a marker followed by unparsable CSV is not.
func Handoff() Func {
	return func(content string) *Result {
		h, err := handoff.Parse(content)
		if err != nil {
			return reject(fmt.Sprintf("%s. Emit the line %q exactly once.", err, handoff.Marker))
		}
		if strings.TrimSpace(h.Text) == "" {
			return reject("the summary before the data section is empty, explain your findings first")
		}
		if _, err := h.Table(); err != nil && !errors.Is(err, handoff.ErrNoData) {
			return reject("the data after " + handoff.Marker + " is not valid CSV with a header row: " + err.Error())
		}
		return approve()
	}
}

// Blueprint requires a valid visualization blueprint.
func Blueprint() Func {
	return func(content string) *Result {
		bp, err := blueprint.Parse(content)
		if err != nil {
			return reject("the visualization blueprint is not valid JSON: " + err.Error())
		}
		if err := bp.Validate(); err != nil {
			return reject("the visualization blueprint is invalid: " + err.Error())
		}
		return approve()
	}
}

func decodeObject(content string) (map[string]any, error) {
	content = utilsjson.TrimJsonString(strings.TrimSpace(content))
	obj := make(map[string]any)
	if err := utilsjson.Unmarshal([]byte(content), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}
