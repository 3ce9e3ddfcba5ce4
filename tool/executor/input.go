package executor

import (
	"strings"

	"github.com/antgroup/datacrew/utils/json"
)

// Input is the JSON form of a tool call. Plain text input is taken as code.
type Input struct {
	Code           string `json:"code"`
	PlotCode       string `json:"python_plot_code"`
	AnalystDataStr string `json:"analyst_data_str"`
}

func parseInput(raw string) Input {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var in Input
		if err := json.Unmarshal([]byte(trimmed), &in); err == nil {
			if in.Code == "" {
				in.Code = in.PlotCode
			}
			if in.Code != "" {
				in.Code = stripFence(in.Code)
				return in
			}
		}
	}
	return Input{Code: stripFence(trimmed)}
}

// stripFence removes a surrounding markdown code fence, with or without a
// language tag.
func stripFence(code string) string {
	code = strings.TrimSpace(code)
	if !strings.HasPrefix(code, "```") {
		return code
	}
	code = strings.TrimPrefix(code, "```")
	if nl := strings.IndexByte(code, '\n'); nl >= 0 {
		code = code[nl+1:]
	} else {
		code = ""
	}
	code = strings.TrimSpace(code)
	return strings.TrimSpace(strings.TrimSuffix(code, "```"))
}
