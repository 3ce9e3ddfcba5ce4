package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/antgroup/datacrew/llm"
	"github.com/antgroup/datacrew/schema"
	utilsjson "github.com/antgroup/datacrew/utils/json"
)

// parseOutput reads either tool calls or final messages from a reply. Text
// that is not JSON, and JSON objects without "cate" or "action", are taken
// as the final answer verbatim.
func parseOutput(name string, output *llm.Generation) ([]schema.StepAction, []schema.Message, error) {
	if len(output.ToolCalls) > 0 {
		return parseToolCalls(output.ToolCalls), nil, nil
	}
	content := strings.TrimSpace(output.Content)
	if content == "" {
		return nil, nil, errors.New("content is empty")
	}
	trimmed := utilsjson.TrimJsonString(content)
	valid := json.Valid([]byte(trimmed))
	if !valid && strings.Contains(content, `"action"`) {
		return nil, nil, errors.New("tool request is not valid json")
	}
	if !valid || (!jsonLed(content) && !strings.Contains(trimmed, `"cate"`) && !strings.Contains(trimmed, `"action"`)) {
		return nil, []schema.Message{finalMessage(name, content)}, nil
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil, nil, err
		}
		if len(items) == 0 {
			return nil, nil, errors.New("no valid messages found")
		}
		actions := make([]schema.StepAction, 0, len(items))
		messages := make([]schema.Message, 0, len(items))
		for i, item := range items {
			var probe struct {
				Action string `json:"action"`
				Cate   string `json:"cate"`
			}
			if json.Unmarshal(item, &probe) != nil || (probe.Action == "" && probe.Cate == "") {
				// plain data, not a list of requests
				return nil, []schema.Message{finalMessage(name, content)}, nil
			}
			action, message, err := parseObject(name, string(item))
			if err != nil {
				return nil, nil, fmt.Errorf("item %d: %w", i, err)
			}
			if action != nil {
				actions = append(actions, *action)
			} else {
				messages = append(messages, *message)
			}
		}
		if len(actions) > 0 {
			return actions, nil, nil
		}
		return nil, messages, nil
	}

	action, message, err := parseObject(name, trimmed)
	if err != nil {
		return nil, nil, err
	}
	if action != nil {
		return []schema.StepAction{*action}, nil, nil
	}
	return nil, []schema.Message{*message}, nil
}

func parseToolCalls(toolCalls []llm.ToolCall) []schema.StepAction {
	actions := make([]schema.StepAction, 0, len(toolCalls))
	for _, toolCall := range toolCalls {
		if toolCall.Function == nil {
			continue
		}
		logBytes, _ := json.Marshal(toolCall)
		actions = append(actions, schema.StepAction{
			Id:     toolCall.ID,
			Action: toolCall.Function.Name,
			Input:  toolCall.Function.Arguments,
			Log:    string(logBytes),
		})
	}
	return actions
}

func parseObject(name, content string) (*schema.StepAction, *schema.Message, error) {
	raw := make(map[string]any)
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, nil, err
	}
	if act, ok := raw["action"].(string); ok && act != "" {
		thought, _ := raw["thought"].(string)
		return &schema.StepAction{
			Action:  act,
			Thought: thought,
			Input:   stringify(raw["input"]),
			Log:     content,
		}, nil, nil
	}
	if _, ok := raw["cate"]; !ok {
		m := finalMessage(name, content)
		return nil, &m, nil
	}
	message, err := parseMessage(name, content, raw)
	return nil, message, err
}

func jsonLed(content string) bool {
	return strings.HasPrefix(content, "{") || strings.HasPrefix(content, "[") ||
		strings.HasPrefix(content, "```")
}

func finalMessage(name, content string) schema.Message {
	return schema.Message{
		Type:    schema.MsgTypeEnd,
		Content: strings.TrimSpace(content),
		Sender:  name,
		Log:     content,
	}
}

// parseMessage accepts {"cate": "END"|"MSG", "content": ...}. Object
// content is kept as its JSON text, array receivers are joined.
func parseMessage(name, content string, raw map[string]any) (*schema.Message, error) {
	cate, ok := raw["cate"].(string)
	if !ok {
		return nil, errors.New("'cate' field must be a string")
	}
	switch strings.ToUpper(cate) {
	case schema.MsgTypeEnd, schema.MsgTypeMsg:
		cate = strings.ToUpper(cate)
	default:
		return nil, fmt.Errorf("unknown 'cate' %q, use %s", cate, schema.MsgTypeEnd)
	}
	if _, ok := raw["content"]; !ok {
		return nil, errors.New("message missing required 'content' field")
	}
	thought, _ := raw["thought"].(string)
	message := &schema.Message{
		Type:    cate,
		Thought: thought,
		Content: stringify(raw["content"]),
		Sender:  name,
		Log:     content,
	}
	switch r := raw["receiver"].(type) {
	case string:
		message.Receiver = r
	case []any:
		parts := make([]string, 0, len(r))
		for _, p := range r {
			parts = append(parts, stringify(p))
		}
		message.Receiver = strings.Join(parts, ",")
	}
	return message, nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		b, _ := utilsjson.Marshal(x)
		return string(b)
	}
}
