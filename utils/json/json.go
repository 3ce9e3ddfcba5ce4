package json

import (
	"bytes"
	stdjson "encoding/json"
	"strings"

	"github.com/tidwall/pretty"
)

type RawMessage = stdjson.RawMessage

func Marshal(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := stdjson.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func Unmarshal(data []byte, v any) error {
	return stdjson.Unmarshal(data, v)
}

func Valid(s string) bool {
	return stdjson.Valid([]byte(s))
}

// Pretty returns an indented rendering of a JSON document; invalid input is returned unchanged.
func Pretty(data []byte) string {
	if !stdjson.Valid(data) {
		return string(data)
	}
	return string(pretty.Pretty(data))
}

// TrimJsonString strips a markdown fence or surrounding prose from an LLM
// reply, keeping the span from the first '{' (or '[') to its last closing
// counterpart.
func TrimJsonString(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return content
	}
	obj := strings.IndexByte(content, '{')
	arr := strings.IndexByte(content, '[')
	open, closer := obj, byte('}')
	if obj == -1 || (arr != -1 && arr < obj) {
		open, closer = arr, ']'
	}
	if open == -1 {
		return content
	}
	end := strings.LastIndexByte(content, closer)
	if end <= open {
		return content
	}
	return content[open : end+1]
}
