package mcp

import "errors"

var ErrNoCommand = errors.New("mcp server has no command")
