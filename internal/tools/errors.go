package tools

import "errors"

var (
	// ErrInvalidArgument reports missing or malformed tool input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrToolExecution reports a domain failure inside a tool, such as an
	// unknown city or an unsupported unit pair.
	ErrToolExecution = errors.New("tool execution failed")
	// ErrUnknownTool reports a registry miss.
	ErrUnknownTool = errors.New("unknown tool")
)
