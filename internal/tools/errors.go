package tools

import "errors"

var (
	// ErrUnknownTool is returned when the requested tool is not registered
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidToolInput is returned when the input cannot be decoded into
	// the tool's input shape; the handler is not invoked
	ErrInvalidToolInput = errors.New("invalid tool input")
	// ErrToolExecution is returned when the handler fails
	ErrToolExecution = errors.New("tool execution failed")
	// ErrNotFound is returned by single-record tools when no record has the id
	ErrNotFound = errors.New("record not found")
)
