package tools

import "errors"

// Sentinel errors for the tool registry and argument validation.
var (
	ErrNotFound         = errors.New("tool not found")
	ErrAlreadyExists    = errors.New("tool already registered")
	ErrEmptyName        = errors.New("tool name is empty")
	ErrSealed           = errors.New("tool registry is sealed")
	ErrNoHandler        = errors.New("tool has no handler")
	ErrInvalidSchema    = errors.New("invalid tool schema")
	ErrInvalidArguments = errors.New("invalid arguments")
)
