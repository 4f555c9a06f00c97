package service

import (
	"errors"
	"fmt"
)

// Kinds of ConfigError.
var (
	ErrDuplicateName     = errors.New("duplicate tool name")
	ErrInvalidDescriptor = errors.New("invalid tool descriptor")
)

// Kinds of ToolError.
var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrHandlerFailed    = errors.New("tool handler failed")
)

// ConfigError is raised while building the registry. It is fatal at startup.
type ConfigError struct {
	Kind error
	Name string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s %q", e.Kind, e.Name)
}

func (e *ConfigError) Unwrap() error { return e.Kind }

// ToolError is reported in the error field of an RPC response and never
// closes the session.
type ToolError struct {
	Kind  error
	Tool  string
	Cause error
}

func (e *ToolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %q: %s", e.Kind, e.Tool, e.Cause)
	}
	return fmt.Sprintf("%s %q", e.Kind, e.Tool)
}

func (e *ToolError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// BackendError is a non-success response from the arithmetic service.
type BackendError struct {
	Status  int
	Code    string
	Message string
}

func (e *BackendError) Error() string {
	return e.Message
}
