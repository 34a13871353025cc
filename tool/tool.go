// Package tool implements the function / tool calling subsystem that lets the
// engine invoke structured capabilities (APIs, computations, side effects)
// with schema validated arguments and consistent error handling.
package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/lovekaizen/agentsea/internal/schema"
)

// Tool defines the interface for extending agent capabilities with external
// functions.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe if used concurrently
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should be descriptive and follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	// This schema is used for parameter validation and LLM function calling.
	Parameters() map[string]any

	// Call executes the tool with structured arguments. Arguments are parsed
	// from JSON and validated against the tool's schema before Call runs.
	// Implementations must respect ctx cancellation for long operations.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// Sentinel errors reported by the Registry. Check with errors.Is.
var (
	// ErrDuplicateTool is returned by Register when the name is already taken.
	ErrDuplicateTool = errors.New("tool already registered")
	// ErrToolNotFound is returned when no tool with the given name exists.
	ErrToolNotFound = errors.New("tool not found")
)

// Error codes carried by ToolError.
const (
	CodeNotFound   = "NOT_FOUND"
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeTimeout    = "TIMEOUT"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = schema.ValidationError

// ToolError represents errors that occur during tool lookup or execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap lets errors.Is match the registry sentinels through a ToolError.
func (e *ToolError) Unwrap() error {
	switch e.Code {
	case CodeNotFound:
		return ErrToolNotFound
	case CodeTimeout:
		return context.DeadlineExceeded
	}
	return nil
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string, details any) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
		Details: details,
	}
}
