package smart

import (
	"errors"
	"fmt"
)

var (
	// ErrToolTimeout marks a tool invocation killed by its per-call deadline.
	ErrToolTimeout = errors.New("tool invocation timed out")

	// ErrToolNotFound marks a missing or non-executable tool binary.
	ErrToolNotFound = errors.New("tool binary not found")

	// ErrSerialMismatch marks a SMART record whose serial number does not
	// match the drive it was captured for.
	ErrSerialMismatch = errors.New("smart serial number does not match drive")
)

// ToolError wraps a failed tool invocation with the command that caused it.
type ToolError struct {
	Tool string
	Args []string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
