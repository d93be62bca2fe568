package convert

import (
	"errors"
	"fmt"
)

// ErrInvalidToolOutput reports tool output that is not valid text where text
// is required.
var ErrInvalidToolOutput = errors.New("tool output is not valid UTF-8")

// ToolNotFoundError reports an extraction tool missing from the search path.
// It invalidates the entire run and is checked before any network work.
type ToolNotFoundError struct {
	Tool string
	Err  error
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("%s not found in PATH: %v", e.Tool, e.Err)
}

func (e *ToolNotFoundError) Unwrap() error {
	return e.Err
}

// ToolExitError reports a non-zero exit from an extraction tool. Fatal for
// that archive's conversion.
type ToolExitError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *ToolExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed: %v: %s", e.Tool, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ToolExitError) Unwrap() error {
	return e.Err
}
