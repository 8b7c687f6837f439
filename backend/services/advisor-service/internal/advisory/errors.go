package advisory

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDefinition marks a misconfigured advisory function. It is returned at
// registration time, never from Invoke.
var ErrInvalidDefinition = errors.New("advisory: invalid definition")

// Violation names one broken rule. Path is the field name, "field[i]" for array
// elements, or "$" for the document itself.
type Violation struct {
	Path string `json:"path"`
	Rule string `json:"rule"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Rule)
}

func joinViolations(violations []Violation) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, "; ")
}

// ValidationError is returned when the caller's request fails the input schema.
// The model is never called in that case.
type ValidationError struct {
	Function   string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid request: %s", e.Function, joinViolations(e.Violations))
}

// Fields lists the offending field paths in declaration order.
func (e *ValidationError) Fields() []string {
	out := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		out = append(out, v.Path)
	}
	return out
}

// OutputContractError is returned when the model answered with something that does
// not satisfy the output schema. The malformed value is discarded.
type OutputContractError struct {
	Function   string
	Violations []Violation
	Cause      error
}

func (e *OutputContractError) Error() string {
	msg := fmt.Sprintf("%s: model response violates output contract", e.Function)
	if len(e.Violations) > 0 {
		msg += ": " + joinViolations(e.Violations)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (%v)", e.Cause)
	}
	return msg
}

func (e *OutputContractError) Unwrap() error { return e.Cause }

// RemoteCallError wraps a failure of the model call itself.
type RemoteCallError struct {
	Function string
	Err      error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("%s: model call failed: %v", e.Function, e.Err)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

// Describe turns an invocation error into the single message shown to the user.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var validationErr *ValidationError
	var contractErr *OutputContractError
	var remoteErr *RemoteCallError
	switch {
	case errors.As(err, &validationErr):
		return "Invalid request: " + joinViolations(validationErr.Violations)
	case errors.As(err, &contractErr):
		return "The model returned an unexpected response. Please try again."
	case errors.As(err, &remoteErr):
		return remoteErr.Err.Error()
	default:
		return err.Error()
	}
}
