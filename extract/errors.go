package extract

import "fmt"

// ParseError reports a model reply that carries no usable JSON object.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("extract: %s", e.Reason)
}

// DateResolutionError reports a startDate/endDate value that could not be
// resolved to an instant.
type DateResolutionError struct {
	Field string
	Text  string
}

func (e *DateResolutionError) Error() string {
	return fmt.Sprintf("extract: cannot resolve %s %q", e.Field, e.Text)
}
