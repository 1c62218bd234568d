package extract

import (
	"strings"
	"time"

	naturaldate "github.com/tj/go-naturaldate"
)

// Layouts carrying their own offset; tried first.
var offsetLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
}

// Offset-less layouts, interpreted in the fixed source zone.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// resolveDate turns one timestamp string from the model into a UTC instant.
// The model is asked for ISO timestamps, but relative expressions can leak
// through unresolved, so natural language is accepted as a fallback with a
// forward bias: ambiguous dates land in the future, never the past.
func (x *Extractor) resolveDate(field, text string) (time.Time, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, &DateResolutionError{Field: field, Text: text}
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, x.loc); err == nil {
			return t.UTC(), nil
		}
	}

	ref := x.now().In(x.loc)
	t, err := naturaldate.Parse(s, ref, naturaldate.WithDirection(naturaldate.Future))
	if err != nil {
		return time.Time{}, &DateResolutionError{Field: field, Text: text}
	}
	return t.UTC(), nil
}
