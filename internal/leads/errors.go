package leads

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")

	// ErrFormMismatch is returned when the body names a different form than the URL
	ErrFormMismatch = errors.New("form in body does not match path")
)

// ValidationError lists the rules each field failed.
type ValidationError struct {
	Fields map[string][]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+strings.Join(e.Fields[name], ","))
	}
	return "invalid fields: " + strings.Join(parts, "; ")
}
