package form

import (
	"slices"
	"strings"
)

// Errors maps a field name to its validation message.
type Errors map[string]string

// Has reports whether field failed validation.
func (e Errors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// Get returns the message for field, or an empty string.
func (e Errors) Get(field string) string {
	return e[field]
}

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	slices.Sort(fields)

	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = e[f]
	}
	return "invalid form: " + strings.Join(msgs, "; ")
}
