package validation

import (
	"errors"
	"strings"
)

// FieldError is one failed constraint, scoped to a form field. Repeated
// fields use an index suffix, e.g. "charges.1.amount".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is the result of a failed validation. A nil or empty Errors means
// the input is valid.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation: " + strings.Join(parts, "; ")
}

// For returns the first message for field, or "".
func (e Errors) For(field string) string {
	for _, fe := range e {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

// Map flattens the errors to field → first message, the shape the templates consume.
func (e Errors) Map() map[string]string {
	m := make(map[string]string, len(e))
	for _, fe := range e {
		if _, seen := m[fe.Field]; !seen {
			m[fe.Field] = fe.Message
		}
	}
	return m
}

// Only keeps the errors that belong to one of fields. "charges" also matches
// "charges.0.id".
func (e Errors) Only(fields []string) Errors {
	var out Errors
	for _, fe := range e {
		for _, f := range fields {
			if fe.Field == f || strings.HasPrefix(fe.Field, f+".") {
				out = append(out, fe)
				break
			}
		}
	}
	return out
}

func (e *Errors) add(field, msg string) {
	*e = append(*e, FieldError{Field: field, Message: msg})
}

// err converts to the error interface without the typed-nil trap.
func (e Errors) err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// AsErrors extracts Errors from err, or nil when err is not a validation failure.
func AsErrors(err error) Errors {
	var v Errors
	if errors.As(err, &v) {
		return v
	}
	return nil
}
