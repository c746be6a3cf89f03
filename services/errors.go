// Package services holds the booking workflow rules, admin statistics and upload
// checks shared by the HTTP handlers.
package services

import "fmt"

// ValidationError is a user-facing input error, answered with 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
