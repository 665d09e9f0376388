package models

import "errors"

var (
	// ErrValidation marks malformed input. Match with errors.Is.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks an unknown id, version or handle. Expired cache
	// entries report it too.
	ErrNotFound = errors.New("not found")

	// ErrBudgetExceeded is returned when a call would exceed a token budget.
	ErrBudgetExceeded = errors.New("budget exceeded")
)
