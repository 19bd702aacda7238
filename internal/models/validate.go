package models

import (
	"strings"

	"medtrack/internal/apperr"
)

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func fieldError(field, problem string) error {
	return apperr.Validationf("Validation error: %s %s", field, problem)
}
