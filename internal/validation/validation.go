package validation

import (
	"fmt"
	"strings"
	"unicode"
)

const maxIDLength = 128

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// SanitizeString strips control characters and surrounding whitespace.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// ValidateStudentID checks a student identifier. Institution imports carry
// legacy id formats, so only presence and length are enforced here.
func ValidateStudentID(id string) error {
	if id == "" {
		return &ValidationError{
			Field:   "student_id",
			Message: "is required",
		}
	}

	if len(id) > maxIDLength {
		return &ValidationError{
			Field:   "student_id",
			Message: fmt.Sprintf("cannot exceed %d characters", maxIDLength),
		}
	}

	return nil
}
