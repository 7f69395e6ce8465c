package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims whitespace", "  stu_1  ", "stu_1"},
		{"strips control characters", "stu\x00_\x1b1", "stu_1"},
		{"keeps interior spaces", "a b", "a b"},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeString(tt.input); got != tt.want {
				t.Errorf("SanitizeString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateStudentID(t *testing.T) {
	if err := ValidateStudentID("stu_123"); err != nil {
		t.Errorf("expected valid id, got %v", err)
	}

	err := ValidateStudentID("")
	if err == nil {
		t.Fatal("expected error for empty id")
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if vErr.Field != "student_id" {
		t.Errorf("expected field student_id, got %s", vErr.Field)
	}

	if err := ValidateStudentID(strings.Repeat("x", 129)); err == nil {
		t.Error("expected error for oversized id")
	}
}
