package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxQuestionRunes bounds a question accepted at the service boundary.
const MaxQuestionRunes = 4000

// ValidateQuestion checks a user question before the query pipeline runs.
// The question itself is passed on unmodified; only blank or oversized input
// is rejected.
func ValidateQuestion(q string) error {
	if strings.TrimSpace(q) == "" {
		return ErrEmptyQuestion
	}
	if n := utf8.RuneCountInString(q); n > MaxQuestionRunes {
		return fmt.Errorf("%w: %d runes (max %d)", ErrQuestionTooLong, n, MaxQuestionRunes)
	}
	return nil
}

// IsEmptyValue reports whether a metadata value counts as absent.
func IsEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
