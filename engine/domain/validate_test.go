package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateQuestion_Valid(t *testing.T) {
	for _, q := range []string{"What color is the sky?", "  padded  ", "é"} {
		if err := ValidateQuestion(q); err != nil {
			t.Errorf("expected valid for %q, got %v", q, err)
		}
	}
}

func TestValidateQuestion_Empty(t *testing.T) {
	for _, q := range []string{"", "   ", "\n\t"} {
		if err := ValidateQuestion(q); !errors.Is(err, ErrEmptyQuestion) {
			t.Errorf("expected ErrEmptyQuestion for %q, got %v", q, err)
		}
	}
}

func TestValidateQuestion_TooLong(t *testing.T) {
	err := ValidateQuestion(strings.Repeat("a", MaxQuestionRunes+1))
	if !errors.Is(err, ErrQuestionTooLong) {
		t.Fatalf("expected ErrQuestionTooLong, got %v", err)
	}
	if err := ValidateQuestion(strings.Repeat("é", MaxQuestionRunes)); err != nil {
		t.Fatalf("rune count at limit should pass: %v", err)
	}
}

func TestIsEmptyValue(t *testing.T) {
	cases := []struct {
		v    any
		want bool
	}{
		{nil, true},
		{"", true},
		{" ", false},
		{0, false},
		{false, false},
		{"x", false},
	}
	for _, c := range cases {
		if got := IsEmptyValue(c.v); got != c.want {
			t.Errorf("IsEmptyValue(%#v) = %v, want %v", c.v, got, c.want)
		}
	}
}
