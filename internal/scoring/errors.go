package scoring

import (
	"errors"
	"fmt"
)

var (
	// ErrRuleSet matches every *RuleSetError.
	ErrRuleSet = errors.New("invalid rule set")
	// ErrMissingField matches every *MissingFieldError.
	ErrMissingField = errors.New("missing scoring field")
)

// RuleSetError describes the first invalid rule found in a rule set.
type RuleSetError struct {
	Index  int
	Field  string
	Reason string
}

func (e *RuleSetError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid rule set: %s", e.Reason)
	}
	return fmt.Sprintf("invalid rule %d (%s): %s", e.Index, e.Field, e.Reason)
}

func (e *RuleSetError) Is(target error) bool { return target == ErrRuleSet }

// MissingFieldError reports a record lacking a numeric scoring input.
type MissingFieldError struct {
	Email string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("record %s: missing or non-numeric field %s", e.Email, e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }
