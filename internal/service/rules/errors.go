package rules

import "errors"

// Sentinel errors for the rules service layer.
var (
	ErrNotFound     = errors.New("rule set not found")
	ErrInvalidName  = errors.New("invalid rule set name")
	ErrReservedName = errors.New("rule set name is reserved")
)
