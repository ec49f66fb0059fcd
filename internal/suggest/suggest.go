// Package suggest asks an external model to propose scoring thresholds
// from a sample of unified profiles. Replies are parsed as structured JSON
// and merged onto the default rule set; nothing in a reply is executed.
package suggest

import (
	"context"
	"errors"

	"github.com/ignite/churn-radar/internal/domain"
	"github.com/ignite/churn-radar/internal/scoring"
)

var (
	// ErrDisabled is returned when no suggester is configured.
	ErrDisabled = errors.New("suggester not configured")
	// ErrNoRules is returned when a reply carries no parsable rule list.
	ErrNoRules = errors.New("suggestion contained no rules")
)

// Request is the input to a suggestion.
type Request struct {
	Profiles []domain.UnifiedProfile
	// SampleRows caps how many profiles are sent. Zero uses the
	// suggester's default.
	SampleRows int
}

// Suggestion is a validated rule set derived from a model reply.
type Suggestion struct {
	Rules     scoring.RuleSet `json:"rules"`
	Rationale string          `json:"rationale,omitempty"`
	// Adopted lists the fields whose threshold came from the reply. Fields
	// not listed kept the default threshold.
	Adopted []scoring.Field `json:"adopted"`
	ModelID string          `json:"model_id"`
}

// Suggester proposes a rule set for a set of profiles.
type Suggester interface {
	Suggest(ctx context.Context, req Request) (*Suggestion, error)
}
