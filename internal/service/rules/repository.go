package rules

import (
	"context"
	"time"

	"github.com/ignite/churn-radar/internal/scoring"
)

// Origins of a saved rule set.
const (
	OriginManual    = "manual"
	OriginFile      = "file"
	OriginSuggested = "suggested"
)

// SavedRuleSet is one stored version of a named rule set.
type SavedRuleSet struct {
	Name      string          `json:"name"`
	Version   int             `json:"version"`
	Rules     scoring.RuleSet `json:"rules"`
	Origin    string          `json:"origin"`
	CreatedAt time.Time       `json:"created_at"`
}

// Repository defines the data access contract for rule sets.
type Repository interface {
	// Insert stores rs as the next version of its name and fills in
	// Version and CreatedAt.
	Insert(ctx context.Context, rs *SavedRuleSet) error

	// Latest returns the highest version of name, or ErrNotFound.
	Latest(ctx context.Context, name string) (*SavedRuleSet, error)

	// Version returns a specific version of name, or ErrNotFound.
	Version(ctx context.Context, name string, version int) (*SavedRuleSet, error)

	// List returns the latest version of every name, ordered by name.
	List(ctx context.Context) ([]SavedRuleSet, error)
}
