package rules

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ignite/churn-radar/internal/scoring"
)

// DefaultName is the reserved name of the built-in rule set.
const DefaultName = "default"

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,63}$`)

// Service implements rule set business logic. It is safe for concurrent use.
type Service struct {
	repo Repository
}

// NewService creates a rules service backed by the given repository. A nil
// repository is allowed; only the built-in rule set is then available.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Save validates rules and stores them as the next version of name.
func (s *Service) Save(ctx context.Context, name string, rs scoring.RuleSet, origin string) (*SavedRuleSet, error) {
	name = normalizeName(name)
	if name == DefaultName {
		return nil, ErrReservedName
	}
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, fmt.Errorf("save rule set %s: no repository configured", name)
	}
	if origin == "" {
		origin = OriginManual
	}

	saved := &SavedRuleSet{Name: name, Rules: rs.Canonical(), Origin: origin}
	if err := s.repo.Insert(ctx, saved); err != nil {
		return nil, fmt.Errorf("save rule set %s: %w", name, err)
	}
	return saved, nil
}

// Get returns the latest version of name. The reserved default name
// returns the built-in rule set at version 0.
func (s *Service) Get(ctx context.Context, name string) (*SavedRuleSet, error) {
	name = normalizeName(name)
	if name == DefaultName || name == "" {
		return &SavedRuleSet{Name: DefaultName, Rules: scoring.DefaultRuleSet(), Origin: "builtin"}, nil
	}
	if s.repo == nil {
		return nil, fmt.Errorf("rule set %s: %w", name, ErrNotFound)
	}
	return s.repo.Latest(ctx, name)
}

// GetVersion returns a specific stored version of name.
func (s *Service) GetVersion(ctx context.Context, name string, version int) (*SavedRuleSet, error) {
	name = normalizeName(name)
	if s.repo == nil || name == DefaultName {
		return nil, fmt.Errorf("rule set %s v%d: %w", name, version, ErrNotFound)
	}
	return s.repo.Version(ctx, name, version)
}

// Resolve returns the rules stored under name, or the built-in rules when
// name is empty.
func (s *Service) Resolve(ctx context.Context, name string) (scoring.RuleSet, error) {
	saved, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return saved.Rules, nil
}

// List returns the built-in rule set followed by the latest version of
// every stored rule set.
func (s *Service) List(ctx context.Context) ([]SavedRuleSet, error) {
	builtin, _ := s.Get(ctx, DefaultName)
	out := []SavedRuleSet{*builtin}
	if s.repo == nil {
		return out, nil
	}
	stored, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rule sets: %w", err)
	}
	return append(out, stored...), nil
}
