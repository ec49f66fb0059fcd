package rules

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/churn-radar/internal/scoring"
)

// mockRepo is an in-memory repository for testing.
type mockRepo struct {
	mu    sync.Mutex
	store map[string][]SavedRuleSet
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[string][]SavedRuleSet)}
}

func (m *mockRepo) Insert(_ context.Context, rs *SavedRuleSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs.Version = len(m.store[rs.Name]) + 1
	rs.CreatedAt = time.Now()
	m.store[rs.Name] = append(m.store[rs.Name], *rs)
	return nil
}

func (m *mockRepo) Latest(_ context.Context, name string) (*SavedRuleSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions := m.store[name]
	if len(versions) == 0 {
		return nil, ErrNotFound
	}
	v := versions[len(versions)-1]
	return &v, nil
}

func (m *mockRepo) Version(_ context.Context, name string, version int) (*SavedRuleSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions := m.store[name]
	if version < 1 || version > len(versions) {
		return nil, fmt.Errorf("%s v%d: %w", name, version, ErrNotFound)
	}
	v := versions[version-1]
	return &v, nil
}

func (m *mockRepo) List(_ context.Context) ([]SavedRuleSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SavedRuleSet
	for _, versions := range m.store {
		out = append(out, versions[len(versions)-1])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func TestService_SaveVersions(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	rs := scoring.RuleSet{{Field: scoring.FieldPaymentFailures, Operator: ">=", Threshold: 1, Weight: 0.5}}
	first, err := svc.Save(ctx, " Aggressive ", rs, "")
	require.NoError(t, err)
	assert.Equal(t, "aggressive", first.Name)
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, OriginManual, first.Origin)
	assert.Equal(t, scoring.OpGreaterOrEqual, first.Rules[0].Operator)

	rs[0].Threshold = 2
	second, err := svc.Save(ctx, "aggressive", rs, OriginSuggested)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)

	latest, err := svc.Get(ctx, "aggressive")
	require.NoError(t, err)
	assert.Equal(t, 2.0, latest.Rules[0].Threshold)

	v1, err := svc.GetVersion(ctx, "aggressive", 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v1.Rules[0].Threshold)
}

func TestService_SaveRejectsInvalid(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Save(ctx, "bad", scoring.RuleSet{{Field: "age", Operator: "gt", Weight: 1}}, "")
	assert.True(t, errors.Is(err, scoring.ErrRuleSet))
	assert.Empty(t, repo.store)

	_, err = svc.Save(ctx, "default", scoring.DefaultRuleSet(), "")
	assert.True(t, errors.Is(err, ErrReservedName))

	_, err = svc.Save(ctx, "has space", scoring.DefaultRuleSet(), "")
	assert.True(t, errors.Is(err, ErrInvalidName))
}

func TestService_DefaultAndResolve(t *testing.T) {
	svc := NewService(nil)
	ctx := context.Background()

	rs, err := svc.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, scoring.DefaultRuleSet(), rs)

	_, err = svc.Resolve(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, DefaultName, all[0].Name)
}

func TestService_List(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()
	_, err := svc.Save(ctx, "b-rules", scoring.DefaultRuleSet(), OriginFile)
	require.NoError(t, err)
	_, err = svc.Save(ctx, "a-rules", scoring.DefaultRuleSet(), OriginFile)
	require.NoError(t, err)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"default", "a-rules", "b-rules"}, []string{all[0].Name, all[1].Name, all[2].Name})
}
