package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ignite/churn-radar/internal/service/rules"
)

const ruleSetSchema = `
	CREATE TABLE IF NOT EXISTS churn_rule_sets (
		name       TEXT        NOT NULL,
		version    INTEGER     NOT NULL,
		rules      JSONB       NOT NULL,
		origin     TEXT        NOT NULL DEFAULT 'manual',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (name, version)
	)`

// RuleSetRepo implements rules.Repository against PostgreSQL.
type RuleSetRepo struct{ db *sql.DB }

// NewRuleSetRepo creates a Postgres-backed rule set repository.
func NewRuleSetRepo(db *sql.DB) *RuleSetRepo { return &RuleSetRepo{db: db} }

// EnsureSchema creates the rule set table when it does not exist.
func (r *RuleSetRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, ruleSetSchema); err != nil {
		return fmt.Errorf("ensure churn_rule_sets: %w", err)
	}
	return nil
}

func (r *RuleSetRepo) Insert(ctx context.Context, rs *rules.SavedRuleSet) error {
	body, err := json.Marshal(rs.Rules)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO churn_rule_sets (name, version, rules, origin, created_at)
		SELECT $1, COALESCE(MAX(version), 0) + 1, $2, $3, NOW()
		FROM churn_rule_sets WHERE name = $1
		RETURNING version, created_at
	`, rs.Name, body, rs.Origin).Scan(&rs.Version, &rs.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert rule set: %w", err)
	}
	return nil
}

func (r *RuleSetRepo) Latest(ctx context.Context, name string) (*rules.SavedRuleSet, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT name, version, rules, origin, created_at
		FROM churn_rule_sets
		WHERE name = $1
		ORDER BY version DESC
		LIMIT 1
	`, name)
	return scanRuleSet(row)
}

func (r *RuleSetRepo) Version(ctx context.Context, name string, version int) (*rules.SavedRuleSet, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT name, version, rules, origin, created_at
		FROM churn_rule_sets
		WHERE name = $1 AND version = $2
	`, name, version)
	return scanRuleSet(row)
}

func (r *RuleSetRepo) List(ctx context.Context) ([]rules.SavedRuleSet, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ON (name) name, version, rules, origin, created_at
		FROM churn_rule_sets
		ORDER BY name, version DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list rule sets: %w", err)
	}
	defer rows.Close()

	var out []rules.SavedRuleSet
	for rows.Next() {
		rs, err := scanRuleSet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rs)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRuleSet(row rowScanner) (*rules.SavedRuleSet, error) {
	var (
		rs   rules.SavedRuleSet
		body []byte
	)
	if err := row.Scan(&rs.Name, &rs.Version, &body, &rs.Origin, &rs.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rules.ErrNotFound
		}
		return nil, fmt.Errorf("scan rule set: %w", err)
	}
	if err := json.Unmarshal(body, &rs.Rules); err != nil {
		return nil, fmt.Errorf("decode rule set %s v%d: %w", rs.Name, rs.Version, err)
	}
	return &rs, nil
}
