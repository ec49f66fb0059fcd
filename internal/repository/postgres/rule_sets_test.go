package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/churn-radar/internal/scoring"
	"github.com/ignite/churn-radar/internal/service/rules"
)

var ruleSetColumns = []string{"name", "version", "rules", "origin", "created_at"}

func TestRuleSetRepo_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO churn_rule_sets")).
		WithArgs("strict", sqlmock.AnyArg(), rules.OriginManual).
		WillReturnRows(sqlmock.NewRows([]string{"version", "created_at"}).AddRow(3, created))

	rs := &rules.SavedRuleSet{Name: "strict", Rules: scoring.DefaultRuleSet(), Origin: rules.OriginManual}
	require.NoError(t, NewRuleSetRepo(db).Insert(context.Background(), rs))
	assert.Equal(t, 3, rs.Version)
	assert.Equal(t, created, rs.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRuleSetRepo_Latest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	body := []byte(`[{"field":"payment_failures","operator":"gte","threshold":1,"weight":0.5}]`)
	mock.ExpectQuery("SELECT name, version, rules, origin, created_at").
		WithArgs("strict").
		WillReturnRows(sqlmock.NewRows(ruleSetColumns).AddRow("strict", 2, body, "file", time.Now()))

	rs, err := NewRuleSetRepo(db).Latest(context.Background(), "strict")
	require.NoError(t, err)
	assert.Equal(t, 2, rs.Version)
	require.Len(t, rs.Rules, 1)
	assert.Equal(t, scoring.FieldPaymentFailures, rs.Rules[0].Field)
	assert.Equal(t, 0.5, rs.Rules[0].Weight)
}

func TestRuleSetRepo_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT name, version").
		WithArgs("missing", 4).
		WillReturnRows(sqlmock.NewRows(ruleSetColumns))

	_, err = NewRuleSetRepo(db).Version(context.Background(), "missing", 4)
	assert.True(t, errors.Is(err, rules.ErrNotFound))
}

func TestRuleSetRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT DISTINCT ON").
		WillReturnRows(sqlmock.NewRows(ruleSetColumns).
			AddRow("a", 1, []byte(`[]`), "manual", now).
			AddRow("b", 5, []byte(`[]`), "suggested", now))

	all, err := NewRuleSetRepo(db).List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[1].Name)
	assert.Equal(t, 5, all[1].Version)
}

func TestRuleSetRepo_EnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS churn_rule_sets").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, NewRuleSetRepo(db).EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
