package source

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/churn-radar/internal/datanorm"
)

// SQLLoader runs a query against a database handle. Result columns become
// the table header, so queries should alias columns to the names the
// normalizer recognizes.
type SQLLoader struct {
	Source datanorm.Source
	DB     *sql.DB
	Query  string
	Driver string
}

func (l SQLLoader) Load(ctx context.Context) (datanorm.Table, error) {
	rows, err := l.DB.QueryContext(ctx, l.Query)
	if err != nil {
		return datanorm.Table{}, fmt.Errorf("query: %w", err)
	}
	return datanorm.ReadRows(l.Source, rows)
}

func (l SQLLoader) Describe() string {
	if l.Driver == "" {
		return "sql"
	}
	return l.Driver
}

// TableQuerier runs an extract query and returns a table.
type TableQuerier interface {
	QueryTable(ctx context.Context, src datanorm.Source, query string) (datanorm.Table, error)
}

// WarehouseLoader runs a query through a warehouse client such as Snowflake.
type WarehouseLoader struct {
	Source  datanorm.Source
	Querier TableQuerier
	Query   string
}

func (l WarehouseLoader) Load(ctx context.Context) (datanorm.Table, error) {
	return l.Querier.QueryTable(ctx, l.Source, l.Query)
}

func (l WarehouseLoader) Describe() string { return "snowflake" }
