package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/snowflakedb/gosnowflake"

	"github.com/ignite/churn-radar/internal/datanorm"
)

// Client runs extract queries against Snowflake.
type Client struct {
	db *sql.DB
}

// DSN renders cfg as a gosnowflake data source name.
func DSN(cfg Config) (string, error) {
	return gosnowflake.DSN(&gosnowflake.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
		Warehouse: cfg.Warehouse,
		Role:      cfg.Role,
	})
}

// NewClient creates a new Snowflake client
func NewClient(cfg Config) (*Client, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build snowflake dsn: %w", err)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open snowflake connection: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return NewClientWithDB(db), nil
}

// NewClientWithDB wraps an open database handle.
func NewClientWithDB(db *sql.DB) *Client {
	return &Client{db: db}
}

// Close closes the database connection
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping tests the database connection
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB exposes the handle for SQL-backed sources.
func (c *Client) DB() *sql.DB {
	return c.db
}

// QueryTable runs an extract query and returns its result as a table for src.
func (c *Client) QueryTable(ctx context.Context, src datanorm.Source, query string) (datanorm.Table, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return datanorm.Table{}, fmt.Errorf("snowflake %s query: %w", src, err)
	}
	return datanorm.ReadRows(src, rows)
}
