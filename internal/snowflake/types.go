package snowflake

import (
	"github.com/ignite/churn-radar/internal/config"
)

// Config holds Snowflake database configuration
type Config struct {
	Account   string `yaml:"account"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Warehouse string `yaml:"warehouse"`
	Role      string `yaml:"role"`
}

// FromConfig builds a client config. A connection string fills any field
// not set explicitly.
func FromConfig(c config.SnowflakeConfig) Config {
	cfg := Config{
		Account:   c.Account,
		User:      c.User,
		Password:  c.Password,
		Database:  c.Database,
		Schema:    c.Schema,
		Warehouse: c.Warehouse,
		Role:      c.Role,
	}
	if c.ConnectionString == "" {
		return cfg
	}
	parsed := ParseConnectionString(c.ConnectionString)
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&cfg.Account, parsed.Account)
	fill(&cfg.User, parsed.User)
	fill(&cfg.Password, parsed.Password)
	fill(&cfg.Database, parsed.Database)
	fill(&cfg.Schema, parsed.Schema)
	fill(&cfg.Warehouse, parsed.Warehouse)
	fill(&cfg.Role, parsed.Role)
	return cfg
}

// ParseConnectionString extracts components from the connection string
// Format: scheme=https;ACCOUNT=xxx;HOST=yyy;port=443;USER=zzz;PASSWORD=www;DB=aaa;
func ParseConnectionString(connStr string) Config {
	parts := make(map[string]string)

	var current string
	for _, c := range connStr {
		if c == ';' {
			if idx := indexOfChar(current, '='); idx > 0 {
				parts[current[:idx]] = current[idx+1:]
			}
			current = ""
		} else {
			current += string(c)
		}
	}
	// Handle last part without trailing semicolon
	if current != "" {
		if idx := indexOfChar(current, '='); idx > 0 {
			parts[current[:idx]] = current[idx+1:]
		}
	}

	// Parse database.schema from DB field if present
	db := parts["DB"]
	var database, schema string
	if idx := indexOfChar(db, '.'); idx > 0 {
		database = db[:idx]
		schema = db[idx+1:]
	} else {
		database = db
	}

	return Config{
		Account:   parts["ACCOUNT"],
		User:      parts["USER"],
		Password:  parts["PASSWORD"],
		Database:  database,
		Schema:    schema,
		Warehouse: parts["WAREHOUSE"],
		Role:      parts["ROLE"],
	}
}

func indexOfChar(s string, c rune) int {
	for i, r := range s {
		if r == c {
			return i
		}
	}
	return -1
}
