package source

import (
	"database/sql"
	"fmt"

	"github.com/ignite/churn-radar/internal/config"
	"github.com/ignite/churn-radar/internal/datanorm"
	"github.com/ignite/churn-radar/internal/pkg/httpretry"
	"github.com/ignite/churn-radar/internal/storage"
)

// Factory builds loaders from configuration. Backends that are not
// configured stay nil; asking for a source of that kind is an error.
type Factory struct {
	Store     storage.Store
	Postgres  *sql.DB
	Snowflake TableQuerier
	HTTP      httpretry.HTTPDoer
}

// Build returns the loader set described by cfg.
func (f Factory) Build(cfg config.SourcesConfig) (Set, error) {
	var (
		set Set
		err error
	)
	if set.Subscription, err = f.loader(datanorm.SourceSubscription, cfg.Subscription); err != nil {
		return Set{}, err
	}
	if set.Engagement, err = f.loader(datanorm.SourceEngagement, cfg.Engagement); err != nil {
		return Set{}, err
	}
	if set.Support, err = f.loader(datanorm.SourceSupport, cfg.Support); err != nil {
		return Set{}, err
	}
	return set, nil
}

func (f Factory) loader(src datanorm.Source, c config.SourceConfig) (Loader, error) {
	switch c.Kind {
	case config.SourceFile:
		if c.Path == "" {
			return nil, fmt.Errorf("%s source: path is required", src)
		}
		return FileLoader{Source: src, Path: c.Path}, nil
	case config.SourceS3:
		if f.Store == nil {
			return nil, fmt.Errorf("%s source: no object store configured", src)
		}
		if c.Key == "" {
			return nil, fmt.Errorf("%s source: key is required", src)
		}
		return ObjectLoader{Source: src, Store: f.Store, Bucket: c.Bucket, Key: c.Key}, nil
	case config.SourcePostgres:
		if f.Postgres == nil {
			return nil, fmt.Errorf("%s source: postgres is not configured", src)
		}
		if c.Query == "" {
			return nil, fmt.Errorf("%s source: query is required", src)
		}
		return SQLLoader{Source: src, DB: f.Postgres, Query: c.Query, Driver: "postgres"}, nil
	case config.SourceSnowflake:
		if f.Snowflake == nil {
			return nil, fmt.Errorf("%s source: snowflake is not configured", src)
		}
		if c.Query == "" {
			return nil, fmt.Errorf("%s source: query is required", src)
		}
		return WarehouseLoader{Source: src, Querier: f.Snowflake, Query: c.Query}, nil
	case config.SourceHTTP:
		if c.URL == "" {
			return nil, fmt.Errorf("%s source: url is required", src)
		}
		client := f.HTTP
		if client == nil {
			client = httpretry.NewRetryClient(nil, 3)
		}
		return HTTPLoader{Source: src, URL: c.URL, Client: client}, nil
	case "":
		return nil, fmt.Errorf("%s source: kind is required", src)
	default:
		return nil, fmt.Errorf("%s source: unknown kind %q", src, c.Kind)
	}
}
