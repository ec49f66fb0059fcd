// Package source loads the three upstream extracts of a batch into tables.
package source

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/churn-radar/internal/datanorm"
	"github.com/ignite/churn-radar/internal/pkg/logger"
)

// Loader fetches one extract.
type Loader interface {
	Load(ctx context.Context) (datanorm.Table, error)
	// Describe names where the extract comes from, for logs.
	Describe() string
}

// Set holds a loader per source.
type Set struct {
	Subscription Loader
	Engagement   Loader
	Support      Loader
}

// Load fetches all three extracts concurrently. Any failure aborts the set.
func (s Set) Load(ctx context.Context) (datanorm.Tables, error) {
	var tables datanorm.Tables
	g, ctx := errgroup.WithContext(ctx)

	load := func(src datanorm.Source, l Loader, dst *datanorm.Table) {
		g.Go(func() error {
			if l == nil {
				return fmt.Errorf("%s source: no loader configured", src)
			}
			t, err := l.Load(ctx)
			if err != nil {
				return fmt.Errorf("load %s from %s: %w", src, l.Describe(), err)
			}
			t.Source = src
			*dst = t
			logger.Debug("source loaded", "source", src, "from", l.Describe(), "rows", len(t.Rows))
			return nil
		})
	}
	load(datanorm.SourceSubscription, s.Subscription, &tables.Subscription)
	load(datanorm.SourceEngagement, s.Engagement, &tables.Engagement)
	load(datanorm.SourceSupport, s.Support, &tables.Support)

	if err := g.Wait(); err != nil {
		return datanorm.Tables{}, err
	}
	return tables, nil
}
