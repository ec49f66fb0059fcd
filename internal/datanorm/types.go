package datanorm

import (
	"errors"
	"fmt"

	"github.com/ignite/churn-radar/internal/domain"
)

// Source identifies which upstream extract a table came from.
type Source string

const (
	SourceSubscription Source = "subscription"
	SourceEngagement   Source = "engagement"
	SourceSupport      Source = "support"
)

// Sources lists every source in pipeline order.
var Sources = []Source{SourceSubscription, SourceEngagement, SourceSupport}

// Table is a parsed tabular extract: a header row plus data rows of raw cells.
type Table struct {
	Source Source
	Header []string
	Rows   [][]string
}

// Tables bundles the three extracts that make up one batch.
type Tables struct {
	Subscription Table
	Engagement   Table
	Support      Table
}

// SourceCount tracks how many rows a source contributed and how many were
// dropped for lacking an identity key.
type SourceCount struct {
	Rows    int `json:"rows"`
	Skipped int `json:"skipped"`
}

// Result is the normalized output of one batch.
type Result struct {
	Subscriptions []domain.SubscriptionRecord
	Engagements   []domain.EngagementRecord
	Supports      []domain.SupportRecord
	Counts        map[Source]SourceCount
}

// ErrSchema matches every *SchemaError via errors.Is.
var ErrSchema = errors.New("schema error")

// SchemaError reports a required column that is absent from a source, or a
// cell in a numeric column that does not hold a number.
type SchemaError struct {
	Source Source
	Field  CanonicalField
	Row    int    // 1-based data row, 0 when the column itself is missing
	Value  string // offending cell, set only when Row > 0
}

func (e *SchemaError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s source row %d: field %s: non-numeric value %q", e.Source, e.Row, e.Field, e.Value)
	}
	return fmt.Sprintf("%s source: missing required field %s", e.Source, e.Field)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }
