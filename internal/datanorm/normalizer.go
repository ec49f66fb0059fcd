package datanorm

import (
	"github.com/ignite/churn-radar/internal/domain"
)

// Options tunes identity handling during normalization.
type Options struct {
	// NormalizeEmail lowercases and trims identity keys before they are
	// joined. Off by default: identities match on the exact upstream string.
	NormalizeEmail bool
}

// Normalizer turns raw source tables into typed records.
type Normalizer struct {
	opts Options
}

func NewNormalizer(opts Options) *Normalizer {
	return &Normalizer{opts: opts}
}

// SkippedRows is the total number of identity-less rows dropped across sources.
func (r *Result) SkippedRows() int {
	n := 0
	for _, c := range r.Counts {
		n += c.Skipped
	}
	return n
}

// Normalize maps all three tables. The first schema error aborts the batch.
func (n *Normalizer) Normalize(t Tables) (*Result, error) {
	res := &Result{Counts: make(map[Source]SourceCount, len(Sources))}
	var err error

	if res.Subscriptions, res.Counts[SourceSubscription], err = n.Subscriptions(t.Subscription); err != nil {
		return nil, err
	}
	if res.Engagements, res.Counts[SourceEngagement], err = n.Engagements(t.Engagement); err != nil {
		return nil, err
	}
	if res.Supports, res.Counts[SourceSupport], err = n.Supports(t.Support); err != nil {
		return nil, err
	}
	return res, nil
}

func (n *Normalizer) identity(row []string, idx int) string {
	email := text(row, idx)
	if n.opts.NormalizeEmail {
		email = NormalizeEmail(email)
	}
	return email
}

// Subscriptions maps the billing extract.
func (n *Normalizer) Subscriptions(t Table) ([]domain.SubscriptionRecord, SourceCount, error) {
	m, err := MapColumns(SourceSubscription, t.Header)
	if err != nil {
		return nil, SourceCount{}, err
	}

	count := SourceCount{Rows: len(t.Rows)}
	out := make([]domain.SubscriptionRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		email := n.identity(row, m.Index[FieldEmail])
		if email == "" {
			count.Skipped++
			continue
		}
		total, err := numberField(SourceSubscription, FieldTotalPayments, row, m, i)
		if err != nil {
			return nil, count, err
		}
		failures, err := numberField(SourceSubscription, FieldPaymentFailures, row, m, i)
		if err != nil {
			return nil, count, err
		}
		out = append(out, domain.SubscriptionRecord{
			CustomerID:      text(row, m.Index[FieldCustomerID]),
			Email:           email,
			Status:          domain.SubscriptionStatus(text(row, m.Index[FieldSubscriptionStatus])),
			Type:            text(row, m.Index[FieldSubscriptionType]),
			TotalPayments:   total,
			PaymentFailures: failures,
		})
	}
	return out, count, nil
}

// Engagements maps the email engagement extract.
func (n *Normalizer) Engagements(t Table) ([]domain.EngagementRecord, SourceCount, error) {
	m, err := MapColumns(SourceEngagement, t.Header)
	if err != nil {
		return nil, SourceCount{}, err
	}

	count := SourceCount{Rows: len(t.Rows)}
	out := make([]domain.EngagementRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		email := n.identity(row, m.Index[FieldEmail])
		if email == "" {
			count.Skipped++
			continue
		}
		clicked, err := numberField(SourceEngagement, FieldPercentEmailsClicked, row, m, i)
		if err != nil {
			return nil, count, err
		}
		days, err := numberField(SourceEngagement, FieldDaysSinceLastEmailClick, row, m, i)
		if err != nil {
			return nil, count, err
		}
		out = append(out, domain.EngagementRecord{
			Email:                   email,
			PercentEmailsClicked:    clicked,
			DaysSinceLastEmailClick: days,
		})
	}
	return out, count, nil
}

// Supports maps the support desk extract.
func (n *Normalizer) Supports(t Table) ([]domain.SupportRecord, SourceCount, error) {
	m, err := MapColumns(SourceSupport, t.Header)
	if err != nil {
		return nil, SourceCount{}, err
	}

	count := SourceCount{Rows: len(t.Rows)}
	out := make([]domain.SupportRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		email := n.identity(row, m.Index[FieldEmail])
		if email == "" {
			count.Skipped++
			continue
		}
		tickets, err := numberField(SourceSupport, FieldNumberOfTickets, row, m, i)
		if err != nil {
			return nil, count, err
		}
		out = append(out, domain.SupportRecord{
			Email:             email,
			NumberOfTickets:   tickets,
			RecentTicketIssue: text(row, m.Index[FieldRecentTicketIssue]),
		})
	}
	return out, count, nil
}

func numberField(src Source, f CanonicalField, row []string, m *ColumnMapping, i int) (*float64, error) {
	v, ok := number(row, m.Index[f])
	if !ok {
		return nil, &SchemaError{Source: src, Field: f, Row: i + 1, Value: cell(row, m.Index[f])}
	}
	return v, nil
}
