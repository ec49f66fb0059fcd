package datanorm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/churn-radar/internal/domain"
)

func subscriptionHeader() []string {
	return []string{"customer_id", "email", "subscription_status", "subscription_type", "total_payments", "payment_failures", "created"}
}

func testTables() Tables {
	return Tables{
		Subscription: Table{Source: SourceSubscription, Header: subscriptionHeader(), Rows: [][]string{
			{"C1", "a@x.com", "active", "monthly", "1", "2", "2024-01-01"},
			{"C2", "", "active", "annual", "3", "0", "2024-01-01"},
			{"C3", "c@x.com", "canceled", "", "", "1"},
		}},
		Engagement: Table{Source: SourceEngagement, Header: []string{"email", "percent_emails_clicked", "days_since_last_email_click"}, Rows: [][]string{
			{"a@x.com", "0.1", "120"},
			{"b@x.com", "NaN", ""},
		}},
		Support: Table{Source: SourceSupport, Header: []string{"Requester email", "Number of tickets", "Tags"}, Rows: [][]string{
			{"a@x.com", "4", "billing"},
			{"  ", "1", "login"},
		}},
	}
}

func TestNormalize(t *testing.T) {
	res, err := NewNormalizer(Options{}).Normalize(testTables())
	require.NoError(t, err)

	require.Len(t, res.Subscriptions, 2)
	a := res.Subscriptions[0]
	assert.Equal(t, "C1", a.CustomerID)
	assert.Equal(t, domain.SubscriptionActive, a.Status)
	require.NotNil(t, a.TotalPayments)
	assert.Equal(t, 1.0, *a.TotalPayments)
	assert.Equal(t, 2.0, *a.PaymentFailures)

	c := res.Subscriptions[1]
	assert.Equal(t, "", c.Type)
	assert.Nil(t, c.TotalPayments)

	require.Len(t, res.Engagements, 2)
	assert.Nil(t, res.Engagements[1].PercentEmailsClicked)
	assert.Nil(t, res.Engagements[1].DaysSinceLastEmailClick)

	require.Len(t, res.Supports, 1)
	assert.Equal(t, "billing", res.Supports[0].RecentTicketIssue)
	assert.Equal(t, 4.0, *res.Supports[0].NumberOfTickets)

	assert.Equal(t, SourceCount{Rows: 3, Skipped: 1}, res.Counts[SourceSubscription])
	assert.Equal(t, SourceCount{Rows: 2, Skipped: 0}, res.Counts[SourceEngagement])
	assert.Equal(t, SourceCount{Rows: 2, Skipped: 1}, res.Counts[SourceSupport])
	assert.Equal(t, 2, res.SkippedRows())
}

func TestNormalize_NonNumericCell(t *testing.T) {
	tables := testTables()
	tables.Engagement.Rows = append(tables.Engagement.Rows, []string{"d@x.com", "lots", "3"})

	_, err := NewNormalizer(Options{}).Normalize(tables)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, SourceEngagement, se.Source)
	assert.Equal(t, FieldPercentEmailsClicked, se.Field)
	assert.Equal(t, 3, se.Row)
	assert.Equal(t, "lots", se.Value)
}

func TestNormalize_MissingColumnAborts(t *testing.T) {
	tables := testTables()
	tables.Support.Header = []string{"Requester email", "Tags"}

	res, err := NewNormalizer(Options{}).Normalize(tables)
	assert.Nil(t, res)
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, SourceSupport, se.Source)
	assert.Equal(t, FieldNumberOfTickets, se.Field)
}

func TestNormalize_EmailMatching(t *testing.T) {
	tables := testTables()
	tables.Engagement.Rows = [][]string{{" A@X.com", "0.5", "1"}}

	exact, err := NewNormalizer(Options{}).Normalize(tables)
	require.NoError(t, err)
	assert.Equal(t, "A@X.com", exact.Engagements[0].Email)

	folded, err := NewNormalizer(Options{NormalizeEmail: true}).Normalize(tables)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", folded.Engagements[0].Email)
}

func TestNormalize_UnknownStatusPreserved(t *testing.T) {
	tables := testTables()
	tables.Subscription.Rows = [][]string{{"C9", "z@x.com", "trialing", "monthly", "0", "0"}}

	res, err := NewNormalizer(Options{}).Normalize(tables)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatus("trialing"), res.Subscriptions[0].Status)
}
