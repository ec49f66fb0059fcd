package datanorm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapColumns_SupportRenames(t *testing.T) {
	m, err := MapColumns(SourceSupport, []string{"Ticket ID", " Requester email ", "\"Number of tickets\"", "TAGS", "Priority"})
	require.NoError(t, err)

	assert.Equal(t, 1, m.Index[FieldEmail])
	assert.Equal(t, 2, m.Index[FieldNumberOfTickets])
	assert.Equal(t, 3, m.Index[FieldRecentTicketIssue])
	assert.Len(t, m.Index, 3)
}

func TestMapColumns_FirstMatchWins(t *testing.T) {
	m, err := MapColumns(SourceEngagement, []string{"email", "Email", "percent_emails_clicked", "days_since_last_email_click"})
	require.NoError(t, err)
	assert.Equal(t, 0, m.Index[FieldEmail])
}

func TestMapColumns_MissingRequired(t *testing.T) {
	_, err := MapColumns(SourceSubscription, []string{"customer_id", "email", "subscription_status", "subscription_type", "total_payments"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, SourceSubscription, se.Source)
	assert.Equal(t, FieldPaymentFailures, se.Field)
	assert.Zero(t, se.Row)
	assert.Contains(t, err.Error(), "payment_failures")
}

func TestRequiredFields_ReturnsCopy(t *testing.T) {
	f := RequiredFields(SourceSupport)
	f[0] = "mutated"
	assert.Equal(t, FieldEmail, RequiredFields(SourceSupport)[0])
}

func TestLooksLikeEmail(t *testing.T) {
	assert.True(t, LooksLikeEmail("a@b.co"))
	assert.False(t, LooksLikeEmail("not-an-email"))
	assert.False(t, LooksLikeEmail("@b.co"))
	assert.False(t, LooksLikeEmail("a@"))
}
