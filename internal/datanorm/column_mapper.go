package datanorm

import "strings"

// CanonicalField is a normalized field name shared by every source.
type CanonicalField string

const (
	FieldCustomerID              CanonicalField = "customer_id"
	FieldEmail                   CanonicalField = "email"
	FieldSubscriptionStatus      CanonicalField = "subscription_status"
	FieldSubscriptionType        CanonicalField = "subscription_type"
	FieldTotalPayments           CanonicalField = "total_payments"
	FieldPaymentFailures         CanonicalField = "payment_failures"
	FieldPercentEmailsClicked    CanonicalField = "percent_emails_clicked"
	FieldDaysSinceLastEmailClick CanonicalField = "days_since_last_email_click"
	FieldNumberOfTickets         CanonicalField = "number_of_tickets"
	FieldRecentTicketIssue       CanonicalField = "recent_ticket_issue"
)

// columnAliases maps lowercase header names to canonical fields, per source.
// When multiple raw headers mean the same thing, they all map here.
var columnAliases = map[Source]map[string]CanonicalField{
	// Billing export (Stripe)
	SourceSubscription: {
		"customer_id":         FieldCustomerID,
		"customer id":         FieldCustomerID,
		"email":               FieldEmail,
		"customer email":      FieldEmail,
		"subscription_status": FieldSubscriptionStatus,
		"subscription status": FieldSubscriptionStatus,
		"subscription_type":   FieldSubscriptionType,
		"subscription type":   FieldSubscriptionType,
		"total_payments":      FieldTotalPayments,
		"total payments":      FieldTotalPayments,
		"payment_failures":    FieldPaymentFailures,
		"payment failures":    FieldPaymentFailures,
	},

	// Engagement export (Braze)
	SourceEngagement: {
		"email":                       FieldEmail,
		"percent_emails_clicked":      FieldPercentEmailsClicked,
		"percent emails clicked":      FieldPercentEmailsClicked,
		"days_since_last_email_click": FieldDaysSinceLastEmailClick,
		"days since last email click": FieldDaysSinceLastEmailClick,
	},

	// Support desk export (Zendesk)
	SourceSupport: {
		"requester email":     FieldEmail,
		"requester_email":     FieldEmail,
		"email":               FieldEmail,
		"number of tickets":   FieldNumberOfTickets,
		"number_of_tickets":   FieldNumberOfTickets,
		"tags":                FieldRecentTicketIssue,
		"recent_ticket_issue": FieldRecentTicketIssue,
	},
}

// requiredFields lists, per source, the only fields consumed downstream.
var requiredFields = map[Source][]CanonicalField{
	SourceSubscription: {
		FieldCustomerID, FieldEmail, FieldSubscriptionStatus,
		FieldSubscriptionType, FieldTotalPayments, FieldPaymentFailures,
	},
	SourceEngagement: {
		FieldEmail, FieldPercentEmailsClicked, FieldDaysSinceLastEmailClick,
	},
	SourceSupport: {
		FieldEmail, FieldNumberOfTickets, FieldRecentTicketIssue,
	},
}

// RequiredFields returns the canonical fields a source must provide.
func RequiredFields(src Source) []CanonicalField {
	out := make([]CanonicalField, len(requiredFields[src]))
	copy(out, requiredFields[src])
	return out
}

// ColumnMapping holds the resolved mapping from canonical fields to CSV column indices.
type ColumnMapping struct {
	Source   Source
	Index    map[CanonicalField]int
	RawNames []string
}

// MapColumns resolves a raw header row for the given source. The first header
// matching a canonical field wins; unmapped columns are ignored. A required
// field with no matching header yields a *SchemaError naming that field.
func MapColumns(src Source, header []string) (*ColumnMapping, error) {
	aliases, ok := columnAliases[src]
	if !ok {
		return nil, &SchemaError{Source: src, Field: FieldEmail}
	}

	m := &ColumnMapping{
		Source:   src,
		Index:    make(map[CanonicalField]int, len(requiredFields[src])),
		RawNames: header,
	}

	for i, h := range header {
		normalized := strings.ToLower(strings.TrimSpace(h))
		// Remove surrounding quotes
		normalized = strings.Trim(normalized, "\"'")

		if field, ok := aliases[normalized]; ok {
			if _, seen := m.Index[field]; !seen {
				m.Index[field] = i
			}
		}
	}

	for _, f := range requiredFields[src] {
		if _, ok := m.Index[f]; !ok {
			return nil, &SchemaError{Source: src, Field: f}
		}
	}
	return m, nil
}

// LooksLikeEmail returns true if the value appears to be an email address.
func LooksLikeEmail(val string) bool {
	v := strings.TrimSpace(val)
	if len(v) < 5 || len(v) > 254 {
		return false
	}
	at := strings.LastIndex(v, "@")
	if at < 1 || at >= len(v)-1 {
		return false
	}
	domain := v[at+1:]
	return strings.Contains(domain, ".") && len(domain) >= 3
}
