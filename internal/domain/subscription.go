package domain

// SubscriptionStatus is the lifecycle state reported by the billing system.
// Values outside the known set are carried through verbatim.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
)

// Unknown is the sentinel written into categorical fields that no source
// covered for an identity.
const Unknown = "unknown"

// SubscriptionRecord is one row of the billing extract after normalization.
// Nil numeric pointers mean the upstream cell was empty.
type SubscriptionRecord struct {
	CustomerID      string             `json:"customer_id"`
	Email           string             `json:"email"`
	Status          SubscriptionStatus `json:"subscription_status"`
	Type            string             `json:"subscription_type"`
	TotalPayments   *float64           `json:"total_payments"`
	PaymentFailures *float64           `json:"payment_failures"`
}

// EngagementRecord is one row of the email engagement extract.
type EngagementRecord struct {
	Email                   string   `json:"email"`
	PercentEmailsClicked    *float64 `json:"percent_emails_clicked"`
	DaysSinceLastEmailClick *float64 `json:"days_since_last_email_click"`
}

// SupportRecord is one row of the support desk extract.
type SupportRecord struct {
	Email             string   `json:"email"`
	NumberOfTickets   *float64 `json:"number_of_tickets"`
	RecentTicketIssue string   `json:"recent_ticket_issue"`
}
