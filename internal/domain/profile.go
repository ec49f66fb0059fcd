package domain

import "time"

// ChurnStatus is the ground-truth label derived from subscription status.
type ChurnStatus string

const (
	ChurnActive  ChurnStatus = "Active"
	ChurnChurned ChurnStatus = "Churned"
)

// RiskSegment is the discretized churn risk band.
type RiskSegment string

const (
	RiskLow      RiskSegment = "Low Risk"
	RiskModerate RiskSegment = "Moderate Risk"
	RiskHigh     RiskSegment = "High Risk"
)

// UnifiedProfile is one member after the three sources have been merged and
// every gap filled. No field is ever absent on a profile built by the unifier.
type UnifiedProfile struct {
	Email      string `json:"email"`
	CustomerID string `json:"customer_id"`

	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	SubscriptionType   string             `json:"subscription_type"`
	TotalPayments      float64            `json:"total_payments"`
	PaymentFailures    float64            `json:"payment_failures"`

	PercentEmailsClicked    float64 `json:"percent_emails_clicked"`
	DaysSinceLastEmailClick float64 `json:"days_since_last_email_click"`

	NumberOfTickets   float64 `json:"number_of_tickets"`
	RecentTicketIssue string  `json:"recent_ticket_issue"`

	ChurnStatus ChurnStatus `json:"churn_status"`
}

// ScoredProfile is a unified profile augmented with its risk score.
type ScoredProfile struct {
	UnifiedProfile
	ChurnRiskScore   float64     `json:"churn_risk_score"`
	ChurnRiskSegment RiskSegment `json:"churn_risk_segment"`
}

// Snapshot is the output of one unification run. Profiles are ordered by email.
type Snapshot struct {
	BatchID   string           `json:"batch_id"`
	CreatedAt time.Time        `json:"created_at"`
	Profiles  []UnifiedProfile `json:"profiles"`
}

// SegmentAssignment is the only view of a scored profile handed to
// downstream retention tooling.
type SegmentAssignment struct {
	Email            string      `json:"email"`
	ChurnRiskSegment RiskSegment `json:"churn_risk_segment"`
}
