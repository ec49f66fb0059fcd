package unify

import "github.com/ignite/churn-radar/internal/domain"

// FillPolicy holds the values written into fields no source covered.
type FillPolicy struct {
	TotalPayments           float64 `json:"total_payments"`
	PaymentFailures         float64 `json:"payment_failures"`
	PercentEmailsClicked    float64 `json:"percent_emails_clicked"`
	DaysSinceLastEmailClick float64 `json:"days_since_last_email_click"`
	NumberOfTickets         float64 `json:"number_of_tickets"`
	Categorical             string  `json:"categorical"`
}

// DefaultFillPolicy zero-fills counts and rates, treats a missing click
// recency as "never clicked" (999 days) and marks categoricals unknown.
func DefaultFillPolicy() FillPolicy {
	return FillPolicy{
		DaysSinceLastEmailClick: 999,
		Categorical:             domain.Unknown,
	}
}

func (p FillPolicy) number(v *float64, fill float64) float64 {
	if v == nil {
		return fill
	}
	return *v
}

func (p FillPolicy) text(v string) string {
	if v == "" {
		return p.Categorical
	}
	return v
}
