// Package export renders unified and scored profiles as CSV and saves them
// to an object store.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ignite/churn-radar/internal/domain"
)

// UnifiedColumns is the header of the unified export.
var UnifiedColumns = []string{
	"customer_id",
	"email",
	"subscription_status",
	"subscription_type",
	"total_payments",
	"payment_failures",
	"percent_emails_clicked",
	"days_since_last_email_click",
	"number_of_tickets",
	"recent_ticket_issue",
	"churn_status",
}

// ActiveColumns is the header of the active-only scored export.
var ActiveColumns = []string{
	"customer_id",
	"email",
	"churn_status",
	"churn_risk_score",
	"churn_risk_segment",
}

// ScoredOptions controls the scored export.
type ScoredOptions struct {
	// ActiveOnly keeps Active profiles and the ActiveColumns subset.
	ActiveOnly bool
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func unifiedRow(p domain.UnifiedProfile) []string {
	return []string{
		p.CustomerID,
		p.Email,
		string(p.SubscriptionStatus),
		p.SubscriptionType,
		formatFloat(p.TotalPayments),
		formatFloat(p.PaymentFailures),
		formatFloat(p.PercentEmailsClicked),
		formatFloat(p.DaysSinceLastEmailClick),
		formatFloat(p.NumberOfTickets),
		p.RecentTicketIssue,
		string(p.ChurnStatus),
	}
}

// WriteUnifiedCSV writes a header row and one row per profile.
func WriteUnifiedCSV(w io.Writer, profiles []domain.UnifiedProfile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(UnifiedColumns); err != nil {
		return err
	}
	for _, p := range profiles {
		if err := cw.Write(unifiedRow(p)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteScoredCSV writes the unified columns followed by churn_risk_score and
// churn_risk_segment, or the active-only subset when opts.ActiveOnly is set.
func WriteScoredCSV(w io.Writer, scored []domain.ScoredProfile, opts ScoredOptions) error {
	cw := csv.NewWriter(w)

	header := ActiveColumns
	if !opts.ActiveOnly {
		header = append(append([]string{}, UnifiedColumns...), "churn_risk_score", "churn_risk_segment")
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, p := range scored {
		var row []string
		if opts.ActiveOnly {
			if p.ChurnStatus != domain.ChurnActive {
				continue
			}
			row = []string{
				p.CustomerID,
				p.Email,
				string(p.ChurnStatus),
				formatFloat(p.ChurnRiskScore),
				string(p.ChurnRiskSegment),
			}
		} else {
			row = append(unifiedRow(p.UnifiedProfile), formatFloat(p.ChurnRiskScore), string(p.ChurnRiskSegment))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
