package unify

import "github.com/ignite/churn-radar/internal/domain"

// DeriveLabel maps a subscription status to the churn label. Canceled and
// past-due subscriptions are churned; every other value, including unknown
// and unrecognized statuses, is active.
func DeriveLabel(status domain.SubscriptionStatus) domain.ChurnStatus {
	switch status {
	case domain.SubscriptionCanceled, domain.SubscriptionPastDue:
		return domain.ChurnChurned
	default:
		return domain.ChurnActive
	}
}

// IsRecognizedStatus reports whether the billing system status is one the
// label deriver knows by name.
func IsRecognizedStatus(status domain.SubscriptionStatus) bool {
	switch status {
	case domain.SubscriptionActive, domain.SubscriptionCanceled, domain.SubscriptionPastDue:
		return true
	}
	return false
}
