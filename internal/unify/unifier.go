package unify

import (
	"sort"

	"github.com/ignite/churn-radar/internal/domain"
)

// Stats describes how a batch joined.
type Stats struct {
	Profiles int `json:"profiles"`

	// Rows dropped because an earlier row in the same source had the same
	// identity. The first occurrence is kept.
	DuplicateSubscriptions int `json:"duplicate_subscriptions"`
	DuplicateEngagements   int `json:"duplicate_engagements"`
	DuplicateSupports      int `json:"duplicate_supports"`

	WithoutSubscription int `json:"without_subscription"`
	WithoutEngagement   int `json:"without_engagement"`
	WithoutSupport      int `json:"without_support"`

	// Rows with an empty email across all sources. They join nothing and
	// produce no profile.
	EmptyIdentity int `json:"empty_identity"`

	// Subscription statuses outside active/canceled/past_due. They label
	// as Active.
	UnrecognizedStatuses map[string]int `json:"unrecognized_statuses,omitempty"`
}

// Unifier joins record sets under a fill policy.
type Unifier struct {
	policy FillPolicy
}

func NewUnifier(policy FillPolicy) *Unifier {
	return &Unifier{policy: policy}
}

// Unify joins the three record sets with the default fill policy.
func Unify(subs []domain.SubscriptionRecord, engs []domain.EngagementRecord, sups []domain.SupportRecord) ([]domain.UnifiedProfile, Stats) {
	return NewUnifier(DefaultFillPolicy()).Unify(subs, engs, sups)
}

type joined struct {
	sub *domain.SubscriptionRecord
	eng *domain.EngagementRecord
	sup *domain.SupportRecord
}

// Unify performs the full outer join, fills gaps, derives labels and
// returns profiles sorted by email. Inputs are not modified.
func (u *Unifier) Unify(subs []domain.SubscriptionRecord, engs []domain.EngagementRecord, sups []domain.SupportRecord) ([]domain.UnifiedProfile, Stats) {
	var stats Stats
	byEmail := make(map[string]*joined, len(subs))
	get := func(email string) *joined {
		j, ok := byEmail[email]
		if !ok {
			j = &joined{}
			byEmail[email] = j
		}
		return j
	}

	for i := range subs {
		if subs[i].Email == "" {
			stats.EmptyIdentity++
			continue
		}
		j := get(subs[i].Email)
		if j.sub != nil {
			stats.DuplicateSubscriptions++
			continue
		}
		j.sub = &subs[i]
	}
	for i := range engs {
		if engs[i].Email == "" {
			stats.EmptyIdentity++
			continue
		}
		j := get(engs[i].Email)
		if j.eng != nil {
			stats.DuplicateEngagements++
			continue
		}
		j.eng = &engs[i]
	}
	for i := range sups {
		if sups[i].Email == "" {
			stats.EmptyIdentity++
			continue
		}
		j := get(sups[i].Email)
		if j.sup != nil {
			stats.DuplicateSupports++
			continue
		}
		j.sup = &sups[i]
	}

	profiles := make([]domain.UnifiedProfile, 0, len(byEmail))
	for email, j := range byEmail {
		profiles = append(profiles, u.build(email, j, &stats))
	}

	sort.Slice(profiles, func(a, b int) bool {
		return profiles[a].Email < profiles[b].Email
	})
	stats.Profiles = len(profiles)
	return profiles, stats
}

func (u *Unifier) build(email string, j *joined, stats *Stats) domain.UnifiedProfile {
	pol := u.policy
	p := domain.UnifiedProfile{Email: email}

	var (
		status                 string
		subType, issue         string
		total, failures        *float64
		clicked, days, tickets *float64
	)
	if j.sub != nil {
		p.CustomerID = j.sub.CustomerID
		status = string(j.sub.Status)
		subType = j.sub.Type
		total, failures = j.sub.TotalPayments, j.sub.PaymentFailures
	} else {
		stats.WithoutSubscription++
	}
	if j.eng != nil {
		clicked, days = j.eng.PercentEmailsClicked, j.eng.DaysSinceLastEmailClick
	} else {
		stats.WithoutEngagement++
	}
	if j.sup != nil {
		tickets, issue = j.sup.NumberOfTickets, j.sup.RecentTicketIssue
	} else {
		stats.WithoutSupport++
	}

	p.SubscriptionStatus = domain.SubscriptionStatus(pol.text(status))
	p.SubscriptionType = pol.text(subType)
	p.TotalPayments = pol.number(total, pol.TotalPayments)
	p.PaymentFailures = pol.number(failures, pol.PaymentFailures)
	p.PercentEmailsClicked = pol.number(clicked, pol.PercentEmailsClicked)
	p.DaysSinceLastEmailClick = pol.number(days, pol.DaysSinceLastEmailClick)
	p.NumberOfTickets = pol.number(tickets, pol.NumberOfTickets)
	p.RecentTicketIssue = pol.text(issue)
	p.ChurnStatus = DeriveLabel(p.SubscriptionStatus)

	if status != "" && status != domain.Unknown && !IsRecognizedStatus(p.SubscriptionStatus) {
		if stats.UnrecognizedStatuses == nil {
			stats.UnrecognizedStatuses = make(map[string]int)
		}
		stats.UnrecognizedStatuses[status]++
	}
	return p
}
