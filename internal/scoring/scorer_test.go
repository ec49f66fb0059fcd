package scoring

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/churn-radar/internal/domain"
)

func TestScore_WorkedExample(t *testing.T) {
	p := domain.UnifiedProfile{
		Email: "a@x.com", CustomerID: "1",
		SubscriptionStatus: domain.SubscriptionActive, SubscriptionType: "Epic",
		TotalPayments: 5, PaymentFailures: 3,
		PercentEmailsClicked: 0, DaysSinceLastEmailClick: 999,
		NumberOfTickets: 1, RecentTicketIssue: "billing",
		ChurnStatus: domain.ChurnActive,
	}

	sp := ScoreProfile(p, DefaultRuleSet())
	assert.Equal(t, 0.75, sp.ChurnRiskScore)
	assert.Equal(t, domain.RiskHigh, sp.ChurnRiskSegment)
}

func TestScore_AllQuiet(t *testing.T) {
	in := Inputs{PaymentFailures: 0, DaysSinceLastEmailClick: 10, TotalPayments: 50, PercentEmailsClicked: 0.9, NumberOfTickets: 0}
	score := Score(in, DefaultRuleSet())
	assert.Equal(t, 0.0, score)
	assert.Equal(t, domain.RiskLow, Segment(score))
}

func TestScore_MissingTicketRule(t *testing.T) {
	in := Inputs{PaymentFailures: 2, DaysSinceLastEmailClick: 90, TotalPayments: 10, PercentEmailsClicked: 0.5, NumberOfTickets: 5}

	full := Score(in, DefaultRuleSet())
	assert.Equal(t, 0.65, full)

	noTickets := DefaultRuleSet()[:4]
	assert.Equal(t, 0.55, Score(in, noTickets))

	in.PercentEmailsClicked = 0.1
	assert.Equal(t, 0.85, Score(in, DefaultRuleSet()))
	assert.Equal(t, domain.RiskHigh, Segment(Score(in, DefaultRuleSet())))
	assert.Equal(t, 0.75, Score(in, noTickets))
	assert.Equal(t, domain.RiskHigh, Segment(Score(in, noTickets)))

	in.PaymentFailures = 0
	assert.Equal(t, 0.55, Score(in, DefaultRuleSet()))
	assert.Equal(t, 0.45, Score(in, noTickets))
}

func TestScore_Clamped(t *testing.T) {
	in := Inputs{PaymentFailures: 9, DaysSinceLastEmailClick: 999, TotalPayments: 0, PercentEmailsClicked: 0, NumberOfTickets: 9}
	assert.Equal(t, 1.0, Score(in, DefaultRuleSet()))

	heavy := RuleSet{
		{Field: FieldPaymentFailures, Operator: OpGreaterOrEqual, Threshold: 1, Weight: 0.9},
		{Field: FieldNumberOfTickets, Operator: OpGreaterOrEqual, Threshold: 1, Weight: 0.9},
	}
	assert.Equal(t, 1.0, Score(in, heavy))
}

func TestScore_OperatorsAndAliases(t *testing.T) {
	in := Inputs{NumberOfTickets: 3}
	tests := []struct {
		op   Operator
		want bool
	}{
		{OpGreaterOrEqual, true}, {">=", true},
		{OpGreater, false}, {">", false},
		{OpLessOrEqual, true}, {"<=", true},
		{OpLess, false}, {"<", false},
		{OpEqual, true}, {"==", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			r := Rule{Field: FieldNumberOfTickets, Operator: tt.op, Threshold: 3, Weight: 0.5}
			assert.Equal(t, tt.want, r.Matches(in))
		})
	}
}

func TestSegment_Boundaries(t *testing.T) {
	assert.Equal(t, domain.RiskHigh, Segment(0.75))
	assert.Equal(t, domain.RiskHigh, Segment(1))
	assert.Equal(t, domain.RiskModerate, Segment(0.7499999))
	assert.Equal(t, domain.RiskModerate, Segment(0.4))
	assert.Equal(t, domain.RiskLow, Segment(0.3999999))
	assert.Equal(t, domain.RiskLow, Segment(0))
}

func TestScore_BoundaryFromRules(t *testing.T) {
	// 0.25 + 0.15 accumulates to exactly the moderate boundary
	in := Inputs{DaysSinceLastEmailClick: 90, TotalPayments: 1, PercentEmailsClicked: 0.5}
	score := Score(in, DefaultRuleSet())
	assert.Equal(t, 0.4, score)
	assert.Equal(t, domain.RiskModerate, Segment(score))
}

func TestRuleSet_Validate(t *testing.T) {
	tests := []struct {
		name   string
		rules  RuleSet
		reason string
	}{
		{"unknown field", RuleSet{{Field: "age", Operator: OpGreater, Weight: 0.1}}, "unknown field"},
		{"unknown operator", RuleSet{{Field: FieldTotalPayments, Operator: "between", Weight: 0.1}}, "unknown operator"},
		{"negative weight", RuleSet{{Field: FieldTotalPayments, Operator: OpLess, Weight: -0.1}}, "negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rules.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrRuleSet))
			assert.Contains(t, err.Error(), tt.reason)
		})
	}

	zero := DefaultRuleSet()
	for i := range zero {
		zero[i].Weight = 0
	}
	assert.NoError(t, zero.Validate())
	assert.NoError(t, RuleSet{}.Validate())
}

func TestScoreSnapshot(t *testing.T) {
	snap := domain.Snapshot{BatchID: "b1", Profiles: []domain.UnifiedProfile{
		{Email: "a@x.com", PaymentFailures: 3, DaysSinceLastEmailClick: 999, TotalPayments: 5, ChurnStatus: domain.ChurnActive},
		{Email: "b@x.com", TotalPayments: 40, PercentEmailsClicked: 0.8, ChurnStatus: domain.ChurnChurned},
	}}

	scored, err := ScoreSnapshot(snap, DefaultRuleSet())
	require.NoError(t, err)
	require.Len(t, scored, 2)
	assert.Equal(t, "a@x.com", scored[0].Email)
	assert.Equal(t, 0.75, scored[0].ChurnRiskScore)
	assert.Equal(t, 0.0, scored[1].ChurnRiskScore)

	again, err := ScoreSnapshot(snap, DefaultRuleSet())
	require.NoError(t, err)
	assert.Equal(t, scored, again)

	bad := RuleSet{{Field: "nope", Operator: OpEqual}}
	scored, err = ScoreSnapshot(snap, bad)
	assert.Nil(t, scored)
	assert.True(t, errors.Is(err, ErrRuleSet))
}

func TestInputsFromMap(t *testing.T) {
	rec := map[string]any{
		"email":                       "a@x.com",
		"payment_failures":            3.0,
		"days_since_last_email_click": 999,
		"total_payments":              json.Number("5"),
		"percent_emails_clicked":      "0.1",
		"number_of_tickets":           int64(1),
	}
	in, err := InputsFromMap("a@x.com", rec)
	require.NoError(t, err)
	assert.Equal(t, Inputs{PaymentFailures: 3, DaysSinceLastEmailClick: 999, TotalPayments: 5, PercentEmailsClicked: 0.1, NumberOfTickets: 1}, in)

	delete(rec, "number_of_tickets")
	_, err = InputsFromMap("a@x.com", rec)
	var mf *MissingFieldError
	require.True(t, errors.As(err, &mf))
	assert.Equal(t, "number_of_tickets", mf.Field)
	assert.Equal(t, "a@x.com", mf.Email)

	rec["number_of_tickets"] = "many"
	_, err = InputsFromMap("a@x.com", rec)
	assert.True(t, errors.Is(err, ErrMissingField))
}

func TestScoreRecords_AbortsOnMissing(t *testing.T) {
	recs := []map[string]any{
		{"email": "a@x.com", "payment_failures": 0, "days_since_last_email_click": 0, "total_payments": 9, "percent_emails_clicked": 1, "number_of_tickets": 0},
		{"email": "b@x.com", "payment_failures": 0},
	}
	scores, err := ScoreRecords(recs, DefaultRuleSet())
	assert.Nil(t, scores)
	var mf *MissingFieldError
	require.True(t, errors.As(err, &mf))
	assert.Equal(t, "b@x.com", mf.Email)
}

func TestActiveSegments(t *testing.T) {
	scored := []domain.ScoredProfile{
		{UnifiedProfile: domain.UnifiedProfile{Email: "a@x.com", ChurnStatus: domain.ChurnActive}, ChurnRiskScore: 0.8, ChurnRiskSegment: domain.RiskHigh},
		{UnifiedProfile: domain.UnifiedProfile{Email: "b@x.com", ChurnStatus: domain.ChurnChurned}, ChurnRiskScore: 0.9, ChurnRiskSegment: domain.RiskHigh},
		{UnifiedProfile: domain.UnifiedProfile{Email: "c@x.com", ChurnStatus: domain.ChurnActive}, ChurnRiskScore: 0, ChurnRiskSegment: domain.RiskLow},
	}
	assert.Equal(t, []domain.SegmentAssignment{
		{Email: "a@x.com", ChurnRiskSegment: domain.RiskHigh},
		{Email: "c@x.com", ChurnRiskSegment: domain.RiskLow},
	}, ActiveSegments(scored))
}

func TestSummarize(t *testing.T) {
	scored := []domain.ScoredProfile{
		{UnifiedProfile: domain.UnifiedProfile{ChurnStatus: domain.ChurnActive}, ChurnRiskScore: 0.8, ChurnRiskSegment: domain.RiskHigh},
		{UnifiedProfile: domain.UnifiedProfile{ChurnStatus: domain.ChurnChurned}, ChurnRiskScore: 1, ChurnRiskSegment: domain.RiskHigh},
		{UnifiedProfile: domain.UnifiedProfile{ChurnStatus: domain.ChurnActive}, ChurnRiskScore: 0.2, ChurnRiskSegment: domain.RiskLow},
	}
	s := Summarize(scored)
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 0.5, s.Mean)
	assert.Equal(t, 0.2, s.Min)
	assert.Equal(t, 0.8, s.Max)
	assert.Equal(t, 1, s.Segments[domain.RiskHigh])
	assert.Equal(t, 0, s.Segments[domain.RiskModerate])
}
