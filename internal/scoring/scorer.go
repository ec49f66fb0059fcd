package scoring

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ignite/churn-radar/internal/domain"
)

// Segment thresholds.
const (
	HighRiskThreshold     = 0.75
	ModerateRiskThreshold = 0.40
)

// scorePrecision is the number of decimal places a score is rounded to.
const scorePrecision = 1e9

// Inputs are the five numeric values a rule can test.
type Inputs struct {
	PaymentFailures         float64
	DaysSinceLastEmailClick float64
	TotalPayments           float64
	PercentEmailsClicked    float64
	NumberOfTickets         float64
}

// InputsFromProfile extracts scoring inputs from a unified profile.
func InputsFromProfile(p domain.UnifiedProfile) Inputs {
	return Inputs{
		PaymentFailures:         p.PaymentFailures,
		DaysSinceLastEmailClick: p.DaysSinceLastEmailClick,
		TotalPayments:           p.TotalPayments,
		PercentEmailsClicked:    p.PercentEmailsClicked,
		NumberOfTickets:         p.NumberOfTickets,
	}
}

// InputsFromMap extracts scoring inputs from a loosely typed record, such as
// a decoded JSON object or a CSV row keyed by header. Numeric strings are
// accepted. A field that is absent or not a number yields a
// *MissingFieldError naming it.
func InputsFromMap(email string, rec map[string]any) (Inputs, error) {
	var in Inputs
	for _, f := range Fields {
		raw, ok := rec[string(f)]
		if !ok {
			return Inputs{}, &MissingFieldError{Email: email, Field: string(f)}
		}
		v, ok := toFloat(raw)
		if !ok {
			return Inputs{}, &MissingFieldError{Email: email, Field: string(f)}
		}
		in.set(f, v)
	}
	return in, nil
}

func toFloat(raw any) (float64, bool) {
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int32:
		v = float64(n)
	case int64:
		v = float64(n)
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Value returns the input named by f, or 0 for an unknown field.
func (in Inputs) Value(f Field) float64 {
	switch f {
	case FieldPaymentFailures:
		return in.PaymentFailures
	case FieldDaysSinceLastEmailClick:
		return in.DaysSinceLastEmailClick
	case FieldTotalPayments:
		return in.TotalPayments
	case FieldPercentEmailsClicked:
		return in.PercentEmailsClicked
	case FieldNumberOfTickets:
		return in.NumberOfTickets
	}
	return 0
}

func (in *Inputs) set(f Field, v float64) {
	switch f {
	case FieldPaymentFailures:
		in.PaymentFailures = v
	case FieldDaysSinceLastEmailClick:
		in.DaysSinceLastEmailClick = v
	case FieldTotalPayments:
		in.TotalPayments = v
	case FieldPercentEmailsClicked:
		in.PercentEmailsClicked = v
	case FieldNumberOfTickets:
		in.NumberOfTickets = v
	}
}

// Score sums the weights of matching rules in order, clamps the sum to
// [0,1] and rounds it to nine decimal places. rules must already be valid.
func Score(in Inputs, rules RuleSet) float64 {
	sum := 0.0
	for _, r := range rules {
		if r.Matches(in) {
			sum += r.Weight
		}
	}
	if sum > 1 {
		sum = 1
	}
	if sum < 0 {
		sum = 0
	}
	return math.Round(sum*scorePrecision) / scorePrecision
}

// Segment maps a score to its risk band.
func Segment(score float64) domain.RiskSegment {
	switch {
	case score >= HighRiskThreshold:
		return domain.RiskHigh
	case score >= ModerateRiskThreshold:
		return domain.RiskModerate
	default:
		return domain.RiskLow
	}
}

// ScoreProfile scores one profile. rules must already be valid.
func ScoreProfile(p domain.UnifiedProfile, rules RuleSet) domain.ScoredProfile {
	score := Score(InputsFromProfile(p), rules)
	return domain.ScoredProfile{
		UnifiedProfile:   p,
		ChurnRiskScore:   score,
		ChurnRiskSegment: Segment(score),
	}
}

// ScoreSnapshot validates rules and scores every profile in the snapshot,
// preserving order. The snapshot is not modified.
func ScoreSnapshot(snap domain.Snapshot, rules RuleSet) ([]domain.ScoredProfile, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("score snapshot %s: %w", snap.BatchID, err)
	}
	out := make([]domain.ScoredProfile, len(snap.Profiles))
	for i, p := range snap.Profiles {
		out[i] = ScoreProfile(p, rules)
	}
	return out, nil
}

// ScoreRecords scores loosely typed records keyed by field name. Each record
// must carry an "email" key. Any missing input aborts the whole batch.
func ScoreRecords(recs []map[string]any, rules RuleSet) ([]float64, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	out := make([]float64, len(recs))
	for i, rec := range recs {
		email, _ := rec["email"].(string)
		in, err := InputsFromMap(email, rec)
		if err != nil {
			return nil, err
		}
		out[i] = Score(in, rules)
	}
	return out, nil
}

// ActiveSegments returns the email and segment of every Active profile, in
// input order. Churned profiles are excluded.
func ActiveSegments(scored []domain.ScoredProfile) []domain.SegmentAssignment {
	out := make([]domain.SegmentAssignment, 0, len(scored))
	for _, p := range scored {
		if p.ChurnStatus != domain.ChurnActive {
			continue
		}
		out = append(out, domain.SegmentAssignment{
			Email:            p.Email,
			ChurnRiskSegment: p.ChurnRiskSegment,
		})
	}
	return out
}
