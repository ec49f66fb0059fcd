package scoring

import (
	"math"

	"github.com/ignite/churn-radar/internal/domain"
)

// Summary is the score distribution of a set of scored profiles.
type Summary struct {
	Count    int                        `json:"count"`
	Mean     float64                    `json:"mean"`
	Min      float64                    `json:"min"`
	Max      float64                    `json:"max"`
	Segments map[domain.RiskSegment]int `json:"segments"`
}

// Summarize computes the distribution over Active profiles only, matching
// what downstream retention tooling receives.
func Summarize(scored []domain.ScoredProfile) Summary {
	s := Summary{Segments: map[domain.RiskSegment]int{
		domain.RiskHigh:     0,
		domain.RiskModerate: 0,
		domain.RiskLow:      0,
	}}
	sum := 0.0
	for _, p := range scored {
		if p.ChurnStatus != domain.ChurnActive {
			continue
		}
		if s.Count == 0 || p.ChurnRiskScore < s.Min {
			s.Min = p.ChurnRiskScore
		}
		if s.Count == 0 || p.ChurnRiskScore > s.Max {
			s.Max = p.ChurnRiskScore
		}
		s.Count++
		sum += p.ChurnRiskScore
		s.Segments[p.ChurnRiskSegment]++
	}
	if s.Count > 0 {
		s.Mean = math.Round(sum/float64(s.Count)*scorePrecision) / scorePrecision
	}
	return s
}
