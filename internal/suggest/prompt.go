package suggest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ignite/churn-radar/internal/domain"
	"github.com/ignite/churn-radar/internal/export"
	"github.com/ignite/churn-radar/internal/scoring"
)

const systemPrompt = `You are a churn analyst. You receive a sample of a unified customer dataset that joins subscription, engagement and support data. Identify the numeric thresholds at which churn risk rises for each scoring field.

Reply with a single JSON object and nothing else, in this shape:
{"rules":[{"field":"<field>","operator":"<gte|gt|lte|lt|eq>","threshold":<number>,"weight":<number>}],"rationale":"<two sentences at most>"}

Allowed fields: %s.
percent_emails_clicked is a fraction between 0 and 1.
Use each field at most once.`

// sampleProfiles returns up to n profiles with emails replaced by
// positional placeholders.
func sampleProfiles(profiles []domain.UnifiedProfile, n int) []domain.UnifiedProfile {
	if n > len(profiles) {
		n = len(profiles)
	}
	out := make([]domain.UnifiedProfile, n)
	copy(out, profiles[:n])
	for i := range out {
		out[i].Email = fmt.Sprintf("customer-%d@example.invalid", i+1)
	}
	return out
}

func buildSystemPrompt() string {
	names := make([]string, len(scoring.Fields))
	for i, f := range scoring.Fields {
		names[i] = string(f)
	}
	return fmt.Sprintf(systemPrompt, strings.Join(names, ", "))
}

func buildUserPrompt(sample []domain.UnifiedProfile) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("Current rules:\n")
	for _, r := range scoring.DefaultRuleSet() {
		buf.WriteString("- " + r.String() + "\n")
	}
	buf.WriteString("\nUnified dataset (sample):\n")
	if err := export.WriteUnifiedCSV(&buf, sample); err != nil {
		return "", fmt.Errorf("render sample: %w", err)
	}
	return buf.String(), nil
}
