package datanorm

import (
	"strings"
)

// Classifier determines which source a file holds from its name and header row.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

var sourceKeywords = []struct {
	source   Source
	keywords []string
}{
	{SourceSubscription, []string{"stripe", "subscription", "billing"}},
	{SourceEngagement, []string{"braze", "engagement", "email_activity"}},
	{SourceSupport, []string{"zendesk", "support", "ticket"}},
}

// Classify returns the source a file belongs to. Filename keywords win;
// otherwise the header is tried against each source's required columns.
// ok is false when nothing matches.
func (c *Classifier) Classify(key string, headerRow []string) (Source, bool) {
	keyLower := strings.ToLower(key)

	for _, sk := range sourceKeywords {
		for _, kw := range sk.keywords {
			if strings.Contains(keyLower, kw) {
				return sk.source, true
			}
		}
	}

	for _, src := range Sources {
		if _, err := MapColumns(src, headerRow); err == nil {
			return src, true
		}
	}
	return "", false
}
