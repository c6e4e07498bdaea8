// Package classifier assigns topic labels to bill text by keyword
// matching against the congressional policy areas. It replaces nothing
// upstream: when the fetcher supplies authoritative policy areas those
// win, and this classifier fills the gap for bills that arrive without.
package classifier

import (
	"sort"
	"strings"

	"github.com/openuspolitics/billtrace/internal/core/ports/driven"
)

// Ensure Classifier implements the interface.
var _ driven.Classifier = (*Classifier)(nil)

// topicKeywords maps each topic label to the terms that signal it.
// Terms are matched as lowercase substrings, so "hospitals" matches
// "hospital" and "taxation" matches "tax".
var topicKeywords = map[string][]string{
	"healthcare":     {"hospital", "medicare", "medicaid", "health", "physician", "prescription", "patient"},
	"education":      {"school", "student", "teacher", "education", "tuition", "university"},
	"defense":        {"armed forces", "military", "defense", "national security", "weapons"},
	"veterans":       {"veteran", "va ", "servicemember"},
	"taxation":       {"tax", "internal revenue", "deduction", "credit against"},
	"appropriations": {"appropriated", "appropriation", "fiscal year", "authorized to be"},
	"immigration":    {"immigration", "visa", "alien", "border", "naturalization"},
	"environment":    {"environment", "emissions", "clean air", "clean water", "climate", "wildlife"},
	"energy":         {"energy", "electricity", "petroleum", "renewable", "nuclear"},
	"agriculture":    {"agriculture", "farm", "crop", "livestock", "rural development"},
	"transportation": {"highway", "transit", "aviation", "railroad", "transportation"},
	"justice":        {"criminal", "sentencing", "attorney general", "law enforcement", "judiciary"},
	"housing":        {"housing", "mortgage", "rental assistance", "homeless"},
	"labor":          {"employee", "workforce", "minimum wage", "collective bargaining", "pension"},
}

// minMatches is how many distinct keywords a topic needs before the
// label is assigned. One hit on a long bill is noise.
const minMatches = 2

// Classifier is a keyword-based topic classifier.
type Classifier struct {
	minMatches int
}

// Option configures the classifier.
type Option func(*Classifier)

// WithMinMatches overrides the per-topic keyword threshold.
func WithMinMatches(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.minMatches = n
		}
	}
}

// New creates a keyword classifier.
func New(opts ...Option) *Classifier {
	c := &Classifier{minMatches: minMatches}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns topic labels for the text, strongest match first.
// Ties break alphabetically so output is deterministic.
func (c *Classifier) Classify(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)

	type scored struct {
		topic string
		hits  int
	}
	var matches []scored
	for topic, keywords := range topicKeywords {
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits >= c.minMatches {
			matches = append(matches, scored{topic: topic, hits: hits})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].hits != matches[j].hits {
			return matches[i].hits > matches[j].hits
		}
		return matches[i].topic < matches[j].topic
	})

	topics := make([]string, len(matches))
	for i, m := range matches {
		topics[i] = m.topic
	}
	if len(topics) == 0 {
		return nil
	}
	return topics
}
