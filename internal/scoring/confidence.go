// Package scoring holds the engine's confidence and engagement arithmetic in
// one place. The generation layers used to carry near-duplicate ad hoc
// formulas; each is now a value type whose sub-scores can be tested alone.
package scoring

import (
	"strings"

	"github.com/arborhq/arbor/internal/models"
)

// PromptConfidence scores a personalized prompt against the user's pattern.
type PromptConfidence struct {
	TypePreferred  bool // prompt type is in the user's preferred types
	ActiveHour     bool // current hour is one of the user's most active hours
	HighEngagement bool
	LowEngagement  bool
	RichTopics     bool // user has more than 3 common topics
}

const (
	promptConfidenceBase = 0.5
	promptConfidenceMin  = 0.3
	promptConfidenceMax  = 0.95
)

// Score is clamped to [0.3, 0.95].
func (c PromptConfidence) Score() float64 {
	score := promptConfidenceBase
	if c.TypePreferred {
		score += 0.2
	}
	if c.ActiveHour {
		score += 0.15
	}
	if c.HighEngagement {
		score += 0.1
	}
	if c.LowEngagement {
		score -= 0.1
	}
	if c.RichTopics {
		score += 0.05
	}
	return clamp(score, promptConfidenceMin, promptConfidenceMax)
}

// TextConfidence scores provider-generated text on shallow shape signals.
type TextConfidence struct {
	Text string
}

// Score is 0.5 base, plus length bonuses, a capped question-mark bonus, and
// a personal-pronoun bonus, clamped to at most 1.0.
func (c TextConfidence) Score() float64 {
	score := 0.5
	if len(c.Text) > 40 {
		score += 0.1
	}
	if len(c.Text) > 120 {
		score += 0.1
	}
	questionBonus := 0.05 * float64(strings.Count(c.Text, "?"))
	if questionBonus > 0.1 {
		questionBonus = 0.1
	}
	score += questionBonus
	lower := strings.ToLower(c.Text)
	if strings.Contains(lower, "you") || strings.Contains(lower, "your") {
		score += 0.1
	}
	return clamp(score, 0, 1.0)
}

// EngagementScore grades a user response by its surface richness plus what
// the analyzer found in it.
type EngagementScore struct {
	Response string
	Analysis models.MessageAnalysis
}

// Points returns the raw composite score.
func (e EngagementScore) Points() int {
	score := 0

	switch n := len(e.Response); {
	case n > 100:
		score += 2
	case n > 30:
		score++
	}
	if strings.ContainsAny(e.Response, "!") {
		score++
	}
	if hasEmoji(e.Response) {
		score++
	}

	if e.Analysis.Sentiment == models.SentimentPositive {
		score++
	}
	if len(e.Analysis.Categories) > 1 {
		score++
	}
	if e.Analysis.Milestone != "" {
		score += 2
	}
	if len(e.Analysis.Topics) > 2 {
		score++
	}
	if len(e.Analysis.People)+len(e.Analysis.Locations) > 1 {
		score++
	}
	return score
}

// Level buckets the composite score: >=4 high, >=2 medium, else low.
func (e EngagementScore) Level() models.Engagement {
	switch points := e.Points(); {
	case points >= 4:
		return models.EngagementHigh
	case points >= 2:
		return models.EngagementMedium
	default:
		return models.EngagementLow
	}
}

func hasEmoji(s string) bool {
	for _, r := range s {
		if r >= 0x1F300 && r <= 0x1FAFF {
			return true
		}
		if r == 0x2764 { // red heart
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
