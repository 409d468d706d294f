package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arborhq/arbor/internal/models"
)

func TestPromptConfidenceBounds(t *testing.T) {
	// Every combination of signals stays inside [0.3, 0.95].
	for _, typePreferred := range []bool{false, true} {
		for _, activeHour := range []bool{false, true} {
			for _, high := range []bool{false, true} {
				for _, low := range []bool{false, true} {
					for _, rich := range []bool{false, true} {
						c := PromptConfidence{
							TypePreferred:  typePreferred,
							ActiveHour:     activeHour,
							HighEngagement: high,
							LowEngagement:  low,
							RichTopics:     rich,
						}
						score := c.Score()
						assert.GreaterOrEqual(t, score, 0.3)
						assert.LessOrEqual(t, score, 0.95)
					}
				}
			}
		}
	}
}

func TestPromptConfidenceSignals(t *testing.T) {
	assert.Equal(t, 0.5, PromptConfidence{}.Score())
	assert.Equal(t, 0.7, PromptConfidence{TypePreferred: true}.Score())
	assert.InDelta(t, 0.4, PromptConfidence{LowEngagement: true}.Score(), 1e-9)
	// All positive signals would be 1.0 unclamped; the model caps at 0.95.
	assert.Equal(t, 0.95, PromptConfidence{
		TypePreferred: true, ActiveHour: true, HighEngagement: true, RichTopics: true,
	}.Score())
}

func TestTextConfidenceClamped(t *testing.T) {
	long := ""
	for i := 0; i < 50; i++ {
		long += "do you remember? "
	}
	score := TextConfidence{Text: long + "your story"}.Score()
	assert.LessOrEqual(t, score, 1.0)

	assert.InDelta(t, 0.5, TextConfidence{Text: "short."}.Score(), 1e-9)
}

func TestTextConfidenceQuestionBonusCapped(t *testing.T) {
	two := TextConfidence{Text: "a? b?"}.Score()
	ten := TextConfidence{Text: "a? b? c? d? e? f? g? h? i? j?"}.Score()
	// The second has many more question marks but the bonus is capped, so
	// only the length bonus can separate them.
	assert.LessOrEqual(t, ten-two, 0.11)
}

func TestEngagementLevels(t *testing.T) {
	a := models.MessageAnalysis{Sentiment: models.SentimentNeutral}

	low := EngagementScore{Response: "ok", Analysis: a}
	assert.Equal(t, models.EngagementLow, low.Level())

	rich := models.MessageAnalysis{
		Sentiment: models.SentimentPositive,
		Milestone: "first_steps",
		Categories: []models.CategoryScore{
			{Type: "milestone"}, {Type: "celebration"},
		},
	}
	high := EngagementScore{
		Response: "She took her first steps right in the middle of the living room and we all cheered so loudly!",
		Analysis: rich,
	}
	assert.Equal(t, models.EngagementHigh, high.Level())
	assert.GreaterOrEqual(t, high.Points(), 4)
}

func TestEngagementMediumBand(t *testing.T) {
	a := models.MessageAnalysis{Sentiment: models.SentimentPositive}
	e := EngagementScore{Response: "It was a really lovely afternoon", Analysis: a}
	// length > 30 gives one point, positive sentiment another.
	assert.Equal(t, models.EngagementMedium, e.Level())
}
