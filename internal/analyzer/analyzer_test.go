package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborhq/arbor/internal/models"
)

func TestAnalyzeMessageFirstSteps(t *testing.T) {
	a := New()

	analysis := a.AnalyzeMessage("she took her first steps today!", nil)

	assert.Equal(t, "first_steps", analysis.Milestone)

	top, ok := analysis.PrimaryCategory()
	require.True(t, ok)
	assert.Equal(t, "milestone", top.Type)
	assert.Equal(t, 0.95, top.Confidence)
}

func TestAnalyzeMessageMilestoneKeywordAlwaysScores(t *testing.T) {
	a := New()

	cases := []struct {
		content   string
		milestone string
	}{
		{"he said his first word this morning", "first_words"},
		{"happy birthday to our little one", "birthday"},
		{"she started crawling last night", "crawling"},
		{"first day of school photos incoming", "first_day_of_school"},
	}

	for _, tc := range cases {
		analysis := a.AnalyzeMessage(tc.content, nil)
		assert.Equal(t, tc.milestone, analysis.Milestone, tc.content)

		found := false
		for _, c := range analysis.Categories {
			if c.Type == "milestone" {
				found = true
				assert.Equal(t, 0.95, c.Confidence)
			}
		}
		assert.True(t, found, "expected milestone category for %q", tc.content)
	}
}

func TestAnalyzeMessageMilestoneFirstMatchWins(t *testing.T) {
	a := New()

	// Both first_steps and birthday phrases are present; declaration order
	// decides.
	analysis := a.AnalyzeMessage("first steps on her birthday!", nil)
	assert.Equal(t, "first_steps", analysis.Milestone)
}

func TestAnalyzeMessagePhotoShareIndependentOfText(t *testing.T) {
	a := New()

	for _, content := range []string{"", "a completely unremarkable caption", "first steps!"} {
		analysis := a.AnalyzeMessage(content, []string{"https://cdn.example.com/1.jpg"})

		found := false
		for _, c := range analysis.Categories {
			if c.Type == "photo_share" {
				found = true
				assert.Equal(t, 0.9, c.Confidence)
			}
		}
		assert.True(t, found, "expected photo_share for %q", content)
	}
}

func TestAnalyzeMessageDailyUpdateDefault(t *testing.T) {
	a := New()

	analysis := a.AnalyzeMessage("we went to the store", nil)
	top, ok := analysis.PrimaryCategory()
	require.True(t, ok)
	assert.Equal(t, "daily_update", top.Type)
	assert.Equal(t, 0.6, top.Confidence)
}

func TestAnalyzeMessagePhotoOnlyStillDailyUpdate(t *testing.T) {
	a := New()

	// Media matched but no text rule did: daily_update is appended.
	analysis := a.AnalyzeMessage("nothing notable", []string{"https://cdn.example.com/1.jpg"})

	types := make(map[string]bool)
	for _, c := range analysis.Categories {
		types[c.Type] = true
	}
	assert.True(t, types["photo_share"])
	assert.True(t, types["daily_update"])
}

func TestAnalyzeMessageCategoriesSortedByConfidence(t *testing.T) {
	a := New()

	analysis := a.AnalyzeMessage("first steps today! so proud, remember when she could barely crawl?", []string{"x.jpg"})
	require.NotEmpty(t, analysis.Categories)
	for i := 1; i < len(analysis.Categories); i++ {
		assert.GreaterOrEqual(t, analysis.Categories[i-1].Confidence, analysis.Categories[i].Confidence)
	}
}

func TestDetectSentiment(t *testing.T) {
	a := New()

	assert.Equal(t, models.SentimentPositive, a.AnalyzeMessage("what a wonderful happy day", nil).Sentiment)
	assert.Equal(t, models.SentimentNegative, a.AnalyzeMessage("she was sick and crying all night", nil).Sentiment)
	assert.Equal(t, models.SentimentNeutral, a.AnalyzeMessage("we went to the store", nil).Sentiment)
}

func TestDetectUrgency(t *testing.T) {
	a := New()

	assert.Equal(t, models.UrgencyHigh, a.AnalyzeMessage("we are at the hospital, it's urgent", nil).Urgency)
	assert.Equal(t, models.UrgencyMedium, a.AnalyzeMessage("doctor appointment soon", nil).Urgency)
	assert.Equal(t, models.UrgencyLow, a.AnalyzeMessage("lazy afternoon in the garden", nil).Urgency)
}

func TestExtractTags(t *testing.T) {
	a := New()

	analysis := a.AnalyzeMessage("#FamilyTime she is 8 months old now, so much fun", nil)
	assert.Contains(t, analysis.Tags, "familytime")
	assert.Contains(t, analysis.Tags, "8_months_old")
	assert.Contains(t, analysis.Tags, "fun")
}

func TestSuggestedTagsCapped(t *testing.T) {
	a := New()

	// A message lighting up many rules at once.
	analysis := a.AnalyzeMessage(
		"first steps today! so proud, congrats little one! remember when? urgent doctor visit after, grandma was at the park, dinner and playtime and school and a trip too",
		[]string{"a.jpg"})
	tags := a.SuggestedTags(analysis)

	assert.LessOrEqual(t, len(tags), 8)
	seen := make(map[string]bool)
	for _, tag := range tags {
		assert.False(t, seen[tag], "duplicate tag %q", tag)
		seen[tag] = true
	}
}

func TestDetectPeopleAndLocations(t *testing.T) {
	a := New()

	analysis := a.AnalyzeMessage("we met Grandma and little Oliver at the park yesterday", nil)
	assert.Contains(t, analysis.People, "grandma")
	assert.Contains(t, analysis.People, "Oliver")
	assert.Contains(t, analysis.Locations, "park")
	assert.Contains(t, analysis.TimeReferences, "yesterday")
}

func TestQuestionCategory(t *testing.T) {
	a := New()

	analysis := a.AnalyzeMessage("is it normal for her to skip naps?", nil)
	top, ok := analysis.PrimaryCategory()
	require.True(t, ok)
	assert.Equal(t, "question", top.Type)
	assert.Equal(t, 0.85, top.Confidence)
}
