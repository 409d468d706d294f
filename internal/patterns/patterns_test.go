package patterns

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arborhq/arbor/internal/models"
	"github.com/arborhq/arbor/internal/storage"
)

func newTestSystem(t *testing.T, now *time.Time) (*System, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	s := NewSystem(store, zap.NewNop()).
		WithClock(func() time.Time { return *now }).
		WithRand(rand.New(rand.NewSource(7)))
	return s, store
}

func positiveRecord(userID, branchID string, at time.Time, text string) *models.AnalysisRecord {
	return &models.AnalysisRecord{
		ID:           fmt.Sprintf("rec-%d", at.UnixNano()),
		UserID:       userID,
		BranchID:     branchID,
		ResponseText: text,
		Analysis: models.MessageAnalysis{
			Sentiment: models.SentimentPositive,
			Categories: []models.CategoryScore{
				{Type: "daily_update", Confidence: 0.6},
			},
		},
		CreatedAt: at,
	}
}

func TestAnalyzeUserPatternsDefault(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	s, _ := newTestSystem(t, &now)

	pattern, err := s.AnalyzeUserPatterns(context.Background(), "u", "b")
	require.NoError(t, err)

	assert.Equal(t, []models.PromptType{models.PromptCheckin, models.PromptMemory}, pattern.PreferredPromptTypes)
	assert.Equal(t, 2.0, pattern.ResponseFrequencyDays)
	assert.Equal(t, "stable", pattern.SentimentTrend)
	assert.Equal(t, models.EngagementMedium, pattern.EngagementLevel)
	assert.Equal(t, now, pattern.ComputedAt)
}

func TestComputeUserPatternAggregation(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	s, store := newTestSystem(t, &now)
	ctx := context.Background()

	long := strings.Repeat("x", 120)
	for i := 0; i < 4; i++ {
		rec := positiveRecord("u", "b", now.Add(-time.Duration(i)*24*time.Hour), long)
		rec.Analysis.Categories = []models.CategoryScore{
			{Type: "milestone", Confidence: 0.95},
			{Type: "celebration", Confidence: 0.8},
		}
		rec.Analysis.Tags = []string{"fun"}
		rec.Analysis.Topics = []string{"play"}
		if i < 2 {
			rec.Analysis.Tags = append(rec.Analysis.Tags, "family")
		}
		if i == 0 {
			rec.Analysis.Milestone = "first_steps"
			rec.Analysis.People = []string{"Grandma"}
			rec.Analysis.Locations = []string{"park"}
		}
		require.NoError(t, store.SaveAnalysis(ctx, rec))
	}

	pattern, err := s.AnalyzeUserPatterns(ctx, "u", "b")
	require.NoError(t, err)

	assert.Equal(t, 120.0, pattern.AvgResponseLength)
	assert.InDelta(t, 1.0, pattern.ResponseFrequencyDays, 1e-9)

	// fun appears in all four records, family in two.
	require.NotEmpty(t, pattern.CommonTags)
	assert.Equal(t, "fun", pattern.CommonTags[0])
	assert.Contains(t, pattern.CommonTags, "family")
	assert.Contains(t, pattern.CommonTopics, "play")
	assert.Equal(t, []string{"first_steps"}, pattern.CommonMilestones)
	assert.Equal(t, []string{"Grandma"}, pattern.CommonPeople)
	assert.Equal(t, []string{"park"}, pattern.CommonLocations)

	// 120/100 + all positive + all multi-category is well above the high bar.
	assert.Equal(t, models.EngagementHigh, pattern.EngagementLevel)

	assert.Contains(t, pattern.PreferredPromptTypes, models.PromptMilestone)
	assert.Contains(t, pattern.PreferredPromptTypes, models.PromptCelebration)
}

func TestSentimentTrend(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)

	seed := func(store *storage.MemoryStore, recentPositive bool) {
		for i := 0; i < 20; i++ {
			rec := positiveRecord("u", "b", now.Add(-time.Duration(i)*time.Hour), "some text")
			// i < 10 is the recent half (the store sorts newest first).
			positive := recentPositive == (i < 10)
			if positive {
				rec.Analysis.Sentiment = models.SentimentPositive
			} else {
				rec.Analysis.Sentiment = models.SentimentNegative
			}
			_ = store.SaveAnalysis(context.Background(), rec)
		}
	}

	s, store := newTestSystem(t, &now)
	seed(store, true)
	pattern, err := s.AnalyzeUserPatterns(context.Background(), "u", "b")
	require.NoError(t, err)
	assert.Equal(t, "improving", pattern.SentimentTrend)

	s2, store2 := newTestSystem(t, &now)
	seed(store2, false)
	pattern, err = s2.AnalyzeUserPatterns(context.Background(), "u", "b")
	require.NoError(t, err)
	assert.Equal(t, "declining", pattern.SentimentTrend)
}

func TestPatternCacheTTL(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	s, store := newTestSystem(t, &now)
	ctx := context.Background()

	pattern, err := s.AnalyzeUserPatterns(ctx, "u", "b")
	require.NoError(t, err)
	assert.Zero(t, pattern.AvgResponseLength)

	// New data arrives, but the cached pattern is still fresh.
	require.NoError(t, store.SaveAnalysis(ctx, positiveRecord("u", "b", now, strings.Repeat("y", 80))))

	pattern, err = s.AnalyzeUserPatterns(ctx, "u", "b")
	require.NoError(t, err)
	assert.Zero(t, pattern.AvgResponseLength, "within the TTL the stale cached pattern is served")

	// Past the TTL the pattern is recomputed from the store.
	now = now.Add(25 * time.Hour)
	pattern, err = s.AnalyzeUserPatterns(ctx, "u", "b")
	require.NoError(t, err)
	assert.Equal(t, 80.0, pattern.AvgResponseLength)
}

func TestInvalidateCacheForcesRecompute(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	s, store := newTestSystem(t, &now)
	ctx := context.Background()

	_, err := s.AnalyzeUserPatterns(ctx, "u", "b")
	require.NoError(t, err)

	require.NoError(t, store.SaveAnalysis(ctx, positiveRecord("u", "b", now, strings.Repeat("y", 80))))
	s.InvalidateCache()

	pattern, err := s.AnalyzeUserPatterns(ctx, "u", "b")
	require.NoError(t, err)
	assert.Equal(t, 80.0, pattern.AvgResponseLength)
}

func TestGeneratePersonalizedPromptEveningMemory(t *testing.T) {
	now := time.Date(2025, 6, 2, 19, 0, 0, 0, time.UTC) // evening
	s, _ := newTestSystem(t, &now)

	prompt, err := s.GeneratePersonalizedPrompt(context.Background(), "u", "b")
	require.NoError(t, err)

	// Default pattern prefers memory in the evening window.
	assert.Equal(t, models.PromptMemory, prompt.PromptType)

	// Template selection is random; the content must be one of the rendered
	// memory templates.
	rendered := []string{
		"there, what's a favorite memory with everyone you haven't shared yet?",
		"Thinking back, there — any moment from this evening that deserves saving?",
		"there, got an old photo or story the family would love?",
	}
	assert.Contains(t, rendered, prompt.Content)

	// Type preferred, no other signals: 0.5 + 0.2.
	assert.InDelta(t, 0.7, prompt.Confidence, 1e-9)
	assert.NotEmpty(t, prompt.Reasoning)
	assert.True(t, strings.HasPrefix(prompt.Template, "memory_"))
	assert.Equal(t, 19, prompt.OptimalHour)
	assert.Equal(t, "Sunday", prompt.OptimalDay)
	assert.LessOrEqual(t, len(prompt.SuggestedResponses), 4)
}

func TestGeneratePersonalizedPromptMorningCheckin(t *testing.T) {
	now := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	s, store := newTestSystem(t, &now)
	store.AddUserProfile(&models.UserProfile{ID: "u", Name: "Maya"})

	prompt, err := s.GeneratePersonalizedPrompt(context.Background(), "u", "b")
	require.NoError(t, err)

	assert.Equal(t, models.PromptCheckin, prompt.PromptType)
	assert.Contains(t, prompt.Content, "Maya")
	assert.NotContains(t, prompt.Content, "{", "all placeholders must be substituted")
}

func TestGeneratePersonalizedPromptConfidenceBounds(t *testing.T) {
	now := time.Date(2025, 6, 2, 19, 0, 0, 0, time.UTC)
	s, store := newTestSystem(t, &now)
	ctx := context.Background()

	// A dense history exercises the positive signals; bounds must still hold.
	for i := 0; i < 30; i++ {
		rec := positiveRecord("u", "b", now.Add(-time.Duration(i)*time.Hour), strings.Repeat("z", 150))
		rec.Analysis.Topics = []string{"food", "play", "sleep", "family", "travel"}
		rec.Analysis.Categories = append(rec.Analysis.Categories, models.CategoryScore{Type: "memory", Confidence: 0.75})
		require.NoError(t, store.SaveAnalysis(ctx, rec))
	}

	for i := 0; i < 10; i++ {
		prompt, err := s.GeneratePersonalizedPrompt(ctx, "u", "b")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, prompt.Confidence, 0.3)
		assert.LessOrEqual(t, prompt.Confidence, 0.95)
	}
}
