// Package patterns computes longitudinal behavior summaries per user and
// branch, and generates personalized prompts from them.
package patterns

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arborhq/arbor/internal/models"
	"github.com/arborhq/arbor/internal/storage"
)

const (
	analysisWindow = 100
	leafWindow     = 50
	defaultPatternTTL = 24 * time.Hour

	trendThreshold = 0.2
)

type cachedPattern struct {
	pattern    *models.UserPattern
	computedAt time.Time
}

// System aggregates user behavior into UserPatterns and keeps a per-process
// cache with a 24h TTL. The cache is a shortcut only: it is never shared
// across processes, and clearing it costs recomputation, not correctness.
type System struct {
	store  storage.Store
	logger *zap.Logger
	ttl    time.Duration
	now    func() time.Time
	rng    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPattern
}

func NewSystem(store storage.Store, logger *zap.Logger) *System {
	return &System{
		store:  store,
		logger: logger,
		ttl:    defaultPatternTTL,
		now:    time.Now,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPattern),
	}
}

// WithClock overrides the time source, for tests.
func (s *System) WithClock(now func() time.Time) *System {
	s.now = now
	return s
}

// WithRand overrides the randomness source, for tests.
func (s *System) WithRand(rng *rand.Rand) *System {
	s.rng = rng
	return s
}

// WithTTL overrides the pattern cache TTL.
func (s *System) WithTTL(ttl time.Duration) *System {
	s.ttl = ttl
	return s
}

// InvalidateCache drops all cached patterns. Always safe: the store holds
// the truth and patterns are recomputed on the next miss.
func (s *System) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]cachedPattern)
}

func patternKey(userID, branchID string) string {
	return userID + ":" + branchID
}

// AnalyzeUserPatterns returns the cached pattern when fresh, otherwise
// recomputes it from the latest analysis records and leaves. With no history
// at all it returns the fixed default pattern.
func (s *System) AnalyzeUserPatterns(ctx context.Context, userID, branchID string) (*models.UserPattern, error) {
	key := patternKey(userID, branchID)
	now := s.now()

	s.mu.RLock()
	if entry, ok := s.cache[key]; ok && now.Sub(entry.computedAt) < s.ttl {
		s.mu.RUnlock()
		cp := *entry.pattern
		return &cp, nil
	}
	s.mu.RUnlock()

	analyses, err := s.store.RecentAnalyses(ctx, userID, branchID, analysisWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load analyses: %w", err)
	}
	leaves, err := s.store.RecentLeavesByAuthor(ctx, branchID, userID, leafWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaves: %w", err)
	}

	var pattern *models.UserPattern
	if len(analyses) == 0 {
		pattern = defaultPattern(userID, branchID, now)
	} else {
		pattern = s.computeUserPattern(userID, branchID, analyses, leaves, now)
	}

	s.mu.Lock()
	s.cache[key] = cachedPattern{pattern: pattern, computedAt: now}
	s.mu.Unlock()

	cp := *pattern
	return &cp, nil
}

func defaultPattern(userID, branchID string, now time.Time) *models.UserPattern {
	return &models.UserPattern{
		UserID:                userID,
		BranchID:              branchID,
		PreferredPromptTypes:  []models.PromptType{models.PromptCheckin, models.PromptMemory},
		ResponseFrequencyDays: 2,
		SentimentTrend:        "stable",
		EngagementLevel:       models.EngagementMedium,
		ComputedAt:            now,
	}
}

func (s *System) computeUserPattern(userID, branchID string, analyses []*models.AnalysisRecord, leaves []*models.Leaf, now time.Time) *models.UserPattern {
	pattern := &models.UserPattern{
		UserID:     userID,
		BranchID:   branchID,
		ComputedAt: now,
	}

	totalLen := 0
	for _, rec := range analyses {
		totalLen += len(rec.ResponseText)
	}
	pattern.AvgResponseLength = float64(totalLen) / float64(len(analyses))

	pattern.ResponseFrequencyDays = meanGapDays(analyses)
	pattern.SentimentTrend = sentimentTrend(analyses)

	tagCounts := make(map[string]int)
	topicCounts := make(map[string]int)
	hourCounts := make(map[string]int)
	dayCounts := make(map[string]int)
	typeCounts := make(map[string]int)
	milestones := make(map[string]struct{})
	var milestoneOrder []string
	people := make(map[string]struct{})
	var peopleOrder []string
	locations := make(map[string]struct{})
	var locationOrder []string

	positives := 0
	multiCategory := 0

	for _, rec := range analyses {
		for _, tag := range rec.Analysis.Tags {
			tagCounts[tag]++
		}
		for _, topic := range rec.Analysis.Topics {
			topicCounts[topic]++
		}
		hourCounts[fmt.Sprintf("%d", rec.CreatedAt.Hour())]++
		dayCounts[rec.CreatedAt.Weekday().String()]++
		for _, c := range rec.Analysis.Categories {
			if pt, ok := categoryPromptType(c.Type); ok {
				typeCounts[string(pt)]++
			}
		}
		if rec.Analysis.Milestone != "" {
			if _, seen := milestones[rec.Analysis.Milestone]; !seen {
				milestones[rec.Analysis.Milestone] = struct{}{}
				milestoneOrder = append(milestoneOrder, rec.Analysis.Milestone)
			}
		}
		for _, p := range rec.Analysis.People {
			if _, seen := people[p]; !seen {
				people[p] = struct{}{}
				peopleOrder = append(peopleOrder, p)
			}
		}
		for _, l := range rec.Analysis.Locations {
			if _, seen := locations[l]; !seen {
				locations[l] = struct{}{}
				locationOrder = append(locationOrder, l)
			}
		}
		if rec.Analysis.Sentiment == models.SentimentPositive {
			positives++
		}
		if len(rec.Analysis.Categories) > 1 {
			multiCategory++
		}
	}

	// Leaves count toward the same content tables; they are the user's
	// published side of the story.
	for _, leaf := range leaves {
		for _, tag := range leaf.Tags {
			tagCounts[tag]++
		}
		if leaf.Milestone != "" {
			if _, seen := milestones[leaf.Milestone]; !seen {
				milestones[leaf.Milestone] = struct{}{}
				milestoneOrder = append(milestoneOrder, leaf.Milestone)
			}
		}
		hourCounts[fmt.Sprintf("%d", leaf.CreatedAt.Hour())]++
		dayCounts[leaf.CreatedAt.Weekday().String()]++
	}

	pattern.CommonTags = topN(tagCounts, 10)
	pattern.CommonTopics = topN(topicCounts, 8)
	pattern.PreferredDays = topN(dayCounts, 4)
	pattern.CommonMilestones = milestoneOrder
	pattern.CommonPeople = capList(peopleOrder, 8)
	pattern.CommonLocations = capList(locationOrder, 6)

	for _, h := range topN(hourCounts, 3) {
		var hour int
		fmt.Sscanf(h, "%d", &hour)
		pattern.MostActiveHours = append(pattern.MostActiveHours, hour)
	}
	pattern.BestResponseHours = pattern.MostActiveHours

	n := float64(len(analyses))
	composite := pattern.AvgResponseLength/100 + float64(positives)/n + float64(multiCategory)/n
	switch {
	case composite > 1.5:
		pattern.EngagementLevel = models.EngagementHigh
	case composite < 0.8:
		pattern.EngagementLevel = models.EngagementLow
	default:
		pattern.EngagementLevel = models.EngagementMedium
	}

	for _, t := range topN(typeCounts, 3) {
		pattern.PreferredPromptTypes = append(pattern.PreferredPromptTypes, models.PromptType(t))
	}
	if len(pattern.PreferredPromptTypes) == 0 {
		pattern.PreferredPromptTypes = []models.PromptType{models.PromptCheckin, models.PromptMemory}
	}

	pattern.EngagementTriggers = capList(pattern.CommonTopics, 3)

	return pattern
}

// categoryPromptType maps analyzer category types onto the prompt types the
// generator can produce.
func categoryPromptType(category string) (models.PromptType, bool) {
	switch category {
	case "milestone":
		return models.PromptMilestone, true
	case "memory", "photo_share":
		return models.PromptMemory, true
	case "celebration":
		return models.PromptCelebration, true
	case "daily_update", "routine":
		return models.PromptCheckin, true
	case "question":
		return models.PromptFollowup, true
	default:
		return "", false
	}
}

// meanGapDays averages the inter-arrival gap of records (newest first).
// Fewer than two samples defaults to 2 days.
func meanGapDays(analyses []*models.AnalysisRecord) float64 {
	if len(analyses) < 2 {
		return 2
	}
	total := 0.0
	for i := 0; i < len(analyses)-1; i++ {
		total += analyses[i].CreatedAt.Sub(analyses[i+1].CreatedAt).Hours() / 24
	}
	return total / float64(len(analyses)-1)
}

// sentimentTrend compares the net sentiment of the most recent 10 records
// against the earliest 10 in the window.
func sentimentTrend(analyses []*models.AnalysisRecord) string {
	recent := analyses
	if len(recent) > 10 {
		recent = recent[:10]
	}
	earliest := analyses
	if len(earliest) > 10 {
		earliest = earliest[len(earliest)-10:]
	}

	diff := netSentiment(recent) - netSentiment(earliest)
	switch {
	case diff > trendThreshold:
		return "improving"
	case diff < -trendThreshold:
		return "declining"
	default:
		return "stable"
	}
}

func netSentiment(records []*models.AnalysisRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	score := 0
	for _, rec := range records {
		switch rec.Analysis.Sentiment {
		case models.SentimentPositive:
			score++
		case models.SentimentNegative:
			score--
		}
	}
	return float64(score) / float64(len(records))
}

// topN returns the n most frequent keys, ties broken alphabetically so the
// result is deterministic.
func topN(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func capList(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
