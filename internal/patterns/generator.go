package patterns

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arborhq/arbor/internal/models"
	"github.com/arborhq/arbor/internal/scoring"
)

// GeneratedPrompt is the personalized-generation result, with the reasoning
// that produced it.
type GeneratedPrompt struct {
	Content            string
	PromptType         models.PromptType
	Confidence         float64
	Reasoning          []string
	SuggestedResponses []string
	Template           string
	OptimalHour        int
	OptimalDay         string
}

// templateBanks hold the per-type content templates. Placeholders: {name},
// {timeOfDay}, {topic}, {person}. Selection is random; callers needing
// determinism inject a seeded source via WithRand.
var templateBanks = map[models.PromptType][]string{
	models.PromptCheckin: {
		"Good {timeOfDay}, {name}! How's everyone doing today?",
		"Hey {name}, anything new with {person} worth sharing?",
		"{name}, it's been a little while — what's the latest{topic}?",
	},
	models.PromptMemory: {
		"{name}, what's a favorite memory with {person} you haven't shared yet?",
		"Thinking back, {name} — any moment from this {timeOfDay} that deserves saving?",
		"{name}, got an old photo or story{topic} the family would love?",
	},
	models.PromptMilestone: {
		"{name}, so many big moments lately! Anything new {person} just learned?",
		"Any new firsts to celebrate, {name}?",
		"{name}, the milestones keep coming — what's the latest one?",
	},
	models.PromptFollowup: {
		"{name}, how did things go after your last update?",
		"Any updates on what you shared recently, {name}?",
		"{name}, the family is curious — what happened next?",
	},
	models.PromptCelebration: {
		"Time to celebrate, {name}! Share the moment with everyone!",
		"{name}, that was big news — got photos to go with it?",
	},
}

// topicPhrases soften a raw topic name into template-friendly wording.
var topicPhrases = map[string]string{
	"food":        " around those family meals",
	"sleep":       " with the bedtime routines",
	"development": " with all the growing and learning",
	"play":        " from playtime",
	"family":      " from family time",
	"health":      " on the health front",
	"school":      " from school days",
	"travel":      " from your adventures",
	"holidays":    " from the holiday fun",
}

var responseBanks = map[models.PromptType][]string{
	models.PromptCheckin: {
		"All good here!",
		"Busy week, lots to catch up on",
		"Let me share a photo",
	},
	models.PromptMemory: {
		"I have the perfect story",
		"Let me dig up that photo",
		"That takes me back",
	},
	models.PromptMilestone: {
		"Yes! Big news actually",
		"Not yet, but soon",
		"Let me share what happened",
	},
	models.PromptFollowup: {
		"It went great!",
		"Still working on it",
		"Funny you ask...",
	},
	models.PromptCelebration: {
		"Photos coming right up!",
		"We're so excited",
	},
}

// GeneratePersonalizedPrompt builds a prompt from the user's pattern: pick a
// type from time-of-day and preference signals, fill a random template,
// score confidence, and explain which signals fired.
func (s *System) GeneratePersonalizedPrompt(ctx context.Context, userID, branchID string) (*GeneratedPrompt, error) {
	pattern, err := s.AnalyzeUserPatterns(ctx, userID, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze user patterns: %w", err)
	}

	now := s.now()
	hour := now.Hour()

	promptType, typeReason := s.selectPromptType(pattern, hour)

	name := "there"
	if profile, err := s.store.GetUserProfile(ctx, userID); err != nil {
		s.logger.Warn("failed to load user profile for prompt", zap.Error(err), zap.String("user_id", userID))
	} else if profile != nil && profile.Name != "" {
		name = profile.Name
	}

	bank := templateBanks[promptType]
	idx := s.rng.Intn(len(bank))
	template := bank[idx]

	person := "everyone"
	if len(pattern.CommonPeople) > 0 {
		person = pattern.CommonPeople[s.rng.Intn(len(pattern.CommonPeople))]
	}
	topicPhrase := ""
	if len(pattern.CommonTopics) > 0 {
		topicPhrase = topicPhrases[pattern.CommonTopics[0]]
	}

	content := template
	content = strings.ReplaceAll(content, "{name}", name)
	content = strings.ReplaceAll(content, "{timeOfDay}", models.TimeContextAt(now).TimeOfDay)
	content = strings.ReplaceAll(content, "{topic}", topicPhrase)
	content = strings.ReplaceAll(content, "{person}", person)

	confidence := scoring.PromptConfidence{
		TypePreferred:  typePreferred(pattern, promptType),
		ActiveHour:     intInList(hour, pattern.MostActiveHours),
		HighEngagement: pattern.EngagementLevel == models.EngagementHigh,
		LowEngagement:  pattern.EngagementLevel == models.EngagementLow,
		RichTopics:     len(pattern.CommonTopics) > 3,
	}

	reasoning := []string{typeReason}
	if typePreferred(pattern, promptType) {
		reasoning = append(reasoning, fmt.Sprintf("%s is among the user's preferred prompt types", promptType))
	}
	if intInList(hour, pattern.MostActiveHours) {
		reasoning = append(reasoning, fmt.Sprintf("hour %d is one of the user's most active hours", hour))
	}
	if pattern.EngagementLevel != models.EngagementMedium {
		reasoning = append(reasoning, fmt.Sprintf("user engagement level is %s", pattern.EngagementLevel))
	}
	if len(pattern.CommonTopics) > 3 {
		reasoning = append(reasoning, "user has a broad set of common topics")
	}

	optimalHour := 19
	if len(pattern.MostActiveHours) > 0 {
		optimalHour = pattern.MostActiveHours[0]
	}
	optimalDay := "Sunday"
	if len(pattern.PreferredDays) > 0 {
		optimalDay = pattern.PreferredDays[0]
	}

	return &GeneratedPrompt{
		Content:            content,
		PromptType:         promptType,
		Confidence:         confidence.Score(),
		Reasoning:          reasoning,
		SuggestedResponses: s.suggestedResponses(promptType, pattern),
		Template:           fmt.Sprintf("%s_%d", promptType, idx),
		OptimalHour:        optimalHour,
		OptimalDay:         optimalDay,
	}, nil
}

// selectPromptType applies the time-of-day and milestone heuristics before
// falling back to the user's first preferred type.
func (s *System) selectPromptType(pattern *models.UserPattern, hour int) (models.PromptType, string) {
	if hour >= 6 && hour <= 10 && typePreferred(pattern, models.PromptCheckin) {
		return models.PromptCheckin, "morning hours favor a check-in"
	}
	if hour >= 18 && hour <= 22 && typePreferred(pattern, models.PromptMemory) {
		return models.PromptMemory, "evening hours favor a memory prompt"
	}
	if len(pattern.CommonMilestones) > 2 && typePreferred(pattern, models.PromptMilestone) {
		return models.PromptMilestone, "several distinct milestone types in recent history"
	}
	if len(pattern.PreferredPromptTypes) > 0 {
		return pattern.PreferredPromptTypes[0], "user's most frequent prompt type"
	}
	return models.PromptCheckin, "no preference signal; defaulting to check-in"
}

func (s *System) suggestedResponses(pt models.PromptType, pattern *models.UserPattern) []string {
	responses := append([]string{}, responseBanks[pt]...)
	for _, topic := range pattern.CommonTopics {
		if topic == "food" {
			responses = append(responses, "We tried something new at dinner")
			break
		}
		if topic == "development" {
			responses = append(responses, "There's a new skill to report")
			break
		}
	}
	if len(responses) > 4 {
		responses = responses[:4]
	}
	return responses
}

func typePreferred(pattern *models.UserPattern, pt models.PromptType) bool {
	for _, p := range pattern.PreferredPromptTypes {
		if p == pt {
			return true
		}
	}
	return false
}

func intInList(v int, list []int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
