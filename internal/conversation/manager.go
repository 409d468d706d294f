// Package conversation tracks the per-(user, branch) dialogue state machine
// and decides when a user is eligible for a proactive prompt.
package conversation

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arborhq/arbor/internal/analyzer"
	"github.com/arborhq/arbor/internal/models"
	"github.com/arborhq/arbor/internal/storage"
)

const (
	responseHistoryCap = 50
	preferredTopicsCap = 10
	shortResponseLen   = 30
)

// reminderThresholds maps reminder frequency to the minimum gap (hours)
// before the next proactive prompt.
var reminderThresholds = map[string]float64{
	"high":   8,
	"medium": 24,
	"low":    72,
}

// Interaction is one prompt/response exchange fed back into the state.
type Interaction struct {
	Prompt     string
	Response   string
	Engagement models.Engagement
}

type Manager struct {
	store    storage.Store
	analyzer *analyzer.Analyzer
	logger   *zap.Logger
	now      func() time.Time
	rng      *rand.Rand
}

func NewManager(store storage.Store, logger *zap.Logger) *Manager {
	return &Manager{
		store:    store,
		analyzer: analyzer.New(),
		logger:   logger,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithClock overrides the time source, for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// WithRand overrides the randomness source, for tests.
func (m *Manager) WithRand(rng *rand.Rand) *Manager {
	m.rng = rng
	return m
}

func defaultPreferences() models.ConversationPreferences {
	return models.ConversationPreferences{
		PromptStyle:        "casual",
		ReminderFrequency:  "medium",
		BestTimeForPrompts: "anytime",
	}
}

// AIContext assembles the read-only context bundle for the generation
// layers: branch metadata, user profile, the last 10 leaves, stored
// preferences, and the current time buckets.
func (m *Manager) AIContext(ctx context.Context, userID, branchID string) (*models.AIContext, error) {
	aiCtx := &models.AIContext{
		UserID:      userID,
		BranchID:    branchID,
		Preferences: defaultPreferences(),
		Time:        models.TimeContextAt(m.now()),
	}

	branch, err := m.store.GetBranch(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load branch: %w", err)
	}
	if branch != nil {
		aiCtx.BranchName = branch.Name
	}

	profile, err := m.store.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user profile: %w", err)
	}
	if profile != nil {
		aiCtx.UserName = profile.Name
	}

	leaves, err := m.store.RecentLeaves(ctx, branchID, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent leaves: %w", err)
	}
	aiCtx.RecentLeaves = leaves

	state, err := m.store.GetConversationState(ctx, userID, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation state: %w", err)
	}
	if state != nil {
		aiCtx.Preferences = state.Preferences
	}

	return aiCtx, nil
}

// UpdateUserState folds one interaction into the stored state: appends to
// the capped response history, adjusts the prompt style when a low-engagement
// short reply suggests the current style is not landing, accumulates
// preferred topics, recomputes the phase, and upserts the whole state.
func (m *Manager) UpdateUserState(ctx context.Context, userID, branchID string, interaction Interaction) error {
	now := m.now()

	state, err := m.store.GetConversationState(ctx, userID, branchID)
	if err != nil {
		return fmt.Errorf("failed to load conversation state: %w", err)
	}
	if state == nil {
		state = &models.ConversationState{
			UserID:      userID,
			BranchID:    branchID,
			Phase:       models.PhaseInitial,
			Preferences: defaultPreferences(),
		}
	}

	state.ResponseHistory = append(state.ResponseHistory, models.ResponseRecord{
		Prompt:     interaction.Prompt,
		Response:   interaction.Response,
		Engagement: interaction.Engagement,
		Timestamp:  now,
	})
	if len(state.ResponseHistory) > responseHistoryCap {
		state.ResponseHistory = state.ResponseHistory[len(state.ResponseHistory)-responseHistoryCap:]
	}

	if interaction.Engagement == models.EngagementLow && len(interaction.Response) < shortResponseLen {
		switch state.Preferences.PromptStyle {
		case "casual":
			state.Preferences.PromptStyle = "playful"
		case "playful":
			state.Preferences.PromptStyle = "casual"
		case "formal":
			state.Preferences.PromptStyle = "casual"
		}
		m.logger.Debug("adjusted prompt style after low-engagement reply",
			zap.String("user_id", userID),
			zap.String("style", state.Preferences.PromptStyle))
	}

	for _, topic := range m.analyzer.DetectTopics(strings.ToLower(interaction.Response)) {
		state.Preferences.PreferredTopics = appendTopic(state.Preferences.PreferredTopics, topic)
	}

	state.LastInteraction = now
	state.Phase = phaseFor(len(state.ResponseHistory), state.LastInteraction, now)

	if err := m.store.UpsertConversationState(ctx, state); err != nil {
		return fmt.Errorf("failed to upsert conversation state: %w", err)
	}
	return nil
}

// appendTopic keeps the topic list unique and capped at 10, evicting oldest
// first.
func appendTopic(topics []string, topic string) []string {
	for _, t := range topics {
		if t == topic {
			return topics
		}
	}
	topics = append(topics, topic)
	if len(topics) > preferredTopicsCap {
		topics = topics[len(topics)-preferredTopicsCap:]
	}
	return topics
}

func phaseFor(interactions int, lastInteraction, now time.Time) models.ConversationPhase {
	if interactions == 0 {
		return models.PhaseInitial
	}
	if interactions < 3 {
		return models.PhaseActive
	}
	if now.Sub(lastInteraction) < 24*time.Hour {
		return models.PhaseFollowup
	}
	return models.PhaseConcluded
}

// RecordPromptSent refreshes the interaction clock after a proactive prompt
// goes out, so the reminder threshold starts counting from the prompt rather
// than from the user's last reply. No history entry is appended; the history
// records answered prompts only.
func (m *Manager) RecordPromptSent(ctx context.Context, userID, branchID string) error {
	now := m.now()

	state, err := m.store.GetConversationState(ctx, userID, branchID)
	if err != nil {
		return fmt.Errorf("failed to load conversation state: %w", err)
	}
	if state == nil {
		state = &models.ConversationState{
			UserID:      userID,
			BranchID:    branchID,
			Phase:       models.PhaseInitial,
			Preferences: defaultPreferences(),
		}
	}

	state.LastInteraction = now
	state.Phase = phaseFor(len(state.ResponseHistory), state.LastInteraction, now)

	if err := m.store.UpsertConversationState(ctx, state); err != nil {
		return fmt.Errorf("failed to upsert conversation state: %w", err)
	}
	return nil
}

// ShouldPromptUser gates proactive prompting. Users with no stored state are
// always eligible; otherwise the gap since the last interaction must clear
// the reminder-frequency threshold and the current hour must fall inside the
// user's preferred window.
func (m *Manager) ShouldPromptUser(ctx context.Context, userID, branchID string) (bool, error) {
	state, err := m.store.GetConversationState(ctx, userID, branchID)
	if err != nil {
		return false, fmt.Errorf("failed to load conversation state: %w", err)
	}
	if state == nil {
		return true, nil
	}

	now := m.now()
	threshold, ok := reminderThresholds[state.Preferences.ReminderFrequency]
	if !ok {
		threshold = reminderThresholds["medium"]
	}
	if now.Sub(state.LastInteraction).Hours() < threshold {
		return false, nil
	}

	return hourInWindow(now.Hour(), state.Preferences.BestTimeForPrompts), nil
}

func hourInWindow(hour int, window string) bool {
	switch window {
	case "morning":
		return hour >= 6 && hour < 12
	case "afternoon":
		return hour >= 12 && hour < 18
	case "evening":
		return hour >= 18 && hour < 22
	default: // anytime
		return true
	}
}

var genericPrompts = []string{
	"What made you smile today?",
	"Share a favorite moment from this week!",
	"What's something new everyone should know about?",
	"Any photos from recent adventures to share?",
}

var activityLines = []string{
	"What did everyone get up to today?",
	"Any fun plans coming up for the family?",
	"What's a little moment from today worth remembering?",
}

// PersonalizedPrompts is the non-learned fallback generator: a recent
// milestone follow-up, a random activity line, and a weekday special case.
// With no branch context at all it returns four fixed generic prompts.
func (m *Manager) PersonalizedPrompts(ctx context.Context, userID, branchID string) ([]string, error) {
	leaves, err := m.store.RecentLeaves(ctx, branchID, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent leaves: %w", err)
	}
	if len(leaves) == 0 {
		return genericPrompts, nil
	}

	var prompts []string
	for _, leaf := range leaves {
		if leaf.Milestone != "" {
			prompts = append(prompts, fmt.Sprintf("How is everyone feeling after the big %s moment?", displayMilestone(leaf.Milestone)))
			break
		}
	}

	prompts = append(prompts, activityLines[m.rng.Intn(len(activityLines))])

	if m.now().Weekday() == time.Sunday {
		prompts = append(prompts, "It's Sunday — how about a recap of the weekend?")
	}

	return prompts, nil
}

func displayMilestone(milestone string) string {
	return strings.ReplaceAll(milestone, "_", " ")
}
