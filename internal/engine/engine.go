// Package engine orchestrates the SmartPrompt lifecycle: proactive
// generation with a three-tier fallback, response processing, milestone
// celebrations, batch scheduling, and prompt expiry.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arborhq/arbor/internal/ai"
	"github.com/arborhq/arbor/internal/analyzer"
	"github.com/arborhq/arbor/internal/conversation"
	"github.com/arborhq/arbor/internal/models"
	"github.com/arborhq/arbor/internal/patterns"
	"github.com/arborhq/arbor/internal/scoring"
	"github.com/arborhq/arbor/internal/storage"
)

const (
	// DefaultPromptTimeout is the validity window of a pending prompt.
	DefaultPromptTimeout = 48 * time.Hour

	personalizedConfidenceGate = 0.6
	followupMinResponseLen     = 20
	recentContentWindow        = 7 * 24 * time.Hour
	milestoneWindow            = 24 * time.Hour
)

type Engine struct {
	store    storage.Store
	analyzer *analyzer.Analyzer
	conv     *conversation.Manager
	patterns *patterns.System
	ai       *ai.Service // nil when no provider is configured
	logger   *zap.Logger
	timeout  time.Duration
	now      func() time.Time
	rng      *rand.Rand
}

func New(store storage.Store, conv *conversation.Manager, pat *patterns.System, aiService *ai.Service, timeout time.Duration, logger *zap.Logger) *Engine {
	if timeout <= 0 {
		timeout = DefaultPromptTimeout
	}
	return &Engine{
		store:    store,
		analyzer: analyzer.New(),
		conv:     conv,
		patterns: pat,
		ai:       aiService,
		logger:   logger,
		timeout:  timeout,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithClock overrides the time source, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithRand overrides the randomness source, for tests.
func (e *Engine) WithRand(rng *rand.Rand) *Engine {
	e.rng = rng
	return e
}

var demoPrompts = []string{
	"What's one moment from this week the family should hear about?",
	"Anyone do something today worth remembering?",
	"Share a photo from the last few days — the family would love it!",
}

var cannedFollowups = []string{
	"Love that! Is there a photo that goes with it?",
	"That sounds wonderful — what happened next?",
	"Thanks for sharing! Anything else from that day?",
}

// GenerateProactivePrompt produces and persists one pending SmartPrompt for
// the user, or (nil, nil) when the eligibility gate says not now. Three
// tiers guarantee a prompt is always producible: the personalized generator
// when it is confident, the provider-backed service when configured, and a
// canned responder last.
func (e *Engine) GenerateProactivePrompt(ctx context.Context, userID, branchID string) (*models.SmartPrompt, error) {
	should, err := e.conv.ShouldPromptUser(ctx, userID, branchID)
	if err != nil {
		return nil, fmt.Errorf("eligibility check failed: %w", err)
	}
	if !should {
		return nil, nil
	}

	now := e.now()
	prompt := &models.SmartPrompt{
		ID:        uuid.New().String(),
		BranchID:  branchID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(e.timeout),
		Status:    models.PromptPending,
	}

	filled := false

	if personalized, err := e.patterns.GeneratePersonalizedPrompt(ctx, userID, branchID); err != nil {
		e.logger.Warn("personalized generation failed", zap.Error(err), zap.String("user_id", userID))
	} else if personalized.Confidence > personalizedConfidenceGate {
		prompt.Content = personalized.Content
		prompt.PromptType = personalized.PromptType
		prompt.SuggestedResponses = personalized.SuggestedResponses
		prompt.AIMetadata = models.AIMetadata{
			Provider:   "personalized",
			Confidence: personalized.Confidence,
			Template:   personalized.Template,
		}
		filled = true
	}

	if !filled && e.ai != nil {
		aiCtx, err := e.conv.AIContext(ctx, userID, branchID)
		if err != nil {
			e.logger.Warn("ai context assembly failed", zap.Error(err), zap.String("user_id", userID))
		} else if result, err := e.ai.GeneratePrompt(ctx, aiCtx); err != nil {
			e.logger.Warn("provider generation failed", zap.Error(err), zap.String("user_id", userID))
		} else {
			prompt.Content = result.Text
			prompt.PromptType = result.PromptType
			prompt.AIMetadata = models.AIMetadata{
				Provider:   result.Provider,
				Model:      result.Model,
				Confidence: result.Confidence,
			}
			filled = true
		}
	}

	if !filled {
		prompt.Content = demoPrompts[e.rng.Intn(len(demoPrompts))]
		prompt.PromptType = models.PromptCheckin
		prompt.AIMetadata = models.AIMetadata{Provider: "demo", Confidence: 0.5}
	}

	if err := e.store.CreatePrompt(ctx, prompt); err != nil {
		return nil, fmt.Errorf("failed to persist prompt: %w", err)
	}

	if err := e.conv.RecordPromptSent(ctx, userID, branchID); err != nil {
		e.logger.Warn("failed to record prompt in conversation state", zap.Error(err), zap.String("user_id", userID))
	}

	e.logger.Info("proactive prompt created",
		zap.String("prompt_id", prompt.ID),
		zap.String("user_id", userID),
		zap.String("branch_id", branchID),
		zap.String("type", string(prompt.PromptType)),
		zap.String("provider", prompt.AIMetadata.Provider))

	return prompt, nil
}

// ProcessUserResponse marks the prompt responded, analyzes and records the
// response, folds it into the conversation state, and may synthesize one
// follow-up prompt. A missing or non-pending prompt id is a silent no-op.
func (e *Engine) ProcessUserResponse(ctx context.Context, promptID, userResponse, userID, branchID string) (*models.SmartPrompt, error) {
	now := e.now()

	prompt, err := e.store.GetPrompt(ctx, promptID)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt: %w", err)
	}
	if prompt == nil || prompt.EffectiveStatus(now) != models.PromptPending {
		return nil, nil
	}

	if err := e.store.UpdatePromptStatus(ctx, promptID, models.PromptResponded); err != nil {
		return nil, fmt.Errorf("failed to update prompt status: %w", err)
	}

	analysis := e.analyzer.AnalyzeMessage(userResponse, nil)
	engagement := scoring.EngagementScore{Response: userResponse, Analysis: analysis}.Level()

	// Analysis records are telemetry; losing one is not worth failing the
	// user's response for.
	record := &models.AnalysisRecord{
		ID:           uuid.New().String(),
		UserID:       userID,
		BranchID:     branchID,
		ResponseText: userResponse,
		Analysis:     analysis,
		CreatedAt:    now,
	}
	if err := e.store.SaveAnalysis(ctx, record); err != nil {
		e.logger.Warn("failed to save analysis record", zap.Error(err), zap.String("user_id", userID))
	}

	if err := e.conv.UpdateUserState(ctx, userID, branchID, conversation.Interaction{
		Prompt:     prompt.Content,
		Response:   userResponse,
		Engagement: engagement,
	}); err != nil {
		e.logger.Warn("failed to update conversation state", zap.Error(err), zap.String("user_id", userID))
	}

	if len(userResponse) <= followupMinResponseLen || engagement == models.EngagementLow {
		return nil, nil
	}

	return e.synthesizeFollowup(ctx, prompt, userResponse, userID, branchID), nil
}

// synthesizeFollowup builds one follow-up prompt. Any failure degrades to
// "no follow-up"; the responding user never sees an error here.
func (e *Engine) synthesizeFollowup(ctx context.Context, answered *models.SmartPrompt, userResponse, userID, branchID string) *models.SmartPrompt {
	now := e.now()
	followup := &models.SmartPrompt{
		ID:         uuid.New().String(),
		BranchID:   branchID,
		UserID:     userID,
		PromptType: models.PromptFollowup,
		CreatedAt:  now,
		ExpiresAt:  now.Add(e.timeout),
		Status:     models.PromptPending,
	}

	filled := false
	if e.ai != nil {
		if aiCtx, err := e.conv.AIContext(ctx, userID, branchID); err != nil {
			e.logger.Warn("ai context assembly failed for follow-up", zap.Error(err))
		} else if result, err := e.ai.ProcessUserResponse(ctx, userResponse, aiCtx, answered.PromptType); err != nil {
			e.logger.Warn("provider follow-up failed", zap.Error(err))
		} else {
			followup.Content = result.Text
			followup.AIMetadata = models.AIMetadata{
				Provider:   result.Provider,
				Model:      result.Model,
				Confidence: result.Confidence,
			}
			filled = true
		}
	}
	if !filled {
		followup.Content = cannedFollowups[e.rng.Intn(len(cannedFollowups))]
		followup.AIMetadata = models.AIMetadata{Provider: "demo", Confidence: 0.5}
	}

	if err := e.store.CreatePrompt(ctx, followup); err != nil {
		e.logger.Warn("failed to persist follow-up prompt", zap.Error(err))
		return nil
	}
	return followup
}

// CheckForMilestones scans the last 24h of branch content for milestone
// markers and creates a celebration prompt for each one that does not
// already have a celebration created after it. Safe to call repeatedly.
func (e *Engine) CheckForMilestones(ctx context.Context, branchID string) (int, error) {
	now := e.now()
	leaves, err := e.store.LeavesSince(ctx, branchID, now.Add(-milestoneWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to load recent leaves: %w", err)
	}

	created := 0
	for _, leaf := range leaves {
		if leaf.Milestone == "" {
			continue
		}

		exists, err := e.store.HasPromptSince(ctx, leaf.AuthorID, branchID, models.PromptCelebration, leaf.CreatedAt)
		if err != nil {
			e.logger.Warn("celebration lookup failed", zap.Error(err), zap.String("leaf_id", leaf.ID))
			continue
		}
		if exists {
			continue
		}

		celebration := &models.SmartPrompt{
			ID:         uuid.New().String(),
			BranchID:   branchID,
			UserID:     leaf.AuthorID,
			Content:    fmt.Sprintf("What a moment — %s! Tell the family all about it!", displayMilestone(leaf.Milestone)),
			PromptType: models.PromptCelebration,
			AIMetadata: models.AIMetadata{Provider: "milestone", Confidence: 0.9},
			CreatedAt:  now,
			ExpiresAt:  now.Add(e.timeout),
			Status:     models.PromptPending,
		}
		if err := e.store.CreatePrompt(ctx, celebration); err != nil {
			e.logger.Warn("failed to create celebration prompt", zap.Error(err), zap.String("leaf_id", leaf.ID))
			continue
		}
		created++
	}
	return created, nil
}

// ScheduleProactivePrompts sweeps all active branch memberships. The sweep
// is deliberately sequential: each eligible member may cost a provider call,
// and the provider is the rate-limited resource. Members with a still-valid
// pending prompt, or with content in the last 7 days, are skipped.
func (e *Engine) ScheduleProactivePrompts(ctx context.Context) (int, error) {
	members, err := e.store.ActiveMembers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load members: %w", err)
	}

	now := e.now()
	generated := 0
	for _, member := range members {
		pending, err := e.store.PendingPrompts(ctx, member.UserID, member.BranchID)
		if err != nil {
			e.logger.Warn("pending prompt lookup failed", zap.Error(err), zap.String("user_id", member.UserID))
			continue
		}
		if hasValidPrompt(pending, now) {
			continue
		}

		count, err := e.store.CountLeavesByAuthorSince(ctx, member.BranchID, member.UserID, now.Add(-recentContentWindow))
		if err != nil {
			e.logger.Warn("recent content lookup failed", zap.Error(err), zap.String("user_id", member.UserID))
			continue
		}
		if count > 0 {
			continue
		}

		prompt, err := e.GenerateProactivePrompt(ctx, member.UserID, member.BranchID)
		if err != nil {
			e.logger.Warn("proactive generation failed", zap.Error(err),
				zap.String("user_id", member.UserID), zap.String("branch_id", member.BranchID))
			continue
		}
		if prompt != nil {
			generated++
		}
	}
	return generated, nil
}

func hasValidPrompt(prompts []*models.SmartPrompt, now time.Time) bool {
	for _, p := range prompts {
		if p.Valid(now) {
			return true
		}
	}
	return false
}

// CleanupExpiredPrompts deletes prompts whose validity window has passed.
// Idempotent; meant to run from a periodic trigger.
func (e *Engine) CleanupExpiredPrompts(ctx context.Context) (int, error) {
	deleted, err := e.store.DeleteExpiredPrompts(ctx, e.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired prompts: %w", err)
	}
	if deleted > 0 {
		e.logger.Info("expired prompts removed", zap.Int("count", deleted))
	}
	return deleted, nil
}

func displayMilestone(milestone string) string {
	return strings.ReplaceAll(milestone, "_", " ")
}
