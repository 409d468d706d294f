package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arborhq/arbor/internal/analyzer"
	"github.com/arborhq/arbor/internal/models"
	"github.com/arborhq/arbor/internal/scoring"
)

const historyCap = 20

// Result is generated text plus the structured data extracted from it.
type Result struct {
	Text       string
	PromptType models.PromptType
	Confidence float64
	Extracted  models.MessageAnalysis
	Provider   string
	Model      string
}

// Service builds persona-conditioned prompts, calls the configured provider,
// and extracts structured data from the raw text with the same lexicon
// heuristics the analyzer uses. It keeps a bounded rolling exchange history
// per (branch, user); the history is an in-process nicety, not durable state.
type Service struct {
	client   ProviderClient
	analyzer *analyzer.Analyzer
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	history map[string][]Message
}

func NewService(client ProviderClient, logger *zap.Logger) *Service {
	return &Service{
		client:   client,
		analyzer: analyzer.New(),
		logger:   logger,
		now:      time.Now,
		history:  make(map[string][]Message),
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func historyKey(branchID, userID string) string {
	return branchID + ":" + userID
}

func (s *Service) personaMessage(aiCtx *models.AIContext) Message {
	style := aiCtx.Preferences.PromptStyle
	if style == "" {
		style = "casual"
	}
	return Message{
		Role: RoleSystem,
		Content: fmt.Sprintf(
			"You are a warm family memory-keeper for the %q branch. "+
				"You write short, %s conversational prompts that encourage %s to share family moments. "+
				"Always end with a question. Never exceed two sentences.",
			aiCtx.BranchName, style, displayName(aiCtx.UserName)),
	}
}

func displayName(name string) string {
	if name == "" {
		return "the user"
	}
	return name
}

// determinePromptType picks the sub-instruction block: a milestone keyword
// in the last message wins, a stale or empty-evening context asks for a
// check-in, anything else asks for a memory.
func (s *Service) determinePromptType(aiCtx *models.AIContext) models.PromptType {
	last := aiCtx.LastLeafContent()
	if last != "" && s.analyzer.DetectMilestone(strings.ToLower(last)) != "" {
		return models.PromptMilestone
	}

	now := s.now()
	if len(aiCtx.RecentLeaves) == 0 {
		if aiCtx.Time.TimeOfDay == "evening" {
			return models.PromptCheckin
		}
		return models.PromptMemory
	}
	if now.Sub(aiCtx.RecentLeaves[0].CreatedAt) > 24*time.Hour {
		return models.PromptCheckin
	}
	return models.PromptMemory
}

func instructionFor(pt models.PromptType, aiCtx *models.AIContext) string {
	switch pt {
	case models.PromptMilestone:
		return fmt.Sprintf("The last shared moment mentioned a milestone. Write one prompt inviting %s to tell the family more about it.", displayName(aiCtx.UserName))
	case models.PromptCheckin:
		return fmt.Sprintf("It has been a while since %s shared anything. Write one gentle %s check-in prompt.", displayName(aiCtx.UserName), aiCtx.Time.TimeOfDay)
	default:
		return fmt.Sprintf("Write one prompt inviting %s to share a family memory, ideally connected to recent branch activity.", displayName(aiCtx.UserName))
	}
}

// GeneratePrompt generates a proactive prompt through the provider. Provider
// failures propagate to the caller; there is no retry at this layer.
func (s *Service) GeneratePrompt(ctx context.Context, aiCtx *models.AIContext) (*Result, error) {
	if s.client == nil {
		return nil, fmt.Errorf("no provider configured")
	}

	promptType := s.determinePromptType(aiCtx)

	messages := []Message{s.personaMessage(aiCtx)}
	messages = append(messages, s.recentHistory(aiCtx.BranchID, aiCtx.UserID)...)
	if last := aiCtx.LastLeafContent(); last != "" {
		messages = append(messages, Message{Role: RoleUser, Content: "Most recent shared moment: " + last})
	}
	messages = append(messages, Message{Role: RoleUser, Content: instructionFor(promptType, aiCtx)})

	text, err := s.client.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("provider call failed: %w", err)
	}
	text = strings.TrimSpace(text)

	s.appendHistory(aiCtx.BranchID, aiCtx.UserID,
		Message{Role: RoleUser, Content: instructionFor(promptType, aiCtx)},
		Message{Role: RoleAssistant, Content: text})

	return &Result{
		Text:       text,
		PromptType: promptType,
		Confidence: scoring.TextConfidence{Text: text}.Score(),
		Extracted:  s.analyzer.AnalyzeMessage(text, nil),
		Provider:   s.client.Name(),
		Model:      s.client.Model(),
	}, nil
}

// ProcessUserResponse runs the same pipeline with a follow-up template.
// Extraction runs over the concatenated user and assistant text, so signals
// from either side are captured.
func (s *Service) ProcessUserResponse(ctx context.Context, userMessage string, aiCtx *models.AIContext, previousPromptType models.PromptType) (*Result, error) {
	if s.client == nil {
		return nil, fmt.Errorf("no provider configured")
	}

	messages := []Message{
		s.personaMessage(aiCtx),
		{Role: RoleSystem, Content: fmt.Sprintf(
			"%s just answered a %s prompt. Write one short follow-up that acknowledges their answer and asks for one more detail or a photo.",
			displayName(aiCtx.UserName), previousPromptType)},
	}
	messages = append(messages, s.recentHistory(aiCtx.BranchID, aiCtx.UserID)...)
	messages = append(messages, Message{Role: RoleUser, Content: userMessage})

	text, err := s.client.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("provider call failed: %w", err)
	}
	text = strings.TrimSpace(text)

	s.appendHistory(aiCtx.BranchID, aiCtx.UserID,
		Message{Role: RoleUser, Content: userMessage},
		Message{Role: RoleAssistant, Content: text})

	return &Result{
		Text:       text,
		PromptType: models.PromptFollowup,
		Confidence: scoring.TextConfidence{Text: text}.Score(),
		Extracted:  s.analyzer.AnalyzeMessage(userMessage+" "+text, nil),
		Provider:   s.client.Name(),
		Model:      s.client.Model(),
	}, nil
}

// Complete passes a raw exchange straight to the provider, for callers that
// manage their own prompt structure (leaf enhancement).
func (s *Service) Complete(ctx context.Context, messages []Message) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("no provider configured")
	}
	return s.client.Complete(ctx, messages)
}

func (s *Service) recentHistory(branchID, userID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := historyKey(branchID, userID)
	out := make([]Message, len(s.history[key]))
	copy(out, s.history[key])
	return out
}

func (s *Service) appendHistory(branchID, userID string, msgs ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := historyKey(branchID, userID)
	h := append(s.history[key], msgs...)
	if len(h) > historyCap {
		h = h[len(h)-historyCap:]
	}
	s.history[key] = h
}
