package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arborhq/arbor/internal/ai"
	"github.com/arborhq/arbor/internal/models"
)

// enhancementResponse is the structured JSON shape requested from the
// provider for leaf enhancement.
type enhancementResponse struct {
	Caption    string   `json:"caption"`
	Tags       []string `json:"tags"`
	Milestone  string   `json:"milestone"`
	Season     string   `json:"season"`
	Confidence float64  `json:"confidence"`
}

// EnhanceLeaf suggests a caption, tags, milestone, and season for a leaf.
// With a provider configured it asks for structured JSON; any provider or
// parse failure falls back to the deterministic rules, so enhancement never
// fails outright.
func (e *Engine) EnhanceLeaf(ctx context.Context, req models.LeafEnhancementRequest) (*models.LeafEnhancement, error) {
	if e.ai == nil {
		return e.ruleBasedEnhancement(req), nil
	}

	enhancement, err := e.providerEnhancement(ctx, req)
	if err != nil {
		e.logger.Warn("provider enhancement failed, using rules", zap.Error(err), zap.String("leaf_id", req.LeafID))
		return e.ruleBasedEnhancement(req), nil
	}
	return enhancement, nil
}

func (e *Engine) providerEnhancement(ctx context.Context, req models.LeafEnhancementRequest) (*models.LeafEnhancement, error) {
	prompt := fmt.Sprintf(`Analyze this family memory post and suggest enrichment.
Author: %s. Branch: %s. Tree: %s. Media attached: %d.

Return a JSON object with this structure:
{
    "caption": "short_warm_caption",
    "tags": ["tag1", "tag2"],
    "milestone": "milestone_type_or_empty",
    "season": "spring|summer|autumn|winter",
    "confidence": 0.0
}

Post: %s`, req.AuthorName, req.BranchName, req.TreeName, len(req.MediaURLs), req.Content)

	text, err := e.ai.Complete(ctx, []ai.Message{{Role: ai.RoleUser, Content: prompt}})
	if err != nil {
		return nil, err
	}

	var parsed enhancementResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse enhancement response: %w", err)
	}

	return &models.LeafEnhancement{
		LeafID:          req.LeafID,
		Caption:         parsed.Caption,
		Tags:            parsed.Tags,
		Milestone:       parsed.Milestone,
		SuggestedSeason: parsed.Season,
		Confidence:      parsed.Confidence,
	}, nil
}

// ruleBasedEnhancement is the deterministic path: analyzer tags, the
// milestone dictionary, and season inference from text hints or the current
// month.
func (e *Engine) ruleBasedEnhancement(req models.LeafEnhancementRequest) *models.LeafEnhancement {
	analysis := e.analyzer.AnalyzeMessage(req.Content, req.MediaURLs)

	caption := ""
	if analysis.Milestone != "" {
		caption = fmt.Sprintf("A big one: %s!", displayMilestone(analysis.Milestone))
	} else if len(analysis.Topics) > 0 {
		caption = fmt.Sprintf("A little %s moment to remember", analysis.Topics[0])
	}

	return &models.LeafEnhancement{
		LeafID:          req.LeafID,
		Caption:         caption,
		Tags:            e.analyzer.SuggestedTags(analysis),
		Milestone:       analysis.Milestone,
		SuggestedSeason: e.inferSeason(req.Content),
		Confidence:      0.6,
	}
}

var seasonHints = map[string][]string{
	"winter": {"snow", "christmas", "sledding", "mittens", "new year"},
	"summer": {"beach", "pool", "sunscreen", "ice cream", "vacation"},
	"spring": {"easter", "blossom", "garden", "spring break"},
	"autumn": {"halloween", "thanksgiving", "pumpkin", "leaves falling", "back to school"},
}

func (e *Engine) inferSeason(content string) string {
	lower := strings.ToLower(content)
	for season, hints := range seasonHints {
		for _, hint := range hints {
			if strings.Contains(lower, hint) {
				return season
			}
		}
	}
	return models.TimeContextAt(e.now()).Season
}

// EnhanceLeavesBatch fans all requests out concurrently. Unlike the
// scheduling sweep this path is latency-sensitive and every branch of it
// falls back to the rule-based enhancer, so concurrency costs nothing in
// reliability.
func (e *Engine) EnhanceLeavesBatch(ctx context.Context, reqs []models.LeafEnhancementRequest) ([]*models.LeafEnhancement, error) {
	results := make([]*models.LeafEnhancement, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			enhancement, err := e.EnhanceLeaf(gctx, req)
			if err != nil {
				return err
			}
			results[i] = enhancement
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch enhancement failed: %w", err)
	}
	return results, nil
}

var (
	emotionalVocabulary = []string{"love", "happy", "proud", "excited", "laugh", "joy", "sweet", "miss", "cry"}
	contextVocabulary   = []string{"today", "yesterday", "morning", "afternoon", "at the", "during", "while"}
	actionVocabulary    = []string{"went", "played", "made", "tried", "learned", "visited", "celebrated", "cooked"}
)

// AnalyzeLeafContent grades how much story a leaf's text carries and returns
// up to four prioritized suggestions for enriching it.
func (e *Engine) AnalyzeLeafContent(content string) models.LeafQuality {
	lower := strings.ToLower(content)
	analysis := e.analyzer.AnalyzeMessage(content, nil)

	score := 0
	hasEmotion := containsAnyOf(lower, emotionalVocabulary)
	hasContext := containsAnyOf(lower, contextVocabulary)
	hasAction := containsAnyOf(lower, actionVocabulary)
	hasPeople := len(analysis.People) > 0

	if hasEmotion {
		score++
	}
	if hasContext {
		score++
	}
	if hasAction {
		score++
	}
	if hasPeople {
		score++
	}

	words := len(strings.Fields(content))
	if words >= 10 {
		score++
	}
	if words >= 30 {
		score++
	}

	var tier string
	switch {
	case score >= 4:
		tier = "high"
	case score >= 2:
		tier = "medium"
	default:
		tier = "low"
	}

	var suggestions []string
	if !hasEmotion {
		suggestions = append(suggestions, "Add how the moment felt")
	}
	if !hasPeople {
		suggestions = append(suggestions, "Mention who was there")
	}
	if !hasContext {
		suggestions = append(suggestions, "Say when or where it happened")
	}
	if !hasAction {
		suggestions = append(suggestions, "Describe what everyone was doing")
	}
	if words < 10 {
		suggestions = append(suggestions, "A few more words would make this easier to remember later")
	}
	if len(suggestions) > 4 {
		suggestions = suggestions[:4]
	}

	return models.LeafQuality{Tier: tier, Score: score, Suggestions: suggestions}
}

func containsAnyOf(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
