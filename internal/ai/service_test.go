package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arborhq/arbor/internal/models"
)

// stubClient records the messages it was called with and replies from a
// scripted queue.
type stubClient struct {
	replies []string
	err     error
	calls   [][]Message
}

func (c *stubClient) Complete(ctx context.Context, messages []Message) (string, error) {
	c.calls = append(c.calls, messages)
	if c.err != nil {
		return "", c.err
	}
	reply := "What made today special?"
	if len(c.replies) > 0 {
		reply = c.replies[0]
		c.replies = c.replies[1:]
	}
	return reply, nil
}

func (c *stubClient) Name() string  { return "stub" }
func (c *stubClient) Model() string { return "stub-1" }

func testContext(leaves ...*models.Leaf) *models.AIContext {
	return &models.AIContext{
		UserID:       "u",
		UserName:     "Maya",
		BranchID:     "b",
		BranchName:   "The Nguyens",
		RecentLeaves: leaves,
		Time:         models.TimeContextAt(time.Date(2025, 6, 2, 19, 0, 0, 0, time.UTC)),
	}
}

func TestGeneratePromptMilestoneType(t *testing.T) {
	client := &stubClient{replies: []string{"Tell us about those first steps! What happened?"}}
	s := NewService(client, zap.NewNop())

	aiCtx := testContext(&models.Leaf{
		Content:   "she took her first steps today",
		CreatedAt: time.Now().Add(-1 * time.Hour),
	})

	result, err := s.GeneratePrompt(context.Background(), aiCtx)
	require.NoError(t, err)

	assert.Equal(t, models.PromptMilestone, result.PromptType)
	assert.Equal(t, "stub", result.Provider)
	assert.Equal(t, "stub-1", result.Model)
	assert.Equal(t, "Tell us about those first steps! What happened?", result.Text)
	assert.Greater(t, result.Confidence, 0.0)

	// The persona goes first, the last shared moment and the instruction last.
	require.Len(t, client.calls, 1)
	messages := client.calls[0]
	assert.Equal(t, RoleSystem, messages[0].Role)
	assert.Contains(t, messages[0].Content, "The Nguyens")
	assert.Contains(t, messages[0].Content, "Maya")
	assert.Contains(t, messages[len(messages)-2].Content, "first steps")
}

func TestGeneratePromptCheckinWhenStale(t *testing.T) {
	s := NewService(&stubClient{}, zap.NewNop())

	aiCtx := testContext(&models.Leaf{
		Content:   "an ordinary afternoon",
		CreatedAt: time.Now().Add(-48 * time.Hour),
	})

	result, err := s.GeneratePrompt(context.Background(), aiCtx)
	require.NoError(t, err)
	assert.Equal(t, models.PromptCheckin, result.PromptType)
}

func TestGeneratePromptEmptyBranchEvening(t *testing.T) {
	s := NewService(&stubClient{}, zap.NewNop())

	result, err := s.GeneratePrompt(context.Background(), testContext())
	require.NoError(t, err)
	assert.Equal(t, models.PromptCheckin, result.PromptType)
}

func TestGeneratePromptProviderErrorPropagates(t *testing.T) {
	s := NewService(&stubClient{err: errors.New("rate limited")}, zap.NewNop())

	_, err := s.GeneratePrompt(context.Background(), testContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider call failed")
}

func TestProcessUserResponseExtractsFromBothSides(t *testing.T) {
	client := &stubClient{replies: []string{"That sounds wonderful! Do you have a photo from the park?"}}
	s := NewService(client, zap.NewNop())

	result, err := s.ProcessUserResponse(context.Background(),
		"we spent the morning at the park with Grandma", testContext(), models.PromptCheckin)
	require.NoError(t, err)

	assert.Equal(t, models.PromptFollowup, result.PromptType)
	// Extraction runs over user text and reply together.
	assert.Contains(t, result.Extracted.Locations, "park")
	assert.Contains(t, result.Extracted.People, "grandma")
}

func TestHistoryCap(t *testing.T) {
	client := &stubClient{}
	s := NewService(client, zap.NewNop())
	aiCtx := testContext()

	// Each call appends two messages; 15 calls would be 30 uncapped.
	for i := 0; i < 15; i++ {
		_, err := s.ProcessUserResponse(context.Background(),
			fmt.Sprintf("update number %d with enough text", i), aiCtx, models.PromptCheckin)
		require.NoError(t, err)
	}

	h := s.recentHistory("b", "u")
	assert.Len(t, h, 20)
	assert.Contains(t, h[0].Content, "update number 5", "oldest exchanges are evicted")
}

func TestCompleteRequiresClient(t *testing.T) {
	s := NewService(nil, zap.NewNop())
	_, err := s.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
}
