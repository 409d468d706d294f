package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborhq/arbor/internal/models"
)

func TestMemoryStorePromptLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	prompt := &models.SmartPrompt{
		ID: "p1", BranchID: "b", UserID: "u",
		Content: "anything new?", PromptType: models.PromptCheckin,
		CreatedAt: now, ExpiresAt: now.Add(48 * time.Hour),
		Status: models.PromptPending,
	}
	require.NoError(t, store.CreatePrompt(ctx, prompt))

	// Mutating the caller's copy must not reach the store.
	prompt.Content = "changed"
	got, err := store.GetPrompt(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "anything new?", got.Content)

	require.NoError(t, store.UpdatePromptStatus(ctx, "p1", models.PromptResponded))
	got, err = store.GetPrompt(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PromptResponded, got.Status)

	missing, err := store.GetPrompt(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStoreDeleteExpiredSkipsResponded(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreatePrompt(ctx, &models.SmartPrompt{
		ID: "stale-pending", ExpiresAt: now.Add(-time.Hour), Status: models.PromptPending,
	}))
	require.NoError(t, store.CreatePrompt(ctx, &models.SmartPrompt{
		ID: "stale-responded", ExpiresAt: now.Add(-time.Hour), Status: models.PromptResponded,
	}))

	deleted, err := store.DeleteExpiredPrompts(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	kept, err := store.GetPrompt(ctx, "stale-responded")
	require.NoError(t, err)
	assert.NotNil(t, kept, "responded prompts are history, not garbage")
}

func TestMemoryStoreRecentAnalysesOrderAndLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.SaveAnalysis(ctx, &models.AnalysisRecord{
			ID: fmt.Sprintf("r%d", i), UserID: "u", BranchID: "b",
			ResponseText: fmt.Sprintf("text %d", i),
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, store.SaveAnalysis(ctx, &models.AnalysisRecord{
		ID: "other", UserID: "someone-else", BranchID: "b", CreatedAt: base.Add(10 * time.Hour),
	}))

	out, err := store.RecentAnalyses(ctx, "u", "b", 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "r4", out[0].ID, "newest first")
	assert.Equal(t, "r2", out[2].ID)
}

func TestMemoryStoreHasPromptSinceBoundary(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreatePrompt(ctx, &models.SmartPrompt{
		ID: "p1", BranchID: "b", UserID: "u",
		PromptType: models.PromptCelebration, CreatedAt: now,
	}))

	// Created exactly at the cutoff counts.
	has, err := store.HasPromptSince(ctx, "u", "b", models.PromptCelebration, now)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = store.HasPromptSince(ctx, "u", "b", models.PromptCelebration, now.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, has)

	has, err = store.HasPromptSince(ctx, "u", "b", models.PromptMilestone, now)
	require.NoError(t, err)
	assert.False(t, has, "type filter applies")
}

func TestMemoryStoreConversationStateIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	state := &models.ConversationState{UserID: "u", BranchID: "b", Phase: models.PhaseActive}
	require.NoError(t, store.UpsertConversationState(ctx, state))

	got, err := store.GetConversationState(ctx, "u", "b")
	require.NoError(t, err)
	require.NotNil(t, got)

	got.Phase = models.PhaseConcluded
	again, err := store.GetConversationState(ctx, "u", "b")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseActive, again.Phase)

	absent, err := store.GetConversationState(ctx, "u", "other-branch")
	require.NoError(t, err)
	assert.Nil(t, absent)
}
