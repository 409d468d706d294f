package storage

import (
	"context"
	"time"

	"github.com/arborhq/arbor/internal/models"
)

// Store is the durable backing for the prompting engine. It is the sole
// source of truth; every in-memory cache above it must be recomputable from
// these primitives.
type Store interface {
	// Analysis records are append-only telemetry.
	SaveAnalysis(ctx context.Context, rec *models.AnalysisRecord) error
	// RecentAnalyses returns up to limit records for the user in the branch,
	// newest first.
	RecentAnalyses(ctx context.Context, userID, branchID string, limit int) ([]*models.AnalysisRecord, error)

	// Conversation states, one per (user, branch).
	// GetConversationState returns (nil, nil) when no state is stored.
	GetConversationState(ctx context.Context, userID, branchID string) (*models.ConversationState, error)
	UpsertConversationState(ctx context.Context, state *models.ConversationState) error

	// Smart prompts.
	CreatePrompt(ctx context.Context, p *models.SmartPrompt) error
	// GetPrompt returns (nil, nil) when the id is unknown.
	GetPrompt(ctx context.Context, id string) (*models.SmartPrompt, error)
	UpdatePromptStatus(ctx context.Context, id string, status models.PromptStatus) error
	// PendingPrompts returns prompts with stored status pending for the user
	// in the branch, regardless of expiry; callers derive effective status.
	PendingPrompts(ctx context.Context, userID, branchID string) ([]*models.SmartPrompt, error)
	// HasPromptSince reports whether a prompt of the given type was created
	// for the user in the branch at or after since.
	HasPromptSince(ctx context.Context, userID, branchID string, pt models.PromptType, since time.Time) (bool, error)
	// DeleteExpiredPrompts removes pending prompts whose expiry has passed
	// and returns how many were deleted.
	DeleteExpiredPrompts(ctx context.Context, now time.Time) (int, error)

	// Leaves are read-only from the engine's perspective.
	RecentLeaves(ctx context.Context, branchID string, limit int) ([]*models.Leaf, error)
	RecentLeavesByAuthor(ctx context.Context, branchID, authorID string, limit int) ([]*models.Leaf, error)
	LeavesSince(ctx context.Context, branchID string, since time.Time) ([]*models.Leaf, error)
	CountLeavesByAuthorSince(ctx context.Context, branchID, authorID string, since time.Time) (int, error)

	// Membership and metadata, read-only.
	ActiveMembers(ctx context.Context) ([]*models.BranchMember, error)
	Branches(ctx context.Context) ([]*models.Branch, error)
	GetBranch(ctx context.Context, id string) (*models.Branch, error)
	GetUserProfile(ctx context.Context, id string) (*models.UserProfile, error)

	Close() error
}
