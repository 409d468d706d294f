package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arborhq/arbor/internal/models"
)

// MemoryStore is an in-process Store used for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	analyses []*models.AnalysisRecord
	states   map[string]*models.ConversationState
	prompts  map[string]*models.SmartPrompt
	leaves   []*models.Leaf
	members  []*models.BranchMember
	branches map[string]*models.Branch
	users    map[string]*models.UserProfile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:   make(map[string]*models.ConversationState),
		prompts:  make(map[string]*models.SmartPrompt),
		branches: make(map[string]*models.Branch),
		users:    make(map[string]*models.UserProfile),
	}
}

func stateKey(userID, branchID string) string {
	return userID + ":" + branchID
}

func (s *MemoryStore) SaveAnalysis(ctx context.Context, rec *models.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.analyses = append(s.analyses, &cp)
	return nil
}

func (s *MemoryStore) RecentAnalyses(ctx context.Context, userID, branchID string, limit int) ([]*models.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.AnalysisRecord
	for _, rec := range s.analyses {
		if rec.UserID == userID && rec.BranchID == branchID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetConversationState(ctx context.Context, userID, branchID string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if state, exists := s.states[stateKey(userID, branchID)]; exists {
		cp := *state
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) UpsertConversationState(ctx context.Context, state *models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *state
	s.states[stateKey(state.UserID, state.BranchID)] = &cp
	return nil
}

func (s *MemoryStore) CreatePrompt(ctx context.Context, p *models.SmartPrompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.prompts[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetPrompt(ctx context.Context, id string) (*models.SmartPrompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, exists := s.prompts[id]; exists {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) UpdatePromptStatus(ctx context.Context, id string, status models.PromptStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, exists := s.prompts[id]; exists {
		p.Status = status
	}
	return nil
}

func (s *MemoryStore) PendingPrompts(ctx context.Context, userID, branchID string) ([]*models.SmartPrompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.SmartPrompt
	for _, p := range s.prompts {
		if p.UserID == userID && p.BranchID == branchID && p.Status == models.PromptPending {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) HasPromptSince(ctx context.Context, userID, branchID string, pt models.PromptType, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.prompts {
		if p.UserID == userID && p.BranchID == branchID && p.PromptType == pt && !p.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) DeleteExpiredPrompts(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, p := range s.prompts {
		if p.Status == models.PromptPending && now.After(p.ExpiresAt) {
			delete(s.prompts, id)
			deleted++
		}
	}
	return deleted, nil
}

// AddLeaf seeds a content record. Leaves are written by the application's
// content path, not by the engine; this exists for wiring and tests.
func (s *MemoryStore) AddLeaf(leaf *models.Leaf) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *leaf
	s.leaves = append(s.leaves, &cp)
}

func (s *MemoryStore) RecentLeaves(ctx context.Context, branchID string, limit int) ([]*models.Leaf, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Leaf
	for _, l := range s.leaves {
		if l.BranchID == branchID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) RecentLeavesByAuthor(ctx context.Context, branchID, authorID string, limit int) ([]*models.Leaf, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Leaf
	for _, l := range s.leaves {
		if l.BranchID == branchID && l.AuthorID == authorID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) LeavesSince(ctx context.Context, branchID string, since time.Time) ([]*models.Leaf, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Leaf
	for _, l := range s.leaves {
		if l.BranchID == branchID && !l.CreatedAt.Before(since) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *MemoryStore) CountLeavesByAuthorSince(ctx context.Context, branchID, authorID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, l := range s.leaves {
		if l.BranchID == branchID && l.AuthorID == authorID && !l.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// AddMember seeds a branch membership.
func (s *MemoryStore) AddMember(m *models.BranchMember) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *m
	s.members = append(s.members, &cp)
}

func (s *MemoryStore) ActiveMembers(ctx context.Context) ([]*models.BranchMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.BranchMember
	for _, m := range s.members {
		if m.Active {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// AddBranch seeds branch metadata.
func (s *MemoryStore) AddBranch(b *models.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *b
	s.branches[b.ID] = &cp
}

func (s *MemoryStore) Branches(ctx context.Context) ([]*models.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Branch, 0, len(s.branches))
	for _, b := range s.branches {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetBranch(ctx context.Context, id string) (*models.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, exists := s.branches[id]; exists {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

// AddUserProfile seeds user metadata.
func (s *MemoryStore) AddUserProfile(u *models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *u
	s.users[u.ID] = &cp
}

func (s *MemoryStore) GetUserProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, exists := s.users[id]; exists {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
