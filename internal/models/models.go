package models

import "time"

// Sentiment is the coarse emotional polarity of a message.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Urgency classifies how soon a message deserves attention.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Engagement grades how rich a user response was.
type Engagement string

const (
	EngagementLow    Engagement = "low"
	EngagementMedium Engagement = "medium"
	EngagementHigh   Engagement = "high"
)

// CategoryScore is one classification rule hit with its confidence.
type CategoryScore struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// MessageAnalysis is the structured result of analyzing one free-form message.
// It is ephemeral; AnalysisRecord is the durable form.
type MessageAnalysis struct {
	Categories     []CategoryScore `json:"categories"`
	Tags           []string        `json:"tags"`
	Sentiment      Sentiment       `json:"sentiment"`
	Topics         []string        `json:"topics"`
	Urgency        Urgency         `json:"urgency"`
	Milestone      string          `json:"milestone,omitempty"`
	People         []string        `json:"people,omitempty"`
	Locations      []string        `json:"locations,omitempty"`
	TimeReferences []string        `json:"time_references,omitempty"`
}

// PrimaryCategory returns the highest-confidence category, if any.
func (a MessageAnalysis) PrimaryCategory() (CategoryScore, bool) {
	if len(a.Categories) == 0 {
		return CategoryScore{}, false
	}
	return a.Categories[0], true
}

// AnalysisRecord is the durable, append-only record of one analyzed response.
type AnalysisRecord struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	BranchID     string          `json:"branch_id"`
	ResponseText string          `json:"response_text"`
	Analysis     MessageAnalysis `json:"analysis"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ConversationPhase tracks where a user is in their prompting dialogue.
type ConversationPhase string

const (
	PhaseInitial   ConversationPhase = "initial"
	PhaseActive    ConversationPhase = "active"
	PhaseFollowup  ConversationPhase = "followup"
	PhaseConcluded ConversationPhase = "concluded"
)

// ConversationPreferences are learned per user and branch.
type ConversationPreferences struct {
	PromptStyle        string   `json:"prompt_style"`         // casual, playful, formal
	ReminderFrequency  string   `json:"reminder_frequency"`   // low, medium, high
	PreferredTopics    []string `json:"preferred_topics"`     // cap 10, FIFO
	BestTimeForPrompts string   `json:"best_time_for_prompts"` // morning, afternoon, evening, anytime
}

// ResponseRecord is one entry in the conversation response history.
type ResponseRecord struct {
	Prompt     string     `json:"prompt"`
	Response   string     `json:"response"`
	Engagement Engagement `json:"engagement"`
	Timestamp  time.Time  `json:"timestamp"`
}

// ConversationState is the durable per-(user,branch) conversation record.
type ConversationState struct {
	UserID          string                  `json:"user_id"`
	BranchID        string                  `json:"branch_id"`
	Phase           ConversationPhase       `json:"phase"`
	LastInteraction time.Time               `json:"last_interaction"`
	Preferences     ConversationPreferences `json:"preferences"`
	ResponseHistory []ResponseRecord        `json:"response_history"` // cap 50, FIFO
}

// PromptType enumerates the kinds of SmartPrompt the engine produces.
type PromptType string

const (
	PromptCheckin     PromptType = "checkin"
	PromptMilestone   PromptType = "milestone"
	PromptMemory      PromptType = "memory"
	PromptFollowup    PromptType = "followup"
	PromptCelebration PromptType = "celebration"
	PromptLeafCaption PromptType = "leaf_caption"
	PromptLeafTags    PromptType = "leaf_tags"
)

// PromptStatus is the stored lifecycle state of a SmartPrompt.
type PromptStatus string

const (
	PromptPending   PromptStatus = "pending"
	PromptResponded PromptStatus = "responded"
	PromptDismissed PromptStatus = "dismissed"
	PromptExpired   PromptStatus = "expired"
)

// AIMetadata records how a prompt's content was produced.
type AIMetadata struct {
	Provider   string  `json:"provider"`
	Model      string  `json:"model,omitempty"`
	Confidence float64 `json:"confidence"`
	Template   string  `json:"template,omitempty"`
}

// SmartPrompt is a system-generated nudge intended to elicit new content.
type SmartPrompt struct {
	ID                 string       `json:"id"`
	BranchID           string       `json:"branch_id"`
	UserID             string       `json:"user_id"`
	Content            string       `json:"content"`
	PromptType         PromptType   `json:"prompt_type"`
	SuggestedResponses []string     `json:"suggested_responses,omitempty"`
	AIMetadata         AIMetadata   `json:"ai_metadata"`
	CreatedAt          time.Time    `json:"created_at"`
	ExpiresAt          time.Time    `json:"expires_at"`
	Status             PromptStatus `json:"status"`
}

// EffectiveStatus derives the lifecycle state at read time. Expiry is never
// written back to the stored status; it is always computed from ExpiresAt.
func (p *SmartPrompt) EffectiveStatus(now time.Time) PromptStatus {
	if p.Status == PromptPending && now.After(p.ExpiresAt) {
		return PromptExpired
	}
	return p.Status
}

// Valid reports whether the prompt is still awaiting a response.
func (p *SmartPrompt) Valid(now time.Time) bool {
	return p.EffectiveStatus(now) == PromptPending
}

// UserPattern is the recomputed longitudinal summary of a user's behavior in
// a branch. Cached with a 24h TTL; recomputable from the store at any time.
type UserPattern struct {
	UserID   string `json:"user_id"`
	BranchID string `json:"branch_id"`

	PreferredPromptTypes []PromptType `json:"preferred_prompt_types"`
	BestResponseHours    []int        `json:"best_response_hours"`
	EngagementTriggers   []string     `json:"engagement_triggers"`

	AvgResponseLength     float64    `json:"avg_response_length"`
	ResponseFrequencyDays float64    `json:"response_frequency_days"`
	SentimentTrend        string     `json:"sentiment_trend"` // improving, declining, stable
	EngagementLevel       Engagement `json:"engagement_level"`

	CommonTopics     []string `json:"common_topics"`
	CommonTags       []string `json:"common_tags"`
	CommonMilestones []string `json:"common_milestones"`
	CommonPeople     []string `json:"common_people"`
	CommonLocations  []string `json:"common_locations"`

	MostActiveHours []int    `json:"most_active_hours"`
	PreferredDays   []string `json:"preferred_days"`

	ComputedAt time.Time `json:"computed_at"`
}

// Leaf is an atomic user content unit within a branch. The engine reads
// leaves but never writes them.
type Leaf struct {
	ID        string    `json:"id"`
	BranchID  string    `json:"branch_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	MediaURLs []string  `json:"media_urls,omitempty"`
	Milestone string    `json:"milestone,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Season    string    `json:"season,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Branch is a sub-group within a family tree.
type Branch struct {
	ID          string `json:"id"`
	TreeID      string `json:"tree_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// BranchMember is one user's membership in a branch.
type BranchMember struct {
	BranchID string `json:"branch_id"`
	UserID   string `json:"user_id"`
	Role     string `json:"role,omitempty"`
	Active   bool   `json:"active"`
}

// UserProfile is the minimal identity the engine needs about a user.
type UserProfile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LeafEnhancementRequest asks for best-effort caption/tag assistance for a
// leaf being created.
type LeafEnhancementRequest struct {
	LeafID     string   `json:"leaf_id"`
	Content    string   `json:"content"`
	MediaURLs  []string `json:"media_urls,omitempty"`
	AuthorName string   `json:"author_name,omitempty"`
	BranchName string   `json:"branch_name,omitempty"`
	TreeName   string   `json:"tree_name,omitempty"`
}

// LeafEnhancement is the suggested enrichment for a leaf.
type LeafEnhancement struct {
	LeafID          string   `json:"leaf_id"`
	Caption         string   `json:"caption,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Milestone       string   `json:"milestone,omitempty"`
	SuggestedSeason string   `json:"suggested_season,omitempty"`
	Confidence      float64  `json:"confidence"`
}

// LeafQuality grades how much context a leaf's text carries, with at most
// four prioritized improvement suggestions.
type LeafQuality struct {
	Tier        string   `json:"tier"` // high, medium, low
	Score       int      `json:"score"`
	Suggestions []string `json:"suggestions,omitempty"`
}
