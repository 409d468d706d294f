package models

import "time"

// TimeContext buckets the current moment for prompt conditioning.
type TimeContext struct {
	TimeOfDay string `json:"time_of_day"` // morning, afternoon, evening, night
	Weekday   string `json:"weekday"`
	Season    string `json:"season"`
}

// TimeContextAt derives the time context for a given moment.
func TimeContextAt(t time.Time) TimeContext {
	var bucket string
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		bucket = "morning"
	case h >= 12 && h < 17:
		bucket = "afternoon"
	case h >= 17 && h < 22:
		bucket = "evening"
	default:
		bucket = "night"
	}

	var season string
	switch t.Month() {
	case time.March, time.April, time.May:
		season = "spring"
	case time.June, time.July, time.August:
		season = "summer"
	case time.September, time.October, time.November:
		season = "autumn"
	default:
		season = "winter"
	}

	return TimeContext{
		TimeOfDay: bucket,
		Weekday:   t.Weekday().String(),
		Season:    season,
	}
}

// AIContext is the read-only bundle of user, branch, and history signals the
// generation layers condition on.
type AIContext struct {
	UserID       string                  `json:"user_id"`
	UserName     string                  `json:"user_name"`
	BranchID     string                  `json:"branch_id"`
	BranchName   string                  `json:"branch_name"`
	RecentLeaves []*Leaf                 `json:"recent_leaves,omitempty"` // last 10, newest first
	Preferences  ConversationPreferences `json:"preferences"`
	Time         TimeContext             `json:"time"`
}

// LastLeafContent returns the text of the most recent leaf, or "".
func (c *AIContext) LastLeafContent() string {
	if len(c.RecentLeaves) == 0 {
		return ""
	}
	return c.RecentLeaves[0].Content
}
