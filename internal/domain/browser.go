package domain

import "time"

// ActivityNavigation is the only browser activity variant emitted today.
const ActivityNavigation = "navigation"

// BrowserActivity is a tagged browser event reported by the backend.
type BrowserActivity struct {
	Type string `json:"type" validate:"required"`
	URL  string `json:"url,omitempty" validate:"required_if=Type navigation"`
}

// IsNavigation reports whether the activity is a page navigation.
func (a BrowserActivity) IsNavigation() bool {
	return a.Type == ActivityNavigation
}

// BrowserHistoryEntry is a navigation recorded in the client session.
type BrowserHistoryEntry struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryRecord is a navigation persisted by the backend.
type HistoryRecord struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	VisitedAt time.Time `json:"visited_at"`
}
