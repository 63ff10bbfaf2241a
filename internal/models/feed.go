package models

import "time"

// FeedEvent is pushed to live dashboard subscribers.
type FeedEvent struct {
	Type        string    `json:"type"` // "complaint_submitted", "status_changed", "complaint_deleted"
	ComplaintID string    `json:"complaint_id"`
	Section     string    `json:"section,omitempty"`
	Status      Status    `json:"status,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	At          time.Time `json:"at"`
}
