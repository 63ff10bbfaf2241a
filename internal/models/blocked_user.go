package models

import "time"

// BlockedUser short-circuits every inbound event from UserID.
type BlockedUser struct {
	UserID    int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Reason    string    `json:"reason"`
	BlockedAt time.Time `json:"blocked_at"`
}
