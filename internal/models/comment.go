package models

import "time"

// Comment is an admin note attached to a complaint. Comments are append-only
// and survive deletion of the complaint they reference.
type Comment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ComplaintID string    `gorm:"not null;index" json:"complaint_id"`
	Text        string    `gorm:"type:text;not null" json:"text"`
	AdminID     int64     `gorm:"not null" json:"admin_id"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}
