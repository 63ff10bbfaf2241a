package models

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Status is the triage state of a complaint.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
)

// ErrInvalidStatus is returned for any status outside the three known values.
var ErrInvalidStatus = errors.New("invalid complaint status")

// Statuses lists the valid statuses in workflow order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusResolved}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// ParseStatus accepts "Pending", "In Progress" (or "InProgress") and "Resolved",
// case-insensitively. Anything else yields ErrInvalidStatus.
func ParseStatus(raw string) (Status, error) {
	normalized := strings.ToLower(strings.Join(strings.Fields(raw), ""))
	switch normalized {
	case "pending":
		return StatusPending, nil
	case "inprogress":
		return StatusInProgress, nil
	case "resolved":
		return StatusResolved, nil
	}
	return "", ErrInvalidStatus
}

// MediaKind distinguishes attachment types accepted by the wizard.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// MediaItem is a reference to a file already stored by the messaging platform.
type MediaItem struct {
	Kind   MediaKind `json:"kind"`
	FileID string    `json:"file_id"`
}

// Complaint is a submitted citizen case.
type Complaint struct {
	// ID is generated at submission time by the configured id scheme.
	ID string `gorm:"primaryKey" json:"id"`
	// SubmitterID is the Telegram chat id of the citizen.
	SubmitterID int64 `gorm:"not null;index" json:"submitter_id" validate:"required"`
	// SubmitterHandle is the Telegram username at submission time.
	SubmitterHandle string `json:"submitter_handle"`
	FullName        string `gorm:"not null" json:"full_name" validate:"required,min=3"`
	Address         string `gorm:"not null" json:"address" validate:"required,min=3"`
	Phone           string `gorm:"not null" json:"phone" validate:"required"`
	// NationalID is only collected when the deployment requires it.
	NationalID string `json:"national_id,omitempty"`
	Section    string `gorm:"not null;index" json:"section" validate:"required"`
	Summary    string `gorm:"type:text;not null" json:"summary" validate:"required,min=5"`
	Status     Status `gorm:"type:text;not null;index" json:"status"`
	// Language is the locale the submitter used; status notifications reuse it.
	Language string                         `json:"language"`
	Media    datatypes.JSONSlice[MediaItem] `json:"media"`
	Assignee *string                        `json:"assignee,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var validate = validator.New()

// Validate checks the fields that must be present before a complaint is stored.
func (c *Complaint) Validate() error {
	return validate.Struct(c)
}

// BeforeCreate fills the id and status when the caller left them empty.
func (c *Complaint) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = StatusPending
	}
	return
}

// AssigneeOr returns the assignee or fallback when nobody is assigned.
func (c *Complaint) AssigneeOr(fallback string) string {
	if c.Assignee == nil || *c.Assignee == "" {
		return fallback
	}
	return *c.Assignee
}
