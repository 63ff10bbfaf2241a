// Package storage persists complaints, comments, blocked users and the audit
// trail in PostgreSQL through gorm. Redis, when configured, caches the
// blocked-user lookup that runs on every inbound event.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"qabulxona/backend/internal/models"
)

var (
	// ErrNotFound is returned when a complaint id does not exist.
	ErrNotFound = errors.New("complaint not found")
	// ErrDuplicateID is returned when a generated complaint id collides.
	ErrDuplicateID = errors.New("complaint id already exists")
)

// Storage is the complaint repository used by the bot and the admin tools.
type Storage interface {
	InsertComplaint(ctx context.Context, c *models.Complaint) error
	GetComplaint(ctx context.Context, id string) (*models.Complaint, error)
	UpdateStatus(ctx context.Context, id string, status models.Status) error
	UpdateAssignee(ctx context.Context, id, assignee string) error
	UpdateSummary(ctx context.Context, id, summary string) error
	DeleteComplaint(ctx context.Context, id string) error

	ListByUser(ctx context.Context, userID int64) ([]models.Complaint, error)
	ListBySection(ctx context.Context, section string) ([]models.Complaint, error)
	ListByStatus(ctx context.Context, status models.Status) ([]models.Complaint, error)
	ListAll(ctx context.Context) ([]models.Complaint, error)
	ListSubmitterIDs(ctx context.Context) ([]int64, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error)

	AddComment(ctx context.Context, complaintID, text string, adminID int64) error
	ListComments(ctx context.Context, complaintID string) ([]models.Comment, error)

	SetBlocked(ctx context.Context, userID int64, reason string) error
	Unblock(ctx context.Context, userID int64) error
	IsBlocked(ctx context.Context, userID int64) (bool, error)

	AppendAudit(ctx context.Context, actorID int64, action, details string) error
	ListAudit(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	log   zerolog.Logger
}

// NewStorageService Constructor. rdb may be nil.
func NewStorageService(db *gorm.DB, rdb *redis.Client, log zerolog.Logger) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		log:   log.With().Str("component", "storage").Logger(),
	}
}

// InsertComplaint stores c in a single transaction. The row is either fully
// written or absent.
func (s *Service) InsertComplaint(ctx context.Context, c *models.Complaint) error {
	if c.Status == "" {
		c.Status = models.StatusPending
	}
	if !c.Status.Valid() {
		return models.ErrInvalidStatus
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(c).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateID
	}
	if err != nil {
		s.log.Error().Err(err).Str("complaint_id", c.ID).Msg("failed to insert complaint")
		return fmt.Errorf("insert complaint: %w", err)
	}
	return nil
}

func (s *Service) GetComplaint(ctx context.Context, id string) (*models.Complaint, error) {
	var c models.Complaint
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get complaint %s: %w", id, err)
	}
	return &c, nil
}

// UpdateStatus rejects anything outside the three workflow statuses before
// touching the row.
func (s *Service) UpdateStatus(ctx context.Context, id string, status models.Status) error {
	if !status.Valid() {
		return models.ErrInvalidStatus
	}
	return s.updateColumn(ctx, id, "status", status)
}

func (s *Service) UpdateAssignee(ctx context.Context, id, assignee string) error {
	return s.updateColumn(ctx, id, "assignee", assignee)
}

func (s *Service) UpdateSummary(ctx context.Context, id, summary string) error {
	return s.updateColumn(ctx, id, "summary", summary)
}

func (s *Service) updateColumn(ctx context.Context, id, column string, value any) error {
	res := s.DB.WithContext(ctx).Model(&models.Complaint{}).
		Where("id = ?", id).
		Update(column, value)
	if res.Error != nil {
		return fmt.Errorf("update %s of %s: %w", column, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteComplaint removes the complaint row. Comments are left in place.
func (s *Service) DeleteComplaint(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Complaint{})
	if res.Error != nil {
		return fmt.Errorf("delete complaint %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]models.Complaint, error) {
	return s.list(ctx, "submitter_id = ?", userID)
}

func (s *Service) ListBySection(ctx context.Context, section string) ([]models.Complaint, error) {
	return s.list(ctx, "section = ?", section)
}

func (s *Service) ListByStatus(ctx context.Context, status models.Status) ([]models.Complaint, error) {
	return s.list(ctx, "status = ?", status)
}

func (s *Service) ListAll(ctx context.Context) ([]models.Complaint, error) {
	return s.list(ctx, "")
}

func (s *Service) list(ctx context.Context, query string, args ...any) ([]models.Complaint, error) {
	var out []models.Complaint
	q := s.DB.WithContext(ctx).Order("created_at asc")
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	return out, nil
}

// ListSubmitterIDs returns every distinct user who ever submitted a complaint.
func (s *Service) ListSubmitterIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.DB.WithContext(ctx).Model(&models.Complaint{}).
		Distinct("submitter_id").
		Pluck("submitter_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list submitters: %w", err)
	}
	return ids, nil
}

// CountCreatedBetween counts complaints with from <= created_at < to.
func (s *Service) CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.Complaint{}).
		Where("created_at >= ? AND created_at < ?", from, to).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count complaints: %w", err)
	}
	return n, nil
}
