package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"qabulxona/backend/internal/models"
)

const blockedCacheTTL = 10 * time.Minute

func blockedKey(userID int64) string {
	return "blocked:" + strconv.FormatInt(userID, 10)
}

// AddComment appends an admin note. The complaint is not required to exist.
func (s *Service) AddComment(ctx context.Context, complaintID, text string, adminID int64) error {
	c := models.Comment{ComplaintID: complaintID, Text: text, AdminID: adminID}
	if err := s.DB.WithContext(ctx).Create(&c).Error; err != nil {
		return fmt.Errorf("add comment to %s: %w", complaintID, err)
	}
	return nil
}

func (s *Service) ListComments(ctx context.Context, complaintID string) ([]models.Comment, error) {
	var out []models.Comment
	if err := s.DB.WithContext(ctx).
		Where("complaint_id = ?", complaintID).
		Order("created_at asc, id asc").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list comments of %s: %w", complaintID, err)
	}
	return out, nil
}

// SetBlocked upserts the block record and refreshes the cache.
func (s *Service) SetBlocked(ctx context.Context, userID int64, reason string) error {
	b := models.BlockedUser{UserID: userID, Reason: reason, BlockedAt: time.Now()}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason", "blocked_at"}),
	}).Create(&b).Error
	if err != nil {
		return fmt.Errorf("block user %d: %w", userID, err)
	}
	s.cacheBlocked(ctx, userID, true)
	return nil
}

func (s *Service) Unblock(ctx context.Context, userID int64) error {
	if err := s.DB.WithContext(ctx).Delete(&models.BlockedUser{}, "user_id = ?", userID).Error; err != nil {
		return fmt.Errorf("unblock user %d: %w", userID, err)
	}
	s.cacheBlocked(ctx, userID, false)
	return nil
}

// IsBlocked checks Redis first and falls back to the database on a miss or
// a Redis failure.
func (s *Service) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	if s.Redis != nil {
		val, err := s.Redis.Get(ctx, blockedKey(userID)).Result()
		switch {
		case err == nil:
			return val == "1", nil
		case !errors.Is(err, redis.Nil):
			s.log.Warn().Err(err).Int64("user_id", userID).Msg("blocked cache unavailable")
		}
	}

	var b models.BlockedUser
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&b).Error
	blocked := true
	if errors.Is(err, gorm.ErrRecordNotFound) {
		blocked = false
	} else if err != nil {
		return false, fmt.Errorf("check block of %d: %w", userID, err)
	}
	s.cacheBlocked(ctx, userID, blocked)
	return blocked, nil
}

func (s *Service) cacheBlocked(ctx context.Context, userID int64, blocked bool) {
	if s.Redis == nil {
		return
	}
	val := "0"
	if blocked {
		val = "1"
	}
	if err := s.Redis.Set(ctx, blockedKey(userID), val, blockedCacheTTL).Err(); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("failed to cache block status")
	}
}

func (s *Service) AppendAudit(ctx context.Context, actorID int64, action, details string) error {
	e := models.AuditEntry{ActorID: actorID, Action: action, Details: details}
	if err := s.DB.WithContext(ctx).Create(&e).Error; err != nil {
		return fmt.Errorf("append audit %s: %w", action, err)
	}
	return nil
}

// ListAudit returns the newest entries first.
func (s *Service) ListAudit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	var out []models.AuditEntry
	if err := s.DB.WithContext(ctx).Order("created_at desc, id desc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return out, nil
}
