package repository

import (
	"context"

	"warbler/internal/models"

	"gorm.io/gorm"
)

// LikeRepository stores like edges between users and messages.
type LikeRepository interface {
	Toggle(ctx context.Context, userID, messageID uint) (bool, error)
	IsLiked(ctx context.Context, userID, messageID uint) (bool, error)
	Count(ctx context.Context, messageID uint) (int64, error)
	CountByMessages(ctx context.Context, messageIDs []uint) (map[uint]int64, error)
	LikedMessages(ctx context.Context, userID uint) ([]models.Message, error)
	LikedIDs(ctx context.Context, userID uint) ([]uint, error)
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository returns a new LikeRepository implementation.
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

// Toggle removes the edge if present, otherwise inserts it, and reports
// whether the message is liked afterwards. A concurrent insert of the same
// edge surfaces as CONFLICT.
func (r *likeRepository) Toggle(ctx context.Context, userID, messageID uint) (bool, error) {
	var liked bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND message_id = ?", userID, messageID).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			liked = false
			return nil
		}
		if err := tx.Create(&models.Like{UserID: userID, MessageID: messageID}).Error; err != nil {
			return err
		}
		liked = true
		return nil
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return false, models.NewConflictError("Like changed concurrently", err)
		}
		return false, models.NewInternalError(err)
	}
	return liked, nil
}

func (r *likeRepository) IsLiked(ctx context.Context, userID, messageID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *likeRepository) Count(ctx context.Context, messageID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Where("message_id = ?", messageID).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// CountByMessages returns like counts keyed by message id; messages without likes are absent.
func (r *likeRepository) CountByMessages(ctx context.Context, messageIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(messageIDs))
	if len(messageIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		MessageID uint
		Total     int64
	}
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Select("message_id, COUNT(*) AS total").
		Where("message_id IN ?", messageIDs).
		Group("message_id").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, row := range rows {
		counts[row.MessageID] = row.Total
	}
	return counts, nil
}

// LikedMessages returns the messages userID has liked, most recently liked first.
func (r *likeRepository) LikedMessages(ctx context.Context, userID uint) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Preload("User").
		Joins("JOIN likes ON likes.message_id = messages.id").
		Where("likes.user_id = ?", userID).
		Order("likes.created_at DESC").
		Order("messages.id DESC").
		Find(&msgs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return msgs, nil
}

func (r *likeRepository) LikedIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Where("user_id = ?", userID).Pluck("message_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
