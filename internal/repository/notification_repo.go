package repository

import (
	"errors"
	"time"

	"github.com/dogworld/dogworld-backend/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationRepository handles notification data operations
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a new notification
func (r *NotificationRepository) Create(notification *domain.Notification) error {
	return r.db.Create(notification).Error
}

// FindByID returns a notification by ID, or nil when absent
func (r *NotificationRepository) FindByID(id uint) (*domain.Notification, error) {
	var notification domain.Notification
	err := r.db.Where("id = ?", id).First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &notification, nil
}

// GetList returns paginated notifications for a recipient, newest first.
// Staff may list across all recipients.
func (r *NotificationRepository) GetList(recipientID uint, staff bool, offset, limit int) ([]domain.Notification, int64, error) {
	var notifications []domain.Notification
	var total int64

	q := r.db.Model(&domain.Notification{})
	if !staff {
		q = q.Where("recipient_id = ?", recipientID)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := q.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

// GetUnreadCount returns the number of unread notifications for a recipient
func (r *NotificationRepository) GetUnreadCount(recipientID uint) (int64, error) {
	var count int64
	err := r.db.Model(&domain.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	return count, err
}

// MarkAsRead marks a notification as read
func (r *NotificationRepository) MarkAsRead(id uint) error {
	return r.db.Model(&domain.Notification{}).
		Where("id = ? AND is_read = ?", id, false).
		Update("is_read", true).Error
}

// MarkAllAsRead marks all of a recipient's notifications read,
// returning the number updated
func (r *NotificationRepository) MarkAllAsRead(recipientID uint) (int64, error) {
	res := r.db.Model(&domain.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// Delete deletes a notification by ID
func (r *NotificationRepository) Delete(id uint) error {
	return r.db.Where("id = ?", id).Delete(&domain.Notification{}).Error
}

// CoalesceNewMessage creates or updates the unread new-message notification
// for (recipient, sender) inside one transaction. An existing unread row
// created within the window is locked, its counter incremented and its text
// regenerated; otherwise a fresh row with count 1 is inserted. The row lock
// prevents two concurrent sends from each inserting a duplicate.
//
// buildMessage receives the cumulative count and produces the display text.
// A window of zero disables coalescing entirely.
func (r *NotificationRepository) CoalesceNewMessage(
	recipientID, senderID, messageID uint,
	window time.Duration,
	buildMessage func(count int) string,
) (*domain.Notification, error) {
	var result *domain.Notification

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if window > 0 {
			q := tx.Where(
				"recipient_id = ? AND type = ? AND actor_id = ? AND is_read = ? AND created_at > ?",
				recipientID, domain.NotificationNewMessage, senderID, false, time.Now().Add(-window),
			).Order("id DESC")
			// sqlite has no FOR UPDATE; its writes are serialized anyway
			if tx.Dialector.Name() == "mysql" {
				q = q.Clauses(clause.Locking{Strength: "UPDATE"})
			}

			var existing domain.Notification
			err := q.First(&existing).Error
			switch {
			case err == nil:
				updated := existing
				updated.Count = existing.Count + 1
				updated.Message = buildMessage(updated.Count)
				updated.TargetID = messageID
				updated.CreatedAt = time.Now()
				if err := tx.Model(&domain.Notification{}).
					Where("id = ?", existing.ID).
					Updates(map[string]interface{}{
						"count":      updated.Count,
						"message":    updated.Message,
						"target_id":  updated.TargetID,
						"created_at": updated.CreatedAt,
					}).Error; err != nil {
					return err
				}
				result = &updated
				return nil
			case errors.Is(err, gorm.ErrRecordNotFound):
				// fall through to create
			default:
				return err
			}
		}

		fresh := &domain.Notification{
			RecipientID: recipientID,
			Type:        domain.NotificationNewMessage,
			Message:     buildMessage(1),
			TargetKind:  domain.TargetMessage,
			TargetID:    messageID,
			ActorID:     &senderID,
			Count:       1,
		}
		if err := tx.Create(fresh).Error; err != nil {
			return err
		}
		result = fresh
		return nil
	})

	return result, err
}
