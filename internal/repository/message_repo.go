package repository

import (
	"time"

	"github.com/dogworld/dogworld-backend/internal/domain"
	"gorm.io/gorm"
)

// ConversationSummary is one row of the grouped-by-counterpart aggregate.
// LatestMessageID relies on ids being assigned monotonically at send time and
// doubles as the recency key; the last-activity timestamp comes from the
// latest message row resolved by the batched lookup that follows. Scanning
// only integer aggregates keeps the query portable across sql drivers.
type ConversationSummary struct {
	CounterpartID   uint  `gorm:"column:counterpart_id"`
	LatestMessageID uint  `gorm:"column:latest_message_id"`
	UnreadCount     int64 `gorm:"column:unread_count"`
}

// MessageRepository message data access interface
type MessageRepository interface {
	Create(msg *domain.Message) error
	FindByID(id uint) (*domain.Message, error)
	FindByIDs(ids []uint) (map[uint]*domain.Message, error)
	ListVisible(userID uint, staff bool, page, limit int) ([]*domain.Message, int64, error)
	ListConversation(userID, otherID uint, beforeID uint, limit int) ([]*domain.Message, bool, error)
	ConversationSummaries(userID uint) ([]ConversationSummary, error)
	MarkRead(id uint, readAt time.Time) error
	MarkConversationRead(userID, otherID uint, readAt time.Time) (int64, error)
	SetDeletionFlag(id uint, bySender bool) error
	HardDelete(id uint) error
	DeleteConversation(userID, otherID uint) (int64, error)
	UnreadCount(userID uint) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create persists a new message
func (r *messageRepository) Create(msg *domain.Message) error {
	return r.db.Create(msg).Error
}

// FindByID finds a message by ID, regardless of deletion flags
func (r *messageRepository) FindByID(id uint) (*domain.Message, error) {
	var msg domain.Message
	if err := r.db.Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindByIDs loads several messages in one query, keyed by id.
// Second batched lookup of the conversation aggregator.
func (r *messageRepository) FindByIDs(ids []uint) (map[uint]*domain.Message, error) {
	result := make(map[uint]*domain.Message, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var messages []*domain.Message
	if err := r.db.Where("id IN ?", ids).Find(&messages).Error; err != nil {
		return nil, err
	}
	for _, m := range messages {
		result[m.ID] = m
	}
	return result, nil
}

// visibleScope filters to messages the user has not deleted on their side
func visibleScope(userID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(
			"(sender_id = ? AND is_deleted_by_sender = ?) OR (receiver_id = ? AND is_deleted_by_receiver = ?)",
			userID, false, userID, false,
		)
	}
}

// ListVisible returns messages visible to the user, newest first.
// Staff bypass the per-side deletion filtering and see everything.
func (r *messageRepository) ListVisible(userID uint, staff bool, page, limit int) ([]*domain.Message, int64, error) {
	var messages []*domain.Message
	var total int64

	q := r.db.Model(&domain.Message{})
	if !staff {
		q = q.Scopes(visibleScope(userID))
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&messages).Error
	return messages, total, err
}

// pairScope filters to the conversation between two users, each side's own
// deletion flag false
func pairScope(userID, otherID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(
			"(sender_id = ? AND receiver_id = ? AND is_deleted_by_sender = ?) OR (sender_id = ? AND receiver_id = ? AND is_deleted_by_receiver = ?)",
			userID, otherID, false, otherID, userID, false,
		)
	}
}

// ListConversation returns up to limit messages between the two users in
// ascending send order. beforeID is an exclusive cursor for infinite scroll
// (0 means start from the newest); the bool result reports whether older
// messages remain.
func (r *messageRepository) ListConversation(userID, otherID uint, beforeID uint, limit int) ([]*domain.Message, bool, error) {
	q := r.db.Scopes(pairScope(userID, otherID))
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	// Fetch newest-first with one extra row to detect more, then reverse
	var page []*domain.Message
	if err := q.Order("id DESC").Limit(limit + 1).Find(&page).Error; err != nil {
		return nil, false, err
	}

	hasMore := len(page) > limit
	if hasMore {
		page = page[:limit]
	}
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, hasMore, nil
}

// ConversationSummaries computes every distinct counterpart's aggregate in a
// single grouped pass: latest message id and unread count, most recent
// conversation first. Participants and latest-message bodies are resolved
// afterwards by the service through two batched lookups, never per
// conversation.
func (r *messageRepository) ConversationSummaries(userID uint) ([]ConversationSummary, error) {
	var summaries []ConversationSummary
	err := r.db.Model(&domain.Message{}).
		Select(`CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS counterpart_id,
			MAX(id) AS latest_message_id,
			SUM(CASE WHEN receiver_id = ? AND is_read = ? THEN 1 ELSE 0 END) AS unread_count`,
			userID, userID, false).
		Scopes(visibleScope(userID)).
		Group("counterpart_id").
		Order("latest_message_id DESC").
		Scan(&summaries).Error
	return summaries, err
}

// MarkRead sets read state exactly once; a second call matches no rows
func (r *messageRepository) MarkRead(id uint, readAt time.Time) error {
	return r.db.Model(&domain.Message{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": readAt}).Error
}

// MarkConversationRead marks all unread messages from otherID to userID read
// in one statement and returns the number updated
func (r *messageRepository) MarkConversationRead(userID, otherID uint, readAt time.Time) (int64, error) {
	res := r.db.Model(&domain.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ? AND is_deleted_by_receiver = ?",
			otherID, userID, false, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": readAt})
	return res.RowsAffected, res.Error
}

// SetDeletionFlag flips one side's soft-delete flag
func (r *messageRepository) SetDeletionFlag(id uint, bySender bool) error {
	column := "is_deleted_by_receiver"
	if bySender {
		column = "is_deleted_by_sender"
	}
	return r.db.Model(&domain.Message{}).
		Where("id = ?", id).
		Update(column, true).Error
}

// HardDelete permanently removes a message row
func (r *messageRepository) HardDelete(id uint) error {
	return r.db.Unscoped().Where("id = ?", id).Delete(&domain.Message{}).Error
}

// DeleteConversation flags the user's own side on every message of the pair,
// then permanently removes rows now flagged by both sides. Runs in one
// transaction so a concurrent send into the pair cannot be swept with stale
// flags, and the sweep is scoped strictly to this counterpart pair.
func (r *messageRepository) DeleteConversation(userID, otherID uint) (int64, error) {
	var removed int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Message{}).
			Where("sender_id = ? AND receiver_id = ?", userID, otherID).
			Update("is_deleted_by_sender", true).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Message{}).
			Where("sender_id = ? AND receiver_id = ?", otherID, userID).
			Update("is_deleted_by_receiver", true).Error; err != nil {
			return err
		}

		res := tx.Where(
			"((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)) AND is_deleted_by_sender = ? AND is_deleted_by_receiver = ?",
			userID, otherID, otherID, userID, true, true,
		).Delete(&domain.Message{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return nil
	})
	return removed, err
}

// UnreadCount returns the user's total unread received messages
func (r *messageRepository) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&domain.Message{}).
		Where("receiver_id = ? AND is_read = ? AND is_deleted_by_receiver = ?", userID, false, false).
		Count(&count).Error
	return count, err
}
