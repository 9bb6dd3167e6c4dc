package domain

import (
	"fmt"
	"time"
)

// Notification types
const (
	NotificationNewMessage     = "new_message"
	NotificationNewComment     = "new_comment"
	NotificationAffiliateClick = "affiliate_click"
)

// Notification target kinds. The target is a tagged reference instead of a
// polymorphic foreign key: TargetKind says which table TargetID points into.
const (
	TargetMessage = "message"
	TargetComment = "comment"
	TargetProduct = "product"
)

// Notification represents a user-facing event notice.
//
// For new_message notifications, repeated sends from the same actor within
// the coalescing window update one unread row (Count incremented, Message
// regenerated) instead of creating duplicates.
type Notification struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RecipientID uint      `gorm:"index:idx_notifications_recipient_read;not null" json:"recipient_id"`
	Type        string    `gorm:"size:20;not null" json:"type"`
	Message     string    `gorm:"type:text" json:"message"`
	TargetKind  string    `gorm:"size:20;not null;index:idx_notifications_target" json:"target_kind"`
	TargetID    uint      `gorm:"not null;index:idx_notifications_target" json:"target_id"`
	ActorID     *uint     `gorm:"index" json:"actor_id,omitempty"`
	Count       int       `gorm:"default:1" json:"count"`
	IsRead      bool      `gorm:"default:false;index:idx_notifications_recipient_read" json:"is_read"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// TargetURL resolves the frontend path for the notification target
func (n *Notification) TargetURL() string {
	switch n.TargetKind {
	case TargetMessage:
		if n.ActorID != nil {
			return fmt.Sprintf("/messages/conversation/%d", *n.ActorID)
		}
		return fmt.Sprintf("/messages/%d", n.TargetID)
	case TargetComment:
		return fmt.Sprintf("/comments/%d", n.TargetID)
	case TargetProduct:
		return fmt.Sprintf("/products/%d", n.TargetID)
	default:
		return ""
	}
}

// NotificationItem represents a single notification in list responses
type NotificationItem struct {
	ID        uint   `json:"id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	URL       string `json:"url,omitempty"`
	ActorID   *uint  `json:"actor_id,omitempty"`
	Count     int    `json:"count"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

// ToItem converts Notification to NotificationItem
func (n *Notification) ToItem() NotificationItem {
	return NotificationItem{
		ID:        n.ID,
		Type:      n.Type,
		Message:   n.Message,
		URL:       n.TargetURL(),
		ActorID:   n.ActorID,
		Count:     n.Count,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}

// NotificationListResponse represents notification list response
type NotificationListResponse struct {
	Items       []NotificationItem `json:"items"`
	Total       int64              `json:"total"`
	UnreadCount int64              `json:"unread_count"`
	Page        int                `json:"page"`
	Limit       int                `json:"limit"`
}

// NotificationSummaryResponse represents unread count response
type NotificationSummaryResponse struct {
	TotalUnread int64 `json:"total_unread"`
}
