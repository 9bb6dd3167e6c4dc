package domain

import "time"

// MaxMessageLength caps direct message content
const MaxMessageLength = 1000

// Message represents a direct message between two users.
//
// Deletion is soft per side: each participant flips only their own flag, and
// the row is physically removed once both flags are set. A row stays visible
// to a participant as long as that participant's own flag is false.
type Message struct {
	ID                  uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID            uint       `gorm:"index;not null" json:"sender_id"`
	ReceiverID          uint       `gorm:"index;not null" json:"receiver_id"`
	Content             string     `gorm:"size:1000;not null" json:"content"`
	AttachmentURL       string     `gorm:"size:500" json:"attachment_url,omitempty"`
	IsRead              bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt              *time.Time `json:"read_at,omitempty"`
	IsDeletedBySender   bool       `gorm:"default:false" json:"-"`
	IsDeletedByReceiver bool       `gorm:"default:false" json:"-"`
	SentAt              time.Time  `gorm:"autoCreateTime;index" json:"sent_at"`
}

func (Message) TableName() string {
	return "messages"
}

// VisibleTo reports whether the given user still sees this message
func (m *Message) VisibleTo(userID uint) bool {
	if m.SenderID == userID {
		return !m.IsDeletedBySender
	}
	if m.ReceiverID == userID {
		return !m.IsDeletedByReceiver
	}
	return false
}

// Involves reports whether the given user is a participant
func (m *Message) Involves(userID uint) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// SendMessageRequest represents a send message request
type SendMessageRequest struct {
	ReceiverID uint   `json:"receiver_id" binding:"required"`
	Content    string `json:"content" binding:"required"`
}

// MessageResponse represents a message in API responses
type MessageResponse struct {
	ID            uint                `json:"id"`
	Sender        *PublicUserResponse `json:"sender,omitempty"`
	Receiver      *PublicUserResponse `json:"receiver,omitempty"`
	SenderID      uint                `json:"sender_id"`
	ReceiverID    uint                `json:"receiver_id"`
	Content       string              `json:"content"`
	AttachmentURL string              `json:"attachment_url,omitempty"`
	IsRead        bool                `json:"is_read"`
	ReadAt        string              `json:"read_at,omitempty"`
	SentAt        string              `json:"sent_at"`
}

// ToResponse converts Message to MessageResponse
func (m *Message) ToResponse() *MessageResponse {
	resp := &MessageResponse{
		ID:            m.ID,
		SenderID:      m.SenderID,
		ReceiverID:    m.ReceiverID,
		Content:       m.Content,
		AttachmentURL: m.AttachmentURL,
		IsRead:        m.IsRead,
		SentAt:        m.SentAt.Format(time.RFC3339),
	}
	if m.ReadAt != nil {
		resp.ReadAt = m.ReadAt.Format(time.RFC3339)
	}
	return resp
}

// ConversationResponse is the derived per-counterpart summary. It is never
// persisted; it is recomputed from the message store on every request.
type ConversationResponse struct {
	Participant   *PublicUserResponse `json:"participant"`
	LatestMessage *MessageResponse    `json:"latest_message"`
	UnreadCount   int64               `json:"unread_count"`
	LastActivity  string              `json:"last_activity"`
}
