package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/dogworld/dogworld-backend/internal/common"
	"github.com/dogworld/dogworld-backend/internal/domain"
	"github.com/dogworld/dogworld-backend/internal/repository"
	pkglogger "github.com/dogworld/dogworld-backend/pkg/logger"
	pkgstorage "github.com/dogworld/dogworld-backend/pkg/storage"
)

// AttachmentUpload carries a pending attachment through validation and storage
type AttachmentUpload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// AttachmentStorage stores attachment bytes and serves them back.
// Implemented by pkg/storage's S3 client.
type AttachmentStorage interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
	GetPresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	KeyFromURL(url string) string
}

// attachmentURLExpiry bounds pre-signed attachment download links
const attachmentURLExpiry = 15 * time.Minute

// Notifier is the coalescer contract the message store fires on send.
// Delivery is best-effort: the send succeeds even when the notifier fails.
type Notifier interface {
	NotifyNewMessage(message *domain.Message) error
}

// MessageService business logic for direct messages and the derived
// conversation views
type MessageService interface {
	SendMessage(senderID uint, req *domain.SendMessageRequest, attachment *AttachmentUpload) (*domain.MessageResponse, error)
	GetMessage(id uint, actorID uint) (*domain.MessageResponse, error)
	AttachmentDownloadURL(id uint, actorID uint) (string, error)
	MarkAsRead(id uint, actorID uint) error
	DeleteMessage(id uint, actorID uint) error
	ListVisible(actorID uint, staff bool, page, limit int) ([]*domain.MessageResponse, *common.Meta, error)
	UnreadCount(actorID uint) (int64, error)

	Conversations(actorID uint) ([]*domain.ConversationResponse, error)
	ConversationWith(actorID, otherID uint, beforeID uint, limit int) ([]*domain.MessageResponse, bool, error)
	MarkConversationRead(actorID, otherID uint) (int64, error)
	DeleteConversation(actorID, otherID uint) (int64, error)
}

type messageService struct {
	repo       repository.MessageRepository
	memberRepo repository.MemberRepository
	notifier   Notifier
	storage    AttachmentStorage
}

// NewMessageService creates a new MessageService.
// storage may be nil when attachment uploads are disabled.
func NewMessageService(
	repo repository.MessageRepository,
	memberRepo repository.MemberRepository,
	notifier Notifier,
	storage AttachmentStorage,
) MessageService {
	return &messageService{
		repo:       repo,
		memberRepo: memberRepo,
		notifier:   notifier,
		storage:    storage,
	}
}

// SendMessage validates and persists a new message, then fires the
// notification coalescer. Notification failures are logged, never surfaced:
// the send has already succeeded.
func (s *messageService) SendMessage(senderID uint, req *domain.SendMessageRequest, attachment *AttachmentUpload) (*domain.MessageResponse, error) {
	if senderID == req.ReceiverID {
		return nil, fmt.Errorf("cannot send a message to yourself: %w", common.ErrInvalidInput)
	}
	if req.Content == "" {
		return nil, fmt.Errorf("message content is required: %w", common.ErrInvalidInput)
	}
	if utf8.RuneCountInString(req.Content) > domain.MaxMessageLength {
		return nil, fmt.Errorf("message content exceeds %d characters: %w", domain.MaxMessageLength, common.ErrInvalidInput)
	}

	receiver, err := s.memberRepo.FindByID(req.ReceiverID)
	if err != nil {
		return nil, err
	}
	if receiver == nil {
		return nil, fmt.Errorf("receiver %d: %w", req.ReceiverID, common.ErrUserNotFound)
	}

	var attachmentURL string
	if attachment != nil {
		if err := common.ValidateAttachment(attachment.Filename, attachment.Size); err != nil {
			return nil, err
		}
		if s.storage == nil {
			return nil, fmt.Errorf("attachment uploads are disabled: %w", common.ErrInvalidInput)
		}
		key := pkgstorage.AttachmentKey(attachment.Filename)
		contentType := mime.TypeByExtension(filepath.Ext(attachment.Filename))
		url, err := s.storage.Upload(context.Background(), key, contentType, attachment.Body, attachment.Size)
		if err != nil {
			return nil, fmt.Errorf("store attachment: %w", err)
		}
		attachmentURL = url
	}

	msg := &domain.Message{
		SenderID:      senderID,
		ReceiverID:    req.ReceiverID,
		Content:       req.Content,
		AttachmentURL: attachmentURL,
	}
	if err := s.repo.Create(msg); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyNewMessage(msg); err != nil {
			pkglogger.GetLogger().Error().Err(err).
				Uint("message_id", msg.ID).
				Uint("receiver_id", msg.ReceiverID).
				Msg("failed to create message notification")
		}
	}

	return msg.ToResponse(), nil
}

// GetMessage returns a single message after an ownership check.
// A receiver fetching an unread message marks it read.
func (s *messageService) GetMessage(id uint, actorID uint) (*domain.MessageResponse, error) {
	msg, err := s.repo.FindByID(id)
	if err != nil {
		return nil, common.ErrMessageNotFound
	}
	if !msg.Involves(actorID) {
		return nil, fmt.Errorf("message %d: %w", id, common.ErrForbidden)
	}
	if !msg.VisibleTo(actorID) {
		return nil, common.ErrMessageNotFound
	}

	if msg.ReceiverID == actorID && !msg.IsRead {
		now := time.Now()
		if err := s.repo.MarkRead(id, now); err == nil {
			msg.IsRead = true
			msg.ReadAt = &now
		}
	}

	return msg.ToResponse(), nil
}

// MarkAsRead marks a message read. Only the receiver may do so; marking an
// already-read message is a no-op that keeps the original read_at.
func (s *messageService) MarkAsRead(id uint, actorID uint) error {
	msg, err := s.repo.FindByID(id)
	if err != nil {
		return common.ErrMessageNotFound
	}
	if msg.ReceiverID != actorID {
		return fmt.Errorf("only the receiver may mark a message read: %w", common.ErrForbidden)
	}
	if msg.IsRead {
		return nil
	}
	return s.repo.MarkRead(id, time.Now())
}

// DeleteMessage soft-deletes the actor's side. When both sides have deleted,
// the row is removed permanently.
func (s *messageService) DeleteMessage(id uint, actorID uint) error {
	msg, err := s.repo.FindByID(id)
	if err != nil {
		return common.ErrMessageNotFound
	}
	if !msg.Involves(actorID) {
		return fmt.Errorf("message %d: %w", id, common.ErrForbidden)
	}

	bySender := msg.SenderID == actorID
	if err := s.repo.SetDeletionFlag(id, bySender); err != nil {
		return err
	}

	otherDeleted := msg.IsDeletedByReceiver
	if !bySender {
		otherDeleted = msg.IsDeletedBySender
	}
	if otherDeleted {
		if err := s.repo.HardDelete(id); err != nil {
			return err
		}
		s.removeAttachment(msg)
	}
	return nil
}

// AttachmentDownloadURL resolves a download link for a message attachment,
// pre-signed with a short expiry when the storage backend produced the URL
func (s *messageService) AttachmentDownloadURL(id uint, actorID uint) (string, error) {
	msg, err := s.repo.FindByID(id)
	if err != nil {
		return "", common.ErrMessageNotFound
	}
	if !msg.Involves(actorID) {
		return "", fmt.Errorf("message %d: %w", id, common.ErrForbidden)
	}
	if !msg.VisibleTo(actorID) {
		return "", common.ErrMessageNotFound
	}
	if msg.AttachmentURL == "" {
		return "", fmt.Errorf("message %d has no attachment: %w", id, common.ErrNotFound)
	}

	if s.storage != nil {
		if key := s.storage.KeyFromURL(msg.AttachmentURL); key != "" {
			return s.storage.GetPresignedURL(context.Background(), key, attachmentURLExpiry)
		}
	}
	return msg.AttachmentURL, nil
}

// removeAttachment best-effort deletes the stored object once the owning
// message row is gone
func (s *messageService) removeAttachment(msg *domain.Message) {
	if s.storage == nil || msg.AttachmentURL == "" {
		return
	}
	key := s.storage.KeyFromURL(msg.AttachmentURL)
	if key == "" {
		return
	}
	if err := s.storage.Delete(context.Background(), key); err != nil {
		pkglogger.GetLogger().Warn().Err(err).
			Uint("message_id", msg.ID).
			Msg("failed to delete stored attachment")
	}
}

// ListVisible returns messages visible to the actor; staff see everything
func (s *messageService) ListVisible(actorID uint, staff bool, page, limit int) ([]*domain.MessageResponse, *common.Meta, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}

	messages, total, err := s.repo.ListVisible(actorID, staff, page, limit)
	if err != nil {
		return nil, nil, err
	}

	responses := make([]*domain.MessageResponse, len(messages))
	for i, m := range messages {
		responses[i] = m.ToResponse()
	}

	return responses, &common.Meta{Page: page, Limit: limit, Total: total}, nil
}

// UnreadCount returns the actor's total unread received messages
func (s *messageService) UnreadCount(actorID uint) (int64, error) {
	return s.repo.UnreadCount(actorID)
}

// Conversations derives the per-counterpart summaries: one grouped pass over
// the message store, then two batched lookups to resolve participants and
// latest-message bodies. No per-conversation queries.
func (s *messageService) Conversations(actorID uint) ([]*domain.ConversationResponse, error) {
	summaries, err := s.repo.ConversationSummaries(actorID)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return []*domain.ConversationResponse{}, nil
	}

	participantIDs := make([]uint, 0, len(summaries))
	latestIDs := make([]uint, 0, len(summaries))
	for _, sum := range summaries {
		participantIDs = append(participantIDs, sum.CounterpartID)
		latestIDs = append(latestIDs, sum.LatestMessageID)
	}

	participants, err := s.memberRepo.FindByIDs(participantIDs)
	if err != nil {
		return nil, err
	}
	latest, err := s.repo.FindByIDs(latestIDs)
	if err != nil {
		return nil, err
	}

	conversations := make([]*domain.ConversationResponse, 0, len(summaries))
	for _, sum := range summaries {
		conv := &domain.ConversationResponse{
			UnreadCount: sum.UnreadCount,
		}
		if p, ok := participants[sum.CounterpartID]; ok {
			conv.Participant = p.ToPublicResponse()
		}
		if m, ok := latest[sum.LatestMessageID]; ok {
			conv.LatestMessage = m.ToResponse()
			conv.LastActivity = m.SentAt.Format(time.RFC3339)
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

// ConversationWith returns one page of the pair conversation, oldest first,
// with a has-more flag for infinite scroll. Viewing the conversation marks
// the requester's unread messages from the counterpart read, so the returned
// page already carries the new read state.
func (s *messageService) ConversationWith(actorID, otherID uint, beforeID uint, limit int) ([]*domain.MessageResponse, bool, error) {
	if limit < 1 || limit > 100 {
		limit = 30
	}

	other, err := s.memberRepo.FindByID(otherID)
	if err != nil {
		return nil, false, err
	}
	if other == nil {
		return nil, false, fmt.Errorf("user %d: %w", otherID, common.ErrUserNotFound)
	}

	if _, err := s.repo.MarkConversationRead(actorID, otherID, time.Now()); err != nil {
		return nil, false, err
	}

	messages, hasMore, err := s.repo.ListConversation(actorID, otherID, beforeID, limit)
	if err != nil {
		return nil, false, err
	}

	responses := make([]*domain.MessageResponse, len(messages))
	for i, m := range messages {
		responses[i] = m.ToResponse()
	}
	return responses, hasMore, nil
}

// MarkConversationRead marks every unread message from otherID read in one
// atomic statement and reports how many were updated
func (s *messageService) MarkConversationRead(actorID, otherID uint) (int64, error) {
	other, err := s.memberRepo.FindByID(otherID)
	if err != nil {
		return 0, err
	}
	if other == nil {
		return 0, fmt.Errorf("user %d: %w", otherID, common.ErrUserNotFound)
	}
	return s.repo.MarkConversationRead(actorID, otherID, time.Now())
}

// DeleteConversation soft-deletes the actor's side of every message in the
// pair and reports how many rows became jointly deleted and were removed
func (s *messageService) DeleteConversation(actorID, otherID uint) (int64, error) {
	return s.repo.DeleteConversation(actorID, otherID)
}
