package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dogworld/dogworld-backend/internal/common"
	"github.com/dogworld/dogworld-backend/internal/domain"
	"github.com/dogworld/dogworld-backend/internal/repository"
	pkgcache "github.com/dogworld/dogworld-backend/pkg/cache"
	pkglogger "github.com/dogworld/dogworld-backend/pkg/logger"
)

// NotificationService handles notification business logic: event fan-in from
// the producers (messages, comments, affiliate clicks) and read-state for the
// recipient.
type NotificationService struct {
	repo           *repository.NotificationRepository
	memberRepo     repository.MemberRepository
	cache          pkgcache.Service
	coalesceWindow time.Duration
}

// NewNotificationService creates a new NotificationService.
// cache may be nil; badge counts then always hit the database.
func NewNotificationService(
	repo *repository.NotificationRepository,
	memberRepo repository.MemberRepository,
	cache pkgcache.Service,
	coalesceWindow time.Duration,
) *NotificationService {
	return &NotificationService{
		repo:           repo,
		memberRepo:     memberRepo,
		cache:          cache,
		coalesceWindow: coalesceWindow,
	}
}

// NotifyNewMessage notifies the receiver about a new direct message,
// coalescing repeated sends from the same sender within the window into one
// unread row. Self-sends and staff senders produce no notification.
func (s *NotificationService) NotifyNewMessage(message *domain.Message) error {
	if message.SenderID == message.ReceiverID {
		return nil
	}

	sender, err := s.memberRepo.FindByID(message.SenderID)
	if err != nil {
		return err
	}
	if sender == nil || sender.IsStaff {
		return nil
	}

	name := sender.FullName()
	_, err = s.repo.CoalesceNewMessage(
		message.ReceiverID, message.SenderID, message.ID, s.coalesceWindow,
		func(count int) string {
			if count > 1 {
				return fmt.Sprintf("%s sent you %d new messages.", name, count)
			}
			return fmt.Sprintf("%s sent you a new message.", name)
		},
	)
	if err != nil {
		return err
	}

	s.invalidateBadge(message.ReceiverID)
	return nil
}

// NotifyNewComment notifies the target's author about a comment on their
// blog or post. Commenting on one's own content is silent.
func (s *NotificationService) NotifyNewComment(comment *domain.Comment, targetAuthorID uint, targetLabel string) error {
	if comment.UserID == targetAuthorID {
		return nil
	}

	commenter, err := s.memberRepo.FindByID(comment.UserID)
	if err != nil {
		return err
	}
	if commenter == nil {
		return fmt.Errorf("commenter %d: %w", comment.UserID, common.ErrUserNotFound)
	}

	n := &domain.Notification{
		RecipientID: targetAuthorID,
		Type:        domain.NotificationNewComment,
		Message:     fmt.Sprintf("%s commented on your %s.", commenter.Username, targetLabel),
		TargetKind:  domain.TargetComment,
		TargetID:    comment.ID,
		ActorID:     &comment.UserID,
		Count:       1,
	}
	if err := s.repo.Create(n); err != nil {
		return err
	}

	s.invalidateBadge(targetAuthorID)
	return nil
}

// NotifyAffiliateClick reports an outbound affiliate click to the designated
// staff recipient. Staff clicking their own listings stay silent, and the
// event is dropped when no staff account exists. actor may be nil for
// anonymous visitors.
func (s *NotificationService) NotifyAffiliateClick(product *domain.Product, actor *domain.User) error {
	if actor != nil && actor.IsStaff {
		return nil
	}

	staff, err := s.memberRepo.FindFirstStaff()
	if err != nil {
		return err
	}
	if staff == nil {
		return nil
	}

	who := "Anonymous"
	var actorID *uint
	if actor != nil {
		who = actor.Username
		actorID = &actor.ID
	}

	n := &domain.Notification{
		RecipientID: staff.ID,
		Type:        domain.NotificationAffiliateClick,
		Message:     fmt.Sprintf("%s clicked on %s.", who, product.Title),
		TargetKind:  domain.TargetProduct,
		TargetID:    product.ID,
		ActorID:     actorID,
		Count:       1,
	}
	if err := s.repo.Create(n); err != nil {
		return err
	}

	s.invalidateBadge(staff.ID)
	return nil
}

// GetList returns paginated notifications for a recipient
func (s *NotificationService) GetList(recipientID uint, staff bool, page, limit int) (*domain.NotificationListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	offset := (page - 1) * limit
	notifications, total, err := s.repo.GetList(recipientID, staff, offset, limit)
	if err != nil {
		return nil, err
	}

	unreadCount, err := s.UnreadCount(recipientID)
	if err != nil {
		return nil, err
	}

	items := make([]domain.NotificationItem, len(notifications))
	for i, n := range notifications {
		items[i] = n.ToItem()
	}

	return &domain.NotificationListResponse{
		Items:       items,
		Total:       total,
		UnreadCount: unreadCount,
		Page:        page,
		Limit:       limit,
	}, nil
}

// UnreadCount returns the unread badge count, served from cache when warm
func (s *NotificationService) UnreadCount(recipientID uint) (int64, error) {
	ctx := context.Background()
	if s.cache != nil {
		if count, err := s.cache.GetUnreadBadge(ctx, recipientID); err == nil {
			return count, nil
		}
	}

	count, err := s.repo.GetUnreadCount(recipientID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.SetUnreadBadge(ctx, recipientID, count); err != nil {
			pkglogger.GetLogger().Warn().Err(err).Msg("badge cache set failed")
		}
	}
	return count, nil
}

// MarkAsRead marks a notification as read after an ownership check.
// Repeated calls are a no-op, not an error.
func (s *NotificationService) MarkAsRead(recipientID uint, notificationID uint) error {
	n, err := s.repo.FindByID(notificationID)
	if err != nil {
		return err
	}
	if n == nil {
		return common.ErrNotificationNotFound
	}
	if n.RecipientID != recipientID {
		return fmt.Errorf("notification %d belongs to another user: %w", notificationID, common.ErrForbidden)
	}
	if n.IsRead {
		return nil
	}
	if err := s.repo.MarkAsRead(notificationID); err != nil {
		return err
	}
	s.invalidateBadge(recipientID)
	return nil
}

// MarkAllAsRead marks all of a recipient's notifications read
func (s *NotificationService) MarkAllAsRead(recipientID uint) (int64, error) {
	updated, err := s.repo.MarkAllAsRead(recipientID)
	if err != nil {
		return 0, err
	}
	s.invalidateBadge(recipientID)
	return updated, nil
}

// Delete removes a notification after an ownership check
func (s *NotificationService) Delete(recipientID uint, notificationID uint) error {
	n, err := s.repo.FindByID(notificationID)
	if err != nil {
		return err
	}
	if n == nil {
		return common.ErrNotificationNotFound
	}
	if n.RecipientID != recipientID {
		return fmt.Errorf("notification %d belongs to another user: %w", notificationID, common.ErrForbidden)
	}
	if err := s.repo.Delete(notificationID); err != nil {
		return err
	}
	s.invalidateBadge(recipientID)
	return nil
}

func (s *NotificationService) invalidateBadge(recipientID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUnreadBadge(context.Background(), recipientID); err != nil {
		pkglogger.GetLogger().Warn().Err(err).Uint("recipient_id", recipientID).Msg("badge cache invalidation failed")
	}
}
