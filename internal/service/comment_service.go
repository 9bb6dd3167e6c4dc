package service

import (
	"fmt"

	"github.com/dogworld/dogworld-backend/internal/common"
	"github.com/dogworld/dogworld-backend/internal/domain"
	"github.com/dogworld/dogworld-backend/internal/repository"
	pkglogger "github.com/dogworld/dogworld-backend/pkg/logger"
)

// CommentService persists comments and feeds the notification pipeline.
// Notification creation is an explicit call here, not a hidden persistence
// hook, and is best-effort: a failed notification never fails the comment.
type CommentService interface {
	CreateComment(authorID uint, req *domain.CreateCommentRequest) (*domain.CommentResponse, error)
}

type commentService struct {
	repo     repository.CommentRepository
	notifier *NotificationService
}

// NewCommentService creates a new CommentService
func NewCommentService(repo repository.CommentRepository, notifier *NotificationService) CommentService {
	return &commentService{repo: repo, notifier: notifier}
}

// CreateComment creates a comment on a blog or a post
func (s *commentService) CreateComment(authorID uint, req *domain.CreateCommentRequest) (*domain.CommentResponse, error) {
	if (req.BlogID == nil) == (req.PostID == nil) {
		return nil, fmt.Errorf("exactly one of blog_id or post_id is required: %w", common.ErrInvalidInput)
	}
	if req.Content == "" {
		return nil, fmt.Errorf("comment content is required: %w", common.ErrInvalidInput)
	}

	var targetAuthorID uint
	var targetLabel string
	if req.BlogID != nil {
		blog, err := s.repo.FindBlogByID(*req.BlogID)
		if err != nil {
			return nil, err
		}
		if blog == nil {
			return nil, fmt.Errorf("blog %d: %w", *req.BlogID, common.ErrNotFound)
		}
		targetAuthorID = blog.AuthorID
		targetLabel = "blog"
	} else {
		post, err := s.repo.FindPostByID(*req.PostID)
		if err != nil {
			return nil, err
		}
		if post == nil {
			return nil, fmt.Errorf("post %d: %w", *req.PostID, common.ErrNotFound)
		}
		targetAuthorID = post.AuthorID
		targetLabel = "post"
	}

	comment := &domain.Comment{
		UserID:  authorID,
		BlogID:  req.BlogID,
		PostID:  req.PostID,
		Content: req.Content,
	}
	if err := s.repo.Create(comment); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyNewComment(comment, targetAuthorID, targetLabel); err != nil {
			pkglogger.GetLogger().Error().Err(err).
				Uint("comment_id", comment.ID).
				Msg("failed to create comment notification")
		}
	}

	return comment.ToResponse(), nil
}
