package service

import (
	"fmt"

	"github.com/dogworld/dogworld-backend/internal/common"
	"github.com/dogworld/dogworld-backend/internal/domain"
	"github.com/dogworld/dogworld-backend/internal/repository"
	pkglogger "github.com/dogworld/dogworld-backend/pkg/logger"
)

// ProductService covers the affiliate-click producer of the marketplace.
// Listing CRUD lives in its own surface; the core only consumes clicks.
type ProductService interface {
	RegisterClick(slug string, actorID *uint) error
}

type productService struct {
	repo       repository.ProductRepository
	memberRepo repository.MemberRepository
	notifier   *NotificationService
}

// NewProductService creates a new ProductService
func NewProductService(
	repo repository.ProductRepository,
	memberRepo repository.MemberRepository,
	notifier *NotificationService,
) ProductService {
	return &productService{repo: repo, memberRepo: memberRepo, notifier: notifier}
}

// RegisterClick records an outbound affiliate click and reports it to staff.
// actorID is nil for anonymous visitors. The click always counts; only the
// notification depends on the actor.
func (s *productService) RegisterClick(slug string, actorID *uint) error {
	product, err := s.repo.FindBySlug(slug)
	if err != nil {
		return err
	}
	if product == nil {
		return fmt.Errorf("product %q: %w", slug, common.ErrNotFound)
	}

	if err := s.repo.IncrementClicks(product.ID); err != nil {
		return err
	}

	if s.notifier == nil {
		return nil
	}

	// An actor lookup failure degrades the click to anonymous rather than
	// dropping the notification.
	var actor *domain.User
	if actorID != nil {
		u, err := s.memberRepo.FindByID(*actorID)
		if err != nil {
			pkglogger.GetLogger().Error().Err(err).
				Str("slug", slug).
				Uint("actor_id", *actorID).
				Msg("failed to resolve click actor")
		} else {
			actor = u
		}
	}

	if err := s.notifier.NotifyAffiliateClick(product, actor); err != nil {
		pkglogger.GetLogger().Error().Err(err).
			Str("slug", slug).
			Msg("failed to create affiliate click notification")
	}
	return nil
}
