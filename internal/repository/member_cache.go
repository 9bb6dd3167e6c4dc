package repository

import (
	"context"
	"strconv"

	"github.com/dogworld/dogworld-backend/internal/domain"
	pkgcache "github.com/dogworld/dogworld-backend/pkg/cache"
	pkglogger "github.com/dogworld/dogworld-backend/pkg/logger"
)

// cachedMemberRepository fronts member lookups with the redis user cache.
// The identity store is written by the auth service, not this module, so
// entries simply expire (TTLUser) instead of being invalidated.
type cachedMemberRepository struct {
	inner MemberRepository
	cache pkgcache.Service
}

// NewCachedMemberRepository wraps a MemberRepository with the user cache
func NewCachedMemberRepository(inner MemberRepository, cache pkgcache.Service) MemberRepository {
	return &cachedMemberRepository{inner: inner, cache: cache}
}

func userKey(id uint) string {
	return pkgcache.PrefixUser + strconv.FormatUint(uint64(id), 10)
}

func (r *cachedMemberRepository) FindByID(id uint) (*domain.User, error) {
	ctx := context.Background()

	var cached domain.User
	if err := r.cache.Get(ctx, userKey(id), &cached); err == nil {
		return &cached, nil
	}

	user, err := r.inner.FindByID(id)
	if err != nil || user == nil {
		return user, err
	}
	r.store(ctx, user)
	return user, nil
}

func (r *cachedMemberRepository) FindByIDs(ids []uint) (map[uint]*domain.User, error) {
	ctx := context.Background()
	result := make(map[uint]*domain.User, len(ids))

	var missing []uint
	for _, id := range ids {
		var cached domain.User
		if err := r.cache.Get(ctx, userKey(id), &cached); err == nil {
			result[cached.ID] = &cached
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return result, nil
	}

	fetched, err := r.inner.FindByIDs(missing)
	if err != nil {
		return nil, err
	}
	for id, user := range fetched {
		result[id] = user
		r.store(ctx, user)
	}
	return result, nil
}

// FindFirstStaff is not cached; it is only hit on affiliate clicks
func (r *cachedMemberRepository) FindFirstStaff() (*domain.User, error) {
	return r.inner.FindFirstStaff()
}

func (r *cachedMemberRepository) store(ctx context.Context, user *domain.User) {
	if err := r.cache.Set(ctx, userKey(user.ID), user, pkgcache.TTLUser); err != nil {
		pkglogger.GetLogger().Warn().Err(err).Uint("user_id", user.ID).Msg("user cache set failed")
	}
}
