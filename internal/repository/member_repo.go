package repository

import (
	"errors"

	"github.com/dogworld/dogworld-backend/internal/domain"
	"gorm.io/gorm"
)

// MemberRepository user lookup interface. The identity store is owned by the
// auth service; this module only reads from it.
type MemberRepository interface {
	FindByID(id uint) (*domain.User, error)
	FindByIDs(ids []uint) (map[uint]*domain.User, error)
	FindFirstStaff() (*domain.User, error)
}

type memberRepository struct {
	db *gorm.DB
}

// NewMemberRepository creates a new MemberRepository
func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{db: db}
}

// FindByID finds an active user by ID
func (r *memberRepository) FindByID(id uint) (*domain.User, error) {
	var user domain.User
	err := r.db.Where("id = ? AND is_active = ?", id, true).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// FindByIDs loads several users in one query, keyed by id.
// Used by the conversation aggregator to resolve all counterparts at once.
func (r *memberRepository) FindByIDs(ids []uint) (map[uint]*domain.User, error) {
	result := make(map[uint]*domain.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []*domain.User
	if err := r.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

// FindFirstStaff returns the first staff account, or nil when none exists
func (r *memberRepository) FindFirstStaff() (*domain.User, error) {
	var user domain.User
	err := r.db.Where("is_staff = ? AND is_active = ?", true, true).
		Order("id ASC").
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
