package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dogworld/dogworld-backend/internal/domain"
	pkgcache "github.com/dogworld/dogworld-backend/pkg/cache"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupMemberDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

// fakeCache is a map-backed stand-in for the redis cache service
type fakeCache struct {
	entries map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (f *fakeCache) Get(_ context.Context, key string, dest interface{}) error {
	data, ok := f.entries[key]
	if !ok {
		return pkgcache.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.entries[key] = data
	return nil
}

func (f *fakeCache) GetUnreadBadge(context.Context, uint) (int64, error) {
	return 0, pkgcache.ErrCacheMiss
}
func (f *fakeCache) SetUnreadBadge(context.Context, uint, int64) error { return nil }
func (f *fakeCache) InvalidateUnreadBadge(context.Context, uint) error { return nil }
func (f *fakeCache) Ping(context.Context) error { return nil }

// countingMemberRepo counts how often the backing store is hit
type countingMemberRepo struct {
	inner         MemberRepository
	findByIDCalls int
	batchCalls    int
}

func (c *countingMemberRepo) FindByID(id uint) (*domain.User, error) {
	c.findByIDCalls++
	return c.inner.FindByID(id)
}

func (c *countingMemberRepo) FindByIDs(ids []uint) (map[uint]*domain.User, error) {
	c.batchCalls++
	return c.inner.FindByIDs(ids)
}

func (c *countingMemberRepo) FindFirstStaff() (*domain.User, error) {
	return c.inner.FindFirstStaff()
}

func TestCachedMemberRepository_FindByID(t *testing.T) {
	db := setupMemberDB(t)
	u := &domain.User{Username: "alice", Email: "alice@example.com", IsActive: true}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	counting := &countingMemberRepo{inner: NewMemberRepository(db)}
	repo := NewCachedMemberRepository(counting, newFakeCache())

	first, err := repo.FindByID(u.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	assert.Equal(t, "alice", first.Username)
	assert.Equal(t, 1, counting.findByIDCalls)

	// second lookup is served from the cache
	second, err := repo.FindByID(u.ID)
	if err != nil {
		t.Fatalf("cached FindByID failed: %v", err)
	}
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, counting.findByIDCalls)
}

func TestCachedMemberRepository_MissingUserNotCached(t *testing.T) {
	db := setupMemberDB(t)
	counting := &countingMemberRepo{inner: NewMemberRepository(db)}
	repo := NewCachedMemberRepository(counting, newFakeCache())

	for i := 0; i < 2; i++ {
		user, err := repo.FindByID(999)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		assert.Nil(t, user)
	}
	assert.Equal(t, 2, counting.findByIDCalls)
}

func TestCachedMemberRepository_FindByIDs(t *testing.T) {
	db := setupMemberDB(t)
	a := &domain.User{Username: "alice", Email: "alice@example.com", IsActive: true}
	b := &domain.User{Username: "bob", Email: "bob@example.com", IsActive: true}
	for _, u := range []*domain.User{a, b} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
	}

	counting := &countingMemberRepo{inner: NewMemberRepository(db)}
	repo := NewCachedMemberRepository(counting, newFakeCache())

	users, err := repo.FindByIDs([]uint{a.ID, b.ID})
	if err != nil {
		t.Fatalf("FindByIDs failed: %v", err)
	}
	assert.Len(t, users, 2)
	assert.Equal(t, 1, counting.batchCalls)

	// warm cache: the backing store is not consulted again
	users, err = repo.FindByIDs([]uint{a.ID, b.ID})
	if err != nil {
		t.Fatalf("cached FindByIDs failed: %v", err)
	}
	assert.Len(t, users, 2)
	assert.Equal(t, "alice", users[a.ID].Username)
	assert.Equal(t, 1, counting.batchCalls)
}
