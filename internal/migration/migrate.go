package migration

import (
	"github.com/dogworld/dogworld-backend/internal/domain"
	"gorm.io/gorm"
)

// Run executes AutoMigrate for all owned tables.
// The users table is owned by the identity service but migrated here too so
// local development works without it.
func Run(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Message{},
		&domain.Notification{},
		&domain.Blog{},
		&domain.Post{},
		&domain.Comment{},
		&domain.Product{},
	)
}
