package repository

import (
	"errors"

	"github.com/dogworld/dogworld-backend/internal/domain"
	"gorm.io/gorm"
)

// ProductRepository marketplace product data access interface
type ProductRepository interface {
	FindBySlug(slug string) (*domain.Product, error)
	IncrementClicks(id uint) error
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new ProductRepository
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) FindBySlug(slug string) (*domain.Product, error) {
	var product domain.Product
	err := r.db.Where("slug = ?", slug).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) IncrementClicks(id uint) error {
	return r.db.Model(&domain.Product{}).
		Where("id = ?", id).
		UpdateColumn("click_count", gorm.Expr("click_count + 1")).Error
}
