package domain

import "time"

// Product is an affiliate marketplace listing. Clicks on its outbound link
// are counted and reported to staff through the notification pipeline.
type Product struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Slug         string    `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	AffiliateURL string    `gorm:"size:500" json:"affiliate_url"`
	ClickCount   int64     `gorm:"default:0" json:"click_count"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Product) TableName() string {
	return "products"
}
