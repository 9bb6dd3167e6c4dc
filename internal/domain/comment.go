package domain

import "time"

// Blog is a long-form entry; the messaging core only needs its author
// to route comment notifications.
type Blog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AuthorID  uint      `gorm:"index;not null" json:"author_id"`
	Title     string    `gorm:"size:255" json:"title"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Blog) TableName() string {
	return "blogs"
}

// Post is a short feed entry
type Post struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AuthorID  uint      `gorm:"index;not null" json:"author_id"`
	Title     string    `gorm:"size:255" json:"title"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Post) TableName() string {
	return "posts"
}

// Comment targets either a blog or a post, never both
type Comment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	BlogID    *uint     `gorm:"index" json:"blog_id,omitempty"`
	PostID    *uint     `gorm:"index" json:"post_id,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Comment) TableName() string {
	return "comments"
}

// CreateCommentRequest represents a create comment request
type CreateCommentRequest struct {
	BlogID  *uint  `json:"blog_id"`
	PostID  *uint  `json:"post_id"`
	Content string `json:"content" binding:"required"`
}

// CommentResponse represents a comment in API responses
type CommentResponse struct {
	ID        uint   `json:"id"`
	UserID    uint   `json:"user_id"`
	BlogID    *uint  `json:"blog_id,omitempty"`
	PostID    *uint  `json:"post_id,omitempty"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// ToResponse converts Comment to CommentResponse
func (c *Comment) ToResponse() *CommentResponse {
	return &CommentResponse{
		ID:        c.ID,
		UserID:    c.UserID,
		BlogID:    c.BlogID,
		PostID:    c.PostID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}
