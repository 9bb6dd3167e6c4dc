package domain

import (
	"strings"
	"time"
)

// User represents an account in the identity store. The messaging and
// notification core only reads it; account management lives elsewhere.
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"size:150;uniqueIndex" json:"username"`
	Email     string    `gorm:"size:254;uniqueIndex" json:"email"`
	FirstName string    `gorm:"size:150" json:"first_name"`
	LastName  string    `gorm:"size:150" json:"last_name"`
	Location  string    `gorm:"size:200" json:"location,omitempty"`
	IsStaff   bool      `gorm:"default:false" json:"is_staff"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	JoinedAt  time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (User) TableName() string {
	return "users"
}

// FullName returns "first last", falling back to the username
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// PublicUserResponse is the user shape embedded in message payloads
type PublicUserResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// ToPublicResponse converts User to PublicUserResponse
func (u *User) ToPublicResponse() *PublicUserResponse {
	return &PublicUserResponse{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName(),
	}
}
