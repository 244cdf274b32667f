package models

import "time"

// User is a registered account. UsernameKey holds the lowercased username
// and carries the unique index, so usernames differing only in case collide.
type User struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username     string    `gorm:"not null" json:"username"`
	UsernameKey  string    `gorm:"uniqueIndex;not null" json:"-"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AuthorSummary is the slice of a user embedded in question and answer payloads.
type AuthorSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (u User) Summary() AuthorSummary {
	return AuthorSummary{ID: u.ID, Username: u.Username}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}
