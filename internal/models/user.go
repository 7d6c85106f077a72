package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// User represents a registered customer account.
type User struct {
	gorm.Model

	UserID       string     `json:"user_id" gorm:"uniqueIndex"`
	Name         string     `json:"name"`
	Email        string     `json:"email" gorm:"uniqueIndex"`
	Phone        string     `json:"phone" gorm:"uniqueIndex"` // WhatsApp number - unique
	PasswordHash string     `json:"-"`
	Verified     bool       `json:"verified" gorm:"default:false"`
	IsActive     bool       `json:"is_active" gorm:"default:true"`
	LastLoginAt  *time.Time `json:"last_login_at"`
}

// BeforeCreate hook to auto-generate UserID and normalize data
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == "" {
		u.UserID = fmt.Sprintf("USR%d%03d", time.Now().Unix(), time.Now().Nanosecond()%1000)
	}

	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	// Normalize phone number (ensure it carries a country prefix)
	if u.Phone != "" && !strings.HasPrefix(u.Phone, "+") {
		u.Phone = "+" + u.Phone
	}

	return nil
}

// UserRegistration carries the validated registration draft into the store.
type UserRegistration struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}
