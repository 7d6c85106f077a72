package models

import (
	"time"

	"gorm.io/gorm"
)

// OTP purposes.
const (
	OTPPurposeRegistration = "registration"
	OTPPurposeLogin        = "login"
)

// OTP is a 4-digit one-time password pending verification. At most one
// active OTP exists per phone; issuing a new one invalidates the old.
type OTP struct {
	gorm.Model
	Phone       string     `json:"phone" gorm:"index"`
	Code        string     `json:"-"`
	Purpose     string     `json:"purpose"`
	ReferenceID string     `json:"reference_id"`
	ExpiresAt   time.Time  `json:"expires_at"`
	VerifiedAt  *time.Time `json:"verified_at"`
	Attempts    int        `json:"attempts" gorm:"default:0"`
	IsUsed      bool       `json:"is_used" gorm:"default:false"`
}

// IsExpired reports whether the code can no longer be verified.
func (o *OTP) IsExpired() bool {
	return time.Now().After(o.ExpiresAt)
}

// IsValid reports whether the code is still verifiable.
func (o *OTP) IsValid() bool {
	return !o.IsUsed && !o.IsExpired() && o.Attempts < 3
}
