package services

import (
	"fmt"
	"time"

	"github.com/medlane-ng/medlane-backend/internal/models"
	"github.com/medlane-ng/medlane-backend/internal/storage"
	"github.com/medlane-ng/medlane-backend/internal/utils"
)

// OTPService issues and verifies the 4-digit one-time codes used to confirm
// registrations. Issuing a new code invalidates every earlier one for the
// same phone.
type OTPService struct {
	store storage.Store
}

func NewOTPService(store storage.Store) *OTPService {
	return &OTPService{store: store}
}

// CreateOTP generates a fresh code for the phone, invalidating prior ones.
func (s *OTPService) CreateOTP(phone, purpose, referenceID string) (*models.OTP, error) {
	if err := s.store.InvalidateOTPs(phone); err != nil {
		return nil, fmt.Errorf("invalidate old OTPs: %w", err)
	}

	code, err := utils.GenerateSecureOTP()
	if err != nil {
		return nil, fmt.Errorf("generate OTP: %w", err)
	}

	otp := &models.OTP{
		Phone:       phone,
		Code:        code,
		Purpose:     purpose,
		ReferenceID: referenceID,
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}
	if err := s.store.CreateOTP(otp); err != nil {
		return nil, fmt.Errorf("store OTP: %w", err)
	}
	return otp, nil
}

// VerifyOTP checks a submitted code against the active OTP for the phone.
// Every wrong attempt counts toward the 3-attempt limit.
func (s *OTPService) VerifyOTP(phone, code string) (bool, string, error) {
	otp, err := s.store.GetActiveOTP(phone)
	if err != nil {
		if err == storage.ErrNotFound {
			return false, "", fmt.Errorf("no active code, ask for a new one")
		}
		return false, "", err
	}

	if otp.IsExpired() {
		return false, "", fmt.Errorf("code expired, ask for a new one")
	}
	if !otp.IsValid() {
		return false, "", fmt.Errorf("too many attempts, ask for a new code")
	}

	otp.Attempts++
	if otp.Code != code {
		if err := s.store.SaveOTP(otp); err != nil {
			return false, "", err
		}
		remaining := 3 - otp.Attempts
		return false, "", fmt.Errorf("wrong code, %d attempts left", remaining)
	}

	now := time.Now()
	otp.VerifiedAt = &now
	otp.IsUsed = true
	if err := s.store.SaveOTP(otp); err != nil {
		return false, "", err
	}
	return true, otp.ReferenceID, nil
}

// ResendOTP invalidates the current code and issues a new one.
func (s *OTPService) ResendOTP(phone, purpose, referenceID string) (*models.OTP, error) {
	return s.CreateOTP(phone, purpose, referenceID)
}
