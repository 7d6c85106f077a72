package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Lab booking statuses.
const (
	LabBookingStatusPending   = "pending"
	LabBookingStatusConfirmed = "confirmed"
	LabBookingStatusSampled   = "sample_collected"
	LabBookingStatusReported  = "report_ready"
	LabBookingStatusCancelled = "cancelled"
)

// LabTest is a bookable diagnostic test.
type LabTest struct {
	gorm.Model
	TestID      string  `json:"test_id" gorm:"uniqueIndex"`
	Name        string  `json:"name" gorm:"index"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	HomeSample  bool    `json:"home_sample" gorm:"default:true"`
	Available   bool    `json:"available" gorm:"default:true"`
}

func (t *LabTest) BeforeCreate(tx *gorm.DB) error {
	if t.TestID == "" {
		t.TestID = fmt.Sprintf("LT%d%03d", time.Now().Unix(), time.Now().Nanosecond()%1000)
	}
	return nil
}

// LabBooking is a confirmed diagnostic booking for a user.
type LabBooking struct {
	gorm.Model
	BookingID   string    `json:"booking_id" gorm:"uniqueIndex"`
	UserID      string    `json:"user_id" gorm:"index"`
	Phone       string    `json:"phone"`
	TestID      string    `json:"test_id"`
	TestName    string    `json:"test_name"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status" gorm:"default:'pending'"`
}

func (b *LabBooking) BeforeCreate(tx *gorm.DB) error {
	if b.BookingID == "" {
		b.BookingID = fmt.Sprintf("LAB%d%03d", time.Now().Unix(), time.Now().Nanosecond()%1000)
	}
	return nil
}
