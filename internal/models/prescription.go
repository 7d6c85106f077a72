package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Prescription review statuses.
const (
	PrescriptionStatusReceived = "received"
	PrescriptionStatusReviewed = "reviewed"
	PrescriptionStatusRejected = "rejected"
)

// Prescription is an uploaded prescription image or document awaiting
// pharmacist review. ExtractedText holds the OCR result when available.
type Prescription struct {
	gorm.Model
	PrescriptionID string     `json:"prescription_id" gorm:"uniqueIndex"`
	UserID         string     `json:"user_id" gorm:"index"`
	Phone          string     `json:"phone"`
	MediaURL       string     `json:"media_url"`
	ContentType    string     `json:"content_type"`
	ExtractedText  string     `json:"extracted_text"`
	Status         string     `json:"status" gorm:"default:'received'"`
	ReviewedAt     *time.Time `json:"reviewed_at"`
	ReviewNotes    string     `json:"review_notes"`
}

func (p *Prescription) BeforeCreate(tx *gorm.DB) error {
	if p.PrescriptionID == "" {
		p.PrescriptionID = fmt.Sprintf("RX%d%03d", time.Now().Unix(), time.Now().Nanosecond()%1000)
	}
	return nil
}
