package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Appointment statuses.
const (
	AppointmentStatusPending   = "pending"
	AppointmentStatusConfirmed = "confirmed"
	AppointmentStatusCancelled = "cancelled"
	AppointmentStatusCompleted = "completed"
)

// Doctor is a bookable practitioner. Specialty values come from the closed
// specialty vocabulary used by the entity extractor.
type Doctor struct {
	gorm.Model
	DoctorID  string  `json:"doctor_id" gorm:"uniqueIndex"`
	Name      string  `json:"name"`
	Specialty string  `json:"specialty" gorm:"index"`
	Clinic    string  `json:"clinic"`
	Fee       float64 `json:"fee"`
	Available bool    `json:"available" gorm:"default:true"`
}

func (d *Doctor) BeforeCreate(tx *gorm.DB) error {
	if d.DoctorID == "" {
		d.DoctorID = fmt.Sprintf("DOC%d%03d", time.Now().Unix(), time.Now().Nanosecond()%1000)
	}
	return nil
}

// Appointment links a user to a doctor at a confirmed slot.
type Appointment struct {
	gorm.Model
	AppointmentID string    `json:"appointment_id" gorm:"uniqueIndex"`
	UserID        string    `json:"user_id" gorm:"index"`
	Phone         string    `json:"phone"`
	DoctorID      string    `json:"doctor_id"`
	DoctorName    string    `json:"doctor_name"`
	Specialty     string    `json:"specialty"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Status        string    `json:"status" gorm:"default:'pending'"`
	Notes         string    `json:"notes"`
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.AppointmentID == "" {
		a.AppointmentID = fmt.Sprintf("APT%d%03d", time.Now().Unix(), time.Now().Nanosecond()%1000)
	}
	return nil
}
