package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Support ticket statuses.
const (
	TicketStatusOpen     = "open"
	TicketStatusResolved = "resolved"
	TicketStatusClosed   = "closed"
)

// SupportTicket is an open support conversation. Transcript accumulates the
// user's messages, one line per turn, while the session sits in support chat.
type SupportTicket struct {
	gorm.Model
	TicketID   string     `json:"ticket_id" gorm:"uniqueIndex"`
	UserID     string     `json:"user_id" gorm:"index"`
	Phone      string     `json:"phone" gorm:"index"`
	Subject    string     `json:"subject"`
	Transcript string     `json:"transcript"`
	Status     string     `json:"status" gorm:"default:'open'"`
	ResolvedAt *time.Time `json:"resolved_at"`
}

func (t *SupportTicket) BeforeCreate(tx *gorm.DB) error {
	if t.TicketID == "" {
		t.TicketID = fmt.Sprintf("TKT%d%03d", time.Now().Unix(), time.Now().Nanosecond()%1000)
	}
	return nil
}

// AppendLine adds one user turn to the transcript.
func (t *SupportTicket) AppendLine(text string) {
	line := fmt.Sprintf("[%s] %s", time.Now().Format("2006-01-02 15:04"), text)
	if t.Transcript == "" {
		t.Transcript = line
		return
	}
	t.Transcript += "\n" + line
}
