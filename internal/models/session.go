package models

import (
	"time"

	"gorm.io/gorm"
)

// Session lifecycle states. NEW is both the initial and the reset state.
const (
	SessionStateNew         = "NEW"
	SessionStateRegistering = "REGISTERING"
	SessionStateLoggingIn   = "LOGGING_IN"
	SessionStateLoggedIn    = "LOGGED_IN"
	SessionStateSupportChat = "SUPPORT_CHAT"
)

// Session stores one conversation per WhatsApp number. Data holds the
// transient context (flow drafts, pagination cursors, cached list snapshots,
// pending attachments) as a JSON document that is replaced whole on every
// save so the storage layer always sees the mutation.
type Session struct {
	gorm.Model
	Phone          string     `json:"phone" gorm:"uniqueIndex"`
	State          string     `json:"state" gorm:"default:'NEW'"`
	Token          string     `json:"-"` // opaque credential, empty unless authenticated
	TokenCreatedAt *time.Time `json:"-"`
	UserID         string     `json:"user_id"`
	LoginTime      *time.Time `json:"login_time"`
	LastActivity   time.Time  `json:"last_activity"`
	Data           string     `json:"data"` // JSON-encoded context document
}
