package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/medlane-ng/medlane-backend/internal/config"
	"github.com/medlane-ng/medlane-backend/internal/models"
	"github.com/medlane-ng/medlane-backend/internal/storage"
	"github.com/medlane-ng/medlane-backend/internal/utils"
)

// AttachmentRef remembers an inbound media file the session has not
// consumed yet.
type AttachmentRef struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

// SessionData is the transient context document stored on the session. It
// is decoded at the start of a turn and written back whole on save, so the
// storage layer always observes the mutation within the same call.
type SessionData struct {
	Flow                 string                 `json:"flow,omitempty"`
	Step                 string                 `json:"step,omitempty"`
	Draft                map[string]string      `json:"draft,omitempty"`
	WaitingForOTP        bool                   `json:"waiting_for_otp,omitempty"`
	OTPPurpose           string                 `json:"otp_purpose,omitempty"`
	Cursors              map[string]*PageCursor `json:"cursors,omitempty"`
	AwaitingPrescription bool                   `json:"awaiting_prescription,omitempty"`
	PendingAttachment    *AttachmentRef         `json:"pending_attachment,omitempty"`
	TicketID             string                 `json:"ticket_id,omitempty"`
}

// SetDraft records one flow draft field, allocating the map on first use.
func (d *SessionData) SetDraft(key, value string) {
	if d.Draft == nil {
		d.Draft = make(map[string]string)
	}
	d.Draft[key] = value
}

// ClearFlow drops the active flow, its step marker and its draft. Cursors
// survive so a list rendered before the flow stays selectable.
func (d *SessionData) ClearFlow() {
	d.Flow = ""
	d.Step = ""
	d.Draft = nil
	d.WaitingForOTP = false
	d.OTPPurpose = ""
}

// SetCursor stores the authoritative cursor for a namespace and drops every
// other one, so a later bare-digit reply cannot be misrouted to a stale list.
func (d *SessionData) SetCursor(namespace string, cursor *PageCursor) {
	d.Cursors = map[string]*PageCursor{namespace: cursor}
}

// ActiveCursor returns the single live cursor, if any.
func (d *SessionData) ActiveCursor() (string, *PageCursor) {
	for namespace, cursor := range d.Cursors {
		return namespace, cursor
	}
	return "", nil
}

// ClearCursors drops all pagination state.
func (d *SessionData) ClearCursors() {
	d.Cursors = nil
}

// SessionService owns the session lifecycle: creation, idle expiry, token
// issue/refresh and persistence. Turns for one sender serialize on a keyed
// lock held by the dispatcher for the whole turn.
type SessionService struct {
	store storage.Store
	cfg   config.SessionConfig

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSessionService creates the session service.
func NewSessionService(store storage.Store, cfg config.SessionConfig) *SessionService {
	return &SessionService{
		store: store,
		cfg:   cfg,
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the per-sender turn lock and returns its release func.
func (s *SessionService) Lock(phone string) func() {
	s.mu.Lock()
	lock, ok := s.locks[phone]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[phone] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// GetOrCreate loads the session for a phone number, creating it in state
// NEW on first contact, and decodes its data document.
func (s *SessionService) GetOrCreate(phone string) (*models.Session, *SessionData, error) {
	session, err := s.store.GetSession(phone)
	if err == nil {
		return session, decodeData(session), nil
	}
	if err != storage.ErrNotFound {
		return nil, nil, fmt.Errorf("load session for %s: %w", phone, err)
	}

	session = &models.Session{
		Phone:        phone,
		State:        models.SessionStateNew,
		LastActivity: time.Now(),
		Data:         "{}",
	}
	if err := s.store.CreateSession(session); err != nil {
		return nil, nil, fmt.Errorf("create session for %s: %w", phone, err)
	}
	log.Printf("🆕 Session created for %s", phone)
	return session, &SessionData{}, nil
}

// ExpireIfIdle runs the idle check against the session's prior activity
// timestamp. It must run before Touch: checking after the touch would make
// expiry permanently undetectable. When a logged-in session has sat idle
// past the timeout it is forced back to NEW with credentials and context
// cleared, and the caller notifies the user before processing the current
// message as unauthenticated.
func (s *SessionService) ExpireIfIdle(session *models.Session, data *SessionData) bool {
	elapsed := time.Since(session.LastActivity)
	if elapsed <= s.cfg.IdleTimeout || session.State != models.SessionStateLoggedIn {
		return false
	}

	session.State = models.SessionStateNew
	session.Token = ""
	session.TokenCreatedAt = nil
	session.UserID = ""
	session.LoginTime = nil
	*data = SessionData{}

	log.Printf("⏰ Session for %s expired after %s idle", session.Phone, elapsed.Round(time.Second))
	return true
}

// Touch advances lastActivity. Callers that need the turn to not count as
// activity simply skip the call.
func (s *SessionService) Touch(session *models.Session) {
	session.LastActivity = time.Now()
}

// Save encodes the data document and persists the whole session record.
func (s *SessionService) Save(session *models.Session, data *SessionData) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode session data: %w", err)
	}
	session.Data = string(encoded)
	if err := s.store.SaveSession(session); err != nil {
		return fmt.Errorf("save session for %s: %w", session.Phone, err)
	}
	return nil
}

// IsAuthenticated reports whether the session can reach guarded intents: a
// token is present, the state is LOGGED_IN and the idle timeout has not
// elapsed since the last activity.
func (s *SessionService) IsAuthenticated(session *models.Session) bool {
	return session.Token != "" &&
		session.State == models.SessionStateLoggedIn &&
		time.Since(session.LastActivity) <= s.cfg.IdleTimeout
}

// Login transitions the session to LOGGED_IN for the given user and issues
// a fresh opaque token.
func (s *SessionService) Login(session *models.Session, userID string) {
	now := time.Now()
	session.State = models.SessionStateLoggedIn
	session.UserID = userID
	session.Token = utils.NewSessionToken()
	session.TokenCreatedAt = &now
	session.LoginTime = &now
}

// Logout clears credentials and resets the session to NEW.
func (s *SessionService) Logout(session *models.Session, data *SessionData) {
	session.State = models.SessionStateNew
	session.Token = ""
	session.TokenCreatedAt = nil
	session.UserID = ""
	session.LoginTime = nil
	*data = SessionData{}
}

// NeedsRefresh reports whether the token has entered the refresh window.
func (s *SessionService) NeedsRefresh(session *models.Session) bool {
	if session.Token == "" || session.TokenCreatedAt == nil {
		return false
	}
	age := time.Since(*session.TokenCreatedAt)
	return age > s.cfg.TokenExpiry-s.cfg.RefreshThreshold
}

// RefreshToken rotates the opaque token in place, keeping the login.
func (s *SessionService) RefreshToken(session *models.Session) {
	now := time.Now()
	session.Token = utils.NewSessionToken()
	session.TokenCreatedAt = &now
	log.Printf("🔄 Token refreshed for %s", session.Phone)
}

// PageSize returns the configured list page size.
func (s *SessionService) PageSize() int {
	return s.cfg.PageSize
}

func decodeData(session *models.Session) *SessionData {
	data := &SessionData{}
	if session.Data == "" {
		return data
	}
	if err := json.Unmarshal([]byte(session.Data), data); err != nil {
		// A corrupt context document resets to empty rather than wedging
		// the conversation
		log.Printf("⚠️  Corrupt session data for %s, resetting: %v", session.Phone, err)
		return &SessionData{}
	}
	return data
}
