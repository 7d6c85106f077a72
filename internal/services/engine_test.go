package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medlane-ng/medlane-backend/internal/config"
	"github.com/medlane-ng/medlane-backend/internal/models"
	"github.com/medlane-ng/medlane-backend/internal/storage"
	"github.com/medlane-ng/medlane-backend/internal/utils"
)

// fakeMessenger records every outbound message in order.
type fakeMessenger struct {
	sent []sentMessage
}

type sentMessage struct {
	kind     string // text, buttons, list, location
	to       string
	body     string
	buttons  []Button
	sections []ListSection
}

func (f *fakeMessenger) SendText(to, body string) error {
	f.sent = append(f.sent, sentMessage{kind: "text", to: to, body: body})
	return nil
}

func (f *fakeMessenger) SendButtons(to, body string, buttons []Button) error {
	f.sent = append(f.sent, sentMessage{kind: "buttons", to: to, body: body, buttons: buttons})
	return nil
}

func (f *fakeMessenger) SendList(to, body string, sections []ListSection) error {
	f.sent = append(f.sent, sentMessage{kind: "list", to: to, body: body, sections: sections})
	return nil
}

func (f *fakeMessenger) RequestLocation(to, body string) error {
	f.sent = append(f.sent, sentMessage{kind: "location", to: to, body: body})
	return nil
}

func (f *fakeMessenger) MarkAsRead(messageSID string) error { return nil }

func (f *fakeMessenger) last(t *testing.T) sentMessage {
	t.Helper()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func (f *fakeMessenger) reset() { f.sent = nil }

func newTestEngine(t *testing.T) (*Engine, *storage.MemoryStore, *fakeMessenger) {
	t.Helper()
	store := storage.NewMemoryStore()
	messenger := &fakeMessenger{}

	table, err := LoadIntentTable("")
	require.NoError(t, err)

	sessions := NewSessionService(store, testSessionConfig())
	engine := NewEngine(
		store,
		sessions,
		NewClassifier(table),
		messenger,
		NewOTPService(store),
		NewCatalogService(store, config.CatalogConfig{}),
		NewOrderService(store, config.CatalogConfig{}, config.RetryConfig{BaseDelay: 1, Multiplier: 2, MaxAttempts: 1}),
		NewPaymentService(store, messenger, config.PaymentConfig{}),
		NewEmailService(config.EmailConfig{}),
		NewOCRService(config.OCRConfig{}),
	)
	return engine, store, messenger
}

func textEvent(from, text string) *InboundEvent {
	return &InboundEvent{MessageSID: "SM" + text, From: from, Type: EventText, Text: text}
}

func buttonEvent(from, payload string) *InboundEvent {
	return &InboundEvent{MessageSID: "SMbtn", From: from, Type: EventButton, ButtonPayload: payload}
}

func seedUser(t *testing.T, store *storage.MemoryStore, phone string) *models.User {
	t.Helper()
	hash, err := utils.HashPassword("sekret123")
	require.NoError(t, err)
	user := &models.User{
		Name:         "Jane Doe",
		Email:        "jane@example.com",
		Phone:        phone,
		PasswordHash: hash,
		Verified:     true,
		IsActive:     true,
	}
	require.NoError(t, store.CreateUser(user))
	return user
}

func loginUser(t *testing.T, engine *Engine, messenger *fakeMessenger, phone string) {
	t.Helper()
	engine.HandleEvent(textEvent(phone, "login jane@example.com sekret123"))
	require.Contains(t, messenger.last(t).body, "Welcome back")
	messenger.reset()
}

func seedProducts(t *testing.T, store *storage.MemoryStore, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		require.NoError(t, store.CreateProduct(&models.Product{
			ProductID: fmt.Sprintf("MED%02d", i),
			Name:      fmt.Sprintf("Med %02d", i),
			Category:  models.CategoryMedicine,
			Price:     float64(100 * i),
			InStock:   true,
		}))
	}
}

const testPhone = "+2348000000001"

func sessionState(t *testing.T, store *storage.MemoryStore, phone string) *models.Session {
	t.Helper()
	session, err := store.GetSession(phone)
	require.NoError(t, err)
	return session
}

func TestGreetingUnauthenticated(t *testing.T) {
	engine, store, messenger := newTestEngine(t)

	engine.HandleEvent(textEvent(testPhone, "hi"))

	msg := messenger.last(t)
	assert.Equal(t, "buttons", msg.kind)
	assert.Contains(t, msg.body, "Welcome to *Medlane*")
	require.Len(t, msg.buttons, 3)
	assert.Equal(t, "intent:register", msg.buttons[0].Payload)

	session := sessionState(t, store, testPhone)
	assert.Equal(t, models.SessionStateNew, session.State)
}

func TestOneShotRegistrationToLogin(t *testing.T) {
	engine, store, messenger := newTestEngine(t)

	engine.HandleEvent(textEvent(testPhone, "register Jane Doe jane@example.com sekret123"))

	session := sessionState(t, store, testPhone)
	assert.Equal(t, models.SessionStateRegistering, session.State)
	assert.Contains(t, messenger.last(t).body, "verification code")

	otp, err := store.GetActiveOTP(testPhone)
	require.NoError(t, err)
	require.Len(t, otp.Code, 4)

	engine.HandleEvent(textEvent(testPhone, otp.Code))

	session = sessionState(t, store, testPhone)
	assert.Equal(t, models.SessionStateLoggedIn, session.State)
	assert.NotEmpty(t, session.Token)
	assert.Contains(t, messenger.last(t).body, "Welcome to Medlane, Jane")

	user, err := store.GetUserByPhone(testPhone)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", user.Email)
	assert.True(t, user.Verified)
	assert.Equal(t, session.UserID, user.UserID)
}

func TestStepByStepRegistration(t *testing.T) {
	engine, store, messenger := newTestEngine(t)

	engine.HandleEvent(textEvent(testPhone, "register"))
	assert.Contains(t, messenger.last(t).body, "full name")

	engine.HandleEvent(textEvent(testPhone, "Jane Doe"))
	assert.Contains(t, messenger.last(t).body, "email")

	engine.HandleEvent(textEvent(testPhone, "not-an-email"))
	assert.Contains(t, messenger.last(t).body, "doesn't look like an email")

	engine.HandleEvent(textEvent(testPhone, "jane@example.com"))
	assert.Contains(t, messenger.last(t).body, "password")

	engine.HandleEvent(textEvent(testPhone, "short"))
	assert.Contains(t, messenger.last(t).body, "at least 8 characters")

	engine.HandleEvent(textEvent(testPhone, "sekret123"))
	assert.Contains(t, messenger.last(t).body, "verification code")

	otp, err := store.GetActiveOTP(testPhone)
	require.NoError(t, err)

	wrong := "0000"
	if otp.Code == wrong {
		wrong = "1111"
	}
	engine.HandleEvent(textEvent(testPhone, wrong))
	assert.Contains(t, messenger.last(t).body, "2 attempts left")

	engine.HandleEvent(textEvent(testPhone, otp.Code))
	session := sessionState(t, store, testPhone)
	assert.Equal(t, models.SessionStateLoggedIn, session.State)
}

func TestRegisterRejectsKnownPhone(t *testing.T) {
	engine, store, messenger := newTestEngine(t)
	seedUser(t, store, testPhone)

	engine.HandleEvent(textEvent(testPhone, "register"))
	assert.Contains(t, messenger.last(t).body, "already has an account")
	assert.Equal(t, models.SessionStateNew, sessionState(t, store, testPhone).State)
}

func TestAuthGuardBlocksTrackOrder(t *testing.T) {
	engine, _, messenger := newTestEngine(t)

	engine.HandleEvent(textEvent(testPhone, "track 12345"))

	msg := messenger.last(t)
	assert.Equal(t, "buttons", msg.kind)
	assert.Contains(t, msg.body, "logged in")
	require.Len(t, msg.buttons, 2)
	assert.Equal(t, "intent:register", msg.buttons[0].Payload)
	assert.Equal(t, "intent:login", msg.buttons[1].Payload)

	// The guard replied without touching orders: nothing about the order ref
	for _, m := range messenger.sent {
		assert.NotContains(t, m.body, "couldn't find an order")
	}
}

func TestLoginWrongPasswordIsGeneric(t *testing.T) {
	engine, store, messenger := newTestEngine(t)
	seedUser(t, store, testPhone)

	engine.HandleEvent(textEvent(testPhone, "login jane@example.com wrongpass"))
	assert.Contains(t, messenger.last(t).body, "Email or password didn't match")

	// The failure reply put the flow back on the email step
	engine.HandleEvent(textEvent(testPhone, "not an email"))
	assert.Contains(t, messenger.last(t).body, "doesn't look like an email")

	// Same reply for an unknown account, so emails can't be enumerated
	engine.HandleEvent(textEvent(testPhone, "nobody@example.com"))
	assert.Contains(t, messenger.last(t).body, "your password")
	engine.HandleEvent(textEvent(testPhone, "whatever1"))
	assert.Contains(t, messenger.last(t).body, "Email or password didn't match")
}

func TestIdleExpiryNoticeBeforeHandling(t *testing.T) {
	engine, store, messenger := newTestEngine(t)
	seedUser(t, store, testPhone)
	loginUser(t, engine, messenger, testPhone)

	session := sessionState(t, store, testPhone)
	session.LastActivity = time.Now().Add(-11 * time.Minute)
	require.NoError(t, store.SaveSession(session))

	engine.HandleEvent(textEvent(testPhone, "hi"))

	require.GreaterOrEqual(t, len(messenger.sent), 2)
	assert.Contains(t, messenger.sent[0].body, "logged out after a period of inactivity")
	// The greeting then runs unauthenticated
	assert.Contains(t, messenger.sent[1].body, "Welcome to *Medlane*")
	assert.Equal(t, models.SessionStateNew, sessionState(t, store, testPhone).State)
}

func TestLogout(t *testing.T) {
	engine, store, messenger := newTestEngine(t)
	seedUser(t, store, testPhone)
	loginUser(t, engine, messenger, testPhone)

	engine.HandleEvent(textEvent(testPhone, "logout"))
	assert.Contains(t, messenger.last(t).body, "logged out")

	session := sessionState(t, store, testPhone)
	assert.Equal(t, models.SessionStateNew, session.State)
	assert.Empty(t, session.Token)
}

func TestProductSearchPagination(t *testing.T) {
	engine, store, messenger := newTestEngine(t)
	seedUser(t, store, testPhone)
	seedProducts(t, store, 12)
	loginUser(t, engine, messenger, testPhone)

	engine.HandleEvent(textEvent(testPhone, "search"))
	assert.Contains(t, messenger.last(t).body, "What medicine are you looking for")

	engine.HandleEvent(textEvent(testPhone, "med"))
	page := messenger.last(t)
	require.Equal(t, "list", page.kind)
	assert.Contains(t, page.body, "page 1 of 3")
	require.Len(t, page.sections[0].Rows, 5)
	assert.Equal(t, "1. Med 01", page.sections[0].Rows[0].Title)

	// "previous" on the first page is rejected, page unchanged
	engine.HandleEvent(textEvent(testPhone, "previous"))
	assert.Contains(t, messenger.last(t).body, "already on the first page")

	engine.HandleEvent(textEvent(testPhone, "next"))
	page = messenger.last(t)
	require.Equal(t, "list", page.kind)
	assert.Contains(t, page.body, "page 2 of 3")
	require.Len(t, page.sections[0].Rows, 5)
	assert.Equal(t, "1. Med 06", page.sections[0].Rows[0].Title)
	assert.Equal(t, "5. Med 10", page.sections[0].Rows[4].Title)

	// Selection is positional against the visible page
	engine.HandleEvent(textEvent(testPhone, "3"))
	card := messenger.last(t)
	assert.Equal(t, "buttons", card.kind)
	assert.Contains(t, card.body, "Med 08")
	assert.Equal(t, "add:MED08", card.buttons[0].Payload)

	// Out-of-range selection is rejected, cursor untouched
	engine.HandleEvent(textEvent(testPhone, "9"))
	assert.Contains(t, messenger.last(t).body, "pick a number between 1 and 5")
}

func TestBareDigitsGoToFlowStepNotCursor(t *testing.T) {
	engine, store, messenger := newTestEngine(t)
	seedUser(t, store, testPhone)
	seedProducts(t, store, 12)
	loginUser(t, engine, messenger, testPhone)

	engine.HandleEvent(textEvent(testPhone, "search"))
	engine.HandleEvent(textEvent(testPhone, "med"))

	// Opening the track flow leaves the product cursor in place
	engine.HandleEvent(textEvent(testPhone, "track"))
	assert.Contains(t, messenger.last(t).body, "order reference")

	// Navigation words still belong to the cursor
	engine.HandleEvent(textEvent(testPhone, "next"))
	assert.Contains(t, messenger.last(t).body, "page 2 of 3")

	// But digits answer the flow step, which expects a reference
	engine.HandleEvent(textEvent(testPhone, "12345"))
	assert.Contains(t, messenger.last(t).body, "couldn't find an order matching *12345*")
}

func TestAddToCartAndCheckoutCOD(t *testing.T) {
	engine, store, messenger := newTestEngine(t)
	user := seedUser(t, store, testPhone)
	seedProducts(t, store, 3)
	loginUser(t, engine, messenger, testPhone)

	engine.HandleEvent(buttonEvent(testPhone, "add:MED02"))
	assert.Contains(t, messenger.last(t).body, "*Med 02* added to your cart")

	engine.HandleEvent(textEvent(testPhone, "checkout"))
	assert.Equal(t, "location", messenger.last(t).kind)

	engine.HandleEvent(textEvent(testPhone, "too short"))
	assert.Contains(t, messenger.last(t).body, "address looks too short")

	engine.HandleEvent(textEvent(testPhone, "12 Marina Road, Lagos Island, Lagos"))
	assert.Contains(t, messenger.last(t).body, "How would you like to pay")

	engine.HandleEvent(buttonEvent(testPhone, "pay:cod"))
	summary := messenger.last(t)
	assert.Contains(t, summary.body, "Order summary")
	assert.Contains(t, summary.body, "Med 02 x1")
	assert.Contains(t, summary.body, "Cash on delivery")

	engine.HandleEvent(textEvent(testPhone, "yes"))
	confirmation := messenger.last(t)
	assert.Contains(t, confirmation.body, "Order placed!")
	assert.Contains(t, confirmation.body, "medlane-")

	orders, err := store.GetOrdersByUser(user.UserID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusConfirmed, orders[0].Status)
	assert.Equal(t, models.PaymentStatusCOD, orders[0].PaymentStatus)
	assert.Equal(t, 200.0, orders[0].Total)

	items, err := store.GetCartItems(user.UserID)
	require.NoError(t, err)
	assert.Empty(t, items)

	// The bare middle segment of the reference is trackable
	var n, ts int64
	_, err = fmt.Sscanf(orders[0].OrderRef, "medlane-%d-%d", &n, &ts)
	require.NoError(t, err)
	engine.HandleEvent(textEvent(testPhone, fmt.Sprintf("track %05d", n)))
	status := messenger.last(t)
	assert.Contains(t, status.body, orders[0].OrderRef)
	assert.Contains(t, status.body, "cash_on_delivery")
}

func TestPrescriptionProductWaitsForUpload(t *testing.T) {
	engine, store, messenger := newTestEngine(t)
	user := seedUser(t, store, testPhone)
	require.NoError(t, store.CreateProduct(&models.Product{
		ProductID:            "MEDRX1",
		Name:                 "Amoxicillin 500mg",
		Category:             models.CategoryMedicine,
		Price:                1500,
		RequiresPrescription: true,
		InStock:              true,
	}))
	loginUser(t, engine, messenger, testPhone)

	engine.HandleEvent(buttonEvent(testPhone, "add:MEDRX1"))
	assert.Contains(t, messenger.last(t).body, "needs a prescription")

	items, err := store.GetCartItems(user.UserID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAppointmentBooking(t *testing.T) {
	engine, store, messenger := newTestEngine(t)
	user := seedUser(t, store, testPhone)
	require.NoError(t, store.CreateDoctor(&models.Doctor{
		DoctorID:  "DOC1",
		Name:      "Dr. Ada Obi",
		Specialty: "dermatologist",
		Fee:       5000,
		Available: true,
	}))
	loginUser(t, engine, messenger, testPhone)

	engine.HandleEvent(textEvent(testPhone, "book an appointment with a dermatologist"))
	page := messenger.last(t)
	require.Equal(t, "list", page.kind)
	assert.Contains(t, page.body, "Doctors")
	assert.Equal(t, "1. Dr. Ada Obi", page.sections[0].Rows[0].Title)

	engine.HandleEvent(textEvent(testPhone, "1"))
	assert.Contains(t, messenger.last(t).body, "When would you like to see *Dr. Ada Obi*")

	engine.HandleEvent(textEvent(testPhone, "tomorrow at 2pm"))
	confirm := messenger.last(t)
	assert.Equal(t, "buttons", confirm.kind)
	assert.Contains(t, confirm.body, "Dr. Ada Obi")

	engine.HandleEvent(buttonEvent(testPhone, "confirm:yes"))
	assert.Contains(t, messenger.last(t).body, "Booked!")

	appointments, err := store.GetAppointmentsByUser(user.UserID)
	require.NoError(t, err)
	require.Len(t, appointments, 1)
	assert.Equal(t, "DOC1", appointments[0].DoctorID)
	assert.Equal(t, models.AppointmentStatusConfirmed, appointments[0].Status)
}

func TestAppointmentRejectsPastTime(t *testing.T) {
	engine, store, messenger := newTestEngine(t)
	seedUser(t, store, testPhone)
	require.NoError(t, store.CreateDoctor(&models.Doctor{
		DoctorID: "DOC1", Name: "Dr. Ada Obi", Specialty: "dermatologist", Available: true,
	}))
	loginUser(t, engine, messenger, testPhone)

	engine.HandleEvent(textEvent(testPhone, "see a dermatologist"))
	engine.HandleEvent(textEvent(testPhone, "1"))
	engine.HandleEvent(textEvent(testPhone, "10/03/2020 14:00"))
	assert.Contains(t, messenger.last(t).body, "in the past")
}

func TestSupportChatSwallowsEverything(t *testing.T) {
	engine, store, messenger := newTestEngine(t)
	seedUser(t, store, testPhone)
	loginUser(t, engine, messenger, testPhone)

	engine.HandleEvent(textEvent(testPhone, "talk to an agent"))
	assert.Contains(t, messenger.last(t).body, "connected to support")
	assert.Equal(t, models.SessionStateSupportChat, sessionState(t, store, testPhone).State)

	// Intents and menu digits are transcript lines now, not commands
	engine.HandleEvent(textEvent(testPhone, "1"))
	engine.HandleEvent(textEvent(testPhone, "my delivery is late"))
	assert.Equal(t, models.SessionStateSupportChat, sessionState(t, store, testPhone).State)

	engine.HandleEvent(textEvent(testPhone, "end chat"))
	assert.Equal(t, models.SessionStateLoggedIn, sessionState(t, store, testPhone).State)

	tickets, err := store.GetAllTickets()
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, models.TicketStatusResolved, tickets[0].Status)
	assert.Contains(t, tickets[0].Transcript, "my delivery is late")
}

func TestUnknownInputGetsHelpHint(t *testing.T) {
	engine, store, messenger := newTestEngine(t)
	seedUser(t, store, testPhone)
	loginUser(t, engine, messenger, testPhone)

	engine.HandleEvent(textEvent(testPhone, "the weather is nice"))
	assert.Contains(t, messenger.last(t).body, "I didn't catch that")
}

func TestMenuDigitWithoutCursor(t *testing.T) {
	engine, store, messenger := newTestEngine(t)
	seedUser(t, store, testPhone)
	loginUser(t, engine, messenger, testPhone)

	// No cursor, no flow: "2" is the view-cart menu shortcut
	engine.HandleEvent(textEvent(testPhone, "2"))
	assert.Contains(t, messenger.last(t).body, "cart is empty")
}

func TestVoiceNotesUnsupported(t *testing.T) {
	engine, _, messenger := newTestEngine(t)

	engine.HandleEvent(&InboundEvent{MessageSID: "SMv", From: testPhone, Type: EventAudio})
	assert.Contains(t, messenger.last(t).body, "voice notes aren't supported")
}
