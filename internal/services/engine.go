package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/medlane-ng/medlane-backend/internal/models"
	"github.com/medlane-ng/medlane-backend/internal/storage"
)

// Inbound event types, matching what the WhatsApp webhook delivers.
const (
	EventText     = "text"
	EventImage    = "image"
	EventDocument = "document"
	EventLocation = "location"
	EventAudio    = "audio"
	EventButton   = "button"
)

// InboundEvent is one normalized webhook delivery.
type InboundEvent struct {
	MessageSID       string
	From             string // bare phone number, no whatsapp: prefix
	Type             string
	Text             string
	ButtonPayload    string
	MediaURL         string
	MediaContentType string
	Latitude         float64
	Longitude        float64
}

// Engine is the dispatcher: it runs every inbound message through the fixed
// precedence order (idle expiry, pagination, flow resolver, classifier,
// auth guard) and executes exactly one handler per turn. Turns for one
// sender serialize on the session service's keyed lock.
type Engine struct {
	store      storage.Store
	sessions   *SessionService
	classifier *Classifier
	messenger  Messenger
	otps       *OTPService
	catalog    *CatalogService
	orders     *OrderService
	payments   *PaymentService
	emails     *EmailService
	ocr        *OCRService
}

// NewEngine wires the dispatcher.
func NewEngine(
	store storage.Store,
	sessions *SessionService,
	classifier *Classifier,
	messenger Messenger,
	otps *OTPService,
	catalog *CatalogService,
	orders *OrderService,
	payments *PaymentService,
	emails *EmailService,
	ocr *OCRService,
) *Engine {
	return &Engine{
		store:      store,
		sessions:   sessions,
		classifier: classifier,
		messenger:  messenger,
		otps:       otps,
		catalog:    catalog,
		orders:     orders,
		payments:   payments,
		emails:     emails,
		ocr:        ocr,
	}
}

// turn carries everything a handler needs for one inbound message.
type turn struct {
	event    *InboundEvent
	session  *models.Session
	data     *SessionData
	text     string
	intent   IntentResult
	fromFlow bool
	// set when the pagination engine resolved a selection this turn
	selected  *PageItem
	namespace string
}

// authWhitelist is the set of intents reachable while unauthenticated. The
// OTP interrupts and flow step intents are exempt separately because they
// only ever come out of the flow resolver.
var authWhitelist = map[string]bool{
	"register":       true,
	"login":          true,
	"password_reset": true,
	IntentGreeting:   true,
	IntentHelp:       true,
}

// HandleEvent processes one webhook delivery end to end: loads the session,
// applies the precedence order, runs one handler and persists the replaced
// data document. Handler panics are caught here and turned into a single
// apology so the webhook acknowledgment never fails.
func (e *Engine) HandleEvent(event *InboundEvent) {
	release := e.sessions.Lock(event.From)
	defer release()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("🛑 Panic handling message from %s: %v", event.From, r)
			e.send(event.From, "😔 Sorry, something went wrong on our side. Please try again.")
		}
	}()

	session, data, err := e.sessions.GetOrCreate(event.From)
	if err != nil {
		log.Printf("❌ Session load failed for %s: %v", event.From, err)
		e.send(event.From, "😔 Sorry, something went wrong on our side. Please try again.")
		return
	}

	// Stage 1: idle expiry, strictly before the activity touch
	if e.sessions.ExpireIfIdle(session, data) {
		e.send(event.From, "⏰ You were logged out after a period of inactivity. Please log in again to continue.")
	}

	if err := e.route(&turn{event: event, session: session, data: data, text: event.Text}); err != nil {
		log.Printf("❌ Handler failed for %s: %v", event.From, err)
		e.send(event.From, "😔 Sorry, something went wrong on our side. Please try again.")
	}

	if e.sessions.IsAuthenticated(session) && e.sessions.NeedsRefresh(session) {
		e.sessions.RefreshToken(session)
	}
	e.sessions.Touch(session)
	if err := e.sessions.Save(session, data); err != nil {
		log.Printf("❌ Session save failed for %s: %v", event.From, err)
	}
}

// route applies stages 2-6 for one turn.
func (e *Engine) route(t *turn) error {
	// Support chat swallows everything until the user ends it
	if t.session.State == models.SessionStateSupportChat {
		return e.handleSupportChat(t)
	}

	switch t.event.Type {
	case EventImage, EventDocument:
		return e.handleAttachment(t)
	case EventLocation:
		return e.handleLocation(t)
	case EventAudio:
		return e.send(t.session.Phone, "🎙️ Sorry, voice notes aren't supported yet. Please type your message.")
	case EventButton:
		if t.event.ButtonPayload != "" {
			return e.handleButtonPayload(t)
		}
		// A list/button reply without payload degrades to its visible text
	}

	// Stage 2: pagination, only when a cursor is live and the input has a
	// navigation/selection shape. A bare digit stays with the active flow
	// when its current step reads numeric input.
	if namespace, cursor := t.data.ActiveCursor(); cursor != nil {
		if cmd, ok := ParsePageCommand(t.text); ok {
			digitsClaimedByFlow := cmd.Kind == PageCommandSelect &&
				StepExpectsDigits(t.data.Flow, t.data.Step)
			if !digitsClaimedByFlow {
				return e.handlePageCommand(t, namespace, cursor, cmd)
			}
		}
	}

	// Stage 3: flow resolver, including the global OTP interrupts
	if result, ok := ResolveFlow(t.data, t.text); ok {
		t.intent = result
		t.fromFlow = true
		return e.guardAndDispatch(t)
	}

	// Stage 4: classifier + entity extractor
	entities := ExtractEntities(t.text, time.Now())
	t.intent = e.classifier.Classify(t.text, entities)
	return e.guardAndDispatch(t)
}

// guardAndDispatch applies stage 5 (authentication guard) then stage 6.
func (e *Engine) guardAndDispatch(t *turn) error {
	if !t.fromFlow && !authWhitelist[t.intent.Intent] && !e.sessions.IsAuthenticated(t.session) {
		return e.sendButtons(t.session.Phone,
			"🔒 You need to be logged in for that.\n\nReply *register* to create an account or *login* if you already have one.",
			[]Button{
				{Label: "Register", Payload: "intent:register"},
				{Label: "Login", Payload: "intent:login"},
			})
	}
	return e.dispatch(t)
}

// dispatch executes exactly one handler for the resolved intent.
func (e *Engine) dispatch(t *turn) error {
	if t.fromFlow {
		switch t.intent.Intent {
		case IntentVerifyOTP:
			return e.handleVerifyOTP(t)
		case IntentResendOTP:
			return e.handleResendOTP(t)
		default:
			return e.handleFlowStep(t)
		}
	}

	switch t.intent.Intent {
	case IntentGreeting:
		return e.handleGreeting(t)
	case IntentHelp:
		return e.sendMenu(t)
	case IntentLogout:
		return e.handleLogout(t)
	case "register":
		return e.startRegistration(t)
	case "login":
		return e.startLogin(t)
	case "password_reset":
		return e.startPasswordReset(t)
	case "search_products":
		return e.handleSearchProducts(t, models.CategoryMedicine)
	case "healthcare_products":
		return e.handleSearchProducts(t, models.CategoryHealthcare)
	case "add_to_cart":
		return e.send(t.session.Phone, "🛒 Pick a product from a list first, then tap *Add to cart*. Try *search* to find medicines.")
	case "view_cart":
		return e.handleViewCart(t)
	case "checkout":
		return e.startCheckout(t)
	case "track_order":
		return e.handleTrackOrder(t)
	case "order_history":
		return e.handleOrderHistory(t)
	case "book_appointment":
		return e.startAppointment(t)
	case "list_doctors":
		return e.handleListDoctors(t)
	case "book_diagnostics":
		return e.startDiagnostics(t)
	case "upload_prescription":
		return e.handleUploadPrescription(t)
	case "contact_support":
		return e.startSupportChat(t)
	default:
		return e.handleUnknown(t)
	}
}

// handleButtonPayload consumes an interactive reply. Payloads of the form
// intent:<name> resolve straight to that intent; everything else is offered
// to the active flow first.
func (e *Engine) handleButtonPayload(t *turn) error {
	payload := t.event.ButtonPayload

	if name, ok := strings.CutPrefix(payload, "intent:"); ok {
		t.intent = IntentResult{Intent: name, Confidence: 1.0, RequiresAuth: !authWhitelist[name]}
		return e.guardAndDispatch(t)
	}

	if t.data.Flow != "" && t.data.Step != "" {
		t.text = payload
		t.intent = IntentResult{Intent: fmt.Sprintf("%s_step_%s", t.data.Flow, t.data.Step), Confidence: 1.0}
		t.fromFlow = true
		return e.guardAndDispatch(t)
	}

	switch {
	case strings.HasPrefix(payload, "add:"):
		return e.handleAddToCart(t, strings.TrimPrefix(payload, "add:"))
	case strings.HasPrefix(payload, "remove:"):
		return e.handleRemoveFromCart(t, strings.TrimPrefix(payload, "remove:"))
	default:
		log.Printf("Unrecognized button payload %q from %s", payload, t.session.Phone)
		return e.handleUnknown(t)
	}
}

// handlePageCommand executes a navigation or selection against the single
// authoritative cursor.
func (e *Engine) handlePageCommand(t *turn, namespace string, cursor *PageCursor, cmd PageCommand) error {
	switch cmd.Kind {
	case PageCommandNext:
		if err := cursor.Advance(); err != nil {
			return e.send(t.session.Phone, "⛔ "+err.Error())
		}
		return e.renderCursorPage(t, namespace, cursor)
	case PageCommandPrevious:
		if err := cursor.Back(); err != nil {
			return e.send(t.session.Phone, "⛔ "+err.Error())
		}
		return e.renderCursorPage(t, namespace, cursor)
	default:
		item, err := cursor.Select(cmd.Selection)
		if err != nil {
			return e.send(t.session.Phone, "⛔ "+err.Error())
		}
		t.selected = &item
		t.namespace = namespace
		if t.data.Flow != "" && t.data.Step != "" {
			t.intent = IntentResult{Intent: fmt.Sprintf("%s_step_%s", t.data.Flow, t.data.Step), Confidence: 1.0}
			t.fromFlow = true
			return e.handleFlowStep(t)
		}
		return e.handleSelection(t)
	}
}

func (e *Engine) handleGreeting(t *turn) error {
	if e.sessions.IsAuthenticated(t.session) {
		user, err := e.store.GetUserByID(t.session.UserID)
		name := "there"
		if err == nil {
			name = firstName(user.Name)
		}
		return e.send(t.session.Phone, fmt.Sprintf("👋 Welcome back, %s!\n\n%s", name, menuText()))
	}
	return e.sendButtons(t.session.Phone,
		"👋 Welcome to *Medlane*, your pharmacy on WhatsApp!\n\nOrder medicines, book doctors and lab tests, and track deliveries - all from this chat.",
		[]Button{
			{Label: "Register", Payload: "intent:register"},
			{Label: "Login", Payload: "intent:login"},
			{Label: "Help", Payload: "intent:help"},
		})
}

func (e *Engine) sendMenu(t *turn) error {
	return e.send(t.session.Phone, menuText())
}

func menuText() string {
	return `Here's what I can do - reply with a number or just tell me:

1️⃣ Search medicines
2️⃣ View cart
3️⃣ Track an order
4️⃣ Book a doctor
5️⃣ Book a lab test
6️⃣ Upload a prescription
7️⃣ Contact support
8️⃣ Help`
}

func (e *Engine) handleLogout(t *turn) error {
	if t.session.State != models.SessionStateLoggedIn {
		return e.send(t.session.Phone, "You're not logged in. Reply *login* to sign in.")
	}
	e.sessions.Logout(t.session, t.data)
	return e.send(t.session.Phone, "👋 You've been logged out. Reply *login* whenever you want to come back.")
}

func (e *Engine) handleUnknown(t *turn) error {
	return e.send(t.session.Phone, "🤔 I didn't catch that. Reply *help* to see everything I can do.")
}

// send delivers one text message, logging rather than propagating transport
// failures so a Twilio hiccup never looks like a handler error.
func (e *Engine) send(to, body string) error {
	if err := e.messenger.SendText(to, body); err != nil {
		log.Printf("⚠️  Send to %s failed: %v", to, err)
	}
	return nil
}

func (e *Engine) sendButtons(to, body string, buttons []Button) error {
	if err := e.messenger.SendButtons(to, body, buttons); err != nil {
		log.Printf("⚠️  Buttons to %s failed: %v", to, err)
	}
	return nil
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return full
	}
	return fields[0]
}
