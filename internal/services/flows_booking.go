package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/medlane-ng/medlane-backend/internal/models"
)

// --- checkout ---

// startCheckout opens the checkout flow against the current cart. Cursors
// are cleared so bare digits belong to the flow from here on.
func (e *Engine) startCheckout(t *turn) error {
	items, err := e.store.GetCartItems(t.session.UserID)
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	if len(items) == 0 {
		return e.send(t.session.Phone, "🛒 Your cart is empty, there's nothing to check out. Reply *search* to find medicines.")
	}

	t.data.ClearFlow()
	t.data.ClearCursors()
	t.data.Flow = FlowCheckout
	t.data.Step = "collect_address"

	if err := e.messenger.RequestLocation(t.session.Phone, "🚚 Where should we deliver? Type your address, or share your location."); err != nil {
		log.Printf("⚠️  Location request to %s failed: %v", t.session.Phone, err)
	}
	return nil
}

func (e *Engine) checkoutStep(t *turn) error {
	input := strings.TrimSpace(t.text)

	switch t.data.Step {
	case "collect_address":
		if len(input) < 10 {
			return e.send(t.session.Phone, "⚠️ That address looks too short. Please include street, area and city, or share your location.")
		}
		return e.acceptCheckoutAddress(t, input)

	case "choose_payment":
		method, ok := parsePaymentChoice(input)
		if !ok {
			return e.sendPaymentButtons(t, "⚠️ Please choose how you'd like to pay.")
		}
		t.data.SetDraft("payment", method)
		t.data.Step = "confirm"
		return e.sendCheckoutSummary(t)

	case "confirm":
		switch parseYesNo(input) {
		case "yes":
			return e.completeCheckout(t)
		case "no":
			t.data.ClearFlow()
			return e.send(t.session.Phone, "🛑 Checkout cancelled. Your cart is untouched - reply *checkout* whenever you're ready.")
		default:
			return e.sendButtons(t.session.Phone, "⚠️ Shall I place the order?", yesNoButtons())
		}

	default:
		t.data.ClearFlow()
		return e.send(t.session.Phone, "🤔 Checkout got confused, let's start over. Reply *checkout*.")
	}
}

// acceptCheckoutAddress records the delivery address (typed or from a
// location share) and advances to payment choice.
func (e *Engine) acceptCheckoutAddress(t *turn, address string) error {
	t.data.SetDraft("address", address)
	t.data.Step = "choose_payment"
	return e.sendPaymentButtons(t, "💳 How would you like to pay?")
}

func (e *Engine) sendPaymentButtons(t *turn, body string) error {
	return e.sendButtons(t.session.Phone, body, []Button{
		{Label: "Pay online", Payload: "pay:online"},
		{Label: "Cash on delivery", Payload: "pay:cod"},
	})
}

func (e *Engine) sendCheckoutSummary(t *turn) error {
	items, err := e.store.GetCartItems(t.session.UserID)
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("🧾 *Order summary*\n")
	total := 0.0
	for _, item := range items {
		total += item.LineTotal()
		fmt.Fprintf(&sb, "\n• %s x%d - ₦%.2f", item.Name, item.Quantity, item.LineTotal())
	}
	fmt.Fprintf(&sb, "\n\nTotal: *₦%.2f*", total)
	fmt.Fprintf(&sb, "\nDeliver to: %s", t.data.Draft["address"])
	fmt.Fprintf(&sb, "\nPayment: %s", paymentLabel(t.data.Draft["payment"]))

	return e.sendButtons(t.session.Phone, sb.String(), yesNoButtons())
}

// completeCheckout is the checkout flow's terminal step: the order is
// placed idempotently, the payment link generated when paying online, the
// receipt mailed best-effort and the cart cleared exactly once.
func (e *Engine) completeCheckout(t *turn) error {
	user, err := e.store.GetUserByID(t.session.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	// Re-fetch the cart right before mutating: the snapshot from the
	// summary step may be stale after slow external calls
	items, err := e.store.GetCartItems(t.session.UserID)
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}

	online := t.data.Draft["payment"] == "online"
	paymentStatus := models.PaymentStatusCOD
	if online {
		paymentStatus = models.PaymentStatusPending
	}

	order, err := e.orders.PlaceOrder(user, items, t.data.Draft["address"], paymentStatus)
	if err != nil {
		return e.send(t.session.Phone, "⚠️ "+err.Error())
	}

	var paymentNote string
	if online {
		link, lerr := e.payments.CreatePaymentLink(order)
		if lerr != nil {
			log.Printf("⚠️  Payment link for %s failed, switching to COD: %v", order.OrderRef, lerr)
			order.PaymentStatus = models.PaymentStatusCOD
			if serr := e.store.SaveOrder(order); serr != nil {
				log.Printf("⚠️  Could not downgrade %s to COD: %v", order.OrderRef, serr)
			}
			paymentNote = "\n\n⚠️ Online payment is unavailable right now, so we've switched your order to cash on delivery."
		} else {
			paymentNote = "\n\n💳 Pay here: " + link
		}
	}

	if err := e.store.ClearCart(user.UserID); err != nil {
		log.Printf("⚠️  Could not clear cart for %s: %v", user.UserID, err)
	}

	t.data.ClearFlow()
	t.data.ClearCursors()

	go e.emails.SendReceipt(user, order)

	return e.send(t.session.Phone, fmt.Sprintf(
		"✅ Order placed! Your reference is *%s*.\nTotal: ₦%.2f%s\n\nReply *track %s* any time for updates.",
		order.OrderRef, order.Total, paymentNote, order.OrderRef))
}

// --- appointments ---

// startAppointment opens the appointment flow. A specialty mentioned in
// the same message skips straight to the doctor list.
func (e *Engine) startAppointment(t *turn) error {
	t.data.ClearFlow()
	t.data.Flow = FlowAppointment
	t.data.Step = "choose_specialty"

	if specialty := t.intent.Parameters[EntitySpecialty]; specialty != "" {
		t.data.SetDraft("specialty", specialty)
		return e.listDoctorsBySpecialty(t, specialty)
	}

	if err := e.send(t.session.Phone, "🩺 What kind of doctor do you need? Pick from the list or just type it, e.g. *dermatologist*."); err != nil {
		return err
	}
	return e.showSpecialties(t)
}

func (e *Engine) appointmentStep(t *turn) error {
	switch t.data.Step {
	case "choose_specialty":
		specialty := ""
		if t.selected != nil {
			specialty = t.selected.ID
		} else if s := extractSpecialty(normalizeText(t.text)); s != "" {
			specialty = s
		}
		if specialty == "" {
			return e.send(t.session.Phone, "⚠️ I didn't recognize that specialty. Pick one from the list or try e.g. *cardiologist*.")
		}
		t.data.SetDraft("specialty", specialty)
		return e.listDoctorsBySpecialty(t, specialty)

	case "choose_doctor":
		if t.selected == nil {
			return e.send(t.session.Phone, "⚠️ Please pick a doctor from the list by number.")
		}
		t.data.SetDraft("doctor_id", t.selected.ID)
		t.data.SetDraft("doctor_name", t.selected.Label)
		t.data.Step = "choose_time"
		return e.send(t.session.Phone, fmt.Sprintf("📅 When would you like to see *%s*? Try *tomorrow 2pm* or *2026-09-03 14:00*.", t.selected.Label))

	case "choose_time":
		when, ok := ParseDateTime(t.text, time.Now())
		if !ok {
			return e.send(t.session.Phone, "⚠️ I couldn't read that time. Try *tomorrow 2pm*, *next monday 3:30pm* or *2026-09-03 14:00*.")
		}
		if when.Before(time.Now()) {
			return e.send(t.session.Phone, "⚠️ That time is in the past. When should we book instead?")
		}
		t.data.SetDraft("time", when.Format(DateTimeLayout))
		t.data.Step = "confirm"
		return e.sendButtons(t.session.Phone,
			fmt.Sprintf("🩺 Book *%s* (%s) for *%s*?", t.data.Draft["doctor_name"], t.data.Draft["specialty"], when.Format("Mon 2 Jan, 3:04 PM")),
			yesNoButtons())

	case "confirm":
		switch parseYesNo(t.text) {
		case "yes":
			return e.completeAppointment(t)
		case "no":
			t.data.ClearFlow()
			t.data.ClearCursors()
			return e.send(t.session.Phone, "🛑 No problem, nothing was booked. Reply *4* to start again.")
		default:
			return e.sendButtons(t.session.Phone, "⚠️ Shall I book it?", yesNoButtons())
		}

	default:
		t.data.ClearFlow()
		return e.send(t.session.Phone, "🤔 Booking got confused, let's start over. Reply *book appointment*.")
	}
}

// completeAppointment is the appointment flow's terminal step.
func (e *Engine) completeAppointment(t *turn) error {
	when, err := time.ParseInLocation(DateTimeLayout, t.data.Draft["time"], time.Local)
	if err != nil {
		t.data.Step = "choose_time"
		return e.send(t.session.Phone, "⚠️ The chosen time went missing, please give it again.")
	}

	appointment := &models.Appointment{
		UserID:      t.session.UserID,
		Phone:       t.session.Phone,
		DoctorID:    t.data.Draft["doctor_id"],
		DoctorName:  t.data.Draft["doctor_name"],
		Specialty:   t.data.Draft["specialty"],
		ScheduledAt: when,
		Status:      models.AppointmentStatusConfirmed,
	}
	if err := e.store.CreateAppointment(appointment); err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}

	t.data.ClearFlow()
	t.data.ClearCursors()

	return e.send(t.session.Phone, fmt.Sprintf(
		"✅ Booked! *%s* will see you on *%s*.\nReference: %s\n\nWe'll remind you before the appointment.",
		appointment.DoctorName, when.Format("Mon 2 Jan, 3:04 PM"), appointment.AppointmentID))
}

// --- diagnostics ---

// startDiagnostics opens the lab-test booking flow with the test list.
func (e *Engine) startDiagnostics(t *turn) error {
	tests, err := e.store.GetLabTests()
	if err != nil {
		return fmt.Errorf("load lab tests: %w", err)
	}
	if len(tests) == 0 {
		return e.send(t.session.Phone, "😕 No lab tests are bookable right now. Please check back later.")
	}

	t.data.ClearFlow()
	t.data.Flow = FlowDiagnostics
	t.data.Step = "choose_test"

	items := make([]PageItem, 0, len(tests))
	for _, test := range tests {
		if !test.Available {
			continue
		}
		detail := test.Description
		if test.HomeSample {
			detail = strings.TrimSpace("Home sample. " + detail)
		}
		items = append(items, PageItem{ID: test.TestID, Label: test.Name, Detail: detail, Price: test.Price})
	}
	return e.showListing(t, CursorLabTests, items)
}

func (e *Engine) diagnosticsStep(t *turn) error {
	switch t.data.Step {
	case "choose_test":
		if t.selected == nil {
			return e.send(t.session.Phone, "⚠️ Please pick a test from the list by number.")
		}
		t.data.SetDraft("test_id", t.selected.ID)
		t.data.SetDraft("test_name", t.selected.Label)
		t.data.Step = "choose_time"
		return e.send(t.session.Phone, fmt.Sprintf("🧪 When should we schedule your *%s*? Try *tomorrow 9am*.", t.selected.Label))

	case "choose_time":
		when, ok := ParseDateTime(t.text, time.Now())
		if !ok {
			return e.send(t.session.Phone, "⚠️ I couldn't read that time. Try *tomorrow 9am* or *2026-09-03 09:00*.")
		}
		if when.Before(time.Now()) {
			return e.send(t.session.Phone, "⚠️ That time is in the past. When should we book instead?")
		}
		t.data.SetDraft("time", when.Format(DateTimeLayout))
		t.data.Step = "confirm"
		return e.sendButtons(t.session.Phone,
			fmt.Sprintf("🧪 Book *%s* for *%s*?", t.data.Draft["test_name"], when.Format("Mon 2 Jan, 3:04 PM")),
			yesNoButtons())

	case "confirm":
		switch parseYesNo(t.text) {
		case "yes":
			return e.completeDiagnostics(t)
		case "no":
			t.data.ClearFlow()
			t.data.ClearCursors()
			return e.send(t.session.Phone, "🛑 No problem, nothing was booked. Reply *5* to start again.")
		default:
			return e.sendButtons(t.session.Phone, "⚠️ Shall I book it?", yesNoButtons())
		}

	default:
		t.data.ClearFlow()
		return e.send(t.session.Phone, "🤔 Booking got confused, let's start over. Reply *book test*.")
	}
}

// completeDiagnostics is the diagnostics flow's terminal step.
func (e *Engine) completeDiagnostics(t *turn) error {
	when, err := time.ParseInLocation(DateTimeLayout, t.data.Draft["time"], time.Local)
	if err != nil {
		t.data.Step = "choose_time"
		return e.send(t.session.Phone, "⚠️ The chosen time went missing, please give it again.")
	}

	booking := &models.LabBooking{
		UserID:      t.session.UserID,
		Phone:       t.session.Phone,
		TestID:      t.data.Draft["test_id"],
		TestName:    t.data.Draft["test_name"],
		ScheduledAt: when,
		Status:      models.LabBookingStatusConfirmed,
	}
	if err := e.store.CreateLabBooking(booking); err != nil {
		return fmt.Errorf("create lab booking: %w", err)
	}

	t.data.ClearFlow()
	t.data.ClearCursors()

	return e.send(t.session.Phone, fmt.Sprintf(
		"✅ Booked! Your *%s* is scheduled for *%s*.\nReference: %s",
		booking.TestName, when.Format("Mon 2 Jan, 3:04 PM"), booking.BookingID))
}

// --- shared helpers ---

func yesNoButtons() []Button {
	return []Button{
		{Label: "Yes", Payload: "confirm:yes"},
		{Label: "No", Payload: "confirm:no"},
	}
}

func parseYesNo(text string) string {
	switch normalizeText(text) {
	case "yes", "y", "confirm:yes", "confirm", "yeah", "yep", "ok", "okay", "1":
		return "yes"
	case "no", "n", "confirm:no", "cancel", "nope", "2":
		return "no"
	}
	return ""
}

func parsePaymentChoice(text string) (string, bool) {
	msg := normalizeText(text)
	switch msg {
	case "pay:online", "1":
		return "online", true
	case "pay:cod", "2":
		return "cod", true
	}
	if strings.Contains(msg, "online") || strings.Contains(msg, "card") || strings.Contains(msg, "transfer") {
		return "online", true
	}
	if strings.Contains(msg, "cash") || strings.Contains(msg, "delivery") || strings.Contains(msg, "cod") {
		return "cod", true
	}
	return "", false
}

func paymentLabel(method string) string {
	if method == "online" {
		return "Pay online"
	}
	return "Cash on delivery"
}
