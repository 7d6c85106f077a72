package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/medlane-ng/medlane-backend/internal/models"
	"github.com/medlane-ng/medlane-backend/internal/storage"
)

// cursorTitles maps cursor namespaces to the heading rendered above lists.
var cursorTitles = map[string]string{
	CursorProducts:    "Medicines",
	CursorHealthcare:  "Healthcare products",
	CursorCart:        "Your cart",
	CursorDoctors:     "Doctors",
	CursorSpecialties: "Specialties",
	CursorLabTests:    "Lab tests",
}

// renderCursorPage sends the current page of a cursor as an interactive
// list with navigation hints.
func (e *Engine) renderCursorPage(t *turn, namespace string, cursor *PageCursor) error {
	title := cursorTitles[namespace]
	body := fmt.Sprintf("*%s* (page %d of %d)", title, cursor.CurrentPage, cursor.TotalPages)

	rows := make([]ListRow, 0, len(cursor.PageItems()))
	for i, item := range cursor.PageItems() {
		row := ListRow{ID: item.ID, Title: fmt.Sprintf("%d. %s", i+1, item.Label)}
		switch {
		case item.Detail != "" && item.Price > 0:
			row.Description = fmt.Sprintf("%s · ₦%.2f", item.Detail, item.Price)
		case item.Price > 0:
			row.Description = fmt.Sprintf("₦%.2f", item.Price)
		default:
			row.Description = item.Detail
		}
		rows = append(rows, row)
	}

	hint := "Reply with a number to pick one"
	if cursor.TotalPages > 1 {
		hint += ", *next* or *previous* to browse"
	}

	if err := e.messenger.SendList(t.session.Phone, body+"\n\n"+hint, []ListSection{{Title: title, Rows: rows}}); err != nil {
		log.Printf("⚠️  List to %s failed: %v", t.session.Phone, err)
	}
	return nil
}

// showListing stores the cursor as the single authoritative one and renders
// its first page.
func (e *Engine) showListing(t *turn, namespace string, items []PageItem) error {
	cursor := NewPageCursor(items, e.sessions.PageSize())
	t.data.SetCursor(namespace, cursor)
	return e.renderCursorPage(t, namespace, cursor)
}

// handleSearchProducts runs a catalog search. Without a product entity it
// opens the one-step search flow and prompts for the name.
func (e *Engine) handleSearchProducts(t *turn, category string) error {
	query := t.intent.Parameters[EntityProduct]
	if query == "" && category == models.CategoryHealthcare {
		// Browsing healthcare products without a query lists the category
		query = ""
	} else if query == "" {
		t.data.ClearFlow()
		t.data.Flow = FlowSearch
		t.data.Step = "collect_query"
		return e.send(t.session.Phone, "💊 What medicine are you looking for? Type its name, e.g. *paracetamol*.")
	}
	return e.runProductSearch(t, query, category)
}

func (e *Engine) runProductSearch(t *turn, query, category string) error {
	products, err := e.catalog.Search(query, category)
	if err != nil {
		return fmt.Errorf("catalog search %q: %w", query, err)
	}
	if len(products) == 0 {
		return e.send(t.session.Phone, fmt.Sprintf("😕 No results for *%s*. Try a different spelling or a generic name.", query))
	}

	namespace := CursorProducts
	if category == models.CategoryHealthcare {
		namespace = CursorHealthcare
	}
	items := make([]PageItem, 0, len(products))
	for _, p := range products {
		detail := p.Description
		if p.RequiresPrescription {
			detail = strings.TrimSpace("Rx required. " + detail)
		}
		items = append(items, PageItem{ID: p.ProductID, Label: p.Name, Detail: detail, Price: p.Price})
	}
	return e.showListing(t, namespace, items)
}

// handleSelection resolves a pagination selection outside any flow.
func (e *Engine) handleSelection(t *turn) error {
	switch t.namespace {
	case CursorProducts, CursorHealthcare:
		return e.showProductCard(t, t.selected)
	case CursorCart:
		return e.sendButtons(t.session.Phone,
			fmt.Sprintf("*%s* - what would you like to do?", t.selected.Label),
			[]Button{
				{Label: "Remove item", Payload: "remove:" + t.selected.ID},
				{Label: "Checkout", Payload: "intent:checkout"},
			})
	case CursorSpecialties:
		return e.listDoctorsBySpecialty(t, t.selected.ID)
	case CursorDoctors:
		// Picking a doctor outside a flow starts the appointment at the
		// time step with the doctor pre-filled
		t.data.ClearFlow()
		t.data.Flow = FlowAppointment
		t.data.Step = "choose_time"
		t.data.SetDraft("doctor_id", t.selected.ID)
		t.data.SetDraft("doctor_name", t.selected.Label)
		t.data.SetDraft("specialty", t.selected.Detail)
		return e.send(t.session.Phone, fmt.Sprintf("📅 When would you like to see *%s*? Try *tomorrow 2pm* or *next monday 3:30pm*.", t.selected.Label))
	case CursorLabTests:
		t.data.ClearFlow()
		t.data.Flow = FlowDiagnostics
		t.data.Step = "choose_time"
		t.data.SetDraft("test_id", t.selected.ID)
		t.data.SetDraft("test_name", t.selected.Label)
		return e.send(t.session.Phone, fmt.Sprintf("🧪 When should we schedule your *%s*? Try *tomorrow 9am*.", t.selected.Label))
	default:
		return e.handleUnknown(t)
	}
}

func (e *Engine) showProductCard(t *turn, item *PageItem) error {
	body := fmt.Sprintf("*%s*\n₦%.2f", item.Label, item.Price)
	if item.Detail != "" {
		body += "\n" + item.Detail
	}
	return e.sendButtons(t.session.Phone, body, []Button{
		{Label: "Add to cart", Payload: "add:" + item.ID},
		{Label: "View cart", Payload: "intent:view_cart"},
	})
}

func (e *Engine) handleAddToCart(t *turn, productID string) error {
	product, err := e.store.GetProductByID(productID)
	if err != nil {
		if err == storage.ErrNotFound {
			return e.send(t.session.Phone, "😕 That product isn't available anymore. Try searching again.")
		}
		return fmt.Errorf("load product %s: %w", productID, err)
	}

	if product.RequiresPrescription {
		t.data.AwaitingPrescription = true
		return e.send(t.session.Phone, fmt.Sprintf("📋 *%s* needs a prescription. Send a photo of it and a pharmacist will review before we add it to your order.", product.Name))
	}

	item := &models.CartItem{
		UserID:    t.session.UserID,
		ProductID: product.ProductID,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  1,
	}
	if err := e.store.AddCartItem(item); err != nil {
		return fmt.Errorf("add cart item: %w", err)
	}
	return e.sendButtons(t.session.Phone,
		fmt.Sprintf("🛒 *%s* added to your cart.", product.Name),
		[]Button{
			{Label: "View cart", Payload: "intent:view_cart"},
			{Label: "Keep shopping", Payload: "intent:search_products"},
			{Label: "Checkout", Payload: "intent:checkout"},
		})
}

func (e *Engine) handleRemoveFromCart(t *turn, productID string) error {
	if err := e.store.RemoveCartItem(t.session.UserID, productID); err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return e.handleViewCart(t)
}

func (e *Engine) handleViewCart(t *turn) error {
	items, err := e.store.GetCartItems(t.session.UserID)
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	if len(items) == 0 {
		return e.send(t.session.Phone, "🛒 Your cart is empty. Reply *search* to find medicines.")
	}

	total := 0.0
	pageItems := make([]PageItem, 0, len(items))
	for _, item := range items {
		total += item.LineTotal()
		pageItems = append(pageItems, PageItem{
			ID:     item.ProductID,
			Label:  fmt.Sprintf("%s x%d", item.Name, item.Quantity),
			Price:  item.LineTotal(),
		})
	}

	if err := e.showListing(t, CursorCart, pageItems); err != nil {
		return err
	}
	return e.sendButtons(t.session.Phone,
		fmt.Sprintf("Total: *₦%.2f*", total),
		[]Button{
			{Label: "Checkout", Payload: "intent:checkout"},
			{Label: "Keep shopping", Payload: "intent:search_products"},
		})
}

func (e *Engine) handleTrackOrder(t *turn) error {
	ref := t.intent.Parameters[EntityOrderID]
	if ref == "" {
		t.data.ClearFlow()
		t.data.Flow = FlowTrack
		t.data.Step = "collect_ref"
		return e.send(t.session.Phone, "📦 What's your order reference? It looks like *medlane-12345-...* or just the number.")
	}
	return e.replyOrderStatus(t, ref)
}

func (e *Engine) replyOrderStatus(t *turn, ref string) error {
	order, err := e.orders.Track(t.session.UserID, ref)
	if err != nil {
		if err == storage.ErrNotFound {
			return e.send(t.session.Phone, fmt.Sprintf("😕 I couldn't find an order matching *%s* on your account.", ref))
		}
		return fmt.Errorf("track order %s: %w", ref, err)
	}

	msg := fmt.Sprintf("📦 Order *%s*\nStatus: %s\nPayment: %s\nTotal: ₦%.2f\nDelivery to: %s",
		order.OrderRef, order.Status, order.PaymentStatus, order.Total, order.Address)
	if order.PaymentStatus == models.PaymentStatusPending && order.PaymentLink != "" {
		msg += "\n\n💳 Complete your payment: " + order.PaymentLink
	}
	return e.send(t.session.Phone, msg)
}

func (e *Engine) handleOrderHistory(t *turn) error {
	orders, err := e.orders.History(t.session.UserID)
	if err != nil {
		return fmt.Errorf("order history: %w", err)
	}
	if len(orders) == 0 {
		return e.send(t.session.Phone, "🗂 You haven't placed any orders yet.")
	}

	var sb strings.Builder
	sb.WriteString("🗂 *Your recent orders*\n")
	limit := len(orders)
	if limit > 5 {
		limit = 5
	}
	for _, order := range orders[:limit] {
		fmt.Fprintf(&sb, "\n• %s - %s - ₦%.2f", order.OrderRef, order.Status, order.Total)
	}
	sb.WriteString("\n\nReply *track <reference>* for details.")
	return e.send(t.session.Phone, sb.String())
}

func (e *Engine) handleListDoctors(t *turn) error {
	if specialty := t.intent.Parameters[EntitySpecialty]; specialty != "" {
		return e.listDoctorsBySpecialty(t, specialty)
	}
	return e.showSpecialties(t)
}

func (e *Engine) showSpecialties(t *turn) error {
	items := make([]PageItem, 0, len(specialtyVocabulary))
	for _, entry := range specialtyVocabulary {
		items = append(items, PageItem{ID: entry.canonical, Label: titleCase(entry.canonical)})
	}
	return e.showListing(t, CursorSpecialties, items)
}

func (e *Engine) listDoctorsBySpecialty(t *turn, specialty string) error {
	doctors, err := e.store.GetDoctorsBySpecialty(specialty)
	if err != nil {
		return fmt.Errorf("doctors for %s: %w", specialty, err)
	}
	if len(doctors) == 0 {
		return e.send(t.session.Phone, fmt.Sprintf("😕 No %s is available right now. Reply *4* to see other specialties.", specialty))
	}

	items := make([]PageItem, 0, len(doctors))
	for _, d := range doctors {
		items = append(items, PageItem{ID: d.DoctorID, Label: d.Name, Detail: d.Specialty, Price: d.Fee})
	}
	if t.data.Flow == FlowAppointment {
		t.data.Step = "choose_doctor"
	}
	return e.showListing(t, CursorDoctors, items)
}

func (e *Engine) handleUploadPrescription(t *turn) error {
	t.data.AwaitingPrescription = true

	if pending := t.data.PendingAttachment; pending != nil {
		// An earlier unclaimed upload is consumed now
		t.data.PendingAttachment = nil
		return e.storePrescription(t, pending.URL, pending.ContentType)
	}
	return e.send(t.session.Phone, "📋 Please send a clear photo of your prescription. A pharmacist will review it shortly after.")
}

// handleAttachment stores inbound images and documents as prescriptions,
// runs OCR on them and degrades to a manual-review notice when extraction
// fails. Attachments from unauthenticated senders are remembered until they
// log in.
func (e *Engine) handleAttachment(t *turn) error {
	if !e.sessions.IsAuthenticated(t.session) {
		t.data.PendingAttachment = &AttachmentRef{URL: t.event.MediaURL, ContentType: t.event.MediaContentType}
		return e.sendButtons(t.session.Phone,
			"🔒 I've received your file, but you need to be logged in before a pharmacist can review it.",
			[]Button{
				{Label: "Register", Payload: "intent:register"},
				{Label: "Login", Payload: "intent:login"},
			})
	}
	return e.storePrescription(t, t.event.MediaURL, t.event.MediaContentType)
}

func (e *Engine) storePrescription(t *turn, mediaURL, contentType string) error {
	prescription := &models.Prescription{
		UserID:      t.session.UserID,
		Phone:       t.session.Phone,
		MediaURL:    mediaURL,
		ContentType: contentType,
	}

	text, err := e.ocr.ExtractText(context.Background(), mediaURL)
	if err != nil {
		log.Printf("⚠️  OCR failed for %s: %v", t.session.Phone, err)
	}
	prescription.ExtractedText = text

	if err := e.store.CreatePrescription(prescription); err != nil {
		return fmt.Errorf("store prescription: %w", err)
	}
	t.data.AwaitingPrescription = false

	if text == "" {
		return e.send(t.session.Phone, fmt.Sprintf("📋 Got it! Reference *%s*. We couldn't read it automatically, so a pharmacist will review it manually and get back to you.", prescription.PrescriptionID))
	}
	return e.send(t.session.Phone, fmt.Sprintf("📋 Got it! Reference *%s*. Here's what we read:\n\n%s\n\nA pharmacist will confirm before anything is dispensed.", prescription.PrescriptionID, text))
}

// handleLocation fills the checkout address when one is awaited; otherwise
// it just acknowledges the share.
func (e *Engine) handleLocation(t *turn) error {
	if t.data.Flow == FlowCheckout && t.data.Step == "collect_address" {
		address := fmt.Sprintf("Pinned location (%.6f, %.6f)", t.event.Latitude, t.event.Longitude)
		return e.acceptCheckoutAddress(t, address)
	}
	return e.send(t.session.Phone, "📍 Thanks for the location! Share it again during checkout and we'll deliver right there.")
}

// startSupportChat opens (or resumes) a ticket and flips the session into
// support mode.
func (e *Engine) startSupportChat(t *turn) error {
	ticket, err := e.store.GetOpenTicket(t.session.Phone)
	if err == storage.ErrNotFound {
		ticket = &models.SupportTicket{
			UserID:  t.session.UserID,
			Phone:   t.session.Phone,
			Subject: "WhatsApp support chat",
		}
		if err := e.store.CreateTicket(ticket); err != nil {
			return fmt.Errorf("open ticket: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("find open ticket: %w", err)
	}

	t.data.ClearFlow()
	t.data.ClearCursors()
	t.data.TicketID = ticket.TicketID
	t.session.State = models.SessionStateSupportChat

	return e.send(t.session.Phone, fmt.Sprintf("🎧 You're connected to support (ticket *%s*). Type your messages and an agent will reply here.\n\nSay *end chat* when you're done.", ticket.TicketID))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

var endChatPhrases = map[string]bool{"end chat": true, "close": true, "end": true, "done": true}

// handleSupportChat appends each message to the open ticket transcript
// until the user ends the conversation.
func (e *Engine) handleSupportChat(t *turn) error {
	msg := normalizeText(t.text)

	ticket, err := e.store.GetOpenTicket(t.session.Phone)
	if err != nil && err != storage.ErrNotFound {
		return fmt.Errorf("load ticket: %w", err)
	}

	if endChatPhrases[msg] || err == storage.ErrNotFound {
		if ticket != nil {
			now := time.Now()
			ticket.Status = models.TicketStatusResolved
			ticket.ResolvedAt = &now
			if err := e.store.SaveTicket(ticket); err != nil {
				return fmt.Errorf("close ticket: %w", err)
			}
		}
		t.data.TicketID = ""
		t.session.State = models.SessionStateLoggedIn
		return e.send(t.session.Phone, "✅ Support chat ended. "+menuText())
	}

	ticket.AppendLine(t.text)
	if err := e.store.SaveTicket(ticket); err != nil {
		return fmt.Errorf("append to ticket: %w", err)
	}
	return e.send(t.session.Phone, "📨 Passed on to our team. Say *end chat* to leave the conversation.")
}
