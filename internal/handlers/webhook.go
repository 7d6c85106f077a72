package handlers

import (
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/medlane-ng/medlane-backend/internal/services"
)

// WebhookHandler receives inbound WhatsApp deliveries from Twilio.
type WebhookHandler struct {
	engine    *services.Engine
	messenger services.Messenger
}

func NewWebhookHandler(engine *services.Engine, messenger services.Messenger) *WebhookHandler {
	return &WebhookHandler{engine: engine, messenger: messenger}
}

// twilioWebhookPayload is the form body Twilio posts for WhatsApp messages.
type twilioWebhookPayload struct {
	MessageSid        string `form:"MessageSid"`
	From              string `form:"From"` // whatsapp:+2348012345678
	To                string `form:"To"`
	Body              string `form:"Body"`
	NumMedia          string `form:"NumMedia"`
	MediaUrl0         string `form:"MediaUrl0"`
	MediaContentType0 string `form:"MediaContentType0"`
	ButtonPayload     string `form:"ButtonPayload"`
	ButtonText        string `form:"ButtonText"`
	ListId            string `form:"ListId"`
	Latitude          string `form:"Latitude"`
	Longitude         string `form:"Longitude"`
	MessageStatus     string `form:"MessageStatus"` // present on status callbacks only
}

// HandleWebhook normalizes the delivery and hands it to the engine. The
// acknowledgment is always 200 for parseable deliveries: a failed turn must
// not trigger Twilio's retry storm or disable the webhook.
func (h *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload twilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid webhook payload"})
	}

	// Status callbacks carry no message to process
	if payload.MessageStatus != "" || payload.From == "" {
		return c.SendStatus(fiber.StatusOK)
	}

	event := toInboundEvent(&payload)
	log.Printf("📱 %s message from %s: %q", event.Type, event.From, event.Text)

	// Read receipt before processing so the user sees we got it
	if err := h.messenger.MarkAsRead(event.MessageSID); err != nil {
		log.Printf("⚠️  mark-as-read failed for %s: %v", event.MessageSID, err)
	}

	h.engine.HandleEvent(event)

	return c.SendStatus(fiber.StatusOK)
}

// toInboundEvent maps the raw Twilio form fields onto the engine's event.
func toInboundEvent(p *twilioWebhookPayload) *services.InboundEvent {
	event := &services.InboundEvent{
		MessageSID: p.MessageSid,
		From:       strings.TrimPrefix(p.From, "whatsapp:"),
		Type:       services.EventText,
		Text:       p.Body,
	}

	switch {
	case p.ButtonPayload != "" || p.ListId != "":
		event.Type = services.EventButton
		event.ButtonPayload = p.ButtonPayload
		if event.ButtonPayload == "" {
			event.ButtonPayload = p.ListId
		}
		if event.Text == "" {
			event.Text = p.ButtonText
		}

	case p.Latitude != "" && p.Longitude != "":
		event.Type = services.EventLocation
		event.Latitude, _ = strconv.ParseFloat(p.Latitude, 64)
		event.Longitude, _ = strconv.ParseFloat(p.Longitude, 64)

	case p.NumMedia != "" && p.NumMedia != "0":
		event.MediaURL = p.MediaUrl0
		event.MediaContentType = p.MediaContentType0
		switch {
		case strings.HasPrefix(p.MediaContentType0, "image/"):
			event.Type = services.EventImage
		case strings.HasPrefix(p.MediaContentType0, "audio/"):
			event.Type = services.EventAudio
		default:
			event.Type = services.EventDocument
		}
	}

	return event
}
