package services

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/medlane-ng/medlane-backend/internal/config"
)

// Button is one quick-reply option. WhatsApp caps a message at 3.
type Button struct {
	Label   string
	Payload string
}

// ListRow is one entry of a sectioned list picker.
type ListRow struct {
	ID          string
	Title       string
	Description string
}

// ListSection groups rows under a heading.
type ListSection struct {
	Title string
	Rows  []ListRow
}

// Messenger is the outbound side of the conversation. The Twilio
// implementation is used in production; tests substitute a recorder.
type Messenger interface {
	SendText(to, body string) error
	SendButtons(to, body string, buttons []Button) error
	SendList(to, body string, sections []ListSection) error
	RequestLocation(to, body string) error
	MarkAsRead(messageSID string) error
}

// TwilioMessenger sends WhatsApp messages through the Twilio API. Interactive
// messages use content templates when the SIDs are configured and degrade to
// numbered plain text when they are not.
type TwilioMessenger struct {
	client *twilio.RestClient
	cfg    config.TwilioConfig
}

// NewTwilioMessenger builds the messenger with the configured send timeout.
func NewTwilioMessenger(cfg config.TwilioConfig) (*TwilioMessenger, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.WhatsAppFrom == "" {
		return nil, fmt.Errorf("missing Twilio credentials")
	}

	base := &twilioClient.Client{
		Credentials: twilioClient.NewCredentials(cfg.AccountSID, cfg.AuthToken),
	}
	base.SetTimeout(cfg.SendTimeout)
	base.SetAccountSid(cfg.AccountSID)

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
		Client:   base,
	})

	return &TwilioMessenger{client: client, cfg: cfg}, nil
}

// SendText sends a plain WhatsApp text message.
func (t *TwilioMessenger) SendText(to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.cfg.WhatsAppFrom)
	params.SetTo(whatsappAddr(to))
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		log.Printf("❌ Failed to send WhatsApp message to %s: %v", to, err)
		return err
	}
	log.Printf("✅ WhatsApp message sent to %s, SID: %s", to, deref(resp.Sid))
	return nil
}

// SendButtons sends up to 3 quick-reply buttons via the configured content
// template, falling back to a numbered text menu without one.
func (t *TwilioMessenger) SendButtons(to, body string, buttons []Button) error {
	if len(buttons) > 3 {
		log.Printf("⚠️  Truncating %d buttons to 3 for %s", len(buttons), to)
		buttons = buttons[:3]
	}

	if t.cfg.ButtonsContentSID == "" {
		return t.SendText(to, renderButtonsText(body, buttons))
	}

	variables := map[string]string{"1": body}
	for i, b := range buttons {
		variables[strconv.Itoa(i+2)] = b.Label
		variables["payload"+strconv.Itoa(i+1)] = b.Payload
	}
	variablesJSON, err := json.Marshal(variables)
	if err != nil {
		return fmt.Errorf("marshal content variables: %w", err)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.cfg.WhatsAppFrom)
	params.SetTo(whatsappAddr(to))
	params.SetContentSid(t.cfg.ButtonsContentSID)
	params.SetContentVariables(string(variablesJSON))

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		log.Printf("❌ Button template failed for %s, falling back to text: %v", to, err)
		return t.SendText(to, renderButtonsText(body, buttons))
	}
	log.Printf("✅ Buttons sent to %s, SID: %s", to, deref(resp.Sid))
	return nil
}

// SendList sends a sectioned list picker, degrading to text when no list
// template is configured.
func (t *TwilioMessenger) SendList(to, body string, sections []ListSection) error {
	if t.cfg.ListContentSID == "" {
		return t.SendText(to, renderListText(body, sections))
	}

	variables := map[string]string{"1": body}
	row := 2
	for _, section := range sections {
		for _, r := range section.Rows {
			variables[strconv.Itoa(row)] = r.Title
			row++
		}
	}
	variablesJSON, err := json.Marshal(variables)
	if err != nil {
		return fmt.Errorf("marshal content variables: %w", err)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.cfg.WhatsAppFrom)
	params.SetTo(whatsappAddr(to))
	params.SetContentSid(t.cfg.ListContentSID)
	params.SetContentVariables(string(variablesJSON))

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		log.Printf("❌ List template failed for %s, falling back to text: %v", to, err)
		return t.SendText(to, renderListText(body, sections))
	}
	log.Printf("✅ List sent to %s, SID: %s", to, deref(resp.Sid))
	return nil
}

// RequestLocation asks the user to share a location. WhatsApp renders this
// as a share-location prompt when templated; the text fallback explains the
// manual path.
func (t *TwilioMessenger) RequestLocation(to, body string) error {
	return t.SendText(to, body+"\n\n📍 Tap the attach icon and choose *Location* to share where you are.")
}

// MarkAsRead acknowledges an inbound message so the sender sees the read
// receipt.
func (t *TwilioMessenger) MarkAsRead(messageSID string) error {
	if messageSID == "" {
		return nil
	}
	params := &twilioApi.UpdateMessageParams{}
	params.SetStatus("read")
	if _, err := t.client.Api.UpdateMessage(messageSID, params); err != nil {
		log.Printf("⚠️  Failed to mark %s as read: %v", messageSID, err)
		return err
	}
	return nil
}

func whatsappAddr(to string) string {
	if strings.HasPrefix(to, "whatsapp:") {
		return to
	}
	return "whatsapp:" + to
}

func renderButtonsText(body string, buttons []Button) string {
	var sb strings.Builder
	sb.WriteString(body)
	sb.WriteString("\n")
	for i, b := range buttons {
		fmt.Fprintf(&sb, "\n%d️⃣ %s", i+1, b.Label)
	}
	sb.WriteString("\n\nReply with the number of your choice.")
	return sb.String()
}

func renderListText(body string, sections []ListSection) string {
	var sb strings.Builder
	sb.WriteString(body)
	n := 1
	for _, section := range sections {
		if section.Title != "" {
			fmt.Fprintf(&sb, "\n\n*%s*", section.Title)
		}
		for _, r := range section.Rows {
			fmt.Fprintf(&sb, "\n%d. %s", n, r.Title)
			if r.Description != "" {
				fmt.Fprintf(&sb, " — %s", r.Description)
			}
			n++
		}
	}
	sb.WriteString("\n\nReply with the number of your choice.")
	return sb.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
