package services

import (
	"fmt"
	"log"

	"github.com/resend/resend-go/v2"

	"github.com/medlane-ng/medlane-backend/internal/config"
	"github.com/medlane-ng/medlane-backend/internal/models"
)

// EmailService sends transactional mail through Resend. Every send is
// best-effort: failures are logged and the conversation carries on.
type EmailService struct {
	client *resend.Client
	cfg    config.EmailConfig
}

// NewEmailService builds the mail sender. With no API key configured it
// stays in log-only mode.
func NewEmailService(cfg config.EmailConfig) *EmailService {
	var client *resend.Client
	if cfg.ResendAPIKey != "" {
		client = resend.NewClient(cfg.ResendAPIKey)
	} else {
		log.Println("⚠️  RESEND_API_KEY not set - emails will be logged only")
	}
	return &EmailService{client: client, cfg: cfg}
}

// SendWelcome greets a freshly registered user.
func (e *EmailService) SendWelcome(user *models.User) {
	subject := "Welcome to Medlane 💊"
	html := fmt.Sprintf(
		`<h2>Hi %s,</h2>
		<p>Your Medlane account is ready. Message us on WhatsApp any time to
		order medicines, book doctors and lab tests, or track deliveries.</p>
		<p>Stay healthy,<br>The Medlane team</p>`, user.Name)
	e.send(user.Email, subject, html)
}

// SendReceipt mails the order summary after checkout.
func (e *EmailService) SendReceipt(user *models.User, order *models.Order) {
	subject := fmt.Sprintf("Your Medlane order %s", order.OrderRef)
	items := ""
	for _, item := range order.Items {
		items += fmt.Sprintf("<li>%s x%d - ₦%.2f</li>", item.Name, item.Quantity, item.UnitPrice*float64(item.Quantity))
	}
	html := fmt.Sprintf(
		`<h2>Thanks for your order, %s!</h2>
		<p>Reference: <b>%s</b></p>
		<ul>%s</ul>
		<p>Total: <b>₦%.2f</b><br>Delivery to: %s</p>`,
		user.Name, order.OrderRef, items, order.Total, order.Address)
	e.send(user.Email, subject, html)
}

// SendPasswordReset mails a reset link carrying the one-time token.
func (e *EmailService) SendPasswordReset(email, token string) {
	subject := "Reset your Medlane password"
	html := fmt.Sprintf(
		`<p>Someone asked to reset the password for this address.</p>
		<p><a href="%s?token=%s">Click here to choose a new password.</a></p>
		<p>If this wasn't you, you can ignore this email.</p>`,
		e.cfg.ResetURL, token)
	e.send(email, subject, html)
}

func (e *EmailService) send(to, subject, html string) {
	if e.client == nil {
		log.Printf("📧 (not sent) %q to %s", subject, to)
		return
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", e.cfg.FromName, e.cfg.FromEmail),
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}
	sent, err := e.client.Emails.Send(params)
	if err != nil {
		log.Printf("❌ Failed to send %q to %s: %v", subject, to, err)
		return
	}
	log.Printf("📧 Email %q sent to %s (id %s)", subject, to, sent.Id)
}
