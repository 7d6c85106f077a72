package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/medlane-ng/medlane-backend/internal/config"
	"github.com/medlane-ng/medlane-backend/internal/models"
	"github.com/medlane-ng/medlane-backend/internal/storage"
	"github.com/medlane-ng/medlane-backend/internal/utils"
)

// PaymentService creates payment links for online checkout and settles
// orders when the provider's webhook confirms payment.
type PaymentService struct {
	store     storage.Store
	messenger Messenger
	cfg       config.PaymentConfig
	client    *http.Client
}

func NewPaymentService(store storage.Store, messenger Messenger, cfg config.PaymentConfig) *PaymentService {
	return &PaymentService{
		store:     store,
		messenger: messenger,
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.APITimeout},
	}
}

// CreatePaymentLink asks the provider for a hosted payment page for the
// order. Without a configured provider the order falls back to
// cash-on-delivery so checkout still completes.
func (p *PaymentService) CreatePaymentLink(order *models.Order) (string, error) {
	if p.cfg.BaseURL == "" || p.cfg.APIKey == "" {
		return "", fmt.Errorf("payment provider not configured")
	}

	order.PaymentRef = utils.NewPaymentRef()
	payload, err := json.Marshal(map[string]interface{}{
		"reference": order.PaymentRef,
		"amount":    order.Total,
		"currency":  "NGN",
		"metadata":  map[string]string{"order_ref": order.OrderRef},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, p.cfg.BaseURL+"/links", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("payment link request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("payment provider returned %d", resp.StatusCode)
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode payment link response: %w", err)
	}

	order.PaymentLink = result.URL
	if err := p.store.SaveOrder(order); err != nil {
		return "", err
	}
	return result.URL, nil
}

// WebhookEvent is the provider's payment notification payload.
type WebhookEvent struct {
	Event     string `json:"event"`
	Reference string `json:"reference"`
	Amount    float64 `json:"amount"`
}

// ProcessWebhook settles the order referenced by a confirmed payment and
// tells the customer on WhatsApp. Unknown events are ignored.
func (p *PaymentService) ProcessWebhook(body []byte) error {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("parse payment webhook: %w", err)
	}

	switch event.Event {
	case "payment.completed":
		return p.settle(event, models.PaymentStatusCompleted)
	case "payment.failed":
		return p.settle(event, models.PaymentStatusFailed)
	default:
		log.Printf("Ignoring payment webhook event %q", event.Event)
		return nil
	}
}

func (p *PaymentService) settle(event WebhookEvent, status string) error {
	order, err := p.store.GetOrderByPaymentRef(event.Reference)
	if err != nil {
		return fmt.Errorf("order for payment %s: %w", event.Reference, err)
	}

	order.PaymentStatus = status
	if status == models.PaymentStatusCompleted {
		now := time.Now()
		order.PaidAt = &now
		order.Status = models.OrderStatusPaid
	}
	if err := p.store.SaveOrder(order); err != nil {
		return fmt.Errorf("save order %s: %w", order.OrderRef, err)
	}

	if p.messenger != nil {
		msg := fmt.Sprintf("✅ Payment received for order *%s*. We're preparing your delivery!", order.OrderRef)
		if status == models.PaymentStatusFailed {
			msg = fmt.Sprintf("❌ Payment for order *%s* failed. You can retry from the payment link or choose cash on delivery.", order.OrderRef)
		}
		if err := p.messenger.SendText(order.Phone, msg); err != nil {
			log.Printf("⚠️  Could not notify %s about payment: %v", order.Phone, err)
		}
	}
	return nil
}
