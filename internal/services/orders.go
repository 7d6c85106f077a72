package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/medlane-ng/medlane-backend/internal/config"
	"github.com/medlane-ng/medlane-backend/internal/models"
	"github.com/medlane-ng/medlane-backend/internal/storage"
)

// OrderService creates and tracks orders. An order is written locally with
// status "processing" before the external fulfilment backend is called, so
// retries update that record instead of creating duplicates, and a backend
// outage degrades to a locally confirmed order.
type OrderService struct {
	store  storage.Store
	cfg    config.CatalogConfig
	retry  config.RetryConfig
	client *http.Client
}

func NewOrderService(store storage.Store, cfg config.CatalogConfig, retry config.RetryConfig) *OrderService {
	return &OrderService{
		store:  store,
		cfg:    cfg,
		retry:  retry,
		client: &http.Client{Timeout: cfg.APITimeout},
	}
}

// PlaceOrder freezes the cart into an order and syncs it to the fulfilment
// backend. The returned order is always usable: on sync failure it stays
// local with status confirmed and the failure is logged.
func (o *OrderService) PlaceOrder(user *models.User, items []models.CartItem, address, paymentStatus string) (*models.Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("cart is empty")
	}

	order := &models.Order{
		UserID:        user.UserID,
		Phone:         user.Phone,
		Address:       address,
		Status:        models.OrderStatusProcessing,
		PaymentStatus: paymentStatus,
	}
	for _, item := range items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
		order.Total += item.LineTotal()
	}

	// Pre-create the processing record; the external sync is idempotent on
	// OrderRef from here on
	if err := o.store.CreateOrder(order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := o.syncToBackend(order); err != nil {
		log.Printf("⚠️  Order %s not synced to fulfilment backend, keeping local: %v", order.OrderRef, err)
	}

	order.Status = models.OrderStatusConfirmed
	if err := o.store.SaveOrder(order); err != nil {
		return nil, fmt.Errorf("confirm order %s: %w", order.OrderRef, err)
	}
	return order, nil
}

// Track returns an order by its customer-facing reference, accepting both
// the full medlane-xxxxx-ts form and the bare numeric segment.
func (o *OrderService) Track(userID, ref string) (*models.Order, error) {
	order, err := o.store.GetOrderByRef(ref)
	if err == storage.ErrNotFound {
		// A bare numeric reply matches on the middle segment
		orders, lerr := o.store.GetOrdersByUser(userID)
		if lerr != nil {
			return nil, lerr
		}
		for i := range orders {
			if matchesRefSegment(orders[i].OrderRef, ref) {
				return &orders[i], nil
			}
		}
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, storage.ErrNotFound
	}
	return order, nil
}

// History lists the user's orders, newest first per store ordering.
func (o *OrderService) History(userID string) ([]models.Order, error) {
	return o.store.GetOrdersByUser(userID)
}

func matchesRefSegment(orderRef, segment string) bool {
	var n, ts int64
	if _, err := fmt.Sscanf(orderRef, "medlane-%d-%d", &n, &ts); err != nil {
		return false
	}
	return fmt.Sprintf("%05d", n) == segment || fmt.Sprintf("%d", n) == segment
}

// syncToBackend pushes the order to the external fulfilment API with
// exponential backoff and jitter. The backend upserts on order_ref, so a
// retry after a half-applied attempt cannot duplicate the order.
func (o *OrderService) syncToBackend(order *models.Order) error {
	if o.cfg.BaseURL == "" {
		return nil
	}

	body, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	return withBackoff(o.retry, fmt.Sprintf("sync order %s", order.OrderRef), func() error {
		resp, err := o.client.Post(o.cfg.BaseURL+"/orders", "application/json", bytes.NewReader(body))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("fulfilment API returned %d", resp.StatusCode)
		}
		return nil
	})
}

// withBackoff retries fn with exponentially growing, jittered delays.
func withBackoff(cfg config.RetryConfig, what string, fn func() error) error {
	delay := cfg.BaseDelay
	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		jitter := time.Duration((rand.Float64()*2 - 1) * cfg.JitterFraction * float64(delay))
		sleep := delay + jitter
		log.Printf("🔁 %s failed (attempt %d/%d), retrying in %s: %v", what, attempt, cfg.MaxAttempts, sleep.Round(time.Millisecond), err)
		time.Sleep(sleep)
		delay = time.Duration(float64(delay) * cfg.Multiplier)
	}
	return fmt.Errorf("%s failed after %d attempts: %w", what, cfg.MaxAttempts, err)
}
