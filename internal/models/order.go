package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"gorm.io/gorm"
)

// Order statuses. An order is created as "processing" before the external
// backend call so retries update the same record instead of duplicating it.
const (
	OrderStatusProcessing = "processing"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusPaid       = "paid"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Payment statuses mirrored onto the order.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusCOD       = "cash_on_delivery"
)

// Order is a checkout result. OrderRef is the customer-facing reference in
// the medlane-<number>-<timestamp> format that the entity extractor parses.
type Order struct {
	gorm.Model
	OrderRef      string      `json:"order_ref" gorm:"uniqueIndex"`
	UserID        string      `json:"user_id" gorm:"index"`
	Phone         string      `json:"phone"`
	Items         []OrderItem `json:"items" gorm:"foreignKey:OrderRef;references:OrderRef"`
	Total         float64     `json:"total"`
	Address       string      `json:"address"`
	Status        string      `json:"status" gorm:"default:'processing'"`
	PaymentStatus string      `json:"payment_status" gorm:"default:'pending'"`
	PaymentRef    string      `json:"payment_ref"`
	PaymentLink   string      `json:"payment_link"`
	PaidAt        *time.Time  `json:"paid_at"`
	DeliveredAt   *time.Time  `json:"delivered_at"`
}

// OrderItem is one frozen product line inside an order.
type OrderItem struct {
	gorm.Model
	OrderRef  string  `json:"order_ref" gorm:"index"`
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// BeforeCreate generates the customer-facing order reference.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.OrderRef == "" {
		o.OrderRef = NewOrderRef()
	}
	return nil
}

// NewOrderRef builds a medlane-<number>-<timestamp> reference. The numeric
// segment is random so references are not guessable from each other.
func NewOrderRef() string {
	max := big.NewInt(99999)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		n = big.NewInt(time.Now().UnixNano() % 99999)
	}
	return fmt.Sprintf("medlane-%05d-%d", n.Int64()+1, time.Now().Unix())
}
