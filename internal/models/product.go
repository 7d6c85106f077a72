package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Product categories rendered as separate listings in chat.
const (
	CategoryMedicine   = "medicine"
	CategoryHealthcare = "healthcare"
)

// Product is the locally persisted catalog entry. The remote catalog API is
// authoritative when reachable; these rows double as the offline fallback.
type Product struct {
	gorm.Model
	ProductID            string  `json:"product_id" gorm:"uniqueIndex"`
	Name                 string  `json:"name" gorm:"index"`
	Description          string  `json:"description"`
	Category             string  `json:"category" gorm:"index;default:'medicine'"`
	Price                float64 `json:"price"`
	RequiresPrescription bool    `json:"requires_prescription" gorm:"default:false"`
	InStock              bool    `json:"in_stock" gorm:"default:true"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ProductID == "" {
		p.ProductID = fmt.Sprintf("MED%d%03d", time.Now().Unix(), time.Now().Nanosecond()%1000)
	}
	return nil
}

// CartItem is one product line in a user's cart.
type CartItem struct {
	gorm.Model
	UserID    string  `json:"user_id" gorm:"index"`
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity" gorm:"default:1"`
}

// LineTotal returns the cart line subtotal.
func (c *CartItem) LineTotal() float64 {
	return c.UnitPrice * float64(c.Quantity)
}
