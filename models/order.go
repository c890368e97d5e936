package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID               uint64          `gorm:"primaryKey" json:"id"`
	OrderNumber      string          `gorm:"size:32;not null;uniqueIndex" json:"order_number"`
	BatchID          *string         `gorm:"size:36;index" json:"batch_id,omitempty"`
	CustomerFullName string          `gorm:"size:255;not null" json:"customer_full_name"`
	CustomerEmail    string          `gorm:"size:255;not null;index" json:"customer_email"`
	CustomerPhone    string          `gorm:"size:50;not null" json:"customer_phone"`
	CustomerAddress  string          `gorm:"size:500;not null" json:"customer_address"`
	CustomerCity     string          `gorm:"size:100;not null" json:"customer_city"`
	CustomerCountry  Country         `gorm:"size:20;not null" json:"customer_country"`
	ProductID        uint64          `gorm:"not null;index" json:"product_id"`
	ProductName      string          `gorm:"size:255;not null" json:"product_name"`
	ProductPrice     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"product_price"`
	ProductImage     string          `gorm:"size:500" json:"product_image"`
	ProductSize      string          `gorm:"size:20" json:"product_size,omitempty"`
	ProductColor     string          `gorm:"size:100" json:"product_color,omitempty"`
	Quantity         int             `gorm:"not null" json:"quantity"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	ShippingFee      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"shipping_fee"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	Status           OrderStatus     `gorm:"size:20;not null;index" json:"status"`
	Notes            string          `gorm:"type:text" json:"notes,omitempty"`
	ConfirmedAt      *time.Time      `json:"confirmed_at,omitempty"`
	ShippedAt        *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt      *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type Country string

const (
	CountryAlbania   Country = "albania"
	CountryKosovo    Country = "kosovo"
	CountryMacedonia Country = "macedonia"
)

// Customer holds the contact and shipment fields shared by every line of a
// checkout.
type Customer struct {
	FullName string  `json:"customer_full_name" binding:"required,max=255"`
	Email    string  `json:"customer_email" binding:"required,email,max=255"`
	Phone    string  `json:"customer_phone" binding:"required,max=50"`
	Address  string  `json:"customer_address" binding:"required,max=500"`
	City     string  `json:"customer_city" binding:"required,max=100"`
	Country  Country `json:"customer_country" binding:"required,oneof=albania kosovo macedonia"`
}

type CreateOrderRequest struct {
	Customer
	ProductID    uint64           `json:"product_id" binding:"required"`
	ProductPrice *decimal.Decimal `json:"product_price"`
	ProductSize  string           `json:"product_size" binding:"max=20"`
	ProductColor string           `json:"product_color" binding:"max=100"`
	Quantity     int              `json:"quantity" binding:"required,gte=1"`
	ShippingFee  decimal.Decimal  `json:"shipping_fee"`
	BatchID      *string          `json:"batch_id" binding:"omitempty,max=36"`
	Notes        string           `json:"notes" binding:"max=2000"`
}

type CartLine struct {
	ProductID    uint64           `json:"product_id" binding:"required"`
	ProductPrice *decimal.Decimal `json:"product_price"`
	ProductSize  string           `json:"product_size" binding:"max=20"`
	ProductColor string           `json:"product_color" binding:"max=100"`
	Quantity     int              `json:"quantity" binding:"required,gte=1"`
}

type CheckoutRequest struct {
	Customer
	Lines       []CartLine      `json:"lines" binding:"required,min=1,dive"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	BatchID     *string         `json:"batch_id" binding:"omitempty,max=36"`
	Notes       string          `json:"notes" binding:"max=2000"`
}

type UpdateStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
	Notes  string      `json:"notes" binding:"max=2000"`
}

type OrderFilter struct {
	Status   OrderStatus `form:"status"`
	BatchID  string      `form:"batch_id"`
	Email    string      `form:"email"`
	Page     int         `form:"page,default=1" binding:"gte=1"`
	PageSize int         `form:"page_size,default=20" binding:"gte=1,lte=100"`
}

type OrderPage struct {
	Orders   []Order `json:"orders"`
	Total    int64   `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

type OrderEvent struct {
	OrderID     uint64          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	BatchID     string          `json:"batch_id,omitempty"`
	Type        string          `json:"type"` // created, status_updated, batch_completed
	Status      OrderStatus     `json:"status"`
	Total       decimal.Decimal `json:"total"`
	Email       string          `json:"email"`
	Occurred    time.Time       `json:"occurred"`
}

const (
	EventOrderCreated   = "created"
	EventStatusUpdated  = "status_updated"
	EventBatchCompleted = "batch_completed"
)

// LargeOrderThreshold marks totals whose events are published with high
// priority.
var LargeOrderThreshold = decimal.NewFromInt(1000)
