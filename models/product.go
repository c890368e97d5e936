package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            uint64             `gorm:"primaryKey" json:"id"`
	Name          string             `gorm:"size:255;not null" json:"name"`
	Price         decimal.Decimal    `gorm:"type:decimal(10,2);not null" json:"price"`
	StockQuantity *int               `json:"stock_quantity,omitempty"`
	CategoryID    *uint64            `gorm:"index" json:"category_id,omitempty"`
	Gender        string             `gorm:"size:20" json:"gender"`
	Color         string             `gorm:"size:100" json:"color"`
	Sizes         string             `gorm:"size:255" json:"sizes"` // display only
	ImageURL      string             `gorm:"size:500" json:"image_url"`
	SizeStocks    []ProductSizeStock `json:"size_stocks,omitempty"`
	Campaigns     []Campaign         `json:"campaigns,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

type ProductSizeStock struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	ProductID uint64    `gorm:"not null;uniqueIndex:idx_product_size" json:"product_id"`
	Size      string    `gorm:"size:20;not null;uniqueIndex:idx_product_size" json:"size"`
	Quantity  int       `gorm:"not null;default:0;check:quantity >= 0" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Campaign struct {
	ID        uint64          `gorm:"primaryKey" json:"id"`
	ProductID uint64          `gorm:"not null;index" json:"product_id"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	IsActive  bool            `gorm:"not null;default:true" json:"is_active"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// EffectiveAt reports whether the campaign price applies at t.
func (c Campaign) EffectiveAt(t time.Time) bool {
	return c.IsActive && !t.Before(c.StartDate) && !t.After(c.EndDate)
}

// StockModel is either FlatStock or SizedStock.
type StockModel interface {
	stockModel()
}

type FlatStock struct {
	Quantity int
}

type SizedStock struct {
	Quantities map[string]int
}

func (FlatStock) stockModel()  {}
func (SizedStock) stockModel() {}

// AvailableSizes returns the tracked sizes in a stable order.
func (s SizedStock) AvailableSizes() []string {
	sizes := make([]string, 0, len(s.Quantities))
	for size := range s.Quantities {
		sizes = append(sizes, size)
	}
	sort.Strings(sizes)
	return sizes
}

// Stock derives the tracking mode from the loaded size rows. A product with
// at least one size row is tracked per size; the flat counter is ignored.
func (p *Product) Stock() StockModel {
	if len(p.SizeStocks) > 0 {
		quantities := make(map[string]int, len(p.SizeStocks))
		for _, s := range p.SizeStocks {
			quantities[s.Size] = s.Quantity
		}
		return SizedStock{Quantities: quantities}
	}

	qty := 0
	if p.StockQuantity != nil {
		qty = *p.StockQuantity
	}
	return FlatStock{Quantity: qty}
}

type StockMovement struct {
	ID             uint64    `gorm:"primaryKey" json:"id"`
	ProductID      uint64    `gorm:"not null;index" json:"product_id"`
	Size           string    `gorm:"size:20" json:"size,omitempty"`
	QuantityChange int       `gorm:"not null" json:"quantity_change"`
	QuantityBefore int       `gorm:"not null" json:"quantity_before"`
	QuantityAfter  int       `gorm:"not null" json:"quantity_after"`
	OrderNumber    string    `gorm:"size:32;index" json:"order_number"`
	CreatedAt      time.Time `json:"created_at"`
}
