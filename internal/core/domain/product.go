package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string           `json:"id"`
	Barcode     string           `json:"barcode"` // normalized, unique, immutable after creation
	SKU         *string          `json:"sku"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	CategoryID  string           `json:"category_id"`
	PriceUSD    *decimal.Decimal `json:"price_usd"`
	CostUSD     *decimal.Decimal `json:"cost_usd"`
	Inventory   *Inventory       `json:"inventory"`
	Active      bool             `json:"active"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
