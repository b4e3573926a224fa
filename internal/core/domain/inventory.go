package domain

import "time"

type Inventory struct {
	ProductID        string    `json:"product_id"`
	QuantityOnHand   int64     `json:"quantity_on_hand"`
	QuantityReserved int64     `json:"quantity_reserved"`
	ReorderLevel     int64     `json:"reorder_level"`
	ReorderQuantity  int64     `json:"reorder_quantity"`
	Version          int64     `json:"version"` // optimistic locking
	UpdatedAt        time.Time `json:"updated_at"`
}

// QuantityAvailable is on-hand stock minus reservations. Stock mutations
// reject any change that would drive this below zero.
func (i Inventory) QuantityAvailable() int64 {
	return i.QuantityOnHand - i.QuantityReserved
}
