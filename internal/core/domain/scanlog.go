package domain

import (
	"time"

	"github.com/google/uuid"
)

type ScanType string

const (
	ScanTypeLookup  ScanType = "lookup"
	ScanTypeAdd     ScanType = "add"
	ScanTypeReceive ScanType = "receive"
	ScanTypeCount   ScanType = "count"
)

// ScanOrigin identifies where a scan came from and who performed it.
type ScanOrigin struct {
	DeviceID string `json:"device_id"`
	Location string `json:"location"`
	Actor    string `json:"actor"`
}

// ScanEvent is the closed set of journaled scan outcomes. Each variant
// carries only the fields meaningful to its scan type.
type ScanEvent interface {
	Type() ScanType
	scanEvent()
}

// LookupEvent records a resolution attempt. ProductID is nil when no
// product matched the scanned barcode; failed lookups are journaled too.
type LookupEvent struct {
	Decoded   DecodedBarcode
	ProductID *string
	Origin    ScanOrigin
}

func (LookupEvent) Type() ScanType { return ScanTypeLookup }
func (LookupEvent) scanEvent()     {}

// AddEvent records a quick-add stock mutation.
type AddEvent struct {
	Decoded   DecodedBarcode
	ProductID string
	Quantity  int64
	Origin    ScanOrigin
}

func (AddEvent) Type() ScanType { return ScanTypeAdd }
func (AddEvent) scanEvent()     {}

// ReceiveEvent records stock received from a supplier.
type ReceiveEvent struct {
	Decoded    DecodedBarcode
	ProductID  string
	Quantity   int64
	SupplierID string
	Origin     ScanOrigin
}

func (ReceiveEvent) Type() ScanType { return ScanTypeReceive }
func (ReceiveEvent) scanEvent()     {}

// CountEvent records an observed physical count without mutating stock.
type CountEvent struct {
	Decoded   DecodedBarcode
	ProductID *string
	Counted   int64
	Origin    ScanOrigin
}

func (CountEvent) Type() ScanType { return ScanTypeCount }
func (CountEvent) scanEvent()     {}

// ScanLogEntry is the append-only audit record persisted for every scan
// attempt, including failed lookups. Never mutated after creation.
type ScanLogEntry struct {
	ID                string        `json:"id"`
	ProductID         *string       `json:"product_id"`
	RawBarcode        string        `json:"raw_barcode"`
	NormalizedBarcode string        `json:"normalized_barcode"`
	Format            BarcodeFormat `json:"format"`
	ScanType          ScanType      `json:"scan_type"`
	QuantityDelta     int64         `json:"quantity_delta"`
	SupplierID        string        `json:"supplier_id"`
	DeviceID          string        `json:"device_id"`
	Location          string        `json:"location"`
	Actor             string        `json:"actor"`
	CreatedAt         time.Time     `json:"created_at"`
}

// NewScanLogEntry flattens a scan event into its audit record.
func NewScanLogEntry(ev ScanEvent, now time.Time) ScanLogEntry {
	entry := ScanLogEntry{
		ID:        uuid.New().String(),
		ScanType:  ev.Type(),
		CreatedAt: now,
	}

	fill := func(d DecodedBarcode, o ScanOrigin) {
		entry.RawBarcode = d.Raw
		entry.NormalizedBarcode = d.Normalized
		entry.Format = d.Format
		entry.DeviceID = o.DeviceID
		entry.Location = o.Location
		entry.Actor = o.Actor
	}

	switch v := ev.(type) {
	case LookupEvent:
		fill(v.Decoded, v.Origin)
		entry.ProductID = v.ProductID
	case AddEvent:
		fill(v.Decoded, v.Origin)
		entry.ProductID = &v.ProductID
		entry.QuantityDelta = v.Quantity
	case ReceiveEvent:
		fill(v.Decoded, v.Origin)
		entry.ProductID = &v.ProductID
		entry.QuantityDelta = v.Quantity
		entry.SupplierID = v.SupplierID
	case CountEvent:
		fill(v.Decoded, v.Origin)
		entry.ProductID = v.ProductID
		entry.QuantityDelta = v.Counted
	}

	return entry
}
