package port

import (
	"context"
	"errors"

	"github.com/scanops/scanstock/internal/core/domain"
)

var (
	// ErrNotFound is returned by updates against a missing row.
	// Find methods return (nil, nil) for an absent row instead.
	ErrNotFound = errors.New("store: not found")

	// ErrOptimisticLock is returned when a versioned write lost the race
	// against a concurrent writer.
	ErrOptimisticLock = errors.New("store: optimistic lock conflict")

	// ErrStoreUnavailable wraps transient backend failures; callers may
	// retry with backoff.
	ErrStoreUnavailable = errors.New("store: unavailable")
)

type ProductRepository interface {
	// FindByBarcode retrieves a product (with its inventory) by
	// normalized barcode. Returns (nil, nil) when absent.
	FindByBarcode(ctx context.Context, barcode string) (*domain.Product, error)

	// FindBySKU retrieves a product by SKU. Returns (nil, nil) when absent.
	FindBySKU(ctx context.Context, sku string) (*domain.Product, error)

	// FindByID retrieves a product by ID. Returns (nil, nil) when absent.
	FindByID(ctx context.Context, id string) (*domain.Product, error)

	// Create persists a new product and its inventory record.
	Create(ctx context.Context, product *domain.Product) error

	// Update persists descriptive/monetary/active changes. The barcode
	// is immutable and never written.
	Update(ctx context.Context, product *domain.Product) error

	// CountActive returns the number of active products.
	CountActive(ctx context.Context) (int64, error)

	// SearchByTerm matches name, barcode or SKU against term.
	SearchByTerm(ctx context.Context, term string, limit int) ([]domain.Product, error)

	// FindLowStock returns active products at or below their reorder level.
	FindLowStock(ctx context.Context) ([]domain.Product, error)

	// SaveInventory writes the inventory counters with a version check;
	// a stale version yields ErrOptimisticLock. This is the sole write
	// path for stock counters.
	SaveInventory(ctx context.Context, inventory domain.Inventory) error
}

// ScanLogRepository is the audit sink for scan attempts.
type ScanLogRepository interface {
	// AppendScanLog persists one append-only audit record.
	AppendScanLog(ctx context.Context, entry domain.ScanLogEntry) error
}
