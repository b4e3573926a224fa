package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/scanops/scanstock/internal/core/barcode"
	"github.com/scanops/scanstock/internal/core/domain"
	"github.com/scanops/scanstock/internal/port"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInventoryMissing  = errors.New("product has no inventory record")
)

const (
	// Bound on optimistic-lock retries for one stock mutation. Contention
	// past this is surfaced to the caller as a conflict.
	maxStockRetries = 5

	auditWriteTimeout = 5 * time.Second

	metricTotalScans     = "metrics:total-scans"
	metricScanPrefix     = "metrics:scans:"
	metricScansFailed    = "metrics:scans:failed"
	metricScanLogDropped = "metrics:scanlog-dropped"
	metricScanLogFailed  = "metrics:scanlog-failed"
)

// ScanContext carries device/location/actor metadata for a scan request.
type ScanContext struct {
	DeviceID string
	Location string
	Actor    string
}

func (c ScanContext) origin() domain.ScanOrigin {
	return domain.ScanOrigin{DeviceID: c.DeviceID, Location: c.Location, Actor: c.Actor}
}

// ScanResult is the protocol-level outcome of a scan. Lookup misses are
// data outcomes, not failures: Success=false with a Message instead of
// an error.
type ScanResult struct {
	Success  bool                  `json:"success"`
	Message  string                `json:"message"`
	Decoded  domain.DecodedBarcode `json:"decoded"`
	Product  *domain.Product       `json:"product"`
	Cached   bool                  `json:"cached"`
	NewStock int64                 `json:"new_stock"`
}

// BatchOperation selects what a batch scan does per barcode.
type BatchOperation string

const (
	BatchOpLookup  BatchOperation = "lookup"
	BatchOpAdd     BatchOperation = "add"
	BatchOpReceive BatchOperation = "receive"
)

type BatchItem struct {
	Barcode  string `json:"barcode"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	NewStock int64  `json:"new_stock"`
}

type BatchResult struct {
	Processed int         `json:"processed"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Items     []BatchItem `json:"items"`
}

// ScanService coordinates a scan request: decode, cache-aside resolve,
// stock mutation, audit journal, metrics. Stock counters for one
// inventory record serialize through the optimistic-retry loop in
// mutateStock; that loop is the only writer of those counters.
type ScanService struct {
	catalog *CatalogService
	repo    port.ProductRepository
	audit   port.ScanLogRepository
	cache   port.Cache

	logCh     chan domain.ScanLogEntry
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewScanService starts the audit writer goroutine; Close flushes and
// stops it.
func NewScanService(catalog *CatalogService, repo port.ProductRepository, audit port.ScanLogRepository, cache port.Cache, queueSize int) *ScanService {
	s := &ScanService{
		catalog: catalog,
		repo:    repo,
		audit:   audit,
		cache:   cache,
		logCh:   make(chan domain.ScanLogEntry, queueSize),
	}
	s.wg.Add(1)
	go s.auditWriter()
	return s
}

// Close drains queued audit entries and stops the writer.
func (s *ScanService) Close() {
	s.closeOnce.Do(func() { close(s.logCh) })
	s.wg.Wait()
}

func (s *ScanService) auditWriter() {
	defer s.wg.Done()
	for entry := range s.logCh {
		ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
		if err := s.audit.AppendScanLog(ctx, entry); err != nil {
			// Audit failures never abort a scan, but they must be visible.
			log.Printf("scan: audit write failed for %s: %v", entry.ID, err)
			s.bump(ctx, metricScanLogFailed)
		}
		cancel()
	}
}

// journal queues the event for the audit writer. A full queue drops the
// entry rather than blocking the scan path.
func (s *ScanService) journal(ev domain.ScanEvent) {
	entry := domain.NewScanLogEntry(ev, time.Now())
	select {
	case s.logCh <- entry:
	default:
		log.Printf("scan: audit queue full, dropping entry %s", entry.ID)
		s.bump(context.Background(), metricScanLogDropped)
	}
}

func (s *ScanService) bump(ctx context.Context, key string) {
	if _, err := s.cache.Increment(ctx, key, 1); err != nil {
		log.Printf("scan: counter %q failed: %v", key, err)
	}
}

func (s *ScanService) tally(ctx context.Context, t domain.ScanType, ok bool) {
	s.bump(ctx, metricTotalScans)
	s.bump(ctx, metricScanPrefix+string(t))
	if !ok {
		s.bump(ctx, metricScansFailed)
	}
}

// DecodeScan resolves a scanned barcode without mutating stock. It
// always succeeds at the protocol level; an unmatched barcode comes back
// as Success=false with a message.
func (s *ScanService) DecodeScan(ctx context.Context, raw string, sc ScanContext) (*ScanResult, error) {
	decoded := barcode.Decode(raw)
	result := &ScanResult{Decoded: decoded}

	// A payload with no indexable characters (all-symbol QR content)
	// normalizes to the empty string and can never resolve.
	if decoded.Format == domain.FormatUnknown || decoded.Normalized == "" {
		result.Message = "unrecognized barcode"
		s.journal(domain.LookupEvent{Decoded: decoded, Origin: sc.origin()})
		s.tally(ctx, domain.ScanTypeLookup, false)
		return result, nil
	}

	product, cached, err := s.catalog.resolveByBarcode(ctx, decoded.Normalized)
	if err != nil {
		s.journal(domain.LookupEvent{Decoded: decoded, Origin: sc.origin()})
		s.tally(ctx, domain.ScanTypeLookup, false)
		return nil, err
	}

	result.Cached = cached
	if product == nil {
		result.Message = fmt.Sprintf("product not found for barcode %s", decoded.Normalized)
		s.journal(domain.LookupEvent{Decoded: decoded, Origin: sc.origin()})
		s.tally(ctx, domain.ScanTypeLookup, false)
		return result, nil
	}

	result.Success = true
	result.Product = product
	if !decoded.Valid {
		result.Message = "checksum mismatch, matched anyway"
	}
	s.journal(domain.LookupEvent{Decoded: decoded, ProductID: &product.ID, Origin: sc.origin()})
	s.tally(ctx, domain.ScanTypeLookup, true)
	return result, nil
}

// AddStock applies a positive delta to a product's on-hand count.
// Linearizable per inventory record: the versioned save serializes
// concurrent mutations, and a lost update reloads and reapplies.
func (s *ScanService) AddStock(ctx context.Context, productID string, quantity int64) (int64, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}
	return s.mutateStock(ctx, productID, quantity)
}

// RemoveStock applies a negative delta; it rejects any mutation that
// would drive available stock below zero.
func (s *ScanService) RemoveStock(ctx context.Context, productID string, quantity int64) (int64, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}
	return s.mutateStock(ctx, productID, -quantity)
}

func (s *ScanService) mutateStock(ctx context.Context, productID string, delta int64) (int64, error) {
	var lastErr error
	for attempt := 0; attempt < maxStockRetries; attempt++ {
		product, err := s.repo.FindByID(ctx, productID)
		if err != nil {
			return 0, err
		}
		if product == nil {
			return 0, ErrProductNotFound
		}
		inv := product.Inventory
		if inv == nil {
			return 0, fmt.Errorf("product %s: %w", productID, ErrInventoryMissing)
		}

		next := inv.QuantityOnHand + delta
		if next < 0 || next < inv.QuantityReserved {
			return 0, fmt.Errorf("%w: on hand %d, reserved %d, delta %d",
				ErrInsufficientStock, inv.QuantityOnHand, inv.QuantityReserved, delta)
		}

		inv.QuantityOnHand = next
		err = s.repo.SaveInventory(ctx, *inv)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, port.ErrOptimisticLock) {
			return 0, err
		}
		lastErr = err
	}
	return 0, fmt.Errorf("stock mutation on %s gave up after %d attempts: %w",
		productID, maxStockRetries, lastErr)
}

// QuickAdd resolves a barcode and adds quantity to its stock.
func (s *ScanService) QuickAdd(ctx context.Context, raw string, quantity int64, sc ScanContext) (*ScanResult, error) {
	return s.stockScan(ctx, raw, quantity, domain.ScanTypeAdd, "", sc)
}

// ReceiveInventory is QuickAdd journaled as a supplier receipt.
func (s *ScanService) ReceiveInventory(ctx context.Context, raw string, quantity int64, supplierID string, sc ScanContext) (*ScanResult, error) {
	return s.stockScan(ctx, raw, quantity, domain.ScanTypeReceive, supplierID, sc)
}

func (s *ScanService) stockScan(ctx context.Context, raw string, quantity int64, scanType domain.ScanType, supplierID string, sc ScanContext) (*ScanResult, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}

	decoded := barcode.Decode(raw)
	result := &ScanResult{Decoded: decoded}

	product, cached, err := s.catalog.resolveByBarcode(ctx, decoded.Normalized)
	if err != nil {
		s.tally(ctx, scanType, false)
		return nil, err
	}
	result.Cached = cached

	if product == nil {
		result.Message = fmt.Sprintf("product not found for barcode %s", decoded.Normalized)
		s.journal(domain.LookupEvent{Decoded: decoded, Origin: sc.origin()})
		s.tally(ctx, scanType, false)
		return result, nil
	}
	if product.Inventory == nil {
		s.tally(ctx, scanType, false)
		return nil, fmt.Errorf("product %s: %w", product.ID, ErrInventoryMissing)
	}

	newStock, err := s.mutateStock(ctx, product.ID, quantity)
	if err != nil {
		s.tally(ctx, scanType, false)
		return nil, err
	}

	// Invalidate strictly after the durable commit; cached products embed
	// the inventory snapshot, so both keys go.
	s.catalog.InvalidateProduct(ctx, product)

	switch scanType {
	case domain.ScanTypeReceive:
		s.journal(domain.ReceiveEvent{
			Decoded:    decoded,
			ProductID:  product.ID,
			Quantity:   quantity,
			SupplierID: supplierID,
			Origin:     sc.origin(),
		})
	default:
		s.journal(domain.AddEvent{
			Decoded:   decoded,
			ProductID: product.ID,
			Quantity:  quantity,
			Origin:    sc.origin(),
		})
	}
	s.tally(ctx, scanType, true)

	result.Success = true
	result.Product = product
	result.NewStock = newStock
	result.Message = fmt.Sprintf("stock for %s is now %d", product.Name, newStock)
	if !decoded.Valid {
		result.Message += " (checksum mismatch on scan)"
	}
	return result, nil
}

// CountScan journals an observed physical count without mutating stock.
// The message reports the variance against the recorded on-hand count.
func (s *ScanService) CountScan(ctx context.Context, raw string, counted int64, sc ScanContext) (*ScanResult, error) {
	if counted < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQuantity, counted)
	}

	decoded := barcode.Decode(raw)
	result := &ScanResult{Decoded: decoded}

	product, cached, err := s.catalog.resolveByBarcode(ctx, decoded.Normalized)
	if err != nil {
		s.tally(ctx, domain.ScanTypeCount, false)
		return nil, err
	}
	result.Cached = cached

	if product == nil {
		result.Message = fmt.Sprintf("product not found for barcode %s", decoded.Normalized)
		s.journal(domain.CountEvent{Decoded: decoded, Counted: counted, Origin: sc.origin()})
		s.tally(ctx, domain.ScanTypeCount, false)
		return result, nil
	}

	result.Success = true
	result.Product = product
	if product.Inventory != nil {
		variance := counted - product.Inventory.QuantityOnHand
		result.Message = fmt.Sprintf("counted %d, recorded %d, variance %+d",
			counted, product.Inventory.QuantityOnHand, variance)
	} else {
		result.Message = fmt.Sprintf("counted %d, no inventory record", counted)
	}
	s.journal(domain.CountEvent{Decoded: decoded, ProductID: &product.ID, Counted: counted, Origin: sc.origin()})
	s.tally(ctx, domain.ScanTypeCount, true)
	return result, nil
}

// BatchScan applies one operation per barcode with per-item isolation:
// one item's failure never aborts or rolls back the others.
func (s *ScanService) BatchScan(ctx context.Context, barcodes []string, op BatchOperation, quantity int64, sc ScanContext) (*BatchResult, error) {
	switch op {
	case BatchOpLookup, BatchOpAdd, BatchOpReceive:
	default:
		return nil, fmt.Errorf("%w: unsupported batch operation %q", ErrValidation, op)
	}
	if len(barcodes) == 0 {
		return nil, fmt.Errorf("%w: no barcodes", ErrValidation)
	}

	result := &BatchResult{Items: make([]BatchItem, 0, len(barcodes))}
	for _, code := range barcodes {
		item := BatchItem{Barcode: code}

		var scan *ScanResult
		var err error
		switch op {
		case BatchOpLookup:
			scan, err = s.DecodeScan(ctx, code, sc)
		case BatchOpAdd:
			scan, err = s.QuickAdd(ctx, code, quantity, sc)
		case BatchOpReceive:
			scan, err = s.ReceiveInventory(ctx, code, quantity, "", sc)
		}

		switch {
		case err != nil:
			item.Message = err.Error()
		case scan.Success:
			item.Success = true
			item.Message = scan.Message
			item.NewStock = scan.NewStock
		default:
			item.Message = scan.Message
		}

		result.Processed++
		if item.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}
