package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scanops/scanstock/internal/core/domain"
	"github.com/scanops/scanstock/internal/port"
)

// opRecorder captures the order of durable writes and cache
// invalidations across mocks.
type opRecorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *opRecorder) record(op string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.ops = append(r.ops, op)
	r.mu.Unlock()
}

func (r *opRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

// Mock ProductRepository
type mockProductRepo struct {
	mu        sync.Mutex
	products  map[string]*domain.Product   // by id
	inventory map[string]domain.Inventory  // by product id
	findCalls int
	recorder  *opRecorder
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{
		products:  make(map[string]*domain.Product),
		inventory: make(map[string]domain.Inventory),
	}
}

func (m *mockProductRepo) add(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Inventory != nil {
		m.inventory[p.ID] = *p.Inventory
	}
	p.Inventory = nil
	m.products[p.ID] = &p
}

// snapshot returns a copy with the current inventory joined in, the way
// the durable adapter does.
func (m *mockProductRepo) snapshot(p *domain.Product) *domain.Product {
	out := *p
	if inv, ok := m.inventory[p.ID]; ok {
		invCopy := inv
		out.Inventory = &invCopy
	}
	return &out
}

func (m *mockProductRepo) FindByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	for _, p := range m.products {
		if p.Barcode == barcode {
			return m.snapshot(p), nil
		}
	}
	return nil, nil
}

func (m *mockProductRepo) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.SKU != nil && *p.SKU == sku {
			return m.snapshot(p), nil
		}
	}
	return nil, nil
}

func (m *mockProductRepo) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	if p, ok := m.products[id]; ok {
		return m.snapshot(p), nil
	}
	return nil, nil
}

func (m *mockProductRepo) Create(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorder.record("repo:create")
	copied := *product
	if copied.Inventory != nil {
		m.inventory[copied.ID] = *copied.Inventory
		copied.Inventory = nil
	}
	m.products[copied.ID] = &copied
	return nil
}

func (m *mockProductRepo) Update(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorder.record("repo:update")
	if _, ok := m.products[product.ID]; !ok {
		return port.ErrNotFound
	}
	copied := *product
	copied.Inventory = nil
	m.products[product.ID] = &copied
	return nil
}

func (m *mockProductRepo) CountActive(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, p := range m.products {
		if p.Active {
			count++
		}
	}
	return count, nil
}

func (m *mockProductRepo) SearchByTerm(ctx context.Context, term string, limit int) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Product
	for _, p := range m.products {
		if len(out) >= limit {
			break
		}
		out = append(out, *m.snapshot(p))
	}
	return out, nil
}

func (m *mockProductRepo) FindLowStock(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Product
	for _, p := range m.products {
		inv, ok := m.inventory[p.ID]
		if ok && inv.QuantityAvailable() <= inv.ReorderLevel {
			out = append(out, *m.snapshot(p))
		}
	}
	return out, nil
}

// SaveInventory enforces the version check exactly like the durable
// adapter, so optimistic-retry behavior is exercised for real.
func (m *mockProductRepo) SaveInventory(ctx context.Context, inv domain.Inventory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.inventory[inv.ProductID]
	if !ok {
		return port.ErrNotFound
	}
	if current.Version != inv.Version {
		return port.ErrOptimisticLock
	}
	inv.Version++
	inv.UpdatedAt = time.Now()
	m.inventory[inv.ProductID] = inv
	m.recorder.record("repo:save-inventory")
	return nil
}

func (m *mockProductRepo) onHand(id string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inventory[id].QuantityOnHand
}

// Mock ScanLogRepository
type mockScanLog struct {
	mu      sync.Mutex
	entries []domain.ScanLogEntry
	fail    bool
}

func (m *mockScanLog) AppendScanLog(ctx context.Context, entry domain.ScanLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("%w: audit sink down", port.ErrStoreUnavailable)
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockScanLog) all() []domain.ScanLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ScanLogEntry(nil), m.entries...)
}

// Mock Cache
type mockCache struct {
	mu       sync.Mutex
	entries  map[string][]byte
	recorder *opRecorder
	failAll  bool
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string][]byte)}
}

func (m *mockCache) down() error {
	return fmt.Errorf("%w: cache down", port.ErrCacheUnavailable)
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, m.down()
	}
	value, ok := m.entries[key]
	if !ok {
		return nil, port.ErrCacheMiss
	}
	return value, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return m.down()
	}
	m.entries[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return m.down()
	}
	m.recorder.record("cache:delete:" + key)
	delete(m.entries, key)
	return nil
}

func (m *mockCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return m.down()
	}
	m.recorder.record("cache:delete-pattern:" + pattern)
	prefix := pattern
	if n := len(pattern); n > 0 && pattern[n-1] == '*' {
		prefix = pattern[:n-1]
	}
	for key := range m.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *mockCache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return 0, m.down()
	}
	var current int64
	fmt.Sscanf(string(m.entries[key]), "%d", &current)
	current += delta
	m.entries[key] = []byte(fmt.Sprintf("%d", current))
	return current, nil
}

func (m *mockCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fill port.FillFunc) ([]byte, error) {
	if m.failAll {
		return nil, m.down()
	}
	if value, err := m.Get(ctx, key); err == nil {
		return value, nil
	}
	value, err := fill(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.Set(ctx, key, value, ttl); err != nil {
		return nil, err
	}
	return value, nil
}

func (m *mockCache) Ping(ctx context.Context) error { return nil }

func (m *mockCache) Close() error { return nil }

func (m *mockCache) counter(key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var current int64
	fmt.Sscanf(string(m.entries[key]), "%d", &current)
	return current
}

func (m *mockCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}
