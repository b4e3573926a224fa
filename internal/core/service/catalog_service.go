package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/scanops/scanstock/internal/core/barcode"
	"github.com/scanops/scanstock/internal/core/domain"
	"github.com/scanops/scanstock/internal/port"
)

var (
	ErrValidation       = errors.New("invalid input")
	ErrProductNotFound  = errors.New("product not found")
	ErrDuplicateBarcode = errors.New("barcode already registered")
	ErrDuplicateSKU     = errors.New("sku already registered")
)

// errAbsent stops GetOrSet from caching a negative lookup.
var errAbsent = errors.New("product absent")

const (
	productKeyPrefix        = "product:"
	productBarcodeKeyPrefix = "product:barcode:"
	searchKeyPrefix         = "search:"
	aggregateKeyPrefix      = "products:"

	lowStockKey    = aggregateKeyPrefix + "low-stock"
	activeCountKey = aggregateKeyPrefix + "count:active"
)

func productKey(id string) string { return productKeyPrefix + id }

func productBarcodeKey(code string) string { return productBarcodeKeyPrefix + code }

// CatalogService is the cache-aside wrapper around durable product
// lookups. It owns cache key naming and every invalidation trigger; the
// cache is an optimization and never a hard dependency.
type CatalogService struct {
	repo  port.ProductRepository
	cache port.Cache
	ttl   time.Duration
}

func NewCatalogService(repo port.ProductRepository, cache port.Cache, ttl time.Duration) *CatalogService {
	return &CatalogService{repo: repo, cache: cache, ttl: ttl}
}

// GetByBarcode resolves a product by raw or normalized barcode.
// Returns (nil, nil) when no product matches.
func (s *CatalogService) GetByBarcode(ctx context.Context, code string) (*domain.Product, error) {
	product, _, err := s.resolveByBarcode(ctx, code)
	return product, err
}

// resolveByBarcode additionally reports whether this call was served
// without running the durable-store loader.
func (s *CatalogService) resolveByBarcode(ctx context.Context, code string) (*domain.Product, bool, error) {
	normalized := barcode.Normalize(code)
	if normalized == "" {
		return nil, false, fmt.Errorf("%w: empty barcode", ErrValidation)
	}

	return s.cachedProduct(ctx, productBarcodeKey(normalized), func(ctx context.Context) (*domain.Product, error) {
		return s.repo.FindByBarcode(ctx, normalized)
	})
}

// GetByID resolves a product by ID. Returns (nil, nil) when absent.
func (s *CatalogService) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty product id", ErrValidation)
	}
	product, _, err := s.cachedProduct(ctx, productKey(id), func(ctx context.Context) (*domain.Product, error) {
		return s.repo.FindByID(ctx, id)
	})
	return product, err
}

func (s *CatalogService) cachedProduct(ctx context.Context, key string, load func(context.Context) (*domain.Product, error)) (*domain.Product, bool, error) {
	loaded := false
	raw, err := s.cache.GetOrSet(ctx, key, s.ttl, func(ctx context.Context) ([]byte, error) {
		loaded = true
		product, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, errAbsent
		}
		return json.Marshal(product)
	})
	if err != nil {
		if errors.Is(err, errAbsent) {
			return nil, false, nil
		}
		if errors.Is(err, port.ErrCacheUnavailable) {
			log.Printf("catalog: cache degraded for %q, reading store directly: %v", key, err)
			product, err := load(ctx)
			return product, false, err
		}
		return nil, false, err
	}

	var product domain.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		log.Printf("catalog: corrupt cache entry %q, reading store directly: %v", key, err)
		product, loadErr := load(ctx)
		return product, false, loadErr
	}
	return &product, !loaded, nil
}

type CreateProductInput struct {
	Barcode         string
	SKU             *string
	Name            string
	Description     string
	CategoryID      string
	PriceUSD        *decimal.Decimal
	CostUSD         *decimal.Decimal
	InitialStock    int64
	ReorderLevel    int64
	ReorderQuantity int64
	Active          bool
}

// Create registers a new product with its inventory record. Uniqueness
// of barcode and SKU is checked against the durable store at call time;
// this is best-effort against concurrent creates, with the store's
// unique constraints as the backstop.
func (s *CatalogService) Create(ctx context.Context, in CreateProductInput, actor string) (*domain.Product, error) {
	normalized := barcode.Normalize(in.Barcode)
	switch {
	case normalized == "":
		return nil, fmt.Errorf("%w: barcode required", ErrValidation)
	case strings.TrimSpace(in.Name) == "":
		return nil, fmt.Errorf("%w: name required", ErrValidation)
	case in.PriceUSD != nil && in.PriceUSD.IsNegative():
		return nil, fmt.Errorf("%w: price_usd must be >= 0", ErrValidation)
	case in.CostUSD != nil && in.CostUSD.IsNegative():
		return nil, fmt.Errorf("%w: cost_usd must be >= 0", ErrValidation)
	case in.InitialStock < 0:
		return nil, fmt.Errorf("%w: initial_stock must be >= 0", ErrValidation)
	}

	existing, err := s.repo.FindByBarcode(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateBarcode
	}
	if in.SKU != nil && *in.SKU != "" {
		existing, err := s.repo.FindBySKU(ctx, *in.SKU)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrDuplicateSKU
		}
	}

	now := time.Now()
	product := &domain.Product{
		ID:          uuid.New().String(),
		Barcode:     normalized,
		SKU:         in.SKU,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		CategoryID:  in.CategoryID,
		PriceUSD:    in.PriceUSD,
		CostUSD:     in.CostUSD,
		Active:      in.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	product.Inventory = &domain.Inventory{
		ProductID:       product.ID,
		QuantityOnHand:  in.InitialStock,
		ReorderLevel:    in.ReorderLevel,
		ReorderQuantity: in.ReorderQuantity,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	log.Printf("catalog: product %s created (barcode %s) by %s", product.ID, product.Barcode, actor)

	// Aggregate caches go stale only after the durable write committed.
	s.invalidateAggregates(ctx)
	return product, nil
}

type UpdateProductInput struct {
	SKU         *string
	Name        *string
	Description *string
	CategoryID  *string
	PriceUSD    *decimal.Decimal
	CostUSD     *decimal.Decimal
	Active      *bool
}

// Update applies a partial patch. The barcode is immutable; invalidation
// uses the pre-update barcode and runs strictly after the durable write
// so a concurrent reader cannot resurrect the stale entry.
func (s *CatalogService) Update(ctx context.Context, id string, patch UpdateProductInput) (*domain.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if patch.SKU != nil {
		product.SKU = patch.SKU
	}
	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, fmt.Errorf("%w: name required", ErrValidation)
		}
		product.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		product.Description = *patch.Description
	}
	if patch.CategoryID != nil {
		product.CategoryID = *patch.CategoryID
	}
	if patch.PriceUSD != nil {
		if patch.PriceUSD.IsNegative() {
			return nil, fmt.Errorf("%w: price_usd must be >= 0", ErrValidation)
		}
		product.PriceUSD = patch.PriceUSD
	}
	if patch.CostUSD != nil {
		if patch.CostUSD.IsNegative() {
			return nil, fmt.Errorf("%w: cost_usd must be >= 0", ErrValidation)
		}
		product.CostUSD = patch.CostUSD
	}
	if patch.Active != nil {
		product.Active = *patch.Active
	}
	product.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, product); err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	s.InvalidateProduct(ctx, product)
	s.invalidateAggregates(ctx)
	return product, nil
}

// Search returns active products matching term, cached per term+limit.
func (s *CatalogService) Search(ctx context.Context, term string, limit int) ([]domain.Product, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, fmt.Errorf("%w: empty search term", ErrValidation)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	key := fmt.Sprintf("%s%s:%d", searchKeyPrefix, term, limit)
	var products []domain.Product
	err := s.cachedJSON(ctx, key, &products, func(ctx context.Context) (any, error) {
		return s.repo.SearchByTerm(ctx, term, limit)
	})
	return products, err
}

// LowStock returns active products at or below their reorder level.
func (s *CatalogService) LowStock(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	err := s.cachedJSON(ctx, lowStockKey, &products, func(ctx context.Context) (any, error) {
		return s.repo.FindLowStock(ctx)
	})
	return products, err
}

// ActiveCount returns the number of active products.
func (s *CatalogService) ActiveCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.cachedJSON(ctx, activeCountKey, &count, func(ctx context.Context) (any, error) {
		return s.repo.CountActive(ctx)
	})
	return count, err
}

// cachedJSON is the cache-aside helper for derived/aggregate values.
func (s *CatalogService) cachedJSON(ctx context.Context, key string, out any, load func(context.Context) (any, error)) error {
	raw, err := s.cache.GetOrSet(ctx, key, s.ttl, func(ctx context.Context) ([]byte, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(value)
	})
	if err != nil {
		if errors.Is(err, port.ErrCacheUnavailable) {
			log.Printf("catalog: cache degraded for %q, reading store directly: %v", key, err)
			value, loadErr := load(ctx)
			if loadErr != nil {
				return loadErr
			}
			raw, err = json.Marshal(value)
			if err != nil {
				return err
			}
			return json.Unmarshal(raw, out)
		}
		return err
	}
	return json.Unmarshal(raw, out)
}

// InvalidateProduct drops both cache entries for a product. Cached
// products embed their inventory snapshot, so stock-only changes must
// invalidate both keys too.
func (s *CatalogService) InvalidateProduct(ctx context.Context, product *domain.Product) {
	for _, key := range []string{productKey(product.ID), productBarcodeKey(product.Barcode)} {
		if err := s.cache.Delete(ctx, key); err != nil {
			log.Printf("catalog: invalidate %q failed: %v", key, err)
		}
	}
}

func (s *CatalogService) invalidateAggregates(ctx context.Context) {
	for _, pattern := range []string{aggregateKeyPrefix + "*", searchKeyPrefix + "*"} {
		if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
			log.Printf("catalog: invalidate pattern %q failed: %v", pattern, err)
		}
	}
}
