package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/scanops/scanstock/internal/core/domain"
	"github.com/scanops/scanstock/internal/port"
)

// MySQLAdapter is the durable store behind the catalog and the scan
// audit trail. Inventory rows carry a version column; SaveInventory is
// the only stock write path and enforces the optimistic check.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", port.ErrStoreUnavailable, op, err)
}

const productSelect = `
	SELECT p.id, p.barcode, p.sku, p.name, p.description, p.category_id,
	       p.price_usd, p.cost_usd, p.active, p.created_at, p.updated_at,
	       i.product_id, i.quantity_on_hand, i.quantity_reserved,
	       i.reorder_level, i.reorder_quantity, i.version, i.updated_at
	FROM products p
	LEFT JOIN inventory i ON i.product_id = p.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		p          domain.Product
		sku        sql.NullString
		price      sql.NullString
		cost       sql.NullString
		invID      sql.NullString
		onHand     sql.NullInt64
		reserved   sql.NullInt64
		level      sql.NullInt64
		reorderQty sql.NullInt64
		version    sql.NullInt64
		invUpdated sql.NullTime
	)

	err := row.Scan(
		&p.ID, &p.Barcode, &sku, &p.Name, &p.Description, &p.CategoryID,
		&price, &cost, &p.Active, &p.CreatedAt, &p.UpdatedAt,
		&invID, &onHand, &reserved, &level, &reorderQty, &version, &invUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("scan product row", err)
	}

	if sku.Valid {
		p.SKU = &sku.String
	}
	if price.Valid {
		d, err := decimal.NewFromString(price.String)
		if err != nil {
			return nil, storeErr("parse price_usd", err)
		}
		p.PriceUSD = &d
	}
	if cost.Valid {
		d, err := decimal.NewFromString(cost.String)
		if err != nil {
			return nil, storeErr("parse cost_usd", err)
		}
		p.CostUSD = &d
	}
	if invID.Valid {
		p.Inventory = &domain.Inventory{
			ProductID:        invID.String,
			QuantityOnHand:   onHand.Int64,
			QuantityReserved: reserved.Int64,
			ReorderLevel:     level.Int64,
			ReorderQuantity:  reorderQty.Int64,
			Version:          version.Int64,
			UpdatedAt:        invUpdated.Time,
		}
	}
	return &p, nil
}

func (m *MySQLAdapter) findOne(ctx context.Context, where string, arg any) (*domain.Product, error) {
	return scanProduct(m.db.QueryRowContext(ctx, productSelect+" WHERE "+where, arg))
}

func (m *MySQLAdapter) FindByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	return m.findOne(ctx, "p.barcode = ?", barcode)
}

func (m *MySQLAdapter) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	return m.findOne(ctx, "p.sku = ?", sku)
}

func (m *MySQLAdapter) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	return m.findOne(ctx, "p.id = ?", id)
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func (m *MySQLAdapter) Create(ctx context.Context, product *domain.Product) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin tx", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, barcode, sku, name, description, category_id,
			price_usd, cost_usd, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID, product.Barcode, nullString(product.SKU), product.Name,
		product.Description, product.CategoryID, nullDecimal(product.PriceUSD),
		nullDecimal(product.CostUSD), product.Active, product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return storeErr("insert product", err)
	}

	if inv := product.Inventory; inv != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO inventory (product_id, quantity_on_hand, quantity_reserved,
				reorder_level, reorder_quantity, version, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			inv.ProductID, inv.QuantityOnHand, inv.QuantityReserved,
			inv.ReorderLevel, inv.ReorderQuantity, inv.Version, inv.UpdatedAt,
		)
		if err != nil {
			return storeErr("insert inventory", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit create", err)
	}
	return nil
}

func (m *MySQLAdapter) Update(ctx context.Context, product *domain.Product) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET sku = ?, name = ?, description = ?, category_id = ?,
		    price_usd = ?, cost_usd = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		nullString(product.SKU), product.Name, product.Description,
		product.CategoryID, nullDecimal(product.PriceUSD),
		nullDecimal(product.CostUSD), product.Active, time.Now(), product.ID,
	)
	if err != nil {
		return storeErr("update product", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrNotFound
	}
	return nil
}

func (m *MySQLAdapter) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE active = TRUE`).Scan(&count)
	if err != nil {
		return 0, storeErr("count active", err)
	}
	return count, nil
}

func (m *MySQLAdapter) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query products", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate products", err)
	}
	return products, nil
}

func (m *MySQLAdapter) SearchByTerm(ctx context.Context, term string, limit int) ([]domain.Product, error) {
	like := "%" + term + "%"
	return m.queryProducts(ctx, productSelect+`
		WHERE p.active = TRUE AND (p.name LIKE ? OR p.barcode LIKE ? OR p.sku LIKE ?)
		ORDER BY p.name LIMIT ?`, like, like, like, limit)
}

func (m *MySQLAdapter) FindLowStock(ctx context.Context) ([]domain.Product, error) {
	return m.queryProducts(ctx, productSelect+`
		WHERE p.active = TRUE
		  AND i.quantity_on_hand - i.quantity_reserved <= i.reorder_level
		ORDER BY p.name`)
}

func (m *MySQLAdapter) SaveInventory(ctx context.Context, inv domain.Inventory) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE inventory
		SET quantity_on_hand = ?, quantity_reserved = ?, reorder_level = ?,
		    reorder_quantity = ?, version = version + 1, updated_at = NOW()
		WHERE product_id = ? AND version = ?`,
		inv.QuantityOnHand, inv.QuantityReserved, inv.ReorderLevel,
		inv.ReorderQuantity, inv.ProductID, inv.Version,
	)
	if err != nil {
		return storeErr("save inventory", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		// The row exists (the caller just loaded it), so zero rows means
		// a concurrent writer bumped the version first.
		return port.ErrOptimisticLock
	}
	return nil
}

func (m *MySQLAdapter) AppendScanLog(ctx context.Context, entry domain.ScanLogEntry) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO scan_logs (id, product_id, raw_barcode, normalized_barcode,
			format, scan_type, quantity_delta, supplier_id, device_id,
			location, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, nullString(entry.ProductID), entry.RawBarcode,
		entry.NormalizedBarcode, string(entry.Format), string(entry.ScanType),
		entry.QuantityDelta, entry.SupplierID, entry.DeviceID, entry.Location,
		entry.Actor, entry.CreatedAt,
	)
	if err != nil {
		return storeErr("insert scan log", err)
	}
	return nil
}
