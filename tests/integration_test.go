package tests

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/scanops/scanstock/internal/adapter/storage"
	"github.com/scanops/scanstock/internal/core/service"
)

type testEnv struct {
	redis   *redis.Client
	mysql   *sql.DB
	cache   *storage.RedisCache
	db      *storage.MySQLAdapter
	catalog *service.CatalogService
	scans   *service.ScanService
	cleanup func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/scanstock?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	cache := storage.NewRedisCache(rdb)
	adapter := storage.NewMySQLAdapter(db)
	catalog := service.NewCatalogService(adapter, cache, time.Minute)
	scans := service.NewScanService(catalog, adapter, adapter, cache, 256)

	return &testEnv{
		redis:   rdb,
		mysql:   db,
		cache:   cache,
		db:      adapter,
		catalog: catalog,
		scans:   scans,
		cleanup: func() {
			scans.Close()
			rdb.Close()
			db.Close()
		},
	}
}

func (env *testEnv) removeProduct(ctx context.Context, id string) {
	env.mysql.ExecContext(ctx, `DELETE FROM scan_logs WHERE product_id = ?`, id)
	env.mysql.ExecContext(ctx, `DELETE FROM inventory WHERE product_id = ?`, id)
	env.mysql.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
}

func TestIntegration_CreateScanRestock(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	code := "ITG" + strings.ToUpper(uuid.New().String()[:8])

	product, err := env.catalog.Create(ctx, service.CreateProductInput{
		Barcode: code,
		Name:    "integration widget",
		Active:  true,
	}, "integration")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer env.removeProduct(ctx, product.ID)

	// First scan resolves from MySQL, second from the cache
	first, err := env.scans.DecodeScan(ctx, code, service.ScanContext{DeviceID: "itg-dev"})
	if err != nil || !first.Success {
		t.Fatalf("first scan failed: %v %+v", err, first)
	}
	second, err := env.scans.DecodeScan(ctx, code, service.ScanContext{DeviceID: "itg-dev"})
	if err != nil || !second.Success {
		t.Fatalf("second scan failed: %v %+v", err, second)
	}
	if !second.Cached {
		t.Error("expected second scan served from cache")
	}

	// Restock and read back through the full cache-aside path
	result, err := env.scans.QuickAdd(ctx, code, 12, service.ScanContext{DeviceID: "itg-dev", Actor: "integration"})
	if err != nil || !result.Success {
		t.Fatalf("quick add failed: %v %+v", err, result)
	}
	if result.NewStock != 12 {
		t.Errorf("expected new stock 12, got %d", result.NewStock)
	}

	after, err := env.catalog.GetByBarcode(ctx, code)
	if err != nil {
		t.Fatalf("readback failed: %v", err)
	}
	if after.Inventory == nil || after.Inventory.QuantityOnHand != 12 {
		t.Errorf("expected on-hand 12 after invalidation, got %+v", after.Inventory)
	}

	// Flush the audit queue and confirm the journal reached MySQL
	env.scans.Close()
	var logged int
	env.mysql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scan_logs WHERE product_id = ?`, product.ID).Scan(&logged)
	if logged < 3 {
		t.Errorf("expected at least 3 scan logs, got %d", logged)
	}
}

func TestIntegration_ConcurrentQuickAddNoLostUpdates(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	code := "ITG" + strings.ToUpper(uuid.New().String()[:8])

	product, err := env.catalog.Create(ctx, service.CreateProductInput{
		Barcode: code,
		Name:    "contended widget",
		Active:  true,
	}, "integration")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer env.removeProduct(ctx, product.ID)

	const callers = 20
	var applied atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := env.scans.QuickAdd(ctx, code, 1, service.ScanContext{DeviceID: "itg-dev"})
			if err == nil && result.Success {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	// The versioned save must account for every applied delta exactly
	var onHand int64
	env.mysql.QueryRowContext(ctx,
		`SELECT quantity_on_hand FROM inventory WHERE product_id = ?`, product.ID).Scan(&onHand)
	if onHand != applied.Load() {
		t.Errorf("on-hand %d diverged from %d applied adds (lost update)", onHand, applied.Load())
	}
	if applied.Load() == 0 {
		t.Error("expected at least one add to apply")
	}
}

func TestIntegration_UpdateInvalidatesCachedProduct(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	code := "ITG" + strings.ToUpper(uuid.New().String()[:8])

	product, err := env.catalog.Create(ctx, service.CreateProductInput{
		Barcode: code,
		Name:    "stale widget",
		Active:  true,
	}, "integration")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer env.removeProduct(ctx, product.ID)

	// Warm the cache, then rename
	if _, err := env.catalog.GetByBarcode(ctx, code); err != nil {
		t.Fatalf("warm lookup failed: %v", err)
	}

	name := "fresh widget"
	if _, err := env.catalog.Update(ctx, product.ID, service.UpdateProductInput{Name: &name}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	after, err := env.catalog.GetByBarcode(ctx, code)
	if err != nil {
		t.Fatalf("readback failed: %v", err)
	}
	if after.Name != "fresh widget" {
		t.Errorf("stale cache entry survived the update: %q", after.Name)
	}
}
