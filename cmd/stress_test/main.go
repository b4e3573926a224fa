package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/scanops/scanstock/internal/adapter/storage"
	"github.com/scanops/scanstock/internal/core/service"
)

const (
	mysqlDSN     = "root:root@tcp(localhost:3306)/scanstock?parseTime=true"
	totalScans   = 200
	scanQuantity = 1
	cacheTTL     = time.Minute
	queueSize    = 1024
)

func main() {
	ctx := context.Background()

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	cache := storage.NewMemoryCache(time.Minute)
	defer cache.Close()

	store := storage.NewMySQLAdapter(db)
	catalog := service.NewCatalogService(store, cache, cacheTTL)
	scans := service.NewScanService(catalog, store, store, cache, queueSize)
	defer scans.Close()

	// Fresh product so runs don't interfere
	barcode := fmt.Sprintf("STRESS-%s", uuid.New().String()[:8])
	product, err := catalog.Create(ctx, service.CreateProductInput{
		Barcode: barcode,
		Name:    "stress test item",
		Active:  true,
	}, "stress-driver")
	if err != nil {
		log.Fatalf("failed to create product: %v", err)
	}
	log.Printf("created product %s (barcode %s)", product.ID, product.Barcode)

	var successCount atomic.Int32
	var failCount atomic.Int32
	var wg sync.WaitGroup

	sc := service.ScanContext{DeviceID: "stress", Actor: "stress-driver"}
	start := time.Now()

	for i := 0; i < totalScans; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			result, err := scans.QuickAdd(ctx, barcode, scanQuantity, sc)
			if err == nil && result.Success {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Concurrent Scans: %d\n", totalScans)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Every applied delta must be reflected: final on-hand equals the
	// number of successful scans, nothing lost to races.
	final, err := store.FindByID(ctx, product.ID)
	if err != nil || final == nil || final.Inventory == nil {
		log.Fatalf("failed to read back product: %v", err)
	}

	expected := int64(success) * scanQuantity
	fmt.Printf("Final On-Hand:    %d (expected %d)\n", final.Inventory.QuantityOnHand, expected)
	if final.Inventory.QuantityOnHand == expected {
		fmt.Println("PASS: no lost updates")
	} else {
		fmt.Println("FAIL: stock diverged from applied deltas")
	}
}
