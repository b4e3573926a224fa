package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/scanops/scanstock/internal/adapter/handler"
	"github.com/scanops/scanstock/internal/adapter/storage"
	"github.com/scanops/scanstock/internal/config"
	"github.com/scanops/scanstock/internal/core/service"
	"github.com/scanops/scanstock/internal/port"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	log.Println("connected to mysql")

	// Initialize cache backend
	var cacheLayer port.Cache
	switch cfg.CacheBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		log.Println("connected to redis")
		cacheLayer = storage.NewRedisCache(rdb)
	default:
		cacheLayer = storage.NewMemoryCache(cfg.SweepInterval)
		log.Println("using in-process cache")
	}

	// Initialize adapters and services
	store := storage.NewMySQLAdapter(db)
	catalog := service.NewCatalogService(store, cacheLayer, cfg.ProductTTL)
	scans := service.NewScanService(catalog, store, store, cacheLayer, cfg.ScanLogQueue)

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(catalog, scans)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", httpHandler.HealthCheck)
	mux.HandleFunc("/api/scan", httpHandler.Scan)
	mux.HandleFunc("/api/scan/quick-add", httpHandler.QuickAdd)
	mux.HandleFunc("/api/scan/receive", httpHandler.Receive)
	mux.HandleFunc("/api/scan/count", httpHandler.CountScan)
	mux.HandleFunc("/api/scan/batch", httpHandler.BatchScan)
	mux.HandleFunc("/api/products", httpHandler.CreateProduct)
	mux.HandleFunc("/api/products/get", httpHandler.GetProduct)
	mux.HandleFunc("/api/products/update", httpHandler.UpdateProduct)
	mux.HandleFunc("/api/products/search", httpHandler.SearchProducts)
	mux.HandleFunc("/api/products/low-stock", httpHandler.LowStock)
	mux.HandleFunc("/api/products/stats", httpHandler.Stats)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	// Flush queued scan logs before dropping connections
	scans.Close()
	log.Println("scan service stopped")

	cacheLayer.Close()
	db.Close()
	log.Println("connections closed")
}
