package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/scanops/scanstock/internal/core/domain"
	"github.com/scanops/scanstock/internal/core/service"
	"github.com/scanops/scanstock/internal/port"
)

type HTTPHandler struct {
	catalog *service.CatalogService
	scans   *service.ScanService
}

func NewHTTPHandler(catalog *service.CatalogService, scans *service.ScanService) *HTTPHandler {
	return &HTTPHandler{catalog: catalog, scans: scans}
}

type scanRequest struct {
	Barcode    string `json:"barcode"`
	Quantity   int64  `json:"quantity"`
	SupplierID string `json:"supplier_id"`
	DeviceID   string `json:"device_id"`
	Location   string `json:"location"`
	Actor      string `json:"actor"`
}

type batchScanRequest struct {
	Barcodes  []string `json:"barcodes"`
	Operation string   `json:"operation"`
	Quantity  int64    `json:"quantity"`
	DeviceID  string   `json:"device_id"`
	Location  string   `json:"location"`
	Actor     string   `json:"actor"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (r scanRequest) scanContext() service.ScanContext {
	return service.ScanContext{DeviceID: r.DeviceID, Location: r.Location, Actor: r.Actor}
}

func (h *HTTPHandler) Scan(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeScanRequest(w, r)
	if !ok {
		return
	}

	result, err := h.scans.DecodeScan(r.Context(), req.Barcode, req.scanContext())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) QuickAdd(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeScanRequest(w, r)
	if !ok {
		return
	}

	result, err := h.scans.QuickAdd(r.Context(), req.Barcode, req.Quantity, req.scanContext())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) Receive(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeScanRequest(w, r)
	if !ok {
		return
	}

	result, err := h.scans.ReceiveInventory(r.Context(), req.Barcode, req.Quantity, req.SupplierID, req.scanContext())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) CountScan(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeScanRequest(w, r)
	if !ok {
		return
	}

	result, err := h.scans.CountScan(r.Context(), req.Barcode, req.Quantity, req.scanContext())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) BatchScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req batchScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}

	sc := service.ScanContext{DeviceID: req.DeviceID, Location: req.Location, Actor: req.Actor}
	result, err := h.scans.BatchScan(r.Context(), req.Barcodes, service.BatchOperation(req.Operation), req.Quantity, sc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type createProductRequest struct {
	Barcode         string  `json:"barcode"`
	SKU             *string `json:"sku"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	CategoryID      string  `json:"category_id"`
	PriceUSD        *string `json:"price_usd"`
	CostUSD         *string `json:"cost_usd"`
	InitialStock    int64   `json:"initial_stock"`
	ReorderLevel    int64   `json:"reorder_level"`
	ReorderQuantity int64   `json:"reorder_quantity"`
	Active          bool    `json:"active"`
	Actor           string  `json:"actor"`
}

func parseMoney(s *string) (*decimal.Decimal, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}

	price, err := parseMoney(req.PriceUSD)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid price_usd"})
		return
	}
	cost, err := parseMoney(req.CostUSD)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid cost_usd"})
		return
	}

	product, err := h.catalog.Create(r.Context(), service.CreateProductInput{
		Barcode:         req.Barcode,
		SKU:             req.SKU,
		Name:            req.Name,
		Description:     req.Description,
		CategoryID:      req.CategoryID,
		PriceUSD:        price,
		CostUSD:         cost,
		InitialStock:    req.InitialStock,
		ReorderLevel:    req.ReorderLevel,
		ReorderQuantity: req.ReorderQuantity,
		Active:          req.Active,
	}, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

type updateProductRequest struct {
	ID          string  `json:"id"`
	SKU         *string `json:"sku"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	CategoryID  *string `json:"category_id"`
	PriceUSD    *string `json:"price_usd"`
	CostUSD     *string `json:"cost_usd"`
	Active      *bool   `json:"active"`
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req updateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}

	price, err := parseMoney(req.PriceUSD)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid price_usd"})
		return
	}
	cost, err := parseMoney(req.CostUSD)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid cost_usd"})
		return
	}

	product, err := h.catalog.Update(r.Context(), req.ID, service.UpdateProductInput{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		PriceUSD:    price,
		CostUSD:     cost,
		Active:      req.Active,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// GetProduct resolves by ?id= or ?barcode=.
func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var product *domain.Product
	var err error
	switch {
	case r.URL.Query().Get("id") != "":
		product, err = h.catalog.GetByID(r.Context(), r.URL.Query().Get("id"))
	case r.URL.Query().Get("barcode") != "":
		product, err = h.catalog.GetByBarcode(r.Context(), r.URL.Query().Get("barcode"))
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "id or barcode required"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if product == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "product not found"})
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	products, err := h.catalog.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *HTTPHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.LowStock(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *HTTPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	count, err := h.catalog.ActiveCount(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"active_products": count})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeScanRequest(w http.ResponseWriter, r *http.Request) (scanRequest, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return scanRequest{}, false
	}

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return scanRequest{}, false
	}
	if req.Barcode == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "barcode required"})
		return scanRequest{}, false
	}
	return req, true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidQuantity):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, service.ErrProductNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, service.ErrDuplicateBarcode), errors.Is(err, service.ErrDuplicateSKU):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, service.ErrInventoryMissing), errors.Is(err, service.ErrInsufficientStock):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, port.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
		message = "store unavailable"
	case errors.Is(err, port.ErrOptimisticLock):
		status = http.StatusConflict
		message = "write conflict, retry"
	}

	writeJSON(w, status, errorResponse{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
