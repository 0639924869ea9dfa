package till

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"sync"
	"time"

	"bar-pos/internal/logger"
	"bar-pos/internal/models"
)

// HealthCheck checks one dependency of the till.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// CatalogStatus is implemented by catalogs that keep a snapshot.
type CatalogStatus interface {
	Version() uint64
	RefreshedAt() time.Time
}

// Handler serves the till over HTTP. All engine calls go through mu, one
// cashier action at a time.
type Handler struct {
	mu      sync.Mutex
	engine  *Engine
	catalog CatalogProvider
	checks  []HealthCheck
	logger  *logger.Logger
}

// NewHandler creates a new till handler
func NewHandler(engine *Engine, catalog CatalogProvider, log *logger.Logger, checks ...HealthCheck) *Handler {
	return &Handler{
		engine:  engine,
		catalog: catalog,
		checks:  checks,
		logger:  log,
	}
}

type categoryRequest struct {
	CategoryKey string `json:"categoryKey"`
}

type addItemRequest struct {
	ProductID string `json:"productId"`
}

type paymentRequest struct {
	Amount json.RawMessage `json:"amount"`
}

// rawAmount returns the payment as typed: a JSON string is unquoted, a JSON
// number is kept as written.
func (r paymentRequest) rawAmount() string {
	var s string
	if err := json.Unmarshal(r.Amount, &s); err == nil {
		return s
	}
	if string(r.Amount) == "null" {
		return ""
	}
	return string(r.Amount)
}

// ListCategories handles GET /catalog/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		h.logger.Error("catalog_fetch_failed", "Failed to list categories", requestID, err, nil)
		h.writeEngineError(w, err, requestID)
		return
	}
	if categories == nil {
		categories = []models.Category{}
	}
	h.writeJSON(w, http.StatusOK, categories, requestID)
}

// ListProducts handles GET /catalog/products. The category defaults to the
// order's active category.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	query := r.URL.Query()

	filter := models.ProductFilter{
		CategoryKey: query.Get("category"),
		TypeTag:     query.Get("type"),
		TextQuery:   query.Get("q"),
	}
	if err := validateProductFilter(filter); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}
	if filter.CategoryKey == "" {
		h.mu.Lock()
		filter.CategoryKey = h.engine.CategoryKey()
		h.mu.Unlock()
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	products, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		h.logger.Error("catalog_fetch_failed", "Failed to list products", requestID, err, map[string]interface{}{
			"category_key": filter.CategoryKey,
		})
		h.writeEngineError(w, err, requestID)
		return
	}
	if products == nil {
		products = []models.PricedProduct{}
	}
	h.writeJSON(w, http.StatusOK, products, requestID)
}

// GetOrder handles GET /order
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	view := h.engine.View()
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, view, requestIDFrom(r))
}

// SelectCategory handles PUT /order/category
func (h *Handler) SelectCategory(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	var req categoryRequest
	if !h.decodeJSON(w, r, &req, requestID) {
		return
	}
	if err := validateCategoryRequest(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	h.mu.Lock()
	h.engine.SelectCategory(req.CategoryKey)
	view := h.engine.View()
	h.mu.Unlock()

	h.logger.Debug("category_selected", "Active category changed", requestID, map[string]interface{}{
		"category_key": req.CategoryKey,
	})
	h.writeJSON(w, http.StatusOK, view, requestID)
}

// AddItem handles POST /order/items
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	var req addItemRequest
	if !h.decodeJSON(w, r, &req, requestID) {
		return
	}
	if err := validateAddItemRequest(&req); err != nil {
		h.logger.Error("validation_failed", "Request validation failed", requestID, err, nil)
		h.writeErrorResponse(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	h.mu.Lock()
	product, err := h.engine.LookupProduct(ctx, req.ProductID)
	if err == nil {
		h.engine.AddItem(product)
	}
	view := h.engine.View()
	h.mu.Unlock()

	if err != nil {
		h.logger.Error("item_add_failed", "Failed to add item", requestID, err, map[string]interface{}{
			"product_id": req.ProductID,
		})
		h.writeEngineError(w, err, requestID)
		return
	}

	h.logger.Debug("item_added", "Item added to order", requestID, map[string]interface{}{
		"product_id": product.ID,
		"unit_price": product.UnitPrice.String(),
		"total":      view.Total.String(),
	})
	h.writeJSON(w, http.StatusOK, view, requestID)
}

// IncrementItem handles POST /order/items/{productId}/increment
func (h *Handler) IncrementItem(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.engine.IncrementLine(r.PathValue("productId"))
	view := h.engine.View()
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, view, requestIDFrom(r))
}

// DecrementItem handles POST /order/items/{productId}/decrement
func (h *Handler) DecrementItem(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.engine.DecrementLine(r.PathValue("productId"))
	view := h.engine.View()
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, view, requestIDFrom(r))
}

// SetPayment handles PUT /order/payment
func (h *Handler) SetPayment(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	var req paymentRequest
	if !h.decodeJSON(w, r, &req, requestID) {
		return
	}

	h.mu.Lock()
	h.engine.SetPaymentAmount(req.rawAmount())
	view := h.engine.View()
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, view, requestID)
}

// ClearOrder handles DELETE /order
func (h *Handler) ClearOrder(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.engine.Clear()
	view := h.engine.View()
	h.mu.Unlock()

	h.logger.Debug("order_cleared", "Order cleared", requestIDFrom(r), nil)
	h.writeJSON(w, http.StatusOK, view, requestIDFrom(r))
}

// SettleOrder handles POST /order/settle
func (h *Handler) SettleOrder(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	h.mu.Lock()
	record, err := h.engine.Settle(ctx)
	h.mu.Unlock()

	if err != nil {
		h.logger.Error("order_settle_failed", "Failed to settle order", requestID, err, nil)
		h.writeEngineError(w, err, requestID)
		return
	}

	h.logger.Info("order_settled", "Order settled", requestID, map[string]interface{}{
		"total":        record.Total.String(),
		"payment":      record.PaymentAmount.String(),
		"change":       record.Change.String(),
		"category_key": record.CategoryKey,
		"line_count":   len(record.LineDescriptions),
	})
	h.writeJSON(w, http.StatusOK, record, requestID)
}

// HealthCheck handles GET /health requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	healthy := true
	checks := make(map[string]string, len(h.checks))
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			healthy = false
			checks[c.Name] = err.Error()
			continue
		}
		checks[c.Name] = "ok"
	}

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "till-service",
		"healthy":   healthy,
		"checks":    checks,
	}
	if status, ok := h.catalog.(CatalogStatus); ok {
		response["catalog_version"] = status.Version()
		if at := status.RefreshedAt(); !at.IsZero() {
			response["catalog_refreshed_at"] = at.UTC().Format(time.RFC3339)
		}
	}

	statusCode := http.StatusOK
	if !healthy {
		statusCode = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
	}
	h.writeJSON(w, statusCode, response, requestIDFrom(r))
}

// SetupRoutes sets up the HTTP routes
func (h *Handler) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.withLogging(h.HealthCheck))
	mux.HandleFunc("GET /catalog/categories", h.withLogging(h.ListCategories))
	mux.HandleFunc("GET /catalog/products", h.withLogging(h.ListProducts))
	mux.HandleFunc("GET /order", h.withLogging(h.GetOrder))
	mux.HandleFunc("DELETE /order", h.withLogging(h.ClearOrder))
	mux.HandleFunc("PUT /order/category", h.withLogging(h.SelectCategory))
	mux.HandleFunc("POST /order/items", h.withLogging(h.AddItem))
	mux.HandleFunc("POST /order/items/{productId}/increment", h.withLogging(h.IncrementItem))
	mux.HandleFunc("POST /order/items/{productId}/decrement", h.withLogging(h.DecrementItem))
	mux.HandleFunc("PUT /order/payment", h.withLogging(h.SetPayment))
	mux.HandleFunc("POST /order/settle", h.withLogging(h.SettleOrder))

	return mux
}

// decodeJSON reads a JSON body into v, writing a 400 on failure.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, requestID string) bool {
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mediaType != "application/json" {
		h.writeErrorResponse(w, http.StatusBadRequest, "Content-Type must be application/json", requestID)
		return false
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		h.logger.Error("validation_failed", "Failed to parse request body", requestID, err, nil)
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON format", requestID)
		return false
	}
	return true
}

// writeEngineError maps engine errors onto HTTP status codes.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error, requestID string) {
	var ledgerErr *LedgerAppendError
	switch {
	case errors.Is(err, ErrEmptyOrder):
		h.writeErrorResponse(w, http.StatusConflict, "Order has no items", requestID)
	case errors.Is(err, ErrUnknownProduct):
		h.writeErrorResponse(w, http.StatusNotFound, "Product not found in active category", requestID)
	case errors.As(err, &ledgerErr):
		h.writeErrorResponse(w, http.StatusBadGateway, "Sale could not be recorded, order kept", requestID)
	default:
		h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, v interface{}, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", requestID, err, nil)
	}
}

// writeErrorResponse writes an error response in JSON format
func (h *Handler) writeErrorResponse(w http.ResponseWriter, statusCode int, message, requestID string) {
	h.writeJSON(w, statusCode, map[string]interface{}{
		"error":      message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestID,
	}, requestID)
}

type requestIDKey struct{}

func requestIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// withLogging adds request logging middleware
func (h *Handler) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := logger.GenerateRequestID()

		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID))
		w.Header().Set("X-Request-ID", requestID)

		h.logger.Debug("request_started",
			fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
				"user_agent":  r.Header.Get("User-Agent"),
			})

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		h.logger.Debug("request_completed",
			fmt.Sprintf("%s %s - %d", r.Method, r.URL.Path, rw.statusCode),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": rw.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
			})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
