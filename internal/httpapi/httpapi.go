package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"veggiemarket/backend/internal/domain"
	"veggiemarket/backend/internal/report"
	"veggiemarket/backend/internal/service"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	logger        *zap.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		logger:        logger.Named("http"),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	admin := []string{domain.RoleAdmin}
	counter := []string{domain.RoleAdmin, domain.RoleStaff}

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)

	mux.HandleFunc("GET /api/v1/products", a.requireAuth(a.handleListProducts, counter...))
	mux.HandleFunc("POST /api/v1/products", a.requireAuth(a.handleCreateProduct, admin...))
	mux.HandleFunc("GET /api/v1/products/{id}", a.requireAuth(a.handleGetProduct, counter...))
	mux.HandleFunc("PATCH /api/v1/products/{id}", a.requireAuth(a.handleUpdateProduct, admin...))
	mux.HandleFunc("DELETE /api/v1/products/{id}", a.requireAuth(a.handleDeleteProduct, admin...))

	mux.HandleFunc("GET /api/v1/customers", a.requireAuth(a.handleListCustomers, counter...))
	mux.HandleFunc("POST /api/v1/customers", a.requireAuth(a.handleCreateCustomer, counter...))
	mux.HandleFunc("GET /api/v1/customers/{id}", a.requireAuth(a.handleGetCustomer, counter...))
	mux.HandleFunc("PATCH /api/v1/customers/{id}", a.requireAuth(a.handleUpdateCustomer, admin...))
	mux.HandleFunc("DELETE /api/v1/customers/{id}", a.requireAuth(a.handleDeleteCustomer, admin...))

	mux.HandleFunc("GET /api/v1/tabs", a.requireAuth(a.handleListTabs, counter...))
	mux.HandleFunc("POST /api/v1/tabs", a.requireAuth(a.handleCreateTab, counter...))
	mux.HandleFunc("GET /api/v1/tabs/{id}", a.requireAuth(a.handleGetTab, counter...))
	mux.HandleFunc("DELETE /api/v1/tabs/{id}", a.requireAuth(a.handleCloseTab, counter...))
	mux.HandleFunc("POST /api/v1/tabs/{id}/activate", a.requireAuth(a.handleActivateTab, counter...))
	mux.HandleFunc("POST /api/v1/tabs/{id}/lines", a.requireAuth(a.handleAddLine, counter...))
	mux.HandleFunc("PATCH /api/v1/tabs/{id}/lines/{productID}", a.requireAuth(a.handleSetLineQuantity, counter...))
	mux.HandleFunc("DELETE /api/v1/tabs/{id}/lines/{productID}", a.requireAuth(a.handleRemoveLine, counter...))
	mux.HandleFunc("POST /api/v1/tabs/{id}/clear", a.requireAuth(a.handleClearTab, counter...))
	mux.HandleFunc("PUT /api/v1/tabs/{id}/customer", a.requireAuth(a.handleBindCustomer, counter...))
	mux.HandleFunc("POST /api/v1/tabs/{id}/commit", a.requireAuth(a.handleCommitSale, counter...))

	mux.HandleFunc("GET /api/v1/sales", a.requireAuth(a.handleListSales, counter...))
	mux.HandleFunc("GET /api/v1/sales/{id}", a.requireAuth(a.handleGetSale, counter...))
	mux.HandleFunc("POST /api/v1/sales/{id}/resync", a.requireAuth(a.handleResyncSale, admin...))

	mux.HandleFunc("GET /api/v1/suppliers", a.requireAuth(a.handleListSuppliers, admin...))
	mux.HandleFunc("POST /api/v1/suppliers", a.requireAuth(a.handleCreateSupplier, admin...))
	mux.HandleFunc("PATCH /api/v1/suppliers/{id}", a.requireAuth(a.handleUpdateSupplier, admin...))
	mux.HandleFunc("DELETE /api/v1/suppliers/{id}", a.requireAuth(a.handleDeleteSupplier, admin...))

	mux.HandleFunc("GET /api/v1/expenses", a.requireAuth(a.handleListExpenses, admin...))
	mux.HandleFunc("GET /api/v1/expenses/categories", a.requireAuth(a.handleExpenseCategories, admin...))
	mux.HandleFunc("POST /api/v1/expenses", a.requireAuth(a.handleCreateExpense, admin...))
	mux.HandleFunc("DELETE /api/v1/expenses/{id}", a.requireAuth(a.handleDeleteExpense, admin...))

	mux.HandleFunc("GET /api/v1/purchase-orders", a.requireAuth(a.handleListPurchaseOrders, admin...))
	mux.HandleFunc("POST /api/v1/purchase-orders", a.requireAuth(a.handleCreatePurchaseOrder, admin...))
	mux.HandleFunc("POST /api/v1/purchase-orders/{id}/receive", a.requireAuth(a.handleReceivePurchaseOrder, admin...))
	mux.HandleFunc("POST /api/v1/purchase-orders/{id}/cancel", a.requireAuth(a.handleCancelPurchaseOrder, admin...))

	mux.HandleFunc("GET /api/v1/reports", a.requireAuth(a.handleReport, admin...))
	mux.HandleFunc("GET /api/v1/reports/sales.csv", a.requireAuth(a.handleSalesCSV, admin...))
	mux.HandleFunc("GET /api/v1/reports/low-stock", a.requireAuth(a.handleLowStock, counter...))

	mux.HandleFunc("GET /api/v1/erp/status", a.requireAuth(a.handleERPStatus, admin...))
	mux.HandleFunc("POST /api/v1/erp/test", a.requireAuth(a.handleERPTest, admin...))
	mux.HandleFunc("POST /api/v1/erp/sync", a.requireAuth(a.handleERPSync, admin...))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"products": a.service.ListProducts(r.Context())})
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteProduct(r.Context(), r.PathValue("id")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"customers": a.service.ListCustomers(r.Context())})
}

func (a *API) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := a.service.GetCustomer(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	customer, err := a.service.CreateCustomer(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
}

func (a *API) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	customer, err := a.service.UpdateCustomer(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

func (a *API) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteCustomer(r.Context(), r.PathValue("id")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleListTabs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.service.ListTabs(r.Context()))
}

func (a *API) handleCreateTab(w http.ResponseWriter, r *http.Request) {
	tab, err := a.service.CreateTab(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"tab": tab})
}

func (a *API) handleGetTab(w http.ResponseWriter, r *http.Request) {
	tab, err := a.service.GetTab(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tab": tab})
}

func (a *API) handleCloseTab(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.CloseTab(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleActivateTab(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.ActivateTab(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleAddLine(w http.ResponseWriter, r *http.Request) {
	var req domain.AddLineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	a.writeTab(w, r)(a.service.AddLine(r.Context(), r.PathValue("id"), req))
}

func (a *API) handleSetLineQuantity(w http.ResponseWriter, r *http.Request) {
	var req domain.SetLineQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	a.writeTab(w, r)(a.service.SetLineQuantity(r.Context(), r.PathValue("id"), r.PathValue("productID"), req))
}

func (a *API) handleRemoveLine(w http.ResponseWriter, r *http.Request) {
	a.writeTab(w, r)(a.service.RemoveLine(r.Context(), r.PathValue("id"), r.PathValue("productID")))
}

func (a *API) handleClearTab(w http.ResponseWriter, r *http.Request) {
	a.writeTab(w, r)(a.service.ClearTab(r.Context(), r.PathValue("id")))
}

func (a *API) handleBindCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.BindCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	a.writeTab(w, r)(a.service.BindCustomer(r.Context(), r.PathValue("id"), req))
}

func (a *API) writeTab(w http.ResponseWriter, r *http.Request) func(domain.Tab, error) {
	return func(tab domain.Tab, err error) {
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tab": tab})
	}
}

func (a *API) handleCommitSale(w http.ResponseWriter, r *http.Request) {
	var req domain.CommitSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sale, err := a.service.CommitSale(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 1000)
	writeJSON(w, http.StatusOK, map[string]any{"sales": a.service.ListSales(r.Context(), limit)})
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.GetSale(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleResyncSale(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.ResyncSale(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"suppliers": a.service.ListSuppliers(r.Context())})
}

func (a *API) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req domain.SupplierCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	supplier, err := a.service.CreateSupplier(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"supplier": supplier})
}

func (a *API) handleUpdateSupplier(w http.ResponseWriter, r *http.Request) {
	var req domain.SupplierUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	supplier, err := a.service.UpdateSupplier(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"supplier": supplier})
}

func (a *API) handleDeleteSupplier(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteSupplier(r.Context(), r.PathValue("id")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"expenses": a.service.ListExpenses(r.Context())})
}

func (a *API) handleExpenseCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": a.service.ExpenseCategories()})
}

func (a *API) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpenseCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	expense, err := a.service.CreateExpense(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"expense": expense})
}

func (a *API) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteExpense(r.Context(), r.PathValue("id")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleListPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	status := domain.PurchaseOrderStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))
	writeJSON(w, http.StatusOK, map[string]any{"purchase_orders": a.service.ListPurchaseOrders(r.Context(), status)})
}

func (a *API) handleCreatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.PurchaseOrderCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	order, err := a.service.CreatePurchaseOrder(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"purchase_order": order})
}

func (a *API) handleReceivePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.ReceivePurchaseOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"purchase_order": order})
}

func (a *API) handleCancelPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.CancelPurchaseOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"purchase_order": order})
}

func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	period, start, end, err := parseReportQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rep, err := a.service.Report(r.Context(), period, start, end)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *API) handleSalesCSV(w http.ResponseWriter, r *http.Request) {
	period, start, end, err := parseReportQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var buf bytes.Buffer
	if err := a.service.WriteSalesCSV(r.Context(), &buf, period, start, end); err != nil {
		a.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"sales-%s.csv\"", period))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"products": a.service.LowStock(r.Context())})
}

func (a *API) handleERPStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.service.SyncOverview(r.Context()))
}

func (a *API) handleERPTest(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.TestERPConnection(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleERPSync(w http.ResponseWriter, r *http.Request) {
	kind := domain.SyncKind(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("kind"))))
	results, err := a.service.SyncERP(r.Context(), kind)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// parseReportQuery reads period, start and end. Dates are either YYYY-MM-DD
// or RFC 3339.
func parseReportQuery(r *http.Request) (report.Period, *time.Time, *time.Time, error) {
	query := r.URL.Query()
	period := report.Period(strings.ToLower(strings.TrimSpace(query.Get("period"))))
	if period == "" {
		period = report.PeriodToday
	}
	start, err := parseDateParam(query.Get("start"))
	if err != nil {
		return "", nil, nil, fmt.Errorf("start: %w", err)
	}
	end, err := parseDateParam(query.Get("end"))
	if err != nil {
		return "", nil, nil, fmt.Errorf("end: %w", err)
	}
	return period, start, end, nil
}

func parseDateParam(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", raw)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(startedAt)),
			zap.String("client", clientKey(r)),
		)
	})
}

// fail maps a service error onto a status code. Stock conflicts carry the
// per-line shortages so the counter can show what ran out.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *domain.StockConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     err.Error(),
			"shortages": conflict.Shortages,
		})
		return
	}

	status := statusFor(err)
	if status >= 500 {
		a.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicate),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrStockConflict),
		errors.Is(err, domain.ErrPriceConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmptyCart), errors.Is(err, domain.ErrInsufficientPayment):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSyncFailure), errors.Is(err, domain.ErrConnectionFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies never carry the underlying error.
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
