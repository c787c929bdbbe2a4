package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"veggiemarket/backend/internal/domain"
	"veggiemarket/backend/internal/erp"
	"veggiemarket/backend/internal/report"
	"veggiemarket/backend/internal/service"
	"veggiemarket/backend/internal/state"
	"veggiemarket/backend/internal/syncer"
)

// newTestAPI builds a full API over a seeded in-process store, real
// AuthManager and the demo ERP so handler tests exercise the complete
// request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	st := state.NewStore(state.NewSeeded("tab-1", time.Now().UTC()), state.Policy{})
	sync := syncer.New(erp.NewDemo(), st, syncer.Config{Timeout: time.Second})
	st.Subscribe(sync.HandleEvent)
	t.Cleanup(func() { _ = sync.Close() })

	svc := service.New(st, report.NewEngine(nil, 0, nil), sync)
	auth, err := NewAuthManager("test-secret-key", time.Hour,
		Account{Username: "admin", Password: "admin123", Role: domain.RoleAdmin},
		Account{Username: "staff", Password: "staff123", Role: domain.RoleStaff},
	)
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}
	return New(svc, auth, "*", nil)
}

func login(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("%s login failed, status %d", username, res.Code)
	}

	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		t.Fatalf("expected access token in login response")
	}
	return payload.AccessToken
}

func call(t *testing.T, handler http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v (raw: %s)", err, rec.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := call(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := call(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := call(t, handler, http.MethodGet, "/api/v1/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_StaffReadsButCannotCreate(t *testing.T) {
	handler := newTestAPI(t).Handler()
	staff := login(t, handler, "staff", "staff123")

	rec := call(t, handler, http.MethodGet, "/api/v1/products", staff, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Products []domain.Product `json:"products"`
	}
	decodeBody(t, rec, &body)
	if len(body.Products) != 5 {
		t.Fatalf("expected seeded catalog, got %d products", len(body.Products))
	}

	rec = call(t, handler, http.MethodPost, "/api/v1/products", staff, map[string]any{
		"name": "Leeks", "category": "Vegetables", "price": "25000", "unit": "bunch", "stock": "10", "min_stock": "2",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", rec.Code)
	}

	admin := login(t, handler, "admin", "admin123")
	rec = call(t, handler, http.MethodPost, "/api/v1/products", admin, map[string]any{
		"name": "Leeks", "category": "Vegetables", "price": "25000", "unit": "bunch", "stock": "10", "min_stock": "2",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = call(t, handler, http.MethodGet, "/api/v1/products/missing", staff, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCheckoutFlow(t *testing.T) {
	handler := newTestAPI(t).Handler()
	staff := login(t, handler, "staff", "staff123")

	rec := call(t, handler, http.MethodPost, "/api/v1/tabs/tab-1/lines", staff, map[string]any{
		"product_id": "1", "quantity": "2.5",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add line: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = call(t, handler, http.MethodPut, "/api/v1/tabs/tab-1/customer", staff, map[string]any{"customer_id": "1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("bind customer: expected 200, got %d", rec.Code)
	}

	rec = call(t, handler, http.MethodPost, "/api/v1/tabs/tab-1/commit", staff, map[string]any{
		"payment_method": "cash", "amount_tendered": "200000",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("commit: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var committed struct {
		Sale domain.Sale `json:"sale"`
	}
	decodeBody(t, rec, &committed)
	if committed.Sale.Cashier != "staff" || committed.Sale.CustomerRef != "1" {
		t.Fatalf("unexpected sale %+v", committed.Sale)
	}
	if committed.Sale.Change.String() != "31250" {
		t.Fatalf("expected change 31250, got %s", committed.Sale.Change)
	}

	rec = call(t, handler, http.MethodGet, "/api/v1/sales/"+committed.Sale.ReceiptNumber, staff, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get sale: expected 200, got %d", rec.Code)
	}

	rec = call(t, handler, http.MethodGet, "/api/v1/products/1", staff, nil)
	var product struct {
		Product domain.Product `json:"product"`
	}
	decodeBody(t, rec, &product)
	if product.Product.Stock.String() != "147.5" {
		t.Fatalf("expected stock 147.5, got %s", product.Product.Stock)
	}

	rec = call(t, handler, http.MethodPost, "/api/v1/tabs/tab-1/commit", staff, map[string]any{"payment_method": "cash"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty commit: expected 422, got %d", rec.Code)
	}
}

func TestCommitReportsStockConflict(t *testing.T) {
	handler := newTestAPI(t).Handler()
	staff := login(t, handler, "staff", "staff123")

	rec := call(t, handler, http.MethodPost, "/api/v1/tabs", staff, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create tab: expected 201, got %d", rec.Code)
	}
	var created struct {
		Tab domain.Tab `json:"tab"`
	}
	decodeBody(t, rec, &created)

	for _, tabID := range []string{"tab-1", created.Tab.ID} {
		rec = call(t, handler, http.MethodPost, "/api/v1/tabs/"+tabID+"/lines", staff, map[string]any{
			"product_id": "5", "quantity": "60",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("add line to %s: expected 200, got %d", tabID, rec.Code)
		}
	}

	rec = call(t, handler, http.MethodPost, "/api/v1/tabs/tab-1/commit", staff, map[string]any{"payment_method": "card"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("first commit: expected 201, got %d", rec.Code)
	}

	rec = call(t, handler, http.MethodPost, "/api/v1/tabs/"+created.Tab.ID+"/commit", staff, map[string]any{"payment_method": "card"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second commit: expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var conflict struct {
		Shortages []domain.StockShortage `json:"shortages"`
	}
	decodeBody(t, rec, &conflict)
	if len(conflict.Shortages) != 1 || conflict.Shortages[0].Available.String() != "20" {
		t.Fatalf("unexpected shortages %+v", conflict.Shortages)
	}

	rec = call(t, handler, http.MethodPost, "/api/v1/tabs/tab-1/lines", staff, map[string]any{
		"product_id": "5", "quantity": "1.5",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("fractional piece quantity: expected 400, got %d", rec.Code)
	}
}

func TestTabRoutes(t *testing.T) {
	handler := newTestAPI(t).Handler()
	staff := login(t, handler, "staff", "staff123")

	rec := call(t, handler, http.MethodPost, "/api/v1/tabs", staff, nil)
	var created struct {
		Tab domain.Tab `json:"tab"`
	}
	decodeBody(t, rec, &created)

	rec = call(t, handler, http.MethodPost, "/api/v1/tabs/tab-1/activate", staff, nil)
	var view service.TabsView
	decodeBody(t, rec, &view)
	if view.ActiveTabID != "tab-1" || len(view.Tabs) != 2 {
		t.Fatalf("unexpected tabs view %+v", view)
	}

	call(t, handler, http.MethodPost, "/api/v1/tabs/tab-1/lines", staff, map[string]any{"product_id": "2", "quantity": "3"})
	rec = call(t, handler, http.MethodPatch, "/api/v1/tabs/tab-1/lines/2", staff, map[string]any{"quantity": "0"})
	var tab struct {
		Tab domain.Tab `json:"tab"`
	}
	decodeBody(t, rec, &tab)
	if len(tab.Tab.Lines) != 0 {
		t.Fatalf("expected zero quantity to remove the line")
	}

	rec = call(t, handler, http.MethodDelete, "/api/v1/tabs/tab-1/lines/2", staff, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 removing a missing line, got %d", rec.Code)
	}

	rec = call(t, handler, http.MethodDelete, "/api/v1/tabs/"+created.Tab.ID, staff, nil)
	decodeBody(t, rec, &view)
	if len(view.Tabs) != 1 {
		t.Fatalf("expected one tab left, got %d", len(view.Tabs))
	}

	rec = call(t, handler, http.MethodDelete, "/api/v1/tabs/ghost", staff, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected closing an unknown tab to succeed, got %d", rec.Code)
	}

	rec = call(t, handler, http.MethodGet, "/api/v1/tabs/nope", staff, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown tab, got %d", rec.Code)
	}
}

func TestBackOfficeRoutesAreAdminOnly(t *testing.T) {
	handler := newTestAPI(t).Handler()
	staff := login(t, handler, "staff", "staff123")
	admin := login(t, handler, "admin", "admin123")

	for _, path := range []string{"/api/v1/suppliers", "/api/v1/expenses", "/api/v1/purchase-orders", "/api/v1/reports", "/api/v1/erp/status"} {
		if rec := call(t, handler, http.MethodGet, path, staff, nil); rec.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403 for staff, got %d", path, rec.Code)
		}
		if rec := call(t, handler, http.MethodGet, path, admin, nil); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 for admin, got %d", path, rec.Code)
		}
	}
}

func TestPurchaseOrderRoutes(t *testing.T) {
	handler := newTestAPI(t).Handler()
	admin := login(t, handler, "admin", "admin123")

	rec := call(t, handler, http.MethodPost, "/api/v1/purchase-orders", admin, map[string]any{
		"supplier_id": "2",
		"items":       []map[string]any{{"product_id": "2", "quantity": "50", "unit_price": "30000"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Order domain.PurchaseOrder `json:"purchase_order"`
	}
	decodeBody(t, rec, &created)

	rec = call(t, handler, http.MethodPost, "/api/v1/purchase-orders/"+created.Order.ID+"/receive", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("receive: expected 200, got %d", rec.Code)
	}
	rec = call(t, handler, http.MethodPost, "/api/v1/purchase-orders/"+created.Order.ID+"/cancel", admin, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("cancel after receive: expected 400, got %d", rec.Code)
	}

	rec = call(t, handler, http.MethodGet, "/api/v1/purchase-orders?status=received", admin, nil)
	var list struct {
		Orders []domain.PurchaseOrder `json:"purchase_orders"`
	}
	decodeBody(t, rec, &list)
	if len(list.Orders) != 1 {
		t.Fatalf("expected one received order, got %d", len(list.Orders))
	}
}

func TestReportRoutes(t *testing.T) {
	handler := newTestAPI(t).Handler()
	admin := login(t, handler, "admin", "admin123")

	call(t, handler, http.MethodPost, "/api/v1/tabs/tab-1/lines", admin, map[string]any{"product_id": "3", "quantity": "4"})
	if rec := call(t, handler, http.MethodPost, "/api/v1/tabs/tab-1/commit", admin, map[string]any{"payment_method": "upi"}); rec.Code != http.StatusCreated {
		t.Fatalf("commit: expected 201, got %d", rec.Code)
	}

	rec := call(t, handler, http.MethodGet, "/api/v1/reports?period=today", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("report: expected 200, got %d", rec.Code)
	}
	var rep report.Report
	decodeBody(t, rec, &rep)
	if rep.Summary.Transactions != 1 || rep.Summary.Revenue.String() != "150000" {
		t.Fatalf("unexpected summary %+v", rep.Summary)
	}

	rec = call(t, handler, http.MethodGet, "/api/v1/reports/sales.csv?period=all", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("csv: expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/csv") {
		t.Fatalf("expected csv content type, got %q", got)
	}
	if !strings.HasPrefix(rec.Body.String(), "Receipt,") {
		t.Fatalf("expected csv header, got %q", rec.Body.String())
	}

	rec = call(t, handler, http.MethodGet, "/api/v1/reports?period=custom&start=2026-03-10", admin, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("custom without end: expected 400, got %d", rec.Code)
	}
	rec = call(t, handler, http.MethodGet, "/api/v1/reports?period=custom&start=yesterday&end=2026-03-10", admin, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: expected 400, got %d", rec.Code)
	}
}

func TestERPRoutes(t *testing.T) {
	handler := newTestAPI(t).Handler()
	admin := login(t, handler, "admin", "admin123")

	rec := call(t, handler, http.MethodPost, "/api/v1/erp/sync?kind=products", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sync: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var synced struct {
		Results map[domain.SyncKind]erp.BatchResult `json:"results"`
	}
	decodeBody(t, rec, &synced)
	if !synced.Results[domain.SyncProducts].Success {
		t.Fatalf("unexpected results %+v", synced.Results)
	}

	rec = call(t, handler, http.MethodPost, "/api/v1/erp/sync?kind=sales", admin, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown kind: expected 400, got %d", rec.Code)
	}

	rec = call(t, handler, http.MethodPost, "/api/v1/erp/test", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("test connection: expected 200, got %d", rec.Code)
	}

	rec = call(t, handler, http.MethodGet, "/api/v1/erp/status", admin, nil)
	var overview domain.SyncOverview
	decodeBody(t, rec, &overview)
	if !overview.Connected || overview.Kinds[domain.SyncProducts].State != domain.SyncSuccess {
		t.Fatalf("unexpected overview %+v", overview)
	}

	rec = call(t, handler, http.MethodPost, "/api/v1/sales/unknown/resync", admin, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("resync unknown: expected 404, got %d", rec.Code)
	}
}
