package erp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"resty.dev/v3"

	"veggiemarket/backend/internal/domain"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Username    string
	Password    string
	TaxPercent  decimal.Decimal
	Timeout     time.Duration
	Concurrency int
}

// Client talks to the Dolibarr REST API under <base>/api/index.php.
type Client struct {
	http        *resty.Client
	taxPercent  decimal.Decimal
	concurrency int
	logger      *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("%w: erp base url required", domain.ErrInvalidInput)
	}
	if cfg.APIKey == "" && (cfg.Username == "" || cfg.Password == "") {
		return nil, fmt.Errorf("%w: erp api key or username and password required", domain.ErrInvalidInput)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	if cfg.TaxPercent.IsZero() {
		cfg.TaxPercent = decimal.NewFromInt(18)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hc := resty.New()
	hc.SetBaseURL(base + "/api/index.php")
	hc.SetTimeout(cfg.Timeout)
	hc.SetHeader("Accept", "application/json")
	hc.SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		hc.SetHeader("DOLAPIKEY", cfg.APIKey)
	} else {
		hc.SetBasicAuth(cfg.Username, cfg.Password)
	}

	return &Client{
		http:        hc,
		taxPercent:  cfg.TaxPercent,
		concurrency: cfg.Concurrency,
		logger:      logger.Named("erp"),
	}, nil
}

func (c *Client) Close() error {
	return c.http.Close()
}

func (c *Client) TestConnection(ctx context.Context) ConnectionResult {
	if err := c.do(ctx, http.MethodGet, "status", nil, nil); err != nil {
		return ConnectionResult{Success: false, Message: err.Error()}
	}
	return ConnectionResult{Success: true, Message: "Connection successful"}
}

func (c *Client) SyncSale(ctx context.Context, sale domain.Sale) SaleResult {
	var created json.RawMessage
	if err := c.do(ctx, http.MethodPost, "invoices", buildInvoice(sale, c.taxPercent), &created); err != nil {
		return SaleResult{Error: err.Error()}
	}
	invoiceID, ok := parseCreatedID(created)
	if !ok {
		return SaleResult{Error: fmt.Sprintf("%s: invoice id missing in response", domain.ErrSyncFailure)}
	}

	if err := c.do(ctx, http.MethodPost, "invoices/"+url.PathEscape(invoiceID)+"/validate", map[string]any{}, nil); err != nil {
		return SaleResult{ExternalID: invoiceID, Error: err.Error()}
	}

	var failures []string
	for _, line := range sale.Lines {
		productID, ok := numericRef(line.Product.ExternalID)
		if !ok {
			continue
		}
		if err := c.decrementStock(ctx, productID, line.Quantity); err != nil {
			failures = append(failures, err.Error())
		}
	}
	if len(failures) > 0 {
		return SaleResult{ExternalID: invoiceID, Error: strings.Join(failures, "; ")}
	}

	c.logger.Info("sale mirrored", zap.String("receipt", sale.ReceiptNumber), zap.String("invoice_id", invoiceID))
	return SaleResult{Success: true, ExternalID: invoiceID}
}

func (c *Client) SyncProducts(ctx context.Context, products []domain.Product) BatchResult {
	var remote []remoteRecord
	if err := c.do(ctx, http.MethodGet, "products", nil, &remote); err != nil {
		return BatchResult{Errors: []string{err.Error()}}
	}

	return c.pushAll(ctx, knownIDs(remote), len(products), func(i int) (int64, string, any) {
		p := products[i]
		id, _ := numericRef(p.ExternalID)
		return id, p.Name, map[string]any{
			"label":              p.Name,
			"price":              p.Price,
			"stock_reel":         p.Stock,
			"seuil_stock_alerte": p.MinStock,
			"barcode":            p.Barcode,
		}
	}, "products")
}

func (c *Client) SyncCustomers(ctx context.Context, customers []domain.Customer) BatchResult {
	var remote []remoteRecord
	if err := c.do(ctx, http.MethodGet, "thirdparties?mode=customer", nil, &remote); err != nil {
		return BatchResult{Errors: []string{err.Error()}}
	}

	return c.pushAll(ctx, knownIDs(remote), len(customers), func(i int) (int64, string, any) {
		cu := customers[i]
		id, _ := numericRef(cu.ExternalID)
		return id, cu.Name, map[string]any{
			"name":              cu.Name,
			"email":             cu.Email,
			"phone":             cu.Phone,
			"address":           cu.Address,
			"outstanding_limit": cu.CreditLimit,
			"client":            1,
		}
	}, "thirdparties")
}

// pushAll updates every record that already exists in the ERP, at most
// c.concurrency requests at a time. Unmapped records are reported, not created.
func (c *Client) pushAll(ctx context.Context, known map[int64]bool, n int, record func(int) (int64, string, any), resource string) BatchResult {
	var (
		mu     sync.Mutex
		synced int
		errs   []string
	)
	fail := func(msg string) {
		mu.Lock()
		errs = append(errs, msg)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := 0; i < n; i++ {
		id, name, payload := record(i)
		if id == 0 || !known[id] {
			fail(fmt.Sprintf("%s is not mapped to an erp record", name))
			continue
		}
		g.Go(func() error {
			if err := c.do(gctx, http.MethodPut, resource+"/"+strconv.FormatInt(id, 10), payload, nil); err != nil {
				fail(fmt.Sprintf("%s: %v", name, err))
				return nil
			}
			mu.Lock()
			synced++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(errs)
	return BatchResult{Success: len(errs) == 0, SyncedCount: synced, Errors: errs}
}

func (c *Client) decrementStock(ctx context.Context, productID int64, qty decimal.Decimal) error {
	path := "products/" + strconv.FormatInt(productID, 10)
	var current remoteRecord
	if err := c.do(ctx, http.MethodGet, path, nil, &current); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, path, map[string]any{"stock_reel": current.StockReel.Sub(qty)}, nil)
}

func (c *Client) do(ctx context.Context, method string, path string, body any, result any) error {
	startedAt := time.Now()
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	var (
		resp *resty.Response
		err  error
	)
	switch method {
	case http.MethodGet:
		resp, err = req.Get(path)
	case http.MethodPost:
		resp, err = req.Post(path)
	case http.MethodPut:
		resp, err = req.Put(path)
	default:
		return fmt.Errorf("unsupported method %s", method)
	}
	if err != nil {
		c.logger.Warn("erp request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %s %s: %w", domain.ErrConnectionFailure, method, path, err)
	}

	c.logger.Debug("erp request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("took", time.Since(startedAt)),
	)
	if resp.IsError() {
		return fmt.Errorf("%w: %s %s: status %d", domain.ErrSyncFailure, method, path, resp.StatusCode())
	}
	if result != nil {
		if err := json.Unmarshal([]byte(resp.String()), result); err != nil {
			return fmt.Errorf("%w: %s %s: decode response: %w", domain.ErrSyncFailure, method, path, err)
		}
	}
	return nil
}

// remoteRecord holds the fields read back from products and third parties.
// Dolibarr encodes numbers as either JSON numbers or strings.
type remoteRecord struct {
	ID        remoteID        `json:"id"`
	Name      string          `json:"name"`
	Label     string          `json:"label"`
	StockReel decimal.Decimal `json:"stock_reel"`
}

type remoteID string

func (r *remoteID) UnmarshalJSON(b []byte) error {
	*r = remoteID(strings.Trim(string(b), `"`))
	return nil
}

func knownIDs(records []remoteRecord) map[int64]bool {
	known := make(map[int64]bool, len(records))
	for _, r := range records {
		if id, ok := numericRef(string(r.ID)); ok {
			known[id] = true
		}
	}
	return known
}

// parseCreatedID accepts a bare id or an object carrying one.
func parseCreatedID(raw json.RawMessage) (string, bool) {
	var rec remoteRecord
	if err := json.Unmarshal(raw, &rec); err == nil && rec.ID != "" {
		return string(rec.ID), true
	}
	var id remoteID
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", false
	}
	if _, ok := numericRef(string(id)); !ok {
		return "", false
	}
	return string(id), true
}

var errNotConfigured = errors.New("erp integration is disabled")
