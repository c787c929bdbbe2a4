package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"veggiemarket/backend/internal/domain"
	"veggiemarket/backend/internal/erp"
	"veggiemarket/backend/internal/report"
	"veggiemarket/backend/internal/state"
	"veggiemarket/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// ERPSync is the part of the syncer the service drives on demand.
type ERPSync interface {
	SyncProducts(ctx context.Context) erp.BatchResult
	SyncCustomers(ctx context.Context) erp.BatchResult
	SyncAll(ctx context.Context) map[domain.SyncKind]erp.BatchResult
	ResyncSale(ctx context.Context, id string) (erp.SaleResult, error)
	TestConnection(ctx context.Context) erp.ConnectionResult
	Overview() domain.SyncOverview
}

type Service struct {
	store   *state.Store
	reports *report.Engine
	sync    ERPSync
	logger  *zap.Logger
	audit   *zap.Logger
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(store *state.Store, reports *report.Engine, sync ERPSync, opts ...Option) *Service {
	if reports == nil {
		reports = report.NewEngine(nil, 0, nil)
	}
	s := &Service{
		store:   store,
		reports: reports,
		sync:    sync,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.audit = s.logger.Named("audit")
	return s
}

type TabsView struct {
	Tabs        []domain.Tab `json:"tabs"`
	ActiveTabID string       `json:"active_tab_id"`
}

func tabsView(st state.State) TabsView {
	return TabsView{Tabs: st.Tabs, ActiveTabID: st.ActiveTab().ID}
}

func (s *Service) ListTabs(_ context.Context) TabsView {
	return tabsView(s.store.State())
}

func (s *Service) GetTab(_ context.Context, tabID string) (domain.Tab, error) {
	tab, ok := s.store.State().Tab(tabID)
	if !ok {
		return domain.Tab{}, fmt.Errorf("%w: tab %s", domain.ErrNotFound, tabID)
	}
	return tab, nil
}

func (s *Service) CreateTab(ctx context.Context) (domain.Tab, error) {
	tabID := xid.New("tab")
	st, err := s.dispatch(ctx, state.CreateTab{TabID: tabID})
	if err != nil {
		return domain.Tab{}, err
	}
	tab, _ := st.Tab(tabID)
	return tab, nil
}

// CloseTab discards the tab and its lines. Closing the only tab keeps it open.
func (s *Service) CloseTab(ctx context.Context, tabID string) (TabsView, error) {
	st, err := s.dispatch(ctx, state.CloseTab{TabID: tabID})
	if err != nil {
		return TabsView{}, err
	}
	return tabsView(st), nil
}

func (s *Service) ActivateTab(ctx context.Context, tabID string) (TabsView, error) {
	st, err := s.dispatch(ctx, state.SetActiveTab{TabID: tabID})
	if err != nil {
		return TabsView{}, err
	}
	return tabsView(st), nil
}

func (s *Service) AddLine(ctx context.Context, tabID string, req domain.AddLineRequest) (domain.Tab, error) {
	if err := req.Validate(); err != nil {
		return domain.Tab{}, err
	}
	return s.tabCommand(ctx, tabID, state.AddLine{
		TabID:         tabID,
		ProductID:     strings.TrimSpace(req.ProductID),
		Quantity:      req.Quantity,
		PriceOverride: req.PriceOverride,
	})
}

// SetLineQuantity replaces a line's quantity; zero or less removes the line.
func (s *Service) SetLineQuantity(ctx context.Context, tabID string, productID string, req domain.SetLineQuantityRequest) (domain.Tab, error) {
	return s.tabCommand(ctx, tabID, state.SetLineQuantity{TabID: tabID, ProductID: productID, Quantity: req.Quantity})
}

func (s *Service) RemoveLine(ctx context.Context, tabID string, productID string) (domain.Tab, error) {
	return s.tabCommand(ctx, tabID, state.RemoveLine{TabID: tabID, ProductID: productID})
}

func (s *Service) ClearTab(ctx context.Context, tabID string) (domain.Tab, error) {
	return s.tabCommand(ctx, tabID, state.ClearTab{TabID: tabID})
}

func (s *Service) BindCustomer(ctx context.Context, tabID string, req domain.BindCustomerRequest) (domain.Tab, error) {
	return s.tabCommand(ctx, tabID, state.BindCustomer{TabID: tabID, CustomerID: strings.TrimSpace(req.CustomerID)})
}

func (s *Service) tabCommand(ctx context.Context, tabID string, cmd state.Command) (domain.Tab, error) {
	st, err := s.dispatch(ctx, cmd)
	if err != nil {
		return domain.Tab{}, err
	}
	tab, _ := st.Tab(tabID)
	return tab, nil
}

// CommitSale finalizes the tab into a sale. The result never waits on the ERP.
func (s *Service) CommitSale(ctx context.Context, tabID string, req domain.CommitSaleRequest) (domain.Sale, error) {
	if err := req.Validate(); err != nil {
		return domain.Sale{}, err
	}
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system"}
	}

	_, events, err := s.store.Dispatch(ctx, state.CommitSale{
		TabID:          tabID,
		SaleID:         xid.New("sale"),
		PaymentMethod:  req.PaymentMethod,
		AmountTendered: req.AmountTendered,
		Cashier:        actor.Username,
		At:             s.now().UTC(),
	})
	if err != nil {
		return domain.Sale{}, err
	}

	for _, event := range events {
		if committed, ok := event.(state.SaleCommitted); ok {
			sale := committed.Sale
			s.logAudit(ctx, "sale_commit", "sale", sale.ID, fmt.Sprintf("receipt=%s,total=%s,method=%s", sale.ReceiptNumber, sale.Total, sale.PaymentMethod))
			return sale, nil
		}
	}
	return domain.Sale{}, fmt.Errorf("commit produced no sale")
}

// ListSales returns up to limit sales, newest first. limit < 1 returns all.
func (s *Service) ListSales(_ context.Context, limit int) []domain.Sale {
	sales := s.store.State().Sales
	if limit > 0 && limit < len(sales) {
		sales = sales[:limit]
	}
	return sales
}

func (s *Service) GetSale(_ context.Context, id string) (domain.Sale, error) {
	sale, ok := s.store.State().Sale(id)
	if !ok {
		return domain.Sale{}, fmt.Errorf("%w: sale %s", domain.ErrNotFound, id)
	}
	return sale, nil
}

func (s *Service) ListProducts(_ context.Context) []domain.Product {
	return s.store.State().Products
}

func (s *Service) GetProduct(_ context.Context, id string) (domain.Product, error) {
	product, ok := s.store.State().Product(id)
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}
	return product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if err := req.Validate(); err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		ID:         defaultString(strings.TrimSpace(req.ID), xid.New("prod")),
		Name:       strings.TrimSpace(req.Name),
		Category:   strings.TrimSpace(req.Category),
		Price:      req.Price,
		Unit:       req.Unit,
		Stock:      req.Stock,
		MinStock:   req.MinStock,
		Barcode:    strings.TrimSpace(req.Barcode),
		Supplier:   strings.TrimSpace(req.Supplier),
		ExternalID: strings.TrimSpace(req.ExternalID),
	}
	if _, err := s.dispatch(ctx, state.AddProduct{Product: product}); err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", product.ID, fmt.Sprintf("name=%s,price=%s,stock=%s", product.Name, product.Price, product.Stock))
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if err := req.Validate(); err != nil {
		return domain.Product{}, err
	}

	st, err := s.dispatch(ctx, state.UpdateProduct{ProductID: id, Patch: req})
	if err != nil {
		return domain.Product{}, err
	}
	updated, _ := st.Product(id)
	s.logAudit(ctx, "product_update", "product", updated.ID, fmt.Sprintf("price=%s,stock=%s", updated.Price, updated.Stock))
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if _, err := s.dispatch(ctx, state.DeleteProduct{ProductID: id}); err != nil {
		return err
	}
	s.logAudit(ctx, "product_delete", "product", id, "")
	return nil
}

func (s *Service) ListCustomers(_ context.Context) []domain.Customer {
	return s.store.State().Customers
}

func (s *Service) GetCustomer(_ context.Context, id string) (domain.Customer, error) {
	customer, ok := s.store.State().Customer(id)
	if !ok {
		return domain.Customer{}, fmt.Errorf("%w: customer %s", domain.ErrNotFound, id)
	}
	return customer, nil
}

// CreateCustomer is open to every signed-in role so the counter can register
// a buyer mid-sale.
func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	if err := req.Validate(); err != nil {
		return domain.Customer{}, err
	}

	customer := domain.Customer{
		ID:          defaultString(strings.TrimSpace(req.ID), xid.New("cust")),
		Name:        strings.TrimSpace(req.Name),
		Phone:       strings.TrimSpace(req.Phone),
		Email:       strings.TrimSpace(req.Email),
		Address:     strings.TrimSpace(req.Address),
		Type:        req.Type,
		CreditLimit: req.CreditLimit,
		Balance:     decimal.Zero,
		ExternalID:  strings.TrimSpace(req.ExternalID),
	}
	if customer.Type == "" {
		customer.Type = domain.CustomerRetail
	}
	if _, err := s.dispatch(ctx, state.AddCustomer{Customer: customer}); err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", "customer", customer.ID, fmt.Sprintf("name=%s,type=%s", customer.Name, customer.Type))
	return customer, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Customer{}, err
	}
	if err := req.Validate(); err != nil {
		return domain.Customer{}, err
	}

	st, err := s.dispatch(ctx, state.UpdateCustomer{CustomerID: id, Patch: req})
	if err != nil {
		return domain.Customer{}, err
	}
	updated, _ := st.Customer(id)
	s.logAudit(ctx, "customer_update", "customer", updated.ID, fmt.Sprintf("balance=%s", updated.Balance))
	return updated, nil
}

// DeleteCustomer also unbinds the customer from any open tab.
func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if _, err := s.dispatch(ctx, state.DeleteCustomer{CustomerID: id}); err != nil {
		return err
	}
	s.logAudit(ctx, "customer_delete", "customer", id, "")
	return nil
}

func (s *Service) dispatch(ctx context.Context, cmd state.Command) (state.State, error) {
	st, _, err := s.store.Dispatch(ctx, cmd)
	return st, err
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}
	s.audit.Info(action,
		zap.String("actor", actor.Username),
		zap.String("role", actor.Role),
		zap.String("entity_type", entityType),
		zap.String("entity_id", entityID),
		zap.String("detail", detail),
	)
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: admin role required", domain.ErrForbidden)
	}
	return nil
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// Report builds the reporting views for the given period.
func (s *Service) Report(ctx context.Context, period report.Period, start, end *time.Time) (report.Report, error) {
	w, err := report.ResolveWindow(period, start, end, s.now())
	if err != nil {
		return report.Report{}, err
	}
	return s.reports.Build(ctx, s.store.State(), w), nil
}

func (s *Service) WriteSalesCSV(_ context.Context, out io.Writer, period report.Period, start, end *time.Time) error {
	w, err := report.ResolveWindow(period, start, end, s.now())
	if err != nil {
		return err
	}
	return report.WriteSalesCSV(out, s.store.State(), w)
}

func (s *Service) LowStock(_ context.Context) []domain.Product {
	return report.LowStock(s.store.State().Products)
}
