package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"veggiemarket/backend/internal/domain"
	"veggiemarket/backend/internal/state"
	"veggiemarket/backend/internal/xid"
)

func (s *Service) ListSuppliers(_ context.Context) []domain.Supplier {
	return s.store.State().Suppliers
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Supplier{}, err
	}
	if err := req.Validate(); err != nil {
		return domain.Supplier{}, err
	}

	supplier := domain.Supplier{
		ID:            defaultString(strings.TrimSpace(req.ID), xid.New("sup")),
		Name:          strings.TrimSpace(req.Name),
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		Phone:         strings.TrimSpace(req.Phone),
		Email:         strings.TrimSpace(req.Email),
		Address:       strings.TrimSpace(req.Address),
		PaymentTerms:  strings.TrimSpace(req.PaymentTerms),
		CreditLimit:   req.CreditLimit,
		Balance:       decimal.Zero,
		Status:        domain.SupplierActive,
		CreatedAt:     s.now().UTC(),
	}
	if _, err := s.dispatch(ctx, state.AddSupplier{Supplier: supplier}); err != nil {
		return domain.Supplier{}, err
	}

	s.logAudit(ctx, "supplier_create", "supplier", supplier.ID, fmt.Sprintf("name=%s", supplier.Name))
	return supplier, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, id string, req domain.SupplierUpdateRequest) (domain.Supplier, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Supplier{}, err
	}
	if err := req.Validate(); err != nil {
		return domain.Supplier{}, err
	}

	st, err := s.dispatch(ctx, state.UpdateSupplier{SupplierID: id, Patch: req})
	if err != nil {
		return domain.Supplier{}, err
	}
	updated, _ := st.Supplier(id)
	s.logAudit(ctx, "supplier_update", "supplier", updated.ID, fmt.Sprintf("status=%s,balance=%s", updated.Status, updated.Balance))
	return updated, nil
}

func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if _, err := s.dispatch(ctx, state.DeleteSupplier{SupplierID: id}); err != nil {
		return err
	}
	s.logAudit(ctx, "supplier_delete", "supplier", id, "")
	return nil
}

func (s *Service) ListExpenses(_ context.Context) []domain.Expense {
	return s.store.State().Expenses
}

func (s *Service) ExpenseCategories() []string {
	return append([]string(nil), domain.DefaultExpenseCategories...)
}

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.Expense, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Expense{}, err
	}
	if err := req.Validate(); err != nil {
		return domain.Expense{}, err
	}

	date := s.now().UTC()
	if req.Date != nil {
		date = req.Date.UTC()
	}
	expense := domain.Expense{
		ID:            xid.New("exp"),
		Category:      strings.TrimSpace(req.Category),
		Description:   strings.TrimSpace(req.Description),
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Date:          date,
		Reference:     strings.TrimSpace(req.Reference),
		SupplierID:    strings.TrimSpace(req.SupplierID),
	}
	if _, err := s.dispatch(ctx, state.AddExpense{Expense: expense}); err != nil {
		return domain.Expense{}, err
	}

	s.logAudit(ctx, "expense_create", "expense", expense.ID, fmt.Sprintf("category=%s,amount=%s", expense.Category, expense.Amount))
	return expense, nil
}

func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if _, err := s.dispatch(ctx, state.DeleteExpense{ExpenseID: id}); err != nil {
		return err
	}
	s.logAudit(ctx, "expense_delete", "expense", id, "")
	return nil
}

// ListPurchaseOrders returns every order, or only those in status when set.
func (s *Service) ListPurchaseOrders(_ context.Context, status domain.PurchaseOrderStatus) []domain.PurchaseOrder {
	orders := s.store.State().PurchaseOrders
	if status == "" {
		return orders
	}
	filtered := make([]domain.PurchaseOrder, 0, len(orders))
	for _, order := range orders {
		if order.Status == status {
			filtered = append(filtered, order)
		}
	}
	return filtered
}

func (s *Service) CreatePurchaseOrder(ctx context.Context, req domain.PurchaseOrderCreateRequest) (domain.PurchaseOrder, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.PurchaseOrder{}, err
	}
	if err := req.Validate(); err != nil {
		return domain.PurchaseOrder{}, err
	}

	items := make([]domain.PurchaseOrderItem, 0, len(req.Items))
	for i, item := range req.Items {
		if err := item.Validate(); err != nil {
			return domain.PurchaseOrder{}, fmt.Errorf("%w: item %d: %v", domain.ErrInvalidInput, i, err)
		}
		items = append(items, domain.PurchaseOrderItem{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	orderID := xid.New("po")
	st, err := s.dispatch(ctx, state.CreatePurchaseOrder{Order: domain.PurchaseOrder{
		ID:           orderID,
		SupplierID:   strings.TrimSpace(req.SupplierID),
		Items:        items,
		OrderDate:    s.now().UTC(),
		ExpectedDate: req.ExpectedDate,
	}})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}

	order, _ := st.PurchaseOrder(orderID)
	s.logAudit(ctx, "purchase_order_create", "purchase_order", order.ID, fmt.Sprintf("number=%s,items=%d,total=%s", order.OrderNumber, len(order.Items), order.Total))
	return order, nil
}

// ReceivePurchaseOrder books a pending order into stock.
func (s *Service) ReceivePurchaseOrder(ctx context.Context, id string) (domain.PurchaseOrder, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.PurchaseOrder{}, err
	}
	st, err := s.dispatch(ctx, state.ReceivePurchaseOrder{OrderID: id, At: s.now().UTC()})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	order, _ := st.PurchaseOrder(id)
	s.logAudit(ctx, "purchase_order_receive", "purchase_order", order.ID, fmt.Sprintf("number=%s", order.OrderNumber))
	return order, nil
}

func (s *Service) CancelPurchaseOrder(ctx context.Context, id string) (domain.PurchaseOrder, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.PurchaseOrder{}, err
	}
	st, err := s.dispatch(ctx, state.CancelPurchaseOrder{OrderID: id})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	order, _ := st.PurchaseOrder(id)
	s.logAudit(ctx, "purchase_order_cancel", "purchase_order", order.ID, fmt.Sprintf("number=%s", order.OrderNumber))
	return order, nil
}
