package state

import (
	"time"

	"github.com/shopspring/decimal"

	"veggiemarket/backend/internal/domain"
)

// Command is a request to change the state. Commands carry every generated
// value (ids, timestamps) so that reducing them is deterministic.
type Command interface {
	Name() string
}

type CreateTab struct {
	TabID string
}

type CloseTab struct {
	TabID string
}

type SetActiveTab struct {
	TabID string
}

type AddLine struct {
	TabID         string
	ProductID     string
	Quantity      decimal.Decimal
	PriceOverride *decimal.Decimal
}

type SetLineQuantity struct {
	TabID     string
	ProductID string
	Quantity  decimal.Decimal
}

type RemoveLine struct {
	TabID     string
	ProductID string
}

type ClearTab struct {
	TabID string
}

type BindCustomer struct {
	TabID      string
	CustomerID string
}

type CommitSale struct {
	TabID          string
	SaleID         string
	PaymentMethod  domain.PaymentMethod
	AmountTendered *decimal.Decimal
	Cashier        string
	At             time.Time
}

type AddProduct struct {
	Product domain.Product
}

// UpdateProduct applies the set fields of Patch to the current record.
type UpdateProduct struct {
	ProductID string
	Patch     domain.ProductUpdateRequest
}

type DeleteProduct struct {
	ProductID string
}

type AddCustomer struct {
	Customer domain.Customer
}

type UpdateCustomer struct {
	CustomerID string
	Patch      domain.CustomerUpdateRequest
}

type DeleteCustomer struct {
	CustomerID string
}

type AddSupplier struct {
	Supplier domain.Supplier
}

type UpdateSupplier struct {
	SupplierID string
	Patch      domain.SupplierUpdateRequest
}

type DeleteSupplier struct {
	SupplierID string
}

type AddExpense struct {
	Expense domain.Expense
}

type DeleteExpense struct {
	ExpenseID string
}

type CreatePurchaseOrder struct {
	Order domain.PurchaseOrder
}

type ReceivePurchaseOrder struct {
	OrderID string
	At      time.Time
}

type CancelPurchaseOrder struct {
	OrderID string
}

// LoadData replaces the durable collections, leaving the tab session untouched.
type LoadData struct {
	Document Document
}

func (CreateTab) Name() string            { return "create_tab" }
func (CloseTab) Name() string             { return "close_tab" }
func (SetActiveTab) Name() string         { return "set_active_tab" }
func (AddLine) Name() string              { return "add_line" }
func (SetLineQuantity) Name() string      { return "set_line_quantity" }
func (RemoveLine) Name() string           { return "remove_line" }
func (ClearTab) Name() string             { return "clear_tab" }
func (BindCustomer) Name() string         { return "bind_customer" }
func (CommitSale) Name() string           { return "commit_sale" }
func (AddProduct) Name() string           { return "add_product" }
func (UpdateProduct) Name() string        { return "update_product" }
func (DeleteProduct) Name() string        { return "delete_product" }
func (AddCustomer) Name() string          { return "add_customer" }
func (UpdateCustomer) Name() string       { return "update_customer" }
func (DeleteCustomer) Name() string       { return "delete_customer" }
func (AddSupplier) Name() string          { return "add_supplier" }
func (UpdateSupplier) Name() string       { return "update_supplier" }
func (DeleteSupplier) Name() string       { return "delete_supplier" }
func (AddExpense) Name() string           { return "add_expense" }
func (DeleteExpense) Name() string        { return "delete_expense" }
func (CreatePurchaseOrder) Name() string  { return "create_purchase_order" }
func (ReceivePurchaseOrder) Name() string { return "receive_purchase_order" }
func (CancelPurchaseOrder) Name() string  { return "cancel_purchase_order" }
func (LoadData) Name() string             { return "load_data" }

// Event is emitted by a successful dispatch after the new state is visible.
type Event interface {
	EventName() string
}

type SaleCommitted struct {
	Sale domain.Sale
}

func (SaleCommitted) EventName() string { return "sale_committed" }

type PurchaseOrderReceived struct {
	Order domain.PurchaseOrder
}

func (PurchaseOrderReceived) EventName() string { return "purchase_order_received" }
