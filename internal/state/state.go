package state

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"veggiemarket/backend/internal/domain"
)

// SnapshotKey is the persistence key of the durable part of the state.
const SnapshotKey = "pos-data"

// State is treated as an immutable value: reducers copy every slice they
// change before writing to it.
type State struct {
	Products       []domain.Product
	Customers      []domain.Customer
	Sales          []domain.Sale
	Suppliers      []domain.Supplier
	PurchaseOrders []domain.PurchaseOrder
	Expenses       []domain.Expense
	Tabs           []domain.Tab
	ActiveTabID    string
	TabSeq         int
	ReceiptSeq     int64
	OrderSeq       int64
	Version        uint64
}

// Document is the persisted form of State. Tabs belong to the register
// session and are not part of it.
type Document struct {
	Products       []domain.Product       `json:"products"`
	Customers      []domain.Customer      `json:"customers"`
	Sales          []domain.Sale          `json:"sales"`
	Suppliers      []domain.Supplier      `json:"suppliers"`
	PurchaseOrders []domain.PurchaseOrder `json:"purchase_orders"`
	Expenses       []domain.Expense       `json:"expenses"`
	ReceiptSeq     int64                  `json:"receipt_seq"`
	OrderSeq       int64                  `json:"order_seq"`
	SavedAt        time.Time              `json:"saved_at"`
}

type PriceOverridePolicy string

const (
	KeepFirstPrice      PriceOverridePolicy = "keep_first"
	RejectPriceConflict PriceOverridePolicy = "reject"
	OverwritePrice      PriceOverridePolicy = "overwrite"
)

func ParsePriceOverridePolicy(raw string) (PriceOverridePolicy, error) {
	switch policy := PriceOverridePolicy(strings.ToLower(strings.TrimSpace(raw))); policy {
	case "":
		return KeepFirstPrice, nil
	case KeepFirstPrice, RejectPriceConflict, OverwritePrice:
		return policy, nil
	}
	return "", fmt.Errorf("%w: unknown price override policy %q", domain.ErrInvalidInput, raw)
}

// Policy holds the behaviour switches of the reducer.
type Policy struct {
	PriceOverride            PriceOverridePolicy
	CreditSalesUpdateBalance bool
}

// New returns an empty state with a single open tab.
func New(firstTabID string) State {
	return State{
		Tabs:        []domain.Tab{{ID: firstTabID, Name: "Bill 1"}},
		ActiveTabID: firstTabID,
		TabSeq:      1,
	}
}

// FromDocument rebuilds a state from its persisted form with a fresh tab session.
func FromDocument(doc Document, firstTabID string) State {
	st := New(firstTabID)
	st.applyDocument(doc)
	return st
}

func (s *State) applyDocument(doc Document) {
	s.Products = slices.Clone(doc.Products)
	s.Customers = slices.Clone(doc.Customers)
	s.Sales = slices.Clone(doc.Sales)
	s.Suppliers = slices.Clone(doc.Suppliers)
	s.PurchaseOrders = slices.Clone(doc.PurchaseOrders)
	s.Expenses = slices.Clone(doc.Expenses)
	s.ReceiptSeq = max(doc.ReceiptSeq, int64(len(doc.Sales)))
	s.OrderSeq = max(doc.OrderSeq, int64(len(doc.PurchaseOrders)))
}

func (s State) Document(at time.Time) Document {
	return Document{
		Products:       slices.Clone(s.Products),
		Customers:      slices.Clone(s.Customers),
		Sales:          slices.Clone(s.Sales),
		Suppliers:      slices.Clone(s.Suppliers),
		PurchaseOrders: slices.Clone(s.PurchaseOrders),
		Expenses:       slices.Clone(s.Expenses),
		ReceiptSeq:     s.ReceiptSeq,
		OrderSeq:       s.OrderSeq,
		SavedAt:        at,
	}
}

// Clone copies every slice so the caller may modify the result freely.
func (s State) Clone() State {
	out := s
	out.Products = slices.Clone(s.Products)
	out.Customers = slices.Clone(s.Customers)
	out.Sales = slices.Clone(s.Sales)
	out.Suppliers = slices.Clone(s.Suppliers)
	out.PurchaseOrders = slices.Clone(s.PurchaseOrders)
	out.Expenses = slices.Clone(s.Expenses)
	out.Tabs = make([]domain.Tab, len(s.Tabs))
	for i, tab := range s.Tabs {
		tab.Lines = slices.Clone(tab.Lines)
		out.Tabs[i] = tab
	}
	return out
}

func (s State) Product(id string) (domain.Product, bool) {
	if i := s.productIndex(id); i >= 0 {
		return s.Products[i], true
	}
	return domain.Product{}, false
}

func (s State) Customer(id string) (domain.Customer, bool) {
	if i := s.customerIndex(id); i >= 0 {
		return s.Customers[i], true
	}
	return domain.Customer{}, false
}

func (s State) Supplier(id string) (domain.Supplier, bool) {
	if i := s.supplierIndex(id); i >= 0 {
		return s.Suppliers[i], true
	}
	return domain.Supplier{}, false
}

func (s State) PurchaseOrder(id string) (domain.PurchaseOrder, bool) {
	if i := s.purchaseOrderIndex(id); i >= 0 {
		return s.PurchaseOrders[i], true
	}
	return domain.PurchaseOrder{}, false
}

func (s State) Tab(id string) (domain.Tab, bool) {
	if i := s.tabIndex(id); i >= 0 {
		return s.Tabs[i], true
	}
	return domain.Tab{}, false
}

func (s State) ActiveTab() domain.Tab {
	if tab, ok := s.Tab(s.ActiveTabID); ok {
		return tab
	}
	if len(s.Tabs) > 0 {
		return s.Tabs[0]
	}
	return domain.Tab{}
}

func (s State) Sale(id string) (domain.Sale, bool) {
	for _, sale := range s.Sales {
		if sale.ID == id || sale.ReceiptNumber == id {
			return sale, true
		}
	}
	return domain.Sale{}, false
}

func (s State) productIndex(id string) int {
	return slices.IndexFunc(s.Products, func(p domain.Product) bool { return p.ID == id })
}

func (s State) customerIndex(id string) int {
	return slices.IndexFunc(s.Customers, func(c domain.Customer) bool { return c.ID == id })
}

func (s State) supplierIndex(id string) int {
	return slices.IndexFunc(s.Suppliers, func(v domain.Supplier) bool { return v.ID == id })
}

func (s State) purchaseOrderIndex(id string) int {
	return slices.IndexFunc(s.PurchaseOrders, func(po domain.PurchaseOrder) bool { return po.ID == id })
}

func (s State) expenseIndex(id string) int {
	return slices.IndexFunc(s.Expenses, func(e domain.Expense) bool { return e.ID == id })
}

func (s State) tabIndex(id string) int {
	return slices.IndexFunc(s.Tabs, func(t domain.Tab) bool { return t.ID == id })
}
