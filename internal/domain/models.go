package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Unit string

const (
	UnitKilogram Unit = "kg"
	UnitGram     Unit = "g"
	UnitPound    Unit = "lb"
	UnitPiece    Unit = "piece"
	UnitBunch    Unit = "bunch"
	UnitBox      Unit = "box"
)

func (u Unit) Valid() bool {
	switch u {
	case UnitKilogram, UnitGram, UnitPound, UnitPiece, UnitBunch, UnitBox:
		return true
	}
	return false
}

// Fractional reports whether the unit is weight based and accepts non-integral quantities.
func (u Unit) Fractional() bool {
	return u == UnitKilogram || u == UnitGram || u == UnitPound
}

type Product struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	Price      decimal.Decimal `json:"price"`
	Unit       Unit            `json:"unit"`
	Stock      decimal.Decimal `json:"stock"`
	MinStock   decimal.Decimal `json:"min_stock"`
	Barcode    string          `json:"barcode,omitempty"`
	Supplier   string          `json:"supplier,omitempty"`
	ExternalID string          `json:"external_id,omitempty"`
}

func (p Product) LowStock() bool {
	return p.Stock.LessThanOrEqual(p.MinStock)
}

type CustomerType string

const (
	CustomerRetail    CustomerType = "retail"
	CustomerWholesale CustomerType = "wholesale"
)

type Customer struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone,omitempty"`
	Email       string          `json:"email,omitempty"`
	Address     string          `json:"address,omitempty"`
	Type        CustomerType    `json:"type"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	Balance     decimal.Decimal `json:"balance"`
	ExternalID  string          `json:"external_id,omitempty"`
}

// CartLine keeps the product as it was when the line was added.
type CartLine struct {
	Product   Product         `json:"product"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

func NewCartLine(product Product, quantity decimal.Decimal, unitPrice decimal.Decimal) CartLine {
	return CartLine{
		Product:   product,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Subtotal:  quantity.Mul(unitPrice),
	}
}

func LinesTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal)
	}
	return total
}

type Tab struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Lines      []CartLine      `json:"lines"`
	CustomerID string          `json:"customer_id,omitempty"`
	Total      decimal.Decimal `json:"total"`
}

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentUPI          PaymentMethod = "upi"
	PaymentCredit       PaymentMethod = "credit"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

var PaymentMethods = []PaymentMethod{PaymentCash, PaymentCard, PaymentUPI, PaymentCredit, PaymentBankTransfer}

func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

type Sale struct {
	ID             string          `json:"id"`
	ReceiptNumber  string          `json:"receipt_number"`
	CustomerID     string          `json:"customer_id,omitempty"`
	CustomerRef    string          `json:"customer_ref,omitempty"`
	Lines          []CartLine      `json:"lines"`
	Total          decimal.Decimal `json:"total"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	AmountTendered decimal.Decimal `json:"amount_tendered"`
	Change         decimal.Decimal `json:"change"`
	Cashier        string          `json:"cashier"`
	CreatedAt      time.Time       `json:"created_at"`
}

type SupplierStatus string

const (
	SupplierActive   SupplierStatus = "active"
	SupplierInactive SupplierStatus = "inactive"
)

type Supplier struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	ContactPerson string          `json:"contact_person,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Email         string          `json:"email,omitempty"`
	Address       string          `json:"address,omitempty"`
	PaymentTerms  string          `json:"payment_terms,omitempty"`
	CreditLimit   decimal.Decimal `json:"credit_limit"`
	Balance       decimal.Decimal `json:"balance"`
	Status        SupplierStatus  `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

type PurchaseOrderStatus string

const (
	PurchaseOrderPending   PurchaseOrderStatus = "pending"
	PurchaseOrderReceived  PurchaseOrderStatus = "received"
	PurchaseOrderCancelled PurchaseOrderStatus = "cancelled"
)

type PurchaseOrderItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

type PurchaseOrder struct {
	ID           string              `json:"id"`
	SupplierID   string              `json:"supplier_id"`
	OrderNumber  string              `json:"order_number"`
	Items        []PurchaseOrderItem `json:"items"`
	Total        decimal.Decimal     `json:"total"`
	Status       PurchaseOrderStatus `json:"status"`
	OrderDate    time.Time           `json:"order_date"`
	ExpectedDate *time.Time          `json:"expected_date,omitempty"`
	ReceivedDate *time.Time          `json:"received_date,omitempty"`
}

type Expense struct {
	ID            string          `json:"id"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Date          time.Time       `json:"date"`
	Reference     string          `json:"reference,omitempty"`
	SupplierID    string          `json:"supplier_id,omitempty"`
}

var DefaultExpenseCategories = []string{
	"Rent",
	"Utilities",
	"Transport",
	"Salaries",
	"Packaging",
	"Maintenance",
	"Marketing",
	"Miscellaneous",
}

type SyncKind string

const (
	SyncProducts  SyncKind = "products"
	SyncCustomers SyncKind = "customers"
	SyncSales     SyncKind = "sales"
)

type SyncState string

const (
	SyncIdle    SyncState = "idle"
	SyncRunning SyncState = "syncing"
	SyncSuccess SyncState = "success"
	SyncError   SyncState = "error"
)

type SyncStatus struct {
	State    SyncState  `json:"status"`
	LastSync *time.Time `json:"last_sync,omitempty"`
	Error    string     `json:"error,omitempty"`
}

type SyncOverview struct {
	Connected bool                    `json:"connected"`
	LastSync  *time.Time              `json:"last_sync,omitempty"`
	Kinds     map[SyncKind]SyncStatus `json:"kinds"`
	Pending   int                     `json:"pending"`
}

type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}
