package domain

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/shopspring/decimal"
)

type ProductCreateRequest struct {
	ID         string          `json:"id,omitempty"`
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

func (r ProductCreateRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&r.Category, validation.Required, validation.Length(1, 60)),
		validation.Field(&r.Price, nonNegative),
		validation.Field(&r.Unit, validation.Required, validation.In(UnitKilogram, UnitGram, UnitPound, UnitPiece, UnitBunch, UnitBox)),
		validation.Field(&r.Stock, nonNegative),
		validation.Field(&r.MinStock, nonNegative),
	))
}

type ProductUpdateRequest struct {
	Name       *string          `json:"name,omitempty"`
	Category   *string          `json:"category,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	Unit       *Unit            `json:"unit,omitempty"`
	Stock      *decimal.Decimal `json:"stock,omitempty"`
	MinStock   *decimal.Decimal `json:"min_stock,omitempty"`
	Barcode    *string          `json:"barcode,omitempty"`
	Supplier   *string          `json:"supplier,omitempty"`
	ExternalID *string          `json:"external_id,omitempty"`
}

func (r ProductUpdateRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 120)),
		validation.Field(&r.Category, validation.NilOrNotEmpty, validation.Length(1, 60)),
		validation.Field(&r.Price, nonNegative),
		validation.Field(&r.Unit, validation.NilOrNotEmpty, validation.In(UnitKilogram, UnitGram, UnitPound, UnitPiece, UnitBunch, UnitBox)),
		validation.Field(&r.Stock, nonNegative),
		validation.Field(&r.MinStock, nonNegative),
	))
}

type CustomerCreateRequest struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone,omitempty"`
	Email       string          `json:"email,omitempty"`
	Address     string          `json:"address,omitempty"`
	Type        CustomerType    `json:"type"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	ExternalID  string          `json:"external_id,omitempty"`
}

func (r CustomerCreateRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&r.Email, is.Email),
		validation.Field(&r.Type, validation.In(CustomerRetail, CustomerWholesale)),
		validation.Field(&r.CreditLimit, nonNegative),
	))
}

type CustomerUpdateRequest struct {
	Name        *string          `json:"name,omitempty"`
	Phone       *string          `json:"phone,omitempty"`
	Email       *string          `json:"email,omitempty"`
	Address     *string          `json:"address,omitempty"`
	Type        *CustomerType    `json:"type,omitempty"`
	CreditLimit *decimal.Decimal `json:"credit_limit,omitempty"`
	Balance     *decimal.Decimal `json:"balance,omitempty"`
	ExternalID  *string          `json:"external_id,omitempty"`
}

func (r CustomerUpdateRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 120)),
		validation.Field(&r.Email, is.Email),
		validation.Field(&r.Type, validation.In(CustomerRetail, CustomerWholesale)),
		validation.Field(&r.CreditLimit, nonNegative),
	))
}

type AddLineRequest struct {
	ProductID     string           `json:"product_id"`
	Quantity      decimal.Decimal  `json:"quantity"`
	PriceOverride *decimal.Decimal `json:"price_override,omitempty"`
}

func (r AddLineRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.ProductID, validation.Required),
		validation.Field(&r.Quantity, positive),
		validation.Field(&r.PriceOverride, nonNegative),
	))
}

type SetLineQuantityRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

type BindCustomerRequest struct {
	CustomerID string `json:"customer_id"`
}

type CommitSaleRequest struct {
	PaymentMethod  PaymentMethod    `json:"payment_method"`
	AmountTendered *decimal.Decimal `json:"amount_tendered,omitempty"`
}

func (r CommitSaleRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.PaymentMethod, validation.Required, validation.In(PaymentCash, PaymentCard, PaymentUPI, PaymentCredit, PaymentBankTransfer)),
		validation.Field(&r.AmountTendered, nonNegative),
	))
}

type SupplierCreateRequest struct {
	ID            string          `json:"id,omitempty"`
	Name          string          `json:"name"`
	ContactPerson string          `json:"contact_person,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Email         string          `json:"email,omitempty"`
	Address       string          `json:"address,omitempty"`
	PaymentTerms  string          `json:"payment_terms,omitempty"`
	CreditLimit   decimal.Decimal `json:"credit_limit"`
}

func (r SupplierCreateRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&r.Email, is.Email),
		validation.Field(&r.CreditLimit, nonNegative),
	))
}

type SupplierUpdateRequest struct {
	Name          *string          `json:"name,omitempty"`
	ContactPerson *string          `json:"contact_person,omitempty"`
	Phone         *string          `json:"phone,omitempty"`
	Email         *string          `json:"email,omitempty"`
	Address       *string          `json:"address,omitempty"`
	PaymentTerms  *string          `json:"payment_terms,omitempty"`
	CreditLimit   *decimal.Decimal `json:"credit_limit,omitempty"`
	Balance       *decimal.Decimal `json:"balance,omitempty"`
	Status        *SupplierStatus  `json:"status,omitempty"`
}

func (r SupplierUpdateRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 120)),
		validation.Field(&r.Email, is.Email),
		validation.Field(&r.CreditLimit, nonNegative),
		validation.Field(&r.Status, validation.In(SupplierActive, SupplierInactive)),
	))
}

type ExpenseCreateRequest struct {
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Date          *time.Time      `json:"date,omitempty"`
	Reference     string          `json:"reference,omitempty"`
	SupplierID    string          `json:"supplier_id,omitempty"`
}

func (r ExpenseCreateRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.Category, validation.Required, validation.Length(1, 60)),
		validation.Field(&r.Description, validation.Length(0, 240)),
		validation.Field(&r.Amount, positive),
		validation.Field(&r.PaymentMethod, validation.Required, validation.In(PaymentCash, PaymentCard, PaymentUPI, PaymentCredit, PaymentBankTransfer)),
	))
}

type PurchaseOrderItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (r PurchaseOrderItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProductID, validation.Required),
		validation.Field(&r.Quantity, positive),
		validation.Field(&r.UnitPrice, nonNegative),
	)
}

type PurchaseOrderCreateRequest struct {
	SupplierID   string                     `json:"supplier_id"`
	ExpectedDate *time.Time                 `json:"expected_date,omitempty"`
	Items        []PurchaseOrderItemRequest `json:"items"`
}

func (r PurchaseOrderCreateRequest) Validate() error {
	return invalid(validation.ValidateStruct(&r,
		validation.Field(&r.SupplierID, validation.Required),
		validation.Field(&r.Items, validation.Required),
	))
}

var nonNegative = validation.By(func(value interface{}) error {
	if d, ok := decimalValue(value); ok && d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
})

var positive = validation.By(func(value interface{}) error {
	if d, ok := decimalValue(value); ok && !d.IsPositive() {
		return errors.New("must be greater than zero")
	}
	return nil
})

func decimalValue(value interface{}) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, true
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, false
		}
		return *v, true
	}
	return decimal.Zero, false
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}
