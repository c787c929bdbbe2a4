package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrDuplicate           = errors.New("already exists")
	ErrForbidden           = errors.New("forbidden")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrStockConflict       = errors.New("stock conflict")
	ErrPriceConflict       = errors.New("price conflict")
	ErrSyncFailure         = errors.New("erp sync failed")
	ErrConnectionFailure   = errors.New("erp connection failed")
)

type StockShortage struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Requested   decimal.Decimal `json:"requested"`
	Available   decimal.Decimal `json:"available"`
}

// StockConflictError lists every cart line that no longer fits the current stock.
type StockConflictError struct {
	Shortages []StockShortage
}

func (e *StockConflictError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s requested %s available %s", s.ProductName, s.Requested, s.Available))
	}
	return fmt.Sprintf("%s: %s", ErrStockConflict, strings.Join(parts, "; "))
}

func (e *StockConflictError) Is(target error) bool {
	return target == ErrStockConflict
}
