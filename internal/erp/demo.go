package erp

import (
	"context"
	"fmt"
	"sync/atomic"

	"veggiemarket/backend/internal/domain"
)

// Demo answers every call with a canned success and touches no network.
type Demo struct {
	invoices atomic.Int64
}

func NewDemo() *Demo {
	return &Demo{}
}

func (d *Demo) SyncSale(ctx context.Context, sale domain.Sale) SaleResult {
	if err := ctx.Err(); err != nil {
		return SaleResult{Error: err.Error()}
	}
	n := d.invoices.Add(1)
	return SaleResult{Success: true, ExternalID: fmt.Sprintf("INV%06d", n)}
}

func (d *Demo) SyncProducts(ctx context.Context, products []domain.Product) BatchResult {
	if err := ctx.Err(); err != nil {
		return BatchResult{Errors: []string{err.Error()}}
	}
	return BatchResult{Success: true, SyncedCount: len(products)}
}

func (d *Demo) SyncCustomers(ctx context.Context, customers []domain.Customer) BatchResult {
	if err := ctx.Err(); err != nil {
		return BatchResult{Errors: []string{err.Error()}}
	}
	return BatchResult{Success: true, SyncedCount: len(customers)}
}

func (d *Demo) TestConnection(context.Context) ConnectionResult {
	return ConnectionResult{Success: true, Message: "Demo mode: connection simulated"}
}

// Disabled is used when no ERP is configured; every call fails fast.
type Disabled struct{}

func (Disabled) SyncSale(context.Context, domain.Sale) SaleResult {
	return SaleResult{Error: errNotConfigured.Error()}
}

func (Disabled) SyncProducts(context.Context, []domain.Product) BatchResult {
	return BatchResult{Errors: []string{errNotConfigured.Error()}}
}

func (Disabled) SyncCustomers(context.Context, []domain.Customer) BatchResult {
	return BatchResult{Errors: []string{errNotConfigured.Error()}}
}

func (Disabled) TestConnection(context.Context) ConnectionResult {
	return ConnectionResult{Message: errNotConfigured.Error()}
}
