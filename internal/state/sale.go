package state

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"veggiemarket/backend/internal/domain"
	"veggiemarket/backend/internal/xid"
)

// commitSale turns a tab into a ledger entry. Stock is re-checked against the
// current catalog in the same step that decrements it.
func commitSale(st State, cmd CommitSale, policy Policy) (State, []Event, error) {
	if !cmd.PaymentMethod.Valid() {
		return st, nil, fmt.Errorf("%w: unknown payment method %q", domain.ErrInvalidInput, cmd.PaymentMethod)
	}
	if cmd.SaleID == "" {
		return st, nil, fmt.Errorf("%w: sale id required", domain.ErrInvalidInput)
	}
	idx := st.tabIndex(cmd.TabID)
	if idx < 0 {
		return st, nil, notFound("tab", cmd.TabID)
	}
	tab := st.Tabs[idx]
	if len(tab.Lines) == 0 {
		return st, nil, domain.ErrEmptyCart
	}

	total := domain.LinesTotal(tab.Lines)
	tendered := total
	if cmd.PaymentMethod == domain.PaymentCash && cmd.AmountTendered != nil {
		tendered = *cmd.AmountTendered
		if tendered.LessThan(total) {
			return st, nil, fmt.Errorf("%w: received %s for a total of %s", domain.ErrInsufficientPayment, tendered, total)
		}
	}

	var shortages []domain.StockShortage
	for _, line := range tab.Lines {
		product, ok := st.Product(line.Product.ID)
		if !ok {
			shortages = append(shortages, domain.StockShortage{
				ProductID:   line.Product.ID,
				ProductName: line.Product.Name,
				Requested:   line.Quantity,
				Available:   decimal.Zero,
			})
			continue
		}
		if product.Stock.LessThan(line.Quantity) {
			shortages = append(shortages, domain.StockShortage{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   line.Quantity,
				Available:   product.Stock,
			})
		}
	}
	if len(shortages) > 0 {
		return st, nil, &domain.StockConflictError{Shortages: shortages}
	}

	next := st
	if policy.CreditSalesUpdateBalance && cmd.PaymentMethod == domain.PaymentCredit {
		ci := st.customerIndex(tab.CustomerID)
		if ci < 0 {
			return st, nil, fmt.Errorf("%w: credit sales need a customer on the bill", domain.ErrInvalidInput)
		}
		next.Customers = slices.Clone(st.Customers)
		next.Customers[ci].Balance = next.Customers[ci].Balance.Add(total)
	}

	next.Products = slices.Clone(st.Products)
	for _, line := range tab.Lines {
		pi := next.productIndex(line.Product.ID)
		next.Products[pi].Stock = next.Products[pi].Stock.Sub(line.Quantity)
	}

	var customerRef string
	if customer, ok := st.Customer(tab.CustomerID); ok {
		customerRef = customer.ExternalID
	}

	cashier := cmd.Cashier
	if cashier == "" {
		cashier = "system"
	}
	next.ReceiptSeq++
	sale := domain.Sale{
		ID:             cmd.SaleID,
		ReceiptNumber:  xid.Receipt(next.ReceiptSeq),
		CustomerID:     tab.CustomerID,
		CustomerRef:    customerRef,
		Lines:          slices.Clone(tab.Lines),
		Total:          total,
		PaymentMethod:  cmd.PaymentMethod,
		AmountTendered: tendered,
		Change:         tendered.Sub(total),
		Cashier:        cashier,
		CreatedAt:      cmd.At,
	}
	next.Sales = append([]domain.Sale{sale}, st.Sales...)

	tab.Lines = nil
	tab.CustomerID = ""
	next = withTab(next, idx, tab)

	return next, []Event{SaleCommitted{Sale: sale}}, nil
}
