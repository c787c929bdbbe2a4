package report

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"veggiemarket/backend/internal/domain"
	"veggiemarket/backend/internal/state"
)

var hundred = decimal.NewFromInt(100)

type Summary struct {
	Revenue            decimal.Decimal `json:"revenue"`
	Transactions       int             `json:"transactions"`
	AverageTransaction decimal.Decimal `json:"average_transaction"`
	Expenses           decimal.Decimal `json:"expenses"`
	NetProfit          decimal.Decimal `json:"net_profit"`
	ProfitMargin       decimal.Decimal `json:"profit_margin"`
}

type ProductStat struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Unit      domain.Unit     `json:"unit"`
	UnitsSold decimal.Decimal `json:"units_sold"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type CustomerStat struct {
	CustomerID   string          `json:"customer_id"`
	Name         string          `json:"name"`
	TotalSpent   decimal.Decimal `json:"total_spent"`
	Orders       int             `json:"orders"`
	LastPurchase *time.Time      `json:"last_purchase,omitempty"`
}

type PaymentStat struct {
	Method domain.PaymentMethod `json:"method"`
	Count  int                  `json:"count"`
	Total  decimal.Decimal      `json:"total"`
}

type InventoryStat struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitsSold decimal.Decimal `json:"units_sold"`
	Stock     decimal.Decimal `json:"stock"`
	Turnover  decimal.Decimal `json:"turnover"`
}

type SupplierStat struct {
	SupplierID string          `json:"supplier_id"`
	Name       string          `json:"name"`
	TotalPaid  decimal.Decimal `json:"total_paid"`
	Balance    decimal.Decimal `json:"balance"`
}

type Report struct {
	Window    Window           `json:"window"`
	Summary   Summary          `json:"summary"`
	Products  []ProductStat    `json:"products"`
	Customers []CustomerStat   `json:"customers"`
	Payments  []PaymentStat    `json:"payments"`
	Inventory []InventoryStat  `json:"inventory"`
	Suppliers []SupplierStat   `json:"suppliers"`
	LowStock  []domain.Product `json:"low_stock"`
	Sales     []domain.Sale    `json:"sales"`
}

// SalesIn returns the ledger entries inside w, newest first.
func SalesIn(st state.State, w Window) []domain.Sale {
	sales := make([]domain.Sale, 0, len(st.Sales))
	for _, sale := range st.Sales {
		if w.Contains(sale.CreatedAt) {
			sales = append(sales, sale)
		}
	}
	return sales
}

// Build computes every view for w. It reads st only.
func Build(st state.State, w Window) Report {
	sales := SalesIn(st, w)
	sold, revenue := productTotals(sales)

	return Report{
		Window:    w,
		Summary:   summarize(st, w, sales),
		Products:  productStats(st.Products, sold, revenue),
		Customers: customerStats(st.Customers, sales),
		Payments:  paymentStats(sales),
		Inventory: inventoryStats(st.Products, sold),
		Suppliers: supplierStats(st),
		LowStock:  LowStock(st.Products),
		Sales:     sales,
	}
}

func summarize(st state.State, w Window, sales []domain.Sale) Summary {
	revenue := decimal.Zero
	for _, sale := range sales {
		revenue = revenue.Add(sale.Total)
	}
	expenses := decimal.Zero
	for _, expense := range st.Expenses {
		if w.Contains(expense.Date) {
			expenses = expenses.Add(expense.Amount)
		}
	}

	s := Summary{
		Revenue:            revenue,
		Transactions:       len(sales),
		AverageTransaction: decimal.Zero,
		Expenses:           expenses,
		NetProfit:          revenue.Sub(expenses),
		ProfitMargin:       decimal.Zero,
	}
	if len(sales) > 0 {
		s.AverageTransaction = revenue.DivRound(decimal.NewFromInt(int64(len(sales))), 2)
	}
	if revenue.IsPositive() {
		s.ProfitMargin = s.NetProfit.Mul(hundred).DivRound(revenue, 2)
	}
	return s
}

func productTotals(sales []domain.Sale) (map[string]decimal.Decimal, map[string]decimal.Decimal) {
	sold := make(map[string]decimal.Decimal)
	revenue := make(map[string]decimal.Decimal)
	for _, sale := range sales {
		for _, line := range sale.Lines {
			id := line.Product.ID
			sold[id] = sold[id].Add(line.Quantity)
			revenue[id] = revenue[id].Add(line.Subtotal)
		}
	}
	return sold, revenue
}

func productStats(products []domain.Product, sold, revenue map[string]decimal.Decimal) []ProductStat {
	stats := make([]ProductStat, 0, len(products))
	for _, p := range products {
		stats = append(stats, ProductStat{
			ProductID: p.ID,
			Name:      p.Name,
			Unit:      p.Unit,
			UnitsSold: sold[p.ID],
			Revenue:   revenue[p.ID],
		})
	}
	slices.SortStableFunc(stats, func(a, b ProductStat) int {
		if c := b.UnitsSold.Cmp(a.UnitsSold); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return stats
}

func customerStats(customers []domain.Customer, sales []domain.Sale) []CustomerStat {
	stats := make([]CustomerStat, 0, len(customers))
	for _, c := range customers {
		stat := CustomerStat{CustomerID: c.ID, Name: c.Name, TotalSpent: decimal.Zero}
		for _, sale := range sales {
			if sale.CustomerID != c.ID {
				continue
			}
			stat.TotalSpent = stat.TotalSpent.Add(sale.Total)
			stat.Orders++
			if stat.LastPurchase == nil || sale.CreatedAt.After(*stat.LastPurchase) {
				at := sale.CreatedAt
				stat.LastPurchase = &at
			}
		}
		stats = append(stats, stat)
	}
	slices.SortStableFunc(stats, func(a, b CustomerStat) int {
		if c := b.TotalSpent.Cmp(a.TotalSpent); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return stats
}

func paymentStats(sales []domain.Sale) []PaymentStat {
	stats := make([]PaymentStat, 0, len(domain.PaymentMethods))
	for _, method := range domain.PaymentMethods {
		stat := PaymentStat{Method: method, Total: decimal.Zero}
		for _, sale := range sales {
			if sale.PaymentMethod == method {
				stat.Count++
				stat.Total = stat.Total.Add(sale.Total)
			}
		}
		stats = append(stats, stat)
	}
	return stats
}

// Turnover is units sold divided by current stock, zero when nothing is in stock.
func Turnover(sold, stock decimal.Decimal) decimal.Decimal {
	if !stock.IsPositive() {
		return decimal.Zero
	}
	return sold.DivRound(stock, 4)
}

func inventoryStats(products []domain.Product, sold map[string]decimal.Decimal) []InventoryStat {
	stats := make([]InventoryStat, 0, len(products))
	for _, p := range products {
		stats = append(stats, InventoryStat{
			ProductID: p.ID,
			Name:      p.Name,
			UnitsSold: sold[p.ID],
			Stock:     p.Stock,
			Turnover:  Turnover(sold[p.ID], p.Stock),
		})
	}
	slices.SortStableFunc(stats, func(a, b InventoryStat) int {
		if c := b.Turnover.Cmp(a.Turnover); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return stats
}

func supplierStats(st state.State) []SupplierStat {
	stats := make([]SupplierStat, 0, len(st.Suppliers))
	for _, s := range st.Suppliers {
		paid := decimal.Zero
		for _, expense := range st.Expenses {
			if expense.SupplierID == s.ID {
				paid = paid.Add(expense.Amount)
			}
		}
		stats = append(stats, SupplierStat{SupplierID: s.ID, Name: s.Name, TotalPaid: paid, Balance: s.Balance})
	}
	return stats
}

// LowStock lists products at or below their minimum, lowest stock first.
func LowStock(products []domain.Product) []domain.Product {
	low := make([]domain.Product, 0)
	for _, p := range products {
		if p.LowStock() {
			low = append(low, p)
		}
	}
	slices.SortStableFunc(low, func(a, b domain.Product) int {
		if c := a.Stock.Cmp(b.Stock); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return low
}
